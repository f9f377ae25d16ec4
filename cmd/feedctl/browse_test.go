package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/blackmichael/video-feed/internal/feedui"
	"github.com/blackmichael/video-feed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptConfirmer(t *testing.T) {
	cases := map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		"n\n":     false,
		"\n":      false,
		"y":       true,
		"maybe\n": false,
	}
	for input, want := range cases {
		var out bytes.Buffer
		c := &promptConfirmer{in: bufio.NewReader(strings.NewReader(input)), out: &out}
		got, err := c.Confirm(context.Background(), "Delete it?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
		assert.Equal(t, "Delete it? [y/N] ", out.String())
	}
}

func TestParseIntent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	repo, err := store.NewRepository(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer repo.Close()

	for _, title := range []string{"a", "b"} {
		_, err := repo.CreatePost(ctx, domain.NewPost{AuthorID: "u", Title: title, MediaReference: "https://youtu.be/dQw4w9WgXcQ", IsExternalEmbed: true})
		require.NoError(t, err)
	}
	session := feedui.NewSession(feedui.Services{Feed: domain.NewFeedService(repo, logger)}, feedui.Options{}, logger)
	require.NoError(t, session.Dispatch(ctx, feedui.Refresh{}).Err)
	items := session.Items()
	require.Len(t, items, 2)

	in, err := parseIntent(ctx, session, []string{"n"})
	require.NoError(t, err)
	assert.Equal(t, feedui.ScrolledNearEnd{}, in)

	in, err = parseIntent(ctx, session, []string{"l", "2"})
	require.NoError(t, err)
	assert.Equal(t, feedui.LikeClicked{PostID: items[1].Post.ID}, in)

	in, err = parseIntent(ctx, session, []string{"w", "1"})
	require.NoError(t, err)
	assert.Equal(t, feedui.VisibilityChanged{PostID: items[0].Post.ID, Ratio: 1}, in)

	for _, bad := range [][]string{{"l"}, {"l", "0"}, {"l", "3"}, {"l", "x"}, {"z", "1"}} {
		_, err := parseIntent(ctx, session, bad)
		assert.Error(t, err, "%v", bad)
	}
}
