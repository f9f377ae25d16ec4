package feedui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/blackmichael/video-feed/internal/blobstore"
	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/blackmichael/video-feed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clipboardFunc func(ctx context.Context, text string) error

func (f clipboardFunc) Copy(ctx context.Context, text string) error { return f(ctx, text) }

type confirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

type fixture struct {
	repo *store.Repository
	svc  Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := store.NewRepository(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	blobs, err := blobstore.NewFilesystem(t.TempDir(), "http://feed.test/blobs")
	require.NoError(t, err)

	return &fixture{
		repo: repo,
		svc: Services{
			Feed:       domain.NewFeedService(repo, logger),
			Engagement: domain.NewEngagementService(repo, nil, logger),
			Moderation: domain.NewModerationService(repo, repo, blobs, nil, logger),
			Submit:     domain.NewSubmitService(repo, repo, blobs, nil, 0, logger),
		},
	}
}

func (f *fixture) session(opts Options) *Session {
	return NewSession(f.svc, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const (
	embedRef  = "https://youtu.be/dQw4w9WgXcQ"
	nativeRef = "http://feed.test/blobs/o/videos%2Fauthor%2Fclip.mp4?alt=media"
)

// seed creates n posts, alternating embeds (even) and uploads (odd).
func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		np := domain.NewPost{AuthorID: "author", Title: fmt.Sprintf("post %d", i), MediaReference: nativeRef}
		if i%2 == 0 {
			np.MediaReference, np.IsExternalEmbed = embedRef, true
		}
		_, err := f.repo.CreatePost(context.Background(), np)
		require.NoError(t, err)
		// Distinct timestamps keep the feed order deterministic.
		time.Sleep(2 * time.Millisecond)
	}
}

// loaded returns the id of the first loaded post of the given kind.
func loaded(t *testing.T, s *Session, embed bool) string {
	t.Helper()
	for _, it := range s.Items() {
		if it.Post.IsExternalEmbed == embed {
			return it.Post.ID
		}
	}
	t.Fatalf("no loaded post with embed=%v", embed)
	return ""
}

func TestSession_ScrollsToEnd(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 5)
	s := f.session(Options{PageSize: 2})
	ctx := context.Background()

	out := s.Dispatch(ctx, Refresh{})
	require.NoError(t, out.Err)
	assert.Len(t, s.Items(), 2)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Dispatch(ctx, ScrolledNearEnd{}).Err)
	}
	assert.Len(t, s.Items(), 5)
	assert.True(t, s.Done())

	seen := map[string]bool{}
	for _, it := range s.Items() {
		assert.False(t, seen[it.Post.ID])
		seen[it.Post.ID] = true
	}
}

func TestSession_SignedOutActions(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	s := f.session(Options{})
	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, Refresh{}).Err)
	id := s.Items()[0].Post.ID

	for _, in := range []Intent{LikeClicked{PostID: id}, ShareClicked{PostID: id}, DeleteClicked{PostID: id}, SubmitPost{}} {
		out := s.Dispatch(ctx, in)
		assert.ErrorIs(t, out.Err, domain.ErrAuthRequired, "%T", in)
		assert.Equal(t, "Please sign in first.", out.Message)
	}
	it, _ := s.Item(id)
	assert.Equal(t, 0, it.LikeCount)
}

func TestSession_LikeToggle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	s := f.session(Options{})
	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "u1"}).Err)
	id := s.Items()[0].Post.ID

	require.NoError(t, s.Dispatch(ctx, LikeClicked{PostID: id}).Err)
	it, _ := s.Item(id)
	assert.True(t, it.LikedByMe)
	assert.Equal(t, 1, it.LikeCount)

	require.NoError(t, s.Dispatch(ctx, LikeClicked{PostID: id}).Err)
	it, _ = s.Item(id)
	assert.False(t, it.LikedByMe)
	assert.Equal(t, 0, it.LikeCount)

	// Like then sign in again: the reloaded feed reflects the stored set.
	require.NoError(t, s.Dispatch(ctx, LikeClicked{PostID: id}).Err)
	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "u1"}).Err)
	it, _ = s.Item(id)
	assert.True(t, it.LikedByMe)

	require.NoError(t, s.Dispatch(ctx, SignedOut{}).Err)
	it, _ = s.Item(id)
	assert.False(t, it.LikedByMe)
	assert.Equal(t, 1, it.LikeCount)
}

func TestSession_LikeRevertsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	s := f.session(Options{})
	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "u1"}).Err)
	id := s.Items()[0].Post.ID

	require.NoError(t, f.repo.DeletePost(ctx, id))
	out := s.Dispatch(ctx, LikeClicked{PostID: id})
	assert.ErrorIs(t, out.Err, domain.ErrNotFound)
	assert.Equal(t, "This video is no longer available.", out.Message)

	it, _ := s.Item(id)
	assert.False(t, it.LikedByMe)
	assert.Equal(t, 0, it.LikeCount)
}

func TestSession_Share(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	ctx := context.Background()

	var copied string
	s := f.session(Options{Clipboard: clipboardFunc(func(_ context.Context, text string) error {
		copied = text
		return nil
	})})
	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "u1"}).Err)
	id := loaded(t, s, true)

	out := s.Dispatch(ctx, ShareClicked{PostID: id})
	require.NoError(t, out.Err)
	assert.Equal(t, "Link copied to clipboard!", out.Message)
	assert.Equal(t, embedRef, copied)
	it, _ := s.Item(id)
	assert.Equal(t, 1, it.ShareCount)

	out = s.Dispatch(ctx, ShareClicked{PostID: id})
	assert.ErrorIs(t, out.Err, domain.ErrAlreadyShared)
	assert.Equal(t, "You already shared this video.", out.Message)
	it, _ = s.Item(id)
	assert.Equal(t, 1, it.ShareCount)

	// Clipboard failure falls back to showing the link.
	broken := f.session(Options{Clipboard: clipboardFunc(func(context.Context, string) error {
		return errors.New("denied")
	})})
	require.NoError(t, broken.Dispatch(ctx, SignedIn{UserID: "u2"}).Err)
	out = broken.Dispatch(ctx, ShareClicked{PostID: id})
	require.NoError(t, out.Err)
	assert.Equal(t, "Copy this link: "+embedRef, out.Message)
}

func TestSession_Delete(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	ctx := context.Background()
	require.NoError(t, f.repo.SetRole(ctx, "mod", domain.RoleAdmin))

	answer := false
	s := f.session(Options{Confirmer: confirmFunc(func(context.Context, string) (bool, error) { return answer, nil })})

	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "member"}).Err)
	id := loaded(t, s, true)
	out := s.Dispatch(ctx, DeleteClicked{PostID: id})
	assert.ErrorIs(t, out.Err, domain.ErrForbidden)
	assert.Equal(t, "Only admins can delete posts.", out.Message)

	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "mod"}).Err)
	out = s.Dispatch(ctx, DeleteClicked{PostID: id})
	assert.ErrorIs(t, out.Err, domain.ErrCancelled)
	assert.Empty(t, out.Message)
	assert.Len(t, s.Items(), 2)

	answer = true
	s.Dispatch(ctx, VisibilityChanged{PostID: id, Ratio: 1})
	require.Equal(t, id, s.ActivePost())

	// The upload's blob was never written, so its removal is a warning.
	out = s.Dispatch(ctx, DeleteClicked{PostID: loaded(t, s, false)})
	require.NoError(t, out.Err)
	assert.Contains(t, out.Message, "Post deleted with problems: media not removed")
	assert.Len(t, s.Items(), 1)

	out = s.Dispatch(ctx, DeleteClicked{PostID: id})
	require.NoError(t, out.Err)
	assert.Equal(t, "Post deleted.", out.Message)
	assert.Empty(t, s.Items())
	assert.Empty(t, s.ActivePost())
	_, ok := s.Media(id)
	assert.False(t, ok)
}

func TestSession_Playback(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	s := f.session(Options{})
	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, Refresh{}).Err)

	native, embed := loaded(t, s, false), loaded(t, s, true)
	_, isEmbed := mustMedia(t, s, embed).(*domain.EmbedMedia)
	assert.True(t, isEmbed)

	s.Dispatch(ctx, VisibilityChanged{PostID: native, Ratio: 0.9})
	assert.Equal(t, domain.DominantPlaying, s.Playback(native))

	require.NoError(t, s.Dispatch(ctx, TogglePlay{PostID: native}).Err)
	assert.Equal(t, domain.DominantPausedByUser, s.Playback(native))

	s.Dispatch(ctx, VisibilityChanged{PostID: native, Ratio: 0.2})
	s.Dispatch(ctx, VisibilityChanged{PostID: embed, Ratio: 0.95})
	assert.Equal(t, embed, s.ActivePost())
	assert.Equal(t, domain.BackgroundPaused, s.Playback(native))
	assert.Contains(t, mustMedia(t, s, embed).(*domain.EmbedMedia).Src(), "autoplay=1")

	require.NoError(t, s.Dispatch(ctx, ToggleMute{PostID: embed}).Err)
	assert.False(t, mustMedia(t, s, embed).Muted())

	out := s.Dispatch(ctx, TogglePlay{PostID: "missing"})
	assert.ErrorIs(t, out.Err, domain.ErrNotFound)
}

func TestSession_SubmitReloadsFeed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	s := f.session(Options{PageSize: 2})
	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, SignedIn{UserID: "u1"}).Err)
	require.NoError(t, s.Dispatch(ctx, ScrolledNearEnd{}).Err)
	require.True(t, s.Done())

	out := s.Dispatch(ctx, SubmitPost{Request: domain.SubmitRequest{
		Title:  "fresh",
		Upload: &domain.Upload{Filename: "fresh.mp4", ContentType: "video/mp4", Size: 5, Body: strings.NewReader("video")},
	}})
	require.NoError(t, out.Err)
	assert.Equal(t, "Video posted!", out.Message)
	assert.False(t, s.Done())
	assert.Equal(t, "fresh", s.Items()[0].Post.Title)
	assert.Len(t, s.Items(), 2)

	out = s.Dispatch(ctx, SubmitPost{Request: domain.SubmitRequest{ExternalURL: "https://example.com/video"}})
	assert.ErrorIs(t, out.Err, domain.ErrValidation)
	assert.Equal(t, "Invalid url: must be a valid YouTube video link.", out.Message)
}

func TestSession_HandleEvent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	s := f.session(Options{})
	require.NoError(t, s.Dispatch(context.Background(), Refresh{}).Err)
	id := s.Items()[0].Post.ID

	s.HandleEvent(domain.Event{Type: domain.EventLikesChanged, PostID: id, LikeCount: 3})
	it, _ := s.Item(id)
	assert.Equal(t, "3", it.LikeText())

	s.HandleEvent(domain.Event{Type: domain.EventPostDeleted, PostID: id})
	_, ok := s.Item(id)
	assert.False(t, ok)
	_, ok = s.Media(id)
	assert.False(t, ok)
}

func mustMedia(t *testing.T, s *Session, id string) domain.Media {
	t.Helper()
	m, ok := s.Media(id)
	require.True(t, ok)
	return m
}
