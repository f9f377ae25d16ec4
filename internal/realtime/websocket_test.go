package realtime

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_ForwardsWatchedAndCreated(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := httptest.NewServer(NewHandler(hub, []string{"*"}, testLogger()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	waitFor(t, func() bool { return hub.Stats().Subscribers == 1 })
	require.NoError(t, conn.WriteJSON(watchMessage{Watch: []string{"p1"}}))

	// The watch message is applied asynchronously; keep publishing until it
	// takes effect.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make(chan domain.Event, 1)
	go func() {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err == nil {
			got <- ev
		}
		close(got)
	}()

	want := domain.Event{Type: domain.EventLikesChanged, PostID: "p1", LikeCount: 2}
	var ev domain.Event
	waitFor(t, func() bool {
		hub.Publish(domain.Event{Type: domain.EventLikesChanged, PostID: "other", LikeCount: 9})
		hub.Publish(want)
		select {
		case ev = <-got:
			return true
		default:
			return false
		}
	})
	assert.Equal(t, want, ev)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	hub.Publish(domain.Event{Type: domain.EventPostCreated, PostID: "new"})
	var created domain.Event
	for {
		require.NoError(t, conn.ReadJSON(&created))
		if created.Type == domain.EventPostCreated {
			break
		}
		assert.Equal(t, "p1", created.PostID)
	}
	assert.Equal(t, "new", created.PostID)

	conn.Close()
	waitFor(t, func() bool { return hub.Stats().Subscribers == 0 })
}

func TestHandler_RejectsUnknownOrigin(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := httptest.NewServer(NewHandler(hub, []string{"https://app.example"}, testLogger()))
	defer srv.Close()

	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
