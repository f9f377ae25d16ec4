package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 10 * time.Second
	maxClientMessage = 64 << 10
)

// watchMessage is sent by the client whenever its visible page changes.
type watchMessage struct {
	Watch []string `json:"watch"`
}

// Handler upgrades requests to websockets and streams events for the posts
// the client is watching. post.created events are always forwarded so the
// client can offer a refresh.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler returns a websocket handler. allowedOrigins lists browser
// origins that may connect; "*" allows any.
func NewHandler(hub *Hub, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	events := make(chan domain.Event, subscriberBuffer)
	if err := h.hub.Subscribe(id, events); err != nil {
		h.logger.Error("failed to subscribe websocket client", "error", err)
		return
	}
	defer h.hub.Unsubscribe(id)

	h.logger.Info("websocket client connected", "subscriber", id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var watched watchSet
	go func() {
		defer cancel()
		conn.SetReadLimit(maxClientMessage)
		for {
			var msg watchMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("websocket read ended", "subscriber", id, "error", err)
				}
				return
			}
			watched.set(msg.Watch)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket client disconnected", "subscriber", id)
			return
		case ev := <-events:
			if ev.Type != domain.EventPostCreated && !watched.has(ev.PostID) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("websocket write failed", "subscriber", id, "error", err)
				return
			}
		}
	}
}

type watchSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func (w *watchSet) set(ids []string) {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	w.mu.Lock()
	w.ids = m
	w.mu.Unlock()
}

func (w *watchSet) has(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.ids[id]
	return ok
}
