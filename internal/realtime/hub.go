// Package realtime pushes post change events to connected clients.
//
// The Hub fans events out to subscriber channels without blocking: when a
// subscriber's channel is full the event is dropped for that subscriber. A
// client that missed an event sees the current counts on its next page load.
package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/blackmichael/video-feed/internal/domain"
)

var (
	// ErrSubscriberExists is returned when Subscribe is called with a duplicate id.
	ErrSubscriberExists = errors.New("subscriber id already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe is called with an unknown id.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrHubClosed is returned by operations on a closed hub.
	ErrHubClosed = errors.New("hub is closed")
)

// HubStats is a snapshot of delivery counters.
type HubStats struct {
	Subscribers    int
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
}

// Hub distributes events to subscribers with a drop policy.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan<- domain.Event
	closed bool

	published atomic.Uint64
	sent      atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan<- domain.Event)}
}

// Subscribe registers ch under id.
func (h *Hub) Subscribe(id string, ch chan<- domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.subs[id]; ok {
		return ErrSubscriberExists
	}
	h.subs[id] = ch
	return nil
}

// Unsubscribe removes the subscriber. The channel is not closed.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.subs[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(h.subs, id)
	return nil
}

// Publish sends event to every subscriber without blocking. Events
// published after Close are discarded.
func (h *Hub) Publish(event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	for _, ch := range h.subs {
		select {
		case ch <- event:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// Notify implements domain.Notifier.
func (h *Hub) Notify(_ context.Context, event domain.Event) {
	h.Publish(event)
}

// Stats returns the current counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()
	return HubStats{
		Subscribers:    n,
		TotalPublished: h.published.Load(),
		TotalSent:      h.sent.Load(),
		TotalDropped:   h.dropped.Load(),
	}
}

// Close drops all subscribers. Further Subscribe calls fail.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.closed = true
	h.subs = nil
	return nil
}
