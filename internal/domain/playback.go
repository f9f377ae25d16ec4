package domain

import (
	"fmt"
	"sync"
)

// DefaultDominanceThreshold is the visible fraction at which a feed item
// becomes the dominant item.
const DefaultDominanceThreshold = 0.8

// PlaybackState is the playback state of one feed item.
type PlaybackState int

const (
	// Idle items have never been dominant.
	Idle PlaybackState = iota
	DominantPlaying
	DominantPausedByUser
	BackgroundPaused
)

func (s PlaybackState) String() string {
	switch s {
	case Idle:
		return "idle"
	case DominantPlaying:
		return "dominant-playing"
	case DominantPausedByUser:
		return "dominant-paused-by-user"
	case BackgroundPaused:
		return "background-paused"
	default:
		return fmt.Sprintf("PlaybackState(%d)", int(s))
	}
}

// Media is a playable element in the feed.
type Media interface {
	Play()
	Pause()
	SetMuted(muted bool)
	Muted() bool

	// Controllable reports whether the user can play/pause the element
	// directly. Embedded players are driven only by visibility.
	Controllable() bool
}

// NativeMedia is a directly playable file.
type NativeMedia struct {
	playing bool
	muted   bool
}

// NewNativeMedia returns a paused, muted element.
func NewNativeMedia() *NativeMedia { return &NativeMedia{muted: true} }

func (m *NativeMedia) Play()               { m.playing = true }
func (m *NativeMedia) Pause()              { m.playing = false }
func (m *NativeMedia) SetMuted(muted bool) { m.muted = muted }
func (m *NativeMedia) Muted() bool         { return m.muted }
func (m *NativeMedia) Controllable() bool  { return true }
func (m *NativeMedia) Playing() bool       { return m.playing }

// EmbedMedia drives a third-party player by rewriting its URL parameters.
type EmbedMedia struct {
	src string
}

// NewEmbedMedia wraps a player URL such as the one built by EmbedURL.
func NewEmbedMedia(src string) *EmbedMedia { return &EmbedMedia{src: src} }

// Src is the current player URL.
func (m *EmbedMedia) Src() string { return m.src }

func (m *EmbedMedia) Play()  { m.src = setQueryParam(m.src, "autoplay", "1") }
func (m *EmbedMedia) Pause() { m.src = setQueryParam(m.src, "autoplay", "0") }

func (m *EmbedMedia) SetMuted(muted bool) {
	v := "0"
	if muted {
		v = "1"
	}
	m.src = setQueryParam(m.src, "mute", v)
}

// Muted treats a missing mute parameter as unmuted, as the players do.
func (m *EmbedMedia) Muted() bool        { return queryParam(m.src, "mute") == "1" }
func (m *EmbedMedia) Controllable() bool { return false }

type playbackItem struct {
	media   Media
	state   PlaybackState
	visible bool
}

// PlaybackCoordinator keeps exactly one feed item active. The dominant
// visible item autoplays muted; every other item is paused.
type PlaybackCoordinator struct {
	threshold float64

	mu     sync.Mutex
	items  map[string]*playbackItem
	active string
}

// NewPlaybackCoordinator returns a coordinator using threshold as the
// dominance ratio. A threshold outside (0, 1] uses DefaultDominanceThreshold.
func NewPlaybackCoordinator(threshold float64) *PlaybackCoordinator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDominanceThreshold
	}
	return &PlaybackCoordinator{
		threshold: threshold,
		items:     make(map[string]*playbackItem),
	}
}

// Register adds a feed item. Its media starts paused and muted.
func (c *PlaybackCoordinator) Register(id string, media Media) {
	c.mu.Lock()
	defer c.mu.Unlock()
	media.Pause()
	media.SetMuted(true)
	c.items[id] = &playbackItem{media: media, state: Idle}
}

// Unregister removes a feed item. If it was active, no item is active until
// the next visibility change.
func (c *PlaybackCoordinator) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[id]; ok {
		it.media.Pause()
		delete(c.items, id)
	}
	if c.active == id {
		c.active = ""
	}
}

// Observe reports the visible fraction of an item.
func (c *PlaybackCoordinator) Observe(id string, ratio float64) {
	c.OnVisibilityChanged(id, ratio >= c.threshold)
}

// OnVisibilityChanged applies a dominance change for id.
func (c *PlaybackCoordinator) OnVisibilityChanged(id string, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return
	}

	it.visible = visible
	if !visible {
		it.media.Pause()
		if it.state != Idle {
			it.state = BackgroundPaused
		}
		return
	}

	if id == c.active && (it.state == DominantPlaying || it.state == DominantPausedByUser) {
		return
	}
	c.demoteActiveLocked(id)

	it.media.SetMuted(true)
	it.media.Play()
	it.state = DominantPlaying
	c.active = id
}

// TogglePlayPause is a user tap on an item. Only controllable media react,
// and an item that is not visible can be paused but never started. A started
// item becomes active.
func (c *PlaybackCoordinator) TogglePlayPause(id string) (PlaybackState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return Idle, fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	if !it.media.Controllable() {
		return it.state, nil
	}

	if it.state == DominantPlaying {
		it.media.Pause()
		it.state = DominantPausedByUser
		return it.state, nil
	}
	if !it.visible {
		return it.state, nil
	}
	c.demoteActiveLocked(id)
	it.media.Play()
	it.state = DominantPlaying
	c.active = id
	return it.state, nil
}

// ToggleMute flips the mute state of an item and returns the new state.
func (c *PlaybackCoordinator) ToggleMute(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return false, fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	muted := !it.media.Muted()
	it.media.SetMuted(muted)
	return muted, nil
}

// Active returns the id of the active item, or "".
func (c *PlaybackCoordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the playback state of id.
func (c *PlaybackCoordinator) State(id string) PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[id]; ok {
		return it.state
	}
	return Idle
}

// demoteActiveLocked pauses and re-mutes the current active item unless it is next.
func (c *PlaybackCoordinator) demoteActiveLocked(next string) {
	if c.active == "" || c.active == next {
		return
	}
	if prev, ok := c.items[c.active]; ok {
		prev.media.Pause()
		prev.media.SetMuted(true)
		prev.state = BackgroundPaused
	}
}
