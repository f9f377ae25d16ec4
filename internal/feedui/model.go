package feedui

import (
	"strconv"
	"sync"

	"github.com/blackmichael/video-feed/internal/domain"
)

type action int

const (
	actionLike action = iota
	actionShare
	actionDelete
)

type pendingKey struct {
	postID string
	action action
}

// Item is one post as the viewer sees it.
type Item struct {
	Post       domain.Post
	LikedByMe  bool
	LikeCount  int
	ShareCount int
}

// LikeText is the like label; empty when nobody likes the post.
func (i Item) LikeText() string { return CountText(i.LikeCount) }

// ShareText is the share label; empty when nobody shared the post.
func (i Item) ShareText() string { return CountText(i.ShareCount) }

// CountText renders a counter, hiding zero.
func CountText(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// FeedModel is the viewer-local copy of the loaded feed. It applies
// optimistic updates and guards against duplicate in-flight actions on the
// same post.
type FeedModel struct {
	mu      sync.Mutex
	order   []string
	items   map[string]*Item
	pending map[pendingKey]struct{}
}

// NewFeedModel returns an empty model.
func NewFeedModel() *FeedModel {
	return &FeedModel{
		items:   make(map[string]*Item),
		pending: make(map[pendingKey]struct{}),
	}
}

// Append adds posts in order, skipping ids already loaded. It returns the
// posts that were actually added.
func (m *FeedModel) Append(posts []domain.Post, viewer string) []domain.Post {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added []domain.Post
	for _, p := range posts {
		if _, ok := m.items[p.ID]; ok {
			continue
		}
		m.items[p.ID] = &Item{
			Post:       p,
			LikedByMe:  p.LikedByUser(viewer),
			LikeCount:  p.LikeCount(),
			ShareCount: p.ShareCount,
		}
		m.order = append(m.order, p.ID)
		added = append(added, p)
	}
	return added
}

// Clear drops every item and pending action and returns the ids it held.
func (m *FeedModel) Clear() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.order
	m.order = nil
	m.items = make(map[string]*Item)
	m.pending = make(map[pendingKey]struct{})
	return ids
}

// Items returns a snapshot in feed order.
func (m *FeedModel) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.items[id])
	}
	return out
}

// Item returns a snapshot of one item.
func (m *FeedModel) Item(id string) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Len returns the number of loaded items.
func (m *FeedModel) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Remove drops id from the feed.
func (m *FeedModel) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

func (m *FeedModel) removeLocked(id string) bool {
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// begin marks an action on id as pending. It returns false when the post is
// unknown or the same action is already pending.
func (m *FeedModel) begin(id string, a action) (*Item, bool) {
	it, ok := m.items[id]
	if !ok {
		return nil, false
	}
	key := pendingKey{postID: id, action: a}
	if _, busy := m.pending[key]; busy {
		return nil, false
	}
	m.pending[key] = struct{}{}
	return it, true
}

func (m *FeedModel) end(id string, a action) {
	delete(m.pending, pendingKey{postID: id, action: a})
}

// BeginLike applies the optimistic toggle and returns the state before it.
// ok is false when a like on this post is already pending.
func (m *FeedModel) BeginLike(id string) (wasLiked bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.begin(id, actionLike)
	if !ok {
		return false, false
	}
	wasLiked = it.LikedByMe
	it.LikedByMe = !wasLiked
	if wasLiked {
		it.LikeCount = max(it.LikeCount-1, 0)
	} else {
		it.LikeCount++
	}
	return wasLiked, true
}

// CompleteLike replaces the optimistic values with the store's.
func (m *FeedModel) CompleteLike(id string, res domain.LikeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.end(id, actionLike)
	if it, ok := m.items[id]; ok {
		it.LikedByMe = res.NowLiked
		it.LikeCount = res.LikeCount
	}
}

// RevertLike undoes the optimistic toggle after a failure.
func (m *FeedModel) RevertLike(id string, wasLiked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.end(id, actionLike)
	it, ok := m.items[id]
	if !ok || it.LikedByMe == wasLiked {
		return
	}
	it.LikedByMe = wasLiked
	if wasLiked {
		it.LikeCount++
	} else {
		it.LikeCount = max(it.LikeCount-1, 0)
	}
}

// BeginShare marks a share as pending.
func (m *FeedModel) BeginShare(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.begin(id, actionShare)
	return ok
}

// EndShare clears the pending share and, when count >= 0, stores it.
func (m *FeedModel) EndShare(id string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.end(id, actionShare)
	if it, ok := m.items[id]; ok && count >= 0 {
		it.ShareCount = count
	}
}

// BeginDelete marks a delete as pending.
func (m *FeedModel) BeginDelete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.begin(id, actionDelete)
	return ok
}

// EndDelete clears the pending delete.
func (m *FeedModel) EndDelete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.end(id, actionDelete)
}

// ApplyEvent folds a realtime notification into the model. Counter events
// for a post with a pending like are ignored; the like's own result wins.
func (m *FeedModel) ApplyEvent(e domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[e.PostID]
	if !ok {
		return
	}
	switch e.Type {
	case domain.EventLikesChanged:
		if _, busy := m.pending[pendingKey{postID: e.PostID, action: actionLike}]; !busy {
			it.LikeCount = e.LikeCount
		}
	case domain.EventSharesChanged:
		it.ShareCount = e.ShareCount
	case domain.EventPostDeleted:
		m.removeLocked(e.PostID)
	}
}
