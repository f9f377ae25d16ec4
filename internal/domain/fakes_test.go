package domain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory PostStore and UserStore.
type memStore struct {
	mu    sync.Mutex
	posts map[string]*Post
	users map[string]*UserRecord
	seq   int
	clock time.Time

	// fail maps an operation name to the error it returns.
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		posts: make(map[string]*Post),
		users: make(map[string]*UserRecord),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		fail:  make(map[string]error),
	}
}

func (m *memStore) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *memStore) check(op string) error {
	if err, ok := m.fail[op]; ok {
		return err
	}
	return nil
}

func (m *memStore) CreatePost(_ context.Context, np NewPost) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreatePost"); err != nil {
		return nil, err
	}
	m.seq++
	m.clock = m.clock.Add(time.Second)
	p := &Post{
		ID:              fmt.Sprintf("post-%03d", m.seq),
		AuthorID:        np.AuthorID,
		Title:           np.Title,
		Description:     np.Description,
		MediaReference:  np.MediaReference,
		IsExternalEmbed: np.IsExternalEmbed,
		CreatedAt:       m.clock,
	}
	m.posts[p.ID] = p
	cp := *p
	return &cp, nil
}

// put inserts a post as is.
func (m *memStore) put(p Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = &p
}

func (m *memStore) GetPost(_ context.Context, id string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("GetPost"); err != nil {
		return nil, err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.LikedBy = append([]string(nil), p.LikedBy...)
	cp.SharedBy = append([]string(nil), p.SharedBy...)
	return &cp, nil
}

func (m *memStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("DeletePost"); err != nil {
		return err
	}
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memStore) GetFeedPosts(_ context.Context, limit int, after *Cursor) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("GetFeedPosts"); err != nil {
		return nil, err
	}
	all := make([]Post, 0, len(m.posts))
	for _, p := range m.posts {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	var out []Post
	for _, p := range all {
		if after != nil {
			older := p.CreatedAt.Before(after.CreatedAt) ||
				(p.CreatedAt.Equal(after.CreatedAt) && p.ID < after.ID)
			if !older {
				continue
			}
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) AddLike(_ context.Context, postID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AddLike"); err != nil {
		return 0, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return 0, ErrNotFound
	}
	if !p.LikedByUser(userID) {
		p.LikedBy = append(p.LikedBy, userID)
	}
	return len(p.LikedBy), nil
}

func (m *memStore) RemoveLike(_ context.Context, postID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RemoveLike"); err != nil {
		return 0, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return 0, ErrNotFound
	}
	kept := p.LikedBy[:0]
	for _, id := range p.LikedBy {
		if id != userID {
			kept = append(kept, id)
		}
	}
	p.LikedBy = kept
	return len(p.LikedBy), nil
}

func (m *memStore) AddShare(_ context.Context, postID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AddShare"); err != nil {
		return 0, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return 0, ErrNotFound
	}
	for _, id := range p.SharedBy {
		if id == userID {
			return p.ShareCount, ErrAlreadyShared
		}
	}
	p.SharedBy = append(p.SharedBy, userID)
	p.ShareCount++
	return p.ShareCount, nil
}

func (m *memStore) UploadedMedia(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UploadedMedia"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var refs []string
	for _, p := range m.posts {
		if p.IsExternalEmbed || p.MediaReference == "" || seen[p.MediaReference] {
			continue
		}
		seen[p.MediaReference] = true
		refs = append(refs, p.MediaReference)
	}
	return refs, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("GetUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	cp.Ledger = append([]ScoreLedgerEntry(nil), u.Ledger...)
	return &cp, nil
}

func (m *memStore) user(id string) *UserRecord {
	u, ok := m.users[id]
	if !ok {
		u = &UserRecord{ID: id}
		m.users[id] = u
	}
	return u
}

func (m *memStore) SetRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(id).Role = role
	return nil
}

func (m *memStore) RecordPostCreated(_ context.Context, id string, e ScoreLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RecordPostCreated"); err != nil {
		return err
	}
	u := m.user(id)
	u.VideosCount++
	u.Ledger = append(u.Ledger, e)
	return nil
}

func (m *memStore) RecordPostRemoved(_ context.Context, id string, e ScoreLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RecordPostRemoved"); err != nil {
		return err
	}
	u := m.user(id)
	u.LostVideos++
	u.Ledger = append(u.Ledger, e)
	return nil
}

// memBlobs is an in-memory BlobStore using the same URL shape as the
// filesystem store.
type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	mod     map[string]time.Time
	failDel error
}

const memBlobBase = "http://blobs.test"

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte), mod: make(map[string]time.Time)}
}

func (b *memBlobs) Put(_ context.Context, path, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[path] = buf.Bytes()
	b.mod[path] = time.Now()
	return b.URL(path), nil
}

func (b *memBlobs) putAt(path string, mod time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[path] = []byte("x")
	b.mod[path] = mod
}

func (b *memBlobs) has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[path]
	return ok
}

func (b *memBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDel != nil {
		return b.failDel
	}
	if _, ok := b.data[path]; !ok {
		return ErrNotFound
	}
	delete(b.data, path)
	delete(b.mod, path)
	return nil
}

func (b *memBlobs) List(_ context.Context, prefix string) ([]BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []BlobInfo
	for p, d := range b.data {
		if strings.HasPrefix(p, prefix) {
			out = append(out, BlobInfo{Path: p, Size: int64(len(d)), ModTime: b.mod[p]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (b *memBlobs) URL(path string) string {
	return memBlobBase + "/o/" + strings.ReplaceAll(path, "/", "%2F") + "?alt=media"
}

func (b *memBlobs) PathFromURL(rawURL string) (string, error) {
	_, rest, ok := strings.Cut(rawURL, "/o/")
	if !ok {
		return "", Invalid("media url", "not a blob url")
	}
	rest, _, _ = strings.Cut(rest, "?")
	return strings.ReplaceAll(rest, "%2F", "/"), nil
}

// recorder collects notified events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type confirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }
