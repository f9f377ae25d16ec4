package domain

import (
	"context"
	"io"
	"time"
)

// PostStore defines persistence operations for posts. Implementations must
// make AddLike, RemoveLike and AddShare atomic with respect to concurrent
// callers.
type PostStore interface {
	// CreatePost inserts a post, assigning its ID and CreatedAt.
	CreatePost(ctx context.Context, post NewPost) (*Post, error)

	// GetPost returns the post with the given id or ErrNotFound.
	GetPost(ctx context.Context, id string) (*Post, error)

	// DeletePost removes the post and its like/share sets. Returns ErrNotFound
	// if no such post exists.
	DeletePost(ctx context.Context, id string) error

	// GetFeedPosts returns up to limit posts ordered by CreatedAt descending,
	// ties broken by ID descending, strictly after the given cursor (nil for
	// the newest posts).
	GetFeedPosts(ctx context.Context, limit int, after *Cursor) ([]Post, error)

	// AddLike adds userID to the post's LikedBy set. Adding an existing
	// member is a no-op. Returns the resulting like count.
	AddLike(ctx context.Context, postID, userID string) (int, error)

	// RemoveLike removes userID from LikedBy. Removing a non-member is a
	// no-op. Returns the resulting like count.
	RemoveLike(ctx context.Context, postID, userID string) (int, error)

	// AddShare adds userID to SharedBy and increments ShareCount in one
	// atomic step. Returns ErrAlreadyShared if userID is already a member.
	AddShare(ctx context.Context, postID, userID string) (int, error)

	// UploadedMedia returns the distinct media references of every post that
	// is not an external embed.
	UploadedMedia(ctx context.Context) ([]string, error)
}

// UserStore defines persistence operations for per-user records.
type UserStore interface {
	// GetUser returns the user record with its ledger or ErrNotFound.
	GetUser(ctx context.Context, id string) (*UserRecord, error)

	// SetRole creates the user record if needed and sets its role.
	SetRole(ctx context.Context, id, role string) error

	// RecordPostCreated increments VideosCount and appends entry, creating
	// the record if it does not exist.
	RecordPostCreated(ctx context.Context, userID string, entry ScoreLedgerEntry) error

	// RecordPostRemoved increments LostVideos and appends entry, creating
	// the record if it does not exist.
	RecordPostRemoved(ctx context.Context, userID string, entry ScoreLedgerEntry) error
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// BlobStore stores uploaded media. Paths look like
// videos/{userID}/{unixMillis}_{filename}.
type BlobStore interface {
	// Put stores r at path and returns a durable retrievable URL.
	Put(ctx context.Context, path, contentType string, r io.Reader) (string, error)

	// Delete removes the blob at path. Returns ErrNotFound if absent.
	Delete(ctx context.Context, path string) error

	// List returns blobs whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)

	// URL returns the retrievable URL for path.
	URL(path string) string

	// PathFromURL extracts the blob path embedded in a URL returned by Put.
	PathFromURL(rawURL string) (string, error)
}

// Notifier receives post change events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Confirmer asks the acting user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
