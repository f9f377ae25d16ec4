package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
)

// DefaultMaxUploadBytes caps uploaded video size.
const DefaultMaxUploadBytes = 200 << 20

// Upload is a video file sent by the user.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SubmitRequest creates a post from either an upload or an external URL.
// Exactly one of Upload and ExternalURL must be set.
type SubmitRequest struct {
	UserID      string
	Title       string
	Description string
	Upload      *Upload
	ExternalURL string
}

// SubmitService validates and creates posts.
type SubmitService struct {
	posts    PostStore
	users    UserStore
	blobs    BlobStore
	notifier Notifier
	logger   *slog.Logger

	maxUploadBytes int64
	now            func() time.Time
}

// NewSubmitService creates a SubmitService. maxUploadBytes <= 0 uses
// DefaultMaxUploadBytes; a nil notifier drops events.
func NewSubmitService(posts PostStore, users UserStore, blobs BlobStore, notifier Notifier, maxUploadBytes int64, logger *slog.Logger) *SubmitService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SubmitService{
		posts:          posts,
		users:          users,
		blobs:          blobs,
		notifier:       notifier,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// Submit validates req, stores the media when it is an upload, creates the
// post and credits the author. A failed credit is logged and does not fail
// the submission.
func (s *SubmitService) Submit(ctx context.Context, req SubmitRequest) (*Post, error) {
	if req.UserID == "" {
		return nil, ErrAuthRequired
	}

	newPost := NewPost{
		AuthorID:    req.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
	}

	switch {
	case req.Upload != nil && req.ExternalURL != "":
		return nil, Invalid("source", "choose either an upload or a link")
	case req.Upload != nil:
		ref, err := s.storeUpload(ctx, req.UserID, req.Upload)
		if err != nil {
			return nil, err
		}
		newPost.MediaReference = ref
	case req.ExternalURL != "":
		u := strings.TrimSpace(req.ExternalURL)
		if !IsExternalEmbedURL(u) {
			return nil, Invalid("url", "must be a valid YouTube video link")
		}
		newPost.MediaReference = u
		newPost.IsExternalEmbed = true
	default:
		return nil, Invalid("source", "a video file or link is required")
	}

	post, err := s.posts.CreatePost(ctx, newPost)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	s.logger.Info("post created", "post", post.ID, "author", post.AuthorID, "external", post.IsExternalEmbed)
	s.notifier.Notify(ctx, Event{Type: EventPostCreated, PostID: post.ID})

	entry := ScoreLedgerEntry{Timestamp: s.now().UTC(), Delta: 1, Reason: ReasonPostCreated}
	if err := s.users.RecordPostCreated(ctx, req.UserID, entry); err != nil {
		s.logger.Error("failed to credit author", "post", post.ID, "author", req.UserID, "error", err)
	}

	return post, nil
}

func (s *SubmitService) storeUpload(ctx context.Context, userID string, up *Upload) (string, error) {
	if !strings.HasPrefix(up.ContentType, "video/") {
		return "", Invalid("file", "please choose a video file")
	}
	// A negative Size means the caller does not know it; the body is
	// counted either way.
	if up.Size > s.maxUploadBytes {
		return "", s.tooLarge()
	}
	name := path.Base(strings.ReplaceAll(up.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", Invalid("file", "missing file name")
	}

	blobPath := fmt.Sprintf("videos/%s/%d_%s", userID, s.now().UnixMilli(), name)
	body := &capReader{r: up.Body, max: s.maxUploadBytes, err: s.tooLarge()}
	ref, err := s.blobs.Put(ctx, blobPath, up.ContentType, body)
	if body.exceeded() {
		// Put failed on the oversize body, or the store swallowed the read
		// error; either way the blob must not survive.
		if err == nil {
			if derr := s.blobs.Delete(ctx, blobPath); derr != nil {
				s.logger.Error("failed to remove oversize upload", "path", blobPath, "error", derr)
			}
		}
		return "", body.err
	}
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", blobPath, err)
	}
	return ref, nil
}

func (s *SubmitService) tooLarge() error {
	return Invalid("file", fmt.Sprintf("video exceeds %dMB", s.maxUploadBytes>>20))
}

// capReader fails with err once more than max bytes have been read.
type capReader struct {
	r    io.Reader
	max  int64
	read int64
	err  error
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.exceeded() {
		return 0, c.err
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.exceeded() {
		return n, c.err
	}
	return n, err
}

func (c *capReader) exceeded() bool { return c.read > c.max }
