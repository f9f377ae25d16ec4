package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// MaxPageSize bounds a single feed request.
const MaxPageSize = 100

// FeedService serves pages of the post feed in newest-first order.
type FeedService struct {
	posts  PostStore
	logger *slog.Logger
}

// NewFeedService creates a FeedService backed by posts.
func NewFeedService(posts PostStore, logger *slog.Logger) *FeedService {
	return &FeedService{
		posts:  posts,
		logger: logger,
	}
}

// FetchPage returns up to pageSize posts strictly after cursor. An empty
// cursor starts from the newest post. IsLastPage is set when the store
// returned fewer than pageSize posts.
func (s *FeedService) FetchPage(ctx context.Context, cursor string, pageSize int) (*FeedPage, error) {
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, Invalid("page size", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}

	var after *Cursor
	if cursor != "" {
		c, err := ParseCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	s.logger.Debug("fetching feed page", "cursor", cursor, "page_size", pageSize)

	posts, err := s.posts.GetFeedPosts(ctx, pageSize, after)
	if err != nil {
		s.logger.Error("feed query failed", "cursor", cursor, "page_size", pageSize, "error", err)
		return nil, fmt.Errorf("get feed posts: %w", err)
	}

	page := &FeedPage{
		Posts:      posts,
		IsLastPage: len(posts) < pageSize,
	}
	if len(posts) > 0 {
		page.Cursor = CursorFor(&posts[len(posts)-1])
	}
	return page, nil
}

// GetPost returns a single post.
func (s *FeedService) GetPost(ctx context.Context, id string) (*Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return post, nil
}
