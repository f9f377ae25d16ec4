package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	NowLiked  bool
	LikeCount int
}

// ShareResult is the outcome of a share. MediaReference is what the caller
// copies to the clipboard or shows to the user.
type ShareResult struct {
	ShareCount     int
	MediaReference string
}

// EngagementService applies likes and shares.
type EngagementService struct {
	posts    PostStore
	notifier Notifier
	logger   *slog.Logger
}

// NewEngagementService creates an EngagementService. A nil notifier drops events.
func NewEngagementService(posts PostStore, notifier Notifier, logger *slog.Logger) *EngagementService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &EngagementService{posts: posts, notifier: notifier, logger: logger}
}

// Like toggles userID's like on postID. currentlyLiked is the caller's view
// of the toggle: true removes the like, false adds it. The store operation
// is idempotent, so a stale view cannot create duplicates.
func (s *EngagementService) Like(ctx context.Context, postID, userID string, currentlyLiked bool) (LikeResult, error) {
	if userID == "" {
		return LikeResult{}, ErrAuthRequired
	}

	var (
		count int
		err   error
	)
	if currentlyLiked {
		count, err = s.posts.RemoveLike(ctx, postID, userID)
	} else {
		count, err = s.posts.AddLike(ctx, postID, userID)
	}
	if err != nil {
		return LikeResult{}, fmt.Errorf("toggle like on %s: %w", postID, err)
	}

	s.logger.Debug("like toggled", "post", postID, "user", userID, "liked", !currentlyLiked, "count", count)
	s.notifier.Notify(ctx, Event{Type: EventLikesChanged, PostID: postID, LikeCount: count})

	return LikeResult{NowLiked: !currentlyLiked, LikeCount: count}, nil
}

// Share records a one-time share of postID by userID. A second share by the
// same user fails with ErrAlreadyShared and leaves ShareCount unchanged.
func (s *EngagementService) Share(ctx context.Context, postID, userID string) (ShareResult, error) {
	if userID == "" {
		return ShareResult{}, ErrAuthRequired
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return ShareResult{}, fmt.Errorf("get post %s: %w", postID, err)
	}

	count, err := s.posts.AddShare(ctx, postID, userID)
	if err != nil {
		return ShareResult{}, fmt.Errorf("share %s: %w", postID, err)
	}

	s.logger.Info("post shared", "post", postID, "user", userID, "share_count", count)
	s.notifier.Notify(ctx, Event{Type: EventSharesChanged, PostID: postID, ShareCount: count})

	return ShareResult{ShareCount: count, MediaReference: post.MediaReference}, nil
}
