package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DeleteReport describes a completed post removal. Warnings lists the
// follow-up steps that failed after the post itself was deleted.
type DeleteReport struct {
	PostID         string
	AuthorID       string
	BlobDeleted    bool
	LedgerRecorded bool
	Warnings       []string
}

// Clean reports whether every follow-up step succeeded.
func (r *DeleteReport) Clean() bool { return len(r.Warnings) == 0 }

// ModerationService removes posts on behalf of admins.
type ModerationService struct {
	posts    PostStore
	users    UserStore
	blobs    BlobStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewModerationService creates a ModerationService. A nil notifier drops events.
func NewModerationService(posts PostStore, users UserStore, blobs BlobStore, notifier Notifier, logger *slog.Logger) *ModerationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ModerationService{
		posts:    posts,
		users:    users,
		blobs:    blobs,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CanModerate reports whether userID holds the admin role.
func (s *ModerationService) CanModerate(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user.IsAdmin(), nil
}

// DeletePost removes postID if requesterID is an admin. Everything the
// compensation steps need is read before the post is deleted. Once the
// delete succeeds, blob removal and the author's penalty are best effort:
// their failures are logged and returned as report warnings. confirm may be
// nil when the caller has already confirmed.
func (s *ModerationService) DeletePost(ctx context.Context, postID, requesterID string, confirm Confirmer) (*DeleteReport, error) {
	if requesterID == "" {
		return nil, ErrAuthRequired
	}

	admin, err := s.CanModerate(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, ErrForbidden
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}

	if confirm != nil {
		ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete %q by %s?", post.Title, post.AuthorName()))
		if err != nil {
			return nil, fmt.Errorf("confirm delete: %w", err)
		}
		if !ok {
			return nil, ErrCancelled
		}
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return nil, fmt.Errorf("delete post %s: %w", postID, err)
	}
	s.logger.Info("post deleted", "post", postID, "author", post.AuthorID, "by", requesterID)
	s.notifier.Notify(ctx, Event{Type: EventPostDeleted, PostID: postID})

	report := &DeleteReport{PostID: postID, AuthorID: post.AuthorID}

	if !post.IsExternalEmbed && post.MediaReference != "" {
		if err := s.deleteBlob(ctx, post.MediaReference); err != nil {
			s.logger.Error("failed to delete post media", "post", postID, "media", post.MediaReference, "error", err)
			report.Warnings = append(report.Warnings, "media not removed: "+err.Error())
		} else {
			report.BlobDeleted = true
		}
	}

	if post.AuthorID != "" {
		entry := ScoreLedgerEntry{Timestamp: s.now(), Delta: -1, Reason: ReasonPostRemoved}
		if err := s.users.RecordPostRemoved(ctx, post.AuthorID, entry); err != nil {
			s.logger.Error("failed to record penalty", "post", postID, "author", post.AuthorID, "error", err)
			report.Warnings = append(report.Warnings, "author penalty not recorded: "+err.Error())
		} else {
			report.LedgerRecorded = true
		}
	}

	return report, nil
}

func (s *ModerationService) deleteBlob(ctx context.Context, mediaReference string) error {
	path, err := s.blobs.PathFromURL(mediaReference)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}
