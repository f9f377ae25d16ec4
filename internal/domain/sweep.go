package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// mediaPrefix is where uploaded videos live in the blob store.
const mediaPrefix = "videos/"

// SweepService removes uploaded media that no post references, such as
// blobs left behind when a post delete could not remove its media.
type SweepService struct {
	posts  PostStore
	blobs  BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSweepService creates a SweepService.
func NewSweepService(posts PostStore, blobs BlobStore, logger *slog.Logger) *SweepService {
	return &SweepService{posts: posts, blobs: blobs, logger: logger, now: time.Now}
}

// StartSweepJob runs a background loop that removes orphaned media older
// than grace. It runs immediately on start and then repeats at the given
// interval. It blocks until ctx is cancelled.
func (s *SweepService) StartSweepJob(ctx context.Context, interval, grace time.Duration) {
	s.runSweep(ctx, grace)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx, grace)
		}
	}
}

func (s *SweepService) runSweep(ctx context.Context, grace time.Duration) {
	deleted, err := s.Sweep(ctx, grace)
	if err != nil {
		s.logger.Error("media sweep failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("media sweep complete", "deleted", deleted)
	}
}

// Sweep deletes unreferenced media older than grace and returns how many
// blobs were removed. The grace period protects uploads whose post has not
// been created yet.
//
// References are compared by blob path, not by URL, so posts created under
// a different public base URL still protect their media.
func (s *SweepService) Sweep(ctx context.Context, grace time.Duration) (int, error) {
	referenced, err := s.referencedPaths(ctx)
	if err != nil {
		return 0, err
	}

	blobs, err := s.blobs.List(ctx, mediaPrefix)
	if err != nil {
		return 0, fmt.Errorf("list media: %w", err)
	}

	cutoff := s.now().Add(-grace)
	deleted := 0
	for _, b := range blobs {
		if b.ModTime.After(cutoff) || referenced[b.Path] {
			continue
		}
		if err := s.blobs.Delete(ctx, b.Path); err != nil {
			s.logger.Warn("failed to delete orphaned media", "path", b.Path, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *SweepService) referencedPaths(ctx context.Context) (map[string]bool, error) {
	refs, err := s.posts.UploadedMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("list media references: %w", err)
	}
	paths := make(map[string]bool, len(refs))
	for _, ref := range refs {
		p, err := s.blobs.PathFromURL(ref)
		if err != nil {
			s.logger.Warn("post media is not a blob url", "media", ref, "error", err)
			continue
		}
		paths[p] = true
	}
	return paths, nil
}
