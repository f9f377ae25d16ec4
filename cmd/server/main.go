package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/video-feed/internal/assistant"
	"github.com/blackmichael/video-feed/internal/blobstore"
	"github.com/blackmichael/video-feed/internal/config"
	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/blackmichael/video-feed/internal/httpserver"
	"github.com/blackmichael/video-feed/internal/realtime"
	"github.com/blackmichael/video-feed/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repository implements both PostStore and UserStore
	repo, err := store.NewRepository(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("connected to database", "driver", cfg.DatabaseDriver)

	blobs, err := blobstore.NewFilesystem(cfg.BlobDir, cfg.BlobBaseURL())
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}

	hub := realtime.NewHub()
	defer hub.Close()

	g, ctx := errgroup.WithContext(ctx)

	var notifier domain.Notifier = hub
	if cfg.RedisURL != "" {
		relay, err := realtime.NewRedisRelay(ctx, cfg.RedisURL, hub, logger)
		if err != nil {
			return fmt.Errorf("create redis relay: %w", err)
		}
		defer relay.Close()
		notifier = relay
		g.Go(func() error { return relay.Run(ctx) })
	}

	svc := httpserver.Services{
		Feed:       domain.NewFeedService(repo, logger),
		Engagement: domain.NewEngagementService(repo, notifier, logger),
		Moderation: domain.NewModerationService(repo, repo, blobs, notifier, logger),
		Submit:     domain.NewSubmitService(repo, repo, blobs, notifier, cfg.MaxUploadBytes(), logger),
		Users:      repo,
		Realtime:   realtime.NewHandler(hub, cfg.AllowedOrigins, logger),
		Blobs:      blobs.Handler(),
	}
	if cfg.GeminiAPIKey != "" {
		ai, err := assistant.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			return fmt.Errorf("create assistant: %w", err)
		}
		svc.Assistant = ai
	} else {
		logger.Info("GEMINI_API_KEY not set, assistant disabled")
	}

	// Start background media sweep
	sweeper := domain.NewSweepService(repo, blobs, logger)
	g.Go(func() error {
		sweeper.StartSweepJob(ctx, cfg.SweepInterval, cfg.SweepGrace)
		return nil
	})

	server := httpserver.NewServer(cfg, svc, logger)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	logger.Info("server started", "port", cfg.Port, "hostname", cfg.Hostname)

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down http server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
