package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/blackmichael/video-feed/internal/blobstore"
	"github.com/blackmichael/video-feed/internal/config"
	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/blackmichael/video-feed/internal/store"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	timeout time.Duration
	asUser  string
)

// rootCmd is the operator CLI for the video feed.
var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "Operate the video feed",
	Long: `feedctl talks to the feed database and blob store directly.

It reads the same configuration as the server (.env, FEED_CONFIG_FILE and
environment variables).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "Act as this user id")

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(deletePostCmd)
	rootCmd.AddCommand(grantRoleCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	repo   *store.Repository
	blobs  *blobstore.Filesystem
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	repo, err := store.NewRepository(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	blobs, err := blobstore.NewFilesystem(cfg.BlobDir, cfg.BlobBaseURL())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create blob store: %w", err)
	}
	return &env{cfg: cfg, logger: newLogger(os.Stderr), repo: repo, blobs: blobs}, nil
}

func (e *env) Close() error { return e.repo.Close() }

func (e *env) moderation() *domain.ModerationService {
	return domain.NewModerationService(e.repo, e.repo, e.blobs, nil, e.logger)
}

func requireUser() (string, error) {
	if asUser == "" {
		return "", fmt.Errorf("--as is required")
	}
	return asUser, nil
}
