package main

import (
	"fmt"
	"time"

	"github.com/blackmichael/video-feed/internal/config"
	"github.com/blackmichael/video-feed/internal/httpserver"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Long: `Issue an HS256 bearer token signed with JWT_SECRET.

Useful for calling the API with curl during development.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		token, err := httpserver.IssueToken([]byte(cfg.JWTSecret), args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
