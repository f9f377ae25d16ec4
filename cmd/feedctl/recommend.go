package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackmichael/video-feed/internal/assistant"
	"github.com/blackmichael/video-feed/internal/config"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <expertise>",
	Short: "Ask the assistant for short video ideas",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := assistant.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	ideas, err := client.Recommend(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, idea := range ideas {
		fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, idea.Title, idea.Description)
		if len(idea.Fields) > 0 {
			fmt.Fprintf(out, "   fields: %s\n", strings.Join(idea.Fields, ", "))
		}
	}
	return nil
}
