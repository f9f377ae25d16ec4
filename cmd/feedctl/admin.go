package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/spf13/cobra"
)

var assumeYes bool

var deletePostCmd = &cobra.Command{
	Use:   "delete-post <post-id>",
	Short: "Remove a post as an admin",
	Long: `Remove a post, its uploaded media and record the penalty on the author.

The --as user must hold the admin role.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeletePost,
}

var grantRoleCmd = &cobra.Command{
	Use:   "grant-role <user-id> <role>",
	Short: "Set a user's role (use \"admin\" for moderators)",
	Args:  cobra.ExactArgs(2),
	RunE:  runGrantRole,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger <user-id>",
	Short: "Show a user's counters and score ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedger,
}

func init() {
	deletePostCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runDeletePost(cmd *cobra.Command, args []string) error {
	userID, err := requireUser()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var confirm domain.Confirmer
	if !assumeYes {
		confirm = &promptConfirmer{in: bufio.NewReader(os.Stdin), out: cmd.OutOrStdout()}
	}

	report, err := e.moderation().DeletePost(ctx, args[0], userID, confirm)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "deleted %s (author %s)\n", report.PostID, report.AuthorID)
	fmt.Fprintf(out, "  media removed:  %v\n", report.BlobDeleted)
	fmt.Fprintf(out, "  penalty logged: %v\n", report.LedgerRecorded)
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}

func runGrantRole(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.repo.SetRole(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %q\n", args[0], args[1])
	return nil
}

func runLedger(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := e.repo.GetUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user:   %s (%s)\n", user.ID, domain.ShortUserID(user.ID))
	fmt.Fprintf(out, "role:   %s\n", orDash(user.Role))
	fmt.Fprintf(out, "videos: %d posted, %d removed\n", user.VideosCount, user.LostVideos)
	fmt.Fprintf(out, "score:  %d\n", user.Score())
	for _, entry := range user.Ledger {
		fmt.Fprintf(out, "  %s  %+d  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Delta, entry.Reason)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// promptConfirmer asks on the terminal.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
