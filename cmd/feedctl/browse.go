package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/blackmichael/video-feed/internal/feedui"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the feed interactively",
	Long: `Browse the feed page by page from the terminal.

Commands:
  n          load the next page
  r          refresh from the newest post
  w <n>      watch post n (makes it the dominant video)
  p <n>      toggle play/pause on post n
  m <n>      toggle mute on post n
  l <n>      like or unlike post n
  s <n>      share post n
  d <n>      delete post n (admins)
  q          quit`,
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	in := bufio.NewReader(os.Stdin)
	out := cmd.OutOrStdout()

	session := feedui.NewSession(feedui.Services{
		Feed:       domain.NewFeedService(e.repo, e.logger),
		Engagement: domain.NewEngagementService(e.repo, nil, e.logger),
		Moderation: e.moderation(),
		Submit:     domain.NewSubmitService(e.repo, e.repo, e.blobs, nil, e.cfg.MaxUploadBytes(), e.logger),
	}, feedui.Options{
		PageSize:  e.cfg.PageSize,
		Confirmer: &promptConfirmer{in: in, out: out},
	}, e.logger)

	var first feedui.Intent = feedui.Refresh{}
	if asUser != "" {
		first = feedui.SignedIn{UserID: asUser}
	}
	report(out, session.Dispatch(ctx, first))
	printFeed(out, session)

	for {
		fmt.Fprint(out, "> ")
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if err == io.EOF {
				return nil
			}
			continue
		}
		if fields[0] == "q" {
			return nil
		}

		intent, perr := parseIntent(ctx, session, fields)
		if perr != nil {
			fmt.Fprintln(out, perr)
			continue
		}
		report(out, session.Dispatch(ctx, intent))
		printFeed(out, session)
	}
}

func parseIntent(ctx context.Context, session *feedui.Session, fields []string) (feedui.Intent, error) {
	switch fields[0] {
	case "n":
		return feedui.ScrolledNearEnd{}, nil
	case "r":
		return feedui.Refresh{}, nil
	}

	if len(fields) < 2 {
		return nil, fmt.Errorf("usage: %s <n>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	items := session.Items()
	if err != nil || n < 1 || n > len(items) {
		return nil, fmt.Errorf("no post %q", fields[1])
	}
	id := items[n-1].Post.ID

	switch fields[0] {
	case "w":
		// Watching one post moves every other loaded post out of view.
		for _, it := range items {
			if it.Post.ID != id {
				session.Dispatch(ctx, feedui.VisibilityChanged{PostID: it.Post.ID, Ratio: 0})
			}
		}
		return feedui.VisibilityChanged{PostID: id, Ratio: 1}, nil
	case "p":
		return feedui.TogglePlay{PostID: id}, nil
	case "m":
		return feedui.ToggleMute{PostID: id}, nil
	case "l":
		return feedui.LikeClicked{PostID: id}, nil
	case "s":
		return feedui.ShareClicked{PostID: id}, nil
	case "d":
		return feedui.DeleteClicked{PostID: id}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

func report(out io.Writer, o feedui.Outcome) {
	if o.Message != "" {
		fmt.Fprintln(out, o.Message)
	}
}

func printFeed(out io.Writer, session *feedui.Session) {
	active := session.ActivePost()
	for i, it := range session.Items() {
		marker := " "
		if it.Post.ID == active {
			marker = "*"
		}
		heart := "♡"
		if it.LikedByMe {
			heart = "♥"
		}
		fmt.Fprintf(out, "%s%2d. %s  by %s  %s%s  ⇪%s  [%s]\n",
			marker, i+1, it.Post.Title, it.Post.AuthorName(),
			heart, it.LikeText(), it.ShareText(), session.Playback(it.Post.ID))
	}
	if session.Done() {
		fmt.Fprintln(out, "-- end of feed --")
	}
}
