package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/app"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/sync"
	"github.com/nhle/taskhub/internal/ui/comments"
	"github.com/nhle/taskhub/internal/ui/detail"
)

// enrichWait bounds how long a one-shot comment listing waits for author
// profiles.
const enrichWait = 5 * time.Second

func (c *cli) taskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <task-id>",
		Short: "Show a task with its subtasks, attachments and activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				d, err := s.Tasks.GetTaskDetails(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(d)
				}
				fmt.Println(detail.Render(*d, 80))
				return nil
			})
		},
	}
}

func (c *cli) commentsCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "comments <task-id>",
		Short: "Show the comment thread of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				ctx := cmd.Context()
				u, err := s.CurrentUser(ctx)
				if err != nil {
					return err
				}

				if watch {
					ch := s.Channel(ctx)
					feed, reactions := s.CommentFeed(ch)
					defer feed.Stop()

					m := app.NewThread(app.Deps{
						User:      u,
						Comments:  feed,
						Reactions: reactions,
						Live:      ch != nil,
					}, args[0])
					p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
					if _, err := p.Run(); err != nil {
						return fmt.Errorf("running comments: %w", err)
					}
					return nil
				}

				feed, _ := s.CommentFeed(nil)
				if err := feed.Start(ctx, args[0], u); err != nil {
					return err
				}
				defer feed.Stop()

				st := waitEnriched(ctx, feed, enrichWait)
				if st.Error != "" {
					return fmt.Errorf("%s", st.Error)
				}
				if c.jsonOut {
					return printJSON(st.Comments)
				}
				if len(st.Comments) == 0 {
					fmt.Println("No comments yet.")
					return nil
				}
				now := time.Now()
				for _, cm := range st.Comments {
					fmt.Println(comments.RenderComment(cm, u.ID, nil, now))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the thread live and react to comments")

	return cmd
}

// waitEnriched returns the feed state once every comment has an author
// profile, or whatever is there when timeout expires.
func waitEnriched(ctx context.Context, feed *sync.CommentFeed, timeout time.Duration) sync.CommentState {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	st := feed.Snapshot()
	for !enriched(st.Comments) {
		select {
		case st = <-feed.Updates():
		case <-timer.C:
			return feed.Snapshot()
		case <-ctx.Done():
			return feed.Snapshot()
		}
	}
	return st
}

func enriched(list []model.TaskComment) bool {
	for _, c := range list {
		if c.UserProfile == nil {
			return false
		}
	}
	return true
}
