package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/app"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/sync"
	"github.com/nhle/taskhub/internal/theme"
	"github.com/nhle/taskhub/internal/ui/inbox"
)

func (c *cli) inboxCmd() *cobra.Command {
	var (
		offline    bool
		watch      bool
		unreadOnly bool
	)
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				ctx := cmd.Context()
				switch {
				case offline:
					snap, err := s.OfflineNotifications(ctx)
					if err != nil {
						return fmt.Errorf("no offline copy: %w", err)
					}
					c.logger.Debug("showing mirrored notifications", "synced_at", snap.SyncedAt)
					return c.printNotifications(snap.Notifications, snap.UnreadCount, unreadOnly, snap.SyncedAt)
				case watch:
					return c.runTUI(ctx, s)
				}

				u, err := s.CurrentUser(ctx)
				if err != nil {
					return err
				}
				feed := s.NotificationFeed(nil)
				if err := feed.Start(ctx, u.ID); err != nil {
					return err
				}
				defer feed.Stop()

				st := feed.Snapshot()
				if st.Error != "" {
					return fmt.Errorf("%s", st.Error)
				}
				return c.printNotifications(st.Notifications, st.UnreadCount, unreadOnly, time.Time{})
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Show the last synced copy without contacting the server")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Open the live inbox")
	cmd.Flags().BoolVarP(&unreadOnly, "unread", "u", false, "Only show unread notifications")

	return cmd
}

// runTUI opens the live inbox until the user quits.
func (c *cli) runTUI(ctx context.Context, s *app.Session) error {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}

	ch := s.Channel(ctx)
	feed := s.NotificationFeed(ch)
	if err := feed.Start(ctx, u.ID); err != nil {
		return err
	}
	defer feed.Stop()

	comments, reactions := s.CommentFeed(ch)
	defer comments.Stop()

	m := app.New(app.Deps{
		User:      u,
		Inbox:     feed,
		Details:   s.Tasks,
		Comments:  comments,
		Reactions: reactions,
		Live:      ch != nil,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("running inbox: %w", err)
	}
	return nil
}

func (c *cli) printNotifications(list []model.Notification, unread int, unreadOnly bool, syncedAt time.Time) error {
	if unreadOnly {
		filtered := list[:0:0]
		for _, n := range list {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		list = filtered
	}

	if c.jsonOut {
		return printJSON(struct {
			Unread        int                  `json:"unread"`
			Notifications []model.Notification `json:"notifications"`
		}{unread, list})
	}

	now := time.Now()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("", "ID", "CATEGORY", "PRIORITY", "TITLE", "WHEN")
	for _, n := range list {
		marker := "●"
		if n.Read {
			marker = ""
		}
		t.Row(marker, n.ID, string(n.Category), string(n.Priority), n.Title, inbox.RelativeTime(n.CreatedAt, now))
	}

	fmt.Println(t.Render())
	summary := fmt.Sprintf("%d unread", unread)
	if !syncedAt.IsZero() {
		summary += fmt.Sprintf(" · offline copy from %s", syncedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println(theme.HelpStyle.Render(summary))
	return nil
}

// withFeed runs fn against a started notification feed of the current
// user, so mutations are mirrored like in the live inbox.
func (c *cli) withFeed(cmd *cobra.Command, fn func(ctx context.Context, f *sync.NotificationFeed) error) error {
	return c.session(func(s *app.Session) error {
		ctx := cmd.Context()
		u, err := s.CurrentUser(ctx)
		if err != nil {
			return err
		}
		feed := s.NotificationFeed(nil)
		if err := feed.Start(ctx, u.ID); err != nil {
			return err
		}
		defer feed.Stop()

		if err := fn(ctx, feed); err != nil {
			return err
		}
		fmt.Printf("%d unread\n", feed.Snapshot().UnreadCount)
		return nil
	})
}

func (c *cli) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, f *sync.NotificationFeed) error {
				return f.MarkAsRead(ctx, args[0])
			})
		},
	}
}

func (c *cli) readAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, f *sync.NotificationFeed) error {
				return f.MarkAllAsRead(ctx)
			})
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <notification-id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, f *sync.NotificationFeed) error {
				return f.DeleteNotification(ctx, args[0])
			})
		},
	}
}
