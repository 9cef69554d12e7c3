package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/app"
	"github.com/nhle/taskhub/internal/theme"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(headers...)
}

func (c *cli) facilitiesCmd() *cobra.Command {
	var opts api.ListOptions
	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "List the facilities you can access",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				page, err := s.Facilities.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(page.Items)
				}
				t := newTable("ID", "NAME", "OWNER", "UPDATED")
				for _, f := range page.Items {
					t.Row(f.ID, f.Name, f.OwnerID, f.UpdatedAt.Local().Format("2006-01-02"))
				}
				fmt.Println(t.Render())
				if page.Pagination != nil {
					fmt.Println(theme.HelpStyle.Render(fmt.Sprintf("page %d of %d",
						page.Pagination.Page, page.Pagination.Pages)))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Page size")

	cmd.AddCommand(&cobra.Command{
		Use:   "shares <facility-id>",
		Short: "List who a facility is shared with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				shares, err := s.Shares.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(shares)
				}
				t := newTable("ID", "EMAIL", "ROLE", "ACCEPTED")
				for _, sh := range shares {
					t.Row(sh.ID, sh.Email, sh.Role, strconv.FormatBool(sh.Accepted))
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	})

	return cmd
}

func (c *cli) projectsCmd() *cobra.Command {
	var (
		facilityID string
		opts       api.ListOptions
	)
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects, optionally within one facility",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				page, err := s.Projects.List(cmd.Context(), facilityID, opts)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(page.Items)
				}
				t := newTable("ID", "NAME", "FACILITY", "ARCHIVED")
				for _, p := range page.Items {
					t.Row(p.ID, p.Name, p.FacilityID, strconv.FormatBool(p.Archived))
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&facilityID, "facility", "f", "", "Facility id")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Page size")

	return cmd
}

func (c *cli) settingsCmd() *cobra.Command {
	var (
		themeName string
		emailOn   bool
		pushOn    bool
		digest    string
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change your account settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				ctx := cmd.Context()
				st, err := s.Settings.Get(ctx)
				if err != nil {
					return err
				}

				flags := cmd.Flags()
				changed := false
				if flags.Changed("theme") {
					st.Theme, changed = themeName, true
				}
				if flags.Changed("email-notifications") {
					st.EmailNotifications, changed = emailOn, true
				}
				if flags.Changed("push-notifications") {
					st.PushNotifications, changed = pushOn, true
				}
				if flags.Changed("digest") {
					st.NotificationDigest, changed = digest, true
				}
				if changed {
					if st, err = s.Settings.Update(ctx, *st); err != nil {
						return err
					}
				}

				if c.jsonOut {
					return printJSON(st)
				}
				t := newTable("SETTING", "VALUE").
					Row("theme", st.Theme).
					Row("language", st.Language).
					Row("email notifications", strconv.FormatBool(st.EmailNotifications)).
					Row("push notifications", strconv.FormatBool(st.PushNotifications)).
					Row("digest", st.NotificationDigest).
					Row("default facility", st.DefaultFacilityID)
				fmt.Println(t.Render())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&themeName, "theme", "", "UI theme")
	cmd.Flags().BoolVar(&emailOn, "email-notifications", false, "Receive notification emails")
	cmd.Flags().BoolVar(&pushOn, "push-notifications", false, "Receive push notifications")
	cmd.Flags().StringVar(&digest, "digest", "", "Notification digest frequency")

	return cmd
}
