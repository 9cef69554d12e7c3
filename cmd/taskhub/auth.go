package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/app"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/service"
	"github.com/nhle/taskhub/internal/ui/login"
)

func (c *cli) loginCmd() *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				if passwordStdin {
					if email == "" {
						return errors.New("--email is required with --password-stdin")
					}
					pass, err := bufio.NewReader(os.Stdin).ReadString('\n')
					if err != nil && pass == "" {
						return fmt.Errorf("reading password: %w", err)
					}
					u, err := s.Login(cmd.Context(), service.Credentials{
						Email:    email,
						Password: strings.TrimRight(pass, "\r\n"),
					})
					if err != nil {
						return err
					}
					return c.printUser(u, false)
				}

				final, err := tea.NewProgram(login.New(s, email)).Run()
				if err != nil {
					return fmt.Errorf("running login form: %w", err)
				}
				u, err := final.(login.Model).User()
				if err != nil {
					return err
				}
				return c.printUser(u, false)
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget cached data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				if err := s.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("Signed out.")
				return nil
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.session(func(s *app.Session) error {
				u, err := s.CurrentUser(cmd.Context())
				if err == nil {
					return c.printUser(u, false)
				}
				last, lerr := s.LastUser(cmd.Context())
				if lerr != nil {
					return err
				}
				c.logger.Debug("server unreachable, using local account", "err", err)
				return c.printUser(last, true)
			})
		},
	}
}

func (c *cli) printUser(u *model.User, offline bool) error {
	if c.jsonOut {
		return printJSON(u)
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	suffix := ""
	if offline {
		suffix = " (offline)"
	}
	fmt.Printf("%s <%s>%s\n", name, u.Email, suffix)
	return nil
}
