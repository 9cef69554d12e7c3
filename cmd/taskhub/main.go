package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/app"
	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
)

var Version = "dev"

// cli holds the global flags and what they resolve to.
type cli struct {
	configPath string
	verbose    bool
	jsonOut    bool
	token      string

	logger *slog.Logger
	cfg    *model.AppConfig
}

func main() {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "taskhub",
		Short:         "taskhub - notifications, tasks and comments from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", model.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&c.token, "token", "", "Use this bearer token instead of the keyring")

	rootCmd.AddCommand(c.loginCmd())
	rootCmd.AddCommand(c.logoutCmd())
	rootCmd.AddCommand(c.whoamiCmd())
	rootCmd.AddCommand(c.inboxCmd())
	rootCmd.AddCommand(c.readCmd())
	rootCmd.AddCommand(c.readAllCmd())
	rootCmd.AddCommand(c.rmCmd())
	rootCmd.AddCommand(c.taskCmd())
	rootCmd.AddCommand(c.commentsCmd())
	rootCmd.AddCommand(c.facilitiesCmd())
	rootCmd.AddCommand(c.projectsCmd())
	rootCmd.AddCommand(c.settingsCmd())
	rootCmd.AddCommand(c.configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) setup() error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)

	cfg, err := model.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger.Debug("config loaded", "path", c.configPath, "api", cfg.API.BaseURL)
	return nil
}

// session opens a Session for the duration of fn.
func (c *cli) session(fn func(s *app.Session) error) error {
	var opts []app.SessionOption
	if c.token != "" {
		opts = append(opts, app.WithTokenStore(credential.NewMemoryStore(c.token)))
	}
	s, err := app.NewSession(c.cfg, c.logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			c.logger.Warn("closing session", "err", cerr)
		}
	}()
	return fn(s)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
