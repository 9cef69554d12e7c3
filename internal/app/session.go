package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/profile"
	"github.com/nhle/taskhub/internal/realtime"
	"github.com/nhle/taskhub/internal/service"
	"github.com/nhle/taskhub/internal/store"
	"github.com/nhle/taskhub/internal/sync"
)

// dialTimeout bounds the initial push channel handshake.
const dialTimeout = 10 * time.Second

// Session wires configuration, credentials, the REST services, the local
// mirror and the profile cache for one process.
type Session struct {
	Config *model.AppConfig
	Logger *slog.Logger
	Tokens credential.TokenStore
	Client *api.Client

	Auth          *service.AuthService
	Notifications *service.NotificationService
	Tasks         *service.TaskService
	Profiles      *service.ProfileService
	Facilities    *service.FacilityService
	Shares        *service.FacilityShareService
	Projects      *service.ProjectService
	Settings      *service.SettingsService

	// Store is nil when the local mirror is disabled.
	Store    *store.SQLiteStore
	Resolver *profile.Resolver

	closers []func() error
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithTokenStore replaces the system keyring.
func WithTokenStore(ts credential.TokenStore) SessionOption {
	return func(s *Session) { s.Tokens = ts }
}

// WithStore uses an already opened mirror instead of store.path.
func WithStore(st *store.SQLiteStore) SessionOption {
	return func(s *Session) { s.Store = st }
}

// NewSession builds every service from cfg. An empty store.path disables
// the local mirror.
func NewSession(cfg *model.AppConfig, logger *slog.Logger, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.Tokens == nil {
		s.Tokens = credential.NewKeyringStore()
	}

	s.Client = api.NewClient(cfg.API.BaseURL, s.Tokens,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		api.WithRetry(cfg.API.MaxRetries, cfg.RetryBase()),
		api.WithLogger(logger.With("component", "api")),
	)

	s.Auth = service.NewAuthService(s.Client, s.Tokens)
	s.Notifications = service.NewNotificationService(s.Client)
	s.Tasks = service.NewTaskService(s.Client,
		service.NewDetailCache(cfg.DetailCacheTTL()),
		logger.With("component", "tasks"))
	s.Profiles = service.NewProfileService(s.Client)
	s.Facilities = service.NewFacilityService(s.Client)
	s.Shares = service.NewFacilityShareService(s.Client)
	s.Projects = service.NewProjectService(s.Client)
	s.Settings = service.NewSettingsService(s.Client)

	if s.Store == nil && cfg.Store.Path != "" {
		st, err := openStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		s.Store = st
		s.closers = append(s.closers, st.Close)
	}

	cache, err := s.profileCache()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Resolver = profile.NewResolver(cache, s.Profiles,
		profile.WithLogger(logger.With("component", "profiles")))

	return s, nil
}

func openStore(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	return st, nil
}

// profileCache picks Redis when configured, then the local mirror, then
// process memory.
func (s *Session) profileCache() (profile.Cache, error) {
	pc := s.Config.ProfileCache
	switch {
	case pc.RedisURL != "":
		rc, err := profile.NewRedisCache(pc.RedisURL, pc.Prefix)
		if err != nil {
			return nil, fmt.Errorf("connecting profile cache: %w", err)
		}
		s.closers = append(s.closers, rc.Close)
		return rc, nil
	case s.Store != nil:
		return s.Store, nil
	default:
		return profile.NewMemoryCache(), nil
	}
}

// Channel dials the push channel. A failed dial is logged and returns a
// nil Channel so feeds fall back to polling.
func (s *Session) Channel(ctx context.Context) realtime.Channel {
	if s.Config.Realtime.URL == "" {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ch, err := realtime.DialWS(dialCtx, s.Config.Realtime.URL, s.Tokens,
		realtime.WithWSLogger(s.Logger.With("component", "realtime")))
	if err != nil {
		s.Logger.Warn("push channel unavailable, polling only", "url", s.Config.Realtime.URL, "err", err)
		return nil
	}
	s.closers = append(s.closers, ch.Close)
	return ch
}

// NotificationFeed builds a feed over ch using the configured timings.
// Committed lists are written to the local mirror when enabled.
func (s *Session) NotificationFeed(ch realtime.Channel) *sync.NotificationFeed {
	opts := []sync.NotificationOption{
		sync.WithIntervals(s.Config.PollInterval(), s.Config.WatchdogInterval()),
		sync.WithLimit(s.Config.Notifications.Limit),
		sync.WithFeedLogger(s.Logger.With("component", "notifications")),
	}
	if s.Store != nil {
		opts = append(opts, sync.WithMirror(s.Store))
	}
	return sync.NewNotificationFeed(s.Notifications, ch, opts...)
}

// CommentFeed builds a comment feed over ch with optimistic reactions.
func (s *Session) CommentFeed(ch realtime.Channel) (*sync.CommentFeed, *sync.Reactions) {
	reactions := sync.NewReactions(s.Tasks)
	feed := sync.NewCommentFeed(s.Tasks, ch, s.Resolver,
		sync.WithReactions(reactions),
		sync.WithCommentLogger(s.Logger.With("component", "comments")))
	return feed, reactions
}

// Login signs in and records the account locally.
func (s *Session) Login(ctx context.Context, c service.Credentials) (*model.User, error) {
	u, err := s.Auth.Login(ctx, c)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

// CurrentUser returns the signed-in user from the server and refreshes the
// local record.
func (s *Session) CurrentUser(ctx context.Context) (*model.User, error) {
	u, err := s.Auth.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

// LastUser returns the account recorded by the last successful sign-in.
func (s *Session) LastUser(ctx context.Context) (*model.User, error) {
	if s.Store == nil {
		return nil, store.ErrNotFound
	}
	return s.Store.LastUser(ctx)
}

// OfflineNotifications returns the last mirrored notification state of
// the last signed-in user.
func (s *Session) OfflineNotifications(ctx context.Context) (*store.NotificationSnapshot, error) {
	u, err := s.LastUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.Store.LoadNotifications(ctx, u.ID)
}

func (s *Session) remember(ctx context.Context, u *model.User) {
	s.Resolver.Seed(ctx, u.ID, u.Profile())
	if s.Store == nil {
		return
	}
	if err := s.Store.SaveUser(ctx, *u); err != nil {
		s.Logger.Warn("recording account failed", "user", u.ID, "err", err)
	}
}

// Logout signs out and drops everything cached for the account.
func (s *Session) Logout(ctx context.Context) error {
	var userID string
	if u, err := s.LastUser(ctx); err == nil {
		userID = u.ID
	}

	err := s.Auth.Logout(ctx)

	s.Tasks.Cache().Clear()
	if cerr := s.Resolver.Cache().Clear(ctx); cerr != nil {
		s.Logger.Warn("clearing profile cache failed", "err", cerr)
	}
	if s.Store != nil && userID != "" {
		if ferr := s.Store.ForgetUser(ctx, userID); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return err
}

// Close releases the push channel, caches and the local store, newest
// first.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
