package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/profile"
	"github.com/nhle/taskhub/internal/service"
	"github.com/nhle/taskhub/internal/store"
)

const userJSON = `{"id":"u1","email":"ada@example.com","firstName":"Ada","lastName":"Lovelace"}`

func testConfig(baseURL string) *model.AppConfig {
	return &model.AppConfig{
		API: model.APIConfig{
			BaseURL:     baseURL,
			TimeoutSec:  5,
			MaxRetries:  0,
			RetryBaseMS: 1,
		},
		Notifications: model.NotificationsConfig{
			PollIntervalSec: 30,
			WatchdogSec:     10,
			Limit:           20,
		},
		Tasks:        model.TasksConfig{DetailCacheTTLMS: 5000},
		ProfileCache: model.ProfileCacheConfig{Prefix: "test:profile:"},
		Store:        model.StoreConfig{Path: ":memory:"},
	}
}

func newTestSession(t *testing.T, cfg *model.AppConfig, tokens credential.TokenStore) *Session {
	t.Helper()
	if tokens == nil {
		tokens = credential.NewMemoryStore("test-token")
	}
	s, err := NewSession(cfg, nil, WithTokenStore(tokens))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("POST /api/auth/login", writeJSON(`{"token":"tok-1","user":`+userJSON+`}`))
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/auth/me", writeJSON(userJSON))
	mux.HandleFunc("GET /api/notifications", writeJSON(`[
		{"id":"n1","userId":"u1","title":"Assigned","read":false,"createdAt":"2026-01-02T10:00:00Z"},
		{"id":"n2","userId":"u1","title":"Updated","read":true,"createdAt":"2026-01-01T10:00:00Z"}
	]`))
	mux.HandleFunc("GET /api/notifications/unread-count", writeJSON(`{"unread":1}`))
	mux.HandleFunc("PATCH /api/notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionProfileCacheSelection(t *testing.T) {
	t.Run("local store", func(t *testing.T) {
		s := newTestSession(t, testConfig("http://localhost"), nil)
		if _, ok := s.Resolver.Cache().(*store.SQLiteStore); !ok {
			t.Errorf("expected SQLite-backed cache, got %T", s.Resolver.Cache())
		}
	})

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig("http://localhost")
		cfg.Store.Path = ""
		s := newTestSession(t, cfg, nil)
		if s.Store != nil {
			t.Error("expected mirror to be disabled")
		}
		if _, ok := s.Resolver.Cache().(*profile.MemoryCache); !ok {
			t.Errorf("expected memory cache, got %T", s.Resolver.Cache())
		}
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig("http://localhost")
		cfg.ProfileCache.RedisURL = "redis://" + mr.Addr()
		s := newTestSession(t, cfg, nil)
		if _, ok := s.Resolver.Cache().(*profile.RedisCache); !ok {
			t.Errorf("expected redis cache, got %T", s.Resolver.Cache())
		}
	})
}

func TestSessionLoginRecordsAccountAndLogoutForgetsIt(t *testing.T) {
	srv := fakeServer(t)
	tokens := credential.NewMemoryStore("")
	s := newTestSession(t, testConfig(srv.URL), tokens)
	ctx := context.Background()

	u, err := s.Login(ctx, service.Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("expected u1, got %q", u.ID)
	}
	if tok, _ := tokens.Token(); tok != "tok-1" {
		t.Errorf("expected stored token, got %q", tok)
	}

	last, err := s.LastUser(ctx)
	if err != nil || last.Email != "ada@example.com" {
		t.Fatalf("LastUser: %+v, %v", last, err)
	}
	if p := s.Resolver.Cached(ctx, []string{"u1"}); p["u1"].FirstName != "Ada" {
		t.Errorf("own profile not seeded: %+v", p)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := s.LastUser(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected account to be forgotten, got %v", err)
	}
	if _, err := tokens.Token(); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("expected token to be cleared, got %v", err)
	}
	if p := s.Resolver.Cached(ctx, []string{"u1"}); len(p) != 0 {
		t.Errorf("expected profile cache to be cleared, got %+v", p)
	}
}

func TestSessionNotificationFeedWritesOfflineCopy(t *testing.T) {
	srv := fakeServer(t)
	s := newTestSession(t, testConfig(srv.URL), nil)
	ctx := context.Background()

	u, err := s.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}

	feed := s.NotificationFeed(nil)
	if err := feed.Start(ctx, u.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := feed.MarkAsRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	feed.Stop()

	snap, err := s.OfflineNotifications(ctx)
	if err != nil {
		t.Fatalf("OfflineNotifications: %v", err)
	}
	if snap.UnreadCount != 0 || len(snap.Notifications) != 2 {
		t.Fatalf("unexpected offline copy: unread=%d len=%d", snap.UnreadCount, len(snap.Notifications))
	}
	if snap.Notifications[0].ID != "n1" || !snap.Notifications[0].Read {
		t.Errorf("expected n1 first and read, got %+v", snap.Notifications[0])
	}
}

func TestSessionOfflineWithoutStore(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Store.Path = ""
	s := newTestSession(t, cfg, nil)

	if _, err := s.OfflineNotifications(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionChannelDisabled(t *testing.T) {
	s := newTestSession(t, testConfig("http://localhost"), nil)
	if ch := s.Channel(context.Background()); ch != nil {
		t.Errorf("expected no channel without realtime.url, got %T", ch)
	}
}
