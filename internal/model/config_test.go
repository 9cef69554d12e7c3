package model

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "http://localhost:3000" {
		t.Errorf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.PollInterval() != 30*time.Second || cfg.WatchdogInterval() != 10*time.Second {
		t.Errorf("unexpected intervals %v / %v", cfg.PollInterval(), cfg.WatchdogInterval())
	}
	if cfg.Notifications.Limit != 20 {
		t.Errorf("unexpected limit %d", cfg.Notifications.Limit)
	}
	if cfg.ProfileCache.RedisURL != "" {
		t.Errorf("redis should be off by default, got %q", cfg.ProfileCache.RedisURL)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TASKHUB_API_BASE_URL", "https://tasks.example.com")
	t.Setenv("TASKHUB_NOTIFICATIONS_LIMIT", "50")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://tasks.example.com" {
		t.Errorf("env override ignored, got %q", cfg.API.BaseURL)
	}
	if cfg.Notifications.Limit != 50 {
		t.Errorf("env override ignored, got %d", cfg.Notifications.Limit)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.API.BaseURL = "https://api.example.com"
	cfg.Notifications.PollIntervalSec = 60
	cfg.ProfileCache.RedisURL = "redis://localhost:6379/0"
	cfg.Store.Path = ":memory:"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadConfigClampsNonPositiveValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := defaultAppConfig()
	cfg.Notifications.Limit = 0
	cfg.Tasks.DetailCacheTTLMS = -1
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Notifications.Limit != 20 || got.DetailCacheTTL() != 5*time.Second {
		t.Errorf("expected defaults, got limit=%d ttl=%v", got.Notifications.Limit, got.DetailCacheTTL())
	}
}
