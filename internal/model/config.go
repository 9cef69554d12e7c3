package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the REST API client.
type APIConfig struct {
	// BaseURL is the root of the API server; "/api" is appended by the client.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a 429 response is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RetryBaseMS is the base delay of the exponential backoff.
	RetryBaseMS int `mapstructure:"retry_base_ms" yaml:"retry_base_ms"`
}

// RealtimeConfig holds settings for the push channel connection.
type RealtimeConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NotificationsConfig tunes the notification feed.
type NotificationsConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	WatchdogSec     int `mapstructure:"watchdog_sec" yaml:"watchdog_sec"`
	Limit           int `mapstructure:"limit" yaml:"limit"`
}

// TasksConfig tunes the task service.
type TasksConfig struct {
	DetailCacheTTLMS int `mapstructure:"detail_cache_ttl_ms" yaml:"detail_cache_ttl_ms"`
}

// ProfileCacheConfig selects the profile cache backend. An empty RedisURL
// keeps the cache in process memory.
type ProfileCacheConfig struct {
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// StoreConfig locates the local SQLite mirror.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Tasks         TasksConfig         `mapstructure:"tasks" yaml:"tasks"`
	ProfileCache  ProfileCacheConfig  `mapstructure:"profile_cache" yaml:"profile_cache"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// PollInterval returns the notification poll period.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSec) * time.Second
}

// WatchdogInterval returns the empty-list refetch period.
func (c *AppConfig) WatchdogInterval() time.Duration {
	return time.Duration(c.Notifications.WatchdogSec) * time.Second
}

// DetailCacheTTL returns how long a resolved task detail stays cached.
func (c *AppConfig) DetailCacheTTL() time.Duration {
	return time.Duration(c.Tasks.DetailCacheTTLMS) * time.Millisecond
}

// RetryBase returns the base delay for 429 backoff.
func (c *AppConfig) RetryBase() time.Duration {
	return time.Duration(c.API.RetryBaseMS) * time.Millisecond
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskhub/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultStorePath returns the default location of the SQLite mirror.
func DefaultStorePath() string {
	return filepath.Join(configDir(), "mirror.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskhub")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:     "http://localhost:3000",
			TimeoutSec:  30,
			MaxRetries:  3,
			RetryBaseMS: 1000,
		},
		Realtime: RealtimeConfig{
			URL: "ws://localhost:3000/realtime",
		},
		Notifications: NotificationsConfig{
			PollIntervalSec: 30,
			WatchdogSec:     10,
			Limit:           20,
		},
		Tasks: TasksConfig{
			DetailCacheTTLMS: 5000,
		},
		ProfileCache: ProfileCacheConfig{
			Prefix: "taskhub:profile:",
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden by TASKHUB_* environment variables
// (e.g. TASKHUB_API_BASE_URL). If the file does not exist, defaults apply.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskhub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv knows which keys exist.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("api.retry_base_ms", def.API.RetryBaseMS)
	v.SetDefault("realtime.url", def.Realtime.URL)
	v.SetDefault("notifications.poll_interval_sec", def.Notifications.PollIntervalSec)
	v.SetDefault("notifications.watchdog_sec", def.Notifications.WatchdogSec)
	v.SetDefault("notifications.limit", def.Notifications.Limit)
	v.SetDefault("tasks.detail_cache_ttl_ms", def.Tasks.DetailCacheTTLMS)
	v.SetDefault("profile_cache.redis_url", "")
	v.SetDefault("profile_cache.prefix", def.ProfileCache.Prefix)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("display.theme", def.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Notifications.Limit <= 0 {
		cfg.Notifications.Limit = def.Notifications.Limit
	}
	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = def.Notifications.PollIntervalSec
	}
	if cfg.Notifications.WatchdogSec <= 0 {
		cfg.Notifications.WatchdogSec = def.Notifications.WatchdogSec
	}
	if cfg.Tasks.DetailCacheTTLMS <= 0 {
		cfg.Tasks.DetailCacheTTLMS = def.Tasks.DetailCacheTTLMS
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("notifications", cfg.Notifications)
	v.Set("tasks", cfg.Tasks)
	v.Set("profile_cache", cfg.ProfileCache)
	v.Set("store", cfg.Store)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
