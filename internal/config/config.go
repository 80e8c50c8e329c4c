// Package config defines the top-level configuration for the challenge
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HLCHALLENGE_* environment variables.
type Config struct {
	Hyperliquid HyperliquidConfig `toml:"hyperliquid"`
	Challenge   ChallengeConfig   `toml:"challenge"`
	Supabase    SupabaseConfig    `toml:"supabase"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Refresh     RefreshConfig     `toml:"refresh"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// HyperliquidConfig points at the exchange info endpoint.
type HyperliquidConfig struct {
	InfoURL           string   `toml:"info_url"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// ChallengeConfig holds the competition rules.
type ChallengeConfig struct {
	// TargetBuilder is the builder address whose attributed fills count.
	TargetBuilder string `toml:"target_builder"`
	// MaxStartCapital caps the capital base of returnPct. Zero means no cap.
	MaxStartCapital float64 `toml:"max_start_capital"`
	Workers         int     `toml:"workers"`
	// Users is the static participant list, used when Postgres is disabled.
	Users []string `toml:"users"`
}

// SupabaseConfig holds PostgreSQL connection parameters.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
	// FillCacheTTL controls how long fetched fills are reused. Zero disables
	// the fill cache.
	FillCacheTTL duration `toml:"fill_cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds HTTP API server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per RateWindow per client IP. It only applies when
	// Redis is enabled.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// RefreshConfig controls the periodic leaderboard recomputation.
type RefreshConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	LockKey  string   `toml:"lock_key"`
	LockTTL  duration `toml:"lock_ttl"`
	// Metrics lists the leaderboards to recompute.
	Metrics     []string `toml:"metrics"`
	Coin        string   `toml:"coin"`
	BuilderOnly bool     `toml:"builder_only"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "30s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so BurntSushi/toml can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Hyperliquid: HyperliquidConfig{
			InfoURL:           "https://api.hyperliquid.xyz/info",
			Timeout:           duration{30 * time.Second},
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Challenge: ChallengeConfig{
			Workers: 8,
		},
		Supabase: SupabaseConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "require",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "hlchallenge",
			FillCacheTTL: duration{30 * time.Second},
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "hlchallenge-archive",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Interval: duration{5 * time.Minute},
			LockKey:  "leaderboard:refresh",
			LockTTL:  duration{5 * time.Minute},
			Metrics:  []string{"pnl", "volume", "returnPct"},
		},
		Notify: NotifyConfig{
			Events: []string{"leader_changed", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"refresh": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validMetrics = map[string]bool{
	"pnl":       true,
	"volume":    true,
	"returnPct": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, refresh, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Hyperliquid
	if strings.TrimSpace(c.Hyperliquid.InfoURL) == "" {
		errs = append(errs, "hyperliquid: info_url must not be empty")
	}
	if c.Hyperliquid.RequestsPerSecond < 0 {
		errs = append(errs, "hyperliquid: requests_per_second must be >= 0")
	}

	// Challenge
	if !common.IsHexAddress(c.Challenge.TargetBuilder) {
		errs = append(errs, fmt.Sprintf("challenge: target_builder %q is not a hex address", c.Challenge.TargetBuilder))
	}
	if c.Challenge.MaxStartCapital < 0 {
		errs = append(errs, "challenge: max_start_capital must be >= 0")
	}
	if c.Challenge.Workers < 1 {
		errs = append(errs, "challenge: workers must be >= 1")
	}
	for _, u := range c.Challenge.Users {
		if !common.IsHexAddress(u) {
			errs = append(errs, fmt.Sprintf("challenge: user %q is not a hex address", u))
		}
	}
	if !c.Supabase.Enabled && len(c.Challenge.Users) == 0 && c.Mode == "refresh" {
		errs = append(errs, "challenge: refresh mode needs users when supabase is disabled")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, "redis: addr or url must be set")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Mode != "refresh" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Refresh
	if c.Refresh.Enabled || c.Mode == "refresh" {
		if c.Refresh.Interval.Duration <= 0 {
			errs = append(errs, "refresh: interval must be > 0")
		}
		for _, m := range c.Refresh.Metrics {
			if !validMetrics[m] {
				errs = append(errs, fmt.Sprintf("refresh: unknown metric %q (valid: pnl, volume, returnPct)", m))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
