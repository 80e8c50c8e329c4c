package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HLCHALLENGE_* environment variable overrides, and
// returns the final Config. A missing file is not an error, so a deployment
// can be configured from the environment alone. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HLCHALLENGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file. Unprefixed aliases are read first so the HLCHALLENGE_* name
// wins when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Hyperliquid ──
	setStr(&cfg.Hyperliquid.InfoURL, "HLCHALLENGE_HYPERLIQUID_INFO_URL")
	setDuration(&cfg.Hyperliquid.Timeout, "HLCHALLENGE_HYPERLIQUID_TIMEOUT")
	setFloat64(&cfg.Hyperliquid.RequestsPerSecond, "HLCHALLENGE_HYPERLIQUID_REQUESTS_PER_SECOND")
	setInt(&cfg.Hyperliquid.Burst, "HLCHALLENGE_HYPERLIQUID_BURST")

	// ── Challenge ──
	setStr(&cfg.Challenge.TargetBuilder, "TARGET_BUILDER") // compatibility alias
	setStr(&cfg.Challenge.TargetBuilder, "HLCHALLENGE_CHALLENGE_TARGET_BUILDER")
	setFloat64(&cfg.Challenge.MaxStartCapital, "HLCHALLENGE_CHALLENGE_MAX_START_CAPITAL")
	setInt(&cfg.Challenge.Workers, "HLCHALLENGE_CHALLENGE_WORKERS")
	setStringSlice(&cfg.Challenge.Users, "HLCHALLENGE_CHALLENGE_USERS")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "HLCHALLENGE_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.DSN, "HLCHALLENGE_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "HLCHALLENGE_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "HLCHALLENGE_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "HLCHALLENGE_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "HLCHALLENGE_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "HLCHALLENGE_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "HLCHALLENGE_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "HLCHALLENGE_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "HLCHALLENGE_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "HLCHALLENGE_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "HLCHALLENGE_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "HLCHALLENGE_REDIS_URL")
	setStr(&cfg.Redis.Addr, "HLCHALLENGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HLCHALLENGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HLCHALLENGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HLCHALLENGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HLCHALLENGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HLCHALLENGE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "HLCHALLENGE_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.FillCacheTTL, "HLCHALLENGE_REDIS_FILL_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "HLCHALLENGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "HLCHALLENGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HLCHALLENGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "HLCHALLENGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HLCHALLENGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HLCHALLENGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HLCHALLENGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HLCHALLENGE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "HLCHALLENGE_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setInt(&cfg.Server.Port, "HLCHALLENGE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "HLCHALLENGE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "HLCHALLENGE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "HLCHALLENGE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "HLCHALLENGE_SERVER_RATE_WINDOW")

	// ── Refresh ──
	setBool(&cfg.Refresh.Enabled, "HLCHALLENGE_REFRESH_ENABLED")
	setDuration(&cfg.Refresh.Interval, "HLCHALLENGE_REFRESH_INTERVAL")
	setStr(&cfg.Refresh.LockKey, "HLCHALLENGE_REFRESH_LOCK_KEY")
	setDuration(&cfg.Refresh.LockTTL, "HLCHALLENGE_REFRESH_LOCK_TTL")
	setStringSlice(&cfg.Refresh.Metrics, "HLCHALLENGE_REFRESH_METRICS")
	setStr(&cfg.Refresh.Coin, "HLCHALLENGE_REFRESH_COIN")
	setBool(&cfg.Refresh.BuilderOnly, "HLCHALLENGE_REFRESH_BUILDER_ONLY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HLCHALLENGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HLCHALLENGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HLCHALLENGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HLCHALLENGE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HLCHALLENGE_MODE")
	setStr(&cfg.LogLevel, "HLCHALLENGE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
