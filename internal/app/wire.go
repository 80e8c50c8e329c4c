package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/hlchallenge/internal/blob/s3"
	"github.com/alanyoungcy/hlchallenge/internal/cache/redis"
	"github.com/alanyoungcy/hlchallenge/internal/config"
	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/notify"
	"github.com/alanyoungcy/hlchallenge/internal/platform/hyperliquid"
	"github.com/alanyoungcy/hlchallenge/internal/server/handler"
	"github.com/alanyoungcy/hlchallenge/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the modes need. Only
// Fills, Equity, Notifier and Health are always set; the rest are nil when the
// backing service is disabled in config.
type Dependencies struct {
	// Exchange
	Fills  domain.FillSource
	Equity domain.EquitySource

	// Stores
	Participants domain.ParticipantStore
	Runs         domain.LeaderboardStore
	Audit        domain.AuditStore

	// Caches
	FillCache   *redis.FillCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Archiver domain.LeaderboardArchiver

	// Notifications
	Notifier *notify.Notifier

	// Health holds a readiness probe per wired backend.
	Health map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	// --- Hyperliquid ---
	hl := hyperliquid.NewClient(hyperliquid.Options{
		InfoURL:           cfg.Hyperliquid.InfoURL,
		Timeout:           cfg.Hyperliquid.Timeout.Duration,
		RequestsPerSecond: cfg.Hyperliquid.RequestsPerSecond,
		Burst:             cfg.Hyperliquid.Burst,
		Logger:            logger,
	})
	deps.Fills = hl
	deps.Equity = hl

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Participants = postgres.NewParticipantStore(pool)
		deps.Runs = postgres.NewLeaderboardStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Health["postgres"] = handler.PingFunc(pgClient.Ping)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.FillCache = redis.NewFillCache(redisClient, hl, cfg.Redis.FillCacheTTL.Duration, logger)
		deps.Fills = deps.FillCache
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Health["redis"] = handler.PingFunc(redisClient.Ping)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		deps.Health["s3"] = handler.PingFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.Bool("postgres", deps.Participants != nil),
		slog.Bool("redis", deps.SignalBus != nil),
		slog.Bool("s3", deps.Archiver != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)
	return deps, cleanup, nil
}
