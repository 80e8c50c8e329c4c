package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// FillCache decorates a domain.FillSource with a read-through Redis cache.
// Entries are keyed by user and window and expire after ttl. Cache failures
// never fail a fetch; they fall through to the upstream source.
type FillCache struct {
	c        *Client
	upstream domain.FillSource
	ttl      time.Duration
	logger   *slog.Logger
}

// NewFillCache wraps upstream. A non-positive ttl disables caching.
func NewFillCache(c *Client, upstream domain.FillSource, ttl time.Duration, logger *slog.Logger) *FillCache {
	return &FillCache{
		c:        c,
		upstream: upstream,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "fill_cache")),
	}
}

// FetchFills serves q from the cache when possible.
func (fc *FillCache) FetchFills(ctx context.Context, q domain.FillQuery) ([]domain.RawFill, error) {
	if fc.ttl <= 0 {
		return fc.upstream.FetchFills(ctx, q)
	}

	key := fc.c.key(fillKey(q))
	data, err := fc.c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var fills []domain.RawFill
		if jsonErr := json.Unmarshal(data, &fills); jsonErr == nil {
			return fills, nil
		}
		fc.logger.WarnContext(ctx, "discarding undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		fc.logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	fills, err := fc.upstream.FetchFills(ctx, q)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(fills)
	if err != nil {
		return fills, nil
	}
	if err := fc.c.rdb.Set(ctx, key, payload, fc.ttl).Err(); err != nil {
		fc.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return fills, nil
}

// Invalidate drops every cached window for user.
func (fc *FillCache) Invalidate(ctx context.Context, user string) error {
	pattern := fc.c.key("fills", strings.ToLower(user), "*")
	iter := fc.c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: scan fills for %s: %w", user, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := fc.c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate fills for %s: %w", user, err)
	}
	return nil
}

// fillKey renders fills:{user}:{from}:{to}; open bounds are written as '-'.
func fillKey(q domain.FillQuery) string {
	return joinKey("", "fills", strings.ToLower(strings.TrimSpace(q.User)), bound(q.FromMs), bound(q.ToMs))
}

func bound(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

var _ domain.FillSource = (*FillCache)(nil)
