// Package cache is a read-through JSON cache over Redis for hot catalog
// reads. Writers invalidate keys after commit; a miss or a Redis failure
// falls back to the loader.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known cache keys.
const (
	KeyFilterOptions = "catalog:filter_options"
	KeyBannerImages  = "catalog:banner_images"
	KeyAuthorNames   = "catalog:author_names"
)

// Cache caches JSON-encoded values with a shared TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// New builds a Redis-backed cache.
func New(addr, password string, ttl time.Duration, log *slog.Logger) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
		log: log,
	}
}

// GetJSON loads key into dest. The second return is false on a miss. Redis
// errors are logged and reported as misses so callers fall through to the
// source of truth.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.log.Warn("cache read failed", "key", key, "error", err)
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry behaves like a miss and gets rewritten.
		c.log.Warn("cache entry corrupt", "key", key, "error", err)
		c.client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON stores value under key with the cache TTL. Failures are logged,
// not returned: the caller already has the value.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops keys after a write commits.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		c.log.Warn("cache invalidate failed", "keys", keys, "error", err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
