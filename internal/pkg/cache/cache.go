// Package cache is a fail-open JSON cache over Redis. Every Redis error
// degrades to a miss or a dropped write; callers never see it. Concurrent
// writers of the same key simply overwrite each other with equivalent data,
// so no locking is done.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/domainwatch/internal/pkg/logger"
)

const keyPrefix = "domainwatch:"

// Cache wraps a Redis client. A nil *Cache is valid and caches nothing.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// New creates a Cache. A nil client yields a disabled cache.
func New(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logger.Default()
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// Get loads key into dst. It reports whether a value was found and decoded.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores v under key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.log.Warn("cache delete failed", "key", key, "error", err)
	}
}

// SectionKey is the key under which a revalidated section is stored.
func SectionKey(domain, section string) string {
	return "section:" + domain + ":" + section
}
