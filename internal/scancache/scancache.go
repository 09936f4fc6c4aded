// Package scancache is an optional Redis-backed mtime cache that sits
// in front of the Baseline Store's dataset registry, letting run-all's
// skip_unchanged smart-scan avoid a sqlite round trip for
// every table on every sweep. It is never load-bearing: a nil *Cache
// or an unreachable Redis simply falls back to the registry.
package scancache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin wrapper over a Redis client keyed by table name.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New builds a Cache against addr, or returns nil if addr is empty so
// callers can treat an unconfigured cache as a no-op.
func New(addr string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{rdb: redis.NewClient(&redis.Options{Addr: addr}), ttl: ttl}
}

// Close releases the underlying Redis client, if any.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// LastSeen returns the mtime last recorded for table, if cached.
func (c *Cache) LastSeen(ctx context.Context, table string) (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	v, err := c.rdb.Get(ctx, key(table)).Result()
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Record stores mtime as the last-seen value for table.
func (c *Cache) Record(ctx context.Context, table string, mtime time.Time) {
	if c == nil {
		return
	}
	c.rdb.Set(ctx, key(table), mtime.Format(time.RFC3339Nano), c.ttl)
}

func key(table string) string { return "gatekeeper:scancache:" + table }
