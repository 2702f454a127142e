// Package statcache is a small JSON-over-redis cache for dashboard
// aggregates. A nil *Cache is valid and caches nothing, so callers don't
// branch on whether redis is configured.
package statcache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis at addr. Empty addr or an unreachable server
// yields nil (caching disabled); the dashboard works without it.
func New(addr string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("statcache: redis %s unreachable, caching disabled: %v", addr, err)
		return nil
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get unmarshals the cached value for key into dst. Returns false on miss
// or any error; errors are not worth surfacing for a cache.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Set stores v under key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("statcache: set %s: %v", key, err)
	}
}
