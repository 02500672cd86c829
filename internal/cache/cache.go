// Package cache provides the key-value collaborator used to hold transient
// source payloads. Misses are explicit: a lookup returns found=false rather
// than a nil value coerced to "empty".
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long cached source payloads stay fresh. Source data for
// an active event changes on the minutes scale, so a short TTL keeps the
// detail view close to live without hammering the source.
const DefaultTTL = 5 * time.Minute

// Cache is a TTL'd byte cache with explicit miss reporting.
type Cache interface {
	// Get returns the cached value and found=true, or found=false on a
	// miss. An error means the cache itself failed, which is distinct from
	// a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores the value under key for the cache's TTL.
	Set(ctx context.Context, key string, value []byte) error
}

// RedisCache implements Cache over a Redis client.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache with the given key prefix and TTL. A zero
// ttl uses DefaultTTL.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached value, reporting a miss explicitly.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores the value with the cache's TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}
