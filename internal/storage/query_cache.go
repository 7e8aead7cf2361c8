package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueryCache caches JSON-serialized read models in redis with a fixed
// TTL. Callers own the key format; the cache is indifferent to what it
// stores.
type QueryCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewQueryCache creates a read-model cache with the given TTL
func NewQueryCache(cache *RedisCache, ttl time.Duration) *QueryCache {
	return &QueryCache{cache: cache, ttl: ttl}
}

// Get retrieves a value and deserializes it into dest. A missing key
// is a cache miss, not an error.
func (c *QueryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.cache.Client().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cached value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set stores a value under the configured TTL
func (c *QueryCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := c.cache.Client().Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached value: %w", err)
	}
	return nil
}

// Invalidate removes the given keys
func (c *QueryCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.cache.Client().Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached keys: %w", err)
	}
	return nil
}
