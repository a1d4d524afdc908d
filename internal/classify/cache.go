package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores classification results keyed by image content hash.
type Cache interface {
	Get(ctx context.Context, hash string) (Result, bool, error)
	Set(ctx context.Context, hash string, res Result) error
}

const cacheKeyPrefix = "ocr:"

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on an existing client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedisCache connects with opts and verifies the server answers.
func DialRedisCache(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewRedisCache(client, ttl), nil
}

// Get returns the cached result for hash, if present.
func (c *RedisCache) Get(ctx context.Context, hash string) (Result, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("cache get: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false, fmt.Errorf("cache decode: %w", err)
	}
	return res, true, nil
}

// Set stores res under hash.
func (c *RedisCache) Set(ctx context.Context, hash string, res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+hash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
