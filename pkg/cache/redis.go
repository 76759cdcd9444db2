package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service using Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

func newRedisConfig(opts ...RedisOption) *RedisConfig {
	cfg := &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
		Prefix:       "finscan",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *RedisConfig) clientOptions() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		PoolTimeout:  c.PoolTimeout,
		MinIdleConns: c.MinIdleConns,
	}
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := newRedisConfig(opts...)
	client := redis.NewClient(cfg.clientOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCacheWithClient(client, cfg.Prefix), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.wrapKey(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return decode(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = c.wrapKey(key)
	}
	return c.client.Unlink(ctx, wrapped...).Err()
}

func (c *RedisCache) wrapKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return GenerateKey(c.prefix, key)
}
