package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level cache: L1 memory in front of an L2 Service.
type LayeredCache struct {
	mem    *MemoryCache
	remote Service
	l1TTL  time.Duration
}

// NewLayeredCache puts an in-memory cache in front of remote.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		mem:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
		l1TTL:  cfg.MemoryTTL,
	}
}

// Set writes through to L2 first, then L1.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.remote.Set(ctx, key, data, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, data, lc.memTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	if err := lc.mem.Get(ctx, key, &data); err == nil {
		return decode(data, dest)
	}
	if err := lc.remote.Get(ctx, key, &data); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, data, lc.l1TTL)
	return decode(data, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.remote.Close()
}

func (lc *LayeredCache) memTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.l1TTL {
		return expiration
	}
	return lc.l1TTL
}
