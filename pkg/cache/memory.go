package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
	lastUsed time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache is an in-process Service with TTL and least-recently-used eviction.
type MemoryCache struct {
	data    map[string]*memoryItem
	mutex   sync.Mutex
	maxSize int
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.now()
	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	if expiration <= 0 {
		expiration = 7 * 24 * time.Hour
	}
	mc.data[key] = &memoryItem{
		data:     append([]byte(nil), data...),
		expireAt: now.Add(expiration),
		lastUsed: now,
	}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mutex.Lock()
	now := mc.now()
	item, exists := mc.data[key]
	if !exists || item.expired(now) {
		if exists {
			delete(mc.data, key)
		}
		mc.mutex.Unlock()
		return ErrCacheMiss
	}
	item.lastUsed = now
	data := item.data
	mc.mutex.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return len(mc.data)
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, item := range mc.data {
		if oldestKey == "" || item.lastUsed.Before(oldest) {
			oldestKey, oldest = key, item.lastUsed
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.ticker.C:
			mc.mutex.Lock()
			now := mc.now()
			for key, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, key)
				}
			}
			mc.mutex.Unlock()
		case <-mc.done:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}
