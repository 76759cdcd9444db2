package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service is a JSON value cache. Every implementation encodes on Set and
// decodes into dest on Get, so backends are interchangeable.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cache encode: %w", err)
		}
		return b, nil
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	case *string:
		*d = string(data)
		return nil
	default:
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("cache decode: %w", err)
		}
		return nil
	}
}
