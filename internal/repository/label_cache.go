package repository

import (
	"context"
	"errors"
	"time"

	"FinScan/internal/domain/models"
	domrepo "FinScan/internal/domain/repository"
	"FinScan/pkg/cache"
)

// LabelCache stores scorer output in a pkg/cache.Service under "labels:<key>".
type LabelCache struct {
	svc cache.Service
}

func NewLabelCache(svc cache.Service) *LabelCache {
	return &LabelCache{svc: svc}
}

func (c *LabelCache) Get(ctx context.Context, key string) ([]models.Label, bool, error) {
	var raw []uint8
	err := c.svc.Get(ctx, cache.GenerateKey("labels", key), &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]models.Label, len(raw))
	for i, b := range raw {
		out[i] = models.Label(b)
	}
	return out, true, nil
}

// Set stores one byte per label.
func (c *LabelCache) Set(ctx context.Context, key string, labels []models.Label, ttl time.Duration) error {
	raw := make([]byte, len(labels))
	for i, l := range labels {
		raw[i] = byte(l)
	}
	return c.svc.Set(ctx, cache.GenerateKey("labels", key), raw, ttl)
}

var _ domrepo.LabelCache = (*LabelCache)(nil)
