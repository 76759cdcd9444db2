package repository

import (
	"context"
	"time"

	"FinScan/internal/domain/models"
)

// EventPublisher ships run summaries to downstream consumers.
type EventPublisher interface {
	PublishRun(ctx context.Context, ev models.RunEvent) error
}

// AnomalyStore persists flagged rows of a run.
type AnomalyStore interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, records []models.AnomalyRecord) error
	Health(ctx context.Context) error // backs /healthz
}

// LabelCache memoizes scorer output keyed by a fingerprint of the
// standardized matrix and the scoring parameters.
type LabelCache interface {
	Get(ctx context.Context, key string) ([]models.Label, bool, error)
	Set(ctx context.Context, key string, labels []models.Label, ttl time.Duration) error
}

// Metrics records pipeline counters and latencies.
type Metrics interface {
	RecordRun(result string)
	RecordRows(rows, anomalies int)
	RecordFraction(fraction float64)
	RecordLatency(stage string, seconds float64)
	RecordError(kind string)
}
