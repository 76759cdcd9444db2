package service

import (
	"context"

	"FinScan/internal/domain/models"
)

// ScoreParams configures a single scoring call.
type ScoreParams struct {
	Contamination float64 // expected outlier fraction, 0 < c < 1
	Seed          int64
}

// Scorer fits an unsupervised outlier model over a standardized feature
// matrix and labels every row. Implementations must be deterministic for a
// fixed matrix and params.
type Scorer interface {
	Name() string
	// Describe lists the model settings that change labels, e.g. tree count.
	Describe() string
	Score(ctx context.Context, matrix [][]float64, p ScoreParams) ([]models.Label, error)
}
