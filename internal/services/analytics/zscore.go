package analytics

import (
	"context"

	"FinScan/internal/domain/models"
	domsvc "FinScan/internal/domain/service"

	"gonum.org/v1/gonum/floats"
)

// ZScore scores a standardized row by its squared distance from the origin.
type ZScore struct{}

func NewZScore() *ZScore { return &ZScore{} }

func (z *ZScore) Name() string { return "zscore" }

func (z *ZScore) Describe() string { return "zscore" }

func (z *ZScore) Score(ctx context.Context, matrix [][]float64, p domsvc.ScoreParams) ([]models.Label, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if len(matrix) < 2 {
		return make([]models.Label, len(matrix)), nil
	}
	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scores[i] = floats.Dot(row, row)
	}
	return labelByContamination(scores, p.Contamination), nil
}

var _ domsvc.Scorer = (*ZScore)(nil)
