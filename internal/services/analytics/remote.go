package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinScan/internal/domain/models"
	domsvc "FinScan/internal/domain/service"
	xhttp "FinScan/pkg/http"
)

// RemoteScorer delegates scoring to an external model service that accepts
// POST <baseURL>/score.
type RemoteScorer struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
}

func NewRemoteScorer(baseURL string, timeout time.Duration, attempts int) *RemoteScorer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteScorer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: attempts,
	}
}

type scoreReq struct {
	Matrix        [][]float64 `json:"matrix"`
	Contamination float64     `json:"contamination"`
	Seed          int64       `json:"seed"`
}

type scoreResp struct {
	Labels []int `json:"labels"`
}

func (r *RemoteScorer) Name() string { return "remote" }

func (r *RemoteScorer) Describe() string { return "remote url=" + r.baseURL }

func (r *RemoteScorer) Score(ctx context.Context, matrix [][]float64, p domsvc.ScoreParams) ([]models.Label, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if len(matrix) == 0 {
		return []models.Label{}, nil
	}

	var resp scoreResp
	err := r.client.PostJSONWithRetry(ctx, r.baseURL+"/score", scoreReq{
		Matrix:        matrix,
		Contamination: p.Contamination,
		Seed:          p.Seed,
	}, &resp, r.attempts)
	if err != nil {
		return nil, fmt.Errorf("remote score: %w", err)
	}
	if len(resp.Labels) != len(matrix) {
		return nil, fmt.Errorf("remote score: got %d labels for %d rows", len(resp.Labels), len(matrix))
	}

	out := make([]models.Label, len(resp.Labels))
	for i, l := range resp.Labels {
		switch l {
		case 0:
		case 1:
			out[i] = models.Anomalous
		default:
			return nil, fmt.Errorf("remote score: label %d at row %d", l, i)
		}
	}
	return out, nil
}

var _ domsvc.Scorer = (*RemoteScorer)(nil)
