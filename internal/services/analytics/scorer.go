package analytics

import (
	"fmt"

	domsvc "FinScan/internal/domain/service"
	"FinScan/pkg/config"
	"FinScan/pkg/logger"
)

// New picks the scorer named by model.algorithm.
func New(cfg *config.Config, log *logger.Logger) (domsvc.Scorer, error) {
	switch cfg.Model.Algorithm {
	case "", "iforest":
		return NewIsolationForest(
			WithTrees(cfg.Model.Trees),
			WithSampleSize(cfg.Model.SampleSize),
			WithWorkers(cfg.Model.Workers),
			WithForestLogger(log),
		), nil
	case "zscore":
		return NewZScore(), nil
	case "remote":
		if cfg.Model.RemoteURL == "" {
			return nil, fmt.Errorf("model.remote_url is required for algorithm 'remote'")
		}
		return NewRemoteScorer(cfg.Model.RemoteURL, cfg.Model.Timeout, cfg.Model.Retries), nil
	default:
		return nil, fmt.Errorf("unknown model algorithm %q", cfg.Model.Algorithm)
	}
}
