package analytics

import (
	"fmt"
	"math"
	"sort"

	"FinScan/internal/domain/models"
	domsvc "FinScan/internal/domain/service"
)

func validateParams(p domsvc.ScoreParams) error {
	if !(p.Contamination > 0 && p.Contamination < 1) {
		return fmt.Errorf("contamination must be in (0,1), got %v", p.Contamination)
	}
	return nil
}

// percentile returns the q-th percentile (0..100) of xs using linear
// interpolation between closest ranks.
func percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	pos := q / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

// labelByContamination flags rows whose score is strictly above the
// (1-contamination) percentile of all scores. Higher score means more
// anomalous.
func labelByContamination(scores []float64, contamination float64) []models.Label {
	labels := make([]models.Label, len(scores))
	if len(scores) == 0 {
		return labels
	}
	thr := percentile(scores, 100*(1-contamination))
	for i, s := range scores {
		if s > thr {
			labels[i] = models.Anomalous
		}
	}
	return labels
}
