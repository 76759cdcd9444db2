package report

import (
	"fmt"
	"strconv"
	"strings"

	"FinScan/internal/domain/models"
)

// Summarize counts labeled rows and, when a GroundTruth column exists,
// evaluates the labels against it. Undefined ratios evaluate to 0.
func Summarize(t *models.Table, contamination float64) models.MetricsSummary {
	s := models.MetricsSummary{
		TotalRows:     t.Len(),
		Contamination: contamination,
	}
	labels, _ := t.Labels()
	for _, l := range labels {
		if l == models.Anomalous {
			s.Anomalies++
		}
	}
	if s.TotalRows > 0 {
		s.Fraction = float64(s.Anomalies) / float64(s.TotalRows)
	}

	if truth, ok := groundTruth(t); ok {
		s.Evaluation = evaluate(labels, truth)
	}
	return s
}

func groundTruth(t *models.Table) ([]models.Label, bool) {
	c, ok := t.Column(models.ColumnGroundTruth)
	if !ok {
		return nil, false
	}
	out := make([]models.Label, t.Len())
	for i := range out {
		switch c.Kind {
		case models.KindNumeric:
			if v, ok := c.Float(i); ok && v != 0 {
				out[i] = models.Anomalous
			}
		default:
			if b, err := strconv.ParseBool(strings.TrimSpace(c.Raw[i])); err == nil && b {
				out[i] = models.Anomalous
			}
		}
	}
	return out, true
}

func evaluate(pred, truth []models.Label) *models.Evaluation {
	e := &models.Evaluation{}
	for i := range truth {
		p := i < len(pred) && pred[i] == models.Anomalous
		a := truth[i] == models.Anomalous
		switch {
		case p && a:
			e.TruePositives++
		case p:
			e.FalsePositives++
		case a:
			e.FalseNegatives++
		}
	}
	e.Precision = ratio(e.TruePositives, e.TruePositives+e.FalsePositives)
	e.Recall = ratio(e.TruePositives, e.TruePositives+e.FalseNegatives)
	if e.Precision+e.Recall > 0 {
		e.F1 = 2 * e.Precision * e.Recall / (e.Precision + e.Recall)
	}
	return e
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// SkippedEvaluation is printed instead of precision, recall and F1 when the
// table has no ground truth.
const SkippedEvaluation = "Ground truth column not found: precision/recall/F1 skipped."

// FormatSummary renders the metrics report.
func FormatSummary(s models.MetricsSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total rows: %d\n", s.TotalRows)
	fmt.Fprintf(&b, "Number of anomalies detected: %d\n", s.Anomalies)
	fmt.Fprintf(&b, "Anomaly fraction: %.2f%%\n", s.Fraction*100)
	fmt.Fprintf(&b, "Contamination rate: %g\n", s.Contamination)
	if s.Evaluation == nil {
		b.WriteString(SkippedEvaluation + "\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Precision: %.4f\n", s.Evaluation.Precision)
	fmt.Fprintf(&b, "Recall: %.4f\n", s.Evaluation.Recall)
	fmt.Fprintf(&b, "F1 score: %.4f\n", s.Evaluation.F1)
	return b.String()
}
