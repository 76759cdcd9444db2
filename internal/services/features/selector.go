package features

import (
	"fmt"
	"math"

	"FinScan/internal/domain/models"
)

// Select returns the candidates present in t as numeric columns, in candidate
// order, together with a row-major matrix of their values. Missing cells are
// NaN. It returns models.ErrNoFeatures when nothing matches.
func Select(t *models.Table, candidates []string) ([][]float64, []string, error) {
	var cols []*models.Column
	var used []string
	for _, name := range candidates {
		c, ok := t.Column(name)
		if !ok || c.Kind != models.KindNumeric {
			continue
		}
		cols = append(cols, c)
		used = append(used, name)
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("%w: none of %v in %s", models.ErrNoFeatures, candidates, t.Source)
	}

	matrix := make([][]float64, t.Len())
	for i := range matrix {
		row := make([]float64, len(cols))
		for j, c := range cols {
			v, ok := c.Float(i)
			if !ok {
				v = math.NaN()
			}
			row[j] = v
		}
		matrix[i] = row
	}
	return matrix, used, nil
}
