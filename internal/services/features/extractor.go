package features

import (
	"math"

	"FinScan/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// Derived feature column names.
const (
	ColumnDailyReturn  = "Daily_Return"
	ColumnVolatility7  = "Volatility_7"
	ColumnVolatility30 = "Volatility_30"
)

// DefaultCandidates is the scoring feature priority list.
var DefaultCandidates = []string{
	models.ColumnClose,
	models.ColumnVolume,
	ColumnDailyReturn,
	ColumnVolatility7,
	ColumnVolatility30,
}

// DailyReturns computes the percentage change r_t = C_t/C_{t-1} - 1.
// The first row, and any row next to a missing or zero close, is NaN.
func DailyReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
		if i == 0 {
			continue
		}
		prev, cur := closes[i-1], closes[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
			continue
		}
		out[i] = cur/prev - 1
	}
	return out
}

// RollingStd computes the sample standard deviation over a trailing window.
// Windows that are not full or contain a NaN yield NaN.
func RollingStd(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.NaN()
		if window < 2 || i+1 < window {
			continue
		}
		w := x[i+1-window : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
	return out
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Derive adds Daily_Return, Volatility_7 and Volatility_30 to a table that
// has a numeric Close column. Columns already present are left untouched.
// It reports whether anything was added.
func Derive(t *models.Table) (bool, error) {
	closeCol, ok := t.Column(models.ColumnClose)
	if !ok || closeCol.Kind != models.KindNumeric {
		return false, nil
	}

	closes := make([]float64, t.Len())
	for i := range closes {
		closes[i], _ = closeCol.Float(i)
	}

	returns := DailyReturns(closes)
	derived := []*models.Column{
		models.NewNumericColumn(ColumnDailyReturn, returns),
		models.NewNumericColumn(ColumnVolatility7, RollingStd(returns, 7)),
		models.NewNumericColumn(ColumnVolatility30, RollingStd(returns, 30)),
	}

	added := false
	for _, c := range derived {
		if t.Has(c.Name) {
			continue
		}
		if err := t.AddColumn(c); err != nil {
			return added, err
		}
		added = true
	}
	return added, nil
}
