package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// zeroStd is the spread below which a column is treated as constant.
const zeroStd = 1e-12

// FitTransform fills NaN with 0 and rescales every column to zero mean and
// unit population variance. Constant columns map to 0. The input is not
// modified and the output has the same shape.
func FitTransform(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		r := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				v = 0
			}
			r[j] = v
		}
		out[i] = r
	}
	if len(out) == 0 {
		return out
	}

	cols := len(out[0])
	col := make([]float64, len(out))
	for j := 0; j < cols; j++ {
		for i := range out {
			col[i] = out[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		for i := range out {
			if std < zeroStd {
				out[i][j] = 0
				continue
			}
			out[i][j] = (out[i][j] - mean) / std
		}
	}
	return out
}
