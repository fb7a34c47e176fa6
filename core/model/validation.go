package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// CheckXY validates a training pair: X non-empty, y a single column, rows aligned.
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	return rows, cols, nil
}

// Column copies the first column of y into a slice.
func Column(y mat.Matrix) []float64 {
	return mat.Col(nil, 0, y)
}

// Rows copies X into row-major slices. Tree and neighbour estimators work on
// rows directly.
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = X.At(i, j)
		}
		out[i] = row
	}
	return out
}

// ColumnVector wraps predictions as an n×1 dense matrix.
func ColumnVector(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}
