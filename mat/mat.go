// Package mat holds small gonum matrix helpers shared by the model fits.
package mat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrColMismatch = errors.New("column size mismatch")

// NewDenseFromArray builds a dense matrix from row major nested slices. Empty input returns
// mat.ErrZeroLength since gonum cannot represent a zero sized dense matrix.
func NewDenseFromArray(x [][]float64) (*mat.Dense, error) {
	m := len(x)

	n := -1
	for i, row := range x {
		if n >= 0 && len(row) != n {
			return nil, fmt.Errorf("at row %d, %w", i, ErrColMismatch)
		}
		if n < 0 {
			n = len(row)
		}
	}
	if m == 0 || n <= 0 {
		return nil, mat.ErrZeroLength
	}

	// flatten to row order
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data), nil
}

// PrependOnes returns a copy of x with a leading column of ones
func PrependOnes(x mat.Matrix) *mat.Dense {
	m, n := x.Dims()
	out := mat.NewDense(m, n+1, nil)
	for i := 0; i < m; i++ {
		out.Set(i, 0, 1)
		for j := 0; j < n; j++ {
			out.Set(i, j+1, x.At(i, j))
		}
	}
	return out
}

// Columns copies x into column major slices
func Columns(x mat.Matrix) [][]float64 {
	_, n := x.Dims()
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = mat.Col(nil, j, x)
	}
	return cols
}

// Rows copies x into row major slices
func Rows(x mat.Matrix) [][]float64 {
	m, _ := x.Dims()
	rows := make([][]float64, m)
	for i := 0; i < m; i++ {
		rows[i] = mat.Row(nil, i, x)
	}
	return rows
}

// Vector returns the first column of y
func Vector(y mat.Matrix) []float64 {
	return mat.Col(nil, 0, y)
}
