package feature

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var ErrNoRows = errors.New("no rows to encode")

// ProvinceColumns returns the indicator columns of the provinces, ordered by province name
func ProvinceColumns(provinces []string) []string {
	sorted := append([]string(nil), provinces...)
	sort.Strings(sorted)
	cols := make([]string, 0, len(sorted))
	for _, p := range sorted {
		cols = append(cols, ProvinceColumn(p))
	}
	return cols
}

// Encode builds the design matrix of the frame: the named numeric feature columns followed by
// exactly the province vocabulary columns in vocabulary order. A province outside of the
// vocabulary encodes as all zeros. The returned column names always equal numericCols
// followed by provinceCols.
func Encode(f *Frame, numericCols, provinceCols []string) (*mat.Dense, []string, error) {
	if f == nil || len(f.Rows) == 0 {
		return nil, nil, ErrNoRows
	}

	srcIdx := make([]int, 0, len(numericCols))
	for _, name := range numericCols {
		idx, exists := f.Features.IndexOf(name)
		if !exists {
			return nil, nil, fmt.Errorf("frame has no column %q, %w", name, ErrUnknownFeature)
		}
		srcIdx = append(srcIdx, idx)
	}

	vocab := make(map[string]int, len(provinceCols))
	for i, col := range provinceCols {
		vocab[col] = len(numericCols) + i
	}

	m := len(f.Rows)
	n := len(numericCols) + len(provinceCols)
	x := mat.NewDense(m, n, nil)
	for i, r := range f.Rows {
		for j, idx := range srcIdx {
			x.Set(i, j, r.Features[idx])
		}
		if j, exists := vocab[ProvinceColumn(r.Province)]; exists {
			x.Set(i, j, 1)
		}
	}

	cols := make([]string, 0, n)
	cols = append(cols, numericCols...)
	cols = append(cols, provinceCols...)
	return x, cols, nil
}

// Align reorders the columns of x to expected. Expected columns missing from cols are zero
// filled and columns not in expected are dropped.
func Align(x mat.Matrix, cols, expected []string) *mat.Dense {
	m, _ := x.Dims()
	src := make(map[string]int, len(cols))
	for i, c := range cols {
		src[c] = i
	}

	out := mat.NewDense(m, len(expected), nil)
	for j, c := range expected {
		i, exists := src[c]
		if !exists {
			continue
		}
		for r := 0; r < m; r++ {
			out.Set(r, j, x.At(r, i))
		}
	}
	return out
}
