package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillGaps(t *testing.T) {
	nan := math.NaN()

	testData := map[string]struct {
		y        []float64
		limit    int
		expected []float64
	}{
		"no gaps": {
			y:        []float64{1, 2, 3},
			limit:    3,
			expected: []float64{1, 2, 3},
		},
		"short interior gap interpolated": {
			y:        []float64{1, nan, nan, 4},
			limit:    3,
			expected: []float64{1, 2, 3, 4},
		},
		"gap at limit interpolated": {
			y:        []float64{0, nan, nan, nan, 8},
			limit:    3,
			expected: []float64{0, 2, 4, 6, 8},
		},
		"long gap filled from both edges": {
			y:        []float64{1, nan, nan, nan, nan, nan, nan, nan, nan, 9},
			limit:    3,
			expected: []float64{1, 1, 1, 1, nan, nan, 9, 9, 9, 9},
		},
		"leading and trailing": {
			y:        []float64{nan, nan, 5, nan},
			limit:    3,
			expected: []float64{5, 5, 5, 5},
		},
		"leading beyond limit": {
			y:        []float64{nan, nan, nan, 7},
			limit:    2,
			expected: []float64{nan, 7, 7, 7},
		},
		"all missing": {
			y:        []float64{nan, nan},
			limit:    3,
			expected: []float64{nan, nan},
		},
		"disabled": {
			y:        []float64{1, nan, 3},
			limit:    0,
			expected: []float64{1, nan, 3},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := FillGaps(td.y, td.limit)
			assert.Len(t, res, len(td.expected))
			for i := range td.expected {
				if math.IsNaN(td.expected[i]) {
					assert.True(t, math.IsNaN(res[i]), "index %d", i)
					continue
				}
				assert.InDelta(t, td.expected[i], res[i], 1e-9, "index %d", i)
			}
		})
	}
}
