// Package stats flags anomalous observations in a series.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Tukey fences around the interquartile range
const (
	DefaultLowerPercentile = 0.25
	DefaultUpperPercentile = 0.75
	DefaultTukeyFactor     = 1.5
)

// DetectOutliers returns the ascending indices of values outside the fences spanned by the
// lower and upper percentiles widened by tukeyFactor times their range. NaN values are never
// outliers.
func DetectOutliers(y []float64, lowerPerc, upperPerc, tukeyFactor float64) []int {
	lowerPerc = math.Max(lowerPerc, 0.0)
	upperPerc = math.Min(upperPerc, 1.0)
	tukeyFactor = math.Max(tukeyFactor, 0.0)

	sorted := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 || lowerPerc > upperPerc {
		return nil
	}
	slices.Sort(sorted)

	lower := stat.Quantile(lowerPerc, stat.Empirical, sorted, nil)
	upper := stat.Quantile(upperPerc, stat.Empirical, sorted, nil)
	innerRange := upper - lower
	lower -= innerRange * tukeyFactor
	upper += innerRange * tukeyFactor

	var outlierIdx []int
	for i, v := range y {
		if v > upper || v < lower {
			outlierIdx = append(outlierIdx, i)
		}
	}
	return outlierIdx
}
