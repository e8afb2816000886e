package dataset

import "math"

// FillGaps fills runs of missing values in place. Interior runs no longer than limit are
// linearly interpolated by position. Remaining runs are forward filled then backward filled,
// each reaching at most limit positions from the nearest observed value, so the middle of a
// long gap stays missing. A limit of 0 disables filling.
func FillGaps(y []float64, limit int) []float64 {
	if limit <= 0 {
		return y
	}
	n := len(y)

	// interpolate short interior runs
	last := -1
	for i := 0; i < n; i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		gap := i - last - 1
		if last >= 0 && gap > 0 && gap <= limit {
			step := (y[i] - y[last]) / float64(i-last)
			for j := last + 1; j < i; j++ {
				y[j] = y[last] + step*float64(j-last)
			}
		}
		last = i
	}

	filled := make([]bool, n)

	// forward fill
	run := 0
	prev := math.NaN()
	for i := 0; i < n; i++ {
		if !math.IsNaN(y[i]) {
			prev = y[i]
			run = 0
			continue
		}
		if math.IsNaN(prev) || run >= limit {
			run++
			continue
		}
		y[i] = prev
		filled[i] = true
		run++
	}

	// backward fill, counting only positions not already forward filled
	run = 0
	next := math.NaN()
	for i := n - 1; i >= 0; i-- {
		if !math.IsNaN(y[i]) && !filled[i] {
			next = y[i]
			run = 0
			continue
		}
		if filled[i] {
			continue
		}
		if math.IsNaN(next) || run >= limit {
			run++
			continue
		}
		y[i] = next
		run++
	}
	return y
}
