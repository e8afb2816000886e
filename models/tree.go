package models

import (
	"math"
	"sort"
)

// DefaultMaxBins bounds the number of candidate thresholds per feature
const DefaultMaxBins = 256

// Node is one node of a regression tree. Leaves carry the learning rate scaled output.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a binary regression tree stored as a flat node slice rooted at index 0. Values less
// than or equal to a node threshold go left, everything else including NaN goes right.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// binner maps raw feature values to quantile bins. Bin i holds values in
// (thresholds[i-1], thresholds[i]], the last bin everything above the last threshold.
type binner struct {
	thresholds [][]float64
}

func newBinner(cols [][]float64, maxBins int) *binner {
	b := &binner{thresholds: make([][]float64, len(cols))}
	for j, col := range cols {
		b.thresholds[j] = quantileThresholds(col, maxBins)
	}
	return b
}

// quantileThresholds returns the split candidates of a column. Columns with few distinct
// values split at the midpoint of neighbors, others at evenly spaced order statistics.
func quantileThresholds(col []float64, maxBins int) []float64 {
	vals := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)

	uniq := vals[:1]
	for _, v := range vals[1:] {
		if v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) <= maxBins {
		thresholds := make([]float64, 0, len(uniq)-1)
		for i := 1; i < len(uniq); i++ {
			thresholds = append(thresholds, (uniq[i-1]+uniq[i])/2)
		}
		return thresholds
	}

	thresholds := make([]float64, 0, maxBins-1)
	for q := 1; q < maxBins; q++ {
		v := vals[q*len(vals)/maxBins]
		if len(thresholds) > 0 && v <= thresholds[len(thresholds)-1] {
			continue
		}
		// the maximum cannot split anything off
		if v >= vals[len(vals)-1] {
			break
		}
		thresholds = append(thresholds, v)
	}
	return thresholds
}

func (b *binner) numBins(feature int) int {
	return len(b.thresholds[feature]) + 1
}

func (b *binner) bin(feature int, v float64) int {
	t := b.thresholds[feature]
	return sort.Search(len(t), func(i int) bool { return t[i] >= v })
}

// binColumns returns the bin index of every value, column major
func (b *binner) binColumns(cols [][]float64) [][]uint16 {
	binned := make([][]uint16, len(cols))
	for j, col := range cols {
		binned[j] = make([]uint16, len(col))
		for i, v := range col {
			binned[j][i] = uint16(b.bin(j, v))
		}
	}
	return binned
}

// split is the best threshold found for one feature over one node
type split struct {
	feature int
	bin     int
	gain    float64
	valid   bool
}

// gradStat accumulates first and second order gradients
type gradStat struct {
	g, h float64
}

func (s gradStat) weight(lambda float64) float64 {
	return -s.g / (s.h + lambda)
}

func (s gradStat) objective(lambda float64) float64 {
	return s.g * s.g / (s.h + lambda)
}

// bestSplit scans the gradient histogram of one feature over the node rows
func bestSplit(feature int, bins []uint16, nBins int, rows []int, grad, hess []float64, total gradStat, lambda, minChildWeight float64) split {
	if nBins < 2 {
		return split{}
	}
	hist := make([]gradStat, nBins)
	for _, r := range rows {
		b := bins[r]
		hist[b].g += grad[r]
		hist[b].h += hess[r]
	}

	best := split{feature: feature}
	parent := total.objective(lambda)
	var left gradStat
	for b := 0; b < nBins-1; b++ {
		left.g += hist[b].g
		left.h += hist[b].h
		right := gradStat{g: total.g - left.g, h: total.h - left.h}
		if left.h <= 0 || right.h <= 0 || left.h < minChildWeight || right.h < minChildWeight {
			continue
		}
		gain := 0.5 * (left.objective(lambda) + right.objective(lambda) - parent)
		if gain > best.gain {
			best.gain = gain
			best.bin = b
			best.valid = true
		}
	}
	return best
}
