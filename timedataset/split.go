package timedataset

import (
	"fmt"
	"time"

	"github.com/aouyang1/go-salinity/errs"
)

const (
	DefaultTrainRatio = 0.70
	DefaultValRatio   = 0.15

	// MinSplitDates is the fewest distinct dates a split is attempted with
	MinSplitDates = 10
)

var (
	ErrTooFewDates    = errs.New(errs.KindDataInsufficiency, "not enough distinct dates to split train/val/test")
	ErrEmptyPartition = errs.New(errs.KindDataInsufficiency, "a train/val/test partition is empty")
	ErrInvalidRatio   = errs.New(errs.KindConfiguration, "split ratios must be positive and sum below 1")
)

// SplitResult holds the row indices of each partition along with the cutoff dates. Every
// train date is on or before TrainEnd, every validation date is after TrainEnd and on or before
// ValEnd, and every test date is after ValEnd.
type SplitResult struct {
	Train []int
	Val   []int
	Test  []int

	TrainEnd time.Time
	ValEnd   time.Time
}

// Split partitions the rows, given by their dates, using cutoffs computed over the distinct
// sorted dates rather than the row count so provinces with different densities do not skew
// the boundaries.
func Split(dates []time.Time, trainRatio, valRatio float64) (*SplitResult, error) {
	if trainRatio <= 0 || valRatio <= 0 || trainRatio+valRatio >= 1 {
		return nil, fmt.Errorf("train %.3f, val %.3f, %w", trainRatio, valRatio, ErrInvalidRatio)
	}
	if len(dates) == 0 {
		return nil, ErrNoTrainingData
	}

	unique := DistinctDates(dates)
	n := len(unique)
	if n < MinSplitDates {
		return nil, fmt.Errorf("found %d distinct dates, need %d, %w", n, MinSplitDates, ErrTooFewDates)
	}

	trainIdx := max(1, int(float64(n)*trainRatio)) - 1
	valIdx := max(trainIdx+1, int(float64(n)*(trainRatio+valRatio))) - 1
	valIdx = min(valIdx, n-2)

	res := &SplitResult{
		TrainEnd: unique[trainIdx],
		ValEnd:   unique[valIdx],
	}
	for i, d := range dates {
		day := truncate(d)
		switch {
		case !day.After(res.TrainEnd):
			res.Train = append(res.Train, i)
		case !day.After(res.ValEnd):
			res.Val = append(res.Val, i)
		default:
			res.Test = append(res.Test, i)
		}
	}

	if len(res.Train) == 0 || len(res.Val) == 0 || len(res.Test) == 0 {
		return nil, fmt.Errorf(
			"train %d, val %d, test %d rows, %w",
			len(res.Train), len(res.Val), len(res.Test), ErrEmptyPartition,
		)
	}
	return res, nil
}
