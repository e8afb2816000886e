// Package timedataset holds calendar day series helpers and the chronological splitter that
// partitions observations into train, validation, and test sets by global date cutoffs.
package timedataset

import (
	"fmt"
	"sort"
	"time"

	"github.com/aouyang1/go-salinity/errs"
)

var (
	ErrNoTrainingData = errs.New(errs.KindDataInsufficiency, "no training data")
	ErrNonMontonic    = errs.New(errs.KindInternal, "time feature is not monotonic")
)

// TimeSlice is a slice of calendar days
type TimeSlice []time.Time

// DistinctDates returns the sorted distinct calendar days of t
func DistinctDates(t []time.Time) TimeSlice {
	seen := make(map[time.Time]struct{}, len(t))
	out := make(TimeSlice, 0, len(t))
	for _, ct := range t {
		day := truncate(ct)
		if _, exists := seen[day]; exists {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

// Validate checks the slice is strictly increasing
func (t TimeSlice) Validate() error {
	if len(t) == 0 {
		return ErrNoTrainingData
	}
	for i := 1; i < len(t); i++ {
		if !t[i].After(t[i-1]) {
			return fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
	}
	return nil
}

func (t TimeSlice) StartTime() time.Time {
	var startTime time.Time
	if len(t) < 1 {
		return startTime
	}
	return t[0]
}

func (t TimeSlice) EndTime() time.Time {
	var lastTime time.Time
	if len(t) < 1 {
		return lastTime
	}
	return t[len(t)-1]
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
