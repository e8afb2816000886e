package feature

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
)

// Row is one province day of the supervised frame. Features and Targets line up with the
// labels of the owning frame. Missing values are NaN.
type Row struct {
	Date     time.Time
	Province string

	Salinity float64
	Rain     float64
	Temp     float64

	Features []float64
	Targets  []float64
}

// Frame is the supervised learning table sorted by date then province
type Frame struct {
	Features *Labels
	Targets  *Labels
	Rows     []Row
}

// FeatureColumns returns the numeric feature column names in order
func (f *Frame) FeatureColumns() []string {
	return f.Features.Names()
}

// TargetColumns returns the target column names in order
func (f *Frame) TargetColumns() []string {
	return f.Targets.Names()
}

func (f *Frame) Len() int {
	return len(f.Rows)
}

// Dates returns the date of every row
func (f *Frame) Dates() []time.Time {
	dates := make([]time.Time, 0, len(f.Rows))
	for _, r := range f.Rows {
		dates = append(dates, r.Date)
	}
	return dates
}

// Provinces returns the sorted distinct provinces of the frame
func (f *Frame) Provinces() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range f.Rows {
		if _, exists := seen[r.Province]; exists {
			continue
		}
		seen[r.Province] = struct{}{}
		out = append(out, r.Province)
	}
	sort.Strings(out)
	return out
}

// Subset returns a frame with the rows at the given indices, sharing the labels
func (f *Frame) Subset(idx []int) *Frame {
	rows := make([]Row, 0, len(idx))
	for _, i := range idx {
		rows = append(rows, f.Rows[i])
	}
	return &Frame{Features: f.Features, Targets: f.Targets, Rows: rows}
}

// Filter returns a frame with the rows matching keep
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	var rows []Row
	for _, r := range f.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return &Frame{Features: f.Features, Targets: f.Targets, Rows: rows}
}

// Target returns the column of the given target
func (f *Frame) Target(t Target) ([]float64, error) {
	idx, exists := f.Targets.Index(t)
	if !exists {
		return nil, fmt.Errorf("%s, %w", t, ErrUnknownFeature)
	}
	y := make([]float64, 0, len(f.Rows))
	for _, r := range f.Rows {
		y = append(y, r.Targets[idx])
	}
	return y, nil
}

// Column returns a numeric feature column by name
func (f *Frame) Column(name string) ([]float64, error) {
	idx, exists := f.Features.IndexOf(name)
	if !exists {
		return nil, fmt.Errorf("%q, %w", name, ErrUnknownFeature)
	}
	col := make([]float64, 0, len(f.Rows))
	for _, r := range f.Rows {
		col = append(col, r.Features[idx])
	}
	return col, nil
}

// DropIncomplete returns the rows with every feature present, and every target present when
// withTargets is set
func (f *Frame) DropIncomplete(withTargets bool) *Frame {
	return f.Filter(func(r Row) bool {
		if hasNaN(r.Features) {
			return false
		}
		return !withTargets || !hasNaN(r.Targets)
	})
}

func hasNaN(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// WriteCSV writes the frame with its raw observations, features, and targets
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "province", "salinity_daily", "rain_mm", "temp_c"}
	header = append(header, f.FeatureColumns()...)
	header = append(header, f.TargetColumns()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for _, r := range f.Rows {
		rec = rec[:0]
		rec = append(rec,
			r.Date.Format(dataset.DateLayout),
			r.Province,
			dataset.FormatFloat(r.Salinity),
			dataset.FormatFloat(r.Rain),
			dataset.FormatFloat(r.Temp),
		)
		for _, v := range r.Features {
			rec = append(rec, dataset.FormatFloat(v))
		}
		for _, v := range r.Targets {
			rec = append(rec, dataset.FormatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile atomically replaces path with the frame
func (f *Frame) WriteCSVFile(path string) error {
	return dataset.WriteFileAtomic(path, f.WriteCSV)
}
