package feature

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
)

const (
	SalinityLags = 14
	WeatherLags  = 7
)

var (
	DefaultDryMonths = []int{12, 1, 2, 3, 4}
	DefaultHorizons  = []int{1, 2, 3, 4, 5, 6, 7}
)

var (
	ErrInvalidMonth   = errors.New("dry season month must be between 1 and 12")
	ErrInvalidHorizon = errors.New("horizon must be positive")
)

// Options configures the feature build
type Options struct {
	// DryMonths are the calendar months flagged as dry season
	DryMonths []int

	// Horizons are the days ahead a target column is built for
	Horizons []int

	// IncludeTargets adds one forward target column per horizon
	IncludeTargets bool
}

// NewDefaultOptions returns options building training frames
func NewDefaultOptions() *Options {
	return &Options{
		DryMonths:      append([]int(nil), DefaultDryMonths...),
		Horizons:       append([]int(nil), DefaultHorizons...),
		IncludeTargets: true,
	}
}

// Validate returns a defaulted copy of the options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	opt := *o
	if opt.DryMonths == nil {
		opt.DryMonths = append([]int(nil), DefaultDryMonths...)
	}
	if opt.Horizons == nil {
		opt.Horizons = append([]int(nil), DefaultHorizons...)
	}
	for _, m := range opt.DryMonths {
		if m < 1 || m > 12 {
			return nil, ErrInvalidMonth
		}
	}
	for _, h := range opt.Horizons {
		if h < 1 {
			return nil, ErrInvalidHorizon
		}
	}
	return &opt, nil
}

// NumericFeatures returns the numeric features in column order: salinity lags, rainfall lags,
// temperature lags, rolling statistics, then calendar features
func NumericFeatures() []Feature {
	feats := make([]Feature, 0, SalinityLags+2*WeatherLags+7)
	for k := 1; k <= SalinityLags; k++ {
		feats = append(feats, NewLag(SourceSalinity, k))
	}
	for k := 1; k <= WeatherLags; k++ {
		feats = append(feats, NewLag(SourceRain, k))
	}
	for k := 1; k <= WeatherLags; k++ {
		feats = append(feats, NewLag(SourceTemp, k))
	}
	feats = append(feats,
		NewRolling(SourceSalinity, 3, AggMean),
		NewRolling(SourceSalinity, 7, AggMean),
		NewRolling(SourceRain, 7, AggSum),
		NewRolling(SourceTemp, 7, AggMean),
		NewCalendar(CalendarMonth),
		NewCalendar(CalendarDayOfYear),
		NewCalendar(CalendarIsDrySeason),
	)
	return feats
}

// series indexes one province's observations by calendar day
type series map[time.Time]dataset.Observation

func (s series) value(source string, day time.Time) float64 {
	o, exists := s[day]
	if !exists {
		return math.NaN()
	}
	switch source {
	case SourceSalinity:
		return o.Salinity
	case SourceRain:
		return o.Rain
	case SourceTemp:
		return o.Temp
	}
	return math.NaN()
}

// rolling aggregates the window days before day, missing unless every day is observed
func (s series) rolling(r Rolling, day time.Time) float64 {
	sum := 0.0
	for k := 1; k <= r.Window; k++ {
		v := s.value(r.Source, day.AddDate(0, 0, -k))
		if math.IsNaN(v) {
			return math.NaN()
		}
		sum += v
	}
	if r.Agg == AggMean {
		return sum / float64(r.Window)
	}
	return sum
}

// Build expands the daily table into the supervised frame. Lags and targets are looked up by
// calendar day within each province so no feature reads the row date or later, and a target
// always reads exactly the horizon day. Rows are sorted by date then province.
func Build(daily dataset.Daily, opt *Options) (*Frame, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	dry := make(map[int]bool, len(opt.DryMonths))
	for _, m := range opt.DryMonths {
		dry[m] = true
	}

	feats := NumericFeatures()
	var horizons []int
	var targets []Feature
	if opt.IncludeTargets {
		horizons = opt.Horizons
		for _, h := range horizons {
			targets = append(targets, NewTarget(h))
		}
	}

	frame := &Frame{
		Features: NewLabels(feats),
		Targets:  NewLabels(targets),
		Rows:     make([]Row, 0, len(daily)),
	}

	for prov, obs := range daily.ByProvince() {
		s := make(series, len(obs))
		for _, o := range obs {
			s[dataset.Truncate(o.Date)] = o
		}
		for _, o := range obs {
			day := dataset.Truncate(o.Date)
			row := Row{
				Date:     day,
				Province: prov,
				Salinity: o.Salinity,
				Rain:     o.Rain,
				Temp:     o.Temp,
				Features: make([]float64, len(feats)),
				Targets:  make([]float64, len(targets)),
			}
			for i, f := range feats {
				row.Features[i] = s.feature(f, day, dry)
			}
			for i, h := range horizons {
				row.Targets[i] = s.value(SourceSalinity, day.AddDate(0, 0, h))
			}
			frame.Rows = append(frame.Rows, row)
		}
	}

	sort.SliceStable(frame.Rows, func(i, j int) bool {
		ri, rj := frame.Rows[i], frame.Rows[j]
		if !ri.Date.Equal(rj.Date) {
			return ri.Date.Before(rj.Date)
		}
		return ri.Province < rj.Province
	})
	return frame, nil
}

func (s series) feature(f Feature, day time.Time, dry map[int]bool) float64 {
	switch feat := f.(type) {
	case Lag:
		return s.value(feat.Source, day.AddDate(0, 0, -feat.Offset))
	case Rolling:
		return s.rolling(feat, day)
	case Calendar:
		return calendarValue(feat, day, dry)
	}
	return math.NaN()
}

func calendarValue(c Calendar, day time.Time, dry map[int]bool) float64 {
	switch c.Name {
	case CalendarMonth:
		return float64(day.Month())
	case CalendarDayOfYear:
		return float64(day.YearDay())
	case CalendarIsDrySeason:
		if dry[int(day.Month())] {
			return 1
		}
		return 0
	}
	return math.NaN()
}
