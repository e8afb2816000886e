// Package dataset assembles the daily per province table of salinity, rainfall, and
// temperature observations the feature builder consumes.
package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/aouyang1/go-salinity/errs"
)

// DateLayout is the calendar date format used by every csv artifact
const DateLayout = "2006-01-02"

// DefaultTimezone is the zone whose calendar day dates sensor readings and reference dates
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// DefaultGapLimit is the maximum number of consecutive missing weather values filled per gap edge
const DefaultGapLimit = 3

var (
	ErrMissingColumns   = errs.New(errs.KindSchema, "missing required columns")
	ErrNoSalinitySource = errs.New(errs.KindConfiguration, "no salinity column in local dataset and store fallback is disabled")
	ErrNoFallbackSource = errs.New(errs.KindConfiguration, "store fallback is enabled but no store is configured")
	ErrEmptySalinity    = errs.New(errs.KindConfiguration, "salinity source returned no observations")
	ErrNoWeatherSource  = errs.New(errs.KindConfiguration, "no weather csv provided")
	ErrNegativeGapLimit = errs.New(errs.KindConfiguration, "negative gap limit")
)

// Column alias tables, resolved case-insensitively in order
var (
	DateAliases     = []string{"date", "timestamp", "day"}
	ProvinceAliases = []string{"province", "tinh", "province_name"}
	RainAliases     = []string{"rain_mm", "rainfall_mm", "rain", "rainfall"}
	TempAliases     = []string{"temp_c", "temperature_c", "temperature", "temp"}
	SalinityAliases = []string{"salinity_daily", "salinity", "salinity_ppt", "salinityppt"}
)

// Observation is a single province day. Missing values are NaN.
type Observation struct {
	Date     time.Time
	Province string
	Salinity float64
	Rain     float64
	Temp     float64
}

// Complete returns true if every field is present
func (o Observation) Complete() bool {
	return !o.Date.IsZero() && o.Province != "" &&
		!math.IsNaN(o.Salinity) && !math.IsNaN(o.Rain) && !math.IsNaN(o.Temp)
}

// Daily is a table of observations unique per province and date
type Daily []Observation

// Sort orders the table by province then date
func (d Daily) Sort() {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].Province != d[j].Province {
			return d[i].Province < d[j].Province
		}
		return d[i].Date.Before(d[j].Date)
	})
}

// Provinces returns the sorted distinct provinces of the table
func (d Daily) Provinces() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range d {
		if _, exists := seen[o.Province]; exists {
			continue
		}
		seen[o.Province] = struct{}{}
		out = append(out, o.Province)
	}
	sort.Strings(out)
	return out
}

// ByProvince splits the table into per province tables, each sorted by date
func (d Daily) ByProvince() map[string]Daily {
	groups := make(map[string]Daily)
	for _, o := range d {
		groups[o.Province] = append(groups[o.Province], o)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].Date.Before(g[j].Date)
		})
	}
	return groups
}

// Truncate returns the calendar day of t as midnight UTC
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type key struct {
	date     time.Time
	province string
}

// meanAcc averages the non missing values it sees
type meanAcc struct {
	sum float64
	cnt int
}

func (a *meanAcc) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	a.sum += v
	a.cnt++
}

func (a meanAcc) mean() float64 {
	if a.cnt == 0 {
		return math.NaN()
	}
	return a.sum / float64(a.cnt)
}

// DefaultLocation returns the default timezone, falling back to a fixed UTC+7 zone when the
// zone database is unavailable
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}
