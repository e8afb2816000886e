// Package feature turns the daily table into a supervised learning frame of strictly lagged
// features and forward targets, and encodes provinces against a fixed one-hot vocabulary.
package feature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type FeatureType int

const (
	FeatureTypeLag FeatureType = iota
	FeatureTypeRolling
	FeatureTypeCalendar
	FeatureTypeProvince
	FeatureTypeTarget
)

// Observation sources a lag or rolling feature reads from
const (
	SourceSalinity = "sal"
	SourceRain     = "rain"
	SourceTemp     = "temp"
)

// Calendar feature names
const (
	CalendarMonth       = "month"
	CalendarDayOfYear   = "day_of_year"
	CalendarIsDrySeason = "is_dry_season"
)

// ProvinceColumnPrefix prefixes every province indicator column
const ProvinceColumnPrefix = "province__"

var ErrUnknownFeature = errors.New("unknown feature column")

type Feature interface {
	String() string
	Type() FeatureType
}

// Lag is the source value Offset days before the row date
type Lag struct {
	Source string `json:"source"`
	Offset int    `json:"offset"`
}

func NewLag(source string, offset int) Lag {
	return Lag{Source: source, Offset: offset}
}

func (l Lag) String() string {
	return fmt.Sprintf("%s_t-%d", l.Source, l.Offset)
}

func (l Lag) Type() FeatureType {
	return FeatureTypeLag
}

// Rolling aggregates the Window days strictly before the row date
type Rolling struct {
	Source string `json:"source"`
	Window int    `json:"window"`
	Agg    string `json:"agg"`
}

const (
	AggMean = "avg"
	AggSum  = "sum"
)

func NewRolling(source string, window int, agg string) Rolling {
	return Rolling{Source: source, Window: window, Agg: agg}
}

func (r Rolling) String() string {
	return fmt.Sprintf("%s_%dd_%s", r.Source, r.Window, r.Agg)
}

func (r Rolling) Type() FeatureType {
	return FeatureTypeRolling
}

// Calendar is derived from the row date alone
type Calendar struct {
	Name string `json:"name"`
}

func NewCalendar(name string) Calendar {
	return Calendar{Name: name}
}

func (c Calendar) String() string {
	return c.Name
}

func (c Calendar) Type() FeatureType {
	return FeatureTypeCalendar
}

// Province is the one-hot indicator of a canonical province
type Province struct {
	Name string `json:"name"`
}

func NewProvince(name string) Province {
	return Province{Name: name}
}

func (p Province) String() string {
	return ProvinceColumn(p.Name)
}

func (p Province) Type() FeatureType {
	return FeatureTypeProvince
}

// Target is the salinity Horizon days after the row date
type Target struct {
	Horizon int `json:"horizon"`
}

func NewTarget(horizon int) Target {
	return Target{Horizon: horizon}
}

func (t Target) String() string {
	return fmt.Sprintf("y_day%d", t.Horizon)
}

func (t Target) Type() FeatureType {
	return FeatureTypeTarget
}

// ProvinceColumn returns the indicator column name of a province
func ProvinceColumn(name string) string {
	return ProvinceColumnPrefix + strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// Parse returns the typed feature of a column name. Province columns cannot be parsed back to
// a canonical name and are returned with the encoded suffix as the name.
func Parse(name string) (Feature, error) {
	switch name {
	case CalendarMonth, CalendarDayOfYear, CalendarIsDrySeason:
		return NewCalendar(name), nil
	}
	if suffix, found := strings.CutPrefix(name, ProvinceColumnPrefix); found && suffix != "" {
		return NewProvince(suffix), nil
	}
	if suffix, found := strings.CutPrefix(name, "y_day"); found {
		h, err := strconv.Atoi(suffix)
		if err == nil && h > 0 {
			return NewTarget(h), nil
		}
	}
	for _, source := range []string{SourceSalinity, SourceRain, SourceTemp} {
		rest, found := strings.CutPrefix(name, source+"_")
		if !found {
			continue
		}
		if offset, found := strings.CutPrefix(rest, "t-"); found {
			k, err := strconv.Atoi(offset)
			if err == nil && k > 0 {
				return NewLag(source, k), nil
			}
			break
		}
		window, agg, found := strings.Cut(rest, "d_")
		if !found || (agg != AggMean && agg != AggSum) {
			break
		}
		w, err := strconv.Atoi(window)
		if err == nil && w > 0 {
			return NewRolling(source, w, agg), nil
		}
	}
	return nil, fmt.Errorf("%q, %w", name, ErrUnknownFeature)
}
