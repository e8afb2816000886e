package dataset

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/aouyang1/go-salinity/province"
)

// SalinityRecord is a daily salinity observation from the salinity source together with the
// secondary values that may fill weather gaps. Missing values are NaN.
type SalinityRecord struct {
	Date       time.Time
	Province   string
	Salinity   float64
	RainLocal  float64
	TempLocal  float64
	TempSensor float64
}

// SalinitySource provides daily salinity when no local salinity column is available
type SalinitySource interface {
	DailySalinity(ctx context.Context) ([]SalinityRecord, error)
}

// Sources names the inputs of a daily table build
type Sources struct {
	WeatherCSV    string `json:"weather_csv"`
	LocalCSV      string `json:"local_dataset,omitempty"`
	AllowFallback bool   `json:"supabase_fallback"`
}

// Options configures the assembler
type Options struct {
	// GapLimit bounds how many consecutive missing weather values are filled
	GapLimit int
}

// NewDefaultOptions returns the default assembler options
func NewDefaultOptions() *Options {
	return &Options{
		GapLimit: DefaultGapLimit,
	}
}

// Validate returns a defaulted copy of the options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	if o.GapLimit < 0 {
		return nil, ErrNegativeGapLimit
	}
	opt := *o
	return &opt, nil
}

// Assembler merges the weather feed with a salinity source into the daily table
type Assembler struct {
	opt      *Options
	fallback SalinitySource
}

// NewAssembler returns an assembler. fallback may be nil when no store is configured.
func NewAssembler(opt *Options, fallback SalinitySource) (*Assembler, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Assembler{opt: opt, fallback: fallback}, nil
}

// BuildDaily loads the weather feed, resolves a salinity source, merges both on province and
// date, fills short weather gaps, and drops incomplete rows. The result is sorted by province
// then date.
func (a *Assembler) BuildDaily(ctx context.Context, src Sources) (Daily, error) {
	if src.WeatherCSV == "" {
		return nil, ErrNoWeatherSource
	}
	weather, err := LoadWeatherCSV(src.WeatherCSV)
	if err != nil {
		return nil, fmt.Errorf("unable to load weather feed, %w", err)
	}

	salinity, err := a.salinitySource(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(salinity) == 0 {
		return nil, ErrEmptySalinity
	}

	return merge(salinity, weather, a.opt.GapLimit), nil
}

func (a *Assembler) salinitySource(ctx context.Context, src Sources) ([]SalinityRecord, error) {
	if src.LocalCSV != "" && fileExists(src.LocalCSV) {
		local, err := LoadLocalCSV(src.LocalCSV)
		if err != nil {
			return nil, fmt.Errorf("unable to load local feed, %w", err)
		}
		if local.HasSalinity {
			return fromLocal(local), nil
		}
	}
	if !src.AllowFallback {
		return nil, ErrNoSalinitySource
	}
	if a.fallback == nil {
		return nil, ErrNoFallbackSource
	}
	records, err := a.fallback.DailySalinity(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load salinity from store, %w", err)
	}
	return records, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func fromLocal(local *LocalTable) []SalinityRecord {
	records := make([]SalinityRecord, 0, len(local.Records))
	for _, o := range local.Records {
		rec := SalinityRecord{
			Date:       o.Date,
			Province:   o.Province,
			Salinity:   o.Salinity,
			RainLocal:  math.NaN(),
			TempLocal:  math.NaN(),
			TempSensor: math.NaN(),
		}
		if local.HasRain {
			rec.RainLocal = o.Rain
		}
		if local.HasTemp {
			rec.TempLocal = o.Temp
		}
		records = append(records, rec)
	}
	return records
}

type salinityAcc struct {
	sal, rain, temp, sensor meanAcc
}

type weatherAcc struct {
	rain, temp meanAcc
}

// merge left joins salinity rows with weather on (province, date). Duplicate keys within a
// source are averaged.
func merge(salinity []SalinityRecord, weather []WeatherRecord, gapLimit int) Daily {
	wx := make(map[key]*weatherAcc, len(weather))
	for _, w := range weather {
		k := key{Truncate(w.Date), w.Province}
		acc, exists := wx[k]
		if !exists {
			acc = &weatherAcc{}
			wx[k] = acc
		}
		acc.rain.add(w.Rain)
		acc.temp.add(w.Temp)
	}

	sal := make(map[key]*salinityAcc, len(salinity))
	var keys []key
	for _, s := range salinity {
		prov, ok := province.Normalize(s.Province)
		if !ok || s.Date.IsZero() {
			continue
		}
		k := key{Truncate(s.Date), prov}
		acc, exists := sal[k]
		if !exists {
			acc = &salinityAcc{}
			sal[k] = acc
			keys = append(keys, k)
		}
		acc.sal.add(s.Salinity)
		acc.rain.add(s.RainLocal)
		acc.temp.add(s.TempLocal)
		acc.sensor.add(s.TempSensor)
	}

	groups := make(map[string]Daily)
	for _, k := range keys {
		acc := sal[k]
		o := Observation{
			Date:     k.date,
			Province: k.province,
			Salinity: acc.sal.mean(),
			Rain:     math.NaN(),
			Temp:     math.NaN(),
		}
		if w, exists := wx[k]; exists {
			o.Rain = w.rain.mean()
			o.Temp = w.temp.mean()
		}
		if math.IsNaN(o.Rain) {
			o.Rain = acc.rain.mean()
		}
		if math.IsNaN(o.Temp) {
			o.Temp = acc.temp.mean()
		}
		if math.IsNaN(o.Temp) {
			o.Temp = acc.sensor.mean()
		}
		groups[k.province] = append(groups[k.province], o)
	}

	provinces := make([]string, 0, len(groups))
	for p := range groups {
		provinces = append(provinces, p)
	}
	sort.Strings(provinces)

	var out Daily
	for _, p := range provinces {
		g := groups[p]
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].Date.Before(g[j].Date)
		})
		rain := make([]float64, len(g))
		temp := make([]float64, len(g))
		for i, o := range g {
			rain[i] = o.Rain
			temp[i] = o.Temp
		}
		FillGaps(rain, gapLimit)
		FillGaps(temp, gapLimit)
		for i := range g {
			g[i].Rain = rain[i]
			g[i].Temp = temp[i]
			if g[i].Complete() {
				out = append(out, g[i])
			}
		}
	}
	return out
}
