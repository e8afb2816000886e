// Package forecast serves multi horizon salinity forecasts from a trained model bundle. A
// Service is loaded once from the manifest and is read only afterwards, so it can be shared by
// concurrent requests.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"slices"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/feature"
	"github.com/aouyang1/go-salinity/manifest"
	"github.com/aouyang1/go-salinity/models"
	"github.com/aouyang1/go-salinity/observability"
	"github.com/aouyang1/go-salinity/province"

	"github.com/jonboulle/clockwork"
)

// DefaultTimezone is the zone whose calendar day is the default reference date
const DefaultTimezone = dataset.DefaultTimezone

var (
	ErrMissingProvince  = errs.New(errs.KindValidation, "missing a valid province")
	ErrUnknownProvince  = errs.New(errs.KindNotFound, "no data or model for province")
	ErrInvalidAsOf      = errs.New(errs.KindValidation, "as_of must be formatted YYYY-MM-DD")
	ErrNoHistory        = errs.New(errs.KindDataInsufficiency, "not enough history to build forecast features")
	ErrNoDataBeforeAsOf = errs.New(errs.KindDataInsufficiency, "no valid data on or before as_of")
	ErrMissingModel     = errs.New(errs.KindNotFound, "missing model file")
	ErrMissingInput     = errs.New(errs.KindInternal, "no weather csv to rebuild inference data")
	ErrNoManifestPath   = errs.New(errs.KindConfiguration, "no manifest path provided")
)

// DefaultLocation returns the location of DefaultTimezone
func DefaultLocation() *time.Location {
	return dataset.DefaultLocation()
}

// Options configures a forecast service
type Options struct {
	ManifestPath string

	// Location sets the calendar day used when no as_of is given
	Location *time.Location

	// Features must match the feature options of the training run. Targets are never built.
	Features *feature.Options
}

func NewDefaultOptions() *Options {
	return &Options{
		ManifestPath: manifest.FileName,
		Location:     DefaultLocation(),
		Features:     feature.NewDefaultOptions(),
	}
}

// Validate returns a defaulted copy of the options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return nil, ErrNoManifestPath
	}
	opt := *o
	if opt.ManifestPath == "" {
		return nil, ErrNoManifestPath
	}
	if opt.Location == nil {
		opt.Location = DefaultLocation()
	}
	feat, err := opt.Features.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid feature options, %w", err)
	}
	feat.IncludeTargets = false
	opt.Features = feat
	return &opt, nil
}

// Dependencies are the collaborators of a service. Every field is optional.
type Dependencies struct {
	// Assembler rebuilds the daily table when the prepared dataset is gone
	Assembler *dataset.Assembler
	Clock     clockwork.Clock
	Metrics   *observability.Metrics
}

// Point is the prediction of one horizon
type Point struct {
	DayAhead     int     `json:"day_ahead"`
	Date         string  `json:"date"`
	SalinityPred float64 `json:"salinity_pred"`
}

// Result is a complete forecast. Points are ordered by ascending horizon.
type Result struct {
	Province string `json:"province"`

	// AsOf is the basis date, the latest feature row on or before the reference date. Target
	// dates count from it.
	AsOf         string  `json:"as_of"`
	ModelVersion string  `json:"model_version"`
	Forecast     []Point `json:"forecast"`
}

// Service predicts every manifest horizon for a province
type Service struct {
	opt      *Options
	meta     *manifest.Metadata
	horizons []int
	models   map[int]models.Model

	assembler *dataset.Assembler
	clock     clockwork.Clock
	metrics   *observability.Metrics
}

// NewService loads the manifest and every boosted model it references
func NewService(opt *Options, deps Dependencies) (*Service, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	meta, err := manifest.Load(opt.ManifestPath)
	if err != nil {
		return nil, err
	}

	s := &Service{
		opt:       opt,
		meta:      meta,
		horizons:  slices.Sorted(slices.Values(meta.Horizons)),
		models:    make(map[int]models.Model, len(meta.Horizons)),
		assembler: deps.Assembler,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
	}
	if s.assembler == nil {
		s.assembler, err = dataset.NewAssembler(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize dataset assembler, %w", err)
		}
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}

	// only the files the manifest records are loaded, never whatever sits in the models directory
	for _, h := range s.horizons {
		path := meta.ModelPath(opt.ManifestPath, h)
		model, err := models.Load(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s, %w", path, ErrMissingModel)
			}
			return nil, errs.Wrap(errs.KindInternal, "unable to load model "+path, err)
		}
		s.models[h] = model
	}
	slog.Info("loaded forecast models", "model_version", meta.ModelVersion, "horizons", len(s.horizons))
	return s, nil
}

// Metadata returns a copy of the loaded manifest
func (s *Service) Metadata() manifest.Metadata {
	return *s.meta
}

// ModelVersion is the version of the loaded bundle
func (s *Service) ModelVersion() string {
	return s.meta.ModelVersion
}

// Forecast predicts every horizon for the province from the latest feature row on or before
// asOf. An empty asOf uses the current calendar day of the configured location.
func (s *Service) Forecast(ctx context.Context, prov, asOf string) (*Result, error) {
	start := s.clock.Now()
	res, err := s.forecast(ctx, prov, asOf)
	s.metrics.ObserveForecast(s.clock.Since(start), err)
	return res, err
}

func (s *Service) forecast(ctx context.Context, prov, asOf string) (*Result, error) {
	name, ok := province.Normalize(prov)
	if !ok {
		return nil, ErrMissingProvince
	}
	if !s.meta.HasProvince(name) {
		return nil, fmt.Errorf("%s, %w", prov, ErrUnknownProvince)
	}

	daily, err := s.dailyTable(ctx)
	if err != nil {
		return nil, err
	}

	// features only look within a province so the other provinces can be dropped up front
	var own dataset.Daily
	for _, o := range daily {
		if o.Province == name {
			own = append(own, o)
		}
	}
	frame, err := feature.Build(own, s.opt.Features)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "unable to build features", err)
	}
	rows := frame.DropIncomplete(false)
	if rows.Len() == 0 {
		return nil, fmt.Errorf("%s, %w", name, ErrNoHistory)
	}

	ref, err := s.referenceDate(asOf)
	if err != nil {
		return nil, err
	}
	rows = rows.Filter(func(r feature.Row) bool {
		return !r.Date.After(ref)
	})
	if rows.Len() == 0 {
		return nil, fmt.Errorf("%s on or before %s, %w", name, ref.Format(dataset.DateLayout), ErrNoDataBeforeAsOf)
	}

	latest := rows.Subset([]int{rows.Len() - 1})
	x, cols, err := feature.Encode(latest, s.meta.NumericFeatureColumns, s.meta.ProvinceDummyColumns)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "unable to encode forecast features", err)
	}
	x = feature.Align(x, cols, s.meta.FeatureColumns)

	basis := latest.Rows[0].Date
	res := &Result{
		Province:     name,
		AsOf:         basis.Format(dataset.DateLayout),
		ModelVersion: s.meta.ModelVersion,
		Forecast:     make([]Point, 0, len(s.horizons)),
	}
	for _, h := range s.horizons {
		pred, err := s.models[h].Predict(x)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, fmt.Sprintf("unable to predict day%d", h), err)
		}
		res.Forecast = append(res.Forecast, Point{
			DayAhead:     h,
			Date:         basis.AddDate(0, 0, h).Format(dataset.DateLayout),
			SalinityPred: round4(pred[0]),
		})
	}
	slog.Debug("forecast", "province", name, "as_of", res.AsOf, "model_version", res.ModelVersion)
	return res, nil
}

// dailyTable prefers the prepared dataset of the training run and otherwise rebuilds the
// table from the recorded sources
func (s *Service) dailyTable(ctx context.Context) (dataset.Daily, error) {
	if prepared := s.meta.Artifacts.PreparedDailyCSV; prepared != "" && fileExists(prepared) {
		daily, err := dataset.ReadCSV(prepared)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, "unable to read prepared dataset", err)
		}
		return daily, nil
	}

	src := s.meta.DataSources.Sources()
	if src.WeatherCSV == "" || !fileExists(src.WeatherCSV) {
		return nil, fmt.Errorf("%q, %w", src.WeatherCSV, ErrMissingInput)
	}
	slog.Warn("prepared dataset missing, rebuilding from sources", "weather_csv", src.WeatherCSV)
	daily, err := s.assembler.BuildDaily(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("unable to rebuild daily dataset, %w", err)
	}
	return daily, nil
}

func (s *Service) referenceDate(asOf string) (time.Time, error) {
	if asOf == "" {
		return dataset.Truncate(s.clock.Now().In(s.opt.Location)), nil
	}
	ref, err := dataset.ParseDate(asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q, %w", asOf, ErrInvalidAsOf)
	}
	return ref, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
