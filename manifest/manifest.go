// Package manifest reads and writes the training metadata that binds the persisted models to
// the exact feature encoding they were trained on.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/models"

	"github.com/goccy/go-json"
)

const (
	// FileName is the manifest file name inside the models directory
	FileName = "metadata.json"

	// VersionLayout formats the model version from the run start time in UTC
	VersionLayout = "20060102150405"

	createdLayout = "2006-01-02T15:04:05.000000"
)

var (
	ErrNotFound       = errs.New(errs.KindNotFound, "model metadata not found, train the models first")
	ErrDecode         = errs.New(errs.KindInternal, "unable to decode model metadata")
	ErrNoHorizons     = errs.New(errs.KindInternal, "model metadata lists no horizons")
	ErrColumnMismatch = errs.New(errs.KindInternal, "feature columns are not the numeric columns followed by the province columns")
	ErrNoModelFile    = errs.New(errs.KindInternal, "model metadata records no model file for a horizon")
)

// Split records the chronological split boundaries
type Split struct {
	TrainEndDate string  `json:"train_end_date"`
	ValEndDate   string  `json:"val_end_date"`
	TrainRatio   float64 `json:"train_ratio"`
	ValRatio     float64 `json:"val_ratio"`
	TestRatio    float64 `json:"test_ratio"`
}

// Artifacts records where the run wrote its derived data
type Artifacts struct {
	PreparedDailyCSV string `json:"prepared_daily_csv"`
	TrainFeatureCSV  string `json:"train_feature_csv"`
	MetricsCSV       string `json:"metrics_csv"`
	PredictionsCSV   string `json:"predictions_csv"`
	ReportPath       string `json:"report_path"`

	// Models and Baselines map each horizon key to the model file of the run, relative to
	// the manifest directory
	Models    map[string]string `json:"models"`
	Baselines map[string]string `json:"baselines"`
}

// DataSources records the provenance needed to rebuild the daily table
type DataSources struct {
	WeatherCSV       string  `json:"weather_csv"`
	LocalDataset     *string `json:"local_dataset"`
	SupabaseFallback bool    `json:"supabase_fallback"`
}

// NewDataSources records the sources of a daily table build
func NewDataSources(src dataset.Sources) DataSources {
	ds := DataSources{
		WeatherCSV:       src.WeatherCSV,
		SupabaseFallback: src.AllowFallback,
	}
	if src.LocalCSV != "" {
		local := src.LocalCSV
		ds.LocalDataset = &local
	}
	return ds
}

// Sources returns the recorded sources for a rebuild
func (d DataSources) Sources() dataset.Sources {
	src := dataset.Sources{
		WeatherCSV:    d.WeatherCSV,
		AllowFallback: d.SupabaseFallback,
	}
	if d.LocalDataset != nil {
		src.LocalCSV = *d.LocalDataset
	}
	return src
}

// Metadata is the training manifest
type Metadata struct {
	ModelVersion          string                   `json:"model_version"`
	CreatedAtUTC          string                   `json:"created_at_utc"`
	Horizons              []int                    `json:"horizons"`
	FeatureColumns        []string                 `json:"feature_columns"`
	NumericFeatureColumns []string                 `json:"numeric_feature_columns"`
	ProvinceDummyColumns  []string                 `json:"province_dummy_columns"`
	Provinces             []string                 `json:"provinces"`
	Split                 Split                    `json:"split"`
	BestParams            map[string]models.Params `json:"best_params"`
	Artifacts             Artifacts                `json:"artifacts"`
	DataSources           DataSources              `json:"data_sources"`
}

// ModelVersion returns the version string of a run started at t
func ModelVersion(t time.Time) string {
	return t.UTC().Format(VersionLayout)
}

// CreatedAt formats the creation time of a manifest
func CreatedAt(t time.Time) string {
	return t.UTC().Format(createdLayout)
}

// ParamsKey is the best_params key of a horizon
func ParamsKey(horizon int) string {
	return fmt.Sprintf("day%d", horizon)
}

// HasProvince returns true if the province qualified for training
func (m *Metadata) HasProvince(province string) bool {
	return slices.Contains(m.Provinces, province)
}

// Validate checks the manifest is usable for inference
func (m *Metadata) Validate() error {
	if len(m.Horizons) == 0 {
		return ErrNoHorizons
	}
	expected := append(slices.Clone(m.NumericFeatureColumns), m.ProvinceDummyColumns...)
	if !slices.Equal(expected, m.FeatureColumns) {
		return ErrColumnMismatch
	}
	for _, h := range m.Horizons {
		if m.Artifacts.Models[ParamsKey(h)] == "" {
			return fmt.Errorf("%s, %w", ParamsKey(h), ErrNoModelFile)
		}
	}
	return nil
}

// Load reads the manifest at path
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s, %w", path, ErrNotFound)
		}
		return nil, errs.Wrap(errs.KindInternal, "unable to read model metadata", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s, %w", err.Error(), ErrDecode)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Write stores the manifest at path through a temporary file renamed into place, so readers
// see either the previous manifest or the complete new one. Renaming the manifest is what
// publishes the models it references.
func Write(path string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode model metadata, %w", err)
	}
	return dataset.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ModelPath returns the boosted model file recorded for a horizon, resolved against the
// directory of the manifest. It is empty when the manifest records none.
func (m *Metadata) ModelPath(manifestPath string, horizon int) string {
	return resolve(manifestPath, m.Artifacts.Models[ParamsKey(horizon)])
}

// BaselinePath returns the baseline model file recorded for a horizon, resolved against the
// directory of the manifest. It is empty when the manifest records none.
func (m *Metadata) BaselinePath(manifestPath string, horizon int) string {
	return resolve(manifestPath, m.Artifacts.Baselines[ParamsKey(horizon)])
}

func resolve(manifestPath, file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(filepath.Dir(manifestPath), file)
}
