package trainer

import (
	"fmt"
	"math"
	"slices"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/feature"
	"github.com/aouyang1/go-salinity/models"
	"github.com/aouyang1/go-salinity/timedataset"
)

const (
	DefaultDataDir    = "data"
	DefaultModelsDir  = "models"
	DefaultReportsDir = "reports"

	// DefaultKeepRuns is the number of run directories kept, the newest first
	DefaultKeepRuns = 3
)

// Artifact file names
const (
	PreparedDailyFile = "prepared_daily_dataset.csv"
	TrainFeatureFile  = "train_feature_dataset.csv"
	MetricsFile       = "metrics_summary.csv"
	PredictionsFile   = "predictions_test.csv"
	ReportFile        = "report_ai1.md"
	ChartsDir         = "charts"
)

var (
	ErrNegativeMinValidDays = errs.New(errs.KindConfiguration, "negative minimum valid days")
	ErrKeepRuns             = errs.New(errs.KindConfiguration, "at least two runs must be kept")
	ErrCustomDryMonths      = errs.New(errs.KindConfiguration, "dry season months differ from the months the forecast service rebuilds")
)

// Options configures a training run
type Options struct {
	DataDir    string `json:"data_dir"`
	ModelsDir  string `json:"models_dir"`
	ReportsDir string `json:"reports_dir"`

	Sources dataset.Sources `json:"sources"`

	// Quick searches the single quick candidate instead of the full grid
	Quick bool `json:"quick"`

	Features     *feature.Options `json:"features"`
	MinValidDays int              `json:"min_valid_days"`
	TrainRatio   float64          `json:"train_ratio"`
	ValRatio     float64          `json:"val_ratio"`

	OLS *models.OLSOptions `json:"ols"`
	GBT *models.GBTOptions `json:"gbt"`

	// KeepRuns bounds how many run directories of models and prepared data are kept. The
	// previous run always survives so a service still holding it can keep reading its data.
	KeepRuns int `json:"keep_runs"`
}

// NewDefaultOptions returns the options of a full training run over the default directories
func NewDefaultOptions() *Options {
	return &Options{
		DataDir:      DefaultDataDir,
		ModelsDir:    DefaultModelsDir,
		ReportsDir:   DefaultReportsDir,
		Features:     feature.NewDefaultOptions(),
		MinValidDays: feature.DefaultMinValidDays,
		TrainRatio:   timedataset.DefaultTrainRatio,
		ValRatio:     timedataset.DefaultValRatio,
		OLS:          models.NewDefaultOLSOptions(),
		GBT:          models.NewDefaultGBTOptions(),
		KeepRuns:     DefaultKeepRuns,
	}
}

// Validate returns a defaulted copy of the options. Targets are always built.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	opt := *o
	if opt.DataDir == "" {
		opt.DataDir = DefaultDataDir
	}
	if opt.ModelsDir == "" {
		opt.ModelsDir = DefaultModelsDir
	}
	if opt.ReportsDir == "" {
		opt.ReportsDir = DefaultReportsDir
	}

	if opt.MinValidDays < 0 {
		return nil, ErrNegativeMinValidDays
	}
	if opt.MinValidDays == 0 {
		opt.MinValidDays = feature.DefaultMinValidDays
	}
	if opt.KeepRuns == 0 {
		opt.KeepRuns = DefaultKeepRuns
	}
	if opt.KeepRuns < 2 {
		return nil, ErrKeepRuns
	}
	if opt.TrainRatio == 0 && opt.ValRatio == 0 {
		opt.TrainRatio = timedataset.DefaultTrainRatio
		opt.ValRatio = timedataset.DefaultValRatio
	}

	feat, err := opt.Features.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid feature options, %w", err)
	}
	// the manifest does not carry the dry months so serving always rebuilds the defaults
	if !slices.Equal(sortedMonths(feat.DryMonths), sortedMonths(feature.DefaultDryMonths)) {
		return nil, fmt.Errorf("%v, %w", feat.DryMonths, ErrCustomDryMonths)
	}
	feat.IncludeTargets = true
	opt.Features = feat

	ols, err := opt.OLS.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid baseline options, %w", err)
	}
	opt.OLS = ols

	gbt, err := opt.GBT.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid boosted tree options, %w", err)
	}
	opt.GBT = gbt
	return &opt, nil
}

func sortedMonths(months []int) []int {
	out := slices.Clone(months)
	slices.Sort(out)
	return slices.Compact(out)
}

// TestRatio is the share of distinct dates left for the test partition
func (o *Options) TestRatio() float64 {
	return math.Round((1-o.TrainRatio-o.ValRatio)*1e6) / 1e6
}

// Grid returns the hyperparameter candidates of the run
func (o *Options) Grid() []models.Params {
	if o.Quick {
		return models.QuickGrid()
	}
	return models.FullGrid()
}
