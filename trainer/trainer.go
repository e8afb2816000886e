// Package trainer runs the end to end training pipeline: it assembles the daily table, builds
// and splits the supervised frame, fits a baseline and a searched boosted model per horizon,
// evaluates both on the test partition, and writes the models, reports, and manifest.
package trainer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/feature"
	"github.com/aouyang1/go-salinity/manifest"
	"github.com/aouyang1/go-salinity/models"
	"github.com/aouyang1/go-salinity/notify"
	"github.com/aouyang1/go-salinity/observability"
	"github.com/aouyang1/go-salinity/report"
	"github.com/aouyang1/go-salinity/score"
	"github.com/aouyang1/go-salinity/stats"
	"github.com/aouyang1/go-salinity/timedataset"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/mat"
)

var ErrNoValidRows = errs.New(errs.KindDataInsufficiency, "no valid rows after feature engineering and province filtering")

// Dependencies are the collaborators of a trainer. Every field is optional.
type Dependencies struct {
	Assembler *dataset.Assembler
	Clock     clockwork.Clock
	Publisher notify.Publisher
	Metrics   *observability.Metrics
}

// Trainer runs training passes with fixed options
type Trainer struct {
	opt       *Options
	assembler *dataset.Assembler
	clock     clockwork.Clock
	publisher notify.Publisher
	metrics   *observability.Metrics
}

// New creates a trainer. If no options are provided a default is used.
func New(opt *Options, deps Dependencies) (*Trainer, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		opt:       opt,
		assembler: deps.Assembler,
		clock:     deps.Clock,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
	}
	if t.assembler == nil {
		t.assembler, err = dataset.NewAssembler(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize dataset assembler, %w", err)
		}
	}
	if t.clock == nil {
		t.clock = clockwork.NewRealClock()
	}
	if t.publisher == nil {
		t.publisher = notify.Nop{}
	}
	return t, nil
}

// Options returns a copy of the validated options
func (t *Trainer) Options() Options {
	return *t.opt
}

// ManifestPath is where a successful run writes its manifest
func (t *Trainer) ManifestPath() string {
	return filepath.Join(t.opt.ModelsDir, manifest.FileName)
}

// Run executes one training pass and returns the written manifest. The manifest is the last
// file written, so a failed run leaves the previous manifest in place.
func (t *Trainer) Run(ctx context.Context) (*manifest.Metadata, error) {
	start := t.clock.Now()
	mode := "full"
	if t.opt.Quick {
		mode = "quick"
	}
	slog.Info("starting training", "mode", mode, "weather_csv", t.opt.Sources.WeatherCSV)

	meta, err := t.run(ctx, start)
	t.metrics.ObserveTraining(t.clock.Since(start), err)
	if err != nil {
		slog.Error("training failed", "error", err.Error())
		return nil, err
	}

	notify.PublishBestEffort(ctx, t.publisher, notify.NewEvent(
		t.clock,
		notify.TypeModelPublished,
		notify.DefaultSource,
		map[string]any{
			"model_version": meta.ModelVersion,
			"horizons":      meta.Horizons,
			"provinces":     meta.Provinces,
			"metadata_path": t.ManifestPath(),
		},
	))
	return meta, nil
}

// partition is one encoded slice of the split frame
type partition struct {
	frame *feature.Frame
	x     *mat.Dense
}

func (p partition) target(h int) (*mat.VecDense, []float64, error) {
	y, err := p.frame.Target(feature.NewTarget(h))
	if err != nil {
		return nil, nil, err
	}
	return mat.NewVecDense(len(y), y), y, nil
}

type horizonResult struct {
	params       models.Params
	metrics      []score.Metric
	preds        []score.Prediction
	modelFile    string
	baselineFile string
}

// run writes models and prepared data into directories of their own named after the model
// version. Only the manifest written last references them, so the output of a failed run is
// never served and is removed.
func (t *Trainer) run(ctx context.Context, start time.Time) (meta *manifest.Metadata, err error) {
	opt := t.opt
	chartsDir := filepath.Join(opt.ReportsDir, ChartsDir)
	for _, dir := range []string{opt.DataDir, opt.ModelsDir, opt.ReportsDir, chartsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "unable to create output directory "+dir, err)
		}
	}

	version := manifest.ModelVersion(start)
	runName, err := createRunDirs(opt.ModelsDir, opt.DataDir, version)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			removeRunDirs(runName, opt.ModelsDir, opt.DataDir)
		}
	}()
	modelsRunDir := filepath.Join(opt.ModelsDir, runName)
	dataRunDir := filepath.Join(opt.DataDir, runName)

	daily, err := t.assembler.BuildDaily(ctx, opt.Sources)
	if err != nil {
		return nil, fmt.Errorf("unable to assemble daily dataset, %w", err)
	}
	preparedPath := filepath.Join(dataRunDir, PreparedDailyFile)
	if err := dataset.WriteCSVFile(preparedPath, daily); err != nil {
		return nil, err
	}
	slog.Info("saved prepared daily dataset", "path", preparedPath, "rows", len(daily))
	logOutliers(daily)

	frame, err := feature.Build(daily, opt.Features)
	if err != nil {
		return nil, fmt.Errorf("unable to build features, %w", err)
	}
	valid := feature.FilterValidProvinces(frame, opt.MinValidDays)
	if valid.Len() == 0 {
		return nil, ErrNoValidRows
	}

	split, err := timedataset.Split(valid.Dates(), opt.TrainRatio, opt.ValRatio)
	if err != nil {
		return nil, fmt.Errorf("unable to split feature frame, %w", err)
	}

	provinces := valid.Provinces()
	numericCols := valid.FeatureColumns()
	provinceCols := feature.ProvinceColumns(provinces)

	var encodedCols []string
	encode := func(idx []int) (partition, error) {
		sub := valid.Subset(idx)
		x, cols, err := feature.Encode(sub, numericCols, provinceCols)
		if err != nil {
			return partition{}, err
		}
		encodedCols = cols
		return partition{frame: sub, x: x}, nil
	}
	train, err := encode(split.Train)
	if err != nil {
		return nil, fmt.Errorf("unable to encode train partition, %w", err)
	}
	val, err := encode(split.Val)
	if err != nil {
		return nil, fmt.Errorf("unable to encode validation partition, %w", err)
	}
	test, err := encode(split.Test)
	if err != nil {
		return nil, fmt.Errorf("unable to encode test partition, %w", err)
	}
	slog.Info("split feature frame",
		"provinces", len(provinces),
		"train_rows", len(split.Train),
		"val_rows", len(split.Val),
		"test_rows", len(split.Test),
		"train_end", split.TrainEnd.Format(dataset.DateLayout),
		"val_end", split.ValEnd.Format(dataset.DateLayout),
	)

	trainFeaturePath := filepath.Join(dataRunDir, TrainFeatureFile)
	if err := valid.WriteCSVFile(trainFeaturePath); err != nil {
		return nil, err
	}
	slog.Info("saved training feature dataset", "path", trainFeaturePath)

	var metrics []score.Metric
	var preds []score.Prediction
	bestParams := make(map[string]models.Params, len(opt.Features.Horizons))
	modelFiles := make(map[string]string, len(opt.Features.Horizons))
	baselineFiles := make(map[string]string, len(opt.Features.Horizons))
	grid := opt.Grid()
	for _, h := range opt.Features.Horizons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := t.fitHorizon(h, grid, modelsRunDir, train, val, test)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, res.metrics...)
		preds = append(preds, res.preds...)
		key := manifest.ParamsKey(h)
		bestParams[key] = res.params
		modelFiles[key] = filepath.Join(runName, res.modelFile)
		baselineFiles[key] = filepath.Join(runName, res.baselineFile)
	}
	score.SortMetrics(metrics)

	metricsPath := filepath.Join(opt.ReportsDir, MetricsFile)
	if err := score.WriteFile(metricsPath, func(w io.Writer) error {
		return score.WriteMetricsCSV(w, metrics)
	}); err != nil {
		return nil, err
	}
	predictionsPath := filepath.Join(opt.ReportsDir, PredictionsFile)
	if err := score.WriteFile(predictionsPath, func(w io.Writer) error {
		return score.WritePredictionsCSV(w, preds)
	}); err != nil {
		return nil, err
	}
	slog.Info("saved evaluation", "metrics", metricsPath, "predictions", predictionsPath)

	seasons, err := score.SeasonErrorTable(preds)
	if err != nil {
		return nil, fmt.Errorf("unable to build season error table, %w", err)
	}
	chartPaths, err := report.ActualVsPredicted(preds, chartsDir)
	if err != nil {
		return nil, err
	}
	seasonChart, err := report.ErrorBySeason(seasons, chartsDir)
	if err != nil {
		return nil, err
	}

	reportPath := filepath.Join(opt.ReportsDir, ReportFile)
	md := report.Markdown(report.Summary{
		ModelVersion:    version,
		Provinces:       provinces,
		TrainRatio:      opt.TrainRatio,
		ValRatio:        opt.ValRatio,
		TestRatio:       opt.TestRatio(),
		Metrics:         metrics,
		Seasons:         seasons,
		ChartPaths:      chartPaths,
		SeasonChartPath: seasonChart,
	})
	if err := report.Write(reportPath, md); err != nil {
		return nil, err
	}
	slog.Info("generated report", "path", reportPath)

	meta = &manifest.Metadata{
		ModelVersion:          version,
		CreatedAtUTC:          manifest.CreatedAt(t.clock.Now()),
		Horizons:              append([]int(nil), opt.Features.Horizons...),
		FeatureColumns:        encodedCols,
		NumericFeatureColumns: numericCols,
		ProvinceDummyColumns:  provinceCols,
		Provinces:             provinces,
		Split: manifest.Split{
			TrainEndDate: split.TrainEnd.Format(dataset.DateLayout),
			ValEndDate:   split.ValEnd.Format(dataset.DateLayout),
			TrainRatio:   opt.TrainRatio,
			ValRatio:     opt.ValRatio,
			TestRatio:    opt.TestRatio(),
		},
		BestParams: bestParams,
		Artifacts: manifest.Artifacts{
			PreparedDailyCSV: preparedPath,
			TrainFeatureCSV:  trainFeaturePath,
			MetricsCSV:       metricsPath,
			PredictionsCSV:   predictionsPath,
			ReportPath:       reportPath,
			Models:           modelFiles,
			Baselines:        baselineFiles,
		},
		DataSources: manifest.NewDataSources(opt.Sources),
	}
	if err := manifest.Write(t.ManifestPath(), meta); err != nil {
		return nil, err
	}
	slog.Info("saved model metadata", "path", t.ManifestPath(), "model_version", version, "run_dir", runName)

	pruneRunDirs(opt.ModelsDir, runName, opt.KeepRuns)
	pruneRunDirs(opt.DataDir, runName, opt.KeepRuns)
	return meta, nil
}

// fitHorizon fits the baseline and searches the boosted model for one horizon, scores both on
// the test partition, and persists both models into dir
func (t *Trainer) fitHorizon(h int, grid []models.Params, dir string, train, val, test partition) (*horizonResult, error) {
	yTrain, _, err := train.target(h)
	if err != nil {
		return nil, err
	}
	yVal, _, err := val.target(h)
	if err != nil {
		return nil, err
	}
	_, yTest, err := test.target(h)
	if err != nil {
		return nil, err
	}

	baseline, err := models.NewOLSRegression(t.opt.OLS)
	if err != nil {
		return nil, err
	}
	if err := baseline.Fit(train.x, yTrain); err != nil {
		return nil, fmt.Errorf("unable to fit baseline for day%d, %w", h, err)
	}
	basePred, err := baseline.Predict(test.x)
	if err != nil {
		return nil, fmt.Errorf("unable to predict test set with baseline for day%d, %w", h, err)
	}

	best, err := models.Search(grid, t.opt.GBT, train.x, yTrain, val.x, yVal)
	if err != nil {
		return nil, fmt.Errorf("unable to select boosted model for day%d, %w", h, err)
	}
	mainPred, err := best.Model.Predict(test.x)
	if err != nil {
		return nil, fmt.Errorf("unable to predict test set with boosted model for day%d, %w", h, err)
	}

	res := &horizonResult{
		params:       best.Params,
		modelFile:    models.BoostedFile(h),
		baselineFile: models.BaselineFile(h),
	}
	dry, err := test.frame.Column(feature.CalendarIsDrySeason)
	if err != nil {
		return nil, err
	}
	for _, run := range []struct {
		name string
		pred []float64
	}{
		{models.NameBaseline, basePred},
		{models.NameBoosted, mainPred},
	} {
		m, err := score.EvaluateHorizon(h, run.name, run.pred, yTest)
		if err != nil {
			return nil, err
		}
		res.metrics = append(res.metrics, m)
		t.metrics.SetTestScores(h, run.name, m.MAE, m.RMSE)

		for i, row := range test.frame.Rows {
			res.preds = append(res.preds, score.Prediction{
				Date:        row.Date,
				Province:    row.Province,
				IsDrySeason: dry[i] == 1,
				Actual:      yTest[i],
				Horizon:     h,
				Model:       run.name,
				Predicted:   run.pred[i],
			})
		}
	}
	t.metrics.SetValidationRMSE(h, best.ValRMSE)

	baselinePath := filepath.Join(dir, res.baselineFile)
	if err := models.Save(baselinePath, baseline); err != nil {
		return nil, err
	}
	modelPath := filepath.Join(dir, res.modelFile)
	if err := models.Save(modelPath, best.Model); err != nil {
		return nil, err
	}
	slog.Info("saved models",
		"horizon", h,
		"model", modelPath,
		"baseline", baselinePath,
		"params", best.Params.String(),
		"val_rmse", best.ValRMSE,
	)
	return res, nil
}

// logOutliers warns about salinity days far outside the interquartile range of their province
func logOutliers(daily dataset.Daily) {
	groups := daily.ByProvince()
	for _, prov := range daily.Provinces() {
		obs := groups[prov]
		sal := make([]float64, len(obs))
		for i, o := range obs {
			sal[i] = o.Salinity
		}
		idx := stats.DetectOutliers(sal, stats.DefaultLowerPercentile, stats.DefaultUpperPercentile, stats.DefaultTukeyFactor)
		if len(idx) == 0 {
			continue
		}
		slog.Warn("salinity outliers",
			"province", prov,
			"count", len(idx),
			"first", obs[idx[0]].Date.Format(dataset.DateLayout),
			"last", obs[idx[len(idx)-1]].Date.Format(dataset.DateLayout),
		)
	}
}
