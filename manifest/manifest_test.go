package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata() *Metadata {
	start := time.Date(2024, 6, 11, 8, 30, 5, 0, time.UTC)
	return &Metadata{
		ModelVersion:          ModelVersion(start),
		CreatedAtUTC:          CreatedAt(start),
		Horizons:              []int{1, 2},
		FeatureColumns:        []string{"sal_t-1", "month", "province__ben_tre"},
		NumericFeatureColumns: []string{"sal_t-1", "month"},
		ProvinceDummyColumns:  []string{"province__ben_tre"},
		Provinces:             []string{"Ben Tre"},
		Split: Split{
			TrainEndDate: "2024-03-01",
			ValEndDate:   "2024-04-01",
			TrainRatio:   0.7,
			ValRatio:     0.15,
			TestRatio:    0.15,
		},
		BestParams: map[string]models.Params{
			ParamsKey(1): models.QuickGrid()[0],
			ParamsKey(2): models.QuickGrid()[0],
		},
		Artifacts: Artifacts{
			PreparedDailyCSV: "data/prepared_daily_dataset.csv",
			TrainFeatureCSV:  "data/train_feature_dataset.csv",
			MetricsCSV:       "reports/metrics_summary.csv",
			PredictionsCSV:   "reports/predictions_test.csv",
			ReportPath:       "reports/report_ai1.md",
			Models: map[string]string{
				ParamsKey(1): "20240611083005/salinity_day1.json",
				ParamsKey(2): "20240611083005/salinity_day2.json",
			},
			Baselines: map[string]string{
				ParamsKey(1): "20240611083005/baseline_day1.json",
				ParamsKey(2): "20240611083005/baseline_day2.json",
			},
		},
		DataSources: NewDataSources(dataset.Sources{WeatherCSV: "data/weather.csv"}),
	}
}

func TestWriteLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	m := testMetadata()
	require.Nil(t, Write(path, m))

	res, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, m, res)
	assert.Equal(t, "20240611083005", res.ModelVersion)
	assert.Equal(t, "2024-06-11T08:30:05.000000", res.CreatedAtUTC)
	assert.True(t, res.HasProvince("Ben Tre"))
	assert.False(t, res.HasProvince("Ca Mau"))

	// no temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.Nil(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestJSONFields(t *testing.T) {
	data, err := json.Marshal(testMetadata())
	require.Nil(t, err)

	var raw map[string]any
	require.Nil(t, json.Unmarshal(data, &raw))

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"model_version", "created_at_utc", "horizons", "feature_columns",
		"numeric_feature_columns", "province_dummy_columns", "provinces", "split",
		"best_params", "artifacts", "data_sources",
	}, keys)

	sources := raw["data_sources"].(map[string]any)
	assert.Nil(t, sources["local_dataset"])
	assert.Contains(t, sources, "local_dataset")
	assert.Equal(t, false, sources["supabase_fallback"])

	params := raw["best_params"].(map[string]any)["day1"].(map[string]any)
	assert.Equal(t, 4.0, params["max_depth"])
	assert.Equal(t, 0.8, params["colsample_bytree"])

	assert.True(t, strings.Contains(string(data), `"train_end_date":"2024-03-01"`))
}

func TestDataSources(t *testing.T) {
	src := dataset.Sources{WeatherCSV: "w.csv", LocalCSV: "l.csv", AllowFallback: true}
	ds := NewDataSources(src)
	require.NotNil(t, ds.LocalDataset)
	assert.Equal(t, "l.csv", *ds.LocalDataset)
	assert.Equal(t, src, ds.Sources())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, FileName))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	path := filepath.Join(dir, "broken.json")
	require.Nil(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrDecode)

	m := testMetadata()
	m.FeatureColumns = []string{"month", "sal_t-1", "province__ben_tre"}
	require.Nil(t, Write(path, m))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrColumnMismatch)

	m = testMetadata()
	m.Horizons = nil
	require.Nil(t, Write(path, m))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrNoHorizons)

	m = testMetadata()
	delete(m.Artifacts.Models, ParamsKey(2))
	require.Nil(t, Write(path, m))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrNoModelFile)
	assert.Contains(t, err.Error(), "day2")
}

func TestPaths(t *testing.T) {
	m := testMetadata()
	path := filepath.Join("models", FileName)

	testData := map[string]struct {
		actual   string
		expected string
	}{
		"boosted model": {
			actual:   m.ModelPath(path, 2),
			expected: filepath.Join("models", "20240611083005", "salinity_day2.json"),
		},
		"baseline model": {
			actual:   m.BaselinePath(path, 1),
			expected: filepath.Join("models", "20240611083005", "baseline_day1.json"),
		},
		"unrecorded horizon": {
			actual:   m.ModelPath(path, 7),
			expected: "",
		},
		"absolute file": {
			actual: (&Metadata{Artifacts: Artifacts{
				Models: map[string]string{ParamsKey(1): "/srv/models/salinity_day1.json"},
			}}).ModelPath(path, 1),
			expected: "/srv/models/salinity_day1.json",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, td.actual)
		})
	}
}
