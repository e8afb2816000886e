package forecast

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/manifest"
	"github.com/aouyang1/go-salinity/models"
	"github.com/aouyang1/go-salinity/trainer"
	"github.com/aouyang1/go-salinity/trainer/trainertest"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureManifest is the manifest of a quick training run over simulated data spanning
// 2024-01-01 through 2024-07-18
var fixtureManifest string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "forecast-fixture")
	if err != nil {
		panic(err)
	}
	fixtureManifest, err = trainertest.QuickBundle(dir)
	if err != nil {
		os.RemoveAll(dir)
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// copyBundle writes a modified copy of the fixture manifest and its boosted models into a new
// directory and returns the new manifest path
func copyBundle(t *testing.T, mutate func(m *manifest.Metadata), skipHorizon int) string {
	t.Helper()
	fixture, err := manifest.Load(fixtureManifest)
	require.Nil(t, err)
	meta, err := manifest.Load(fixtureManifest)
	require.Nil(t, err)
	if mutate != nil {
		mutate(meta)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, manifest.FileName)
	require.Nil(t, manifest.Write(path, meta))
	for _, h := range meta.Horizons {
		if h == skipHorizon {
			continue
		}
		data, err := os.ReadFile(fixture.ModelPath(fixtureManifest, h))
		require.Nil(t, err)
		dst := meta.ModelPath(path, h)
		require.Nil(t, os.MkdirAll(filepath.Dir(dst), 0o755))
		require.Nil(t, os.WriteFile(dst, data, 0o644))
	}
	return path
}

func newService(t *testing.T, path string, now time.Time) *Service {
	t.Helper()
	s, err := NewService(&Options{ManifestPath: path}, Dependencies{
		Clock: clockwork.NewFakeClockAt(now),
	})
	require.Nil(t, err)
	return s
}

func assertRounded(t *testing.T, v float64) {
	t.Helper()
	assert.InDelta(t, math.Round(v*1e4)/1e4, v, 1e-12)
}

func TestForecastScenario(t *testing.T) {
	s := newService(t, fixtureManifest, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))

	res, err := s.Forecast(context.Background(), "Sóc Trăng", "2024-06-10")
	require.Nil(t, err)

	assert.Equal(t, "Soc Trang", res.Province)
	assert.Equal(t, "2024-06-10", res.AsOf)
	assert.Equal(t, s.ModelVersion(), res.ModelVersion)
	require.Len(t, res.Forecast, 7)
	for i, p := range res.Forecast {
		assert.Equal(t, i+1, p.DayAhead)
		assert.Equal(t, fmt.Sprintf("2024-06-%d", 11+i), p.Date)
		assertRounded(t, p.SalinityPred)
		assert.False(t, math.IsNaN(p.SalinityPred))
	}
}

func TestForecastReferenceDate(t *testing.T) {
	testData := map[string]struct {
		now      time.Time
		asOf     string
		expected string
	}{
		"default is the local calendar day": {
			now:      time.Date(2024, 6, 20, 17, 30, 0, 0, time.UTC),
			expected: "2024-06-21",
		},
		"default before local midnight": {
			now:      time.Date(2024, 6, 20, 16, 30, 0, 0, time.UTC),
			expected: "2024-06-20",
		},
		"default after the history uses the latest row": {
			now:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: "2024-07-18",
		},
		"explicit as_of": {
			now:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			asOf:     "2024-03-01",
			expected: "2024-03-01",
		},
		"as_of with a time component": {
			now:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			asOf:     "2024-03-01T18:00:00",
			expected: "2024-03-01",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			s := newService(t, fixtureManifest, td.now)
			res, err := s.Forecast(context.Background(), "ben tre", td.asOf)
			require.Nil(t, err)
			assert.Equal(t, td.expected, res.AsOf)
			assert.Len(t, res.Forecast, 7)
		})
	}
}

func TestForecastErrors(t *testing.T) {
	s := newService(t, fixtureManifest, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))

	testData := map[string]struct {
		province string
		asOf     string
		err      error
		kind     errs.Kind
	}{
		"empty province": {
			province: "  ",
			err:      ErrMissingProvince,
			kind:     errs.KindValidation,
		},
		"province not trained": {
			province: "Vinh Long",
			err:      ErrUnknownProvince,
			kind:     errs.KindNotFound,
		},
		"unknown province": {
			province: "Atlantis",
			err:      ErrUnknownProvince,
			kind:     errs.KindNotFound,
		},
		"unparseable as_of": {
			province: "Ca Mau",
			asOf:     "10/06/2024",
			err:      ErrInvalidAsOf,
			kind:     errs.KindValidation,
		},
		"as_of before history": {
			province: "Ca Mau",
			asOf:     "2023-12-31",
			err:      ErrNoDataBeforeAsOf,
			kind:     errs.KindDataInsufficiency,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := s.Forecast(context.Background(), td.province, td.asOf)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, td.err)
			assert.Equal(t, td.kind, errs.KindOf(err))
		})
	}
}

func TestForecastRebuild(t *testing.T) {
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	expected, err := newService(t, fixtureManifest, now).Forecast(context.Background(), "Tra Vinh", "2024-05-01")
	require.Nil(t, err)

	t.Run("from recorded sources", func(t *testing.T) {
		path := copyBundle(t, func(m *manifest.Metadata) {
			m.Artifacts.PreparedDailyCSV = filepath.Join(t.TempDir(), "missing.csv")
		}, 0)
		res, err := newService(t, path, now).Forecast(context.Background(), "Tra Vinh", "2024-05-01")
		require.Nil(t, err)
		assert.Equal(t, expected, res)
	})

	t.Run("sources missing", func(t *testing.T) {
		path := copyBundle(t, func(m *manifest.Metadata) {
			m.Artifacts.PreparedDailyCSV = ""
			m.DataSources.WeatherCSV = filepath.Join(t.TempDir(), "missing.csv")
		}, 0)
		_, err := newService(t, path, now).Forecast(context.Background(), "Tra Vinh", "2024-05-01")
		assert.ErrorIs(t, err, ErrMissingInput)
		assert.Equal(t, errs.KindInternal, errs.KindOf(err))
	})
}

func TestForecastNoHistory(t *testing.T) {
	dir := t.TempDir()
	prepared := filepath.Join(dir, "prepared.csv")
	short := dataset.Simulate(&dataset.SimulationOptions{
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:      10,
		Provinces: []string{"Soc Trang"},
		Seed:      1,
	})
	require.Nil(t, dataset.WriteCSVFile(prepared, short))

	path := copyBundle(t, func(m *manifest.Metadata) {
		m.Artifacts.PreparedDailyCSV = prepared
	}, 0)
	s := newService(t, path, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))

	_, err := s.Forecast(context.Background(), "Soc Trang", "")
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.Equal(t, errs.KindDataInsufficiency, errs.KindOf(err))

	_, err = s.Forecast(context.Background(), "Ben Tre", "")
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestForecastAfterFailedRetrain(t *testing.T) {
	dir := t.TempDir()
	manifestPath, err := trainertest.QuickBundle(dir)
	require.Nil(t, err)

	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	expected, err := newService(t, manifestPath, now).Forecast(context.Background(), "Soc Trang", "2024-06-10")
	require.Nil(t, err)

	meta, err := manifest.Load(manifestPath)
	require.Nil(t, err)
	prepared, err := os.ReadFile(meta.Artifacts.PreparedDailyCSV)
	require.Nil(t, err)

	// three provinces change the encoded columns of the retrained models
	sim := dataset.NewDefaultSimulationOptions()
	sim.Provinces = []string{"Ben Tre", "Soc Trang", "Tra Vinh"}
	csvPath := filepath.Join(dir, "three_provinces.csv")
	require.Nil(t, dataset.WriteCSVFile(csvPath, dataset.Simulate(sim)))

	// a directory in place of the metrics csv fails the run after every model is saved
	opt := trainertest.QuickOptions(dir, csvPath)
	require.Nil(t, os.MkdirAll(filepath.Join(opt.ReportsDir, trainer.MetricsFile), 0o755))

	tr, err := trainer.New(opt, trainer.Dependencies{
		Clock: clockwork.NewFakeClockAt(time.Date(2024, 7, 21, 2, 0, 0, 0, time.UTC)),
	})
	require.Nil(t, err)
	_, err = tr.Run(context.Background())
	require.NotNil(t, err)

	res, err := newService(t, manifestPath, now).Forecast(context.Background(), "Soc Trang", "2024-06-10")
	require.Nil(t, err)
	assert.Equal(t, expected, res)

	data, err := os.ReadFile(meta.Artifacts.PreparedDailyCSV)
	require.Nil(t, err)
	assert.Equal(t, prepared, data)

	// the failed run leaves nothing behind besides the published bundle
	for _, d := range []string{opt.ModelsDir, opt.DataDir} {
		entries, err := os.ReadDir(d)
		require.Nil(t, err)
		var runs []string
		for _, e := range entries {
			if e.IsDir() {
				runs = append(runs, e.Name())
			}
		}
		assert.Equal(t, []string{filepath.Dir(meta.Artifacts.Models["day1"])}, runs)
	}
}

func TestNewServiceErrors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		_, err := NewService(&Options{ManifestPath: filepath.Join(t.TempDir(), manifest.FileName)}, Dependencies{})
		assert.ErrorIs(t, err, manifest.ErrNotFound)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("missing model file", func(t *testing.T) {
		path := copyBundle(t, nil, 3)
		_, err := NewService(&Options{ManifestPath: path}, Dependencies{})
		assert.ErrorIs(t, err, ErrMissingModel)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		assert.Contains(t, err.Error(), models.BoostedFile(3))
	})

	t.Run("no options", func(t *testing.T) {
		_, err := NewService(nil, Dependencies{})
		assert.ErrorIs(t, err, ErrNoManifestPath)
	})
}

func TestForecastConcurrent(t *testing.T) {
	s := newService(t, fixtureManifest, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	expected, err := s.Forecast(context.Background(), "Kien Giang", "2024-06-01")
	require.Nil(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errors := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errors[i] = s.Forecast(context.Background(), "Kien Giang", "2024-06-01")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.Nil(t, errors[i])
		assert.Equal(t, expected, results[i])
	}
}

func TestDefaultLocation(t *testing.T) {
	loc := DefaultLocation()
	_, offset := time.Date(2024, 6, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*60*60, offset)
}
