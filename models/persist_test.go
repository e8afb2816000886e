package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	x, y := generateStepData(t, 200, 5)

	ols, err := NewOLSRegression(nil)
	require.Nil(t, err)
	require.Nil(t, ols.Fit(x, y))

	opt := NewDefaultGBTOptions()
	opt.NEstimators = 30
	opt.MaxDepth = 3
	gbt, err := NewGradientBoostedTrees(opt)
	require.Nil(t, err)
	require.Nil(t, gbt.Fit(x, y))

	testData := map[string]struct {
		file  string
		model Model
	}{
		"baseline": {BaselineFile(1), ols},
		"boosted":  {BoostedFile(1), gbt},
	}

	dir := t.TempDir()
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, td.file)
			require.Nil(t, Save(path, td.model))

			loaded, err := Load(path)
			require.Nil(t, err)
			assert.IsType(t, td.model, loaded)

			expected, err := td.model.Predict(x)
			require.Nil(t, err)
			res, err := loaded.Predict(x)
			require.Nil(t, err)
			assert.InDeltaSlice(t, expected, res, 1e-12)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "unknown.json")
	require.Nil(t, os.WriteFile(path, []byte(`{"kind":"svm"}`), 0o644))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrUnknownModelKind)

	require.Nil(t, os.WriteFile(path, []byte(`{"kind":`), 0o644))
	_, err = Load(path)
	assert.NotNil(t, err)
}

func TestModelFiles(t *testing.T) {
	assert.Equal(t, "baseline_day3.json", BaselineFile(3))
	assert.Equal(t, "salinity_day7.json", BoostedFile(7))
}
