package models

import (
	"testing"

	mat_ "github.com/aouyang1/go-salinity/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestOLSOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *OLSOptions
		err      error
		expected *OLSOptions
	}{
		"nil": {nil, nil, NewDefaultOLSOptions()},
		"valid": {
			&OLSOptions{FitIntercept: true, RCond: 1e-6}, nil,
			&OLSOptions{FitIntercept: true, RCond: 1e-6},
		},
		"default rcond": {
			&OLSOptions{FitIntercept: false}, nil,
			&OLSOptions{FitIntercept: false, RCond: DefaultRCond},
		},
		"negative rcond": {&OLSOptions{RCond: -1}, ErrNegativeRCond, nil},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

func TestOLSRegression(t *testing.T) {
	tol := 1e-5
	testData := map[string]struct {
		x         [][]float64
		y         []float64
		opt       *OLSOptions
		intercept float64
		coef      []float64
	}{
		"ols model intercept": {
			x: [][]float64{
				{0, 0},
				{3, 5},
				{9, 20},
				{12, 6},
				{15, 10},
			},
			y:         []float64{2, 31, 109, 62, 87},
			intercept: 2.0,
			coef:      []float64{3.0, 4.0},
		},
		"ols model no intercept": {
			x: [][]float64{
				{1, 0, 0},
				{1, 3, 5},
				{1, 9, 20},
				{1, 12, 6},
				{1, 15, 10},
			},
			y: []float64{2, 31, 109, 62, 87},
			opt: &OLSOptions{
				FitIntercept: false,
			},
			intercept: 0.0,
			coef:      []float64{2.0, 3.0, 4.0},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			x, err := mat_.NewDenseFromArray(td.x)
			require.Nil(t, err)

			y := mat.NewDense(len(td.y), 1, td.y)

			model, err := NewOLSRegression(td.opt)
			require.Nil(t, err)

			require.Nil(t, model.Fit(x, y))
			assert.InDelta(t, td.intercept, model.Intercept(), tol)
			assert.InDeltaSlice(t, td.coef, model.Coef(), tol)

			r2, err := model.Score(x, y)
			require.Nil(t, err)
			assert.InDelta(t, 1.0, r2, tol)
		})
	}
}

func TestOLSRegressionCollinear(t *testing.T) {
	// two one-hot columns that always sum to one next to an intercept
	x, err := mat_.NewDenseFromArray([][]float64{
		{1, 1, 0},
		{2, 1, 0},
		{3, 0, 1},
		{4, 0, 1},
		{5, 1, 0},
		{6, 0, 1},
	})
	require.Nil(t, err)
	y := mat.NewVecDense(6, []float64{3, 5, 9, 11, 11, 15})

	model, err := NewOLSRegression(nil)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	pred, err := model.Predict(x)
	require.Nil(t, err)
	assert.InDeltaSlice(t, []float64{3, 5, 9, 11, 11, 15}, pred, 1e-8)

	// the minimum norm solution is orthogonal to the intercept minus indicators direction
	coef := model.Coef()
	assert.InDelta(t, 2.0, coef[0], 1e-8)
	assert.InDelta(t, 4.0/3.0, model.Intercept(), 1e-8)
	assert.InDelta(t, model.Intercept(), coef[1]+coef[2], 1e-8)
}

func TestOLSRegressionErrors(t *testing.T) {
	model, err := NewOLSRegression(nil)
	require.Nil(t, err)

	x := mat.NewDense(2, 1, []float64{1, 2})
	_, err = model.Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)

	err = model.Fit(x, mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.ErrorIs(t, err, ErrTargetLenMismatch)

	require.Nil(t, model.Fit(x, mat.NewVecDense(2, []float64{1, 2})))
	_, err = model.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)
}

func BenchmarkOLSRegression(b *testing.B) {
	x, y := generateStepData(b, 1000, 1)

	for b.Loop() {
		model, err := NewOLSRegression(nil)
		if err != nil {
			b.Error(err)
			continue
		}
		if err := model.Fit(x, y); err != nil {
			b.Error(err)
			continue
		}
	}
}
