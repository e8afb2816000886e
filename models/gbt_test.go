package models

import (
	"math"
	"testing"

	mat_ "github.com/aouyang1/go-salinity/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestGBTOptionsValidate(t *testing.T) {
	valid := func(mod func(*GBTOptions)) *GBTOptions {
		opt := NewDefaultGBTOptions()
		mod(opt)
		return opt
	}

	testData := map[string]struct {
		opt      *GBTOptions
		err      error
		expected *GBTOptions
	}{
		"nil":                {nil, nil, NewDefaultGBTOptions()},
		"default":            {NewDefaultGBTOptions(), nil, NewDefaultGBTOptions()},
		"zero max bins":      {valid(func(o *GBTOptions) { o.MaxBins = 0 }), nil, NewDefaultGBTOptions()},
		"serial":             {valid(func(o *GBTOptions) { o.Parallelization = 0 }), nil, valid(func(o *GBTOptions) { o.Parallelization = 1 })},
		"zero depth":         {valid(func(o *GBTOptions) { o.MaxDepth = 0 }), ErrInvalidMaxDepth, nil},
		"large learning":     {valid(func(o *GBTOptions) { o.LearningRate = 1.5 }), ErrInvalidLearningRate, nil},
		"no estimators":      {valid(func(o *GBTOptions) { o.NEstimators = 0 }), ErrInvalidNEstimators, nil},
		"zero subsample":     {valid(func(o *GBTOptions) { o.Subsample = 0 }), ErrInvalidSubsample, nil},
		"large colsample":    {valid(func(o *GBTOptions) { o.ColsampleByTree = 1.1 }), ErrInvalidColsample, nil},
		"negative lambda":    {valid(func(o *GBTOptions) { o.Lambda = -1 }), ErrNegativeL2, nil},
		"negative min child": {valid(func(o *GBTOptions) { o.MinChildWeight = -1 }), ErrNegativeMinChildWeight, nil},
		"one bin":            {valid(func(o *GBTOptions) { o.MaxBins = 1 }), ErrInvalidMaxBins, nil},
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

func TestQuantileThresholds(t *testing.T) {
	many := make([]float64, 1000)
	for i := range many {
		many[i] = float64(999 - i)
	}

	testData := map[string]struct {
		col      []float64
		maxBins  int
		expected []float64
	}{
		"few distinct":   {[]float64{3, 1, 2, 2}, 256, []float64{1.5, 2.5}},
		"constant":       {[]float64{7, 7, 7}, 256, []float64{}},
		"missing values": {[]float64{math.NaN(), 0, 1}, 256, []float64{0.5}},
		"all missing":    {[]float64{math.NaN()}, 256, nil},
		"quantiles":      {many, 4, []float64{250, 500, 750}},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, quantileThresholds(td.col, td.maxBins))
		})
	}
}

func TestBinner(t *testing.T) {
	b := newBinner([][]float64{{3, 1, 2}}, DefaultMaxBins)
	assert.Equal(t, 3, b.numBins(0))
	assert.Equal(t, 0, b.bin(0, 1))
	assert.Equal(t, 1, b.bin(0, 2))
	assert.Equal(t, 2, b.bin(0, 3))
	assert.Equal(t, 2, b.bin(0, math.NaN()))
	assert.Equal(t, [][]uint16{{2, 0, 1}}, b.binColumns([][]float64{{3, 1, 2}}))
}

func TestGradientBoostedTreesStump(t *testing.T) {
	x, err := mat_.NewDenseFromArray([][]float64{{0}, {0}, {1}, {1}})
	require.Nil(t, err)
	y := mat.NewVecDense(4, []float64{0, 0, 4, 4})

	opt := NewDefaultGBTOptions()
	opt.MaxDepth = 1
	opt.NEstimators = 1
	opt.LearningRate = 1
	opt.Lambda = 0

	model, err := NewGradientBoostedTrees(opt)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	state := model.Model()
	assert.Equal(t, 2.0, state.BaseScore)
	require.Len(t, state.Trees, 1)
	assert.Equal(t, []Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: -2},
		{Leaf: true, Value: 2},
	}, state.Trees[0].Nodes)

	pred, err := model.Predict(x)
	require.Nil(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 4, 4}, pred, 1e-12)
}

func TestGradientBoostedTrees(t *testing.T) {
	x, y := generateStepData(t, 400, 7)
	xTest, yTest := generateStepData(t, 200, 8)

	opt := NewDefaultGBTOptions()
	opt.MaxDepth = 3
	opt.NEstimators = 200
	opt.LearningRate = 0.1

	model, err := NewGradientBoostedTrees(opt)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))
	assert.Equal(t, 200, model.NumTrees())

	r2, err := model.Score(x, y)
	require.Nil(t, err)
	assert.Greater(t, r2, 0.95)

	r2, err = model.Score(xTest, yTest)
	require.Nil(t, err)
	assert.Greater(t, r2, 0.9)
}

func TestGradientBoostedTreesDeterministic(t *testing.T) {
	// enough rows to take the concurrent split search
	x, y := generateStepData(t, 2*minParallelRows, 3)

	fit := func(parallelization int) []float64 {
		opt := NewDefaultGBTOptions()
		opt.MaxDepth = 4
		opt.NEstimators = 20
		opt.Subsample = 0.8
		opt.ColsampleByTree = 0.8
		opt.Parallelization = parallelization

		model, err := NewGradientBoostedTrees(opt)
		require.Nil(t, err)
		require.Nil(t, model.Fit(x, y))
		pred, err := model.Predict(x)
		require.Nil(t, err)
		return pred
	}

	serial := fit(1)
	assert.Equal(t, serial, fit(4))
	assert.Equal(t, serial, fit(4))
}

func TestGradientBoostedTreesErrors(t *testing.T) {
	model, err := NewGradientBoostedTrees(nil)
	require.Nil(t, err)

	x := mat.NewDense(2, 1, []float64{1, 2})
	_, err = model.Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)

	err = model.Fit(x, mat.NewVecDense(1, []float64{1}))
	assert.ErrorIs(t, err, ErrTargetLenMismatch)

	require.Nil(t, model.Fit(x, mat.NewVecDense(2, []float64{1, 2})))
	_, err = model.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)
}
