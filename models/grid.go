package models

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	mat_ "github.com/aouyang1/go-salinity/mat"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyGrid      = errors.New("no hyperparameter candidates")
	ErrNoSearchResult = errors.New("no hyperparameter candidate improved on an infinite validation error")
)

// Params is one boosted tree hyperparameter combination
type Params struct {
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	NEstimators     int     `json:"n_estimators"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
}

func (p Params) String() string {
	return fmt.Sprintf("max_depth=%d learning_rate=%g n_estimators=%d subsample=%g colsample_bytree=%g",
		p.MaxDepth, p.LearningRate, p.NEstimators, p.Subsample, p.ColsampleByTree)
}

// Options applies the combination on top of base options
func (p Params) Options(base *GBTOptions) *GBTOptions {
	if base == nil {
		base = NewDefaultGBTOptions()
	}
	opt := *base
	opt.MaxDepth = p.MaxDepth
	opt.LearningRate = p.LearningRate
	opt.NEstimators = p.NEstimators
	opt.Subsample = p.Subsample
	opt.ColsampleByTree = p.ColsampleByTree
	return &opt
}

// FullGrid enumerates every combination, varying the last parameter fastest
func FullGrid() []Params {
	var grid []Params
	for _, depth := range []int{4, 6, 8} {
		for _, lr := range []float64{0.03, 0.05} {
			for _, nEst := range []int{300, 500} {
				for _, sub := range []float64{0.8, 1.0} {
					for _, col := range []float64{0.8, 1.0} {
						grid = append(grid, Params{
							MaxDepth:        depth,
							LearningRate:    lr,
							NEstimators:     nEst,
							Subsample:       sub,
							ColsampleByTree: col,
						})
					}
				}
			}
		}
	}
	return grid
}

// QuickGrid is the single fast combination used for smoke runs
func QuickGrid() []Params {
	return []Params{{
		MaxDepth:        4,
		LearningRate:    0.05,
		NEstimators:     120,
		Subsample:       0.8,
		ColsampleByTree: 0.8,
	}}
}

// SearchResult is the winning candidate of a search
type SearchResult struct {
	Params  Params
	Model   *GradientBoostedTrees
	ValRMSE float64
}

// Search fits every candidate in order on the training partition and keeps the one with the
// lowest validation RMSE. A candidate only wins by being strictly lower, so the first of equal
// candidates is kept. Candidates run one after another, each fit parallelizes internally.
func Search(grid []Params, base *GBTOptions, xTrain, yTrain, xVal, yVal mat.Matrix) (*SearchResult, error) {
	if len(grid) == 0 {
		return nil, ErrEmptyGrid
	}
	yv := mat_.Vector(yVal)

	var best *SearchResult
	bestRMSE := math.Inf(1)
	for i, p := range grid {
		model, err := NewGradientBoostedTrees(p.Options(base))
		if err != nil {
			return nil, fmt.Errorf("unable to initialize candidate %s, %w", p, err)
		}
		if err := model.Fit(xTrain, yTrain); err != nil {
			return nil, fmt.Errorf("unable to fit candidate %s, %w", p, err)
		}
		pred, err := model.Predict(xVal)
		if err != nil {
			return nil, fmt.Errorf("unable to predict validation set with candidate %s, %w", p, err)
		}

		rmse := RMSE(yv, pred)
		slog.Debug("evaluated candidate", "index", i, "params", p.String(), "val_rmse", rmse)
		if rmse < bestRMSE {
			bestRMSE = rmse
			best = &SearchResult{Params: p, Model: model, ValRMSE: rmse}
		}
	}
	if best == nil {
		return nil, ErrNoSearchResult
	}
	return best, nil
}

// RMSE is the root mean squared error between two equal length slices. Empty input is NaN.
func RMSE(actual, pred []float64) float64 {
	if len(actual) == 0 || len(actual) != len(pred) {
		return math.NaN()
	}
	return floats.Distance(actual, pred, 2) / math.Sqrt(float64(len(actual)))
}
