// Package models holds the per horizon regressors: a least squares baseline and gradient
// boosted regression trees, the hyperparameter search over the trees, and their persistence.
package models

import (
	"gonum.org/v1/gonum/mat"
)

type Model interface {
	Fit(x, y mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Score(x, y mat.Matrix) (float64, error)
}

// Model names recorded in metrics and predictions
const (
	NameBaseline = "baseline_linear"
	NameBoosted  = "boosted_trees"
)
