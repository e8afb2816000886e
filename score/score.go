// Package score computes the regression errors the trainer reports per horizon, model, and
// season, and writes them as csv artifacts.
package score

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Season labels
const (
	SeasonDry   = "dry"
	SeasonRainy = "rainy"
)

var ErrResLenMismatch = errors.New("predicted and actual have different lengths")

// Scores tracks the fit scores
type Scores struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// NewScores calculates the fit scores given the predicted and actual input slice values
func NewScores(predicted, actual []float64) (*Scores, error) {
	mae, err := MAE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean absolute error, %w", err)
	}
	rmse, err := RMSE(predicted, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute root mean squared error, %w", err)
	}
	return &Scores{
		MAE:  mae,
		RMSE: rmse,
	}, nil
}

// pairs calls fn for every index where both values are present and returns the count
func pairs(predicted, actual []float64, fn func(p, a float64)) (int, error) {
	if len(predicted) != len(actual) {
		return 0, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}
	n := 0
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		fn(predicted[i], actual[i])
		n++
	}
	return n, nil
}

// MAE computes the mean absolute error over the pairs where both values are present. No
// pairs yields NaN.
func MAE(predicted, actual []float64) (float64, error) {
	sum := 0.0
	n, err := pairs(predicted, actual, func(p, a float64) {
		sum += math.Abs(a - p)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return math.NaN(), nil
	}
	return sum / float64(n), nil
}

// MSE computes the mean squared error over the pairs where both values are present. A score
// of 0 means a perfect match with no errors.
func MSE(predicted, actual []float64) (float64, error) {
	sum := 0.0
	n, err := pairs(predicted, actual, func(p, a float64) {
		sum += (a - p) * (a - p)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return math.NaN(), nil
	}
	return sum / float64(n), nil
}

// RMSE is the square root of MSE
func RMSE(predicted, actual []float64) (float64, error) {
	mse, err := MSE(predicted, actual)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RSquared computes the r squared value between the predicted and actual where 1.0 means perfect
// fit and 0 represents no relationship
func RSquared(predicted, actual []float64) (float64, error) {
	var predictCopy, actualCopy []float64
	if _, err := pairs(predicted, actual, func(p, a float64) {
		predictCopy = append(predictCopy, p)
		actualCopy = append(actualCopy, a)
	}); err != nil {
		return 0, err
	}
	r2 := stat.RSquaredFrom(predictCopy, actualCopy, nil)
	if math.IsNaN(r2) {
		return 1.0, nil
	}
	return r2, nil
}

// Metric is the test error of one model at one horizon
type Metric struct {
	Horizon int     `json:"horizon"`
	Model   string  `json:"model"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
}

// EvaluateHorizon scores a model's predictions at a horizon
func EvaluateHorizon(horizon int, model string, predicted, actual []float64) (Metric, error) {
	s, err := NewScores(predicted, actual)
	if err != nil {
		return Metric{}, fmt.Errorf("unable to score %s at horizon %d, %w", model, horizon, err)
	}
	return Metric{Horizon: horizon, Model: model, MAE: s.MAE, RMSE: s.RMSE}, nil
}

// SortMetrics orders metrics by horizon then model
func SortMetrics(metrics []Metric) {
	sort.SliceStable(metrics, func(i, j int) bool {
		if metrics[i].Horizon != metrics[j].Horizon {
			return metrics[i].Horizon < metrics[j].Horizon
		}
		return metrics[i].Model < metrics[j].Model
	})
}

// SeasonMetric is the test error of one model at one horizon within one season
type SeasonMetric struct {
	Model      string  `json:"model"`
	Horizon    int     `json:"horizon"`
	Season     string  `json:"season"`
	MAE        float64 `json:"mae"`
	RMSE       float64 `json:"rmse"`
	SampleSize int     `json:"sample_size"`
}

type seasonKey struct {
	model   string
	horizon int
	season  string
}

// SeasonErrorTable groups predictions by model, horizon, and season and scores each group.
// Rows are sorted by model, horizon, then season.
func SeasonErrorTable(preds []Prediction) ([]SeasonMetric, error) {
	type group struct {
		predicted []float64
		actual    []float64
	}
	groups := make(map[seasonKey]*group)
	var keys []seasonKey
	for _, p := range preds {
		k := seasonKey{model: p.Model, horizon: p.Horizon, season: p.Season()}
		g, exists := groups[k]
		if !exists {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.predicted = append(g.predicted, p.Predicted)
		g.actual = append(g.actual, p.Actual)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.model != b.model {
			return a.model < b.model
		}
		if a.horizon != b.horizon {
			return a.horizon < b.horizon
		}
		return a.season < b.season
	})

	table := make([]SeasonMetric, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		s, err := NewScores(g.predicted, g.actual)
		if err != nil {
			return nil, err
		}
		table = append(table, SeasonMetric{
			Model:      k.model,
			Horizon:    k.horizon,
			Season:     k.season,
			MAE:        s.MAE,
			RMSE:       s.RMSE,
			SampleSize: len(g.actual),
		})
	}
	return table, nil
}
