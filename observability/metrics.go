package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salinity"

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the counters, histograms, and gauges of training runs and forecast requests
type Metrics struct {
	TrainingRuns     *prometheus.CounterVec // labels: outcome={success,error}
	TrainingDuration prometheus.Histogram
	ValidationRMSE   *prometheus.GaugeVec // labels: horizon
	TestMAE          *prometheus.GaugeVec // labels: horizon, model
	TestRMSE         *prometheus.GaugeVec // labels: horizon, model

	ForecastRequests *prometheus.CounterVec // labels: outcome={success,error}
	ForecastDuration prometheus.Histogram
	AlertsTriggered  *prometheus.CounterVec // labels: level
}

// NewMetrics creates the metrics and registers them with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs by outcome.",
		}, []string{"outcome"}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of a complete training run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		ValidationRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_rmse",
			Help:      "Validation RMSE of the selected boosted model per horizon.",
		}, []string{"horizon"}),
		TestMAE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_mae",
			Help:      "Test MAE per horizon and model of the last training run.",
		}, []string{"horizon", "model"}),
		TestRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_rmse",
			Help:      "Test RMSE per horizon and model of the last training run.",
		}, []string{"horizon", "model"}),
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Duration of a single forecast request.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		AlertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Assessed forecasts by worst alert level.",
		}, []string{"level"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TrainingRuns,
			m.TrainingDuration,
			m.ValidationRMSE,
			m.TestMAE,
			m.TestRMSE,
			m.ForecastRequests,
			m.ForecastDuration,
			m.AlertsTriggered,
		)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveTraining records a finished training run. Safe on a nil receiver.
func (m *Metrics) ObserveTraining(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.TrainingRuns.WithLabelValues(outcome(err)).Inc()
	m.TrainingDuration.Observe(elapsed.Seconds())
}

// SetValidationRMSE records the winning validation RMSE of a horizon. Safe on a nil receiver.
func (m *Metrics) SetValidationRMSE(horizon int, rmse float64) {
	if m == nil {
		return
	}
	m.ValidationRMSE.WithLabelValues(strconv.Itoa(horizon)).Set(rmse)
}

// SetTestScores records the test errors of a horizon and model. Safe on a nil receiver.
func (m *Metrics) SetTestScores(horizon int, model string, mae, rmse float64) {
	if m == nil {
		return
	}
	h := strconv.Itoa(horizon)
	m.TestMAE.WithLabelValues(h, model).Set(mae)
	m.TestRMSE.WithLabelValues(h, model).Set(rmse)
}

// ObserveForecast records a finished forecast request. Safe on a nil receiver.
func (m *Metrics) ObserveForecast(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.ForecastRequests.WithLabelValues(outcome(err)).Inc()
	m.ForecastDuration.Observe(elapsed.Seconds())
}

// CountAlert records the worst level of an assessed forecast. Safe on a nil receiver.
func (m *Metrics) CountAlert(level string) {
	if m == nil {
		return
	}
	m.AlertsTriggered.WithLabelValues(level).Inc()
}
