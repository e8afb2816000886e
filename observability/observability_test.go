package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testData := map[string]struct {
		level    string
		expected slog.Level
	}{
		"debug":   {level: "debug", expected: slog.LevelDebug},
		"upper":   {level: " WARN ", expected: slog.LevelWarn},
		"warning": {level: "warning", expected: slog.LevelWarn},
		"error":   {level: "error", expected: slog.LevelError},
		"info":    {level: "info", expected: slog.LevelInfo},
		"unknown": {level: "verbose", expected: slog.LevelInfo},
		"empty":   {level: "", expected: slog.LevelInfo},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, ParseLevel(td.level))
		})
	}
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn")
	logger.Info("dropped")
	logger.Warn("kept", "horizon", 3)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"horizon":3`)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTraining(3*time.Second, nil)
	m.ObserveTraining(time.Second, errors.New("failed"))
	m.SetValidationRMSE(1, 0.25)
	m.SetTestScores(1, "boosted_trees", 0.1, 0.2)
	m.ObserveForecast(20*time.Millisecond, nil)
	m.CountAlert("red_alert")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns.WithLabelValues(OutcomeError)))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.ValidationRMSE.WithLabelValues("1")))
	assert.Equal(t, 0.2, testutil.ToFloat64(m.TestRMSE.WithLabelValues("1", "boosted_trees")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastRequests.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTriggered.WithLabelValues("red_alert")))

	families, err := reg.Gather()
	require.Nil(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.ObserveTraining(time.Second, nil)
	m.SetValidationRMSE(1, 0.1)
	m.SetTestScores(1, "baseline_linear", 0.1, 0.1)
	m.ObserveForecast(time.Millisecond, nil)
	m.CountAlert("safe")

	unregistered := NewMetrics(nil)
	unregistered.ObserveForecast(time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(unregistered.ForecastRequests.WithLabelValues(OutcomeSuccess)))
}
