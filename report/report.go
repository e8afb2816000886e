// Package report renders the human readable training summary: a markdown report and html
// charts of the test set predictions.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/aouyang1/go-salinity/score"
)

// FocusHorizons are the horizons the headline tables and season chart show
var FocusHorizons = []int{1, 3, 7}

// Summary is everything the markdown report shows
type Summary struct {
	ModelVersion    string
	Provinces       []string
	TrainRatio      float64
	ValRatio        float64
	TestRatio       float64
	Metrics         []score.Metric
	Seasons         []score.SeasonMetric
	ChartPaths      []string
	SeasonChartPath string
}

func round4(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

func percent(r float64) string {
	return strconv.FormatFloat(math.Round(r*100), 'f', -1, 64) + "%"
}

func table(header []string, rows [][]string) string {
	if len(rows) == 0 {
		return "_No data_"
	}
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	sb.WriteString("| " + strings.Join(sep, " | ") + " |")
	for _, r := range rows {
		sb.WriteString("\n| " + strings.Join(r, " | ") + " |")
	}
	return sb.String()
}

func metricsTable(metrics []score.Metric, keep func(int) bool) string {
	sorted := slices.Clone(metrics)
	score.SortMetrics(sorted)
	var rows [][]string
	for _, m := range sorted {
		if !keep(m.Horizon) {
			continue
		}
		rows = append(rows, []string{strconv.Itoa(m.Horizon), m.Model, round4(m.MAE), round4(m.RMSE)})
	}
	return table([]string{"horizon", "model", "mae", "rmse"}, rows)
}

func seasonTable(seasons []score.SeasonMetric) string {
	var rows [][]string
	for _, s := range seasons {
		if !slices.Contains(FocusHorizons, s.Horizon) {
			continue
		}
		rows = append(rows, []string{
			s.Model, strconv.Itoa(s.Horizon), s.Season, round4(s.MAE), round4(s.RMSE), strconv.Itoa(s.SampleSize),
		})
	}
	return table([]string{"model", "horizon", "season", "mae", "rmse", "sample_size"}, rows)
}

// Markdown renders the report
func Markdown(s Summary) string {
	provinces := slices.Clone(s.Provinces)
	slices.Sort(provinces)

	focus := func(h int) bool { return slices.Contains(FocusHorizons, h) }
	all := func(int) bool { return true }

	lines := []string{
		"# 7-day Salinity Forecast Report",
		"",
		fmt.Sprintf("- Model version: `%s`", s.ModelVersion),
		fmt.Sprintf("- Provinces used: %s", strings.Join(provinces, ", ")),
		"",
		"## Dataset",
		"- Granularity: daily province-level.",
		"- Features: lag salinity, lag weather, rolling stats, seasonality, province one-hot.",
		fmt.Sprintf("- Split: %s train, %s val, %s test (time-ordered, no shuffle).",
			percent(s.TrainRatio), percent(s.ValRatio), percent(s.TestRatio)),
		"",
		"## Metrics (day1/day3/day7)",
		metricsTable(s.Metrics, focus),
		"",
		"## Full Metrics (day1..day7)",
		metricsTable(s.Metrics, all),
		"",
		"## Error by Season (dry vs rainy)",
		seasonTable(s.Seasons),
		"",
		"## Charts",
		fmt.Sprintf("- Error by season chart: `%s`", filepath.ToSlash(s.SeasonChartPath)),
	}
	for _, p := range s.ChartPaths {
		lines = append(lines, fmt.Sprintf("- Actual vs predicted chart: `%s`", filepath.ToSlash(p)))
	}
	lines = append(lines,
		"",
		"## Limitations",
		"- Model is province-level; not optimized for per-farm microclimate.",
		"- Missing weather values are interpolated and can reduce reliability.",
		"- Direct multi-step forecasts are independent between horizons.",
	)
	return strings.Join(lines, "\n")
}

// Write stores the markdown report, creating its directory
func Write(path, markdown string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create report directory, %w", err)
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("unable to write report, %w", err)
	}
	return nil
}
