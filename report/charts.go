package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aouyang1/go-salinity/models"
	"github.com/aouyang1/go-salinity/score"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartHorizons are the horizons drawn on each province chart
var ChartHorizons = []int{1, 2, 3, 4, 5, 6, 7}

// SeasonChartFile is the file name of the season error chart
const SeasonChartFile = "error_by_season.html"

// ChartFile is the actual versus predicted chart file name of a province
func ChartFile(province string) string {
	return "actual_vs_pred_" + strings.ToLower(strings.ReplaceAll(province, " ", "_")) + ".html"
}

// LineActualPredicted generates a line chart of actual and predicted values by date
func LineActualPredicted(title string, preds []score.Prediction) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)

	dates := make([]string, 0, len(preds))
	actual := make([]opts.LineData, 0, len(preds))
	predicted := make([]opts.LineData, 0, len(preds))
	for _, p := range preds {
		dates = append(dates, p.Date.Format("2006-01-02"))
		actual = append(actual, opts.LineData{Value: p.Actual})
		predicted = append(predicted, opts.LineData{Value: p.Predicted})
	}

	line.SetXAxis(dates).
		AddSeries("actual", actual).
		AddSeries("predicted", predicted)
	return line
}

// ActualVsPredicted writes one page per province with a line chart per horizon of the boosted
// model's test predictions. Returns the written paths ordered by province.
func ActualVsPredicted(preds []score.Prediction, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create chart directory, %w", err)
	}

	byProvince := make(map[string]map[int][]score.Prediction)
	for _, p := range preds {
		if p.Model != models.NameBoosted {
			continue
		}
		if byProvince[p.Province] == nil {
			byProvince[p.Province] = make(map[int][]score.Prediction)
		}
		byProvince[p.Province][p.Horizon] = append(byProvince[p.Province][p.Horizon], p)
	}

	provinces := make([]string, 0, len(byProvince))
	for p := range byProvince {
		provinces = append(provinces, p)
	}
	sort.Strings(provinces)

	paths := make([]string, 0, len(provinces))
	for _, prov := range provinces {
		page := components.NewPage()
		page.PageTitle = prov
		for _, h := range ChartHorizons {
			series := byProvince[prov][h]
			sort.SliceStable(series, func(i, j int) bool {
				return series[i].Date.Before(series[j].Date)
			})
			title := fmt.Sprintf("%s - day%d", prov, h)
			if len(series) == 0 {
				title += " (no data)"
			}
			page.AddCharts(LineActualPredicted(title, series))
		}

		path := filepath.Join(dir, ChartFile(prov))
		if err := renderPage(path, page); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// BarSeasonError generates a bar chart of the boosted model's MAE per season at the focus
// horizons
func BarSeasonError(seasons []score.SeasonMetric) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: "MAE by Season (boosted trees)",
			},
		),
	)

	mae := make(map[string]map[int]float64)
	for _, s := range seasons {
		if s.Model != models.NameBoosted {
			continue
		}
		if mae[s.Season] == nil {
			mae[s.Season] = make(map[int]float64)
		}
		mae[s.Season][s.Horizon] = s.MAE
	}

	labels := make([]string, 0, len(FocusHorizons))
	for _, h := range FocusHorizons {
		labels = append(labels, fmt.Sprintf("day%d", h))
	}
	bar.SetXAxis(labels)
	for _, season := range []string{score.SeasonDry, score.SeasonRainy} {
		data := make([]opts.BarData, 0, len(FocusHorizons))
		for _, h := range FocusHorizons {
			v, exists := mae[season][h]
			if !exists {
				data = append(data, opts.BarData{Value: "-"})
				continue
			}
			data = append(data, opts.BarData{Value: v})
		}
		bar.AddSeries(season, data)
	}
	return bar
}

// ErrorBySeason writes the season error chart into dir
func ErrorBySeason(seasons []score.SeasonMetric, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create chart directory, %w", err)
	}
	page := components.NewPage()
	page.AddCharts(BarSeasonError(seasons))

	path := filepath.Join(dir, SeasonChartFile)
	if err := renderPage(path, page); err != nil {
		return "", err
	}
	return path, nil
}

func renderPage(path string, page *components.Page) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create chart %s, %w", path, err)
	}
	if err := page.Render(io.MultiWriter(file)); err != nil {
		file.Close()
		return fmt.Errorf("unable to render chart %s, %w", path, err)
	}
	return file.Close()
}
