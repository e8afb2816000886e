package score

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// Prediction is one test set prediction of one model at one horizon
type Prediction struct {
	Date        time.Time `json:"date"`
	Province    string    `json:"province"`
	IsDrySeason bool      `json:"is_dry_season"`
	Actual      float64   `json:"actual"`
	Horizon     int       `json:"horizon"`
	Model       string    `json:"model"`
	Predicted   float64   `json:"predicted"`
}

// Season returns the season label of the prediction date
func (p Prediction) Season() string {
	if p.IsDrySeason {
		return SeasonDry
	}
	return SeasonRainy
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteMetricsCSV writes the metrics summary
func WriteMetricsCSV(w io.Writer, metrics []Metric) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"horizon", "model", "mae", "rmse"}); err != nil {
		return err
	}
	for _, m := range metrics {
		if err := cw.Write([]string{
			strconv.Itoa(m.Horizon),
			m.Model,
			formatFloat(m.MAE),
			formatFloat(m.RMSE),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictionsCSV writes the test predictions
func WritePredictionsCSV(w io.Writer, preds []Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "province", "is_dry_season", "actual", "horizon", "model", "predicted"}); err != nil {
		return err
	}
	for _, p := range preds {
		if err := cw.Write([]string{
			p.Date.Format(dateLayout),
			p.Province,
			boolFlag(p.IsDrySeason),
			formatFloat(p.Actual),
			strconv.Itoa(p.Horizon),
			p.Model,
			formatFloat(p.Predicted),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path and hands it to write
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s, %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("unable to write %s, %w", path, err)
	}
	return f.Close()
}
