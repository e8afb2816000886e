// Package trainertest trains small model bundles for tests of the packages that serve them.
package trainertest

import (
	"context"
	"path/filepath"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/trainer"
)

// WeatherFile is the simulated feed written into the bundle directory
const WeatherFile = "weather_province_daily.csv"

// QuickOptions returns quick training options rooted at dir reading the feed at csvPath
func QuickOptions(dir, csvPath string) *trainer.Options {
	opt := trainer.NewDefaultOptions()
	opt.DataDir = filepath.Join(dir, "data")
	opt.ModelsDir = filepath.Join(dir, "models")
	opt.ReportsDir = filepath.Join(dir, "reports")
	opt.Sources = dataset.Sources{WeatherCSV: csvPath, LocalCSV: csvPath}
	opt.Quick = true
	return opt
}

// WriteSimulated writes the default simulated feed into dir and returns its path
func WriteSimulated(dir string) (string, error) {
	csvPath := filepath.Join(dir, WeatherFile)
	if err := dataset.WriteCSVFile(csvPath, dataset.Simulate(nil)); err != nil {
		return "", err
	}
	return csvPath, nil
}

// QuickBundle runs a quick training over the default simulated feed, which spans 2024-01-01
// through 2024-07-18, and returns the manifest path
func QuickBundle(dir string) (string, error) {
	csvPath, err := WriteSimulated(dir)
	if err != nil {
		return "", err
	}
	tr, err := trainer.New(QuickOptions(dir, csvPath), trainer.Dependencies{})
	if err != nil {
		return "", err
	}
	if _, err := tr.Run(context.Background()); err != nil {
		return "", err
	}
	return tr.ManifestPath(), nil
}
