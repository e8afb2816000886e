package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aouyang1/go-salinity/config"
	"github.com/aouyang1/go-salinity/dataset"
)

type SimulateCmd struct {
	Out   string `help:"Output csv, defaults to the configured weather csv." type:"path"`
	Start string `help:"First simulated day (YYYY-MM-DD)." default:"2024-01-01"`
	Days  int    `help:"Number of simulated days." default:"200"`
}

func (c *SimulateCmd) Run(cfg *config.Config) error {
	start, err := time.Parse(dataset.DateLayout, c.Start)
	if err != nil {
		return err
	}
	opt := dataset.NewDefaultSimulationOptions()
	opt.Start = start
	opt.Days = c.Days

	out := c.Out
	if out == "" {
		out = cfg.WeatherCSV
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	daily := dataset.Simulate(opt)
	if err := dataset.WriteCSVFile(out, daily); err != nil {
		return err
	}
	slog.Info("wrote simulated dataset", "path", out, "rows", len(daily))
	return nil
}
