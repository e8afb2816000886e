package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aouyang1/go-salinity/alert"
	"github.com/aouyang1/go-salinity/config"
	"github.com/aouyang1/go-salinity/forecast"

	"github.com/goccy/go-json"
)

type ForecastCmd struct {
	Province string `required:"" help:"Province name, accents and case are ignored."`
	AsOf     string `help:"Reference date (YYYY-MM-DD), defaults to today in the configured timezone."`
	Alerts   bool   `help:"Grade each day against the rice salinity thresholds."`
	Manifest string `help:"Manifest path, defaults to metadata.json in the models directory." type:"path"`
}

// stdout receives command output
var stdout io.Writer = os.Stdout

func (c *ForecastCmd) Run(cfg *config.Config) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	path := c.Manifest
	if path == "" {
		path = cfg.ManifestPath()
	}
	svc, err := forecast.NewService(&forecast.Options{
		ManifestPath: path,
		Location:     cfg.Location(),
	}, forecast.Dependencies{Assembler: a.assembler})
	if err != nil {
		return err
	}

	res, err := svc.Forecast(context.Background(), c.Province, c.AsOf)
	if err != nil {
		return err
	}

	var v any = res
	if c.Alerts {
		v, err = alert.Assess(res, nil)
		if err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode forecast, %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}
