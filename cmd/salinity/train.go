package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/aouyang1/go-salinity/config"
	"github.com/aouyang1/go-salinity/observability"
	"github.com/aouyang1/go-salinity/trainer"
)

type TrainCmd struct {
	WeatherCSV      string `help:"Weather csv (date, province, rain_mm, temp_c), overrides SALINITY_WEATHER_CSV." type:"path"`
	LocalDataset    string `help:"Combined local dataset with salinity columns, defaults to the weather csv." type:"path"`
	NoStoreFallback bool   `help:"Never read salinity from the database when the local dataset has none."`
	Quick           bool   `help:"Search the single quick candidate instead of the full grid."`
	NoEvents        bool   `help:"Do not publish the model published event."`
}

func (c *TrainCmd) applyTo(cfg *config.Config) {
	if c.WeatherCSV != "" {
		cfg.WeatherCSV = c.WeatherCSV
	}
	if c.LocalDataset != "" {
		cfg.LocalCSV = c.LocalDataset
	}
	if c.NoStoreFallback {
		cfg.StoreFallback = false
	}
}

func trainerOptions(cfg *config.Config, quick bool) *trainer.Options {
	opt := trainer.NewDefaultOptions()
	opt.DataDir = cfg.DataDir
	opt.ModelsDir = cfg.ModelsDir
	opt.ReportsDir = cfg.ReportsDir
	opt.Sources = cfg.Sources()
	opt.MinValidDays = cfg.MinValidDays
	opt.Quick = quick
	return opt
}

func (c *TrainCmd) Run(cfg *config.Config) error {
	c.applyTo(cfg)

	a, err := newApp(cfg, !c.NoEvents)
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := trainer.New(trainerOptions(cfg, c.Quick), trainer.Dependencies{
		Assembler: a.assembler,
		Publisher: a.publisher,
		Metrics:   observability.NewMetrics(nil),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := tr.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("training complete",
		"model_version", meta.ModelVersion,
		"provinces", meta.Provinces,
		"manifest", tr.ManifestPath(),
	)
	return nil
}
