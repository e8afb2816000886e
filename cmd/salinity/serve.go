package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/aouyang1/go-salinity/api"
	"github.com/aouyang1/go-salinity/config"
	"github.com/aouyang1/go-salinity/forecast"
	"github.com/aouyang1/go-salinity/manifest"
	"github.com/aouyang1/go-salinity/observability"
	"github.com/aouyang1/go-salinity/scheduler"
	"github.com/aouyang1/go-salinity/trainer"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

type ServeCmd struct {
	Addr      string `help:"Listen address, overrides SALINITY_HTTP_ADDR."`
	NoRetrain bool   `help:"Disable scheduled retraining."`
	Quick     bool   `help:"Retrain with the quick candidate."`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	if c.Addr != "" {
		cfg.HTTPAddr = c.Addr
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	load := func(path string) (*forecast.Service, error) {
		return forecast.NewService(&forecast.Options{
			ManifestPath: path,
			Location:     cfg.Location(),
		}, forecast.Dependencies{
			Assembler: a.assembler,
			Clock:     clock,
			Metrics:   metrics,
		})
	}

	holder := api.NewHolder(nil)
	svc, err := load(cfg.ManifestPath())
	switch {
	case err == nil:
		holder.Swap(svc)
		slog.Info("model bundle loaded", "model_version", svc.ModelVersion())
	case errors.Is(err, manifest.ErrNotFound):
		slog.Warn("no model bundle yet, forecasts are unavailable until training completes", "manifest", cfg.ManifestPath())
	default:
		return err
	}

	srv, err := api.NewServer(cfg.HTTPAddr, api.Dependencies{
		Services:  holder,
		Publisher: a.publisher,
		Clock:     clock,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if !c.NoRetrain && cfg.RetrainCron != "" {
		tr, err := trainer.New(trainerOptions(cfg, c.Quick), trainer.Dependencies{
			Assembler: a.assembler,
			Clock:     clock,
			Publisher: a.publisher,
			Metrics:   metrics,
		})
		if err != nil {
			return err
		}
		sched, err = scheduler.New(&scheduler.Options{
			Spec:     cfg.RetrainCron,
			Location: cfg.Location(),
		}, tr, load, holder, clock)
		if err != nil {
			return err
		}
		sched.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			slog.Warn("retraining still running at shutdown")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err.Error())
	}
	slog.Info("shutdown complete")
	return nil
}
