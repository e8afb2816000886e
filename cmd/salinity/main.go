// Command salinity trains the multi horizon salinity models, serves forecasts and alerts over
// HTTP, and answers one off forecasts from the command line.
package main

import (
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/aouyang1/go-salinity/config"
	"github.com/aouyang1/go-salinity/observability"

	"github.com/alecthomas/kong"
)

type CLI struct {
	LogLevel string `help:"Log level (debug, info, warn, error), overrides SALINITY_LOG_LEVEL."`
	EnvFile  string `help:"Path of a .env file to load." default:".env" type:"path"`

	Train    TrainCmd    `cmd:"" help:"Train the baseline and boosted models for every horizon."`
	Forecast ForecastCmd `cmd:"" help:"Print the 7 day forecast of a province."`
	Serve    ServeCmd    `cmd:"" help:"Serve forecasts and alerts over HTTP with scheduled retraining."`
	Simulate SimulateCmd `cmd:"" help:"Write a simulated daily dataset for local runs."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("salinity"),
		kong.Description("Mekong delta river salinity forecasting."),
		kong.UsageOnError(),
	)

	if err := config.LoadDotEnv(cli.EnvFile); err != nil {
		slog.Error("unable to load env file", "path", cli.EnvFile, "error", err.Error())
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	slog.SetDefault(observability.NewLogger(cfg.LogLevel))

	if err := ctx.Run(cfg); err != nil {
		slog.Error("command failed", "command", ctx.Command(), "error", err.Error())
		os.Exit(1)
	}
}
