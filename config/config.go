// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/feature"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
)

const (
	DefaultDataDir         = "data"
	DefaultModelsDir       = "models"
	DefaultReportsDir      = "reports"
	DefaultWeatherFile     = "weather_province_daily.csv"
	DefaultHTTPAddr        = ":8000"
	DefaultLogLevel        = "info"
	DefaultRetrainCron     = "0 2 * * *"
	DefaultKafkaTopic      = "salinity-events"
	DefaultShutdownTimeout = 10 * time.Second
)

var ErrInvalidEnv = errs.New(errs.KindConfiguration, "invalid environment variable")

// Config holds all process settings
type Config struct {
	DataDir    string
	ModelsDir  string
	ReportsDir string

	WeatherCSV string
	LocalCSV   string

	// StoreFallback allows reading salinity from the database when no local salinity exists
	StoreFallback bool

	HTTPAddr        string
	LogLevel        string
	Timezone        string
	RetrainCron     string
	ShutdownTimeout time.Duration

	DatabaseURL  string
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	GapLimit     int
	MinValidDays int
}

// LoadDotEnv loads a .env file into the environment if one exists. Variables already set are
// not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads configuration from environment variables, applying defaults where unset
func Load() (*Config, error) {
	dataDir := envOrDefault("SALINITY_DATA_DIR", DefaultDataDir)

	cfg := &Config{
		DataDir:      dataDir,
		ModelsDir:    envOrDefault("SALINITY_MODELS_DIR", DefaultModelsDir),
		ReportsDir:   envOrDefault("SALINITY_REPORTS_DIR", DefaultReportsDir),
		WeatherCSV:   envOrDefault("SALINITY_WEATHER_CSV", filepath.Join(dataDir, DefaultWeatherFile)),
		LocalCSV:     os.Getenv("SALINITY_LOCAL_CSV"),
		HTTPAddr:     envOrDefault("SALINITY_HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:     envOrDefault("SALINITY_LOG_LEVEL", DefaultLogLevel),
		Timezone:     envOrDefault("SALINITY_TIMEZONE", dataset.DefaultTimezone),
		RetrainCron:  envOrDefault("SALINITY_RETRAIN_CRON", DefaultRetrainCron),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", DefaultKafkaTopic),
	}

	var err error
	if cfg.StoreFallback, err = envBool("SALINITY_STORE_FALLBACK", cfg.DatabaseURL != ""); err != nil {
		return nil, err
	}
	if cfg.GapLimit, err = envInt("SALINITY_GAP_LIMIT", dataset.DefaultGapLimit); err != nil {
		return nil, err
	}
	if cfg.MinValidDays, err = envInt("SALINITY_MIN_VALID_DAYS", feature.DefaultMinValidDays); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SALINITY_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout); err != nil {
		return nil, err
	}

	if cfg.GapLimit < 0 {
		return nil, fmt.Errorf("SALINITY_GAP_LIMIT must be non negative, %w", ErrInvalidEnv)
	}
	if cfg.MinValidDays < 0 {
		return nil, fmt.Errorf("SALINITY_MIN_VALID_DAYS must be non negative, %w", ErrInvalidEnv)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("SALINITY_TIMEZONE %q, %w", cfg.Timezone, ErrInvalidEnv)
	}
	if cfg.RetrainCron != "" {
		if _, err := cron.ParseStandard(cfg.RetrainCron); err != nil {
			return nil, fmt.Errorf("SALINITY_RETRAIN_CRON %q, %w", cfg.RetrainCron, ErrInvalidEnv)
		}
	}
	return cfg, nil
}

// Location returns the configured timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return dataset.DefaultLocation()
	}
	return loc
}

// ManifestPath is where training writes the bundle metadata
func (c *Config) ManifestPath() string {
	return filepath.Join(c.ModelsDir, "metadata.json")
}

// Sources returns the dataset inputs. The weather feed doubles as the local dataset when none
// is configured.
func (c *Config) Sources() dataset.Sources {
	local := c.LocalCSV
	if local == "" {
		local = c.WeatherCSV
	}
	return dataset.Sources{
		WeatherCSV:    c.WeatherCSV,
		LocalCSV:      local,
		AllowFallback: c.StoreFallback,
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q, %w", key, v, ErrInvalidEnv)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("%s %q, %w", key, v, ErrInvalidEnv)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s %q, %w", key, v, ErrInvalidEnv)
	}
	return d, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
