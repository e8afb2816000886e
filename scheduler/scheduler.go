// Package scheduler retrains the model bundle on a cron schedule and hot swaps the serving
// forecast service after every successful run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/forecast"
	"github.com/aouyang1/go-salinity/manifest"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSpec    = "0 2 * * *"
	DefaultTimeout = 2 * time.Hour
)

var (
	ErrInvalidSpec   = errs.New(errs.KindConfiguration, "invalid cron spec")
	ErrMissingTarget = errs.New(errs.KindConfiguration, "scheduler needs a trainer, loader, and target")
)

// Trainer produces a new model bundle
type Trainer interface {
	Run(ctx context.Context) (*manifest.Metadata, error)
	ManifestPath() string
}

// Loader loads a forecast service from a manifest
type Loader func(manifestPath string) (*forecast.Service, error)

// Target receives each freshly loaded service
type Target interface {
	Swap(s *forecast.Service) *forecast.Service
}

type Options struct {
	// Spec is a standard five field cron expression
	Spec string

	// Timeout bounds a single retraining run
	Timeout time.Duration

	// Location evaluates the spec, the salinity timezone when nil
	Location *time.Location
}

func NewDefaultOptions() *Options {
	return &Options{
		Spec:     DefaultSpec,
		Timeout:  DefaultTimeout,
		Location: forecast.DefaultLocation(),
	}
}

func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	opt := *o
	if opt.Spec == "" {
		opt.Spec = DefaultSpec
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.Location == nil {
		opt.Location = forecast.DefaultLocation()
	}
	if _, err := cron.ParseStandard(opt.Spec); err != nil {
		return nil, fmt.Errorf("%q, %w", opt.Spec, ErrInvalidSpec)
	}
	return &opt, nil
}

// Status describes the latest retraining run
type Status struct {
	LastRun      time.Time
	LastError    error
	ModelVersion string
	Runs         int
	Failures     int
}

type Scheduler struct {
	opt     *Options
	cron    *cron.Cron
	trainer Trainer
	load    Loader
	target  Target
	clock   clockwork.Clock

	mu     sync.Mutex
	status Status
}

func New(opt *Options, trainer Trainer, load Loader, target Target, clock clockwork.Clock) (*Scheduler, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if trainer == nil || load == nil || target == nil {
		return nil, ErrMissingTarget
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := slogLogger{}
	c := cron.New(
		cron.WithLocation(opt.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{
		opt:     opt,
		cron:    c,
		trainer: trainer,
		load:    load,
		target:  target,
		clock:   clock,
	}
	if _, err := s.cron.AddFunc(opt.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), opt.Timeout)
		defer cancel()
		s.RunOnce(ctx) //nolint:errcheck // logged and kept in status
	}); err != nil {
		return nil, fmt.Errorf("%q, %w", opt.Spec, ErrInvalidSpec)
	}
	return s, nil
}

// Start runs the schedule in the background
func (s *Scheduler) Start() {
	slog.Info("retraining scheduler starting", "spec", s.opt.Spec, "next", s.Next())
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a running job finishes
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next scheduled run time
func (s *Scheduler) Next() time.Time {
	sched, err := cron.ParseStandard(s.opt.Spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(s.clock.Now().In(s.opt.Location))
}

// Status returns a snapshot of the latest run
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RunOnce retrains and swaps in the new service. A failed run leaves the current service in
// place.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.clock.Now()
	version, err := s.retrain(ctx)

	s.mu.Lock()
	s.status.LastRun = start
	s.status.LastError = err
	s.status.Runs++
	if err != nil {
		s.status.Failures++
	} else {
		s.status.ModelVersion = version
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("scheduled retraining failed, keeping current model", "error", err.Error())
		return err
	}
	slog.Info("scheduled retraining complete", "model_version", version, "elapsed", s.clock.Since(start).String())
	return nil
}

func (s *Scheduler) retrain(ctx context.Context) (string, error) {
	meta, err := s.trainer.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("unable to retrain, %w", err)
	}
	svc, err := s.load(s.trainer.ManifestPath())
	if err != nil {
		return "", fmt.Errorf("unable to load retrained bundle, %w", err)
	}
	s.target.Swap(svc)
	return meta.ModelVersion, nil
}

// slogLogger routes cron logs through slog
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron "+msg, append(keysAndValues, "error", err.Error())...)
}
