// Package api serves forecasts and salinity alerts over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aouyang1/go-salinity/alert"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/forecast"
	"github.com/aouyang1/go-salinity/notify"
	"github.com/aouyang1/go-salinity/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is reported by the health check
const ServiceName = "ai-service"

var (
	ErrNoHolder  = errs.New(errs.KindConfiguration, "no forecast service holder")
	ErrNoService = errors.New("no trained model bundle loaded")
)

var validate = validator.New()

// Dependencies are the collaborators of the server. Only Services is required.
type Dependencies struct {
	Services   *Holder
	Thresholds *alert.Thresholds
	Publisher  notify.Publisher
	Clock      clockwork.Clock
	Metrics    *observability.Metrics

	// Gatherer backs /metrics, the default registry when nil
	Gatherer prometheus.Gatherer
}

// Server exposes the forecast, alert, health, and metrics endpoints
type Server struct {
	httpServer *http.Server

	services   *Holder
	thresholds *alert.Thresholds
	publisher  notify.Publisher
	clock      clockwork.Clock
	metrics    *observability.Metrics
}

// NewServer builds the router and an http server listening on addr
func NewServer(addr string, deps Dependencies) (*Server, error) {
	if deps.Services == nil {
		return nil, ErrNoHolder
	}
	th, err := deps.Thresholds.Validate()
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "invalid alert thresholds", err)
	}
	if deps.Publisher == nil {
		deps.Publisher = notify.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		services:   deps.Services,
		thresholds: th,
		publisher:  deps.Publisher,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/api/ai", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/forecast7d", s.handleForecast)
		r.Get("/alerts", s.handleAlerts)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	slog.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok", "service": ServiceName})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	svc := s.services.Load()
	if svc == nil {
		writeDetail(w, r, http.StatusServiceUnavailable, ErrNoService.Error())
		return
	}
	render.JSON(w, r, map[string]string{"status": "ready", "model_version": svc.ModelVersion()})
}

// forecastQuery are the query parameters of the forecast and alert endpoints
type forecastQuery struct {
	Province string `validate:"required"`
	AsOf     string `validate:"omitempty,datetime=2006-01-02"`
}

func parseForecastQuery(r *http.Request) (forecastQuery, error) {
	q := forecastQuery{
		Province: r.URL.Query().Get("province"),
		AsOf:     r.URL.Query().Get("as_of"),
	}
	err := validate.Struct(q)
	if err == nil {
		return q, nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && verrs[0].Field() == "AsOf" {
		return q, fmt.Errorf("%q, %w", q.AsOf, forecast.ErrInvalidAsOf)
	}
	return q, forecast.ErrMissingProvince
}

// forecast resolves the query against the current service
func (s *Server) forecast(w http.ResponseWriter, r *http.Request) (*forecast.Result, bool) {
	q, err := parseForecastQuery(r)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	svc := s.services.Load()
	if svc == nil {
		writeDetail(w, r, http.StatusServiceUnavailable, ErrNoService.Error())
		return nil, false
	}
	res, err := svc.Forecast(r.Context(), q.Province, q.AsOf)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return res, true
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	res, ok := s.forecast(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	res, ok := s.forecast(w, r)
	if !ok {
		return
	}
	a, err := alert.Assess(res, s.thresholds)
	if err != nil {
		writeError(w, r, errs.Wrap(errs.KindInternal, "unable to assess forecast", err))
		return
	}
	if a.Worst >= alert.LevelCritical {
		s.metrics.CountAlert(a.Worst.String())
	}
	if a.Triggered() {
		slog.Warn("salinity red alert",
			"province", a.Province,
			"as_of", a.AsOf,
			"first_critical", a.FirstCritical,
		)
		notify.PublishBestEffort(r.Context(), s.publisher, a.Event(s.clock))
	}
	render.JSON(w, r, a)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	if kind == errs.KindInternal || kind == errs.KindConfiguration || kind == errs.KindSchema {
		slog.Error("request failed", "path", r.URL.Path, "kind", kind.String(), "error", err.Error())
	}
	writeDetail(w, r, kind.HTTPStatus(), err.Error())
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"detail": detail})
}
