// Package server exposes the pipeline over HTTP: run submission, status and
// history queries, the performance summary, Prometheus metrics and a
// websocket event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/arbiterhq/arbiter/config"
	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/perf"
	"github.com/arbiterhq/arbiter/pipeline"
	"github.com/arbiterhq/arbiter/tracker"
	"github.com/arbiterhq/arbiter/version"
)

// Server wires the HTTP surface around the coordinator.
type Server struct {
	echo        *echo.Echo
	cfg         config.ServerConfig
	governor    *governor.Governor
	coordinator *pipeline.Coordinator
	tracker     *tracker.Tracker
	perf        *perf.Tracker
	events      *eventHub
	log         *logrus.Entry
}

// New creates a Server with the standard middleware stack and routes.
// gov may be nil to omit pressure events from the stream; gatherer may be
// nil to fall back to the default Prometheus registry.
func New(
	cfg config.ServerConfig,
	gov *governor.Governor,
	coordinator *pipeline.Coordinator,
	track *tracker.Tracker,
	perfTracker *perf.Tracker,
	gatherer prometheus.Gatherer,
	log *logrus.Entry,
) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
	}))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(cfg.RateLimit),
		)))
	}

	s := &Server{
		echo:        e,
		cfg:         cfg,
		governor:    gov,
		coordinator: coordinator,
		tracker:     track,
		perf:        perfTracker,
		events:      newEventHub(log),
		log:         log.WithField("component", "server"),
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1")
	v1.POST("/runs", s.handleSubmitRun)
	track.RegisterRoutes(v1)
	perfTracker.RegisterRoutes(v1)
	v1.GET("/events", s.events.handleSubscribe)

	return s
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the event fan-out and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.events.start(s.coordinator.Events())
	if s.governor != nil {
		s.events.startPressure(s.governor.Pressure())
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.log.WithField("addr", srv.Addr).Info("HTTP server starting")
	return s.echo.StartServer(srv)
}

// Shutdown stops the server gracefully within the configured timeout.
func (s *Server) Shutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.events.stop()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "arbiter",
		"version": version.Version,
	})
}
