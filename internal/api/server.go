// Package api exposes the operational surface: liveness, readiness, and the
// Prometheus scrape endpoint. Monitor management lives in an external layer
// and is deliberately absent here.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulseguard/pulseguard/internal/config"
	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/internal/scheduler"
	"github.com/pulseguard/pulseguard/internal/store"
)

// Server is the ops HTTP server
type Server struct {
	app           *fiber.App
	logger        *logging.Logger
	store         store.Store
	scheduler     *scheduler.Scheduler
	prometheusReg prometheus.Registerer
}

// NewServer creates the ops server and wires its routes. The metrics
// endpoint is mounted at the configured path only when metrics are enabled.
func NewServer(s store.Store, sched *scheduler.Scheduler, prometheusReg prometheus.Registerer, metricsCfg config.MetricsConfig, logger *logging.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "PulseGuard v1.0",
		DisableStartupMessage: true,
		ServerHeader:          "PulseGuard",
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	srv := &Server{
		app:           app,
		logger:        logger.WithComponent(logging.ComponentAPI),
		store:         s,
		scheduler:     sched,
		prometheusReg: prometheusReg,
	}

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Get("/health", srv.healthHandler)
	app.Get("/ready", srv.readyHandler)

	if metricsCfg.Enabled {
		path := metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, srv.metricsHandler)
	}

	return srv
}

// Start begins listening on the given address; blocks until shutdown
func (s *Server) Start(address string) error {
	s.logger.WithEvent(logging.EventServerStart).
		WithFields(map[string]interface{}{"address": address}).
		Info("Ops server listening")
	return s.app.Listen(address)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	s.logger.WithEvent(logging.EventServerStop).Info("Ops server stopping")
	return s.app.Shutdown()
}

// errorHandler converts Fiber errors into JSON responses
func errorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code >= 500 {
			logger.WithComponent(logging.ComponentAPI).
				WithError(err).
				WithFields(map[string]interface{}{
					"method": c.Method(),
					"path":   c.Path(),
				}).
				Error("Request failed")
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

// storeReady probes the store with a bounded list call
func (s *Server) storeReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := s.store.ListMonitors(ctx, store.MonitorFilter{})
	return err == nil
}
