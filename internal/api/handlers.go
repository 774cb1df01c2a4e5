package api

import (
	"bytes"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthHandler reports process liveness
func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "pulseguard",
		"version": "1.0.0",
	})
}

// readyHandler reports whether the engine can do useful work: the store
// answers queries and the scheduler loops are running
func (s *Server) readyHandler(c *fiber.Ctx) error {
	storeOK := s.storeReady(c.Context())
	schedulerOK := s.scheduler.IsRunning()

	status := "ready"
	code := fiber.StatusOK
	if !storeOK || !schedulerOK {
		status = "not_ready"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"store":     checkLabel(storeOK),
			"scheduler": checkLabel(schedulerOK),
		},
	})
}

func checkLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// metricsHandler serves the Prometheus scrape endpoint. promhttp speaks
// net/http, so its output is captured through a buffer-backed writer.
func (s *Server) metricsHandler(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	gatherer, ok := s.prometheusReg.(prometheus.Gatherer)
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "metrics registry is not a gatherer")
	}

	var buf bytes.Buffer
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to build scrape request")
	}

	rw := &responseWriter{Buffer: &buf, header: make(http.Header)}
	promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP(rw, req)

	return c.SendString(buf.String())
}

// responseWriter adapts a bytes.Buffer to http.ResponseWriter
type responseWriter struct {
	*bytes.Buffer
	header http.Header
}

func (rw *responseWriter) Header() http.Header {
	return rw.header
}

func (rw *responseWriter) WriteHeader(statusCode int) {}
