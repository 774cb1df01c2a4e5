// PulseGuard runs scheduled uptime, certificate, and browser checks against
// configured monitors, maintains their incident lifecycle, and exposes an
// operational HTTP surface for health and Prometheus scraping.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pulseguard/pulseguard/internal/api"
	"github.com/pulseguard/pulseguard/internal/config"
	"github.com/pulseguard/pulseguard/internal/engine"
	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/internal/metrics"
	"github.com/pulseguard/pulseguard/internal/probe"
	"github.com/pulseguard/pulseguard/internal/scheduler"
	"github.com/pulseguard/pulseguard/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.InitLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	registry := prometheus.NewRegistry()
	if cfg.Metrics.IncludeProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if cfg.Metrics.IncludeGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	met := metrics.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resultStore, err := store.NewStore(ctx, &cfg.Store, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}
	defer resultStore.Close()

	if cfg.SeedFile != "" {
		monitors, err := store.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load seed file")
		}
		if err := store.SeedMonitors(ctx, resultStore, monitors, logger); err != nil {
			logger.WithError(err).Fatal("Failed to seed monitors")
		}
	}

	probeRegistry := probe.NewRegistry(probe.Timeouts{
		HTTP:            cfg.Probes.HTTPTimeout,
		TLS:             cfg.Probes.TLSTimeout,
		BrowserNav:      cfg.Probes.BrowserNavTimeout,
		BrowserSelector: cfg.Probes.BrowserSelectorTimeout,
	}, cfg.Probes.SSLExpiryWarningDays, cfg.Probes.PingCount, logger)

	evaluator := engine.NewEvaluator(probeRegistry, logger, met)
	incidents := engine.NewIncidentManager(resultStore, logger, met)

	sched := scheduler.NewScheduler(cfg.Scheduler, resultStore, evaluator, incidents, probeRegistry, logger, met)
	if err := sched.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	server := api.NewServer(resultStore, sched, registry, cfg.Metrics, logger)
	go func() {
		address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
		if err := server.Start(address); err != nil {
			logger.WithError(err).Fatal("Failed to start ops server")
		}
	}()

	logger.Info("PulseGuard started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down PulseGuard...")

	if err := sched.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop scheduler gracefully")
	}
	if err := server.Shutdown(); err != nil {
		logger.WithError(err).Error("Failed to shutdown ops server gracefully")
	}

	logger.Info("PulseGuard stopped")
}
