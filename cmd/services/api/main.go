package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/airqlab/airq/internal/analytics/forecast"
	"github.com/airqlab/airq/internal/analytics/stats"
	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/handlers"
	"github.com/airqlab/airq/internal/ingest"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/router"
	"github.com/airqlab/airq/internal/services"
	"github.com/airqlab/airq/internal/store"
	"github.com/airqlab/airq/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("API service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reading repository
	repo, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("Failed to open reading store", "error", err)
	}
	defer func() { _ = repo.Close() }()

	m := metrics.NewFromConfig(cfg.Metrics)

	// Engines
	statsEngine, err := stats.NewEngineFromConfig(cfg.Analytics)
	if err != nil {
		logger.Fatal("Invalid risk bands", "error", err)
	}
	forecastCfg := forecast.ConfigFrom(cfg.Analytics)
	if err := forecastCfg.Validate(); err != nil {
		logger.Fatal("Invalid forecast configuration", "error", err)
	}
	forecastEngine := forecast.NewEngine(forecastCfg)

	// Ingest: direct insert, or publish to the queue and optionally consume here too
	pipeline, err := ingest.NewPipeline(cfg, repo, m, logger)
	if err != nil {
		logger.Fatal("Failed to set up ingest", "error", err)
	}
	defer pipeline.Close()

	if err := pipeline.Start(ctx, cfg.Ingest.SubscribeToMQ); err != nil {
		logger.Fatal("Failed to start ingest", "error", err)
	}
	if pipeline.Queue != nil && !cfg.Ingest.SubscribeToMQ {
		logger.Info("Readings are queued for a separate ingestor", "subject", cfg.Queue.Subject)
	}

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	location := cfg.Analytics.GetTimezone()
	h := handlers.New(logger,
		services.NewStatisticsService(logger, repo, statsEngine, cfg.Store.FetchLimit, location, m),
		services.NewForecastService(logger, repo, forecastEngine, location, m),
		services.NewReadingService(logger, repo, pipeline.Ingestor),
	)
	app := router.New(logger, h, m, *cfg)

	// Start server in goroutine
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
