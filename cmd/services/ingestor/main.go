package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/ingest"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
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

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Ingestor service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	sources := cfg.IngestSources()
	if len(sources) == 0 {
		logger.Fatal("Nothing to ingest: enable queue and/or mqtt")
	}

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Open the reading store
	repo, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("Failed to open reading store", "error", err)
	}
	defer func() { _ = repo.Close() }()

	// 5. Metrics endpoint on the configured port
	m := metrics.NewFromConfig(cfg.Metrics)
	var metricsServer *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.GetServerAddress(),
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}
		go func() {
			logger.Info("Metrics listening", "address", metricsServer.Addr, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// 6. Queue consumer and MQTT listener
	pipeline, err := ingest.NewPipeline(cfg, repo, m, logger)
	if err != nil {
		logger.Fatal("Failed to set up ingest", "error", err)
	}
	defer pipeline.Close()

	if err := pipeline.Start(ctx, true); err != nil {
		logger.Fatal("Failed to start ingest", "error", err)
	}

	logger.Info("Ingestor running", "sources", sources, "store", cfg.Store.Type)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down ingestor...")
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	logger.Info("Ingestor exited")
}
