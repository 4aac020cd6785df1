package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/handlers"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/middleware"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, h *handlers.Handler, m *metrics.Metrics, cfg config.Config) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.AccessLog(logger, "/health", metricsPath))
	app.Use(m.Middleware())

	// Health check and scrape endpoint (no auth required)
	app.Get("/health", h.Health)
	if cfg.Metrics.Enabled {
		app.Get(metricsPath, m.Handler())
	}

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", middleware.APIKeyAuth(logger, cfg.Auth))

	v1.Get("/statistics", h.Statistics)

	v1.Get("/forecast", h.ForecastMany)
	v1.Get("/forecast/:metric", h.Forecast)

	v1.Get("/readings", h.ListReadings)
	v1.Post("/readings", h.IngestReadings)

	// 404 handler
	app.Use(h.NotFound)
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, h *handlers.Handler, m *metrics.Metrics, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "airq",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, h, m, cfg)

	return app
}
