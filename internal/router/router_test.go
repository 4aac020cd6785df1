package router

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airqlab/airq/internal/analytics/forecast"
	"github.com/airqlab/airq/internal/analytics/stats"
	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/handlers"
	"github.com/airqlab/airq/internal/ingest"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/services"
	"github.com/airqlab/airq/internal/store"
)

var apiKey = strings.Repeat("a", 40)

func newTestApp(t *testing.T, authEnabled bool) (*fiber.App, *metrics.Metrics) {
	t.Helper()
	logger := logging.NewNop()
	cfg := config.DefaultConfig()
	cfg.Auth = config.AuthConfig{Enabled: authEnabled, APIKeys: []string{apiKey}}

	m := metrics.New("airq_test")
	repo := store.NewMemoryStore(0, 1000, logger)
	ingestor, err := ingest.New(ingest.Options{Repository: repo, Metrics: m, Logger: logger})
	require.NoError(t, err)

	h := handlers.New(logger,
		services.NewStatisticsService(logger, repo, stats.NewEngine(nil), cfg.Store.FetchLimit, time.UTC, m),
		services.NewForecastService(logger, repo, forecast.NewEngine(forecast.DefaultConfig()), time.UTC, m),
		services.NewReadingService(logger, repo, ingestor),
	)
	return New(logger, h, m, *cfg), m
}

func TestRouter_PublicEndpoints(t *testing.T) {
	app, _ := newTestApp(t, true)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(logging.RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	app, _ := newTestApp(t, true)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/readings", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/v1/readings", nil)
	req.Header.Set("X-API-Key", apiKey)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRouter_NotFound(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/v2/anything", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRouter_RecordsRequestMetrics(t *testing.T) {
	app, _ := newTestApp(t, false)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/forecast/co2", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `airq_test_http_requests_total{method="GET",route="/v1/forecast/:metric",status="200"} 3`)
	assert.Contains(t, text, `airq_test_forecasts_total{method="fallback",metric="co2"} 3`)
}
