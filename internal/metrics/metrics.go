// Package metrics exposes Prometheus collectors for the API and the ingest
// path. A nil *Metrics is valid and records nothing, so components can be
// built without a registry in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airqlab/airq/internal/config"
)

// Engine names used as the engine label
const (
	EngineStatistics = "statistics"
	EngineForecast   = "forecast"
)

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	engineDuration   *prometheus.HistogramVec
	forecastMethods  *prometheus.CounterVec
	forecastDampened *prometheus.CounterVec
	ingestReadings   *prometheus.CounterVec
	queueMessages    *prometheus.CounterVec
}

// New creates collectors under namespace on a private registry, together with
// the Go runtime and process collectors
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		engineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Time spent in the statistics and forecast engines.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"engine", "metric"}),
		forecastMethods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecasts by metric and method (linear or fallback).",
		}, []string{"metric", "method"}),
		forecastDampened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_dampened_steps_total",
			Help:      "Forecast steps whose trend was dampened.",
		}, []string{"metric"}),
		ingestReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_readings_total",
			Help:      "Ingested readings by source and outcome.",
		}, []string{"source", "outcome"}),
		queueMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Reading batches on the ingest queue by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.engineDuration,
		m.forecastMethods,
		m.forecastDampened,
		m.ingestReadings,
		m.queueMessages,
	)
	return m
}

// NewFromConfig returns nil when metrics are disabled
func NewFromConfig(cfg config.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return New(cfg.Namespace)
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format through fiber
func (m *Metrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNotFound)
		}
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records count and latency of every request. The route label is
// the matched route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// after a fallthrough the route is still the catch-all middleware one
		route := c.Route().Path
		if route == "" || (route == "/" && c.Path() != "/") {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// ObserveEngine records one engine computation
func (m *Metrics) ObserveEngine(engine, metric string, d time.Duration) {
	if m == nil {
		return
	}
	m.engineDuration.WithLabelValues(engine, metric).Observe(d.Seconds())
}

// CountForecast records the method a forecast used and its dampened steps
func (m *Metrics) CountForecast(metric, method string, dampenedSteps int) {
	if m == nil {
		return
	}
	m.forecastMethods.WithLabelValues(metric, method).Inc()
	if dampenedSteps > 0 {
		m.forecastDampened.WithLabelValues(metric).Add(float64(dampenedSteps))
	}
}

// CountIngest records accepted and rejected readings of one batch
func (m *Metrics) CountIngest(source string, accepted, rejected int) {
	if m == nil {
		return
	}
	if accepted > 0 {
		m.ingestReadings.WithLabelValues(source, "accepted").Add(float64(accepted))
	}
	if rejected > 0 {
		m.ingestReadings.WithLabelValues(source, "rejected").Add(float64(rejected))
	}
}

// CountQueue records one queue event: published, consumed or failed
func (m *Metrics) CountQueue(outcome string) {
	if m == nil {
		return
	}
	m.queueMessages.WithLabelValues(outcome).Inc()
}
