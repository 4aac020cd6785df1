package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/airqlab/airq/internal/analytics"
	"github.com/airqlab/airq/internal/analytics/forecast"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/store"
)

// ForecastService handles forecasting business logic
type ForecastService struct {
	logger   *logging.Logger
	source   ReadingSource
	engine   *forecast.Engine
	location *time.Location
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewForecastService creates a new ForecastService
func NewForecastService(
	logger *logging.Logger,
	source ReadingSource,
	engine *forecast.Engine,
	location *time.Location,
	m *metrics.Metrics,
) *ForecastService {
	if location == nil {
		location = time.UTC
	}
	return &ForecastService{
		logger:   logger,
		source:   source,
		engine:   engine,
		location: location,
		metrics:  m,
		now:      time.Now,
	}
}

// WithClock replaces the time source that anchors the analysis window
func (s *ForecastService) WithClock(now func() time.Time) *ForecastService {
	s.now = now
	return s
}

// ForecastResponse is the forecast of one metric
type ForecastResponse struct {
	Metric      models.Metric
	Predictions []forecast.ForecastPoint
	Model       forecast.ModelInfo
	location    *time.Location
}

type forecastValue struct {
	ts     string
	metric models.Metric
	value  float64
}

func (v forecastValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"ts":             v.ts,
		string(v.metric): v.value,
	})
}

type intervalValue struct {
	TS    string  `json:"ts"`
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

// MarshalJSON renders {forecast: [{ts, <metric>}], ci: [{ts, upper, lower}], model}
func (r *ForecastResponse) MarshalJSON() ([]byte, error) {
	loc := r.location
	if loc == nil {
		loc = time.UTC
	}

	values := make([]forecastValue, len(r.Predictions))
	intervals := make([]intervalValue, len(r.Predictions))
	for i, p := range r.Predictions {
		ts := p.Time.In(loc).Format(time.RFC3339)
		values[i] = forecastValue{ts: ts, metric: r.Metric, value: p.Value}
		intervals[i] = intervalValue{TS: ts, Upper: p.UpperBound, Lower: p.LowerBound}
	}

	return json.Marshal(struct {
		Metric   models.Metric      `json:"metric"`
		Forecast []forecastValue    `json:"forecast"`
		CI       []intervalValue    `json:"ci"`
		Model    forecast.ModelInfo `json:"model"`
	}{r.Metric, values, intervals, r.Model})
}

// Execute forecasts a single metric
func (s *ForecastService) Execute(ctx context.Context, metricName string) (*ForecastResponse, error) {
	results, err := s.ExecuteMany(ctx, []string{metricName})
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		return r, nil
	}
	return nil, NewServiceError(CodeInvalidMetric, "No metric requested")
}

// ExecuteMany forecasts several metrics concurrently over one fetch of the
// most recent readings. All metrics succeed or the call fails.
func (s *ForecastService) ExecuteMany(ctx context.Context, metricNames []string) (map[models.Metric]*ForecastResponse, error) {
	if len(metricNames) == 0 {
		return nil, NewServiceError(CodeInvalidMetric, "At least one metric is required")
	}

	wanted := make([]models.Metric, 0, len(metricNames))
	seen := make(map[models.Metric]bool, len(metricNames))
	for _, name := range metricNames {
		m, err := models.ParseMetric(name)
		if err != nil {
			return nil, NewServiceErrorWithDetails(CodeInvalidMetric, err.Error(), map[string]interface{}{
				"allowed": ForecastMetrics(),
			})
		}
		if !seen[m] {
			seen[m] = true
			wanted = append(wanted, m)
		}
	}

	now := s.now()
	cfg := s.engine.Config()

	readings, err := s.source.FetchReadings(ctx, store.Filter{Limit: cfg.SampleLimit})
	if err != nil {
		logging.CtxOr(ctx, s.logger).Error("Failed to fetch readings for forecast", "error", err)
		return nil, queryFailed(err)
	}

	var mu sync.Mutex
	results := make(map[models.Metric]*ForecastResponse, len(wanted))

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range wanted {
		m := m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			began := time.Now()
			res, err := s.engine.Forecast(readings, m, now)
			s.metrics.ObserveEngine(metrics.EngineForecast, string(m), time.Since(began))
			if err != nil {
				return classifyEngineError(err, map[string]interface{}{"metric": m})
			}
			s.metrics.CountForecast(string(m), string(res.ModelInfo.Method), res.ModelInfo.DampenedSteps)

			mu.Lock()
			results[m] = &ForecastResponse{
				Metric:      m,
				Predictions: res.Predictions,
				Model:       res.ModelInfo,
				location:    s.location,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range wanted {
		r := results[m]
		logging.CtxOr(ctx, s.logger).Debug("Forecast computed",
			"metric", string(m), "method", string(r.Model.Method), "points", r.Model.DataPoints)
	}
	return results, nil
}

// ForecastMetrics lists the metrics a forecast can be requested for
func ForecastMetrics() []models.Metric {
	out := make([]models.Metric, 0, len(models.AllMetrics))
	for _, m := range models.AllMetrics {
		if _, ok := analytics.SpecFor(m); ok {
			out = append(out, m)
		}
	}
	return out
}
