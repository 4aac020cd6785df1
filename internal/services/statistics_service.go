package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/airqlab/airq/internal/analytics/stats"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/metrics"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/store"
	"github.com/airqlab/airq/internal/utils"
)

// ReadingSource is the read side of the reading repository
type ReadingSource interface {
	FetchReadings(ctx context.Context, filter store.Filter) ([]models.Reading, error)
}

// StatisticsService summarizes a named period ending now
type StatisticsService struct {
	logger     *logging.Logger
	source     ReadingSource
	engine     *stats.Engine
	fetchLimit int
	location   *time.Location
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewStatisticsService creates a StatisticsService. Response dates are
// rendered in location. A window holding more than fetchLimit readings is
// refused with WINDOW_TOO_LARGE; fetchLimit <= 0 loads the whole window.
func NewStatisticsService(
	logger *logging.Logger,
	source ReadingSource,
	engine *stats.Engine,
	fetchLimit int,
	location *time.Location,
	m *metrics.Metrics,
) *StatisticsService {
	if location == nil {
		location = time.UTC
	}
	return &StatisticsService{
		logger:     logger,
		source:     source,
		engine:     engine,
		fetchLimit: fetchLimit,
		location:   location,
		metrics:    m,
		now:        time.Now,
	}
}

// WithClock replaces the time source that anchors the analysis window
func (s *StatisticsService) WithClock(now func() time.Time) *StatisticsService {
	s.now = now
	return s
}

// StatisticsResponse is the statistics payload. Each metric is a top-level
// key next to the window description.
type StatisticsResponse struct {
	Period        string
	TotalReadings int
	StartDate     time.Time
	EndDate       time.Time
	Metrics       map[models.Metric]stats.Result
}

// MarshalJSON flattens the per-metric results into the top-level object
func (r *StatisticsResponse) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Metrics)+4)
	out["period"] = r.Period
	out["totalReadings"] = r.TotalReadings
	out["startDate"] = r.StartDate.Format(time.RFC3339)
	out["endDate"] = r.EndDate.Format(time.RFC3339)
	for m, result := range r.Metrics {
		out[string(m)] = result
	}
	return json.Marshal(out)
}

// Execute computes statistics for period ("24h", "7d" or "30d")
func (s *StatisticsService) Execute(ctx context.Context, period string) (*StatisticsResponse, error) {
	window, ok := utils.Period(period).Duration()
	if !ok {
		return nil, NewServiceErrorWithDetails(CodeInvalidPeriod, "Unsupported period: "+period, map[string]interface{}{
			"allowed": []utils.Period{utils.Period24h, utils.Period7d, utils.Period30d},
		})
	}

	end := s.now()
	start := end.Add(-window)

	// One extra row tells a full window apart from one that overflows the cap
	limit := 0
	if s.fetchLimit > 0 {
		limit = s.fetchLimit + 1
	}
	readings, err := s.source.FetchReadings(ctx, store.Between(start, end, limit))
	if err != nil {
		logging.CtxOr(ctx, s.logger).Error("Failed to fetch readings for statistics", "period", period, "error", err)
		return nil, queryFailed(err)
	}
	if s.fetchLimit > 0 && len(readings) > s.fetchLimit {
		logging.CtxOr(ctx, s.logger).Warn("Statistics window exceeds fetch limit", "period", period, "limit", s.fetchLimit)
		return nil, NewServiceErrorWithDetails(CodeWindowTooLarge, "Too many readings in the requested window", map[string]interface{}{
			"period": period,
			"limit":  s.fetchLimit,
		})
	}

	began := time.Now()
	summary, err := s.engine.Compute(readings, start, end)
	s.metrics.ObserveEngine(metrics.EngineStatistics, "all", time.Since(began))
	if err != nil {
		return nil, classifyEngineError(err, map[string]interface{}{"period": period})
	}

	logging.CtxOr(ctx, s.logger).Debug("Statistics computed",
		"period", period, "readings", summary.TotalReadings, "metrics", len(summary.Metrics))

	return &StatisticsResponse{
		Period:        period,
		TotalReadings: summary.TotalReadings,
		StartDate:     start.In(s.location),
		EndDate:       end.In(s.location),
		Metrics:       summary.Metrics,
	}, nil
}
