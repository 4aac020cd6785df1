// Package forecast projects a metric forward from recent readings with an
// ordinary least squares trend line, dampened and clamped to realistic values.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/airqlab/airq/internal/analytics"
	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/models"
)

// DataPoint is an alias to the shared analytics.TimeSeriesPoint type.
type DataPoint = analytics.TimeSeriesPoint

// Method names the model that produced a forecast
type Method string

const (
	MethodLinear   Method = "linear"
	MethodFallback Method = "fallback"
)

// ForecastPoint represents a single forecast prediction
type ForecastPoint struct {
	Time       time.Time
	Value      float64
	LowerBound float64
	UpperBound float64
}

// ModelInfo contains metadata about the forecast model
type ModelInfo struct {
	Method        Method  `json:"method"`
	Slope         float64 `json:"slope"`
	Intercept     float64 `json:"intercept"`
	StdError      float64 `json:"se"`
	MAE           float64 `json:"mae,omitempty"`
	RMSE          float64 `json:"rmse,omitempty"`
	DataPoints    int     `json:"points"`
	DampenedSteps int     `json:"dampenedSteps,omitempty"`
}

// ForecastResult contains the forecast predictions and model information
type ForecastResult struct {
	Metric      models.Metric
	Predictions []ForecastPoint
	ModelInfo   ModelInfo
}

// Config holds the forecast window and model constants
type Config struct {
	SampleLimit int           // Most recent readings considered
	Lookback    time.Duration // Readings older than now-Lookback are ignored
	Step        time.Duration // Spacing between forecast points
	Horizon     time.Duration // Last forecast point is now+Horizon
	MinPoints   int           // Below this the flat fallback is used

	Z                  float64 // Interval multiplier, 1.28 is an 80% two-sided band
	DampingRangeFactor float64 // Dampen when |slope|*h exceeds this multiple of the data range
	DampingFactor      float64 // Slope multiplier applied to dampened steps
}

// DefaultConfig returns the default forecast configuration
func DefaultConfig() Config {
	return Config{
		SampleLimit:        200,
		Lookback:           48 * time.Hour,
		Step:               2 * time.Hour,
		Horizon:            24 * time.Hour,
		MinPoints:          3,
		Z:                  1.28,
		DampingRangeFactor: 1.5,
		DampingFactor:      0.4,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.SampleLimit <= 0 {
		return fmt.Errorf("sample limit must be positive")
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if c.Step <= 0 || c.Horizon < c.Step {
		return fmt.Errorf("step must be positive and not exceed horizon")
	}
	if c.MinPoints < 3 {
		return fmt.Errorf("min points must be at least 3")
	}
	return nil
}

// Engine produces forecasts. It holds only read-only configuration and is safe
// for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a forecast engine
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Forecast projects metric forward from now. Sparse windows yield a flat fallback
// forecast; a window whose points all share one timestamp yields
// analytics.ErrRegressionDegenerate. readings is not modified.
func (e *Engine) Forecast(readings []models.Reading, metric models.Metric, now time.Time) (*ForecastResult, error) {
	spec, ok := analytics.SpecFor(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", metric)
	}

	series := e.window(readings, metric, now)
	if series.Len() < e.cfg.MinPoints {
		return e.fallback(series, spec, now), nil
	}

	fit, err := fitLinear(series)
	if err != nil {
		return nil, err
	}
	return e.project(fit, series, spec, now), nil
}

// window returns the points used for the model: the SampleLimit most recent
// readings, restricted to [now-Lookback, now], ascending by time.
func (e *Engine) window(readings []models.Reading, metric models.Metric, now time.Time) analytics.MetricSeries {
	recent := make([]models.Reading, len(readings))
	copy(recent, readings)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	if len(recent) > e.cfg.SampleLimit {
		recent = recent[:e.cfg.SampleLimit]
	}
	return analytics.BuildSeries(recent, metric, now.Add(-e.cfg.Lookback), now)
}

// steps returns the forecast offsets from now in hours
func (e *Engine) steps() []float64 {
	n := int(e.cfg.Horizon / e.cfg.Step)
	out := make([]float64, n)
	for i := range out {
		out[i] = (e.cfg.Step * time.Duration(i+1)).Hours()
	}
	return out
}

func (e *Engine) fallback(series analytics.MetricSeries, spec analytics.MetricSpec, now time.Time) *ForecastResult {
	value := spec.FallbackDefault
	if series.Len() > 0 {
		value = series.Mean()
	}
	half := spec.FallbackBand.HalfWidth(value)

	steps := e.steps()
	predictions := make([]ForecastPoint, len(steps))
	for i, h := range steps {
		predictions[i] = ForecastPoint{
			Time:       now.Add(time.Duration(h * float64(time.Hour))),
			Value:      analytics.Round(value, 2),
			UpperBound: analytics.Round(value+half, 2),
			LowerBound: analytics.Round(value-half, 2),
		}
	}

	return &ForecastResult{
		Metric:      spec.Metric,
		Predictions: predictions,
		ModelInfo: ModelInfo{
			Method:     MethodFallback,
			Intercept:  analytics.Round(value, 2),
			DataPoints: series.Len(),
		},
	}
}

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ConfigFrom applies the configured forecast window to the default model
// constants
func ConfigFrom(cfg config.AnalyticsConfig) Config {
	c := DefaultConfig()
	c.SampleLimit = cfg.SampleLimit
	c.Lookback = cfg.Lookback
	c.Step = cfg.Step
	c.Horizon = cfg.Horizon
	return c
}
