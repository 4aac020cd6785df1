package analytics

import (
	"fmt"
	"math"

	"github.com/airqlab/airq/internal/models"
)

// RiskBand is the acceptable range of a metric. Values above Max are always at
// risk; values below Min are at risk only when Min is set.
type RiskBand struct {
	Max float64
	Min *float64
}

// Outside reports whether v falls outside the band
func (b RiskBand) Outside(v float64) bool {
	if v > b.Max {
		return true
	}
	return b.Min != nil && v < *b.Min
}

// FallbackBand is the interval half-width used for sparse forecasts. When
// Proportional is set, Width is a fraction of the forecast value.
type FallbackBand struct {
	Width        float64
	Proportional bool
}

// HalfWidth returns the interval half-width around value
func (b FallbackBand) HalfWidth(value float64) float64 {
	if b.Proportional {
		return math.Abs(value) * b.Width
	}
	return b.Width
}

// MetricSpec holds the per-metric constants used by both engines
type MetricSpec struct {
	Metric   models.Metric
	Decimals int

	// Risk is nil for metrics that carry no risk band
	Risk *RiskBand

	FallbackDefault float64
	FallbackBand    FallbackBand

	// ErrorCap bounds the forecast interval half-width given the mean of the window
	ErrorCap func(mean float64) float64

	// MaxRealistic is the upper clamp for forecast values given the mean of the window
	MaxRealistic func(mean float64) float64
}

func floatPtr(v float64) *float64 { return &v }

var metricSpecs = map[models.Metric]MetricSpec{
	models.MetricCO2: {
		Metric:          models.MetricCO2,
		Decimals:        2,
		Risk:            &RiskBand{Max: 1000},
		FallbackDefault: 400,
		FallbackBand:    FallbackBand{Width: 0.10, Proportional: true},
		ErrorCap:        func(mean float64) float64 { return math.Max(10, 0.15*mean) },
		MaxRealistic:    func(mean float64) float64 { return math.Max(1000, 2*mean) },
	},
	models.MetricTemperature: {
		Metric:          models.MetricTemperature,
		Decimals:        2,
		Risk:            &RiskBand{Max: 28, Min: floatPtr(18)},
		FallbackDefault: 25,
		FallbackBand:    FallbackBand{Width: 2},
		ErrorCap:        func(mean float64) float64 { return math.Max(1, 0.10*mean) },
		MaxRealistic:    func(float64) float64 { return 50 },
	},
	models.MetricHumidity: {
		Metric:          models.MetricHumidity,
		Decimals:        1,
		Risk:            &RiskBand{Max: 70, Min: floatPtr(30)},
		FallbackDefault: 50,
		FallbackBand:    FallbackBand{Width: 5},
		ErrorCap:        func(mean float64) float64 { return math.Max(2, 0.10*mean) },
		MaxRealistic:    func(float64) float64 { return 100 },
	},
	models.MetricVOCs: {
		Metric:          models.MetricVOCs,
		Decimals:        2,
		FallbackDefault: 100,
		FallbackBand:    FallbackBand{Width: 0.20, Proportional: true},
		ErrorCap:        func(mean float64) float64 { return math.Max(5, 0.15*mean) },
		MaxRealistic:    func(mean float64) float64 { return math.Max(1000, 2*mean) },
	},
	models.MetricNOx: {
		Metric:          models.MetricNOx,
		Decimals:        3,
		FallbackDefault: 0.05,
		FallbackBand:    FallbackBand{Width: 0.20, Proportional: true},
		ErrorCap:        func(mean float64) float64 { return math.Max(0.01, 0.15*mean) },
		MaxRealistic:    func(mean float64) float64 { return math.Max(1, 2*mean) },
	},
	models.MetricAQI: {
		Metric:          models.MetricAQI,
		Decimals:        0,
		FallbackDefault: 50,
		FallbackBand:    FallbackBand{Width: 0.10, Proportional: true},
		ErrorCap:        func(mean float64) float64 { return math.Max(5, 0.15*mean) },
		MaxRealistic:    func(float64) float64 { return 500 },
	},
}

// StatisticsMetrics are the metrics summarised by the statistics engine, in output order
var StatisticsMetrics = []models.Metric{
	models.MetricCO2,
	models.MetricTemperature,
	models.MetricHumidity,
	models.MetricVOCs,
	models.MetricNOx,
}

// SpecFor returns the parameters for metric m
func SpecFor(m models.Metric) (MetricSpec, bool) {
	s, ok := metricSpecs[m]
	return s, ok
}

// DefaultRiskBands returns a fresh copy of the built-in risk bands
func DefaultRiskBands() map[models.Metric]RiskBand {
	bands := make(map[models.Metric]RiskBand)
	for m, s := range metricSpecs {
		if s.Risk == nil {
			continue
		}
		b := RiskBand{Max: s.Risk.Max}
		if s.Risk.Min != nil {
			b.Min = floatPtr(*s.Risk.Min)
		}
		bands[m] = b
	}
	return bands
}

// ApplyRiskOverrides returns the built-in risk bands with the band of every
// metric named in overrides replaced
func ApplyRiskOverrides(overrides map[string]RiskBand) (map[models.Metric]RiskBand, error) {
	bands := DefaultRiskBands()
	for name, band := range overrides {
		m, err := models.ParseMetric(name)
		if err != nil {
			return nil, fmt.Errorf("risk band: %w", err)
		}
		if band.Min != nil && *band.Min > band.Max {
			return nil, fmt.Errorf("risk band %s: min %.2f exceeds max %.2f", m, *band.Min, band.Max)
		}
		bands[m] = band
	}
	return bands, nil
}
