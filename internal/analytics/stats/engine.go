// Package stats computes descriptive statistics and risk-time percentages for
// sensor readings over a closed time window.
package stats

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/airqlab/airq/internal/analytics"
	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/models"
)

// Result holds the summary of a single metric. Skewness and
// CoefficientOfVariation are nil when they are undefined for the window.
type Result struct {
	Mean                   float64  `json:"media"`
	Median                 float64  `json:"mediana"`
	StdDev                 float64  `json:"desvioPadrao"`
	Min                    float64  `json:"minimo"`
	Max                    float64  `json:"maximo"`
	Skewness               *float64 `json:"assimetria"`
	CoefficientOfVariation *float64 `json:"coefVariacao"`
	Percentile95           float64  `json:"percentil95"`
	RiskTimePercent        float64  `json:"tempoRisco"`
	Count                  int      `json:"-"`
}

// Summary is the output of one Compute call
type Summary struct {
	TotalReadings int
	Metrics       map[models.Metric]Result
}

// Engine computes statistics. It holds only read-only configuration and is safe
// for concurrent use.
type Engine struct {
	riskBands map[models.Metric]analytics.RiskBand
}

// NewEngine creates an engine using the given risk bands. A nil map selects the
// built-in bands; metrics missing from a non-nil map have no band.
func NewEngine(riskBands map[models.Metric]analytics.RiskBand) *Engine {
	if riskBands == nil {
		riskBands = analytics.DefaultRiskBands()
	}
	return &Engine{riskBands: riskBands}
}

// Compute summarises every tracked metric over readings with timestamps in
// [start, end]. It returns analytics.ErrNoData when no reading falls in the window.
// Metrics with no values in the window are left out of the result.
func (e *Engine) Compute(readings []models.Reading, start, end time.Time) (*Summary, error) {
	window := analytics.FilterWindow(readings, start, end)
	if len(window) == 0 {
		return nil, analytics.ErrNoData
	}

	summary := &Summary{
		TotalReadings: len(window),
		Metrics:       make(map[models.Metric]Result, len(analytics.StatisticsMetrics)),
	}
	for _, m := range analytics.StatisticsMetrics {
		series := analytics.BuildSeries(window, m, start, end)
		if series.Len() == 0 {
			continue
		}
		spec, _ := analytics.SpecFor(m)
		var band *analytics.RiskBand
		if b, ok := e.riskBands[m]; ok {
			band = &b
		}
		summary.Metrics[m] = Describe(series.Values(), spec.Decimals, band)
	}
	return summary, nil
}

// Describe summarises a non-empty slice of values. Value statistics are rounded to
// decimals. Skewness, coefficient of variation and risk time are pinned at 2
// decimals for every metric in the API, regardless of decimals.
func Describe(values []float64, decimals int, band *analytics.RiskBand) Result {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)

	r := Result{
		Mean:            analytics.Round(mean, decimals),
		Median:          analytics.Round(Percentile(sorted, 0.5), decimals),
		StdDev:          analytics.Round(std, decimals),
		Min:             analytics.Round(floats.Min(sorted), decimals),
		Max:             analytics.Round(floats.Max(sorted), decimals),
		Percentile95:    analytics.Round(Percentile(sorted, 0.95), decimals),
		RiskTimePercent: analytics.Round(RiskTimePercent(sorted, band), 2),
		Count:           len(sorted),
	}

	if mean != 0 {
		cv := analytics.Round(std/mean*100, 2)
		r.CoefficientOfVariation = &cv
	}
	if skew, ok := Skewness(sorted); ok {
		s := analytics.Round(skew, 2)
		r.Skewness = &s
	}
	return r
}

// Percentile returns the p-quantile of sorted values by linear interpolation at
// rank p*(n-1). sorted must be in ascending order and non-empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Skewness returns the adjusted Fisher-Pearson sample skewness. ok is false when
// fewer than three values are given or all values are equal.
func Skewness(values []float64) (skew float64, ok bool) {
	if len(values) < 3 {
		return 0, false
	}
	if floats.Max(values) == floats.Min(values) {
		return 0, false
	}
	skew = stat.Skew(values, nil)
	if math.IsNaN(skew) || math.IsInf(skew, 0) {
		return 0, false
	}
	return skew, true
}

// RiskTimePercent returns the share of values outside band, in percent. A nil band
// yields 0.
func RiskTimePercent(values []float64, band *analytics.RiskBand) float64 {
	if band == nil || len(values) == 0 {
		return 0
	}
	outside := 0
	for _, v := range values {
		if band.Outside(v) {
			outside++
		}
	}
	return float64(outside) / float64(len(values)) * 100
}

// NewEngineFromConfig creates an engine with the built-in risk bands
// overridden by cfg.RiskBands
func NewEngineFromConfig(cfg config.AnalyticsConfig) (*Engine, error) {
	overrides := make(map[string]analytics.RiskBand, len(cfg.RiskBands))
	for name, b := range cfg.RiskBands {
		overrides[name] = analytics.RiskBand{Max: b.Max, Min: b.Min}
	}
	bands, err := analytics.ApplyRiskOverrides(overrides)
	if err != nil {
		return nil, err
	}
	return NewEngine(bands), nil
}
