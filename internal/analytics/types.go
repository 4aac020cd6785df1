// Package analytics provides the shared types for the statistics and forecast
// engines: metric series construction, the per-metric parameter table and the
// sentinel errors surfaced to the service layer.
package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/airqlab/airq/internal/models"
)

var (
	// ErrNoData is returned when a statistics window contains no readings
	ErrNoData = errors.New("no readings in the requested period")

	// ErrRegressionDegenerate is returned when every regression input shares the same x
	ErrRegressionDegenerate = errors.New("cannot compute regression: all x values are the same")
)

// TimeSeriesPoint represents a single time-series data point with time and value.
type TimeSeriesPoint struct {
	Time  time.Time
	Value float64
}

// MetricSeries is an ordered sequence of points for a single metric
type MetricSeries []TimeSeriesPoint

// Values extracts just the values from the series
func (ts MetricSeries) Values() []float64 {
	values := make([]float64, len(ts))
	for i, p := range ts {
		values[i] = p.Value
	}
	return values
}

// Times extracts just the times from the series
func (ts MetricSeries) Times() []time.Time {
	times := make([]time.Time, len(ts))
	for i, p := range ts {
		times[i] = p.Time
	}
	return times
}

// Len returns the number of data points
func (ts MetricSeries) Len() int {
	return len(ts)
}

// Mean calculates the mean of all values
func (ts MetricSeries) Mean() float64 {
	if len(ts) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range ts {
		sum += p.Value
	}
	return sum / float64(len(ts))
}

// BuildSeries extracts the values of metric from readings whose timestamp lies in
// [start, end]. Readings without a value for metric are skipped. The result is sorted
// by ascending time; readings is not modified.
func BuildSeries(readings []models.Reading, metric models.Metric, start, end time.Time) MetricSeries {
	series := make(MetricSeries, 0, len(readings))
	for i := range readings {
		r := &readings[i]
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		v, ok := r.Value(metric)
		if !ok {
			continue
		}
		series = append(series, TimeSeriesPoint{Time: r.Timestamp, Value: v})
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})
	return series
}

// FilterWindow returns the readings whose timestamp lies in [start, end]
func FilterWindow(readings []models.Reading, start, end time.Time) []models.Reading {
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Round rounds v to the given number of decimal places
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// RoundPtr rounds *v, passing nil through
func RoundPtr(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, decimals)
	return &r
}
