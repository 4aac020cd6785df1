package forecast

import (
	"math"
	"time"

	"github.com/airqlab/airq/internal/models"
)

// Common test data and helpers for all forecast tests

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// readingsEndingAt spaces values by interval so that the last one is at end
func readingsEndingAt(metric models.Metric, end time.Time, interval time.Duration, values ...float64) []models.Reading {
	readings := make([]models.Reading, len(values))
	for i, v := range values {
		readings[i] = models.Reading{
			Timestamp: end.Add(-interval * time.Duration(len(values)-1-i)),
		}
		readings[i].SetValue(metric, v)
	}
	return readings
}

// generateNoisyTemperature creates a slow upward trend with a deterministic wobble
func generateNoisyTemperature(n int, interval time.Duration) []models.Reading {
	values := make([]float64, n)
	for i := range values {
		values[i] = 20 + 0.05*float64(i) + 1.5*math.Sin(float64(i)*0.7)
	}
	return readingsEndingAt(models.MetricTemperature, testNow, interval, values...)
}
