package models

import (
	"fmt"
	"strings"
	"time"
)

// Metric identifies one measured quantity of a Reading
type Metric string

const (
	MetricAQI         Metric = "aqi"
	MetricCO2         Metric = "co2"
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricVOCs        Metric = "vocs"
	MetricNOx         Metric = "nox"
)

// AllMetrics lists every metric a Reading can carry, in wire order
var AllMetrics = []Metric{MetricAQI, MetricCO2, MetricTemperature, MetricHumidity, MetricVOCs, MetricNOx}

// ParseMetric converts a user supplied name into a Metric
func ParseMetric(name string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllMetrics {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric: %q", name)
}

// Reading is a single sensor sample. A nil metric field means the sensor did not
// report that quantity; it is skipped for that metric only.
type Reading struct {
	ID          string    `json:"id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	AQI         *float64  `json:"aqi"`
	CO2         *float64  `json:"co2"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	VOCs        *float64  `json:"vocs"`
	NOx         *float64  `json:"nox"`
}

// Value returns the value of metric m and whether it is present
func (r *Reading) Value(m Metric) (float64, bool) {
	p := r.field(m)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetValue stores v for metric m
func (r *Reading) SetValue(m Metric, v float64) {
	switch m {
	case MetricAQI:
		r.AQI = &v
	case MetricCO2:
		r.CO2 = &v
	case MetricTemperature:
		r.Temperature = &v
	case MetricHumidity:
		r.Humidity = &v
	case MetricVOCs:
		r.VOCs = &v
	case MetricNOx:
		r.NOx = &v
	}
}

// HasAnyValue reports whether at least one metric is present
func (r *Reading) HasAnyValue() bool {
	for _, m := range AllMetrics {
		if r.field(m) != nil {
			return true
		}
	}
	return false
}

func (r *Reading) field(m Metric) *float64 {
	switch m {
	case MetricAQI:
		return r.AQI
	case MetricCO2:
		return r.CO2
	case MetricTemperature:
		return r.Temperature
	case MetricHumidity:
		return r.Humidity
	case MetricVOCs:
		return r.VOCs
	case MetricNOx:
		return r.NOx
	}
	return nil
}

// Float returns a pointer to v, for building readings in code and tests
func Float(v float64) *float64 {
	return &v
}
