package stats

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/airqlab/airq/internal/analytics"
	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/models"
)

var testBaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func temperatureReadings(values ...float64) []models.Reading {
	readings := make([]models.Reading, len(values))
	for i, v := range values {
		readings[i] = models.Reading{
			Timestamp:   testBaseTime.Add(time.Duration(i) * time.Hour),
			Temperature: models.Float(v),
		}
	}
	return readings
}

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestCompute_TemperatureScenario(t *testing.T) {
	engine := NewEngine(nil)
	readings := temperatureReadings(18, 20, 22, 24, 26)

	summary, err := engine.Compute(readings, testBaseTime, testBaseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if summary.TotalReadings != 5 {
		t.Errorf("Expected 5 readings, got %d", summary.TotalReadings)
	}

	r, ok := summary.Metrics[models.MetricTemperature]
	if !ok {
		t.Fatal("Expected temperature in result")
	}
	if r.Mean != 22 || r.Median != 22 || r.Min != 18 || r.Max != 26 {
		t.Errorf("Unexpected location stats: %+v", r)
	}
	if r.StdDev != 2.83 {
		t.Errorf("Expected population stddev 2.83, got %v", r.StdDev)
	}
	if r.RiskTimePercent != 0 {
		t.Errorf("Expected risk time 0, got %v", r.RiskTimePercent)
	}
	if r.Percentile95 != 25.6 {
		t.Errorf("Expected p95 25.6, got %v", r.Percentile95)
	}
	if r.CoefficientOfVariation == nil || *r.CoefficientOfVariation != 12.86 {
		t.Errorf("Expected CV 12.86, got %v", r.CoefficientOfVariation)
	}
	if r.Skewness == nil || *r.Skewness != 0 {
		t.Errorf("Expected skewness 0 for a symmetric sample, got %v", r.Skewness)
	}

	if _, ok := summary.Metrics[models.MetricCO2]; ok {
		t.Error("Metric without values should be omitted")
	}
}

func TestCompute_NoData(t *testing.T) {
	engine := NewEngine(nil)
	readings := temperatureReadings(20, 21)

	_, err := engine.Compute(readings, testBaseTime.Add(48*time.Hour), testBaseTime.Add(72*time.Hour))
	if !errors.Is(err, analytics.ErrNoData) {
		t.Fatalf("Expected ErrNoData, got %v", err)
	}

	_, err = engine.Compute(nil, testBaseTime, testBaseTime.Add(time.Hour))
	if !errors.Is(err, analytics.ErrNoData) {
		t.Fatalf("Expected ErrNoData for empty input, got %v", err)
	}
}

func TestCompute_WindowIsInclusive(t *testing.T) {
	engine := NewEngine(nil)
	readings := temperatureReadings(10, 20, 30)

	summary, err := engine.Compute(readings, testBaseTime, testBaseTime.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if summary.TotalReadings != 3 {
		t.Errorf("Both window edges should be included, got %d readings", summary.TotalReadings)
	}
}

func TestCompute_NullValuesSkippedPerMetric(t *testing.T) {
	engine := NewEngine(nil)
	readings := []models.Reading{
		{Timestamp: testBaseTime, CO2: models.Float(500), Humidity: models.Float(40)},
		{Timestamp: testBaseTime.Add(time.Hour), CO2: models.Float(700)},
		{Timestamp: testBaseTime.Add(2 * time.Hour), Humidity: models.Float(60)},
	}

	summary, err := engine.Compute(readings, testBaseTime, testBaseTime.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got := summary.Metrics[models.MetricCO2]; got.Count != 2 || got.Mean != 600 {
		t.Errorf("Expected co2 over 2 values with mean 600, got %+v", got)
	}
	if got := summary.Metrics[models.MetricHumidity]; got.Count != 2 || got.Mean != 50 {
		t.Errorf("Expected humidity over 2 values with mean 50, got %+v", got)
	}
	if readings[1].Humidity != nil {
		t.Error("Input must not be modified")
	}
}

func TestCompute_InputNotMutated(t *testing.T) {
	engine := NewEngine(nil)
	readings := []models.Reading{
		{Timestamp: testBaseTime.Add(2 * time.Hour), CO2: models.Float(900)},
		{Timestamp: testBaseTime, CO2: models.Float(400)},
		{Timestamp: testBaseTime.Add(time.Hour), CO2: models.Float(600)},
	}

	if _, err := engine.Compute(readings, testBaseTime, testBaseTime.Add(3*time.Hour)); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !readings[0].Timestamp.Equal(testBaseTime.Add(2*time.Hour)) || *readings[0].CO2 != 900 {
		t.Error("Compute reordered or modified its input")
	}
}

func TestDescribe_Invariants(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"single", []float64{42}},
		{"two", []float64{1, 3}},
		{"skewed", []float64{1, 2, 3, 10}},
		{"negative", []float64{-5, -1, 0, 2, 7, 7, 9}},
		{"constant", []float64{5, 5, 5, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Describe(tt.values, 2, nil)
			if r.Min > r.Median || r.Median > r.Max {
				t.Errorf("Expected min <= median <= max, got %v %v %v", r.Min, r.Median, r.Max)
			}
			if r.Min > r.Mean || r.Mean > r.Max {
				t.Errorf("Expected min <= mean <= max, got %v %v %v", r.Min, r.Mean, r.Max)
			}
			if r.StdDev < 0 {
				t.Errorf("Negative stddev %v", r.StdDev)
			}
			if r.Percentile95 < r.Median || r.Percentile95 > r.Max {
				t.Errorf("p95 %v outside [median, max]", r.Percentile95)
			}
		})
	}
}

func TestDescribe_MedianEvenCount(t *testing.T) {
	r := Describe([]float64{4, 1, 3, 2}, 2, nil)
	if r.Median != 2.5 {
		t.Errorf("Expected median 2.5, got %v", r.Median)
	}
}

func TestDescribe_Skewness(t *testing.T) {
	r := Describe([]float64{1, 2, 3, 10}, 2, nil)
	if r.Skewness == nil {
		t.Fatal("Expected skewness to be defined")
	}
	if *r.Skewness != 1.76 {
		t.Errorf("Expected adjusted sample skewness 1.76, got %v", *r.Skewness)
	}
}

func TestDescribe_UndefinedValues(t *testing.T) {
	r := Describe([]float64{1, 2}, 2, nil)
	if r.Skewness != nil {
		t.Errorf("Skewness should be undefined for n < 3, got %v", *r.Skewness)
	}

	r = Describe([]float64{7, 7, 7}, 2, nil)
	if r.Skewness != nil {
		t.Errorf("Skewness should be undefined for zero spread, got %v", *r.Skewness)
	}
	if r.StdDev != 0 {
		t.Errorf("Expected zero stddev, got %v", r.StdDev)
	}

	r = Describe([]float64{-2, 0, 2}, 2, nil)
	if r.CoefficientOfVariation != nil {
		t.Errorf("CV should be undefined for zero mean, got %v", *r.CoefficientOfVariation)
	}
}

func TestPercentile_MonotoneWhenAppendingHighValues(t *testing.T) {
	values := []float64{10, 12, 14, 15, 18, 20}
	before := Describe(values, 2, nil).Percentile95
	after := Describe(append(values, 100, 120), 2, nil).Percentile95
	if after < before {
		t.Errorf("p95 decreased after appending high values: %v -> %v", before, after)
	}
}

func TestPercentile_Interpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := Percentile(sorted, 0.95); !approxEqual(got, 9.55, 1e-9) {
		t.Errorf("Expected 9.55, got %v", got)
	}
	if got := Percentile(sorted, 0); got != 1 {
		t.Errorf("Expected 1, got %v", got)
	}
	if got := Percentile(sorted, 1); got != 10 {
		t.Errorf("Expected 10, got %v", got)
	}
}

func TestRiskTimePercent(t *testing.T) {
	co2, _ := analytics.SpecFor(models.MetricCO2)
	temp, _ := analytics.SpecFor(models.MetricTemperature)

	tests := []struct {
		name   string
		values []float64
		band   *analytics.RiskBand
		want   float64
	}{
		{"all inside one-sided", []float64{400, 600, 999}, co2.Risk, 0},
		{"all above one-sided", []float64{1001, 1500}, co2.Risk, 100},
		{"boundary is not risk", []float64{1000}, co2.Risk, 0},
		{"half above", []float64{500, 1200, 900, 1500}, co2.Risk, 50},
		{"below two-sided", []float64{17, 20, 29, 22}, temp.Risk, 50},
		{"all outside two-sided", []float64{10, 35}, temp.Risk, 100},
		{"no band", []float64{1e6}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskTimePercent(tt.values, tt.band); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCompute_CustomRiskBands(t *testing.T) {
	engine := NewEngine(map[models.Metric]analytics.RiskBand{
		models.MetricTemperature: {Max: 21},
	})
	summary, err := engine.Compute(temperatureReadings(18, 20, 22, 24), testBaseTime, testBaseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got := summary.Metrics[models.MetricTemperature].RiskTimePercent; got != 50 {
		t.Errorf("Expected 50%% with custom band, got %v", got)
	}
}

func TestDescribe_MetricDecimals(t *testing.T) {
	humidity, _ := analytics.SpecFor(models.MetricHumidity)
	r := Describe([]float64{40.04, 40.06, 40.11}, humidity.Decimals, nil)
	if r.Mean != 40.1 {
		t.Errorf("Expected humidity mean rounded to 1 decimal, got %v", r.Mean)
	}

	nox, _ := analytics.SpecFor(models.MetricNOx)
	r = Describe([]float64{0.0123, 0.0124}, nox.Decimals, nil)
	if r.Min != 0.012 {
		t.Errorf("Expected nox min rounded to 3 decimals, got %v", r.Min)
	}
}

func TestDescribe_RatiosKeepTwoDecimals(t *testing.T) {
	aqi, _ := analytics.SpecFor(models.MetricAQI)
	r := Describe([]float64{10, 11, 13}, aqi.Decimals, &analytics.RiskBand{Max: 12})

	if r.Mean != 11 {
		t.Errorf("Expected aqi mean rounded to 0 decimals, got %v", r.Mean)
	}
	if r.CoefficientOfVariation == nil || *r.CoefficientOfVariation != 11.0 {
		t.Errorf("Expected cv 11.0, got %v", r.CoefficientOfVariation)
	}
	if r.Skewness == nil || *r.Skewness != 0.94 {
		t.Errorf("Expected skewness 0.94 despite 0 value decimals, got %v", r.Skewness)
	}
	if r.RiskTimePercent != 33.33 {
		t.Errorf("Expected risk time 33.33, got %v", r.RiskTimePercent)
	}
}

func TestNewEngineFromConfig(t *testing.T) {
	low := 22.0
	engine, err := NewEngineFromConfig(config.AnalyticsConfig{
		RiskBands: map[string]config.RiskBandConfig{
			"temperature": {Max: 30, Min: &low},
		},
	})
	if err != nil {
		t.Fatalf("NewEngineFromConfig failed: %v", err)
	}

	summary, err := engine.Compute(temperatureReadings(18, 20, 22, 24), testBaseTime, testBaseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got := summary.Metrics[models.MetricTemperature].RiskTimePercent; got != 50 {
		t.Errorf("Expected 50%% below the configured minimum, got %v", got)
	}

	_, err = NewEngineFromConfig(config.AnalyticsConfig{
		RiskBands: map[string]config.RiskBandConfig{"pm25": {Max: 10}},
	})
	if err == nil {
		t.Error("Expected error for unknown metric override")
	}
}
