package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airqlab/airq/internal/models"
)

func TestRiskBand_Outside(t *testing.T) {
	upper := RiskBand{Max: 1000}
	assert.False(t, upper.Outside(1000))
	assert.True(t, upper.Outside(1000.01))
	assert.False(t, upper.Outside(-5))

	ranged := RiskBand{Max: 28, Min: floatPtr(18)}
	assert.True(t, ranged.Outside(17.9))
	assert.False(t, ranged.Outside(18))
	assert.True(t, ranged.Outside(28.5))
}

func TestDefaultRiskBands(t *testing.T) {
	bands := DefaultRiskBands()
	assert.Len(t, bands, 3)
	assert.Equal(t, 1000.0, bands[models.MetricCO2].Max)
	assert.Nil(t, bands[models.MetricCO2].Min)

	// callers get their own copy
	*bands[models.MetricHumidity].Min = 0
	assert.Equal(t, 30.0, *DefaultRiskBands()[models.MetricHumidity].Min)
}

func TestApplyRiskOverrides(t *testing.T) {
	bands, err := ApplyRiskOverrides(map[string]RiskBand{
		"CO2":  {Max: 1200},
		"vocs": {Max: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, bands[models.MetricCO2].Max)
	assert.Equal(t, 500.0, bands[models.MetricVOCs].Max)
	assert.Equal(t, 28.0, bands[models.MetricTemperature].Max)

	_, err = ApplyRiskOverrides(map[string]RiskBand{"ozone": {Max: 1}})
	assert.Error(t, err)

	_, err = ApplyRiskOverrides(map[string]RiskBand{"humidity": {Max: 20, Min: floatPtr(40)}})
	assert.Error(t, err)
}

func TestSpecFor(t *testing.T) {
	for _, m := range models.AllMetrics {
		spec, ok := SpecFor(m)
		require.True(t, ok, "missing spec for %s", m)
		assert.Equal(t, m, spec.Metric)
	}

	_, ok := SpecFor("ozone")
	assert.False(t, ok)
}
