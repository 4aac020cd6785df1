package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReadings = `[
  {"timestamp": "2025-01-01T09:00:00Z", "co2": 500, "temperature": 21},
  {"timestamp": "2025-01-01T10:00:00Z", "co2": 700, "temperature": 22},
  {"timestamp": "2025-01-01T11:00:00Z", "co2": 900, "temperature": 23},
  {"timestamp": "2025-01-01T12:00:00Z", "co2": 1100, "temperature": 24}
]`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	path := writeInput(t, sampleReadings)

	out, err := run(t, "", "stats", "-i", path, "--now", "latest")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "24h", doc["period"])
	assert.EqualValues(t, 4, doc["totalReadings"])
	assert.Equal(t, "2025-01-01T12:00:00Z", doc["endDate"])

	co2 := doc["co2"].(map[string]interface{})
	assert.EqualValues(t, 800, co2["media"])
	assert.EqualValues(t, 25, co2["tempoRisco"])
}

func TestStatsCommand_Stdin(t *testing.T) {
	out, err := run(t, `{"readings":`+sampleReadings+`}`, "stats", "-i", "-", "--now", "2025-01-01T12:30:00Z", "--period", "7d")
	require.NoError(t, err)
	assert.Contains(t, out, `"period":"7d"`)
}

func TestStatsCommand_NoData(t *testing.T) {
	path := writeInput(t, sampleReadings)

	_, err := run(t, "", "stats", "-i", path, "--now", "2025-02-01T00:00:00Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_DATA")
}

func TestForecastCommand(t *testing.T) {
	path := writeInput(t, sampleReadings)

	out, err := run(t, "", "forecast", "-i", path, "--now", "latest")
	require.NoError(t, err)

	var doc struct {
		Metric   string                   `json:"metric"`
		Forecast []map[string]interface{} `json:"forecast"`
		Model    map[string]interface{}   `json:"model"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "co2", doc.Metric)
	assert.Len(t, doc.Forecast, 12)
	assert.Equal(t, "linear", doc.Model["method"])
	assert.Equal(t, "2025-01-01T14:00:00Z", doc.Forecast[0]["ts"])
}

func TestForecastCommand_ManyMetrics(t *testing.T) {
	path := writeInput(t, sampleReadings)

	out, err := run(t, "", "forecast", "-i", path, "--now", "latest", "-m", "co2,temperature")
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc, 2)
}

func TestCommand_Errors(t *testing.T) {
	path := writeInput(t, sampleReadings)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"stats"}, "input"},
		{"bad now", []string{"stats", "-i", path, "--now", "noon"}, "--now"},
		{"unknown metric", []string{"forecast", "-i", path, "-m", "ozone"}, "INVALID_METRIC"},
		{"bad period", []string{"stats", "-i", path, "--now", "latest", "-p", "1y"}, "INVALID_PERIOD"},
		{"missing file", []string{"stats", "-i", filepath.Join(t.TempDir(), "none.json")}, "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
