package ingest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/airqlab/airq/internal/models"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(5*time.Minute, fixedNow)

	tests := []struct {
		name    string
		reading models.Reading
		wantErr error
	}{
		{
			name:    "valid",
			reading: models.Reading{Timestamp: testNow, CO2: models.Float(420)},
		},
		{
			name:    "within clock skew",
			reading: models.Reading{Timestamp: testNow.Add(4 * time.Minute), Humidity: models.Float(40)},
		},
		{
			name:    "missing timestamp",
			reading: models.Reading{CO2: models.Float(420)},
			wantErr: ErrMissingTimestamp,
		},
		{
			name:    "future timestamp",
			reading: models.Reading{Timestamp: testNow.Add(time.Hour), CO2: models.Float(420)},
			wantErr: ErrFutureTimestamp,
		},
		{
			name:    "no metrics",
			reading: models.Reading{Timestamp: testNow},
			wantErr: ErrNoMetrics,
		},
		{
			name:    "humidity above 100",
			reading: models.Reading{Timestamp: testNow, Humidity: models.Float(101)},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "negative co2",
			reading: models.Reading{Timestamp: testNow, CO2: models.Float(-1)},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "NaN temperature",
			reading: models.Reading{Timestamp: testNow, Temperature: models.Float(math.NaN())},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "sub-zero temperature",
			reading: models.Reading{Timestamp: testNow, Temperature: models.Float(-12.5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.reading)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidator_Partition(t *testing.T) {
	v := NewValidator(time.Minute, fixedNow)
	tokyo := time.FixedZone("JST", 9*3600)

	readings := []models.Reading{
		{Timestamp: testNow.In(tokyo), CO2: models.Float(400)},
		{Timestamp: testNow, Humidity: models.Float(150)},
		{ID: "keep-me", Timestamp: testNow, NOx: models.Float(0.04)},
	}

	valid, rejected := v.Partition(readings)

	if len(valid) != 2 || len(rejected) != 1 {
		t.Fatalf("expected 2 valid and 1 rejected, got %d and %d", len(valid), len(rejected))
	}
	if rejected[0].Index != 1 {
		t.Errorf("expected rejection of index 1, got %d", rejected[0].Index)
	}
	if valid[0].ID == "" {
		t.Error("expected generated ID")
	}
	if valid[0].Timestamp.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", valid[0].Timestamp.Location())
	}
	if valid[1].ID != "keep-me" {
		t.Errorf("expected existing ID kept, got %s", valid[1].ID)
	}
	if readings[0].ID != "" {
		t.Error("input slice must not be modified")
	}
}

func TestPhysicalRange(t *testing.T) {
	for _, m := range models.AllMetrics {
		r, ok := PhysicalRange(m)
		if !ok {
			t.Errorf("missing range for %s", m)
			continue
		}
		if r.Min >= r.Max {
			t.Errorf("invalid range for %s: %+v", m, r)
		}
	}
}
