package store

import (
	"context"
	"testing"
	"time"

	"github.com/airqlab/airq/internal/models"
)

var testBaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// hourlyReadings creates n co2 readings one hour apart starting at testBaseTime
func hourlyReadings(prefix string, n int) []models.Reading {
	readings := make([]models.Reading, n)
	for i := range readings {
		readings[i] = models.Reading{
			ID:        prefix + "-" + string(rune('a'+i)),
			Timestamp: testBaseTime.Add(time.Duration(i) * time.Hour),
			CO2:       models.Float(400 + float64(i)*10),
		}
	}
	return readings
}

// runRepositoryContract exercises the behaviour every backend must share
func runRepositoryContract(t *testing.T, repo ReadingRepository) {
	t.Helper()
	ctx := context.Background()

	readings := hourlyReadings("r", 6)
	readings[2].CO2 = nil
	readings[2].Temperature = models.Float(21.5)

	n, err := repo.InsertReadings(ctx, readings)
	if err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}
	if n != len(readings) {
		t.Errorf("Expected %d inserted, got %d", len(readings), n)
	}

	t.Run("NewestFirst", func(t *testing.T) {
		got, err := repo.FetchReadings(ctx, Filter{})
		if err != nil {
			t.Fatalf("FetchReadings failed: %v", err)
		}
		if len(got) != 6 {
			t.Fatalf("Expected 6 readings, got %d", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.After(got[i-1].Timestamp) {
				t.Errorf("Readings not in descending order at %d", i)
			}
		}
		if !got[0].Timestamp.Equal(testBaseTime.Add(5 * time.Hour)) {
			t.Errorf("Expected newest reading first, got %v", got[0].Timestamp)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := repo.FetchReadings(ctx, Filter{Limit: 2})
		if err != nil {
			t.Fatalf("FetchReadings failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != "r-f" || got[1].ID != "r-e" {
			t.Errorf("Expected the 2 newest readings, got %+v", got)
		}
	})

	t.Run("InclusiveBounds", func(t *testing.T) {
		got, err := repo.FetchReadings(ctx, Between(testBaseTime.Add(time.Hour), testBaseTime.Add(3*time.Hour), 0))
		if err != nil {
			t.Fatalf("FetchReadings failed: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 readings in [1h, 3h], got %d", len(got))
		}
	})

	t.Run("NullsPreserved", func(t *testing.T) {
		at := testBaseTime.Add(2 * time.Hour)
		got, err := repo.FetchReadings(ctx, Between(at, at, 0))
		if err != nil {
			t.Fatalf("FetchReadings failed: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Expected 1 reading, got %d", len(got))
		}
		if got[0].CO2 != nil {
			t.Errorf("Expected nil co2, got %v", *got[0].CO2)
		}
		if got[0].Temperature == nil || *got[0].Temperature != 21.5 {
			t.Errorf("Expected temperature 21.5, got %v", got[0].Temperature)
		}
	})
}
