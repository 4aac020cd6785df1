package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/store"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// failingSource always fails, for QUERY_FAILED paths
type failingSource struct{}

func (failingSource) FetchReadings(context.Context, store.Filter) ([]models.Reading, error) {
	return nil, errors.New("connection refused")
}

// recordingSource remembers the last filter it was asked for
type recordingSource struct {
	ReadingSource
	last store.Filter
}

func (r *recordingSource) FetchReadings(ctx context.Context, f store.Filter) ([]models.Reading, error) {
	r.last = f
	return r.ReadingSource.FetchReadings(ctx, f)
}

func newTestStore(t *testing.T, readings ...models.Reading) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore(0, 100000, logging.NewNop())
	if len(readings) > 0 {
		if _, err := s.InsertReadings(context.Background(), readings); err != nil {
			t.Fatalf("InsertReadings failed: %v", err)
		}
	}
	return s
}

// spaced returns readings ending at testNow, interval apart, with metric set
// to values in chronological order
func spaced(metric models.Metric, interval time.Duration, values ...float64) []models.Reading {
	out := make([]models.Reading, len(values))
	for i, v := range values {
		r := models.Reading{Timestamp: testNow.Add(-time.Duration(len(values)-1-i) * interval)}
		r.SetValue(metric, v)
		out[i] = r
	}
	return out
}

func requireServiceError(t *testing.T, err error, code string) *ServiceError {
	t.Helper()
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError %s, got %v", code, err)
	}
	if svcErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, svcErr.Code, svcErr.Message)
	}
	return svcErr
}
