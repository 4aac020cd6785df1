// Package store provides the reading repository consumed by the analytics
// services, with in-memory, Redis, PostgreSQL, SQLite and InfluxDB backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/utils"
)

// ErrClosed is returned by operations on a closed repository
var ErrClosed = errors.New("store: repository closed")

// Filter selects readings by timestamp. Both bounds are inclusive and optional.
// A Limit of zero or less returns every match.
type Filter struct {
	Limit         int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Matches reports whether ts lies within the filter bounds
func (f Filter) Matches(ts time.Time) bool {
	if f.CreatedAfter != nil && ts.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && ts.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// Between returns a filter for [start, end] with the given limit
func Between(start, end time.Time, limit int) Filter {
	return Filter{Limit: limit, CreatedAfter: &start, CreatedBefore: &end}
}

// ReadingRepository is the persistence boundary of the service
type ReadingRepository interface {
	// FetchReadings returns readings matching the filter, newest first
	FetchReadings(ctx context.Context, filter Filter) ([]models.Reading, error)

	// InsertReadings stores readings and returns how many were written
	InsertReadings(ctx context.Context, readings []models.Reading) (int, error)

	// Close releases the backend connection
	Close() error
}

// New creates the repository selected by cfg.Type
func New(ctx context.Context, cfg config.StoreConfig, logger *logging.Logger) (ReadingRepository, error) {
	storeType := utils.StoreType(strings.ToLower(cfg.Type))
	if storeType == "" {
		storeType = utils.StoreTypeMemory
	}

	logger.Info("Opening reading store", "type", string(storeType))

	switch storeType {
	case utils.StoreTypeMemory:
		return NewMemoryStore(cfg.Memory.MaxAge, cfg.Memory.MaxSize, logger), nil

	case utils.StoreTypeRedis:
		return newRedisStore(ctx, cfg.Redis, logger)

	case utils.StoreTypePostgres:
		return newSQLStore(ctx, postgresDialect, cfg.Postgres, logger)

	case utils.StoreTypeSQLite:
		return newSQLStore(ctx, sqliteDialect, cfg.SQLite, logger)

	case utils.StoreTypeInfluxDB:
		return newInfluxStore(ctx, cfg.InfluxDB, logger)

	default:
		return nil, fmt.Errorf("unsupported store type: %s (supported: memory, redis, postgres, sqlite, influxdb)", storeType)
	}
}

// cloneReading returns a copy of r that shares no pointers with it
func cloneReading(r models.Reading) models.Reading {
	out := models.Reading{ID: r.ID, Timestamp: r.Timestamp}
	for _, m := range models.AllMetrics {
		if v, ok := r.Value(m); ok {
			out.SetValue(m, v)
		}
	}
	return out
}
