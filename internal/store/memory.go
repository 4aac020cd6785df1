package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
)

// MemoryStore keeps readings in process, ordered by timestamp. Readings older
// than maxAge (relative to the newest reading) and readings beyond maxSize are
// evicted oldest first.
type MemoryStore struct {
	mu      sync.RWMutex
	points  *timeline
	maxAge  time.Duration
	maxSize int
	closed  bool
	logger  *logging.Logger
}

// NewMemoryStore creates an in-memory repository. maxAge <= 0 disables age
// eviction and maxSize <= 0 disables size eviction.
func NewMemoryStore(maxAge time.Duration, maxSize int, logger *logging.Logger) *MemoryStore {
	if logger == nil {
		logger = logging.Global()
	}
	return &MemoryStore{
		points:  newTimeline(1024),
		maxAge:  maxAge,
		maxSize: maxSize,
		logger:  logger,
	}
}

// FetchReadings returns matching readings, newest first
func (s *MemoryStore) FetchReadings(ctx context.Context, filter Filter) ([]models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var start, end time.Time
	if filter.CreatedAfter != nil {
		start = *filter.CreatedAfter
	}
	if filter.CreatedBefore != nil {
		end = *filter.CreatedBefore
	}
	return s.points.newestFirst(start, end, filter.Limit), nil
}

// InsertReadings stores copies of readings and returns how many were new.
// Readings without an ID get one.
func (s *MemoryStore) InsertReadings(ctx context.Context, readings []models.Reading) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	added := 0
	for _, r := range readings {
		c := cloneReading(r)
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if s.points.insert(c) {
			added++
		}
	}

	s.evictLocked()
	return added, nil
}

// Len returns the number of stored readings
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points.len()
}

func (s *MemoryStore) evictLocked() {
	evicted := 0
	if s.maxAge > 0 {
		if newest, ok := s.points.newest(); ok {
			evicted += s.points.dropBefore(newest.Add(-s.maxAge))
		}
	}
	if s.maxSize > 0 && s.points.len() > s.maxSize {
		evicted += s.points.dropOldest(s.points.len() - s.maxSize)
	}
	if evicted > 0 {
		s.logger.Debug("Evicted readings from memory store", "count", evicted, "remaining", s.points.len())
	}
}

// Close marks the store closed and drops its contents
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.points = newTimeline(0)
	return nil
}
