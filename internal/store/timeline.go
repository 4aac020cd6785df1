package store

import (
	"slices"
	"time"

	"github.com/airqlab/airq/internal/models"
)

// timeline holds readings ascending by Timestamp. Sensors report in order,
// so insert is an append in the common case. Not safe for concurrent use;
// MemoryStore guards it.
type timeline struct {
	rs []models.Reading
}

func newTimeline(capacity int) *timeline {
	return &timeline{rs: make([]models.Reading, 0, capacity)}
}

// lowerBound is the index of the first reading at or after ts
func (t *timeline) lowerBound(ts time.Time) int {
	i, _ := slices.BinarySearchFunc(t.rs, ts, func(r models.Reading, ts time.Time) int {
		return r.Timestamp.Compare(ts)
	})
	// BinarySearchFunc may land on any equal element; walk back to the first
	for i > 0 && t.rs[i-1].Timestamp.Equal(ts) {
		i--
	}
	return i
}

// upperBound is the index of the first reading strictly after ts
func (t *timeline) upperBound(ts time.Time) int {
	i := t.lowerBound(ts)
	for i < len(t.rs) && t.rs[i].Timestamp.Equal(ts) {
		i++
	}
	return i
}

// insert adds r, replacing a reading with the same timestamp and ID.
// Reports whether r was new.
func (t *timeline) insert(r models.Reading) bool {
	n := len(t.rs)
	if n == 0 || r.Timestamp.After(t.rs[n-1].Timestamp) {
		t.rs = append(t.rs, r)
		return true
	}

	i := t.lowerBound(r.Timestamp)
	for j := i; j < n && t.rs[j].Timestamp.Equal(r.Timestamp); j++ {
		if t.rs[j].ID == r.ID {
			t.rs[j] = r
			return false
		}
	}
	t.rs = slices.Insert(t.rs, i, r)
	return true
}

// newestFirst copies up to limit readings in [start, end], newest first.
// Zero bounds are open; limit <= 0 means all.
func (t *timeline) newestFirst(start, end time.Time, limit int) []models.Reading {
	lo, hi := 0, len(t.rs)
	if !start.IsZero() {
		lo = t.lowerBound(start)
	}
	if !end.IsZero() {
		hi = t.upperBound(end)
	}
	if lo >= hi {
		return nil
	}

	n := hi - lo
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Reading, 0, n)
	for i := hi - 1; len(out) < n; i-- {
		out = append(out, cloneReading(t.rs[i]))
	}
	return out
}

func (t *timeline) len() int { return len(t.rs) }

// newest returns the latest timestamp held
func (t *timeline) newest() (time.Time, bool) {
	if len(t.rs) == 0 {
		return time.Time{}, false
	}
	return t.rs[len(t.rs)-1].Timestamp, true
}

// dropBefore evicts readings older than cutoff
func (t *timeline) dropBefore(cutoff time.Time) int {
	return t.dropOldest(t.lowerBound(cutoff))
}

// dropOldest evicts up to n of the oldest readings
func (t *timeline) dropOldest(n int) int {
	n = min(max(n, 0), len(t.rs))
	clear(t.rs[:n])
	t.rs = t.rs[n:]
	return n
}
