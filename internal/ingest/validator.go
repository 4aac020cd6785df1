// Package ingest validates incoming readings and moves them into the reading
// repository, either directly or through the ingest queue.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/utils"
)

var (
	ErrMissingTimestamp = errors.New("timestamp is required")
	ErrFutureTimestamp  = errors.New("timestamp is in the future")
	ErrNoMetrics        = errors.New("reading has no metric values")
	ErrOutOfRange       = errors.New("value outside physical range")
)

// Range is an inclusive bound on what a sensor can physically report
type Range struct {
	Min float64
	Max float64
}

var physicalRanges = map[models.Metric]Range{
	models.MetricAQI:         {Min: 0, Max: 500},
	models.MetricCO2:         {Min: 0, Max: 40000},
	models.MetricTemperature: {Min: -50, Max: 100},
	models.MetricHumidity:    {Min: 0, Max: 100},
	models.MetricVOCs:        {Min: 0, Max: 60000},
	models.MetricNOx:         {Min: 0, Max: 100},
}

// PhysicalRange returns the accepted range of metric m
func PhysicalRange(m models.Metric) (Range, bool) {
	r, ok := physicalRanges[m]
	return r, ok
}

// Rejection describes one reading refused by the validator
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Validator checks readings before they are stored
type Validator struct {
	maxClockSkew time.Duration
	now          func() time.Time
}

// NewValidator creates a validator accepting timestamps up to maxClockSkew
// ahead of now. A nil now uses time.Now.
func NewValidator(maxClockSkew time.Duration, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{maxClockSkew: maxClockSkew, now: now}
}

// Validate checks a single reading
func (v *Validator) Validate(r *models.Reading) error {
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if r.Timestamp.After(v.now().Add(v.maxClockSkew)) {
		return fmt.Errorf("%w: %s", ErrFutureTimestamp, r.Timestamp.Format(time.RFC3339))
	}
	if !r.HasAnyValue() {
		return ErrNoMetrics
	}

	for _, m := range models.AllMetrics {
		value, ok := r.Value(m)
		if !ok {
			continue
		}
		if !utils.IsFinite(value) {
			return fmt.Errorf("%w: %s is not finite", ErrOutOfRange, m)
		}
		if bounds, known := physicalRanges[m]; known && (value < bounds.Min || value > bounds.Max) {
			return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfRange, m, value, bounds.Min, bounds.Max)
		}
	}
	return nil
}

// Partition splits readings into valid and rejected ones. Valid readings are
// normalized to UTC and get an ID when they have none, so a batch redelivered
// by the queue is deduplicated by the store.
func (v *Validator) Partition(readings []models.Reading) ([]models.Reading, []Rejection) {
	valid := make([]models.Reading, 0, len(readings))
	var rejected []Rejection

	for i := range readings {
		r := readings[i]
		if err := v.Validate(&r); err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		r.Timestamp = r.Timestamp.UTC()
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		valid = append(valid, r)
	}
	return valid, rejected
}
