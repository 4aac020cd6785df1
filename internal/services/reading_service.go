package services

import (
	"context"
	"errors"
	"time"

	"github.com/airqlab/airq/internal/ingest"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/store"
	"github.com/airqlab/airq/internal/utils"
)

// ReadingService lists raw readings and accepts new ones
type ReadingService struct {
	logger   *logging.Logger
	source   ReadingSource
	ingestor *ingest.Ingestor
}

// NewReadingService creates a ReadingService
func NewReadingService(logger *logging.Logger, source ReadingSource, ingestor *ingest.Ingestor) *ReadingService {
	return &ReadingService{
		logger:   logger,
		source:   source,
		ingestor: ingestor,
	}
}

// ListRequest selects readings by optional time bounds
type ListRequest struct {
	Limit int
	Start *time.Time
	End   *time.Time
}

// ListResponse is a page of readings, newest first
type ListResponse struct {
	Readings []models.Reading `json:"readings"`
	Count    int              `json:"count"`
}

// List returns readings matching req. Limit defaults to
// utils.DefaultListLimit and is capped at utils.MaxListLimit.
func (s *ReadingService) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
		return nil, NewServiceError(CodeInvalidRequest, "end must not be before start")
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = utils.DefaultListLimit
	case limit > utils.MaxListLimit:
		limit = utils.MaxListLimit
	}

	readings, err := s.source.FetchReadings(ctx, store.Filter{
		Limit:         limit,
		CreatedAfter:  req.Start,
		CreatedBefore: req.End,
	})
	if err != nil {
		logging.CtxOr(ctx, s.logger).Error("Failed to list readings", "error", err)
		return nil, queryFailed(err)
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	return &ListResponse{Readings: readings, Count: len(readings)}, nil
}

// Ingest validates and stores (or enqueues) a batch
func (s *ReadingService) Ingest(ctx context.Context, readings []models.Reading) (*ingest.Result, error) {
	result, err := s.ingestor.Submit(ctx, ingest.SourceHTTP, readings)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, ingest.ErrEmptyBatch), errors.Is(err, ingest.ErrBatchTooLarge):
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	case errors.Is(err, ingest.ErrNoValidData):
		return nil, NewServiceErrorWithDetails(CodeValidationFailed, "No valid readings in batch", map[string]interface{}{
			"rejected": result.Rejected,
		})
	default:
		logging.CtxOr(ctx, s.logger).Error("Failed to ingest readings", "count", len(readings), "error", err)
		return nil, NewServiceErrorWithDetails(CodeIngestFailed, "Failed to ingest readings", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Latest returns the timestamp of the newest stored reading, or nil when the
// store is empty
func (s *ReadingService) Latest(ctx context.Context) (*time.Time, error) {
	readings, err := s.source.FetchReadings(ctx, store.Filter{Limit: 1})
	if err != nil {
		return nil, queryFailed(err)
	}
	if len(readings) == 0 {
		return nil, nil
	}
	ts := readings[0].Timestamp
	return &ts, nil
}
