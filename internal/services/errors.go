// Package services holds the request-level logic between the HTTP handlers
// and the engines: window selection, repository access, response shaping and
// error classification.
package services

import (
	"errors"

	"github.com/airqlab/airq/internal/analytics"
)

// Error codes returned to clients
const (
	CodeNoData               = "NO_DATA"
	CodeRegressionDegenerate = "REGRESSION_DEGENERATE"
	CodeInvalidMetric        = "INVALID_METRIC"
	CodeInvalidPeriod        = "INVALID_PERIOD"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeWindowTooLarge       = "WINDOW_TOO_LARGE"
	CodeQueryFailed          = "QUERY_FAILED"
	CodeIngestFailed         = "INGEST_FAILED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// classifyEngineError maps engine sentinels to client errors; anything else is
// returned unchanged
func classifyEngineError(err error, details map[string]interface{}) error {
	switch {
	case errors.Is(err, analytics.ErrNoData):
		return NewServiceErrorWithDetails(CodeNoData, "No readings found in the requested window", details)
	case errors.Is(err, analytics.ErrRegressionDegenerate):
		return NewServiceErrorWithDetails(CodeRegressionDegenerate, "Readings do not span enough time to fit a trend", details)
	default:
		return err
	}
}

// queryFailed wraps a repository failure
func queryFailed(err error) *ServiceError {
	return NewServiceErrorWithDetails(CodeQueryFailed, "Failed to fetch readings", map[string]interface{}{
		"error": err.Error(),
	})
}
