package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/services"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handler contains all HTTP handlers
type Handler struct {
	logger *logging.Logger
	// Services
	statisticsService *services.StatisticsService
	forecastService   *services.ForecastService
	readingService    *services.ReadingService
}

// New creates a new handler instance
func New(logger *logging.Logger,
	statisticsService *services.StatisticsService,
	forecastService *services.ForecastService,
	readingService *services.ReadingService,
) *Handler {
	return &Handler{
		logger:            logger,
		statisticsService: statisticsService,
		forecastService:   forecastService,
		readingService:    readingService,
	}
}

// statusForCode maps service error codes to HTTP status
func statusForCode(code string) int {
	switch code {
	case services.CodeNoData:
		return fiber.StatusNotFound
	case services.CodeRegressionDegenerate,
		services.CodeInvalidMetric,
		services.CodeInvalidPeriod,
		services.CodeInvalidRequest,
		services.CodeValidationFailed:
		return fiber.StatusBadRequest
	case services.CodeWindowTooLarge:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Errors that are not
// ServiceErrors are returned to the fiber error handler.
func respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return err
	}

	return c.Status(statusForCode(svcErr.Code)).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}

// badRequest writes an INVALID_REQUEST error
func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeInvalidRequest,
			Message: message,
			Path:    c.Path(),
		},
	})
}

// splitAndTrim splits a string and trims whitespace from each part
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
