package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/airqlab/airq/internal/models"
)

var startedAt = time.Now()

// Health reports liveness and data freshness. A store that cannot answer
// turns the status to "degraded" with 503 so load balancers back off.
func (h *Handler) Health(c *fiber.Ctx) error {
	resp := models.HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startedAt).Round(time.Second).String(),
		Store:     "ok",
	}

	if h.readingService != nil {
		latest, err := h.readingService.Latest(c.UserContext())
		if err != nil {
			h.logger.Warn("Health check could not reach store", "error", err)
			resp.Status = "degraded"
			resp.Store = "unavailable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		resp.LastReading = latest
	}
	return c.JSON(resp)
}

// NotFound is the catch-all for unmatched routes
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "Route not found", Path: c.Path()},
	})
}
