package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// DefaultPeriod is used when the period query parameter is absent
const DefaultPeriod = "24h"

// Statistics handles statistics requests
// GET /v1/statistics?period=24h|7d|30d
func (h *Handler) Statistics(c *fiber.Ctx) error {
	period := c.Query("period", DefaultPeriod)

	result, err := h.statisticsService.Execute(c.UserContext(), period)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}
