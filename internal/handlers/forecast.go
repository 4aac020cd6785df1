package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/airqlab/airq/internal/services"
)

// Forecast handles single-metric forecast requests
// GET /v1/forecast/:metric
func (h *Handler) Forecast(c *fiber.Ctx) error {
	result, err := h.forecastService.Execute(c.UserContext(), c.Params("metric"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

// ForecastMany handles multi-metric forecast requests. Without a metrics
// parameter every forecastable metric is computed.
// GET /v1/forecast?metrics=co2,temperature
func (h *Handler) ForecastMany(c *fiber.Ctx) error {
	names := splitAndTrim(c.Query("metrics"), ",")
	if len(names) == 0 {
		for _, m := range services.ForecastMetrics() {
			names = append(names, string(m))
		}
	}

	results, err := h.forecastService.ExecuteMany(c.UserContext(), names)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(results)
}
