package handlers

import (
	"bytes"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/airqlab/airq/internal/ingest"
	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
	"github.com/airqlab/airq/internal/services"
)

// IngestResponse reports the outcome of POST /v1/readings
type IngestResponse struct {
	*ingest.Result
	RequestID string `json:"request_id,omitempty"`
}

// IngestReadings handles batch writes. The body is either a JSON array of
// readings or {"readings": [...]}. Responds 202 when the batch was queued and
// 201 when it was stored directly.
// POST /v1/readings
func (h *Handler) IngestReadings(c *fiber.Ctx) error {
	var readings []models.Reading

	if body := bytes.TrimSpace(c.Body()); len(body) > 0 && body[0] == '[' {
		if err := c.BodyParser(&readings); err != nil {
			return h.invalidJSON(c, err)
		}
	} else {
		var req models.IngestRequest
		if err := c.BodyParser(&req); err != nil {
			return h.invalidJSON(c, err)
		}
		readings = req.Readings
	}

	result, err := h.readingService.Ingest(c.UserContext(), readings)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if result.Queued {
		status = fiber.StatusAccepted
	}

	return c.Status(status).JSON(IngestResponse{
		Result:    result,
		RequestID: logging.RequestID(c.UserContext()),
	})
}

// ListReadings returns raw readings, newest first
// GET /v1/readings?limit=&start=&end=
func (h *Handler) ListReadings(c *fiber.Ctx) error {
	var req services.ListRequest

	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return badRequest(c, "limit must be a non-negative integer")
		}
		req.Limit = limit
	}

	start, err := parseTimeParam(c, "start")
	if err != nil {
		return badRequest(c, "start must be in RFC3339 format")
	}
	req.Start = start

	end, err := parseTimeParam(c, "end")
	if err != nil {
		return badRequest(c, "end must be in RFC3339 format")
	}
	req.End = end

	result, err := h.readingService.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

func (h *Handler) invalidJSON(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "INVALID_JSON",
			Message: "Failed to parse JSON body",
			Path:    c.Path(),
			Details: map[string]interface{}{"error": err.Error()},
		},
	})
}

// parseTimeParam returns nil when the query parameter is absent
func parseTimeParam(c *fiber.Ctx, key string) (*time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
