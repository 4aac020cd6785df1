package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
)

// errorCodes names the fiber statuses the API can produce outside handlers
var errorCodes = map[int]string{
	fiber.StatusBadRequest:            "BAD_REQUEST",
	fiber.StatusNotFound:              "NOT_FOUND",
	fiber.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	fiber.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	fiber.StatusUnsupportedMediaType:  "UNSUPPORTED_MEDIA_TYPE",
	fiber.StatusRequestTimeout:        "TIMEOUT",
}

// ErrorHandler returns the application error handler. Unknown errors become
// a 500 without leaking their text to the client.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}

		code, ok := errorCodes[status]
		if !ok {
			code = "INTERNAL_ERROR"
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
			"error", err,
		}
		if requestID := logging.RequestID(c.UserContext()); requestID != "" {
			fields = append(fields, "request_id", requestID)
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request error", fields...)
		} else {
			logger.Warn("Request rejected", fields...)
		}

		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    code,
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}
