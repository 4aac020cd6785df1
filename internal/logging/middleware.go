package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in and out of the API
const RequestIDHeader = "X-Request-ID"

// AccessLog tags every request with an X-Request-ID (reusing the caller's
// when given) and puts a request-scoped logger on the user context.
// Requests to skipPaths still get an ID but no access log line.
func AccessLog(logger *Logger, skipPaths ...string) fiber.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.SetUserContext(WithRequestID(WithLogger(c.UserContext(), logger), id))

		err := c.Next()
		if skip[c.Path()] {
			return err
		}

		status := c.Response().StatusCode()
		elapsed := time.Since(start)
		kv := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"route", c.Route().Path,
			"status", status,
			"ip", c.IP(),
			"duration_ms", elapsed.Milliseconds(),
		}

		log := Ctx(c.UserContext())
		switch {
		case err != nil:
			log.Error("Request failed", append(kv, "error", err)...)
		case status >= fiber.StatusInternalServerError:
			log.Error("Server error", kv...)
		case status >= fiber.StatusBadRequest:
			log.Warn("Client error", kv...)
		default:
			log.Info("Request completed", kv...)
		}
		return err
	}
}
