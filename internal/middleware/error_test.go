package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airqlab/airq/internal/logging"
	"github.com/airqlab/airq/internal/models"
)

func errorApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.NewNop())})
	app.Use(recover.New())
	return app
}

func readError(t *testing.T, body io.Reader) models.ErrorDetail {
	t.Helper()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	return errResp.Error
}

func TestErrorHandler_FiberError(t *testing.T) {
	tests := []struct {
		name     string
		err      *fiber.Error
		wantCode string
	}{
		{"bad request", fiber.NewError(fiber.StatusBadRequest, "bad input"), "BAD_REQUEST"},
		{"not found", fiber.ErrNotFound, "NOT_FOUND"},
		{"method not allowed", fiber.ErrMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"payload too large", fiber.ErrRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"service unavailable", fiber.ErrServiceUnavailable, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := errorApp()
			app.Get("/v1/readings", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/v1/readings", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.err.Code, resp.StatusCode)

			detail := readError(t, resp.Body)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.err.Message, detail.Message)
			assert.Equal(t, "/v1/readings", detail.Path)
		})
	}
}

func TestErrorHandler_GenericError(t *testing.T) {
	app := errorApp()
	app.Get("/v1/statistics", func(c *fiber.Ctx) error {
		return errors.New("dial tcp 10.0.0.5:5432: connection refused")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/statistics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	detail := readError(t, resp.Body)
	assert.Equal(t, "INTERNAL_ERROR", detail.Code)
	assert.Equal(t, "Internal Server Error", detail.Message)
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	app := errorApp()
	app.Get("/v1/forecast/:metric", func(c *fiber.Ctx) error {
		panic("index out of range")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/forecast/co2", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", readError(t, resp.Body).Code)
}
