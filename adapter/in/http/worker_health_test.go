package http

import (
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_NoBackends(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(nil, nil, nil).Register(app)

	tests := []struct {
		path   string
		status string
	}{
		{"/health", "ok"},
		{"/ready", "ready"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Status)
			for name, state := range body.Checks {
				assert.Equal(t, "not configured", state, name)
			}
		})
	}
}
