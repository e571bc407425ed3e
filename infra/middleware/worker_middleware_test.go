package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
)

const testSecret = "test-secret"

func newTestApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID(), Recover())
	for _, h := range handlers {
		app.Use(h)
	}
	return app
}

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	app := newTestApp()
	app.Get("/boom", func(c *fiber.Ctx) error { return apperr.SyncInProgress() })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("db password leaked") })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("oops") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
	body := decodeError(t, resp.Body)
	assert.False(t, body.Success)
	assert.Equal(t, apperr.CodeSyncInProgress, body.Error.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.NotEmpty(t, body.Timestamp)

	resp, err = app.Test(httptest.NewRequest("GET", "/fiber", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, apperr.CodeNotFound, decodeError(t, resp.Body).Error.Code)

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.NotContains(t, decodeError(t, resp.Body).Error.Message, "password")

	resp, err = app.Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestRequestIDPropagates(t *testing.T) {
	app := newTestApp()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(c.Locals("request_id").(string)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get("X-Request-ID"))
}

func TestAuthenticator(t *testing.T) {
	userID := uuid.New()
	auth := NewAuthenticator(AuthConfig{Secret: testSecret})
	app := newTestApp(auth.Handler())
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(uuid.UUID).String())
	})

	valid := signToken(t, jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()})
	noExp := signToken(t, jwt.MapClaims{"sub": userID.String()})
	badSub := signToken(t, jwt.MapClaims{"sub": "not-a-uuid", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"header", "Bearer " + valid, "", 200},
		{"query token", "", "?token=" + valid, 200},
		{"missing", "", "", 401},
		{"expired", "Bearer " + expired, "", 401},
		{"no exp", "Bearer " + noExp, "", 401},
		{"bad subject", "Bearer " + badSub, "", 401},
		{"garbage", "Bearer nope", "", 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == 200 {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, userID.String(), string(b))
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, remaining, _ := rl.Allow("k")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, _, _ = rl.Allow("k")
	assert.True(t, ok)
	ok, _, _ = rl.Allow("k")
	assert.False(t, ok)

	ok, _, _ = rl.Allow("other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(2 * time.Minute)
	ok, _, _ = rl.Allow("k")
	assert.True(t, ok, "window resets")
}

func TestRateLimiterHandler(t *testing.T) {
	app := newTestApp(NewRateLimiter(1, time.Minute).Handler())
	app.Post("/sync", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	resp, err := app.Test(httptest.NewRequest("POST", "/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, apperr.CodeRateLimited, decodeError(t, resp.Body).Error.Code)
}
