package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func rateLimitedApp(rl *RateLimiter, paths ...string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(429).JSON(fiber.Map{"error": "rate limit"})
		},
	})
	app.Use(rl.Handler())
	for _, p := range paths {
		app.Get(p, func(c *fiber.Ctx) error {
			return c.SendString("OK")
		})
	}
	return app
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			Max:          5,
			Window:       time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string { return "10.0.0.1" },
		})
		defer rl.Stop()

		app := rateLimitedApp(rl, "/test")

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, "OK", string(body))
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			Max:          2,
			Window:       time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string { return "10.0.0.1" },
		})
		defer rl.Stop()

		app := rateLimitedApp(rl, "/test")

		// First 2 should succeed
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			resp, _ := app.Test(req)
			assert.Equal(t, 200, resp.StatusCode)
		}

		// Third should be rate limited
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, 429, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("different clients have separate limits", func(t *testing.T) {
		var currentClient string

		rl := NewRateLimiter(RateLimiterConfig{
			Max:          2,
			Window:       time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string { return currentClient },
		})
		defer rl.Stop()

		app := rateLimitedApp(rl, "/test")

		// Client A uses 2 requests
		currentClient = "10.0.0.1"
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			resp, _ := app.Test(req)
			assert.Equal(t, 200, resp.StatusCode)
		}

		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, 429, resp.StatusCode)

		// Client B can still make requests
		currentClient = "10.0.0.2"
		req = httptest.NewRequest("GET", "/test", nil)
		resp, _ = app.Test(req)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("rate limit headers are set", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 10, Window: time.Minute})
		defer rl.Stop()

		app := rateLimitedApp(rl, "/test")

		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", resp.Header.Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	})

	t.Run("skipped requests are not counted", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			Max:    1,
			Window: time.Minute,
			Skip: func(c *fiber.Ctx) bool {
				return strings.HasSuffix(c.Path(), "/frames")
			},
		})
		defer rl.Stop()

		app := rateLimitedApp(rl, "/s/frames", "/test")

		for i := 0; i < 10; i++ {
			req := httptest.NewRequest("GET", "/s/frames", nil)
			resp, _ := app.Test(req)
			assert.Equal(t, 200, resp.StatusCode)
		}

		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, 200, resp.StatusCode)
	})
}

func TestRateLimiter_PerEndpoint(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Max:          100,
		Window:       time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return "10.0.0.1" },
		PerEndpoint: map[string]EndpointRateLimit{
			"/v1/login": {Requests: 2, Window: time.Minute},
		},
	})
	defer rl.Stop()

	app := rateLimitedApp(rl, "/v1/login", "/v1/users")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/v1/login", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest("GET", "/v1/login", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, 429, resp.StatusCode)

	// the default bucket is untouched by login attempts
	req = httptest.NewRequest("GET", "/v1/users", nil)
	resp, _ = app.Test(req)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	config := DefaultRateLimiterConfig()

	assert.Equal(t, 120, config.Max)
	assert.Equal(t, time.Minute, config.Window)
	assert.NotNil(t, config.KeyGenerator)
}

func TestLoginRateLimits(t *testing.T) {
	limits := LoginRateLimits()

	assert.Equal(t, 10, limits["/v1/login"].Requests)
	assert.Equal(t, time.Minute, limits["/v1/login"].Window)
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Max: 10, Window: time.Second})

	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}
