package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger logs one line per request. Successful frame uploads and probes
// arrive at camera or scrape rate and are logged at debug.
func Logger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logLevel := slog.LevelInfo
		switch {
		case status >= 500:
			logLevel = slog.LevelError
		case status >= 400:
			logLevel = slog.LevelWarn
		case isChatty(c.Path()):
			logLevel = slog.LevelDebug
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.String("ip", c.IP()),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if sessionID := c.Params("id"); sessionID != "" {
			attrs = append(attrs, slog.String("session_id", sessionID))
		}

		logger.LogAttrs(c.Context(), logLevel, "http request", attrs...)

		return err
	}
}

func isChatty(path string) bool {
	return strings.HasSuffix(path, "/frames") || path == "/health" || path == "/ready"
}
