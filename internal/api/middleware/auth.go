package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facegate/internal/auth"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

const (
	// LocalUsername is the key to retrieve the logged in username from context
	LocalUsername = "username"
	// LocalLoginMethod is the key to retrieve how the user logged in
	LocalLoginMethod = "login_method"
)

// TokenValidator validates session tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Auth requires a valid session token in the Authorization header.
func Auth(tokens TokenValidator, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return domain.ErrUnauthorized
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			logger.Debug("session token rejected", "error", err)
			return domain.ErrUnauthorized
		}

		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalLoginMethod, claims.Method)

		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// GetUsername retrieves the authenticated username from Fiber context
func GetUsername(c *fiber.Ctx) (string, error) {
	username, ok := c.Locals(LocalUsername).(string)
	if !ok || username == "" {
		return "", domain.ErrUnauthorized
	}
	return username, nil
}

// GetLoginMethod retrieves the login method from Fiber context
func GetLoginMethod(c *fiber.Ctx) auth.Method {
	method, _ := c.Locals(LocalLoginMethod).(auth.Method)
	return method
}
