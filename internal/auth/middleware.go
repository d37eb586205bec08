package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"rulegate/internal/engine"
	"rulegate/internal/metadata"
)

const userLocalsKey = "user"

// Middleware validates the Authorization header and stores the user in the
// request context.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("missing authorization header")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("malformed authorization header")
		}

		user, err := ParseToken(secret, parts[1])
		if err != nil {
			return engine.UnauthorizedError("invalid or expired token")
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// RequireAdmin rejects requests from non-admin users. Must run after Middleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil || !user.IsAdmin() {
			return engine.ForbiddenError("admin role required")
		}
		return c.Next()
	}
}

// GetUser returns the authenticated user, or nil outside the middleware.
func GetUser(c *fiber.Ctx) *metadata.UserContext {
	if user, ok := c.Locals(userLocalsKey).(*metadata.UserContext); ok {
		return user
	}
	return nil
}
