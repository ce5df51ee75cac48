package http

import (
	"context"
	"strings"

	"chessaroo/internal/server/core"

	"github.com/gofiber/fiber/v2"
)

const localUserID = "userID"

// SessionResolver maps a session token to the owning user ID
type SessionResolver func(ctx context.Context, token string) (userID string, err error)

// SessionRequired resolves the owner once and short-circuits anonymous requests
func SessionRequired(resolve SessionResolver, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c, cookieName)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "Authentication required",
				Code:  core.ErrUnauthorized,
			})
		}

		userID, err := resolve(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "Authentication required",
				Code:  core.ErrUnauthorized,
			})
		}

		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// OptionalSession resolves the owner if a valid session is present but allows anonymous access
func OptionalSession(resolve SessionResolver, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c, cookieName)
		if token == "" {
			return c.Next()
		}

		if userID, err := resolve(c.UserContext(), token); err == nil {
			c.Locals(localUserID, userID)
		}
		return c.Next()
	}
}

// AdminRequired guards routes behind the admin cookie
func AdminRequired(authenticated func(c *fiber.Ctx) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !authenticated(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error: "Admin authentication required",
				Code:  core.ErrUnauthorized,
			})
		}
		return c.Next()
	}
}

// sessionToken prefers the Authorization header over the session cookie
func sessionToken(c *fiber.Ctx, cookieName string) string {
	if token := extractBearerToken(c.Get("Authorization")); token != "" {
		return token
	}
	return c.Cookies(cookieName)
}

// extractBearerToken extracts the token from an Authorization header
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
