package http

import (
	"crypto/subtle"
	"strings"
	"time"

	"chessaroo/internal/server/core"

	"github.com/gofiber/fiber/v2"
	"github.com/lixenwraith/auth"
	"go.uber.org/zap"
)

const (
	adminSubject = "admin"
	adminScope   = "admin"
)

// AdminLogin checks the master password and sets the admin cookie
func (h *HTTPHandler) AdminLogin(c *fiber.Ctx) error {
	var req core.AdminLoginRequest
	if err := parseBody(c, &req); err != nil {
		return h.writeError(c, err)
	}
	password := strings.TrimSpace(req.Password)

	master := h.opts.AdminPassword
	if master == "" {
		h.log.Error("admin login attempted without configured master password")
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "Admin master password is not configured",
			Code:  core.ErrAdminNotConfigured,
		})
	}
	if password == "" {
		return h.writeError(c, core.Validation(core.ErrInvalidRequest, "Password is required"))
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(master)) != 1 {
		return h.writeError(c, core.Unauthorized("Invalid master password"))
	}

	token, err := auth.GenerateHS256Token(h.opts.Secret, adminSubject,
		map[string]any{"scope": adminScope, "ts": time.Now().UTC().Format(time.RFC3339)}, h.opts.AdminTTL)
	if err != nil {
		h.log.Error("failed to sign admin token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(core.ErrorResponse{
			Error: "internal server error",
			Code:  core.ErrInternalError,
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.opts.AdminCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.opts.AdminTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.opts.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"message": "Admin authentication successful"})
}

func (h *HTTPHandler) AdminLogout(c *fiber.Ctx) error {
	c.ClearCookie(h.opts.AdminCookieName)
	return c.JSON(fiber.Map{"message": "Admin logged out"})
}

func (h *HTTPHandler) AdminStatus(c *fiber.Ctx) error {
	if h.opts.AdminPassword == "" {
		return c.JSON(fiber.Map{"configured": false, "authenticated": false})
	}
	return c.JSON(fiber.Map{"configured": true, "authenticated": h.adminAuthenticated(c)})
}

// AdminUsers lists every account without credential material
func (h *HTTPHandler) AdminUsers(c *fiber.Ctx) error {
	users, err := h.svc.ListUsers(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

func (h *HTTPHandler) adminAuthenticated(c *fiber.Ctx) bool {
	if h.opts.AdminPassword == "" {
		return false
	}
	token := c.Cookies(h.opts.AdminCookieName)
	if token == "" {
		return false
	}
	subject, claims, err := auth.ValidateHS256Token(h.opts.Secret, token)
	if err != nil || subject != adminSubject {
		return false
	}
	scope, _ := claims["scope"].(string)
	return scope == adminScope
}
