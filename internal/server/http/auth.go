package http

import (
	"time"

	"chessaroo/internal/server/core"

	"github.com/gofiber/fiber/v2"
)

// AuthResponse contains the session token and user information
type AuthResponse struct {
	Message   string         `json:"message"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *core.UserInfo `json:"user"`
}

// RegisterHandler creates a new account and signs it in
func (h *HTTPHandler) RegisterHandler(c *fiber.Ctx) error {
	var req core.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return h.writeError(c, err)
	}

	user, err := h.svc.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return h.writeError(c, err)
	}

	resp, err := h.startSession(c, user, "User registered successfully")
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// LoginHandler authenticates by username or email and opens a session
func (h *HTTPHandler) LoginHandler(c *fiber.Ctx) error {
	var req core.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return h.writeError(c, err)
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}

	user, err := h.svc.Authenticate(c.UserContext(), identifier, req.Password)
	if err != nil {
		// Same error whether or not the user exists
		return h.writeError(c, err)
	}

	resp, err := h.startSession(c, user, "Login successful")
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(resp)
}

// LogoutHandler ends the current session, if any, and clears the cookie
func (h *HTTPHandler) LogoutHandler(c *fiber.Ctx) error {
	if token := sessionToken(c, h.opts.SessionCookieName); token != "" {
		if err := h.svc.EndSession(c.UserContext(), token); err != nil {
			return h.writeError(c, err)
		}
	}
	c.ClearCookie(h.opts.SessionCookieName)
	return c.JSON(fiber.Map{"message": "Logout successful"})
}

// GetCurrentUserHandler returns the signed-in user
func (h *HTTPHandler) GetCurrentUserHandler(c *fiber.Ctx) error {
	userID := ownerID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
			Error: "Not authenticated",
			Code:  core.ErrUnauthorized,
		})
	}

	user, err := h.svc.GetUser(c.UserContext(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"user": user, "authenticated": true})
}

// UpdateProfileHandler changes username and email
func (h *HTTPHandler) UpdateProfileHandler(c *fiber.Ctx) error {
	var req core.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return h.writeError(c, err)
	}

	user, err := h.svc.UpdateProfile(c.UserContext(), ownerID(c), req.Username, req.Email)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Profile updated successfully", "user": user})
}

// ChangePasswordHandler replaces the caller's password
func (h *HTTPHandler) ChangePasswordHandler(c *fiber.Ctx) error {
	var req core.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return h.writeError(c, err)
	}

	userID := ownerID(c)
	if err := h.svc.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return h.writeError(c, err)
	}

	// All sessions were revoked; keep the caller signed in
	user, err := h.svc.GetUser(c.UserContext(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	resp, err := h.startSession(c, user, "Password changed successfully")
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(resp)
}

func (h *HTTPHandler) startSession(c *fiber.Ctx, user *core.UserInfo, message string) (*AuthResponse, error) {
	token, err := h.svc.StartSession(c.UserContext(), user)
	if err != nil {
		return nil, err
	}

	ttl := h.svc.SessionTTL()
	expiresAt := time.Now().UTC().Add(ttl)
	c.Cookie(&fiber.Cookie{
		Name:     h.opts.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(ttl.Seconds()),
		HTTPOnly: true,
		Secure:   h.opts.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return &AuthResponse{
		Message:   message,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// parseBody decodes an optional JSON body; an empty body leaves dst zeroed
func parseBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		invalid := core.Validation(core.ErrInvalidRequest, "invalid request body")
		invalid.Err = err
		return invalid
	}
	return nil
}
