package http

import (
	"strings"

	"chessaroo/internal/server/core"

	"github.com/gofiber/fiber/v2"
)

// ImportGame pulls a chess.com game into the caller's imports
func (h *HTTPHandler) ImportGame(c *fiber.Ctx) error {
	var req core.ImportRequest
	if err := parseBody(c, &req); err != nil {
		return h.writeError(c, err)
	}

	reference := strings.TrimSpace(req.URL)
	if reference == "" {
		reference = strings.TrimSpace(req.GameURL)
	}

	resp, err := h.svc.ImportGame(c.UserContext(), ownerID(c), reference)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListImportedGames returns the caller's imports, newest first
func (h *HTTPHandler) ListImportedGames(c *fiber.Ctx) error {
	games, err := h.svc.ListImportedGames(c.UserContext(), ownerID(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"importedGames": games})
}

// GetImportedGame returns one of the caller's imports
func (h *HTTPHandler) GetImportedGame(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return h.writeError(c, core.Validation(core.ErrInvalidRequest, "invalid imported game ID format"))
	}

	detail, err := h.svc.GetImportedGame(c.UserContext(), ownerID(c), int64(id))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(detail)
}
