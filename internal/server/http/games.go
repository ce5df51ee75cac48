package http

import (
	"chessaroo/internal/server/core"
	"chessaroo/internal/server/service"

	"github.com/gofiber/fiber/v2"
)

// ListGames returns the caller's newest games
func (h *HTTPHandler) ListGames(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultGameListLimit)

	games, err := h.svc.ListGames(c.UserContext(), ownerID(c), limit)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"games": games})
}

// CreateGame opens an empty game record for the caller
func (h *HTTPHandler) CreateGame(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateGameRequest](c)
	if err != nil {
		return err
	}

	game, err := h.svc.CreateGame(c.UserContext(), ownerID(c), *req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

// GetGameMoves returns a game with its ledger, current position and move text
func (h *HTTPHandler) GetGameMoves(c *fiber.Ctx) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return h.writeError(c, err)
	}

	detail, err := h.svc.GetGameWithMoves(c.UserContext(), ownerID(c), gameID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(detail)
}

// AppendMove records one ply
func (h *HTTPHandler) AppendMove(c *fiber.Ctx) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return h.writeError(c, err)
	}
	req, err := validatedBody[core.MoveRequest](c)
	if err != nil {
		return err
	}

	resp, err := h.svc.AppendMove(c.UserContext(), ownerID(c), gameID, *req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// UpdateGame edits title, opponent, result or status
func (h *HTTPHandler) UpdateGame(c *fiber.Ctx) error {
	gameID, err := gameIDParam(c)
	if err != nil {
		return h.writeError(c, err)
	}
	req, err := validatedBody[core.UpdateGameRequest](c)
	if err != nil {
		return err
	}

	game, err := h.svc.UpdateGame(c.UserContext(), ownerID(c), gameID, *req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(game)
}

// CreateSampleGame seeds the demo game for the caller
func (h *HTTPHandler) CreateSampleGame(c *fiber.Ctx) error {
	gameID, err := h.svc.CreateSampleGame(c.UserContext(), ownerID(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"gameId":  gameID,
		"message": "Sample game created successfully",
	})
}

func gameIDParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return 0, core.Validation(core.ErrInvalidRequest, "invalid game ID format")
	}
	return int64(id), nil
}
