package service

import (
	"context"
	"errors"
	"strings"

	"chessaroo/internal/server/core"
	"chessaroo/internal/server/ledger"
	"chessaroo/internal/server/seed"
	"chessaroo/internal/server/storage"

	"github.com/corentings/chess/v2"
	"go.uber.org/zap"
)

const DefaultGameTitle = "Untitled Game"

var errGameNotFound = core.NotFound(core.ErrGameNotFound, "Game not found")

// CreateGame inserts a new game owned by userID. Titles need not be unique.
func (s *Service) CreateGame(ctx context.Context, userID string, req core.CreateGameRequest) (*core.GameSummary, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultGameTitle
	}

	if req.UserColor != "" && !core.Color(req.UserColor).Valid() {
		return nil, core.Validation(core.ErrInvalidRequest, "userColor must be w or b")
	}

	startingFEN := strings.TrimSpace(req.StartingFEN)
	if startingFEN == "" {
		startingFEN = core.StartingFEN
	}
	if err := validateFEN(startingFEN); err != nil {
		return nil, err
	}

	now := s.now()
	record := storage.GameRecord{
		UserID:       userID,
		UserColor:    optional(req.UserColor),
		Title:        title,
		OpponentName: optional(strings.TrimSpace(req.OpponentName)),
		Result:       string(core.ResultUnknown),
		Status:       string(core.StatusActive),
		StartingFEN:  &startingFEN,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.store.CreateGame(ctx, record)
	if err != nil {
		return nil, s.persistFailure("Failed to create game", err, zap.String("user_id", userID))
	}
	return gameSummary(created, 0), nil
}

// ListGames returns the owner's newest games with live move counts
func (s *Service) ListGames(ctx context.Context, userID string, limit int) ([]core.GameSummary, error) {
	if limit <= 0 {
		limit = DefaultGameListLimit
	}
	if limit > MaxGameListLimit {
		limit = MaxGameListLimit
	}

	listings, err := s.store.ListGames(ctx, userID, limit)
	if err != nil {
		return nil, s.persistFailure("Failed to list games", err, zap.String("user_id", userID))
	}

	games := make([]core.GameSummary, 0, len(listings))
	for i := range listings {
		games = append(games, *gameSummary(&listings[i].GameRecord, listings[i].MoveCount))
	}
	return games, nil
}

// GetGameWithMoves returns a game and its full ledger. A game owned by someone
// else is reported exactly like a missing one.
func (s *Service) GetGameWithMoves(ctx context.Context, userID string, gameID int64) (*core.GameDetail, error) {
	game, err := s.ownedGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}

	moves, err := s.store.ListMoves(ctx, gameID)
	if err != nil {
		return nil, s.persistFailure("Failed to load moves", err, zap.Int64("game_id", gameID))
	}
	ledger.Sort(moves)

	detail := &core.GameDetail{
		GameID:       game.ID,
		Title:        game.Title,
		UserColor:    game.UserColor,
		OpponentName: game.OpponentName,
		Status:       game.Status,
		Result:       game.Result,
		CurrentFEN:   ledger.CurrentFEN(game.StartingFEN, moves),
		PGN:          ledger.PGNText(moves),
		Moves:        make([]core.MoveInfo, 0, len(moves)),
	}
	if game.StartingFEN != nil {
		detail.StartingFEN = *game.StartingFEN
	}
	for _, m := range moves {
		detail.Moves = append(detail.Moves, moveInfo(m))
	}
	return detail, nil
}

// CurrentFEN returns the position after the last recorded ply of an owned game
func (s *Service) CurrentFEN(ctx context.Context, userID string, gameID int64) (string, error) {
	game, err := s.ownedGame(ctx, userID, gameID)
	if err != nil {
		return "", err
	}

	last, err := s.store.LastMove(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return ledger.CurrentFEN(game.StartingFEN, nil), nil
	}
	if err != nil {
		return "", s.persistFailure("Failed to load moves", err, zap.Int64("game_id", gameID))
	}
	return last.FEN, nil
}

// AppendMove records one ply. Legality is not checked, only the FEN syntax.
// A repeated (move number, color) is a conflict and writes nothing.
func (s *Service) AppendMove(ctx context.Context, userID string, gameID int64, req core.MoveRequest) (*core.AppendMoveResponse, error) {
	color := core.Color(req.Color)
	if req.MoveNumber < 1 || !color.Valid() {
		return nil, core.Validation(core.ErrInvalidRequest, "moveNumber must be >= 1 and color must be w or b")
	}
	algebraic := strings.TrimSpace(req.Algebraic)
	if algebraic == "" {
		return nil, core.Validation(core.ErrInvalidRequest, "algebraic notation is required")
	}
	fen := strings.TrimSpace(req.FEN)
	if err := validateFEN(fen); err != nil {
		return nil, err
	}

	if _, err := s.ownedGame(ctx, userID, gameID); err != nil {
		return nil, err
	}

	record := storage.MoveRecord{
		GameID:     gameID,
		MoveNumber: req.MoveNumber,
		Color:      string(color),
		Algebraic:  algebraic,
		FEN:        fen,
		CreatedAt:  s.now(),
	}
	created, err := s.store.AppendMove(ctx, record)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, core.Conflict(core.ErrDuplicatePly, "A move for this move number and color already exists")
	}
	if err != nil {
		return nil, s.persistFailure("Failed to save move", err, zap.Int64("game_id", gameID))
	}

	current, err := s.CurrentFEN(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	return &core.AppendMoveResponse{Move: moveInfo(*created), CurrentFEN: current}, nil
}

// UpdateGame edits metadata. Result and status are checked against their own
// sets only; any combination of the two is accepted.
func (s *Service) UpdateGame(ctx context.Context, userID string, gameID int64, req core.UpdateGameRequest) (*core.GameSummary, error) {
	game, err := s.ownedGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, core.Validation(core.ErrInvalidRequest, "Title cannot be empty")
		}
		game.Title = title
	}
	if req.OpponentName != nil {
		game.OpponentName = optional(strings.TrimSpace(*req.OpponentName))
	}
	if req.Result != nil {
		if !core.Result(*req.Result).Valid() {
			return nil, core.Validation(core.ErrInvalidRequest, "Invalid result")
		}
		game.Result = *req.Result
	}
	if req.Status != nil {
		if !core.Status(*req.Status).Valid() {
			return nil, core.Validation(core.ErrInvalidRequest, "Invalid status")
		}
		game.Status = *req.Status
	}
	game.UpdatedAt = s.now()

	if err := s.store.UpdateGameMeta(ctx, *game); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errGameNotFound
		}
		return nil, s.persistFailure("Failed to update game", err, zap.Int64("game_id", gameID))
	}

	count, err := s.store.CountMoves(ctx, gameID)
	if err != nil {
		return nil, s.persistFailure("Failed to update game", err, zap.Int64("game_id", gameID))
	}
	return gameSummary(game, count), nil
}

// CreateSampleGame seeds the demo game for userID and returns its ID
func (s *Service) CreateSampleGame(ctx context.Context, userID string) (int64, error) {
	sample, err := seed.Sample()
	if err != nil {
		return 0, s.persistFailure("Failed to create sample game", err)
	}

	now := s.now()
	startingFEN := sample.StartingFEN
	record := storage.GameRecord{
		UserID:       userID,
		UserColor:    optional(sample.UserColor),
		Title:        sample.Title,
		OpponentName: optional(sample.Opponent),
		Result:       sample.Result,
		Status:       sample.Status,
		StartingFEN:  &startingFEN,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	moves := make([]storage.MoveRecord, 0, len(sample.Moves))
	for _, m := range sample.Moves {
		moves = append(moves, storage.MoveRecord{
			MoveNumber: m.Number,
			Color:      m.Color,
			Algebraic:  m.SAN,
			FEN:        m.FEN,
			CreatedAt:  now,
		})
	}

	game, err := s.store.SeedGame(ctx, record, moves, sample.NumberedTitle)
	if err != nil {
		return 0, s.persistFailure("Failed to create sample game", err, zap.String("user_id", userID))
	}
	return game.ID, nil
}

func (s *Service) ownedGame(ctx context.Context, userID string, gameID int64) (*storage.GameRecord, error) {
	game, err := s.store.GetGameForOwner(ctx, gameID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errGameNotFound
	}
	if err != nil {
		return nil, s.persistFailure("Failed to load game", err, zap.Int64("game_id", gameID))
	}
	return game, nil
}

func validateFEN(fen string) error {
	if fen == "" {
		return core.Validation(core.ErrInvalidFEN, "FEN is required")
	}
	if _, err := chess.FEN(fen); err != nil {
		invalid := core.Validation(core.ErrInvalidFEN, "Invalid FEN")
		invalid.Err = err
		return invalid
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func gameSummary(g *storage.GameRecord, moveCount int) *core.GameSummary {
	return &core.GameSummary{
		ID:           g.ID,
		Title:        g.Title,
		UserColor:    g.UserColor,
		OpponentName: g.OpponentName,
		Status:       g.Status,
		Result:       g.Result,
		CreatedAt:    g.CreatedAt,
		MoveCount:    moveCount,
	}
}

func moveInfo(m storage.MoveRecord) core.MoveInfo {
	return core.MoveInfo{
		MoveNumber: m.MoveNumber,
		Color:      m.Color,
		Algebraic:  m.Algebraic,
		FEN:        m.FEN,
	}
}
