package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chessaroo/internal/server/chesscom"
	"chessaroo/internal/server/core"
	"chessaroo/internal/server/storage"

	"go.uber.org/zap"
)

// ImportGame resolves a chess.com reference, fetches the game and upserts it
// for userID. The fetch completes before any transaction is opened; a repeat
// import of the same game by the same owner refreshes the existing row.
func (s *Service) ImportGame(ctx context.Context, userID, reference string) (*core.ImportResponse, error) {
	sourceURL := strings.TrimSpace(reference)

	gameID, err := chesscom.ExtractGameID(sourceURL)
	if err != nil {
		return nil, err
	}

	payload, err := s.fetcher.Fetch(ctx, gameID)
	if err != nil {
		var ce *core.Error
		if errors.As(err, &ce) {
			s.log.Warn("chess.com fetch failed",
				zap.String("chesscom_game_id", gameID),
				zap.String("code", ce.Code),
				zap.Error(err))
			return nil, ce
		}
		s.log.Error("chess.com fetch failed", zap.String("chesscom_game_id", gameID), zap.Error(err))
		return nil, core.Upstream(http.StatusBadGateway, core.ErrUpstreamFailure, "Failed to fetch game from Chess.com", err)
	}

	summary := chesscom.Normalize(payload.Data)
	record := storage.ImportedGameRecord{
		UserID:         userID,
		ChessComGameID: gameID,
		SourceURL:      sourceURL,
		RawPayload:     payload.Raw,
		WhiteUsername:  summary.WhiteUsername,
		BlackUsername:  summary.BlackUsername,
		ResultMessage:  summary.ResultMessage,
		IsFinished:     summary.IsFinished,
		GameEndReason:  summary.GameEndReason,
		EndTime:        summary.EndTime,
		TimeControl:    summary.TimeControl,
		ChessComUUID:   summary.UUID,
		ImportedAt:     s.now(),
	}

	saved, existed, err := s.store.UpsertImportedGame(ctx, record)
	if err != nil {
		return nil, s.persistFailure("Failed to save imported game", err,
			zap.String("user_id", userID), zap.String("chesscom_game_id", gameID))
	}

	s.log.Info("chess.com game imported",
		zap.String("user_id", userID),
		zap.String("chesscom_game_id", gameID),
		zap.Int64("imported_game_id", saved.ID),
		zap.Bool("refreshed", existed))

	return &core.ImportResponse{
		ImportedGameID: saved.ID,
		ChessComGameID: saved.ChessComGameID,
		SourceURL:      saved.SourceURL,
		PayloadSummary: core.ImportSummary{
			WhiteUsername: saved.WhiteUsername,
			BlackUsername: saved.BlackUsername,
			ResultMessage: saved.ResultMessage,
			IsFinished:    saved.IsFinished,
		},
	}, nil
}

// GetImportedGame returns one import owned by userID
func (s *Service) GetImportedGame(ctx context.Context, userID string, id int64) (*core.ImportedGameDetail, error) {
	record, err := s.store.GetImportedGameForOwner(ctx, id, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.NotFound(core.ErrNotFound, "Imported game not found")
	}
	if err != nil {
		return nil, s.persistFailure("Failed to load imported game", err, zap.Int64("imported_game_id", id))
	}
	return importedDetail(record), nil
}

// ListImportedGames returns the owner's imports, most recent first
func (s *Service) ListImportedGames(ctx context.Context, userID string) ([]core.ImportedGameDetail, error) {
	records, err := s.store.ListImportedGames(ctx, userID)
	if err != nil {
		return nil, s.persistFailure("Failed to list imported games", err, zap.String("user_id", userID))
	}
	out := make([]core.ImportedGameDetail, 0, len(records))
	for i := range records {
		out = append(out, *importedDetail(&records[i]))
	}
	return out, nil
}

func importedDetail(r *storage.ImportedGameRecord) *core.ImportedGameDetail {
	d := &core.ImportedGameDetail{
		ID:             r.ID,
		ChessComGameID: r.ChessComGameID,
		SourceURL:      r.SourceURL,
		WhiteUsername:  r.WhiteUsername,
		BlackUsername:  r.BlackUsername,
		ResultMessage:  r.ResultMessage,
		IsFinished:     r.IsFinished,
		GameEndReason:  r.GameEndReason,
		TimeControl:    r.TimeControl,
		ImportedAt:     r.ImportedAt.UTC(),
		UUID:           r.ChessComUUID,
	}
	if r.EndTime != nil {
		t := r.EndTime.UTC()
		d.EndTime = &t
	}
	return d
}
