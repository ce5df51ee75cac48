package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const importedColumns = `id, user_id, chesscom_game_id, source_url, raw_payload,
	white_username, black_username, result_message, is_finished, game_end_reason,
	end_time, time_control, chesscom_uuid, imported_at`

func scanImported(row interface{ Scan(...any) error }) (*ImportedGameRecord, error) {
	var r ImportedGameRecord
	err := row.Scan(
		&r.ID, &r.UserID, &r.ChessComGameID, &r.SourceURL, &r.RawPayload,
		&r.WhiteUsername, &r.BlackUsername, &r.ResultMessage, &r.IsFinished, &r.GameEndReason,
		&r.EndTime, &r.TimeControl, &r.ChessComUUID, &r.ImportedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertImportedGame inserts or refreshes the import keyed by (user, external game id)
// inside one transaction. The unique constraint is the serialization point, so two
// concurrent imports of the same game converge on a single row. Reports whether a
// row already existed.
func (s *Store) UpsertImportedGame(ctx context.Context, record ImportedGameRecord) (*ImportedGameRecord, bool, error) {
	var existed bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID int64
		lookup := s.rebind(`SELECT id FROM imported_games WHERE user_id = ? AND chesscom_game_id = ?`)
		err := tx.QueryRowContext(ctx, lookup, record.UserID, record.ChessComGameID).Scan(&existingID)
		switch {
		case err == nil:
			existed = true
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("failed to look up imported game: %w", err)
		}

		upsert := s.rebind(`INSERT INTO imported_games (
			user_id, chesscom_game_id, source_url, raw_payload,
			white_username, black_username, result_message, is_finished, game_end_reason,
			end_time, time_control, chesscom_uuid, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, chesscom_game_id) DO UPDATE SET
			source_url = excluded.source_url,
			raw_payload = excluded.raw_payload,
			white_username = excluded.white_username,
			black_username = excluded.black_username,
			result_message = excluded.result_message,
			is_finished = excluded.is_finished,
			game_end_reason = excluded.game_end_reason,
			end_time = excluded.end_time,
			time_control = excluded.time_control,
			chesscom_uuid = excluded.chesscom_uuid,
			imported_at = excluded.imported_at
		RETURNING id`)

		return tx.QueryRowContext(ctx, upsert,
			record.UserID, record.ChessComGameID, record.SourceURL, record.RawPayload,
			record.WhiteUsername, record.BlackUsername, record.ResultMessage, record.IsFinished, record.GameEndReason,
			record.EndTime, record.TimeControl, record.ChessComUUID, record.ImportedAt,
		).Scan(&record.ID)
	})
	if err != nil {
		return nil, false, err
	}
	return &record, existed, nil
}

// GetImportedGameForOwner retrieves an import only when owned by userID
func (s *Store) GetImportedGameForOwner(ctx context.Context, id int64, userID string) (*ImportedGameRecord, error) {
	query := s.rebind(`SELECT ` + importedColumns + ` FROM imported_games WHERE id = ? AND user_id = ?`)
	r, err := scanImported(s.db.QueryRowContext(ctx, query, id, userID))
	return r, notFound(err)
}

// ListImportedGames returns the owner's imports, most recently imported first.
// An empty userID or "*" lists every owner.
func (s *Store) ListImportedGames(ctx context.Context, userID string) ([]ImportedGameRecord, error) {
	query := `SELECT ` + importedColumns + ` FROM imported_games`
	var args []any
	if userID != "" && userID != "*" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY imported_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []ImportedGameRecord
	for rows.Next() {
		r, err := scanImported(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountImportedGames counts rows for (user, external game id)
func (s *Store) CountImportedGames(ctx context.Context, userID, chessComGameID string) (int, error) {
	var n int
	query := s.rebind(`SELECT COUNT(*) FROM imported_games WHERE user_id = ? AND chesscom_game_id = ?`)
	err := s.db.QueryRowContext(ctx, query, userID, chessComGameID).Scan(&n)
	return n, err
}
