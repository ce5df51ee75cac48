package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const gameColumns = `id, user_id, user_color, title, opponent_name, result, status, starting_fen, created_at, updated_at`

// Ledger order: move number, then white before black
const (
	plyOrderAsc  = `move_number ASC, CASE color WHEN 'b' THEN 1 ELSE 0 END ASC`
	plyOrderDesc = `move_number DESC, CASE color WHEN 'b' THEN 1 ELSE 0 END DESC`
)

func scanGame(row interface{ Scan(...any) error }, extra ...any) (*GameRecord, error) {
	var g GameRecord
	dest := []any{
		&g.ID, &g.UserID, &g.UserColor, &g.Title, &g.OpponentName,
		&g.Result, &g.Status, &g.StartingFEN, &g.CreatedAt, &g.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) insertGame(ctx context.Context, q querier, record GameRecord) (int64, error) {
	query := s.rebind(`INSERT INTO games (
		user_id, user_color, title, opponent_name, result, status, starting_fen, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := q.QueryRowContext(ctx, query,
		record.UserID, record.UserColor, record.Title, record.OpponentName,
		record.Result, record.Status, record.StartingFEN, record.CreatedAt, record.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert game: %w", err)
	}
	return id, nil
}

func (s *Store) insertMove(ctx context.Context, q querier, record MoveRecord) (int64, error) {
	query := s.rebind(`INSERT INTO moves (
		game_id, move_number, color, algebraic_notation, fen, created_at
	) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := q.QueryRowContext(ctx, query,
		record.GameID, record.MoveNumber, record.Color, record.Algebraic, record.FEN, record.CreatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("failed to insert move: %w", err)
	}
	return id, nil
}

// CreateGame inserts a game and returns it with its assigned ID
func (s *Store) CreateGame(ctx context.Context, record GameRecord) (*GameRecord, error) {
	id, err := s.insertGame(ctx, s.db, record)
	if err != nil {
		return nil, err
	}
	record.ID = id
	return &record, nil
}

// SeedGame inserts a game with its full move list atomically. If retitle is
// non-nil the title is rewritten once the ID is known.
func (s *Store) SeedGame(ctx context.Context, record GameRecord, moves []MoveRecord, retitle func(id int64) string) (*GameRecord, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertGame(ctx, tx, record)
		if err != nil {
			return err
		}
		record.ID = id

		if retitle != nil {
			record.Title = retitle(id)
			query := s.rebind(`UPDATE games SET title = ? WHERE id = ?`)
			if _, err := tx.ExecContext(ctx, query, record.Title, id); err != nil {
				return fmt.Errorf("failed to retitle game: %w", err)
			}
		}

		for _, m := range moves {
			m.GameID = id
			if _, err := s.insertMove(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetGameForOwner retrieves a game only when owned by userID; any mismatch is ErrNotFound
func (s *Store) GetGameForOwner(ctx context.Context, gameID int64, userID string) (*GameRecord, error) {
	query := s.rebind(`SELECT ` + gameColumns + ` FROM games WHERE id = ? AND user_id = ?`)
	g, err := scanGame(s.db.QueryRowContext(ctx, query, gameID, userID))
	return g, notFound(err)
}

// ListGames returns the owner's newest games with move counts computed at read time
func (s *Store) ListGames(ctx context.Context, userID string, limit int) ([]GameListing, error) {
	query := s.rebind(`SELECT ` + gameColumns + `,
		(SELECT COUNT(*) FROM moves m WHERE m.game_id = games.id) AS move_count
	FROM games WHERE user_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var games []GameListing
	for rows.Next() {
		var count int
		g, err := scanGame(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		games = append(games, GameListing{GameRecord: *g, MoveCount: count})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return games, nil
}

// QueryGames retrieves games across owners, optionally filtered by user ID ("" or "*" for all)
func (s *Store) QueryGames(ctx context.Context, userID string) ([]GameListing, error) {
	query := `SELECT ` + gameColumns + `,
		(SELECT COUNT(*) FROM moves m WHERE m.game_id = games.id) AS move_count
	FROM games WHERE 1=1`

	var args []any
	if userID != "" && userID != "*" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var games []GameListing
	for rows.Next() {
		var count int
		g, err := scanGame(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		games = append(games, GameListing{GameRecord: *g, MoveCount: count})
	}
	return games, rows.Err()
}

// UpdateGameMeta overwrites the editable metadata of an owned game
func (s *Store) UpdateGameMeta(ctx context.Context, record GameRecord) error {
	query := s.rebind(`UPDATE games
		SET title = ?, opponent_name = ?, result = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		record.Title, record.OpponentName, record.Result, record.Status, record.UpdatedAt,
		record.ID, record.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game %d: %w", record.ID, err)
	}
	return requireAffected(res)
}

// AppendMove inserts one ply and touches the game's updated_at in one transaction.
// An existing (game, move number, color) yields ErrDuplicate and writes nothing.
func (s *Store) AppendMove(ctx context.Context, record MoveRecord) (*MoveRecord, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertMove(ctx, tx, record)
		if err != nil {
			return err
		}
		record.ID = id

		query := s.rebind(`UPDATE games SET updated_at = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, record.CreatedAt, record.GameID); err != nil {
			return fmt.Errorf("failed to touch game: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListMoves returns a game's plies in ledger order
func (s *Store) ListMoves(ctx context.Context, gameID int64) ([]MoveRecord, error) {
	query := s.rebind(`SELECT id, game_id, move_number, color, algebraic_notation, fen, created_at
		FROM moves WHERE game_id = ? ORDER BY ` + plyOrderAsc)

	rows, err := s.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var moves []MoveRecord
	for rows.Next() {
		var m MoveRecord
		if err := rows.Scan(&m.ID, &m.GameID, &m.MoveNumber, &m.Color, &m.Algebraic, &m.FEN, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// LastMove returns the chronologically last ply, or ErrNotFound for an empty ledger
func (s *Store) LastMove(ctx context.Context, gameID int64) (*MoveRecord, error) {
	query := s.rebind(`SELECT id, game_id, move_number, color, algebraic_notation, fen, created_at
		FROM moves WHERE game_id = ? ORDER BY ` + plyOrderDesc + ` LIMIT 1`)

	var m MoveRecord
	err := s.db.QueryRowContext(ctx, query, gameID).Scan(
		&m.ID, &m.GameID, &m.MoveNumber, &m.Color, &m.Algebraic, &m.FEN, &m.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// CountMoves returns the number of plies recorded for a game
func (s *Store) CountMoves(ctx context.Context, gameID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM moves WHERE game_id = ?`), gameID).Scan(&n)
	return n, err
}

// DeleteGame removes a game and, by cascade, its moves
func (s *Store) DeleteGame(ctx context.Context, gameID int64, userID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM games WHERE id = ? AND user_id = ?`), gameID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", gameID, err)
	}
	return requireAffected(res)
}
