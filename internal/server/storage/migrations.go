package storage

import (
	"context"
	"fmt"
	"time"
)

// migration is one versioned schema step, with a statement set per dialect
type migration struct {
	version  int
	name     string
	sqlite   string
	postgres string
}

// migrations is append-only; never edit an applied entry
var migrations = []migration{
	{
		version: 1,
		name:    "initial schema",
		sqlite: `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login DATETIME
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	user_color TEXT CHECK(user_color IN ('w', 'b')),
	title TEXT NOT NULL DEFAULT 'Untitled Game',
	opponent_name TEXT,
	result TEXT NOT NULL DEFAULT '*',
	status TEXT NOT NULL DEFAULT 'active',
	starting_fen TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_games_user_id ON games(user_id);
CREATE INDEX IF NOT EXISTS idx_games_status ON games(status);
CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);

CREATE TABLE IF NOT EXISTS moves (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL,
	move_number INTEGER NOT NULL,
	color TEXT NOT NULL CHECK(color IN ('w', 'b')),
	algebraic_notation TEXT NOT NULL,
	fen TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE,
	UNIQUE(game_id, move_number, color)
);

CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);

CREATE TABLE IF NOT EXISTS imported_games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	chesscom_game_id TEXT NOT NULL,
	source_url TEXT NOT NULL,
	raw_payload TEXT NOT NULL,
	white_username TEXT,
	black_username TEXT,
	result_message TEXT,
	is_finished BOOLEAN NOT NULL DEFAULT 0,
	game_end_reason TEXT,
	end_time DATETIME,
	time_control TEXT,
	chesscom_uuid TEXT,
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
	UNIQUE(user_id, chesscom_game_id)
);

CREATE INDEX IF NOT EXISTS idx_imported_games_user_id ON imported_games(user_id);
`,
		postgres: `
CREATE TABLE IF NOT EXISTS users (
	user_id VARCHAR(64) PRIMARY KEY,
	username VARCHAR(100) NOT NULL UNIQUE,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS games (
	id BIGSERIAL PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	user_color VARCHAR(1) CHECK(user_color IN ('w', 'b')),
	title VARCHAR(255) NOT NULL DEFAULT 'Untitled Game',
	opponent_name VARCHAR(100),
	result VARCHAR(10) NOT NULL DEFAULT '*',
	status VARCHAR(20) NOT NULL DEFAULT 'active',
	starting_fen TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_games_user_id ON games(user_id);
CREATE INDEX IF NOT EXISTS idx_games_status ON games(status);
CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);

CREATE TABLE IF NOT EXISTS moves (
	id BIGSERIAL PRIMARY KEY,
	game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	move_number INTEGER NOT NULL,
	color VARCHAR(1) NOT NULL CHECK(color IN ('w', 'b')),
	algebraic_notation VARCHAR(10) NOT NULL,
	fen VARCHAR(100) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT uq_moves_game_move_color UNIQUE (game_id, move_number, color)
);

CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);

CREATE TABLE IF NOT EXISTS imported_games (
	id BIGSERIAL PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	chesscom_game_id VARCHAR(32) NOT NULL,
	source_url VARCHAR(512) NOT NULL,
	raw_payload TEXT NOT NULL,
	white_username VARCHAR(100),
	black_username VARCHAR(100),
	result_message VARCHAR(255),
	is_finished BOOLEAN NOT NULL DEFAULT FALSE,
	game_end_reason VARCHAR(100),
	end_time TIMESTAMPTZ,
	time_control VARCHAR(50),
	chesscom_uuid VARCHAR(64),
	imported_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT uq_imported_games_user_game UNIQUE (user_id, chesscom_game_id)
);

CREATE INDEX IF NOT EXISTS idx_imported_games_user_id ON imported_games(user_id);
`,
	},
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

// Migrate applies every pending migration, each in its own transaction.
// Returns the number of migrations applied.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, migrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		applied++
	}
	return applied, nil
}

// SchemaVersion returns the highest applied migration version, 0 for a fresh database
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	stmt := m.sqlite
	if s.dialect == DialectPostgres {
		stmt = m.postgres
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	record := s.rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, record, m.version, m.name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
