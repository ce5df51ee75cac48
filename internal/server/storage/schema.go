package storage

import "time"

// UserRecord represents a user account in the database
type UserRecord struct {
	UserID       string     `db:"user_id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    *time.Time `db:"last_login"`
}

// SessionRecord represents an active login session
type SessionRecord struct {
	SessionID string    `db:"session_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// GameRecord represents a row in the games table
type GameRecord struct {
	ID           int64     `db:"id"`
	UserID       string    `db:"user_id"`
	UserColor    *string   `db:"user_color"`
	Title        string    `db:"title"`
	OpponentName *string   `db:"opponent_name"`
	Result       string    `db:"result"`
	Status       string    `db:"status"`
	StartingFEN  *string   `db:"starting_fen"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// GameListing is a game with its move count computed at read time
type GameListing struct {
	GameRecord
	MoveCount int
}

// MoveRecord represents one ply in the moves table
type MoveRecord struct {
	ID         int64     `db:"id"`
	GameID     int64     `db:"game_id"`
	MoveNumber int       `db:"move_number"`
	Color      string    `db:"color"`
	Algebraic  string    `db:"algebraic_notation"`
	FEN        string    `db:"fen"`
	CreatedAt  time.Time `db:"created_at"`
}

// ImportedGameRecord is an owner-scoped copy of an external game payload
type ImportedGameRecord struct {
	ID             int64      `db:"id"`
	UserID         string     `db:"user_id"`
	ChessComGameID string     `db:"chesscom_game_id"`
	SourceURL      string     `db:"source_url"`
	RawPayload     string     `db:"raw_payload"`
	WhiteUsername  *string    `db:"white_username"`
	BlackUsername  *string    `db:"black_username"`
	ResultMessage  *string    `db:"result_message"`
	IsFinished     bool       `db:"is_finished"`
	GameEndReason  *string    `db:"game_end_reason"`
	EndTime        *time.Time `db:"end_time"`
	TimeControl    *string    `db:"time_control"`
	ChessComUUID   *string    `db:"chesscom_uuid"`
	ImportedAt     time.Time  `db:"imported_at"`
}
