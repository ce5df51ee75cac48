package core

import "time"

// Request types

type CreateGameRequest struct {
	Title        string `json:"title" validate:"omitempty,max=255"`
	OpponentName string `json:"opponentName" validate:"omitempty,max=100"`
	UserColor    string `json:"userColor" validate:"omitempty,oneof=w b"`
	StartingFEN  string `json:"startingFen" validate:"omitempty,max=100"`
}

type UpdateGameRequest struct {
	Title        *string `json:"title" validate:"omitempty,max=255"`
	OpponentName *string `json:"opponentName" validate:"omitempty,max=100"`
	Result       *string `json:"result" validate:"omitempty,oneof=1-0 0-1 1/2-1/2 *"`
	Status       *string `json:"status" validate:"omitempty,oneof=active completed abandoned"`
}

type MoveRequest struct {
	MoveNumber int    `json:"moveNumber" validate:"required,min=1"`
	Color      string `json:"color" validate:"required,oneof=w b"`
	Algebraic  string `json:"algebraic" validate:"required,min=1,max=10"`
	FEN        string `json:"fen" validate:"required,max=100"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest accepts identifier or the legacy username field
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type ImportRequest struct {
	URL     string `json:"url"`
	GameURL string `json:"gameUrl"`
}

// Response types

type GameSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	UserColor    *string   `json:"userColor"`
	OpponentName *string   `json:"opponentName"`
	Status       string    `json:"status"`
	Result       string    `json:"result"`
	CreatedAt    time.Time `json:"createdAt"`
	MoveCount    int       `json:"moveCount"`
}

type MoveInfo struct {
	MoveNumber int    `json:"moveNumber"`
	Color      string `json:"color"`
	Algebraic  string `json:"algebraic"`
	FEN        string `json:"fen"`
}

type GameDetail struct {
	GameID       int64      `json:"gameId"`
	Title        string     `json:"title"`
	UserColor    *string    `json:"userColor"`
	OpponentName *string    `json:"opponentName"`
	Status       string     `json:"status"`
	Result       string     `json:"result"`
	StartingFEN  string     `json:"startingFen"`
	CurrentFEN   string     `json:"currentFen"`
	PGN          string     `json:"pgn"`
	Moves        []MoveInfo `json:"moves"`
}

type ImportSummary struct {
	WhiteUsername *string `json:"whiteUsername"`
	BlackUsername *string `json:"blackUsername"`
	ResultMessage *string `json:"resultMessage"`
	IsFinished    bool    `json:"isFinished"`
}

type ImportResponse struct {
	ImportedGameID int64         `json:"importedGameId"`
	ChessComGameID string        `json:"chessComGameId"`
	SourceURL      string        `json:"sourceUrl"`
	PayloadSummary ImportSummary `json:"payloadSummary"`
}

type ImportedGameDetail struct {
	ID             int64      `json:"id"`
	ChessComGameID string     `json:"chessComGameId"`
	SourceURL      string     `json:"sourceUrl"`
	WhiteUsername  *string    `json:"whiteUsername"`
	BlackUsername  *string    `json:"blackUsername"`
	ResultMessage  *string    `json:"resultMessage"`
	IsFinished     bool       `json:"isFinished"`
	GameEndReason  *string    `json:"gameEndReason"`
	EndTime        *time.Time `json:"endTime"`
	TimeControl    *string    `json:"timeControl"`
	ImportedAt     time.Time  `json:"importedAt"`
	UUID           *string    `json:"uuid"`
}

type UserInfo struct {
	UserID    string     `json:"userId"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	LastLogin *time.Time `json:"lastLogin"`
}

type AppendMoveResponse struct {
	Move       MoveInfo `json:"move"`
	CurrentFEN string   `json:"currentFen"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
