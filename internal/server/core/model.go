package core

// StartingFEN is the standard initial position
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type Color string

const (
	ColorWhite Color = "w"
	ColorBlack Color = "b"
)

func (c Color) Valid() bool {
	return c == ColorWhite || c == ColorBlack
}

// Rank orders plies within a move number, white first
func (c Color) Rank() int {
	if c == ColorBlack {
		return 1
	}
	return 0
}

// Result is the PGN result tag of a game
type Result string

const (
	ResultWhiteWins Result = "1-0"
	ResultBlackWins Result = "0-1"
	ResultDraw      Result = "1/2-1/2"
	ResultUnknown   Result = "*"
)

func (r Result) Valid() bool {
	switch r {
	case ResultWhiteWins, ResultBlackWins, ResultDraw, ResultUnknown:
		return true
	default:
		return false
	}
}

// Status is independent from Result; no combination is rejected.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusAbandoned:
		return true
	default:
		return false
	}
}
