package chesscom

import (
	"math"
	"time"
)

// Summary holds the fields derived from a raw game payload. Absent optional
// data leaves the corresponding field nil.
type Summary struct {
	WhiteUsername *string
	BlackUsername *string
	ResultMessage *string
	IsFinished    bool
	GameEndReason *string
	EndTime       *time.Time
	TimeControl   *string
	UUID          *string
}

// Normalize extracts the summary. Player metadata wins over PGN headers, which
// live under game.pgnHeaders. End time is epoch seconds interpreted as UTC.
func Normalize(data map[string]any) Summary {
	game := object(data["game"])
	players := object(data["players"])
	white := object(players["bottom"])
	black := object(players["top"])
	headers := object(game["pgnHeaders"])

	s := Summary{
		WhiteUsername: firstString(white["username"], headers["White"]),
		BlackUsername: firstString(black["username"], headers["Black"]),
		ResultMessage: firstString(game["resultMessage"], headers["Result"]),
		IsFinished:    truthy(game["isFinished"]),
		GameEndReason: firstString(game["gameEndReason"]),
		TimeControl:   firstString(headers["TimeControl"]),
		UUID:          firstString(game["uuid"]),
	}

	if epoch, ok := game["endTime"].(float64); ok && !math.IsNaN(epoch) && !math.IsInf(epoch, 0) {
		sec, frac := math.Modf(epoch)
		t := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
		s.EndTime = &t
	}

	return s
}

func object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// firstString returns the first non-empty string among values
func firstString(values ...any) *string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
