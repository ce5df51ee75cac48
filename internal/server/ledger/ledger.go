// Package ledger derives the current position and a move-text rendering from a
// game's append-only move log. It trusts the stored FENs and never checks legality.
package ledger

import (
	"sort"
	"strconv"
	"strings"

	"chessaroo/internal/server/core"
	"chessaroo/internal/server/storage"
)

// Less orders plies by move number, white before black
func Less(a, b storage.MoveRecord) bool {
	if a.MoveNumber != b.MoveNumber {
		return a.MoveNumber < b.MoveNumber
	}
	return core.Color(a.Color).Rank() < core.Color(b.Color).Rank()
}

// Sort puts moves in ledger order in place
func Sort(moves []storage.MoveRecord) {
	sort.SliceStable(moves, func(i, j int) bool { return Less(moves[i], moves[j]) })
}

// Last returns the chronologically last ply without requiring sorted input
func Last(moves []storage.MoveRecord) (storage.MoveRecord, bool) {
	if len(moves) == 0 {
		return storage.MoveRecord{}, false
	}
	last := moves[0]
	for _, m := range moves[1:] {
		if Less(last, m) {
			last = m
		}
	}
	return last, true
}

// CurrentFEN is the post-move FEN of the last ply, or startingFEN for an empty log.
// A missing starting FEN yields the empty string.
func CurrentFEN(startingFEN *string, moves []storage.MoveRecord) string {
	if last, ok := Last(moves); ok {
		return last.FEN
	}
	if startingFEN == nil {
		return ""
	}
	return *startingFEN
}

// PGNText renders "1. e4 e5 2. Nf3". Gaps are skipped, no result suffix is added.
func PGNText(moves []storage.MoveRecord) string {
	ordered := make([]storage.MoveRecord, len(moves))
	copy(ordered, moves)
	Sort(ordered)

	tokens := make([]string, 0, len(ordered))
	for _, m := range ordered {
		if core.Color(m.Color) == core.ColorWhite {
			tokens = append(tokens, strconv.Itoa(m.MoveNumber)+". "+m.Algebraic)
		} else {
			tokens = append(tokens, m.Algebraic)
		}
	}
	return strings.Join(tokens, " ")
}
