package service

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chessaroo/internal/server/chesscom"
	"chessaroo/internal/server/core"
	"chessaroo/internal/server/session"
	"chessaroo/internal/server/storage"
)

const (
	fenAfterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	fenAfterE5 = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2"
)

type fakeFetcher struct {
	calls   int
	payload *chesscom.Payload
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, gameID string) (*chesscom.Payload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T, fetcher GameFetcher) (*Service, *storage.Store, *clock) {
	t.Helper()
	store, err := storage.Open(string(storage.DialectSQLite), filepath.Join(t.TempDir(), "service.db"), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	sessions := session.NewManager(session.NewSQLStore(store), []byte("test-secret-minimum-32-characters-long"), time.Hour)
	svc := New(store, sessions, fetcher, WithClock(clk.now))
	return svc, store, clk
}

func mustRegister(t *testing.T, svc *Service, username string) *core.UserInfo {
	t.Helper()
	u, err := svc.Register(context.Background(), username, username+"@example.com", "secret123")
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return u
}

func wantCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ce *core.Error
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *core.Error %s", err, code)
	}
	if ce.Status != status || ce.Code != code {
		t.Fatalf("error = %d/%s (%s), want %d/%s", ce.Status, ce.Code, ce.Message, status, code)
	}
}

func samplePayload() *chesscom.Payload {
	raw := `{"players":{"bottom":{"username":"alice"},"top":{"username":"bob"}},` +
		`"game":{"isFinished":true,"resultMessage":"alice won","endTime":1700000000,"uuid":"u-1",` +
		`"pgnHeaders":{"TimeControl":"600"}}}`
	return &chesscom.Payload{
		Raw: raw,
		Data: map[string]any{
			"players": map[string]any{
				"bottom": map[string]any{"username": "alice"},
				"top":    map[string]any{"username": "bob"},
			},
			"game": map[string]any{
				"isFinished":    true,
				"resultMessage": "alice won",
				"endTime":       float64(1700000000),
				"uuid":          "u-1",
				"pgnHeaders":    map[string]any{"TimeControl": "600"},
			},
		},
	}
}

func TestEndToEndLedger(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	game, err := svc.CreateGame(ctx, alice.UserID, core.CreateGameRequest{StartingFEN: core.StartingFEN})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.Title != DefaultGameTitle {
		t.Fatalf("title = %q", game.Title)
	}

	detail, err := svc.GetGameWithMoves(ctx, alice.UserID, game.ID)
	if err != nil {
		t.Fatalf("GetGameWithMoves: %v", err)
	}
	if detail.CurrentFEN != core.StartingFEN {
		t.Fatalf("empty ledger currentFen = %q", detail.CurrentFEN)
	}

	for _, m := range []core.MoveRequest{
		{MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: fenAfterE4},
		{MoveNumber: 1, Color: "b", Algebraic: "e5", FEN: fenAfterE5},
	} {
		if _, err := svc.AppendMove(ctx, alice.UserID, game.ID, m); err != nil {
			t.Fatalf("AppendMove(%+v): %v", m, err)
		}
	}

	detail, err = svc.GetGameWithMoves(ctx, alice.UserID, game.ID)
	if err != nil {
		t.Fatalf("GetGameWithMoves: %v", err)
	}
	if detail.CurrentFEN != fenAfterE5 {
		t.Fatalf("currentFen = %q, want %q", detail.CurrentFEN, fenAfterE5)
	}
	if detail.PGN != "1. e4 e5" {
		t.Fatalf("pgn = %q", detail.PGN)
	}
	if len(detail.Moves) != 2 || detail.Moves[0].Color != "w" {
		t.Fatalf("moves = %+v", detail.Moves)
	}

	current, err := svc.CurrentFEN(ctx, alice.UserID, game.ID)
	if err != nil || current != fenAfterE5 {
		t.Fatalf("CurrentFEN = %q, %v", current, err)
	}
}

func TestAppendMoveDuplicatePly(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")
	game, _ := svc.CreateGame(ctx, alice.UserID, core.CreateGameRequest{})

	move := core.MoveRequest{MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: fenAfterE4}
	if _, err := svc.AppendMove(ctx, alice.UserID, game.ID, move); err != nil {
		t.Fatalf("AppendMove: %v", err)
	}

	move.Algebraic = "d4"
	_, err := svc.AppendMove(ctx, alice.UserID, game.ID, move)
	wantCode(t, err, http.StatusConflict, core.ErrDuplicatePly)

	n, err := store.CountMoves(ctx, game.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountMoves = %d, %v; want 1", n, err)
	}
}

func TestAppendMoveRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")
	game, _ := svc.CreateGame(ctx, alice.UserID, core.CreateGameRequest{})

	_, err := svc.AppendMove(ctx, alice.UserID, game.ID, core.MoveRequest{MoveNumber: 0, Color: "w", Algebraic: "e4", FEN: fenAfterE4})
	wantCode(t, err, http.StatusBadRequest, core.ErrInvalidRequest)

	_, err = svc.AppendMove(ctx, alice.UserID, game.ID, core.MoveRequest{MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: "not a fen"})
	wantCode(t, err, http.StatusBadRequest, core.ErrInvalidFEN)
}

func TestOwnershipIsIndistinguishableFromMissing(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")
	bob := mustRegister(t, svc, "bob")
	game, _ := svc.CreateGame(ctx, alice.UserID, core.CreateGameRequest{})

	_, foreign := svc.GetGameWithMoves(ctx, bob.UserID, game.ID)
	_, missing := svc.GetGameWithMoves(ctx, bob.UserID, game.ID+1000)
	wantCode(t, foreign, http.StatusNotFound, core.ErrGameNotFound)
	wantCode(t, missing, http.StatusNotFound, core.ErrGameNotFound)
	if foreign.Error() != missing.Error() {
		t.Fatalf("foreign %q differs from missing %q", foreign, missing)
	}

	_, err := svc.AppendMove(ctx, bob.UserID, game.ID, core.MoveRequest{MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: fenAfterE4})
	wantCode(t, err, http.StatusNotFound, core.ErrGameNotFound)
}

func TestListGamesLimitAndCounts(t *testing.T) {
	svc, _, clk := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	var last int64
	for i := 0; i < 12; i++ {
		clk.t = clk.t.Add(time.Minute)
		g, err := svc.CreateGame(ctx, alice.UserID, core.CreateGameRequest{Title: "same"})
		if err != nil {
			t.Fatalf("CreateGame: %v", err)
		}
		last = g.ID
	}
	if _, err := svc.AppendMove(ctx, alice.UserID, last, core.MoveRequest{MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: fenAfterE4}); err != nil {
		t.Fatalf("AppendMove: %v", err)
	}

	games, err := svc.ListGames(ctx, alice.UserID, 0)
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != DefaultGameListLimit {
		t.Fatalf("len = %d, want %d", len(games), DefaultGameListLimit)
	}
	if games[0].ID != last || games[0].MoveCount != 1 {
		t.Fatalf("first = %+v, want id %d with 1 move", games[0], last)
	}
	if games[1].MoveCount != 0 {
		t.Fatalf("second move count = %d", games[1].MoveCount)
	}
}

func TestUpdateGamePermissiveStatusResult(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")
	game, _ := svc.CreateGame(ctx, alice.UserID, core.CreateGameRequest{})

	status, result := "completed", "*"
	updated, err := svc.UpdateGame(ctx, alice.UserID, game.ID, core.UpdateGameRequest{Status: &status, Result: &result})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	if updated.Status != "completed" || updated.Result != "*" {
		t.Fatalf("updated = %+v", updated)
	}

	bad := "2-0"
	_, err = svc.UpdateGame(ctx, alice.UserID, game.ID, core.UpdateGameRequest{Result: &bad})
	wantCode(t, err, http.StatusBadRequest, core.ErrInvalidRequest)
}

func TestCreateSampleGame(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	id, err := svc.CreateSampleGame(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("CreateSampleGame: %v", err)
	}
	detail, err := svc.GetGameWithMoves(ctx, alice.UserID, id)
	if err != nil {
		t.Fatalf("GetGameWithMoves: %v", err)
	}
	if len(detail.Moves) != 7 || detail.Result != "1-0" || detail.Status != "completed" {
		t.Fatalf("detail = %+v", detail)
	}
	if detail.PGN != "1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7#" {
		t.Fatalf("pgn = %q", detail.PGN)
	}
	if detail.CurrentFEN != detail.Moves[6].FEN {
		t.Fatalf("currentFen = %q", detail.CurrentFEN)
	}
}

func TestImportGameRefreshesExistingRow(t *testing.T) {
	fetcher := &fakeFetcher{payload: samplePayload()}
	svc, store, clk := newTestService(t, fetcher)
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	first, err := svc.ImportGame(ctx, alice.UserID, " https://www.chess.com/game/live/123456789 ")
	if err != nil {
		t.Fatalf("ImportGame: %v", err)
	}
	if first.ChessComGameID != "123456789" || first.SourceURL != "https://www.chess.com/game/live/123456789" {
		t.Fatalf("first = %+v", first)
	}
	if first.PayloadSummary.WhiteUsername == nil || *first.PayloadSummary.WhiteUsername != "alice" || !first.PayloadSummary.IsFinished {
		t.Fatalf("summary = %+v", first.PayloadSummary)
	}

	clk.t = clk.t.Add(time.Hour)
	second, err := svc.ImportGame(ctx, alice.UserID, "123456789")
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if second.ImportedGameID != first.ImportedGameID {
		t.Fatalf("re-import id = %d, want %d", second.ImportedGameID, first.ImportedGameID)
	}

	n, err := store.CountImportedGames(ctx, alice.UserID, "123456789")
	if err != nil || n != 1 {
		t.Fatalf("CountImportedGames = %d, %v; want 1", n, err)
	}

	detail, err := svc.GetImportedGame(ctx, alice.UserID, first.ImportedGameID)
	if err != nil {
		t.Fatalf("GetImportedGame: %v", err)
	}
	if !detail.ImportedAt.Equal(clk.t) {
		t.Fatalf("importedAt = %v, want %v", detail.ImportedAt, clk.t)
	}
	if detail.SourceURL != "123456789" {
		t.Fatalf("sourceUrl = %q, want refreshed value", detail.SourceURL)
	}
	if detail.EndTime == nil || !detail.EndTime.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("endTime = %v", detail.EndTime)
	}
}

func TestImportGameSeparateOwners(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeFetcher{payload: samplePayload()})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")
	bob := mustRegister(t, svc, "bob")

	a, err := svc.ImportGame(ctx, alice.UserID, "https://chess.com/game/live/42")
	if err != nil {
		t.Fatalf("alice import: %v", err)
	}
	b, err := svc.ImportGame(ctx, bob.UserID, "https://chess.com/game/live/42")
	if err != nil {
		t.Fatalf("bob import: %v", err)
	}
	if a.ImportedGameID == b.ImportedGameID {
		t.Fatal("owners share an imported row")
	}
	for _, uid := range []string{alice.UserID, bob.UserID} {
		if n, _ := store.CountImportedGames(ctx, uid, "42"); n != 1 {
			t.Fatalf("count for %s = %d", uid, n)
		}
	}

	_, err = svc.GetImportedGame(ctx, bob.UserID, a.ImportedGameID)
	wantCode(t, err, http.StatusNotFound, core.ErrNotFound)
}

func TestImportGameRejectsForeignHostWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{payload: samplePayload()}
	svc, _, _ := newTestService(t, fetcher)
	alice := mustRegister(t, svc, "alice")

	_, err := svc.ImportGame(context.Background(), alice.UserID, "https://lichess.org/game/123")
	wantCode(t, err, http.StatusBadRequest, core.ErrInvalidSource)
	if fetcher.calls != 0 {
		t.Fatalf("fetch calls = %d, want 0", fetcher.calls)
	}
}

func TestImportGamePropagatesUpstreamErrors(t *testing.T) {
	upstream := core.Upstream(http.StatusNotFound, core.ErrUpstreamNotFound, "Chess.com game not found", nil)
	svc, store, _ := newTestService(t, &fakeFetcher{err: upstream})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	_, err := svc.ImportGame(ctx, alice.UserID, "777")
	wantCode(t, err, http.StatusNotFound, core.ErrUpstreamNotFound)

	if n, _ := store.CountImportedGames(ctx, alice.UserID, "777"); n != 0 {
		t.Fatalf("count = %d after failed fetch", n)
	}
}

func TestImportGamePersistFailureHidesCause(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeFetcher{payload: samplePayload()})
	ctx := context.Background()

	// No users row: the owner foreign key rejects the insert
	_, err := svc.ImportGame(ctx, "ghost-user", "https://www.chess.com/game/live/4242")
	wantCode(t, err, http.StatusInternalServerError, core.ErrPersistFailure)

	var ce *core.Error
	errors.As(err, &ce)
	if ce.Err == nil {
		t.Fatal("storage cause not kept for logging")
	}
	resp := ce.Response()
	if resp.Error != "Failed to save imported game" || resp.Details != "" {
		t.Fatalf("response = %+v, want generic message only", resp)
	}
	if strings.Contains(strings.ToLower(resp.Error), "foreign key") {
		t.Fatalf("response leaks driver detail: %q", resp.Error)
	}

	if n, err := store.CountImportedGames(ctx, "ghost-user", "4242"); err != nil || n != 0 {
		t.Fatalf("count = %d, %v after failed upsert, want 0", n, err)
	}
}

func TestRegisterValidationAndUniqueness(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, "  alice ", "Alice@Example.COM", "secret123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name     string
		username string
		email    string
		password string
		status   int
	}{
		{"missing fields", "", "x@example.com", "secret123", http.StatusBadRequest},
		{"short password", "carol", "carol@example.com", "123", http.StatusBadRequest},
		{"short username", "ab", "ab@example.com", "secret123", http.StatusBadRequest},
		{"bad email", "carol", "carol@localhost", "secret123", http.StatusBadRequest},
		{"taken username", "alice", "other@example.com", "secret123", http.StatusConflict},
		{"taken email", "carol", "ALICE@example.com", "secret123", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			var ce *core.Error
			if !errors.As(err, &ce) || ce.Status != tt.status {
				t.Fatalf("Register() error = %v, want status %d", err, tt.status)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	byName, err := svc.Authenticate(ctx, "alice", "secret123")
	if err != nil || byName.UserID != alice.UserID {
		t.Fatalf("Authenticate(username) = %+v, %v", byName, err)
	}
	if byName.LastLogin == nil {
		t.Fatal("last login not recorded")
	}

	byEmail, err := svc.Authenticate(ctx, "ALICE@example.com", "secret123")
	if err != nil || byEmail.UserID != alice.UserID {
		t.Fatalf("Authenticate(email) = %+v, %v", byEmail, err)
	}

	// A username spelled like another account's email does not capture its login
	if _, err := svc.Register(ctx, "carol@example.com", "squat@example.com", "squatter1"); err != nil {
		t.Fatalf("Register(squatter): %v", err)
	}
	carol := mustRegister(t, svc, "carol")
	got, err := svc.Authenticate(ctx, "carol@example.com", "secret123")
	if err != nil || got.UserID != carol.UserID {
		t.Fatalf("Authenticate(carol email) = %+v, %v", got, err)
	}

	_, wrong := svc.Authenticate(ctx, "alice", "nope-nope")
	_, unknown := svc.Authenticate(ctx, "nobody", "secret123")
	wantCode(t, wrong, http.StatusUnauthorized, core.ErrUnauthorized)
	wantCode(t, unknown, http.StatusUnauthorized, core.ErrUnauthorized)
	if wrong.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrong, unknown)
	}
}

func TestUpdateProfileAndPassword(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")
	mustRegister(t, svc, "bob")

	// Unchanged username passes the uniqueness check
	if _, err := svc.UpdateProfile(ctx, alice.UserID, "alice", "alice2@example.com"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	_, err := svc.UpdateProfile(ctx, alice.UserID, "bob", "alice2@example.com")
	wantCode(t, err, http.StatusConflict, core.ErrConflict)

	err = svc.ChangePassword(ctx, alice.UserID, "wrong-one", "newsecret")
	wantCode(t, err, http.StatusUnauthorized, core.ErrUnauthorized)

	token, err := svc.StartSession(ctx, alice)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := svc.ChangePassword(ctx, alice.UserID, "secret123", "newsecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	_, err = svc.ResolveSession(ctx, token)
	wantCode(t, err, http.StatusUnauthorized, core.ErrUnauthorized)
	if _, err := svc.Authenticate(ctx, "alice", "newsecret"); err != nil {
		t.Fatalf("Authenticate with new password: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice")

	token, err := svc.StartSession(ctx, alice)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	uid, err := svc.ResolveSession(ctx, token)
	if err != nil || uid != alice.UserID {
		t.Fatalf("ResolveSession = %q, %v", uid, err)
	}
	if err := svc.EndSession(ctx, token); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	_, err = svc.ResolveSession(ctx, token)
	wantCode(t, err, http.StatusUnauthorized, core.ErrUnauthorized)
}

func TestGenerateUniqueUserID(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeFetcher{})
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := svc.generateUniqueUserID(context.Background())
		if err != nil {
			t.Fatalf("generateUniqueUserID: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
