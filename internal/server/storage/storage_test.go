package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite3", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func seedUser(t *testing.T, s *Store, id, username string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateUser(context.Background(), UserRecord{
		UserID:       id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
}

func seedGame(t *testing.T, s *Store, userID string) *GameRecord {
	t.Helper()
	now := time.Now().UTC()
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	g, err := s.CreateGame(context.Background(), GameRecord{
		UserID:      userID,
		Title:       "Untitled Game",
		Result:      "*",
		Status:      "active",
		StartingFEN: &fen,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	return g
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if n != 0 {
		t.Fatalf("second Migrate applied %d migrations, want 0", n)
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil || v != len(migrations) {
		t.Fatalf("SchemaVersion = (%d, %v), want (%d, nil)", v, err, len(migrations))
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")

	now := time.Now().UTC()
	err := s.CreateUser(context.Background(), UserRecord{
		UserID: "u2", Username: "alice", Email: "other@example.com",
		PasswordHash: "hash", CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("CreateUser duplicate username err = %v, want ErrDuplicate", err)
	}
}

func TestAppendMoveDuplicatePly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	g := seedGame(t, s, "u1")

	move := MoveRecord{GameID: g.ID, MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: "fen1", CreatedAt: time.Now().UTC()}
	if _, err := s.AppendMove(ctx, move); err != nil {
		t.Fatalf("AppendMove: %v", err)
	}

	move.Algebraic = "d4"
	if _, err := s.AppendMove(ctx, move); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("AppendMove duplicate err = %v, want ErrDuplicate", err)
	}

	n, err := s.CountMoves(ctx, g.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountMoves = (%d, %v), want (1, nil)", n, err)
	}
}

func TestMoveOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	g := seedGame(t, s, "u1")

	// inserted out of order on purpose
	plies := []MoveRecord{
		{MoveNumber: 2, Color: "w", Algebraic: "Nf3", FEN: "fen3"},
		{MoveNumber: 1, Color: "b", Algebraic: "e5", FEN: "fen2"},
		{MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: "fen1"},
	}
	for _, p := range plies {
		p.GameID = g.ID
		p.CreatedAt = time.Now().UTC()
		if _, err := s.AppendMove(ctx, p); err != nil {
			t.Fatalf("AppendMove %d%s: %v", p.MoveNumber, p.Color, err)
		}
	}

	moves, err := s.ListMoves(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListMoves: %v", err)
	}
	got := ""
	for _, m := range moves {
		got += m.Algebraic + " "
	}
	if got != "e4 e5 Nf3 " {
		t.Fatalf("ListMoves order = %q", got)
	}

	last, err := s.LastMove(ctx, g.ID)
	if err != nil || last.FEN != "fen3" {
		t.Fatalf("LastMove = (%+v, %v), want fen3", last, err)
	}
}

func TestLastMoveEmptyLedger(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "alice")
	g := seedGame(t, s, "u1")

	if _, err := s.LastMove(context.Background(), g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LastMove empty err = %v, want ErrNotFound", err)
	}
}

func TestGetGameForOwnerHidesOtherOwners(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")
	g := seedGame(t, s, "a")

	if _, err := s.GetGameForOwner(ctx, g.ID, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign owner err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetGameForOwner(ctx, g.ID+100, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing game err = %v, want ErrNotFound", err)
	}
}

func TestListGamesMoveCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	first := seedGame(t, s, "u1")
	second := seedGame(t, s, "u1")

	_, err := s.AppendMove(ctx, MoveRecord{GameID: first.ID, MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: "f", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("AppendMove: %v", err)
	}

	games, err := s.ListGames(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("ListGames len = %d, want 2", len(games))
	}
	if games[0].ID != second.ID || games[0].MoveCount != 0 || games[1].MoveCount != 1 {
		t.Fatalf("ListGames = %+v", games)
	}

	limited, err := s.ListGames(ctx, "u1", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListGames limit 1 = (%d, %v)", len(limited), err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	g := seedGame(t, s, "u1")

	if _, err := s.AppendMove(ctx, MoveRecord{GameID: g.ID, MoveNumber: 1, Color: "w", Algebraic: "e4", FEN: "f", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("AppendMove: %v", err)
	}
	if _, _, err := s.UpsertImportedGame(ctx, ImportedGameRecord{UserID: "u1", ChessComGameID: "1", SourceURL: "1", RawPayload: "{}", ImportedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("UpsertImportedGame: %v", err)
	}

	if err := s.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if n, _ := s.CountMoves(ctx, g.ID); n != 0 {
		t.Fatalf("moves after cascade = %d, want 0", n)
	}
	if n, _ := s.CountImportedGames(ctx, "u1", "1"); n != 0 {
		t.Fatalf("imports after cascade = %d, want 0", n)
	}
	if _, err := s.GetGameForOwner(ctx, g.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("game after cascade err = %v, want ErrNotFound", err)
	}
}

func TestUpsertImportedGame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "a", "alice")
	seedUser(t, s, "b", "bob")

	white := "alice"
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := ImportedGameRecord{
		UserID: "a", ChessComGameID: "123", SourceURL: "123",
		RawPayload: `{"v":1}`, WhiteUsername: &white, ImportedAt: first,
	}

	created, existed, err := s.UpsertImportedGame(ctx, rec)
	if err != nil || existed {
		t.Fatalf("first upsert = (existed %v, %v)", existed, err)
	}

	second := first.Add(time.Hour)
	rec.RawPayload = `{"v":2}`
	rec.SourceURL = "https://www.chess.com/game/live/123"
	rec.ImportedAt = second
	updated, existed, err := s.UpsertImportedGame(ctx, rec)
	if err != nil || !existed {
		t.Fatalf("second upsert = (existed %v, %v)", existed, err)
	}
	if updated.ID != created.ID {
		t.Fatalf("re-import changed id %d -> %d", created.ID, updated.ID)
	}

	got, err := s.GetImportedGameForOwner(ctx, created.ID, "a")
	if err != nil {
		t.Fatalf("GetImportedGameForOwner: %v", err)
	}
	if got.RawPayload != `{"v":2}` || !got.ImportedAt.Equal(second) || got.SourceURL != rec.SourceURL {
		t.Fatalf("re-import not refreshed: %+v", got)
	}
	if n, _ := s.CountImportedGames(ctx, "a", "123"); n != 1 {
		t.Fatalf("row count = %d, want 1", n)
	}

	rec.UserID = "b"
	other, existed, err := s.UpsertImportedGame(ctx, rec)
	if err != nil || existed || other.ID == created.ID {
		t.Fatalf("other owner upsert = (%+v, existed %v, %v)", other, existed, err)
	}
	if _, err := s.GetImportedGameForOwner(ctx, created.ID, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign import err = %v, want ErrNotFound", err)
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &Store{dialect: DialectPostgres}
	got := s.rebind(`SELECT * FROM t WHERE a = ? AND b = ?`)
	if got != `SELECT * FROM t WHERE a = $1 AND b = $2` {
		t.Fatalf("rebind = %q", got)
	}

	s.dialect = DialectSQLite
	if got := s.rebind(`a = ?`); got != `a = ?` {
		t.Fatalf("sqlite rebind = %q", got)
	}
}

func TestSessionExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")

	now := time.Now().UTC()
	if err := s.CreateSession(ctx, SessionRecord{SessionID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.CreateSession(ctx, SessionRecord{SessionID: "s2", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("CreateSession expired: %v", err)
	}

	if _, err := s.GetSession(ctx, "s1", now); err != nil {
		t.Fatalf("GetSession live: %v", err)
	}
	if _, err := s.GetSession(ctx, "s2", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession expired err = %v, want ErrNotFound", err)
	}

	n, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredSessions = (%d, %v), want (1, nil)", n, err)
	}
}

func TestGetUserByLoginPrefersEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// Inserted first so an unordered match would return it
	seedUser(t, s, "squatter", "bob@example.com")
	seedUser(t, s, "victim", "bob")

	u, err := s.GetUserByLogin(ctx, "bob@example.com", "bob@example.com")
	if err != nil || u.UserID != "victim" {
		t.Fatalf("GetUserByLogin(email) = %+v, %v; want victim", u, err)
	}
	u, err = s.GetUserByLogin(ctx, "bob", "bob")
	if err != nil || u.UserID != "victim" {
		t.Fatalf("GetUserByLogin(username) = %+v, %v; want victim", u, err)
	}
	if _, err := s.GetUserByLogin(ctx, "nobody", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserByLogin(unknown) err = %v, want ErrNotFound", err)
	}
}
