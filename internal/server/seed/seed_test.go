package seed

import "testing"

func TestSample(t *testing.T) {
	g, err := Sample()
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if g.Opponent != "Claire" || g.UserColor != "w" {
		t.Fatalf("unexpected header: %+v", g)
	}
	if g.Result != "1-0" || g.Status != "completed" {
		t.Fatalf("result/status = %s/%s", g.Result, g.Status)
	}
	if len(g.Moves) != 7 {
		t.Fatalf("moves = %d, want 7", len(g.Moves))
	}
	if last := g.Moves[len(g.Moves)-1]; last.SAN != "Qxf7#" || last.Number != 4 || last.Color != "w" {
		t.Fatalf("last move = %+v", last)
	}
	if got := g.NumberedTitle(12); got != "Sample Chess Game #12" {
		t.Fatalf("NumberedTitle() = %q", got)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse([]byte("title: Empty\n")); err == nil {
		t.Fatal("expected error for game without moves")
	}
	if _, err := Parse([]byte("moves: [")); err == nil {
		t.Fatal("expected decode error")
	}
}
