package eval

import (
	"strings"
	"testing"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/score"
)

func mustFEN(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func TestStartPositionIsTempoOnly(t *testing.T) {
	pos := board.NewPosition()
	want := FromCentipawns(tempoBonus)
	if got := (Classical{}).Evaluate(pos); got != want {
		t.Errorf("Evaluate(startpos) = %d, want %d", got, want)
	}
}

func TestEvaluateIsColourSymmetric(t *testing.T) {
	fens := []string{
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	}
	var e Classical
	for _, fen := range fens {
		pos := mustFEN(t, fen)
		if a, b := e.Evaluate(pos), e.Evaluate(pos.Flip()); a != b {
			t.Errorf("%s: eval %d, flipped %d", fen, a, b)
		}
	}
}

func TestMaterialAdvantage(t *testing.T) {
	var e Classical
	up := mustFEN(t, "4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	if v := e.Evaluate(up); v < 6*score.PawnValue {
		t.Errorf("queen up evaluates to %d", v)
	}
	down := mustFEN(t, "4k3/8/8/8/8/8/8/3QK3 b - - 0 1")
	if v := e.Evaluate(down); v > -6*score.PawnValue {
		t.Errorf("queen down evaluates to %d", v)
	}
}

func TestTraceTable(t *testing.T) {
	tr := NewTrace(board.NewPosition())
	s := tr.String()
	for term := range numTerms {
		if !strings.Contains(s, term.String()) {
			t.Errorf("trace table missing %s", term)
		}
	}
	if tr.Phase != maxPhase {
		t.Errorf("start phase = %d, want %d", tr.Phase, maxPhase)
	}
}

func TestFuncAdapter(t *testing.T) {
	calls := 0
	var e Evaluator = Func(func(*board.Position) score.Value {
		calls++
		return 42
	})
	if v := e.Evaluate(board.NewPosition()); v != 42 || calls != 1 {
		t.Errorf("Func adapter returned %d after %d calls", v, calls)
	}
}
