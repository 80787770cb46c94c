package enumerate

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/score"
)

func TestRelocationReducedSets(t *testing.T) {
	pos := board.NewPosition()
	root := *pos
	stack := board.NewStateStack(pos)

	sets := RelocationSets{
		Sources:      []board.Square{board.A1, board.B1, board.C1, board.D1, board.F1},
		Destinations: []board.Square{board.A3, board.B3, board.C3, board.D3, board.E3, board.F3},
		Count:        2,
	}
	srcIdx, dstIdx := indexOf(sets.Sources), indexOf(sets.Destinations)
	// Source combinations are the outer loop, destination combinations the
	// inner one.
	target := []board.Move{board.NewMove(board.B1, board.C3), board.NewMove(board.D1, board.F3)}

	var leaves [][]board.Move
	e := eval.Func(func(p *board.Position) score.Value {
		if p.SideToMove != board.White {
			t.Fatalf("leaf evaluated with %s to move", p.SideToMove)
		}
		path := stack.Moves()
		leaves = append(leaves, path)
		if slices.Equal(path, target) {
			return 1000
		}
		return -100
	})

	res, err := Run(context.Background(), stack, Relocation(sets), e)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Leaves != 150 || len(leaves) != 150 {
		t.Fatalf("visited %d leaves (%d evaluations), want C(5,2)*C(6,2) = 150", res.Leaves, len(leaves))
	}

	key := func(path []board.Move) []int {
		return []int{srcIdx[path[0].From()], srcIdx[path[1].From()], dstIdx[path[0].To()], dstIdx[path[1].To()]}
	}
	for i, path := range leaves {
		k := key(path)
		if k[0] >= k[1] || k[2] >= k[3] {
			t.Errorf("leaf %d %v is not an ascending combination", i, path)
		}
		if i > 0 && slices.Compare(key(leaves[i-1]), k) >= 0 {
			t.Errorf("leaf %d %v does not follow %v", i, path, leaves[i-1])
		}
	}

	if !res.Found || !slices.Equal(res.Path, target) {
		t.Errorf("best path = %v (found %v), want %v", res.Path, res.Found, target)
	}
	if want := score.ToCentipawns(1000, 78); res.Centipawns != want {
		t.Errorf("best cp = %d, want %d", res.Centipawns, want)
	}
	if want := "rnbqkbnr/pppppppp/8/8/8/2N2Q2/PPPPPPPP/R1B1KBNR w KQkq - 2 2"; res.FEN != want {
		t.Errorf("best fen = %s, want %s", res.FEN, want)
	}
	if *pos != root {
		t.Errorf("position not restored: %s", pos.ToFEN())
	}
}

func TestRelocationTieKeepsFirstSourceCombination(t *testing.T) {
	pos := board.NewPosition()
	stack := board.NewStateStack(pos)
	sets := RelocationSets{
		Sources:      []board.Square{board.B1, board.C1, board.G1},
		Destinations: []board.Square{board.A3, board.C3, board.F3},
		Count:        2,
	}
	tied := [][]board.Move{
		{board.NewMove(board.B1, board.A3), board.NewMove(board.G1, board.C3)},
		{board.NewMove(board.B1, board.C3), board.NewMove(board.C1, board.F3)},
	}
	e := eval.Func(func(*board.Position) score.Value {
		for _, path := range tied {
			if slices.Equal(stack.Moves(), path) {
				return 500
			}
		}
		return 0
	})

	res, err := Run(context.Background(), stack, Relocation(sets), e)
	if err != nil {
		t.Fatal(err)
	}
	if res.Leaves != 9 {
		t.Errorf("leaves = %d, want C(3,2)*C(3,2) = 9", res.Leaves)
	}
	if !slices.Equal(res.Path, tied[1]) {
		t.Errorf("best path = %v, want %v", res.Path, tied[1])
	}
}

func TestCombinations(t *testing.T) {
	got := combinations(4, 2)
	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if len(got) != len(want) {
		t.Fatalf("combinations(4, 2) = %v", got)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("combination %d = %v, want %v", i, got[i], want[i])
		}
	}
	if combinations(2, 3) != nil || combinations(3, 0) != nil {
		t.Error("impossible combinations should be empty")
	}
}

func TestRelocationBaselineIsStrict(t *testing.T) {
	pos := board.NewPosition()
	stack := board.NewStateStack(pos)
	sets := RelocationSets{
		Sources:      []board.Square{board.B1, board.G1},
		Destinations: []board.Square{board.C3, board.F3},
		Count:        2,
	}
	res, err := Run(context.Background(), stack, Relocation(sets), eval.Func(func(*board.Position) score.Value { return 0 }))
	if err != nil {
		t.Fatal(err)
	}
	if res.Found || res.FEN != "" || res.Leaves != 1 {
		t.Errorf("zero scores should not beat the baseline: %+v", res)
	}
}

func TestRelocationSkipsIneligible(t *testing.T) {
	// The queen is gone and c3 is occupied.
	pos, err := board.ParseFEN("rnbqkbnr/pppppppp/8/8/8/2P5/PP1PPPPP/RNB1KBNR w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	stack := board.NewStateStack(pos)
	sets := RelocationSets{
		Sources:      []board.Square{board.B1, board.D1, board.E1},
		Destinations: []board.Square{board.C3, board.D3},
		Count:        1,
	}
	var seen []string
	_, err = Run(context.Background(), stack, Relocation(sets), eval.Func(func(*board.Position) score.Value {
		seen = append(seen, stack.Top().String())
		return 0
	}))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"b1d3"}; !slices.Equal(seen, want) {
		t.Errorf("evaluated %v, want %v", seen, want)
	}
}

// firstTwo keeps the first two candidates the real generator offers.
type firstTwo struct{}

func (firstTwo) LegalMoves(pos *board.Position) []board.Move {
	moves := (board.Generator{}).LegalMoves(pos)
	return moves[:min(2, len(moves))]
}

func expectedPaths(pos *board.Position, gen MoveGenerator, deny Deny, depth int, prefix []board.Move, out *[][]board.Move) {
	if len(prefix) == depth {
		*out = append(*out, slices.Clone(prefix))
		return
	}
	for _, m := range gen.LegalMoves(pos) {
		if !deny.Allows(m) {
			continue
		}
		next := pos.Copy()
		next.Apply(m)
		next.Pass()
		expectedPaths(next, gen, deny, depth, append(prefix, m), out)
	}
}

func TestLegalRelocationDepthFirst(t *testing.T) {
	pos := board.NewPosition()
	root := *pos
	stack := board.NewStateStack(pos)
	deny := DefaultDeny(board.White)

	var want [][]board.Move
	expectedPaths(pos.Copy(), firstTwo{}, deny, 4, nil, &want)

	var got [][]board.Move
	e := eval.Func(func(p *board.Position) score.Value {
		if p.SideToMove != board.White || p.FullMoveNumber != 3 {
			t.Errorf("leaf %v: side %s, full-move %d", stack.Moves(), p.SideToMove, p.FullMoveNumber)
		}
		got = append(got, stack.Moves())
		return score.Value(len(got))
	})

	res, err := Run(context.Background(), stack, LegalRelocation(firstTwo{}, deny), e)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != len(want) || len(got) != 16 {
		t.Fatalf("visited %d leaves, reference %d, want 16", len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("leaf %d = %v, want %v", i, got[i], want[i])
		}
	}
	// Scores grow with the leaf index, so the last leaf is the best.
	if !slices.Equal(res.Path, want[len(want)-1]) {
		t.Errorf("best path %v, want %v", res.Path, want[len(want)-1])
	}
	if *pos != root {
		t.Errorf("position not restored: %s", pos.ToFEN())
	}
}

func TestDenyFiltersMoves(t *testing.T) {
	pos, err := board.ParseFEN("r3k2r/1P6/8/3pP3/8/8/8/R3K2R w KQkq d6 0 1")
	if err != nil {
		t.Fatal(err)
	}
	policy := LegalRelocation(board.Generator{}, DefaultDeny(board.White))
	for _, m := range policy.Candidates(pos, 0, nil) {
		if m.Type() != board.Normal {
			t.Errorf("special move %s offered", m)
		}
		if m.To().Rank() >= 6 {
			t.Errorf("move %s lands on a denied rank", m)
		}
	}

	black := DefaultDeny(board.Black)
	if black.Allows(board.NewMove(board.A3, board.A2)) {
		t.Error("black may move into rank 2")
	}
	if !black.Allows(board.NewMove(board.A4, board.A3)) {
		t.Error("black may not move into rank 3")
	}
}

func TestLegalRelocationNeverCapturesKing(t *testing.T) {
	// Qxe8 is off limits both as a legal move and as a denylist escape.
	pos, err := board.ParseFEN("4k3/8/8/8/8/8/8/3Q1K2 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	stack := board.NewStateStack(pos)
	policy := LegalRelocation(board.Generator{}, Deny{})
	policy.Depth = 2
	_, err = Run(context.Background(), stack, policy, eval.Func(func(p *board.Position) score.Value {
		if p.Pieces[board.Black][board.King] == 0 {
			t.Fatalf("king captured via %v", stack.Moves())
		}
		return 0
	}))
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunCancelled(t *testing.T) {
	pos := board.NewPosition()
	root := *pos
	stack := board.NewStateStack(pos)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, stack, Relocation(DefaultRelocationSets(board.White)), eval.Classical{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Leaves != cancelCheckInterval {
		t.Errorf("stopped after %d leaves, want %d", res.Leaves, cancelCheckInterval)
	}
	if stack.Depth() != 0 || *pos != root {
		t.Errorf("stack not unwound: depth %d, fen %s", stack.Depth(), pos.ToFEN())
	}
}

func TestDefaultRelocationLeafCount(t *testing.T) {
	if testing.Short() {
		t.Skip("full relocation tree")
	}
	pos := board.NewPosition()
	stack := board.NewStateStack(pos)
	res, err := Run(context.Background(), stack, Relocation(DefaultRelocationSets(board.White)),
		eval.Func(func(*board.Position) score.Value { return 0 }))
	if err != nil {
		t.Fatal(err)
	}
	// C(7,4) * C(32,4)
	if want := uint64(35 * 35960); res.Leaves != want {
		t.Errorf("leaves = %d, want %d", res.Leaves, want)
	}
}

func TestDefaultRelocationSetsMirror(t *testing.T) {
	w, b := DefaultRelocationSets(board.White), DefaultRelocationSets(board.Black)
	if len(w.Sources) != 7 || len(w.Destinations) != 32 || w.Count != 4 {
		t.Fatalf("white sets: %d sources, %d destinations, count %d", len(w.Sources), len(w.Destinations), w.Count)
	}
	for i := range w.Sources {
		if b.Sources[i] != w.Sources[i].Mirror() {
			t.Errorf("black source %d = %s", i, b.Sources[i])
		}
	}
	if b.Sources[0] != board.A8 || b.Destinations[0] != board.A6 {
		t.Errorf("black sets start at %s / %s", b.Sources[0], b.Destinations[0])
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"1", "2"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "0", "3", "one", "1 "} {
		if _, err := ParseMode(s); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("ParseMode(%q) err = %v, want ErrInvalidMode", s, err)
		}
	}
}

func TestInvalidPolicy(t *testing.T) {
	stack := board.NewStateStack(board.NewPosition())
	calls := 0
	e := eval.Func(func(*board.Position) score.Value { calls++; return 0 })
	if _, err := Run(context.Background(), stack, Policy{Depth: 0}, e); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("err = %v, want ErrInvalidPolicy", err)
	}
	if calls != 0 {
		t.Errorf("evaluator called %d times", calls)
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	res := Result{
		Found:      true,
		Centipawns: 289,
		FEN:        "rnbqkbnr/pppppppp/8/8/8/2N2Q2/PPPPPPPP/R1B1KBNR w KQkq - 2 1",
		Path:       []board.Move{board.NewMove(board.B1, board.C3), board.NewMove(board.D1, board.F3)},
		Side:       board.White,
	}
	if err := WriteReport(&buf, res); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Best eval is 2.89 (white side)", "Fen: " + res.FEN, "Moves: b1c3 d1f3"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteReport(&buf, Result{Side: board.Black, Leaves: 7}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "No improvement found") {
		t.Errorf("empty result report = %q", buf.String())
	}
}
