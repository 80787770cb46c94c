package uci

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/engine"
	"github.com/hailam/chessrelocate/internal/enumerate"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/options"
	"github.com/hailam/chessrelocate/internal/score"
	"github.com/hailam/chessrelocate/internal/storage"
	"github.com/hailam/chessrelocate/internal/tablebase"
)

type buffer struct {
	strings.Builder
}

type harness struct {
	t       *testing.T
	s       *Session
	out     *buffer
	engine  *engine.Engine
	options *options.Store
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	out := &buffer{}
	e := engine.New(engine.WithHash(1))
	store := options.NewDefault(nil, nil, 0, 0)
	s := NewSession(strings.NewReader(""), out, e, store, opts...)
	t.Cleanup(func() { s.Close() })
	return &harness{t: t, s: s, out: out, engine: e, options: store}
}

// run executes commands and returns everything printed so far, clearing the
// buffer.
func (h *harness) run(cmds ...string) string {
	h.t.Helper()
	for _, c := range cmds {
		if !h.s.Execute(context.Background(), c) {
			h.t.Fatalf("%q ended the session", c)
		}
	}
	return h.drain()
}

func (h *harness) drain() string {
	h.s.out.mu.Lock()
	defer h.s.out.mu.Unlock()
	text := h.out.String()
	h.out.Reset()
	return text
}

// waitFor polls the output until it contains want.
func (h *harness) waitFor(want string) string {
	h.t.Helper()
	var seen strings.Builder
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		seen.WriteString(h.drain())
		if strings.Contains(seen.String(), want) {
			return seen.String()
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("output never contained %q:\n%s", want, seen.String())
	return ""
}

func TestUCIHandshake(t *testing.T) {
	h := newHarness(t)
	out := h.run("uci")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "id name chessrelocate" {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[len(lines)-1] != "uciok" {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
	for _, want := range []string{
		"option name Threads type spin default 1 min 1 max 1024",
		"option name Hash type spin default 16 min 1 max 33554432",
		"option name UCI_ShowWDL type check default false",
		"option name Clear Hash type button",
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("missing %q", want)
		}
	}
	if got := h.run("isready"); got != "readyok\n" {
		t.Errorf("isready -> %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	got := h.run("frobnicate now")
	want := "Unknown command: 'frobnicate now'. Type help for more information.\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if out := h.run("help"); !strings.Contains(out, "go relocate <1|2>") {
		t.Errorf("help = %q", out)
	}
}

func TestCommentLinesAreIgnored(t *testing.T) {
	h := newHarness(t)
	for _, line := range []string{"# setup follows", "#go depth 1"} {
		if got := h.run(line); got != "" {
			t.Errorf("%q -> %q, want no output", line, got)
		}
	}
	if got := h.run("isready"); got != "readyok\n" {
		t.Errorf("isready after comments -> %q", got)
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		want    string
		wantErr bool
	}{
		{"startpos", "position startpos", board.StartFEN, false},
		{"startpos moves", "position startpos moves e2e4 e7e5",
			"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2", false},
		{"fen", "position fen 8/8/8/8/8/2k5/8/KQ6 w - - 0 1", "8/8/8/8/8/2k5/8/KQ6 w - - 0 1", false},
		{"fen moves", "position fen 8/8/8/8/8/2k5/8/KQ6 w - - 0 1 moves b1b2",
			"8/8/8/8/8/2k5/1Q6/K7 b - - 1 1", false},
		{"illegal move keeps prefix", "position startpos moves e2e4 e2e4",
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", true},
		{"bad fen keeps previous", "position fen not-a-fen", board.StartFEN, true},
		{"bad keyword", "position somewhere", board.StartFEN, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			out := h.run(tc.cmd)
			if got := h.s.Position().ToFEN(); got != tc.want {
				t.Errorf("fen = %q, want %q", got, tc.want)
			}
			if hasErr := strings.HasPrefix(out, "info string "); hasErr != tc.wantErr {
				t.Errorf("output %q", out)
			}
		})
	}
}

func TestGoDepth(t *testing.T) {
	h := newHarness(t)
	h.run("position startpos moves e2e4", "go depth 3")
	out := h.waitFor("bestmove ")
	h.engine.WaitUntilIdle()

	if !strings.Contains(out, "info depth 1 seldepth ") {
		t.Errorf("no depth 1 info:\n%s", out)
	}
	if !strings.Contains(out, "info depth 3 ") {
		t.Errorf("no depth 3 info:\n%s", out)
	}
	if strings.Contains(out, " wdl ") {
		t.Error("wdl printed without UCI_ShowWDL")
	}
	if h.s.State() != Idle {
		t.Errorf("state = %v after bestmove", h.s.State())
	}
}

func TestGoMateWithWDL(t *testing.T) {
	h := newHarness(t)
	h.run("setoption name UCI_ShowWDL value true",
		"position fen 6k1/5ppp/8/8/8/8/5PPP/3R2K1 w - - 0 1",
		"go depth 3")
	out := h.waitFor("bestmove ")
	if !strings.Contains(out, "score mate 1 wdl 1000 0 0") {
		t.Errorf("no mate score with wdl:\n%s", out)
	}
	if !strings.Contains(out, "bestmove d1d8") {
		t.Errorf("wrong bestmove:\n%s", out)
	}
}

func TestGoMatedRoot(t *testing.T) {
	h := newHarness(t)
	h.run("position fen rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", "go depth 3")
	out := h.waitFor("bestmove ")
	if !strings.Contains(out, "info depth 0 score mate 0\n") || !strings.Contains(out, "bestmove (none)") {
		t.Errorf("output:\n%s", out)
	}
}

func TestGoBadLimits(t *testing.T) {
	h := newHarness(t)
	for _, cmd := range []string{"go depth", "go depth x", "go movetime -5", "go sideways"} {
		if out := h.run(cmd); !strings.HasPrefix(out, "info string go: ") {
			t.Errorf("%q -> %q", cmd, out)
		}
	}
	if h.s.State() != Idle {
		t.Error("a search started after a bad go")
	}
}

func TestParseLimits(t *testing.T) {
	pos := board.NewPosition()
	limits, err := parseLimits(strings.Fields(
		"wtime 60000 btime 50000 winc 1000 binc 500 movestogo 20 depth 9 nodes 12345 mate 3 ponder searchmoves e2e4 d2d4 infinite"),
		pos, false)
	if err != nil {
		t.Fatal(err)
	}
	if limits.Time[board.White] != time.Minute || limits.Time[board.Black] != 50*time.Second {
		t.Errorf("times = %v", limits.Time)
	}
	if limits.Inc[board.White] != time.Second || limits.Inc[board.Black] != 500*time.Millisecond {
		t.Errorf("incs = %v", limits.Inc)
	}
	if limits.MovesToGo != 20 || limits.Depth != 9 || limits.Nodes != 12345 || limits.Mate != 3 {
		t.Errorf("limits = %+v", limits)
	}
	if !limits.Ponder || !limits.Infinite {
		t.Error("flags not set")
	}
	if len(limits.SearchMoves) != 2 || limits.SearchMoves[1].String() != "d2d4" {
		t.Errorf("searchmoves = %v", limits.SearchMoves)
	}
}

func TestStopInfinite(t *testing.T) {
	h := newHarness(t)
	h.run("go infinite")
	time.Sleep(30 * time.Millisecond)
	if h.s.State() != Searching {
		t.Fatalf("state = %v", h.s.State())
	}
	out := h.run("stop")
	if !strings.Contains(out, "bestmove ") {
		t.Errorf("stop returned before bestmove:\n%s", out)
	}
	if h.s.State() != Idle {
		t.Errorf("state = %v", h.s.State())
	}
}

func TestPonderHit(t *testing.T) {
	h := newHarness(t)
	h.run("go ponder depth 2")
	time.Sleep(50 * time.Millisecond)
	if h.s.State() != Pondering {
		t.Fatalf("state = %v", h.s.State())
	}
	if out := h.drain(); strings.Contains(out, "bestmove") {
		t.Fatalf("bestmove while pondering:\n%s", out)
	}
	h.run("ponderhit")
	h.waitFor("bestmove ")
}

func TestQuitStopsSearch(t *testing.T) {
	h := newHarness(t)
	h.run("go infinite")
	if h.s.Execute(context.Background(), "quit") {
		t.Fatal("quit did not end the session")
	}
	if h.s.State() != Idle {
		t.Errorf("state = %v after quit", h.s.State())
	}
}

func TestRunLoop(t *testing.T) {
	out := &buffer{}
	e := engine.New(engine.WithHash(1))
	s := NewSession(strings.NewReader("isready\n\nquit\nisready\n"), out, e, options.NewDefault(nil, nil, 0, 0))
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "readyok\n" {
		t.Errorf("output = %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = NewSession(strings.NewReader("isready\n"), out, e, options.NewDefault(nil, nil, 0, 0))
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestPerft(t *testing.T) {
	h := newHarness(t)
	out := h.run("go perft 2")
	if !strings.HasSuffix(out, "\nNodes searched: 400\n") {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, "e2e4: 20\n") {
		t.Errorf("no e2e4 line:\n%s", out)
	}
	if got := h.s.Position().ToFEN(); got != board.StartFEN {
		t.Errorf("perft changed the position to %q", got)
	}
	if out := h.run("go perft zero"); !strings.HasPrefix(out, "info string") {
		t.Errorf("bad depth -> %q", out)
	}
}

type firstTwo struct{}

// LegalMoves returns two quiet moves landing on ranks 3 to 6, so every node
// of a four-ply run branches exactly twice.
func (firstTwo) LegalMoves(pos *board.Position) []board.Move {
	var out []board.Move
	for _, m := range (board.Generator{}).LegalMoves(pos) {
		if r := m.To().Rank(); r < 2 || r > 5 || m.Type() != board.Normal || !pos.IsEmpty(m.To()) {
			continue
		}
		out = append(out, m)
		if len(out) == 2 {
			break
		}
	}
	return out
}

type memArchive struct{ records []*storage.Record }

func (m *memArchive) Archive(rec *storage.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func TestRelocateInvalidSelector(t *testing.T) {
	var calls atomic.Int64
	counting := eval.Func(func(*board.Position) score.Value {
		calls.Add(1)
		return 0
	})
	archive := &memArchive{}
	h := newHarness(t, WithEvaluator(counting), WithArchive(archive))
	h.run("position startpos moves e2e4")
	before := h.s.Position().ToFEN()

	for _, cmd := range []string{"go relocate", "go relocate 3", "go relocate x"} {
		if out := h.run(cmd); out != enumerate.Usage {
			t.Errorf("%q -> %q", cmd, out)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("evaluator called %d times", calls.Load())
	}
	if got := h.s.Position().ToFEN(); got != before {
		t.Errorf("position changed to %q", got)
	}
	if len(archive.records) != 0 {
		t.Error("invalid selector archived a result")
	}
}

func TestRelocateLegal(t *testing.T) {
	var calls atomic.Int64
	rising := eval.Func(func(*board.Position) score.Value {
		return score.Value(calls.Add(1) * 10)
	})
	archive := &memArchive{}
	h := newHarness(t, WithEvaluator(rising), WithMoveGenerator(firstTwo{}), WithArchive(archive))
	h.run("position startpos")

	out := h.run("go relocate 2")
	if !strings.HasPrefix(out, "Searching across 4 legal moves!\n") {
		t.Errorf("banner missing:\n%s", out)
	}
	if !strings.Contains(out, "Best eval is ") || !strings.Contains(out, "(white side)") {
		t.Errorf("report missing:\n%s", out)
	}
	if calls.Load() != 16 {
		t.Errorf("%d leaves evaluated, want 16", calls.Load())
	}
	if got := h.s.Position().ToFEN(); got != board.StartFEN {
		t.Errorf("position not restored: %q", got)
	}
	if len(archive.records) != 1 {
		t.Fatalf("%d records archived", len(archive.records))
	}
	rec := archive.records[0]
	if rec.Policy != "4 legal moves" || rec.RootFEN != board.StartFEN || rec.Leaves != 16 || !rec.Found || len(rec.Moves) != 4 {
		t.Errorf("record = %+v", rec)
	}
}

func TestSetOption(t *testing.T) {
	h := newHarness(t)
	if out := h.run("setoption name Threads value 3"); out != "" {
		t.Errorf("output %q", out)
	}
	if h.engine.Threads() != 3 {
		t.Errorf("threads = %d", h.engine.Threads())
	}
	for _, cmd := range []string{
		"setoption name Threads value 0",
		"setoption name Threads value lots",
		"setoption name Warp Drive value on",
		"setoption value 3",
	} {
		if out := h.run(cmd); !strings.HasPrefix(out, "info string setoption") {
			t.Errorf("%q -> %q", cmd, out)
		}
	}
	if h.engine.Threads() != 3 {
		t.Errorf("rejected value reached the engine: threads = %d", h.engine.Threads())
	}
	if out := h.run("setoption name Clear Hash"); out != "" {
		t.Errorf("button -> %q", out)
	}
}

func TestTablebaseOption(t *testing.T) {
	var urls []string
	factory := func(url string) (tablebase.Prober, error) {
		urls = append(urls, url)
		if url == "http://broken" {
			return nil, errors.New("unreachable")
		}
		return tablebase.NoopProber{}, nil
	}
	h := newHarness(t, WithProberFactory(factory))
	h.run("setoption name TablebaseURL value http://tb.local/standard",
		"setoption name SyzygyProbeLimit value 5")
	if len(urls) != 1 || urls[0] != "http://tb.local/standard" {
		t.Errorf("factory calls = %v", urls)
	}
	if out := h.run("setoption name TablebaseURL value http://broken"); !strings.Contains(out, "unreachable") {
		t.Errorf("output %q", out)
	}
}

func TestDebugLogFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "io.log")
	h.run("setoption name Debug Log File value "+path, "isready", "setoption name Debug Log File value")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	log := string(data)
	if !strings.Contains(log, ">> isready\n<< readyok\n") {
		t.Errorf("log = %q", log)
	}
}

func TestFlipEvalAndDiagram(t *testing.T) {
	h := newHarness(t)
	h.run("position startpos moves e2e4", "flip")
	fen := h.s.Position().ToFEN()
	if !strings.HasPrefix(fen, "rnbqkbnr/pppp1ppp/8/4p3/8/8/PPPPPPPP/RNBQKBNR w ") {
		t.Errorf("flipped fen = %q", fen)
	}

	out := h.run("d")
	if !strings.Contains(out, "Fen: "+fen) || !strings.Contains(out, "Key: ") {
		t.Errorf("d output:\n%s", out)
	}

	out = h.run("position startpos", "eval")
	if !strings.Contains(out, "Material") || !strings.Contains(out, "Final evaluation: ") || !strings.Contains(out, "(white side) [wdl ") {
		t.Errorf("eval output:\n%s", out)
	}
}

func TestFormatInfo(t *testing.T) {
	pv := []board.Move{board.NewMove(board.E2, board.E4), board.NewMove(board.E7, board.E5)}
	tests := []struct {
		name    string
		info    engine.Info
		showWDL bool
		want    string
	}{
		{
			"mated root",
			engine.Info{Value: score.MatedIn(0)},
			false,
			"info depth 0 score mate 0",
		},
		{
			"lower bound with wdl",
			engine.Info{Depth: 5, SelDepth: 7, MultiPV: 1, Value: score.MateIn(3), Bound: engine.BoundLower,
				Material: 40, Nodes: 2000, Time: time.Second, HashFull: 12, TBHits: 1, PV: pv},
			true,
			"info depth 5 seldepth 7 multipv 1 score mate 2 wdl 1000 0 0 lowerbound nodes 2000 nps 2000 hashfull 12 tbhits 1 time 1000 pv e2e4 e7e5",
		},
		{
			"upper bound",
			engine.Info{Depth: 2, SelDepth: 2, MultiPV: 2, Value: 0, Bound: engine.BoundUpper, Material: 78},
			false,
			"info depth 2 seldepth 2 multipv 2 score cp 0 upperbound nodes 0 nps 0 hashfull 0 tbhits 0 time 0",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatInfo(tc.info, false, tc.showWDL); got != tc.want {
				t.Errorf("got  %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestBenchCommand(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "suite.epd")
	if err := os.WriteFile(path, []byte(board.StartFEN+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := h.run("bench 2 " + path)
	if !strings.Contains(out, "Position: 1/1") || !strings.Contains(out, "Nodes searched  : ") {
		t.Errorf("bench output:\n%s", out)
	}
	if out := h.run("bench deep"); !strings.HasPrefix(out, "info string bench") {
		t.Errorf("bad depth -> %q", out)
	}
}
