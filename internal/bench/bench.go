// Package bench runs a fixed-depth search over a list of positions and
// reports node counts and speed.
package bench

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/notnil/chess"
	"gonum.org/v1/gonum/stat"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/engine"
)

// DefaultDepth is used when bench is given no depth.
const DefaultDepth = 8

// DefaultFENs is the built-in bench suite.
var DefaultFENs = []string{
	board.StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 10",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 11",
	"4rrk1/pp1n3p/3q2pQ/2p1pb2/2PP4/2P3N1/P2B2PP/4RRK1 b - - 7 19",
	"rq3rk1/ppp2ppp/1bnpb3/3N2B1/3NP3/7P/PPPQ1PP1/2KR3R w - - 7 14",
	"r1bq1r1k/1pp1n1pp/1p1p4/4p2Q/4Pp2/1BNP4/PPP2PPP/3R1RK1 w - - 2 14",
	"r3r1k1/2p2ppp/p1p1bn2/8/1q2P3/2NPQN2/PPP3PP/R4RK1 b - - 2 15",
	"r1bbk1nr/pp3p1p/2n5/1N4p1/2Np1B2/8/PPP2PPP/2KR1B1R w kq - 0 13",
	"6k1/6p1/6Pp/ppp5/3pn2P/1P3K2/1PP2P2/3N4 b - - 0 1",
	"3b4/5kp1/1p1p1p1p/pP1PpP1P/P1P1P3/3KN3/8/8 w - - 0 1",
	"8/8/8/8/5kp1/P7/8/1K1N4 w - - 0 80",
	"8/8/1P6/5pr1/8/4R3/7k/2K5 w - - 0 1",
}

var ErrNoPositions = errors.New("bench: no positions")

// Sample is the outcome of searching one position.
type Sample struct {
	FEN     string
	Nodes   uint64
	Elapsed time.Duration
}

// NPS is the sample's search speed.
func (s Sample) NPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Nodes) / s.Elapsed.Seconds()
}

// Summary aggregates a run.
type Summary struct {
	Positions int
	Nodes     uint64
	Elapsed   time.Duration
	MeanNPS   float64
	StdDevNPS float64
}

// NPS is the overall speed, total nodes over total time.
func (s Summary) NPS() uint64 {
	ms := s.Elapsed.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return s.Nodes * 1000 / uint64(ms)
}

// Summarize computes totals and the per-position speed spread.
func Summarize(samples []Sample) Summary {
	sum := Summary{Positions: len(samples)}
	nps := make([]float64, 0, len(samples))
	for _, s := range samples {
		sum.Nodes += s.Nodes
		sum.Elapsed += s.Elapsed
		nps = append(nps, s.NPS())
	}
	switch len(nps) {
	case 0:
	case 1:
		sum.MeanNPS = nps[0]
	default:
		sum.MeanNPS, sum.StdDevNPS = stat.MeanStdDev(nps, nil)
	}
	return sum
}

// Run searches every position to depth on e, one after another, writing
// progress to w. The engine's callbacks are left to the caller. Run stops
// between positions when ctx is done.
func Run(ctx context.Context, e *engine.Engine, fens []string, depth int, w io.Writer) ([]Sample, error) {
	if len(fens) == 0 {
		return nil, ErrNoPositions
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	samples := make([]Sample, 0, len(fens))
	for i, fen := range fens {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		pos, err := board.ParseFEN(fen)
		if err != nil {
			return samples, fmt.Errorf("bench: position %d: %w", i+1, err)
		}
		fmt.Fprintf(w, "\nPosition: %d/%d (%s)\n", i+1, len(fens), fen)

		e.WaitUntilIdle()
		start := time.Now()
		e.StartThinking(pos, []uint64{pos.Hash}, engine.Limits{Depth: depth, StartTime: start})
		e.WaitUntilIdle()
		samples = append(samples, Sample{FEN: fen, Nodes: e.NodesSearched(), Elapsed: time.Since(start)})
	}
	return samples, nil
}

// WriteSummary prints the closing totals.
func WriteSummary(w io.Writer, sum Summary) error {
	_, err := fmt.Fprintf(w,
		"\n===========================\nTotal time (ms) : %d\nNodes searched  : %d\nNodes/second    : %d\nMean NPS        : %.0f\nStdDev NPS      : %.0f\n",
		sum.Elapsed.Milliseconds(), sum.Nodes, sum.NPS(), sum.MeanNPS, sum.StdDevNPS)
	return err
}

// ReadPositions loads a bench suite. A stream holding PGN games yields
// every position reached in them, without duplicates; anything else is
// read as one FEN per line, skipping blanks and '#' comments.
func ReadPositions(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bench: reading positions: %w", err)
	}
	text := string(data)
	if strings.Contains(text, "[Event ") {
		return positionsFromPGN(text)
	}

	var fens []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := board.ParseFEN(line); err != nil {
			return nil, fmt.Errorf("bench: %q: %w", line, err)
		}
		fens = append(fens, line)
	}
	if len(fens) == 0 {
		return nil, ErrNoPositions
	}
	return fens, nil
}

func positionsFromPGN(text string) ([]string, error) {
	scanner := chess.NewScanner(strings.NewReader(text))
	seen := make(map[string]struct{})
	var fens []string
	for scanner.Scan() {
		for _, pos := range scanner.Next().Positions() {
			fen := pos.String()
			if _, ok := seen[fen]; ok {
				continue
			}
			seen[fen] = struct{}{}
			fens = append(fens, fen)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("bench: reading PGN: %w", err)
	}
	if len(fens) == 0 {
		return nil, ErrNoPositions
	}
	return fens, nil
}
