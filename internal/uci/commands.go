package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessrelocate/internal/bench"
	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/engine"
	"github.com/hailam/chessrelocate/internal/enumerate"
	"github.com/hailam/chessrelocate/internal/options"
	"github.com/hailam/chessrelocate/internal/score"
	"github.com/hailam/chessrelocate/internal/storage"
	"github.com/hailam/chessrelocate/internal/tablebase"
)

var (
	errMissingValue = errors.New("missing value")
	errBadNumber    = errors.New("not a number")
)

func (s *Session) handleUCI() {
	s.printf("id name %s\nid author %s\n\n", engineName, engineAuthor)
	s.print(s.opts.UCI())
	s.println("uciok")
}

// handleSetOption parses "setoption name <name> [value <value>]". Names and
// values may contain spaces.
func (s *Session) handleSetOption(args []string) {
	var name, value []string
	var target *[]string
	for _, arg := range args {
		switch {
		case arg == "name" && target == nil:
			target = &name
		case arg == "value" && target == &name:
			target = &value
		case target != nil:
			*target = append(*target, arg)
		}
	}
	if len(name) == 0 {
		s.infoString("setoption: missing name")
		return
	}

	s.engine.WaitUntilIdle()
	if err := s.opts.Set(strings.Join(name, " "), strings.Join(value, " ")); err != nil {
		s.infoString("setoption: %v", err)
	}
}

func (s *Session) handleNewGame() {
	s.engine.WaitUntilIdle()
	s.engine.Clear()
	s.stack = board.NewStateStack(board.NewPosition())
}

// handlePosition sets up "position [startpos | fen <fen>] [moves ...]". A bad
// FEN leaves the current position untouched; an illegal move keeps the
// moves before it.
func (s *Session) handlePosition(args []string) {
	if len(args) == 0 {
		s.infoString("position: missing startpos or fen")
		return
	}
	s.engine.WaitUntilIdle()

	movesAt := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesAt = i
			break
		}
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
	case "fen":
		var err error
		pos, err = board.ParseFEN(strings.Join(args[1:movesAt], " "))
		if err != nil {
			s.infoString("Invalid FEN: %v", err)
			return
		}
	default:
		s.infoString("position: expected startpos or fen, got %q", args[0])
		return
	}

	stack := board.NewStateStack(pos)
	s.stack = stack
	if movesAt == len(args) {
		return
	}
	chess960 := s.chess960.Load()
	for _, text := range args[movesAt+1:] {
		m, err := board.ParseMove(text, stack.Position(), chess960)
		if err != nil {
			s.infoString("Invalid move: %v", err)
			return
		}
		stack.Push(m)
	}
}

func (s *Session) handleGo(ctx context.Context, args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "perft":
			s.handlePerft(args[1:])
			return
		case "relocate":
			s.handleRelocate(ctx, args[1:])
			return
		}
	}

	s.engine.WaitUntilIdle()
	pos := s.stack.Position()
	limits, err := parseLimits(args, pos, s.chess960.Load())
	if err != nil {
		s.infoString("go: %v", err)
		return
	}
	s.logger.Debug("search started",
		zap.String("fen", pos.ToFEN()),
		zap.Int("depth", limits.Depth),
		zap.Bool("ponder", limits.Ponder),
		zap.Bool("infinite", limits.Infinite))
	s.engine.StartThinking(pos, s.stack.Lineage(), limits)
}

// parseLimits reads the search limits of a go command. Times are in
// milliseconds.
func parseLimits(args []string, pos *board.Position, chess960 bool) (engine.Limits, error) {
	limits := engine.Limits{StartTime: time.Now()}

	for i := 0; i < len(args); i++ {
		key := args[i]
		next := func() (int, error) {
			if i+1 >= len(args) {
				return 0, fmt.Errorf("%s: %w", key, errMissingValue)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				return 0, fmt.Errorf("%s %q: %w", key, args[i], errBadNumber)
			}
			return n, nil
		}
		ms := func() (time.Duration, error) {
			n, err := next()
			return time.Duration(n) * time.Millisecond, err
		}

		var err error
		switch key {
		case "wtime":
			limits.Time[board.White], err = ms()
		case "btime":
			limits.Time[board.Black], err = ms()
		case "winc":
			limits.Inc[board.White], err = ms()
		case "binc":
			limits.Inc[board.Black], err = ms()
		case "movestogo":
			limits.MovesToGo, err = next()
		case "depth":
			limits.Depth, err = next()
		case "nodes":
			var n int
			n, err = next()
			limits.Nodes = uint64(n)
		case "movetime":
			limits.MoveTime, err = ms()
		case "mate":
			limits.Mate, err = next()
		case "infinite":
			limits.Infinite = true
		case "ponder":
			limits.Ponder = true
		case "searchmoves":
			for i+1 < len(args) {
				m, perr := board.ParseMove(args[i+1], pos, chess960)
				if perr != nil {
					break
				}
				limits.SearchMoves = append(limits.SearchMoves, m)
				i++
			}
		default:
			err = fmt.Errorf("unknown limit %q", key)
		}
		if err != nil {
			return engine.Limits{}, err
		}
	}
	return limits, nil
}

func (s *Session) handleStop() {
	if s.State() != Idle {
		s.engine.Stop()
	}
	s.engine.WaitUntilIdle()
}

// handlePerft prints the node count below every root move and the total.
func (s *Session) handlePerft(args []string) {
	if len(args) == 0 {
		s.infoString("go perft: %v", errMissingValue)
		return
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil || depth < 1 {
		s.infoString("go perft: depth %q: %v", args[0], errBadNumber)
		return
	}
	s.engine.WaitUntilIdle()

	start := time.Now()
	entries, total := board.Divide(s.stack, depth)
	elapsed := time.Since(start)
	chess960 := s.chess960.Load()
	for _, e := range entries {
		s.printf("%s: %d\n", e.Move.UCI(chess960), e.Nodes)
	}
	s.printf("\nNodes searched: %d\n", total)
	s.logger.Debug("perft finished", zap.Int("depth", depth), zap.Uint64("nodes", total), zap.Duration("elapsed", elapsed))
}

// handleRelocate runs the enumerator on the current position. An
// unrecognised selector prints the usage text and leaves everything as it
// was.
func (s *Session) handleRelocate(ctx context.Context, args []string) {
	var sel string
	if len(args) > 0 {
		sel = args[0]
	}
	mode, err := enumerate.ParseMode(sel)
	if err != nil {
		s.logger.Debug("invalid relocation mode", zap.Error(err))
		s.print(enumerate.Usage)
		return
	}
	s.engine.WaitUntilIdle()

	root := s.stack.Position()
	rootFEN := root.ToFEN()
	policy := mode.Policy(root, s.gen)
	s.print(enumerate.Banner(policy))

	res, err := enumerate.Run(ctx, s.stack, policy, s.eval,
		enumerate.WithLogger(s.logger.Named("enumerate")),
		enumerate.WithStats(s.stats))
	if err != nil {
		s.infoString("relocate: %v", err)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return
		}
	}
	if err := enumerate.WriteReport(s.out, res); err != nil {
		s.logger.Warn("writing relocation report", zap.Error(err))
	}
	s.archiveResult(policy, rootFEN, res)
}

func (s *Session) archiveResult(policy enumerate.Policy, rootFEN string, res enumerate.Result) {
	if s.archive == nil {
		return
	}
	moves := make([]string, len(res.Path))
	for i, m := range res.Path {
		moves[i] = m.String()
	}
	rec := &storage.Record{
		Time:       time.Now(),
		Policy:     policy.Name,
		RootFEN:    rootFEN,
		Found:      res.Found,
		Centipawns: res.Centipawns,
		BestFEN:    res.FEN,
		Moves:      moves,
		Leaves:     res.Leaves,
		Elapsed:    res.Elapsed,
	}
	if err := s.archive.Archive(rec); err != nil {
		s.logger.Warn("archiving relocation result", zap.Error(err))
	}
}

// handleEval prints the evaluation terms and the final score from white's
// point of view.
func (s *Session) handleEval() {
	s.engine.WaitUntilIdle()
	pos := s.stack.Position()
	if pos.InCheck() {
		s.println("Final evaluation: none (in check)")
		return
	}
	v := s.eval.Evaluate(pos)
	if pos.SideToMove == board.Black {
		v = -v
	}
	material := pos.MaterialCount()
	s.print(evalTrace(pos))
	s.printf("Final evaluation: %s (white side) [%s]\n",
		score.Pawns(score.ToCentipawns(v, material)), score.FormatWDL(v, material))
}

// handleBench runs "bench [depth] [file]" and prints the totals.
func (s *Session) handleBench(ctx context.Context, args []string) {
	depth := bench.DefaultDepth
	fens := bench.DefaultFENs
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			s.infoString("bench: depth %q: %v", args[0], errBadNumber)
			return
		}
		depth = d
	}
	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			s.infoString("bench: %v", err)
			return
		}
		fens, err = bench.ReadPositions(f)
		f.Close()
		if err != nil {
			s.infoString("%v", err)
			return
		}
	}

	s.engine.WaitUntilIdle()
	samples, err := bench.Run(ctx, s.engine, fens, depth, s.out)
	if err != nil {
		s.infoString("%v", err)
	}
	if err := bench.WriteSummary(s.out, bench.Summarize(samples)); err != nil {
		s.logger.Warn("writing bench summary", zap.Error(err))
	}
}

// bindOptions connects option changes to the engine and the session and
// applies the current values.
func (s *Session) bindOptions() {
	e := s.engine
	s.opts.OnChange(options.Threads, func(o *options.Option) error {
		e.SetThreads(o.Int())
		return nil
	})
	s.opts.OnChange(options.Hash, func(o *options.Option) error {
		e.ResizeHash(o.Int())
		return nil
	})
	s.opts.OnChange(options.ClearHash, func(*options.Option) error {
		e.Clear()
		return nil
	})
	s.opts.OnChange(options.MultiPV, func(o *options.Option) error {
		e.SetMultiPV(o.Int())
		return nil
	})
	skill := func(*options.Option) error {
		e.SetSkillLevel(s.opts.EffectiveSkill())
		return nil
	}
	s.opts.OnChange(options.SkillLevel, skill)
	s.opts.OnChange(options.LimitStrength, skill)
	s.opts.OnChange(options.Elo, skill)
	s.opts.OnChange(options.MoveOverhead, func(o *options.Option) error {
		e.SetMoveOverhead(time.Duration(o.Int()) * time.Millisecond)
		return nil
	})
	s.opts.OnChange(options.Chess960, func(o *options.Option) error {
		s.chess960.Store(o.Bool())
		return nil
	})
	s.opts.OnChange(options.ShowWDL, func(o *options.Option) error {
		s.showWDL.Store(o.Bool())
		return nil
	})
	tb := func(*options.Option) error { return s.configureTablebase() }
	s.opts.OnChange(options.TablebaseURL, tb)
	s.opts.OnChange(options.SyzygyProbeLimit, tb)
	s.opts.OnChange(options.Syzygy50MoveRule, tb)
	s.opts.OnChange(options.DebugLogFile, func(o *options.Option) error {
		return s.openDebugLog(o.Value())
	})

	if e.Threads() != s.opts.Get(options.Threads).Int() {
		e.SetThreads(s.opts.Get(options.Threads).Int())
	}
	e.SetMultiPV(s.opts.Get(options.MultiPV).Int())
	e.SetSkillLevel(s.opts.EffectiveSkill())
	e.SetMoveOverhead(time.Duration(s.opts.Get(options.MoveOverhead).Int()) * time.Millisecond)
	s.chess960.Store(s.opts.Get(options.Chess960).Bool())
	s.showWDL.Store(s.opts.Get(options.ShowWDL).Bool())
	if err := s.configureTablebase(); err != nil {
		s.logger.Warn("tablebase not configured", zap.Error(err))
	}
	if path := s.opts.Get(options.DebugLogFile).Value(); path != "" {
		if err := s.openDebugLog(path); err != nil {
			s.logger.Warn("debug log not opened", zap.Error(err))
		}
	}
}

// configureTablebase hands the engine a prober for the TablebaseURL option,
// reusing the previous one while the URL is unchanged.
func (s *Session) configureTablebase() error {
	url := s.opts.Get(options.TablebaseURL).Value()
	limit := s.opts.Get(options.SyzygyProbeLimit).Int()
	rule50 := s.opts.Get(options.Syzygy50MoveRule).Bool()

	if url != s.tbURL || s.tbProber == nil {
		var p tablebase.Prober = tablebase.NoopProber{}
		if url != "" {
			var err error
			if p, err = s.probers(url); err != nil {
				return fmt.Errorf("tablebase %s: %w", url, err)
			}
		}
		s.tbURL, s.tbProber = url, p
	}
	s.engine.SetTablebase(s.tbProber, limit, rule50)
	return nil
}

func (s *Session) openDebugLog(path string) error {
	if path == "" {
		s.out.setTee(nil)
		return nil
	}
	f, err := openDebugLog(path)
	if err != nil {
		return err
	}
	s.out.setTee(f)
	return nil
}
