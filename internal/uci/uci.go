// Package uci implements the UCI protocol session that drives the engine and
// the relocation enumerator.
//
// A Session owns the current position (as a state stack), the option store
// and the output stream. Commands are read line by line and handled on the
// calling goroutine; searches run in the background and report through the
// engine callbacks, which write to the same stream.
package uci

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/engine"
	"github.com/hailam/chessrelocate/internal/enumerate"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/options"
	"github.com/hailam/chessrelocate/internal/stats"
	"github.com/hailam/chessrelocate/internal/storage"
	"github.com/hailam/chessrelocate/internal/tablebase"
)

const (
	engineName   = "chessrelocate"
	engineAuthor = "the chessrelocate developers"
)

// State is the session's search state.
type State int

const (
	Idle State = iota
	Searching
	Pondering
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Pondering:
		return "pondering"
	default:
		return "idle"
	}
}

// ProberFactory builds a tablebase prober for an endpoint URL.
type ProberFactory func(url string) (tablebase.Prober, error)

// Archiver records finished enumerations. *storage.Store implements it.
type Archiver interface {
	Archive(rec *storage.Record) error
}

// Session is one UCI conversation.
type Session struct {
	in     io.Reader
	out    *syncWriter
	engine *engine.Engine
	opts   *options.Store

	logger  *zap.Logger
	stats   stats.Collector
	eval    eval.Evaluator
	gen     enumerate.MoveGenerator
	archive Archiver
	probers ProberFactory

	stack *board.StateStack

	chess960 atomic.Bool
	showWDL  atomic.Bool

	tbURL    string
	tbProber tablebase.Prober
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option { return func(s *Session) { s.stats = c } }

// WithEvaluator sets the evaluator used by eval and go relocate.
func WithEvaluator(e eval.Evaluator) Option { return func(s *Session) { s.eval = e } }

// WithMoveGenerator sets the generator used by go relocate 2.
func WithMoveGenerator(g enumerate.MoveGenerator) Option { return func(s *Session) { s.gen = g } }

// WithArchive records every enumeration result.
func WithArchive(a Archiver) Option { return func(s *Session) { s.archive = a } }

// WithProberFactory sets how TablebaseURL values become probers.
func WithProberFactory(f ProberFactory) Option { return func(s *Session) { s.probers = f } }

// NewSession creates a session reading commands from in and writing protocol
// output to out. It installs the engine callbacks and binds the options in
// opts to the engine.
func NewSession(in io.Reader, out io.Writer, e *engine.Engine, opts *options.Store, sopts ...Option) *Session {
	s := &Session{
		in:     in,
		out:    &syncWriter{w: out},
		engine: e,
		opts:   opts,
		logger: zap.NewNop(),
		stats:  stats.Noop{},
		eval:   eval.Classical{},
		gen:    board.Generator{},
		stack:  board.NewStateStack(board.NewPosition()),
	}
	for _, o := range sopts {
		o(s)
	}
	if s.probers == nil {
		logger := s.logger
		s.probers = func(url string) (tablebase.Prober, error) {
			return tablebase.NewLichessProber(url, logger.Named("tablebase")), nil
		}
	}
	e.OnInfo = s.sendInfo
	e.OnBestMove = s.sendBestMove
	s.bindOptions()
	return s
}

// State reports whether a search is running.
func (s *Session) State() State {
	switch {
	case s.engine.IsPondering():
		return Pondering
	case s.engine.IsSearching():
		return Searching
	}
	return Idle
}

// Position returns a copy of the current position.
func (s *Session) Position() *board.Position {
	s.engine.WaitUntilIdle()
	return s.stack.Position().Copy()
}

// Run reads commands until quit, end of input or ctx is done. A running
// search is stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.Execute(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// Execute handles one command line and reports whether the session should
// keep going.
func (s *Session) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	s.out.logInput(line)
	if strings.HasPrefix(line, "#") {
		return true
	}

	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]
	s.stats.IncCounter(stats.MetricCommands, 1)
	s.logger.Debug("command", zap.String("cmd", cmd), zap.Strings("args", args))

	switch cmd {
	case "uci":
		s.handleUCI()
	case "isready":
		s.println("readyok")
	case "setoption":
		s.handleSetOption(args)
	case "ucinewgame":
		s.handleNewGame()
	case "position":
		s.handlePosition(args)
	case "go":
		s.handleGo(ctx, args)
	case "stop":
		s.handleStop()
	case "ponderhit":
		if s.engine.IsPondering() {
			s.engine.PonderHit()
		}
	case "quit":
		s.handleStop()
		return false
	case "d":
		s.engine.WaitUntilIdle()
		s.print(s.stack.Position().String())
	case "eval":
		s.handleEval()
	case "flip":
		s.engine.WaitUntilIdle()
		s.stack = board.NewStateStack(s.stack.Position().Flip())
	case "bench":
		s.handleBench(ctx, args)
	case "help", "--help":
		s.print(helpText)
	default:
		s.printf("Unknown command: '%s'. Type help for more information.\n", line)
	}
	return true
}

// Wait blocks until the running search, if any, has answered.
func (s *Session) Wait() { s.engine.WaitUntilIdle() }

// Close stops any search and closes the debug log.
func (s *Session) Close() {
	s.handleStop()
	s.out.setTee(nil)
}

func (s *Session) println(text string) { s.print(text + "\n") }

func (s *Session) print(text string) { _, _ = io.WriteString(s.out, text) }

func (s *Session) printf(format string, args ...any) { _, _ = fmt.Fprintf(s.out, format, args...) }

// infoString reports a recoverable error on the protocol stream.
func (s *Session) infoString(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Info("protocol error", zap.String("message", msg))
	s.println("info string " + msg)
}

const helpText = `chessrelocate is a UCI chess engine with a piece relocation explorer.
Commands:
  uci, isready, setoption name <n> [value <v>], ucinewgame
  position [startpos | fen <fen>] [moves <m>...]
  go [wtime btime winc binc movestogo depth nodes movetime mate infinite ponder searchmoves <m>...]
  go perft <depth>
  go relocate <1|2>
  stop, ponderhit, quit
  d, eval, flip, bench [depth] [file], help
`

// syncWriter serialises output from the command loop and the search
// goroutine, and copies every line to the debug log when one is open.
type syncWriter struct {
	mu  sync.Mutex
	w   io.Writer
	tee io.WriteCloser
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.tee != nil {
		teeLines(sw.tee, "<< ", p)
	}
	return sw.w.Write(p)
}

func (sw *syncWriter) logInput(line string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.tee != nil {
		teeLines(sw.tee, ">> ", []byte(line))
	}
}

// setTee replaces the debug log, closing the previous one.
func (sw *syncWriter) setTee(t io.WriteCloser) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.tee != nil {
		_ = sw.tee.Close()
	}
	sw.tee = t
}

func teeLines(w io.Writer, prefix string, p []byte) {
	for line := range bytes.Lines(p) {
		_, _ = w.Write([]byte(prefix))
		_, _ = w.Write(line)
		if !bytes.HasSuffix(line, []byte("\n")) {
			_, _ = w.Write([]byte("\n"))
		}
	}
}

func openDebugLog(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
