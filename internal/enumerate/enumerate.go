// Package enumerate exhaustively applies bounded move sequences to a
// position through its state stack and keeps the best-scoring leaf.
//
// A Policy supplies the candidates for each ply and decides whether the
// same side keeps the move. Run walks the tree depth first, evaluates every
// leaf once, and undoes each move before trying the next branch, so the
// position is bit-for-bit unchanged when Run returns.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/score"
	"github.com/hailam/chessrelocate/internal/stats"
)

// MoveGenerator lists the legal moves of a position.
type MoveGenerator interface {
	LegalMoves(pos *board.Position) []board.Move
}

// Policy describes one enumeration.
type Policy struct {
	// Name is printed in the banner, e.g. "all relocations".
	Name string
	// Depth is the number of plies per leaf.
	Depth int
	// Groups splits the run into consecutive walks from the root, numbered
	// from zero. Zero or one means a single walk.
	Groups int
	// Candidates returns the moves to try at the ply after path in group.
	Candidates func(pos *board.Position, group int, path []board.Move) []board.Move
	// Eligible filters a candidate just before it is applied. Nil accepts all.
	Eligible func(pos *board.Position, m board.Move) bool
	// HoldSide hands the move back to the root side after every ply.
	HoldSide bool
}

// Result is the outcome of one Run.
type Result struct {
	Found      bool
	Centipawns int
	Value      score.Value
	FEN        string
	Path       []board.Move
	Leaves     uint64
	Side       board.Color
	Elapsed    time.Duration
}

// Pawns renders the best score as a two-decimal pawn figure.
func (r Result) Pawns() string { return score.Pawns(r.Centipawns) }

const cancelCheckInterval = 4096

// ErrInvalidPolicy is returned by Run for a policy that cannot produce a
// leaf.
var ErrInvalidPolicy = errors.New("enumerate: policy needs a positive depth and a candidate generator")

type config struct {
	logger *zap.Logger
	stats  stats.Collector
}

// Option configures Run.
type Option func(*config)

// WithLogger logs progress and the final result.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithStats reports leaf counts and duration.
func WithStats(s stats.Collector) Option {
	return func(c *config) { c.stats = s }
}

type walker struct {
	ctx    context.Context
	stack  *board.StateStack
	policy Policy
	eval   eval.Evaluator
	root   board.Color
	group  int
	path   []board.Move
	res    Result
	err    error
}

// Run enumerates policy on the position bound to stack. The baseline is a
// score of zero: a leaf only becomes the best if it is strictly better, so a
// Result with Found false means nothing beat the baseline. If ctx is
// cancelled, Run unwinds and returns the best so far together with ctx.Err().
func Run(ctx context.Context, stack *board.StateStack, policy Policy, e eval.Evaluator, opts ...Option) (Result, error) {
	cfg := config{logger: zap.NewNop(), stats: stats.Noop{}}
	for _, o := range opts {
		o(&cfg)
	}
	if policy.Depth < 1 || policy.Candidates == nil {
		return Result{}, ErrInvalidPolicy
	}

	pos := stack.Position()
	start := time.Now()
	base := stack.Depth()
	w := &walker{
		ctx:    ctx,
		stack:  stack,
		policy: policy,
		eval:   e,
		root:   pos.SideToMove,
		path:   make([]board.Move, 0, policy.Depth),
	}
	w.res.Side = w.root

	cfg.logger.Debug("enumeration started",
		zap.String("policy", policy.Name),
		zap.Int("depth", policy.Depth),
		zap.String("fen", pos.ToFEN()))

	for groups := max(policy.Groups, 1); w.group < groups; w.group++ {
		if !w.walk() {
			break
		}
	}

	if stack.Depth() != base {
		panic(fmt.Sprintf("enumerate: stack depth %d after run, want %d", stack.Depth(), base))
	}

	w.res.Elapsed = time.Since(start)
	cfg.stats.IncCounter(stats.MetricEnumerations, 1)
	cfg.stats.IncCounter(stats.MetricEnumLeaves, int64(w.res.Leaves))
	cfg.stats.ObserveHistogram(stats.MetricEnumSeconds, w.res.Elapsed.Seconds())
	cfg.logger.Info("enumeration finished",
		zap.String("policy", policy.Name),
		zap.Uint64("leaves", w.res.Leaves),
		zap.Bool("found", w.res.Found),
		zap.Int("cp", w.res.Centipawns),
		zap.Duration("elapsed", w.res.Elapsed),
		zap.Error(w.err))

	return w.res, w.err
}

// walk returns false once the context is done.
func (w *walker) walk() bool {
	pos := w.stack.Position()
	if len(w.path) == w.policy.Depth {
		w.leaf(pos)
		if w.res.Leaves%cancelCheckInterval == 0 {
			if err := w.ctx.Err(); err != nil {
				w.err = err
				return false
			}
		}
		return true
	}

	for _, m := range w.policy.Candidates(pos, w.group, w.path) {
		if w.policy.Eligible != nil && !w.policy.Eligible(pos, m) {
			continue
		}
		if captured := pos.PieceAt(m.To()); captured != board.NoPiece && captured.Type() == board.King {
			panic(fmt.Sprintf("enumerate: %s captures the king in %s", m, pos.ToFEN()))
		}

		if w.policy.HoldSide {
			w.stack.PushHeld(m)
		} else {
			w.stack.Push(m)
		}
		w.path = append(w.path, m)
		ok := w.walk()
		w.path = w.path[:len(w.path)-1]
		w.stack.Pop()
		if !ok {
			return false
		}
	}
	return true
}

func (w *walker) leaf(pos *board.Position) {
	w.res.Leaves++
	v := w.eval.Evaluate(pos)
	if pos.SideToMove != w.root {
		v = -v
	}
	cp := score.ToCentipawns(v, pos.MaterialCount())
	if cp <= w.res.Centipawns {
		return
	}
	w.res.Found = true
	w.res.Centipawns = cp
	w.res.Value = v
	w.res.FEN = pos.ToFEN()
	w.res.Path = append(w.res.Path[:0], w.path...)
}
