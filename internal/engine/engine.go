// Package engine runs iterative-deepening alpha-beta searches in the
// background for the UCI session.
//
// An Engine is either idle or searching. StartThinking launches a search on
// its own goroutine and returns at once; the search reports through the
// OnInfo and OnBestMove callbacks and then goes idle. WaitUntilIdle blocks
// until that has happened, so a caller that waits before touching the
// position never races the search.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/score"
	"github.com/hailam/chessrelocate/internal/stats"
	"github.com/hailam/chessrelocate/internal/tablebase"
)

const (
	aspirationDepth  = 5
	aspirationWindow = score.PawnValue / 6
	tbProbeTimeout   = 2 * time.Second
	maxSkillLevel    = 20
)

// Info is one "info" line worth of search progress.
type Info struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Value    score.Value
	Bound    Bound
	// Material of the root position, for score normalisation.
	Material int
	Nodes    uint64
	Time     time.Duration
	HashFull int
	TBHits   uint64
	PV       []board.Move
}

// NPS is the search speed in nodes per second.
func (i Info) NPS() uint64 {
	ms := uint64(i.Time.Milliseconds())
	if ms == 0 {
		return 0
	}
	return i.Nodes * 1000 / ms
}

// Engine owns the transposition table and the search threads.
type Engine struct {
	logger *zap.Logger
	stats  stats.Collector
	eval   eval.Evaluator
	prober tablebase.Prober

	tt      *TranspositionTable
	workers []*Worker

	multiPV      int
	skillLevel   int
	moveOverhead time.Duration
	probeLimit   int
	rule50       bool

	mu        sync.Mutex
	idle      *sync.Cond
	searching bool

	abort     atomic.Bool
	stopped   atomic.Bool
	pondering atomic.Bool
	infinite  atomic.Bool
	tbHits    atomic.Uint64

	// Search-local state, owned by the search goroutine.
	limits   Limits
	tm       TimeManager
	material int

	// OnInfo receives progress from the main search thread.
	OnInfo func(Info)
	// OnBestMove receives the final answer; ponder may be NoMove.
	OnBestMove func(best, ponder board.Move)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithStats sets the metrics collector.
func WithStats(s stats.Collector) Option { return func(e *Engine) { e.stats = s } }

// WithEvaluator replaces the classical evaluator.
func WithEvaluator(ev eval.Evaluator) Option { return func(e *Engine) { e.eval = ev } }

// WithProber enables root tablebase probing.
func WithProber(p tablebase.Prober) Option { return func(e *Engine) { e.prober = p } }

// WithHash sets the initial transposition table size in megabytes.
func WithHash(mb int) Option { return func(e *Engine) { e.tt = NewTranspositionTable(mb) } }

// WithThreads sets the initial number of search threads.
func WithThreads(n int) Option { return func(e *Engine) { e.SetThreads(n) } }

// New returns an idle engine with one thread and a 16 MB table unless
// options say otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:       zap.NewNop(),
		stats:        stats.Noop{},
		eval:         eval.Classical{},
		multiPV:      1,
		skillLevel:   maxSkillLevel,
		moveOverhead: 10 * time.Millisecond,
		probeLimit:   7,
		rule50:       true,
	}
	e.idle = sync.NewCond(&e.mu)
	for _, o := range opts {
		o(e)
	}
	if e.tt == nil {
		e.tt = NewTranspositionTable(16)
	}
	if len(e.workers) == 0 {
		e.SetThreads(1)
	}
	return e
}

// The setters below must only be called while the engine is idle.

// SetThreads resizes the worker pool.
func (e *Engine) SetThreads(n int) {
	n = max(n, 1)
	e.workers = e.workers[:0]
	for i := range n {
		e.workers = append(e.workers, newWorker(i, e.tt, e.eval, &e.abort))
	}
}

// Threads is the number of search threads.
func (e *Engine) Threads() int { return len(e.workers) }

// ResizeHash replaces the transposition table with an empty one.
func (e *Engine) ResizeHash(mb int) {
	e.tt = NewTranspositionTable(mb)
	for _, w := range e.workers {
		w.tt = e.tt
	}
}

// SetMultiPV sets the number of principal variations reported.
func (e *Engine) SetMultiPV(n int) { e.multiPV = max(n, 1) }

// SetSkillLevel caps the search depth below level 20.
func (e *Engine) SetSkillLevel(level int) { e.skillLevel = min(max(level, 0), maxSkillLevel) }

// SetMoveOverhead sets the time reserved for communication per move.
func (e *Engine) SetMoveOverhead(d time.Duration) { e.moveOverhead = d }

// SetTablebase configures root probing. A nil prober disables it.
func (e *Engine) SetTablebase(p tablebase.Prober, probeLimit int, rule50 bool) {
	e.prober = p
	e.probeLimit = probeLimit
	e.rule50 = rule50
}

// Clear forgets everything learnt so far, for a new game.
func (e *Engine) Clear() {
	e.tt.Clear()
	for _, w := range e.workers {
		w.orderer.Reset()
	}
}

// HashFull reports table usage in per mille.
func (e *Engine) HashFull() int { return e.tt.HashFull() }

// NodesSearched sums the nodes of every thread in the last or current search.
func (e *Engine) NodesSearched() uint64 {
	var n uint64
	for _, w := range e.workers {
		n += w.Nodes()
	}
	return n
}

// IsSearching reports whether a search is running or parked.
func (e *Engine) IsSearching() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searching
}

// IsPondering reports whether the running search is a ponder search that
// has not been converted by PonderHit.
func (e *Engine) IsPondering() bool { return e.pondering.Load() }

// StartThinking searches pos in the background. lineage is the hash of every
// position of the game up to and including pos, used for repetition
// detection. A running search is waited for first.
func (e *Engine) StartThinking(pos *board.Position, lineage []uint64, limits Limits) {
	e.WaitUntilIdle()

	e.mu.Lock()
	e.searching = true
	e.mu.Unlock()

	if limits.StartTime.IsZero() {
		limits.StartTime = time.Now()
	}
	e.abort.Store(false)
	e.stopped.Store(false)
	e.pondering.Store(limits.Ponder)
	e.infinite.Store(limits.Infinite)
	e.tbHits.Store(0)
	e.limits = limits

	root := pos.Copy()
	lineage = append([]uint64(nil), lineage...)
	go e.think(root, lineage)
}

// Stop ends the search as soon as possible. The best move found so far is
// still reported.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped.Store(true)
	e.abort.Store(true)
	e.pondering.Store(false)
	e.idle.Broadcast()
	e.mu.Unlock()
}

// PonderHit turns the running ponder search into a normal timed one.
func (e *Engine) PonderHit() {
	e.mu.Lock()
	e.pondering.Store(false)
	e.idle.Broadcast()
	e.mu.Unlock()
}

// WaitUntilIdle blocks until no search is running.
func (e *Engine) WaitUntilIdle() {
	e.mu.Lock()
	for e.searching {
		e.idle.Wait()
	}
	e.mu.Unlock()
}

func (e *Engine) think(pos *board.Position, lineage []uint64) {
	best, ponder := e.search(pos, lineage)

	// A ponder or infinite search may not answer before the GUI says so.
	e.mu.Lock()
	for !e.stopped.Load() && (e.pondering.Load() || e.infinite.Load()) {
		e.idle.Wait()
	}
	e.mu.Unlock()

	nodes := e.NodesSearched()
	e.stats.IncCounter(stats.MetricSearches, 1)
	e.stats.IncCounter(stats.MetricNodes, int64(nodes))
	e.stats.SetGauge(stats.MetricHashFull, int64(e.tt.HashFull()))
	e.logger.Debug("search finished",
		zap.Stringer("bestmove", best),
		zap.Uint64("nodes", nodes),
		zap.Duration("elapsed", e.tm.Elapsed()))

	if e.OnBestMove != nil {
		e.OnBestMove(best, ponder)
	}

	e.mu.Lock()
	e.searching = false
	e.idle.Broadcast()
	e.mu.Unlock()
}

// search runs all threads and returns the main thread's best move.
func (e *Engine) search(pos *board.Position, lineage []uint64) (board.Move, board.Move) {
	e.tt.NewSearch()
	e.material = pos.MaterialCount()
	e.tm.Init(e.limits, pos.SideToMove, pos.Ply(), e.moveOverhead)

	legal := pos.GenerateLegalMoves()
	rootMoves := e.filterSearchMoves(legal)
	if len(rootMoves) == 0 {
		v := score.Draw
		if pos.InCheck() {
			v = score.MatedIn(0)
		}
		e.report(Info{Depth: 0, MultiPV: 1, Value: v, Bound: BoundExact})
		return board.NoMove, board.NoMove
	}

	tbValue, tbOK := e.probeRoot(pos, &rootMoves)

	for i, w := range e.workers {
		w.prepare(pos, lineage, rootMoves)
		w.onTick = nil
		if i == 0 {
			w.onTick = e.checkLimits
		}
	}

	var lines []Line
	var g errgroup.Group
	for i, w := range e.workers {
		g.Go(func() error {
			if i == 0 {
				lines = e.iterate(w, tbValue, tbOK)
				e.abort.Store(true)
				return nil
			}
			e.iterate(w, tbValue, tbOK)
			return nil
		})
	}
	_ = g.Wait()

	if len(lines) == 0 || lines[0].Move == board.NoMove {
		return rootMoves[0], board.NoMove
	}
	best := lines[0]
	ponder := board.NoMove
	if len(best.PV) > 1 {
		ponder = best.PV[1]
	} else {
		ponder = e.ponderFromTT(pos, best.Move)
	}
	return best.Move, ponder
}

func (e *Engine) filterSearchMoves(legal *board.MoveList) []board.Move {
	all := append([]board.Move(nil), legal.Slice()...)
	if len(e.limits.SearchMoves) == 0 {
		return all
	}
	var out []board.Move
	for _, m := range e.limits.SearchMoves {
		if legal.Contains(m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// probeRoot restricts the root to the tablebase move when the position is
// small enough, returning the tablebase value.
func (e *Engine) probeRoot(pos *board.Position, rootMoves *[]board.Move) (score.Value, bool) {
	if e.prober == nil || len(e.limits.SearchMoves) > 0 || pos.CastlingRights != 0 {
		return 0, false
	}
	limit := min(e.probeLimit, e.prober.MaxPieces())
	if tablebase.CountPieces(pos) > limit {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), tbProbeTimeout)
	defer cancel()
	res, err := e.prober.ProbeRoot(ctx, pos)
	if err != nil {
		e.stats.IncCounter(stats.MetricTBProbeFailures, 1)
		e.logger.Debug("root tablebase probe failed", zap.Error(err))
		return 0, false
	}
	for _, m := range *rootMoves {
		if m == res.Move {
			*rootMoves = []board.Move{m}
			e.tbHits.Add(1)
			return tablebase.WDLToScore(res.WDL, 0, e.rule50), true
		}
	}
	return 0, false
}

func (e *Engine) ponderFromTT(pos *board.Position, best board.Move) board.Move {
	p := pos.Copy()
	p.Apply(best)
	entry, ok := e.tt.Probe(p.Hash)
	if !ok || !entry.Move.IsOK() {
		return board.NoMove
	}
	if p.GenerateLegalMoves().Contains(entry.Move) {
		return entry.Move
	}
	return board.NoMove
}

// checkLimits runs on the main thread and raises the abort flag once the
// clock or the node budget is exhausted.
func (e *Engine) checkLimits() {
	if e.pondering.Load() {
		return
	}
	if e.limits.Nodes > 0 && e.NodesSearched() >= e.limits.Nodes {
		e.abort.Store(true)
		return
	}
	if e.tm.Managed() && !e.infinite.Load() && e.tm.ShouldStop() {
		e.abort.Store(true)
	}
}

func (e *Engine) report(info Info) {
	info.Material = e.material
	info.Nodes = e.NodesSearched()
	info.Time = e.tm.Elapsed()
	info.HashFull = e.tt.HashFull()
	info.TBHits = e.tbHits.Load()
	if e.OnInfo != nil {
		e.OnInfo(info)
	}
}
