package engine

import (
	"math"
	"sync/atomic"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/eval"
	"github.com/hailam/chessrelocate/internal/score"
)

const maxSearchPly = score.MaxPly

// Pruning margins in internal units.
const (
	rfpMargin        = score.PawnValue * 3 / 4
	razorMargin      = score.PawnValue * 3
	deltaMargin      = score.PawnValue * 2
	historyPruneMin  = -4000
	timeCheckNodes   = 1024
	maxQuiescencePly = 32
)

var futilityMargin = [4]score.Value{0, score.PawnValue * 2, score.PawnValue * 3, score.PawnValue * 5}

var lmpThreshold = [8]int{0, 5, 8, 12, 17, 23, 30, 38}

// lmrReductions[d][m] is round(ln(d) * ln(m) / 2.25) plies.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(0.5 + math.Log(float64(d))*math.Log(float64(m))/2.25)
		}
	}
}

var pieceValues = [6]score.Value{
	eval.PawnValue * score.PawnValue / 100,
	eval.KnightValue * score.PawnValue / 100,
	eval.BishopValue * score.PawnValue / 100,
	eval.RookValue * score.PawnValue / 100,
	eval.QueenValue * score.PawnValue / 100,
	0,
}

type pvTable struct {
	length [maxSearchPly + 1]int
	moves  [maxSearchPly + 1][maxSearchPly + 1]board.Move
}

func (t *pvTable) line() []board.Move {
	return append([]board.Move(nil), t.moves[0][:t.length[0]]...)
}

// Worker is one Lazy SMP search thread. It owns a copy of the root position
// and shares the transposition table and the stop flag.
type Worker struct {
	id       int
	pos      *board.Position
	eval     eval.Evaluator
	tt       *TranspositionTable
	orderer  MoveOrderer
	pv       pvTable
	nodes    atomic.Uint64
	selDepth int

	// history holds the game lineage followed by the search path.
	history     []uint64
	rootMoves   []board.Move
	excluded    []board.Move
	staticEvals [maxSearchPly + 2]score.Value

	abort *atomic.Bool
	// onTick is polled by the main thread every timeCheckNodes nodes.
	onTick func()
}

func newWorker(id int, tt *TranspositionTable, e eval.Evaluator, abort *atomic.Bool) *Worker {
	return &Worker{id: id, tt: tt, eval: e, abort: abort}
}

// prepare readies the worker for a search of pos with the given lineage.
func (w *Worker) prepare(pos *board.Position, lineage []uint64, rootMoves []board.Move) {
	w.pos = pos.Copy()
	w.history = append(w.history[:0], lineage...)
	if len(w.history) == 0 || w.history[len(w.history)-1] != w.pos.Hash {
		w.history = append(w.history, w.pos.Hash)
	}
	w.rootMoves = rootMoves
	w.excluded = w.excluded[:0]
	w.nodes.Store(0)
	w.selDepth = 0
	w.orderer.Clear()
}

// Nodes is the number of nodes visited in the current search.
func (w *Worker) Nodes() uint64 { return w.nodes.Load() }

func (w *Worker) evaluate() score.Value {
	v := w.eval.Evaluate(w.pos)
	return min(max(v, score.TBLossInMaxPly+1), score.TBWinInMaxPly-1)
}

func (w *Worker) stopped() bool { return w.abort.Load() }

func (w *Worker) searchable(m board.Move) bool {
	for _, x := range w.excluded {
		if x == m {
			return false
		}
	}
	if len(w.rootMoves) == 0 {
		return true
	}
	for _, x := range w.rootMoves {
		if x == m {
			return true
		}
	}
	return false
}

// isDraw checks the fifty-move rule, insufficient material and repetition
// of any earlier position with the same side to move since the last
// irreversible move.
func (w *Worker) isDraw() bool {
	if w.pos.HalfMoveClock >= 100 && !w.pos.IsCheckmate() {
		return true
	}
	if w.pos.IsInsufficientMaterial() {
		return true
	}
	n := len(w.history) - 1
	stop := max(0, n-w.pos.HalfMoveClock)
	for i := n - 2; i >= stop; i -= 2 {
		if w.history[i] == w.pos.Hash {
			return true
		}
	}
	return false
}

func (w *Worker) push(m board.Move) board.UndoRecord {
	rec := w.pos.Apply(m)
	w.history = append(w.history, w.pos.Hash)
	return rec
}

func (w *Worker) pop(m board.Move, rec board.UndoRecord) {
	w.history = w.history[:len(w.history)-1]
	w.pos.Undo(m, rec)
}

func (w *Worker) tick() {
	n := w.nodes.Add(1)
	if w.onTick != nil && n%timeCheckNodes == 0 {
		w.onTick()
	}
}

// negamax is a principal variation search returning the value of the
// position from the side to move's point of view.
func (w *Worker) negamax(depth, ply int, alpha, beta score.Value, prev board.Move, pvNode bool) score.Value {
	w.pv.length[ply] = ply
	if ply >= maxSearchPly-1 {
		return w.evaluate()
	}
	if depth <= 0 {
		return w.quiescence(ply, 0, alpha, beta)
	}

	w.tick()
	if w.stopped() {
		return 0
	}
	w.selDepth = max(w.selDepth, ply)

	root := ply == 0
	if !root {
		if w.isDraw() {
			return score.Draw
		}
		// Mate distance pruning.
		alpha = max(alpha, score.MatedIn(ply))
		beta = min(beta, score.MateIn(ply+1))
		if alpha >= beta {
			return alpha
		}
	}

	var ttMove board.Move
	entry, found := w.tt.Probe(w.pos.Hash)
	if found {
		ttMove = entry.Move
		if !root && !pvNode && int(entry.Depth) >= depth {
			v := valueFromTT(score.Value(entry.Value), ply)
			switch {
			case entry.Bound == BoundExact,
				entry.Bound == BoundLower && v >= beta,
				entry.Bound == BoundUpper && v <= alpha:
				return v
			}
		}
	}

	inCheck := w.pos.InCheck()
	staticEval := score.None
	if !inCheck {
		staticEval = w.evaluate()
	}
	w.staticEvals[ply] = staticEval
	improving := ply >= 2 && !inCheck && w.staticEvals[ply-2] != score.None && staticEval > w.staticEvals[ply-2]

	if !root && !pvNode && !inCheck {
		// Reverse futility pruning.
		if depth <= 6 && beta < score.TBWinInMaxPly {
			margin := rfpMargin * score.Value(depth)
			if improving {
				margin -= rfpMargin / 4
			}
			if staticEval-margin >= beta {
				return staticEval
			}
		}

		// Razoring.
		if depth <= 2 && staticEval+razorMargin*score.Value(depth) <= alpha {
			if v := w.quiescence(ply, 0, alpha, beta); v <= alpha {
				return v
			}
		}

		// Null move pruning.
		if depth >= 3 && prev != board.NullMove && staticEval >= beta && w.pos.HasNonPawnMaterial(w.pos.SideToMove) {
			r := min(2+depth/4, depth-1)
			rec := w.pos.Pass()
			w.history = append(w.history, w.pos.Hash)
			v := -w.negamax(depth-1-r, ply+1, -beta, -beta+1, board.NullMove, false)
			w.history = w.history[:len(w.history)-1]
			w.pos.Unpass(rec)
			if w.stopped() {
				return 0
			}
			if v >= beta {
				if v >= score.TBWinInMaxPly {
					v = beta
				}
				return v
			}
		}
	}

	// Internal iterative reduction.
	if ttMove == board.NoMove && depth >= 6 && !root {
		depth--
	}

	pruneQuiets := !root && !inCheck && depth <= 3 && staticEval+futilityMargin[depth] <= alpha

	moves := w.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return score.MatedIn(ply)
		}
		return score.Draw
	}

	var scores [256]int
	w.orderer.ScoreMoves(w.pos, moves, scores[:], ply, ttMove, prev)

	extension := 0
	if inCheck {
		extension = 1
	}

	bestValue := -score.Infinite
	bestMove := board.NoMove
	bound := BoundUpper
	searched := 0
	var quietsTried [64]board.Move
	nQuiets := 0

	for i := range moves.Len() {
		PickMove(moves, scores[:], i)
		m := moves.Get(i)
		if root && !w.searchable(m) {
			continue
		}

		quiet := !m.IsCapture(w.pos) && m.Type() != board.Promotion
		if quiet && searched > 0 && !root && !inCheck && bestValue > score.TBLossInMaxPly {
			if pruneQuiets {
				continue
			}
			if depth < len(lmpThreshold) && m != ttMove {
				limit := lmpThreshold[depth]
				if !improving {
					limit = limit * 2 / 3
				}
				if searched >= limit {
					continue
				}
			}
			if depth <= 3 && w.orderer.HistoryScore(w.pos.SideToMove, m) < historyPruneMin {
				continue
			}
		}

		us := w.pos.SideToMove
		rec := w.push(m)
		searched++
		newDepth := depth - 1 + extension

		var v score.Value
		if searched == 1 {
			v = -w.negamax(newDepth, ply+1, -beta, -alpha, m, pvNode)
		} else {
			reduction := 0
			if quiet && depth >= 3 && searched > 3 && !inCheck {
				reduction = lmrReductions[min(depth, 63)][min(searched, 63)]
				if !improving {
					reduction++
				}
				if pvNode {
					reduction--
				}
				reduction -= w.orderer.HistoryScore(us, m) / 8192
				reduction = min(max(reduction, 0), newDepth-1)
			}
			v = -w.negamax(newDepth-reduction, ply+1, -alpha-1, -alpha, m, false)
			if v > alpha && reduction > 0 {
				v = -w.negamax(newDepth, ply+1, -alpha-1, -alpha, m, false)
			}
			if v > alpha && v < beta && pvNode {
				v = -w.negamax(newDepth, ply+1, -beta, -alpha, m, true)
			}
		}
		w.pop(m, rec)

		if w.stopped() {
			return 0
		}

		if v > bestValue {
			bestValue = v
			if v > alpha {
				bestMove = m
				bound = BoundExact
				alpha = v
				w.pv.moves[ply][ply] = m
				copy(w.pv.moves[ply][ply+1:], w.pv.moves[ply+1][ply+1:w.pv.length[ply+1]])
				w.pv.length[ply] = max(w.pv.length[ply+1], ply+1)
			}
		}

		if v >= beta {
			bound = BoundLower
			if quiet {
				w.orderer.UpdateKillers(m, ply)
				w.orderer.UpdateHistory(us, m, depth, true)
				for _, q := range quietsTried[:nQuiets] {
					w.orderer.UpdateHistory(us, q, depth, false)
				}
				w.orderer.UpdateCounterMove(w.pos, prev, m)
			}
			break
		}
		if quiet && nQuiets < len(quietsTried) {
			quietsTried[nQuiets] = m
			nQuiets++
		}
	}

	if searched == 0 {
		// Every root move was excluded.
		return alpha
	}

	w.tt.Store(w.pos.Hash, depth, valueToTT(bestValue, ply), staticEval, bound, bestMove)
	return bestValue
}

// quiescence resolves captures until the position is quiet. In check every
// evasion is searched.
func (w *Worker) quiescence(ply, qply int, alpha, beta score.Value) score.Value {
	w.pv.length[ply] = ply
	if ply >= maxSearchPly-1 || qply > maxQuiescencePly {
		return w.evaluate()
	}
	w.tick()
	if w.stopped() {
		return 0
	}
	w.selDepth = max(w.selDepth, ply)
	if w.isDraw() {
		return score.Draw
	}

	inCheck := w.pos.InCheck()
	standPat := -score.Infinite
	var moves *board.MoveList
	if inCheck {
		moves = w.pos.GenerateLegalMoves()
		if moves.Len() == 0 {
			return score.MatedIn(ply)
		}
	} else {
		standPat = w.evaluate()
		if standPat >= beta {
			return standPat
		}
		alpha = max(alpha, standPat)
		if standPat+pieceValues[board.Queen]+deltaMargin < alpha {
			return alpha
		}
		moves = w.pos.GenerateCaptures()
	}

	var scores [256]int
	w.orderer.ScoreMoves(w.pos, moves, scores[:], maxSearchPly, board.NoMove, board.NoMove)

	best := standPat
	for i := range moves.Len() {
		PickMove(moves, scores[:], i)
		m := moves.Get(i)

		if !inCheck {
			gain := score.Value(0)
			if m.Type() == board.EnPassant {
				gain = pieceValues[board.Pawn]
			} else if pc := w.pos.PieceAt(m.To()); pc != board.NoPiece {
				gain = pieceValues[pc.Type()]
			}
			if m.Type() == board.Promotion {
				gain += pieceValues[board.Queen] - pieceValues[board.Pawn]
			}
			if standPat+gain+deltaMargin < alpha {
				continue
			}
		}

		rec := w.push(m)
		v := -w.quiescence(ply+1, qply+1, -beta, -alpha)
		w.pop(m, rec)
		if w.stopped() {
			return 0
		}

		if v > best {
			best = v
			if v > alpha {
				alpha = v
				if v >= beta {
					return v
				}
			}
		}
	}
	return max(best, alpha)
}
