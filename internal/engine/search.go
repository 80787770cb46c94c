package engine

import (
	"slices"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/score"
)

// Line is one principal variation at a completed depth.
type Line struct {
	Move     board.Move
	Value    score.Value
	Depth    int
	SelDepth int
	PV       []board.Move
}

// maxDepth is the deepest iteration this search may start.
func (e *Engine) maxDepth() int {
	d := maxSearchPly - 1
	if e.limits.Depth > 0 {
		d = min(d, e.limits.Depth)
	}
	if e.skillLevel < maxSkillLevel {
		d = min(d, 1+e.skillLevel)
	}
	return d
}

// iterate runs iterative deepening on w. The main thread (id 0) reports
// progress, manages time and searches MultiPV lines; helpers search a
// single line, skipping depths to spread across the tree.
func (e *Engine) iterate(w *Worker, tbValue score.Value, tbOK bool) []Line {
	main := w.id == 0
	multiPV := 1
	if main {
		multiPV = min(e.multiPV, len(w.rootMoves))
	}

	var lines, prev []Line
	var lastBest board.Move
	stability, changes := 0, 0
	maxDepth := e.maxDepth()

	for depth := 1; depth <= maxDepth; depth++ {
		if !main && depth > 1 && (depth+w.id)%3 == 0 {
			continue
		}

		w.excluded = w.excluded[:0]
		current := make([]Line, 0, multiPV)
		for pvIdx := range multiPV {
			var guess score.Value
			if pvIdx < len(prev) {
				guess = prev[pvIdx].Value
			}
			line, ok := e.aspiration(w, depth, guess, depth >= aspirationDepth && pvIdx < len(prev))
			if !ok {
				break
			}
			if tbOK && line.Value < score.MateInMaxPly && line.Value > score.MatedInMaxPly {
				line.Value = tbValue
			}
			current = append(current, line)
			w.excluded = append(w.excluded, line.Move)
		}
		if e.abort.Load() && len(current) < multiPV {
			// An interrupted iteration keeps only its completed lines.
			if len(current) > 0 {
				lines = mergeLines(current, prev)
			}
			break
		}
		if len(current) == 0 {
			break
		}
		slices.SortStableFunc(current, func(a, b Line) int { return int(b.Value - a.Value) })
		lines, prev = current, current

		if !main {
			continue
		}
		for i, l := range lines {
			e.report(Info{
				Depth:    l.Depth,
				SelDepth: l.SelDepth,
				MultiPV:  i + 1,
				Value:    l.Value,
				Bound:    BoundExact,
				PV:       l.PV,
			})
		}

		if best := lines[0].Move; best == lastBest {
			stability++
		} else {
			if lastBest != board.NoMove {
				changes++
			}
			stability = 0
			lastBest = best
		}
		if depth%4 == 0 {
			changes /= 2
		}

		if e.mateFound(lines[0].Value) || e.abort.Load() {
			break
		}
		if e.tm.Managed() && !e.pondering.Load() && !e.infinite.Load() {
			e.tm.Adjust(stability, changes)
			if e.tm.PastOptimum() {
				break
			}
		}
	}
	return lines
}

// aspiration searches one root line with a window around guess, widening
// on failure. It returns false if the search was aborted before a value was
// established.
func (e *Engine) aspiration(w *Worker, depth int, guess score.Value, narrow bool) (Line, bool) {
	alpha, beta := -score.Infinite, score.Infinite
	delta := aspirationWindow
	if narrow {
		alpha = max(guess-delta, -score.Infinite)
		beta = min(guess+delta, score.Infinite)
	}
	for {
		w.selDepth = 0
		v := w.negamax(depth, 0, alpha, beta, board.NoMove, true)
		if e.abort.Load() {
			return Line{}, false
		}
		switch {
		case v <= alpha && alpha > -score.Infinite:
			beta = (alpha + beta) / 2
			alpha = max(v-delta, -score.Infinite)
		case v >= beta && beta < score.Infinite:
			beta = min(v+delta, score.Infinite)
		default:
			pv := w.pv.line()
			if len(pv) == 0 {
				return Line{}, false
			}
			return Line{Move: pv[0], Value: v, Depth: depth, SelDepth: w.selDepth, PV: pv}, true
		}
		delta += delta / 2
	}
}

// mateFound reports that a "go mate N" search can stop.
func (e *Engine) mateFound(v score.Value) bool {
	if e.limits.Mate <= 0 || v < score.MateInMaxPly {
		return false
	}
	return int(score.Mate-v+1)/2 <= e.limits.Mate
}

// mergeLines fills the lines an interrupted iteration did not reach with
// the previous iteration's results.
func mergeLines(current, prev []Line) []Line {
	out := append([]Line(nil), current...)
	for _, p := range prev {
		if !slices.ContainsFunc(out, func(l Line) bool { return l.Move == p.Move }) {
			out = append(out, p)
		}
	}
	return out
}
