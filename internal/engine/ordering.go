package engine

import (
	"github.com/hailam/chessrelocate/internal/board"
)

// Move ordering priorities.
const (
	ttMoveScore     = 10_000_000
	goodCaptureBase = 1_000_000
	killerScore1    = 900_000
	killerScore2    = 800_000
	counterScore    = 790_000
	historyMax      = 400_000
)

// mvvLva ranks captures by victim first, attacker second.
var mvvLva = [6][6]int{
	//       P    N    B    R    Q    K  (attacker)
	/* P */ {15, 14, 14, 13, 12, 11},
	/* N */ {25, 24, 24, 23, 22, 21},
	/* B */ {35, 34, 34, 33, 32, 31},
	/* R */ {45, 44, 44, 43, 42, 41},
	/* Q */ {55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// MoveOrderer holds the per-thread ordering heuristics.
type MoveOrderer struct {
	killers      [maxSearchPly + 1][2]board.Move
	history      [2][64][64]int
	counterMoves [12][64]board.Move
}

// Clear forgets killers and counter moves and halves the history, keeping
// some knowledge between moves of the same game.
func (mo *MoveOrderer) Clear() {
	clear(mo.killers[:])
	clear(mo.counterMoves[:])
	mo.ageHistory()
}

// Reset forgets everything, for a new game.
func (mo *MoveOrderer) Reset() {
	*mo = MoveOrderer{}
}

func (mo *MoveOrderer) ageHistory() {
	for c := range mo.history {
		for i := range mo.history[c] {
			for j := range mo.history[c][i] {
				mo.history[c][i][j] /= 2
			}
		}
	}
}

// ScoreMoves fills scores for every move in moves.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, scores []int, ply int, ttMove, prevMove board.Move) {
	counter := mo.counterMove(pos, prevMove)
	for i := range moves.Len() {
		m := moves.Get(i)
		s := mo.scoreMove(pos, m, ply, ttMove)
		if m == counter && s < killerScore2 {
			s = counterScore
		}
		scores[i] = s
	}
}

func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return ttMoveScore
	}
	if m.IsCapture(pos) {
		attacker := pos.PieceAt(m.From()).Type()
		victim := board.Pawn
		if m.Type() != board.EnPassant {
			victim = pos.PieceAt(m.To()).Type()
		}
		s := goodCaptureBase + mvvLva[victim][attacker]*1000
		if m.Type() == board.Promotion {
			s += int(m.Promotion()) * 100
		}
		return s
	}
	if m.Type() == board.Promotion {
		return goodCaptureBase - 1000 + int(m.Promotion())*100
	}
	if m == mo.killers[ply][0] {
		return killerScore1
	}
	if m == mo.killers[ply][1] {
		return killerScore2
	}
	return mo.history[pos.SideToMove][m.From()][m.To()]
}

// PickMove moves the best remaining move to index, sorting lazily.
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers records a quiet move that caused a cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply > maxSearchPly || mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory rewards or punishes a quiet move by c.
func (mo *MoveOrderer) UpdateHistory(c board.Color, m board.Move, depth int, good bool) {
	h := &mo.history[c][m.From()][m.To()]
	bonus := depth * depth
	if good {
		*h += bonus
		if *h > historyMax {
			mo.ageHistory()
		}
		return
	}
	*h = max(*h-bonus, -historyMax)
}

// HistoryScore returns the history value of a quiet move by c.
func (mo *MoveOrderer) HistoryScore(c board.Color, m board.Move) int {
	return mo.history[c][m.From()][m.To()]
}

// UpdateCounterMove remembers reply as the refutation of prev. pos is the
// position after prev.
func (mo *MoveOrderer) UpdateCounterMove(pos *board.Position, prev, reply board.Move) {
	if !prev.IsOK() {
		return
	}
	if pc := pos.PieceAt(prev.To()); pc != board.NoPiece {
		mo.counterMoves[pc][prev.To()] = reply
	}
}

func (mo *MoveOrderer) counterMove(pos *board.Position, prev board.Move) board.Move {
	if !prev.IsOK() {
		return board.NoMove
	}
	pc := pos.PieceAt(prev.To())
	if pc == board.NoPiece {
		return board.NoMove
	}
	return mo.counterMoves[pc][prev.To()]
}
