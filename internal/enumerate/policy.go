package enumerate

import (
	"errors"
	"fmt"

	"github.com/hailam/chessrelocate/internal/board"
)

// Mode selects one of the built-in policies.
type Mode int

const (
	// ModeRelocation moves pieces directly to free squares, ignoring legality.
	ModeRelocation Mode = 1
	// ModeLegal plays legal moves for the same side.
	ModeLegal Mode = 2
)

// ErrInvalidMode is returned by ParseMode for anything but "1" or "2".
var ErrInvalidMode = errors.New("enumerate: invalid mode")

// ParseMode accepts "1" or "2".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "1":
		return ModeRelocation, nil
	case "2":
		return ModeLegal, nil
	}
	return 0, fmt.Errorf("%w %q", ErrInvalidMode, s)
}

// Policy builds the default policy for m with pos as the root.
func (m Mode) Policy(pos *board.Position, gen MoveGenerator) Policy {
	if m == ModeLegal {
		return LegalRelocation(gen, DefaultDeny(pos.SideToMove))
	}
	return Relocation(DefaultRelocationSets(pos.SideToMove))
}

// RelocationSets are the squares Relocation draws from. Count pieces are
// moved per leaf; both lists are taken in the given order.
type RelocationSets struct {
	Sources      []board.Square
	Destinations []board.Square
	Count        int
}

// DefaultRelocationSets are the back-rank pieces except the king, moved to
// the four middle ranks. Black's sets are the mirror image of White's.
func DefaultRelocationSets(c board.Color) RelocationSets {
	sets := RelocationSets{
		Sources: []board.Square{board.A1, board.B1, board.C1, board.D1, board.F1, board.G1, board.H1},
		Count:   4,
	}
	for sq := board.A3; sq <= board.H6; sq++ {
		sets.Destinations = append(sets.Destinations, sq)
	}
	if c == board.Black {
		for i := range sets.Sources {
			sets.Sources[i] = sets.Sources[i].Mirror()
		}
		for i := range sets.Destinations {
			sets.Destinations[i] = sets.Destinations[i].Mirror()
		}
	}
	return sets
}

// Relocation picks Count sources and Count destinations, each as an
// ascending combination, and moves the i-th source to the i-th destination.
// Moves are built without a legality check. Every source combination is one
// group, so all destination combinations of a source combination are
// visited before the next source combination. Over a full run the number of
// leaves is C(len(Sources), Count) * C(len(Destinations), Count), less any
// branches cut by ineligible moves.
func Relocation(sets RelocationSets) Policy {
	dstIndex := indexOf(sets.Destinations)
	m, k := len(sets.Destinations), sets.Count
	sources := combinations(len(sets.Sources), k)

	return Policy{
		Name:   "all relocations",
		Depth:  k,
		Groups: len(sources),
		Candidates: func(_ *board.Position, group int, path []board.Move) []board.Move {
			if group >= len(sources) {
				return nil
			}
			ply := len(path)
			src := sets.Sources[sources[group][ply]]
			first := 0
			if ply > 0 {
				first = dstIndex[path[ply-1].To()] + 1
			}
			// Leave room for the remaining plies.
			last := m - (k - ply)
			var moves []board.Move
			for d := first; d <= last; d++ {
				moves = append(moves, board.NewMove(src, sets.Destinations[d]))
			}
			return moves
		},
		Eligible: relocatable,
		HoldSide: true,
	}
}

// relocatable accepts a move of the side to move's non-king, non-pawn piece
// onto an empty square.
func relocatable(pos *board.Position, m board.Move) bool {
	pc := pos.PieceAt(m.From())
	if pc == board.NoPiece || pc.Color() != pos.SideToMove {
		return false
	}
	if pt := pc.Type(); pt == board.King || pt == board.Pawn {
		return false
	}
	return pos.IsEmpty(m.To())
}

// combinations lists the ascending k-subsets of 0..n-1 in lexicographic
// order.
func combinations(n, k int) [][]int {
	if k < 1 || k > n {
		return nil
	}
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		out = append(out, append([]int(nil), idx...))
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func indexOf(squares []board.Square) map[board.Square]int {
	idx := make(map[board.Square]int, len(squares))
	for i, sq := range squares {
		idx[sq] = i
	}
	return idx
}

// Deny removes legal moves from LegalRelocation.
type Deny struct {
	// Squares are forbidden destinations.
	Squares board.Bitboard
	// NonNormal forbids castling, en passant and promotions.
	NonNormal bool
}

// DefaultDeny forbids moves into the opponent's two back ranks and every
// special move type.
func DefaultDeny(c board.Color) Deny {
	if c == board.Black {
		return Deny{Squares: board.Rank1 | board.Rank2, NonNormal: true}
	}
	return Deny{Squares: board.Rank7 | board.Rank8, NonNormal: true}
}

// Allows reports whether m passes the denylist.
func (d Deny) Allows(m board.Move) bool {
	if d.Squares.Has(m.To()) {
		return false
	}
	return !d.NonNormal || m.Type() == board.Normal
}

// LegalRelocation plays four legal moves in a row for the root side, the
// move being handed back after each one. King captures are never tried.
func LegalRelocation(gen MoveGenerator, deny Deny) Policy {
	return Policy{
		Name:  "4 legal moves",
		Depth: 4,
		Candidates: func(pos *board.Position, _ int, _ []board.Move) []board.Move {
			legal := gen.LegalMoves(pos)
			moves := legal[:0:0]
			for _, m := range legal {
				if !deny.Allows(m) {
					continue
				}
				if pc := pos.PieceAt(m.To()); pc != board.NoPiece && pc.Type() == board.King {
					continue
				}
				moves = append(moves, m)
			}
			return moves
		},
		HoldSide: true,
	}
}
