package board

import "fmt"

// Move packs a move into 16 bits:
//
//	bits 0-5   origin
//	bits 6-11  destination
//	bits 12-13 promotion piece (knight..queen)
//	bits 14-15 move type
type Move uint16

// MoveType tags the special-move kind.
type MoveType uint16

const (
	Normal    MoveType = 0 << 14
	Promotion MoveType = 1 << 14
	EnPassant MoveType = 2 << 14
	Castling  MoveType = 3 << 14
)

const (
	// NoMove is the absent move, printed as "(none)".
	NoMove Move = 0
	// NullMove passes the turn (b1b1 never occurs as a real move), printed "0000".
	NullMove Move = 65
)

// NewMove builds a normal origin->destination move.
func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

// NewPromotion builds a promotion to pt.
func NewPromotion(from, to Square, pt PieceType) Move {
	return NewMove(from, to) | Move(pt-Knight)<<12 | Move(Promotion)
}

// NewEnPassant builds an en-passant capture.
func NewEnPassant(from, to Square) Move {
	return NewMove(from, to) | Move(EnPassant)
}

// NewCastling builds a castling move encoded as the king's two-square step.
func NewCastling(from, to Square) Move {
	return NewMove(from, to) | Move(Castling)
}

func (m Move) From() Square         { return Square(m & 0x3F) }
func (m Move) To() Square           { return Square(m >> 6 & 0x3F) }
func (m Move) Type() MoveType       { return MoveType(m) & (3 << 14) }
func (m Move) Promotion() PieceType { return PieceType(m>>12&3) + Knight }

// IsOK reports whether m is neither NoMove nor NullMove.
func (m Move) IsOK() bool {
	return m != NoMove && m != NullMove
}

// IsCapture reports whether m removes an enemy piece in pos.
func (m Move) IsCapture(pos *Position) bool {
	return m.Type() == EnPassant || (m.Type() != Castling && !pos.IsEmpty(m.To()))
}

// String returns standard UCI text.
func (m Move) String() string {
	return m.UCI(false)
}

// UCI returns the move text; in Chess960 notation castling is written as
// king-takes-own-rook.
func (m Move) UCI(chess960 bool) string {
	switch m {
	case NoMove:
		return "(none)"
	case NullMove:
		return "0000"
	}
	to := m.To()
	if chess960 && m.Type() == Castling {
		to, _ = castlingRookSquares(m.From(), to)
	}
	s := m.From().String() + to.String()
	if m.Type() == Promotion {
		s += string(m.Promotion().Char())
	}
	return s
}

// ParseMove resolves UCI text against the legal moves of pos.
func ParseMove(s string, pos *Position, chess960 bool) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("invalid move %q", s)
	}
	moves := pos.GenerateLegalMoves()
	for _, m := range moves.Slice() {
		if m.UCI(chess960) == s {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("illegal move %q", s)
}

// MoveList is a fixed-capacity move buffer used by the generator.
type MoveList struct {
	moves [256]Move
	count int
}

// Add appends m.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves.
func (ml *MoveList) Len() int { return ml.count }

// Get returns the move at i.
func (ml *MoveList) Get(i int) Move { return ml.moves[i] }

// Swap exchanges two entries, used by move ordering.
func (ml *MoveList) Swap(i, j int) { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }

// Contains reports whether m is in the list.
func (ml *MoveList) Contains(m Move) bool {
	for _, x := range ml.moves[:ml.count] {
		if x == m {
			return true
		}
	}
	return false
}

// Slice aliases the filled part of the buffer.
func (ml *MoveList) Slice() []Move { return ml.moves[:ml.count] }
