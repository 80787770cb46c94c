package board

import "fmt"

// UndoRecord holds the state a single Apply overwrites. Feeding it back to
// Undo together with the same move restores the position exactly.
type UndoRecord struct {
	Captured       Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int
	Ply            int
	Hash           uint64
	PawnKey        uint64
	Checkers       Bitboard
}

// Apply plays m in place and returns the record Undo needs. The move is
// trusted: legality is the caller's concern, but m must start on a piece of
// the side to move.
func (p *Position) Apply(m Move) UndoRecord {
	rec := UndoRecord{
		Captured:       NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		FullMoveNumber: p.FullMoveNumber,
		Ply:            p.gamePly,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		Checkers:       p.Checkers,
	}

	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	piece := p.PieceAt(from)
	if piece == NoPiece || piece.Color() != us {
		panic(fmt.Sprintf("board: apply %s: no %s piece on %s", m, us, from))
	}
	pt := piece.Type()

	p.Hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
	}

	switch m.Type() {
	case Castling:
		rookFrom, rookTo := castlingRookSquares(from, to)
		p.movePiece(us, King, from, to)
		p.movePiece(us, Rook, rookFrom, rookTo)
	case EnPassant:
		victim := epVictim(to, us)
		p.removePiece(them, Pawn, victim)
		rec.Captured = NewPiece(Pawn, them)
		p.movePiece(us, Pawn, from, to)
	default:
		if captured := p.PieceAt(to); captured != NoPiece {
			p.removePiece(captured.Color(), captured.Type(), to)
			rec.Captured = captured
		}
		if m.Type() == Promotion {
			p.removePiece(us, Pawn, from)
			p.addPiece(us, m.Promotion(), to)
		} else {
			p.movePiece(us, pt, from, to)
		}
	}

	p.HalfMoveClock++
	if pt == Pawn || rec.Captured != NoPiece {
		p.HalfMoveClock = 0
	}
	if pt == Pawn && (to-from == 16 || from-to == 16) {
		p.EnPassant = Square((int(from) + int(to)) / 2)
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	p.CastlingRights &^= castlingMask[from] | castlingMask[to]
	p.Hash ^= zobristCastling[p.CastlingRights]

	p.gamePly++
	p.FullMoveNumber = fullMoveNumber(p.gamePly, them)
	p.SideToMove = them
	p.Hash ^= zobristSideToMove
	p.UpdateCheckers()
	return rec
}

// Undo reverts m, which must be the last move applied to p, using the record
// Apply returned for it.
func (p *Position) Undo(m Move, rec UndoRecord) {
	us := p.SideToMove.Other()
	p.SideToMove = us
	from, to := m.From(), m.To()

	switch m.Type() {
	case Castling:
		rookFrom, rookTo := castlingRookSquares(from, to)
		p.movePiece(us, Rook, rookTo, rookFrom)
		p.movePiece(us, King, to, from)
	case EnPassant:
		p.movePiece(us, Pawn, to, from)
		p.addPiece(us.Other(), Pawn, epVictim(to, us))
	default:
		if m.Type() == Promotion {
			p.removePiece(us, m.Promotion(), to)
			p.addPiece(us, Pawn, from)
		} else {
			piece := p.PieceAt(to)
			if piece == NoPiece || piece.Color() != us {
				panic(fmt.Sprintf("board: undo %s: no %s piece on %s", m, us, to))
			}
			p.movePiece(us, piece.Type(), to, from)
		}
		if rec.Captured != NoPiece {
			p.addPiece(rec.Captured.Color(), rec.Captured.Type(), to)
		}
	}

	p.CastlingRights = rec.CastlingRights
	p.EnPassant = rec.EnPassant
	p.HalfMoveClock = rec.HalfMoveClock
	p.FullMoveNumber = rec.FullMoveNumber
	p.gamePly = rec.Ply
	p.Hash = rec.Hash
	p.PawnKey = rec.PawnKey
	p.Checkers = rec.Checkers
}

// epVictim is the square of the pawn taken en passant on to by side us.
func epVictim(to Square, us Color) Square {
	if us == White {
		return to - 8
	}
	return to + 8
}

// PassRecord is the state Pass overwrites.
type PassRecord struct {
	EnPassant      Square
	FullMoveNumber int
	Hash           uint64
	Checkers       Bitboard
}

// Pass hands the move to the opponent without moving a piece. The ply and
// half-move clock are untouched; the full-move number follows the ply, so
// after White moves twice in a row it reads 2.
func (p *Position) Pass() PassRecord {
	rec := PassRecord{EnPassant: p.EnPassant, FullMoveNumber: p.FullMoveNumber, Hash: p.Hash, Checkers: p.Checkers}
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
	}
	p.SideToMove = p.SideToMove.Other()
	p.FullMoveNumber = fullMoveNumber(p.gamePly, p.SideToMove)
	p.Hash ^= zobristSideToMove
	p.UpdateCheckers()
	return rec
}

// Unpass reverts the last Pass.
func (p *Position) Unpass(rec PassRecord) {
	p.SideToMove = p.SideToMove.Other()
	p.EnPassant = rec.EnPassant
	p.FullMoveNumber = rec.FullMoveNumber
	p.Hash = rec.Hash
	p.Checkers = rec.Checkers
}
