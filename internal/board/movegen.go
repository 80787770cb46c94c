package board

// GenerateLegalMoves returns every legal move for the side to move.
func (p *Position) GenerateLegalMoves() *MoveList {
	var pseudo MoveList
	p.generate(&pseudo, false)
	return p.filterLegal(&pseudo)
}

// GenerateCaptures returns the legal captures and promotions, the move set
// searched in quiescence.
func (p *Position) GenerateCaptures() *MoveList {
	var pseudo MoveList
	p.generate(&pseudo, true)
	return p.filterLegal(&pseudo)
}

// Generator adapts the position's generator to the move-source interface
// consumed by the relocation enumerator.
type Generator struct{}

// LegalMoves returns a fresh slice of the legal moves in pos.
func (Generator) LegalMoves(pos *Position) []Move {
	ml := pos.GenerateLegalMoves()
	return append([]Move(nil), ml.Slice()...)
}

func (p *Position) generate(ml *MoveList, capturesOnly bool) {
	us := p.SideToMove
	them := us.Other()
	targets := ^p.Occupied[us]
	if capturesOnly {
		targets = p.Occupied[them]
	}

	p.generatePawnMoves(ml, capturesOnly)

	for pt := Knight; pt <= King; pt++ {
		for pieces := p.Pieces[us][pt]; pieces != 0; {
			from := pieces.PopLSB()
			var attacks Bitboard
			switch pt {
			case Knight:
				attacks = KnightAttacks(from)
			case Bishop:
				attacks = BishopAttacks(from, p.AllOccupied)
			case Rook:
				attacks = RookAttacks(from, p.AllOccupied)
			case Queen:
				attacks = QueenAttacks(from, p.AllOccupied)
			case King:
				attacks = KingAttacks(from)
			}
			for attacks &= targets; attacks != 0; {
				ml.Add(NewMove(from, attacks.PopLSB()))
			}
		}
	}

	if !capturesOnly && p.Checkers == 0 {
		p.generateCastling(ml)
	}
}

func (p *Position) generatePawnMoves(ml *MoveList, capturesOnly bool) {
	us := p.SideToMove
	pawns := p.Pieces[us][Pawn]
	enemies := p.Occupied[us.Other()]
	empty := ^p.AllOccupied

	var push1, push2, capL, capR, lastRank Bitboard
	var up int
	if us == White {
		push1 = pawns.north() & empty
		push2 = (push1 & Rank3).north() & empty
		capL = pawns.northWest() & enemies
		capR = pawns.northEast() & enemies
		lastRank, up = Rank8, 8
	} else {
		push1 = pawns.south() & empty
		push2 = (push1 & Rank6).south() & empty
		capL = pawns.southWest() & enemies
		capR = pawns.southEast() & enemies
		lastRank, up = Rank1, -8
	}

	emit := func(targets Bitboard, delta int) {
		for targets != 0 {
			to := targets.PopLSB()
			from := Square(int(to) - delta)
			if lastRank.Has(to) {
				for _, pt := range [...]PieceType{Queen, Rook, Bishop, Knight} {
					ml.Add(NewPromotion(from, to, pt))
				}
				continue
			}
			ml.Add(NewMove(from, to))
		}
	}

	if capturesOnly {
		emit(push1&lastRank, up)
	} else {
		emit(push1, up)
		emit(push2, 2*up)
	}
	emit(capL, up-1)
	emit(capR, up+1)

	if p.EnPassant != NoSquare {
		for from := PawnAttacks(p.EnPassant, us.Other()) & pawns; from != 0; {
			ml.Add(NewEnPassant(from.PopLSB(), p.EnPassant))
		}
	}
}

var castlingPaths = [4]struct {
	right       CastlingRights
	king, to    Square
	rook        Square
	empty, safe Bitboard
}{
	{WhiteKingSide, E1, G1, H1, SquareBB(F1) | SquareBB(G1), SquareBB(F1) | SquareBB(G1)},
	{WhiteQueenSide, E1, C1, A1, SquareBB(B1) | SquareBB(C1) | SquareBB(D1), SquareBB(C1) | SquareBB(D1)},
	{BlackKingSide, E8, G8, H8, SquareBB(F8) | SquareBB(G8), SquareBB(F8) | SquareBB(G8)},
	{BlackQueenSide, E8, C8, A8, SquareBB(B8) | SquareBB(C8) | SquareBB(D8), SquareBB(C8) | SquareBB(D8)},
}

func (p *Position) generateCastling(ml *MoveList) {
	us := p.SideToMove
	for _, cp := range castlingPaths {
		if p.CastlingRights&cp.right == 0 || p.KingSquare[us] != cp.king {
			continue
		}
		if (cp.right&(WhiteKingSide|WhiteQueenSide) != 0) != (us == White) {
			continue
		}
		if !p.Pieces[us][Rook].Has(cp.rook) || p.AllOccupied&cp.empty != 0 {
			continue
		}
		safe := true
		for path := cp.safe; path != 0; {
			if p.IsSquareAttacked(path.PopLSB(), us.Other()) {
				safe = false
				break
			}
		}
		if safe {
			ml.Add(NewCastling(cp.king, cp.to))
		}
	}
}

// castlingRookSquares returns the rook's origin and destination for a
// castling king step.
func castlingRookSquares(kingFrom, kingTo Square) (Square, Square) {
	rank := kingFrom.Rank()
	if kingTo > kingFrom {
		return NewSquare(7, rank), NewSquare(5, rank)
	}
	return NewSquare(0, rank), NewSquare(3, rank)
}

func (p *Position) filterLegal(pseudo *MoveList) *MoveList {
	legal := &MoveList{}
	pinned := p.pinned()
	for _, m := range pseudo.Slice() {
		if p.isLegal(m, pinned) {
			legal.Add(m)
		}
	}
	return legal
}

// isLegal checks a pseudo-legal move. Non-king moves of unpinned pieces are
// legal when not in check; everything else is checked against attacks.
func (p *Position) isLegal(m Move, pinned Bitboard) bool {
	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	ksq := p.KingSquare[us]

	if p.Pieces[them][King].Has(to) {
		return false
	}
	if from == ksq {
		if m.Type() == Castling {
			return true
		}
		return p.AttackersByColor(to, them, p.AllOccupied&^SquareBB(from)) == 0
	}
	if m.Type() == EnPassant {
		rec := p.Apply(m)
		ok := !p.IsSquareAttacked(ksq, them)
		p.Undo(m, rec)
		return ok
	}
	if p.Checkers != 0 {
		if p.Checkers.PopCount() > 1 {
			return false
		}
		checker := p.Checkers.LSB()
		if (SquareBB(checker)|Between(checker, ksq))&SquareBB(to) == 0 {
			return false
		}
	}
	return pinned&SquareBB(from) == 0 || Aligned(from, to, ksq)
}

// HasLegalMoves reports whether the side to move can move at all.
func (p *Position) HasLegalMoves() bool {
	return p.GenerateLegalMoves().Len() > 0
}

// IsCheckmate reports a mated side to move.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate reports a stalemated side to move.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsInsufficientMaterial reports bare kings or a lone minor piece.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn]|p.Pieces[White][Rook]|p.Pieces[Black][Rook]|
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}
	minors := p.Pieces[White][Knight] | p.Pieces[White][Bishop] | p.Pieces[Black][Knight] | p.Pieces[Black][Bishop]
	return minors.PopCount() <= 1
}
