package board

var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard
	// betweenBB holds the squares strictly between two aligned squares,
	// lineBB the whole board line through them. Both are empty otherwise.
	betweenBB [64][64]Bitboard
	lineBB    [64][64]Bitboard
)

func init() {
	for sq := A1; sq <= H8; sq++ {
		bb := SquareBB(sq)

		knightAttacks[sq] = (bb<<17)&notFileA | (bb<<15)&notFileH |
			(bb>>15)&notFileA | (bb>>17)&notFileH |
			(bb<<10)&notFileAB | (bb<<6)&notFileGH |
			(bb>>6)&notFileAB | (bb>>10)&notFileGH

		kingAttacks[sq] = bb.north() | bb.south() | bb.east() | bb.west() |
			bb.northEast() | bb.northWest() | bb.southEast() | bb.southWest()

		pawnAttacks[White][sq] = bb.northEast() | bb.northWest()
		pawnAttacks[Black][sq] = bb.southEast() | bb.southWest()
	}
	initLines()
	initMagics()
}

func initLines() {
	onBoard := func(f, r int) bool { return f >= 0 && f < 8 && r >= 0 && r < 8 }
	for a := A1; a <= H8; a++ {
		for b := A1; b <= H8; b++ {
			df, dr := b.File()-a.File(), b.Rank()-a.Rank()
			if a == b || (df != 0 && dr != 0 && abs(df) != abs(dr)) {
				continue
			}
			df, dr = sign(df), sign(dr)

			var between Bitboard
			for f, r := a.File()+df, a.Rank()+dr; NewSquare(f, r) != b; f, r = f+df, r+dr {
				between |= SquareBB(NewSquare(f, r))
			}
			betweenBB[a][b] = between

			var line Bitboard
			for f, r := a.File(), a.Rank(); onBoard(f, r); f, r = f-df, r-dr {
				line |= SquareBB(NewSquare(f, r))
			}
			for f, r := a.File()+df, a.Rank()+dr; onBoard(f, r); f, r = f+df, r+dr {
				line |= SquareBB(NewSquare(f, r))
			}
			lineBB[a][b] = line
		}
	}
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// KnightAttacks returns the knight targets from sq.
func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }

// KingAttacks returns the king targets from sq.
func KingAttacks(sq Square) Bitboard { return kingAttacks[sq] }

// PawnAttacks returns the squares a pawn of colour c on sq attacks.
func PawnAttacks(sq Square, c Color) Bitboard { return pawnAttacks[c][sq] }

// BishopAttacks returns diagonal slider targets given the occupancy.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &bishopMagics[sq]
	return m.attacks[m.index(occupied)]
}

// RookAttacks returns orthogonal slider targets given the occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	m := &rookMagics[sq]
	return m.attacks[m.index(occupied)]
}

// QueenAttacks is the union of bishop and rook attacks.
func QueenAttacks(sq Square, occupied Bitboard) Bitboard {
	return BishopAttacks(sq, occupied) | RookAttacks(sq, occupied)
}

// Between returns the squares strictly between two aligned squares.
func Between(a, b Square) Bitboard { return betweenBB[a][b] }

// Aligned reports whether three squares share a rank, file or diagonal.
func Aligned(a, b, c Square) bool {
	return lineBB[a][b]&SquareBB(c) != 0
}

// AttackersByColor returns c's pieces attacking sq under the given occupancy.
func (p *Position) AttackersByColor(sq Square, c Color, occupied Bitboard) Bitboard {
	pcs := &p.Pieces[c]
	return pawnAttacks[c.Other()][sq]&pcs[Pawn] |
		knightAttacks[sq]&pcs[Knight] |
		kingAttacks[sq]&pcs[King] |
		BishopAttacks(sq, occupied)&(pcs[Bishop]|pcs[Queen]) |
		RookAttacks(sq, occupied)&(pcs[Rook]|pcs[Queen])
}

// IsSquareAttacked reports whether c attacks sq in the current position.
func (p *Position) IsSquareAttacked(sq Square, c Color) bool {
	return p.AttackersByColor(sq, c, p.AllOccupied) != 0
}

// UpdateCheckers recomputes the pieces giving check to the side to move.
func (p *Position) UpdateCheckers() {
	us := p.SideToMove
	if p.Pieces[us][King] == 0 {
		p.Checkers = 0
		return
	}
	p.Checkers = p.AttackersByColor(p.KingSquare[us], us.Other(), p.AllOccupied)
}

// pinned returns the side to move's pieces pinned against its own king.
func (p *Position) pinned() Bitboard {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	var pinned Bitboard

	snipers := RookAttacks(ksq, 0)&(p.Pieces[them][Rook]|p.Pieces[them][Queen]) |
		BishopAttacks(ksq, 0)&(p.Pieces[them][Bishop]|p.Pieces[them][Queen])
	for snipers != 0 {
		sq := snipers.PopLSB()
		blockers := Between(sq, ksq) & p.AllOccupied
		if blockers.PopCount() == 1 && blockers&p.Occupied[us] != 0 {
			pinned |= blockers
		}
	}
	return pinned
}
