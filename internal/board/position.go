package board

import (
	"fmt"
	"strings"
)

// CastlingRights is a set of KQkq flags.
type CastlingRights uint8

const (
	WhiteKingSide CastlingRights = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingSide | WhiteQueenSide | BlackKingSide | BlackQueenSide
)

func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	var sb strings.Builder
	for i, c := range "KQkq" {
		if cr&(1<<i) != 0 {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// castlingMask[sq] holds the rights lost when a piece leaves or lands on sq.
var castlingMask [64]CastlingRights

func init() {
	castlingMask[E1] = WhiteKingSide | WhiteQueenSide
	castlingMask[H1] = WhiteKingSide
	castlingMask[A1] = WhiteQueenSide
	castlingMask[E8] = BlackKingSide | BlackQueenSide
	castlingMask[H8] = BlackKingSide
	castlingMask[A8] = BlackQueenSide
}

// Position is the full mutable game state. It contains no pointers, so
// `*a == *b` compares two positions field for field.
type Position struct {
	Pieces      [2][6]Bitboard
	Occupied    [2]Bitboard
	AllOccupied Bitboard

	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int
	// gamePly counts applied moves. A pass leaves it alone, so the full-move
	// number keeps advancing while one side moves repeatedly.
	gamePly int

	Hash    uint64
	PawnKey uint64

	KingSquare [2]Square
	Checkers   Bitboard
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	pos, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

// Copy returns an independent copy.
func (p *Position) Copy() *Position {
	c := *p
	return &c
}

// PieceAt returns the piece on sq or NoPiece.
func (p *Position) PieceAt(sq Square) Piece {
	bb := SquareBB(sq)
	if p.AllOccupied&bb == 0 {
		return NoPiece
	}
	c := White
	if p.Occupied[Black]&bb != 0 {
		c = Black
	}
	for pt := Pawn; pt <= King; pt++ {
		if p.Pieces[c][pt]&bb != 0 {
			return NewPiece(pt, c)
		}
	}
	return NoPiece
}

// IsEmpty reports whether sq is vacant.
func (p *Position) IsEmpty(sq Square) bool {
	return p.AllOccupied&SquareBB(sq) == 0
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.Checkers != 0
}

// Ply returns the number of half-moves since the game's first position.
func (p *Position) Ply() int { return p.gamePly }

// resetPly derives the ply from the full-move number and side to move.
func (p *Position) resetPly() {
	p.gamePly = 2*(p.FullMoveNumber-1) + int(p.SideToMove)
}

// fullMoveNumber is the full-move number shown for ply with side to move.
func fullMoveNumber(ply int, side Color) int {
	return 1 + (ply-int(side))/2
}

// MaterialCount sums P=1 N=3 B=3 R=5 Q=9 over both sides.
func (p *Position) MaterialCount() int {
	total := 0
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt < King; pt++ {
			total += p.Pieces[c][pt].PopCount() * MaterialWeight[pt]
		}
	}
	return total
}

// PieceCount returns the number of men on the board, kings included.
func (p *Position) PieceCount() int {
	return p.AllOccupied.PopCount()
}

// HasNonPawnMaterial reports whether c owns a knight, bishop, rook or queen.
func (p *Position) HasNonPawnMaterial(c Color) bool {
	return p.Pieces[c][Knight]|p.Pieces[c][Bishop]|p.Pieces[c][Rook]|p.Pieces[c][Queen] != 0
}

func (p *Position) addPiece(c Color, pt PieceType, sq Square) {
	bb := SquareBB(sq)
	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	p.Hash ^= zobristPiece[c][pt][sq]
	switch pt {
	case Pawn:
		p.PawnKey ^= zobristPiece[c][Pawn][sq]
	case King:
		p.KingSquare[c] = sq
	}
}

func (p *Position) removePiece(c Color, pt PieceType, sq Square) {
	bb := SquareBB(sq)
	p.Pieces[c][pt] &^= bb
	p.Occupied[c] &^= bb
	p.AllOccupied &^= bb
	p.Hash ^= zobristPiece[c][pt][sq]
	if pt == Pawn {
		p.PawnKey ^= zobristPiece[c][Pawn][sq]
	}
}

func (p *Position) movePiece(c Color, pt PieceType, from, to Square) {
	p.removePiece(c, pt, from)
	p.addPiece(c, pt, to)
}

// Flip mirrors the board vertically and swaps colours, so the returned
// position is the same game seen from the other side.
func (p *Position) Flip() *Position {
	f := &Position{EnPassant: NoSquare, HalfMoveClock: p.HalfMoveClock, FullMoveNumber: p.FullMoveNumber}
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for bb := p.Pieces[c][pt]; bb != 0; {
				f.addPiece(c.Other(), pt, bb.PopLSB().Mirror())
			}
		}
	}
	f.SideToMove = p.SideToMove.Other()
	f.resetPly()
	f.CastlingRights = p.CastlingRights>>2 | (p.CastlingRights&3)<<2
	if p.EnPassant != NoSquare {
		f.EnPassant = p.EnPassant.Mirror()
	}
	f.Hash = f.ComputeHash()
	f.UpdateCheckers()
	return f
}

// String renders a diagram followed by the FEN, key and checkers, the
// layout printed by the `d` command and the relocation report.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteString("\n +---+---+---+---+---+---+---+---+\n")
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			sb.WriteString(" | ")
			sb.WriteString(p.PieceAt(NewSquare(file, rank)).String())
		}
		fmt.Fprintf(&sb, " | %d\n +---+---+---+---+---+---+---+---+\n", rank+1)
	}
	sb.WriteString("   a   b   c   d   e   f   g   h\n\n")
	fmt.Fprintf(&sb, "Fen: %s\nKey: %016X\nCheckers:", p.ToFEN(), p.Hash)
	for bb := p.Checkers; bb != 0; {
		sb.WriteString(" " + bb.PopLSB().String())
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Validate checks the invariants a playable position needs.
func (p *Position) Validate() error {
	if p.Pieces[White][King].PopCount() != 1 || p.Pieces[Black][King].PopCount() != 1 {
		return fmt.Errorf("each side needs exactly one king")
	}
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return fmt.Errorf("pawns on the first or last rank")
	}
	them := p.SideToMove.Other()
	if p.IsSquareAttacked(p.KingSquare[them], p.SideToMove) {
		return fmt.Errorf("side not to move is in check")
	}
	return nil
}
