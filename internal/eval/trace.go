package eval

import (
	"fmt"
	"strings"

	"github.com/hailam/chessrelocate/internal/board"
)

// Term identifies one component of the classical evaluation.
type Term int

const (
	TermMaterial Term = iota // material plus piece-square tables
	TermPawns
	TermPassed
	TermBishops
	TermRooks
	TermMobility
	numTerms
)

var termNames = [numTerms]string{"Material", "Pawns", "Passed", "Bishops", "Rooks", "Mobility"}

func (t Term) String() string { return termNames[t] }

// Pair is a middlegame/endgame score in centipawns.
type Pair struct {
	Mg, Eg int
}

func (p *Pair) add(mg, eg int) {
	p.Mg += mg
	p.Eg += eg
}

// Trace holds the per-colour terms of one evaluation.
type Trace struct {
	Terms [numTerms][2]Pair
	Phase int
}

// Taper blends a pair by the game phase.
func (t *Trace) Taper(p Pair) int {
	return (p.Mg*t.Phase + p.Eg*(maxPhase-t.Phase)) / maxPhase
}

// White returns the tapered score from White's side, tempo included for stm.
func (t *Trace) White(stm board.Color) int {
	var sum Pair
	for term := range numTerms {
		sum.add(t.Terms[term][board.White].Mg-t.Terms[term][board.Black].Mg,
			t.Terms[term][board.White].Eg-t.Terms[term][board.Black].Eg)
	}
	v := t.Taper(sum)
	if stm == board.White {
		return v + tempoBonus
	}
	return v - tempoBonus
}

// Total returns the centipawn score from stm's point of view.
func (t *Trace) Total(stm board.Color) int {
	if stm == board.Black {
		return -t.White(stm)
	}
	return t.White(stm)
}

// NewTrace evaluates pos term by term.
func NewTrace(pos *board.Position) *Trace {
	t := trace(pos)
	return &t
}

var passedMask [2][64]board.Bitboard

func init() {
	for sq := board.A1; sq <= board.H8; sq++ {
		f, r := sq.File(), sq.Rank()
		for df := -1; df <= 1; df++ {
			ff := f + df
			if ff < 0 || ff > 7 {
				continue
			}
			for rr := r + 1; rr < 8; rr++ {
				passedMask[board.White][sq] |= board.SquareBB(board.NewSquare(ff, rr))
			}
			for rr := r - 1; rr >= 0; rr-- {
				passedMask[board.Black][sq] |= board.SquareBB(board.NewSquare(ff, rr))
			}
		}
	}
}

func trace(pos *board.Position) Trace {
	var t Trace
	occ := pos.AllOccupied

	for c := board.White; c <= board.Black; c++ {
		them := c.Other()
		ourPawns := pos.Pieces[c][board.Pawn]
		theirPawns := pos.Pieces[them][board.Pawn]

		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				idx := pstIndex(sq, c)
				t.Terms[TermMaterial][c].add(pieceValues[pt]+midgamePST[pt][idx], pieceValues[pt]+endgamePST[pt][idx])
				t.Phase += phaseWeight[pt]

				var attacks board.Bitboard
				switch pt {
				case board.Pawn:
					if passedMask[c][sq]&theirPawns == 0 {
						rr := sq.RelativeRank(c)
						t.Terms[TermPassed][c].add(passedPawnMg[rr], passedPawnEg[rr])
					}
					continue
				case board.Knight:
					attacks = board.KnightAttacks(sq)
				case board.Bishop:
					attacks = board.BishopAttacks(sq, occ)
				case board.Rook:
					attacks = board.RookAttacks(sq, occ)
					file := board.FileMask[sq.File()]
					switch {
					case file&(ourPawns|theirPawns) == 0:
						t.Terms[TermRooks][c].add(rookOpenFileMg, rookOpenFileEg)
					case file&ourPawns == 0:
						t.Terms[TermRooks][c].add(rookSemiOpenFileMg, rookSemiOpenFileEg)
					}
				case board.Queen:
					attacks = board.QueenAttacks(sq, occ)
				default:
					continue
				}
				n := (attacks &^ pos.Occupied[c]).PopCount()
				t.Terms[TermMobility][c].add(n*mobilityMg[pt], n*mobilityEg[pt])
			}
		}

		if pos.Pieces[c][board.Bishop].PopCount() >= 2 {
			t.Terms[TermBishops][c].add(bishopPairMg, bishopPairEg)
		}

		for f := range 8 {
			onFile := (ourPawns & board.FileMask[f]).PopCount()
			if onFile == 0 {
				continue
			}
			if onFile > 1 {
				t.Terms[TermPawns][c].add((onFile-1)*doubledPawnMg, (onFile-1)*doubledPawnEg)
			}
			var adjacent board.Bitboard
			if f > 0 {
				adjacent |= board.FileMask[f-1]
			}
			if f < 7 {
				adjacent |= board.FileMask[f+1]
			}
			if ourPawns&adjacent == 0 {
				t.Terms[TermPawns][c].add(onFile*isolatedPawnMg, onFile*isolatedPawnEg)
			}
		}
	}

	t.Phase = min(t.Phase, maxPhase)
	return t
}

// String renders the term table printed by the eval command, in pawns.
func (t *Trace) String() string {
	var sb strings.Builder
	sb.WriteString("     Term    |    White    |    Black    |    Total\n")
	sb.WriteString("             |   MG    EG  |   MG    EG  |   MG    EG\n")
	sb.WriteString(" ------------+-------------+-------------+------------\n")
	for term := range numTerms {
		w, b := t.Terms[term][board.White], t.Terms[term][board.Black]
		fmt.Fprintf(&sb, " %11s | %5.2f %5.2f | %5.2f %5.2f | %5.2f %5.2f\n",
			term, pawns(w.Mg), pawns(w.Eg), pawns(b.Mg), pawns(b.Eg), pawns(w.Mg-b.Mg), pawns(w.Eg-b.Eg))
	}
	sb.WriteString(" ------------+-------------+-------------+------------\n")
	fmt.Fprintf(&sb, "Phase: %d/%d\n", t.Phase, maxPhase)
	return sb.String()
}

func pawns(cp int) float64 { return float64(cp) / 100 }
