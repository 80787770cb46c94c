// Package score defines the internal evaluation unit and converts it to the
// centipawn and win/draw/loss figures reported over UCI.
package score

import (
	"fmt"
	"math"
)

// Value is an evaluation from the side to move's point of view.
type Value int32

const (
	Zero     Value = 0
	Draw     Value = 0
	Mate     Value = 32000
	Infinite Value = 32001
	None     Value = 32002

	MaxPly = 246

	MateInMaxPly   = Mate - MaxPly
	MatedInMaxPly  = -MateInMaxPly
	TB             = MateInMaxPly - 1
	TBWinInMaxPly  = TB - MaxPly
	TBLossInMaxPly = -TBWinInMaxPly

	// PawnValue is the internal value the model treats as one pawn of
	// advantage at mid-game material; evaluators scale centipawns by it.
	PawnValue Value = 356
)

// MateIn is the value of delivering mate ply half-moves from the root.
func MateIn(ply int) Value { return Mate - Value(ply) }

// MatedIn is the value of being mated ply half-moves from the root.
func MatedIn(ply int) Value { return -Mate + Value(ply) }

// IsDecisive reports whether v lies in the tablebase or mate bands.
func IsDecisive(v Value) bool {
	return v >= TBWinInMaxPly || v <= TBLossInMaxPly
}

var (
	as = [4]float64{-185.71965483, 504.85014385, -438.58295743, 474.04604627}
	bs = [4]float64{89.23542728, -137.02141296, 73.28669021, 47.53376190}
)

// Params returns the logistic shape parameters for a material count
// (P=1 N=3 B=3 R=5 Q=9 over both sides). a is the value at which the
// win rate is 50%; b is the spread.
func Params(material int) (a, b float64) {
	m := float64(min(max(material, 10), 78)) / 58.0
	a = ((as[0]*m+as[1])*m+as[2])*m + as[3]
	b = ((bs[0]*m+bs[1])*m+bs[2])*m + bs[3]
	return a, b
}

// ToCentipawns maps v to centipawns, rounding half away from zero.
func ToCentipawns(v Value, material int) int {
	a, _ := Params(material)
	return int(math.Round(100 * float64(v) / a))
}

// WinRate is the per-mille win probability of the side to move.
func WinRate(v Value, material int) int {
	a, b := Params(material)
	return int(0.5 + 1000/(1+math.Exp((a-float64(v))/b)))
}

// WDL returns the per-mille win, draw and loss probabilities.
func WDL(v Value, material int) (win, draw, loss int) {
	win = WinRate(v, material)
	loss = WinRate(-v, material)
	return win, 1000 - win - loss, loss
}

// Format renders v as a UCI score token: "cp N" or "mate N". Tablebase
// results are shown as cp 20000 minus the distance in plies.
func Format(v Value, material int) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < TBWinInMaxPly:
		return fmt.Sprintf("cp %d", ToCentipawns(v, material))
	case abs <= TB:
		ply := int(TB - abs)
		if v > 0 {
			return fmt.Sprintf("cp %d", 20000-ply)
		}
		return fmt.Sprintf("cp %d", -20000+ply)
	case v > 0:
		return fmt.Sprintf("mate %d", (Mate-v+1)/2)
	default:
		return fmt.Sprintf("mate %d", (-Mate-v)/2)
	}
}

// FormatWDL renders the "wdl W D L" token.
func FormatWDL(v Value, material int) string {
	w, d, l := WDL(v, material)
	return fmt.Sprintf("wdl %d %d %d", w, d, l)
}

// Pawns renders centipawns as a signed two-decimal pawn figure, e.g. "1.23".
func Pawns(cp int) string {
	sign := ""
	if cp < 0 {
		sign, cp = "-", -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}
