// Package tablebase probes endgame tablebases for the root position.
package tablebase

import (
	"context"
	"errors"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/score"
)

// WDL is a win/draw/loss verdict from the side to move's point of view.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // lost, but the 50-move rule saves it
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // won, but the 50-move rule spoils it
	WDLWin         WDL = 2
)

func (w WDL) String() string {
	switch w {
	case WDLLoss:
		return "loss"
	case WDLBlessedLoss:
		return "blessed-loss"
	case WDLDraw:
		return "draw"
	case WDLCursedWin:
		return "cursed-win"
	case WDLWin:
		return "win"
	}
	return "unknown"
}

// ErrUnavailable is returned when no tablebase answers for a position.
var ErrUnavailable = errors.New("tablebase: position not available")

// ProbeResult is the verdict for one position.
type ProbeResult struct {
	WDL WDL
	DTZ int
}

// RootResult is the verdict for the root plus the move that keeps it.
type RootResult struct {
	Move board.Move
	WDL  WDL
	DTZ  int
}

// Prober looks positions up in a tablebase. A position with more than
// MaxPieces pieces, or one the backend does not know, yields ErrUnavailable.
type Prober interface {
	Probe(ctx context.Context, pos *board.Position) (ProbeResult, error)
	ProbeRoot(ctx context.Context, pos *board.Position) (RootResult, error)
	MaxPieces() int
}

// WDLToScore converts a verdict to a search value ply half-moves from the
// root. With rule50 set, cursed wins and blessed losses score as draws.
func WDLToScore(wdl WDL, ply int, rule50 bool) score.Value {
	switch wdl {
	case WDLWin:
		return score.TB - score.Value(ply)
	case WDLLoss:
		return -score.TB + score.Value(ply)
	case WDLCursedWin:
		if rule50 {
			return score.Draw + 1
		}
		return score.TB - score.Value(ply)
	case WDLBlessedLoss:
		if rule50 {
			return score.Draw - 1
		}
		return -score.TB + score.Value(ply)
	}
	return score.Draw
}

// NoopProber knows no positions.
type NoopProber struct{}

var _ Prober = NoopProber{}

func (NoopProber) Probe(context.Context, *board.Position) (ProbeResult, error) {
	return ProbeResult{}, ErrUnavailable
}

func (NoopProber) ProbeRoot(context.Context, *board.Position) (RootResult, error) {
	return RootResult{}, ErrUnavailable
}

func (NoopProber) MaxPieces() int { return 0 }

// CountPieces returns the number of pieces on the board, kings included.
func CountPieces(pos *board.Position) int {
	return pos.AllOccupied.PopCount()
}
