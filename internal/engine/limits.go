package engine

import (
	"time"

	"github.com/hailam/chessrelocate/internal/board"
)

// Limits are the constraints of one "go" command. Zero values are unset.
type Limits struct {
	Time        [2]time.Duration // remaining clock, indexed by board.Color
	Inc         [2]time.Duration
	MovesToGo   int
	Depth       int
	Nodes       uint64
	MoveTime    time.Duration
	Mate        int
	Perft       int
	Infinite    bool
	Ponder      bool
	SearchMoves []board.Move
	StartTime   time.Time
}

// UseTimeManagement reports whether a clock was given.
func (l Limits) UseTimeManagement() bool {
	return l.Time[board.White] != 0 || l.Time[board.Black] != 0
}
