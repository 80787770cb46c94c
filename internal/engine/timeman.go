package engine

import (
	"time"

	"github.com/hailam/chessrelocate/internal/board"
)

const (
	minOptimumTime = 10 * time.Millisecond
	minMaximumTime = 50 * time.Millisecond
)

// TimeManager decides how long one search may run.
type TimeManager struct {
	optimum   time.Duration
	maximum   time.Duration
	base      time.Duration
	startTime time.Time
	managed   bool
}

// Init computes the time budget for a search by us at game ply. overhead is
// taken off every clock reading to cover transmission delays.
func (tm *TimeManager) Init(limits Limits, us board.Color, ply int, overhead time.Duration) {
	tm.startTime = limits.StartTime
	if tm.startTime.IsZero() {
		tm.startTime = time.Now()
	}
	tm.managed = false

	if limits.MoveTime > 0 {
		tm.optimum = max(limits.MoveTime-overhead, time.Millisecond)
		tm.maximum = tm.optimum
		tm.base = tm.optimum
		tm.managed = true
		return
	}

	if limits.Infinite || !limits.UseTimeManagement() {
		tm.optimum = time.Hour
		tm.maximum = time.Hour
		tm.base = tm.optimum
		return
	}
	tm.managed = true

	timeLeft := max(limits.Time[us]-overhead, time.Millisecond)
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg == 0 {
		mtg = min(max(50-ply/4, 10), 50)
	}

	opt := timeLeft/time.Duration(mtg) + inc*9/10
	if ply < 8 {
		opt = opt * 85 / 100
	}
	// With an increment the base can exceed what is on the clock.
	opt = min(opt, timeLeft*8/10)

	maxTime := min(opt*5, timeLeft*8/10)
	maxTime = min(maxTime, timeLeft*95/100)

	tm.optimum = max(opt, minOptimumTime)
	tm.maximum = max(maxTime, minMaximumTime)
	if tm.optimum > tm.maximum {
		tm.optimum = tm.maximum
	}
	tm.base = tm.optimum
}

// Managed reports whether the search is bounded by a clock or movetime.
func (tm *TimeManager) Managed() bool { return tm.managed }

// Elapsed is the time since the search started.
func (tm *TimeManager) Elapsed() time.Duration { return time.Since(tm.startTime) }

// OptimumTime is the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration { return tm.optimum }

// MaximumTime is the hard limit.
func (tm *TimeManager) MaximumTime() time.Duration { return tm.maximum }

// ShouldStop reports that the hard limit has passed.
func (tm *TimeManager) ShouldStop() bool { return tm.Elapsed() >= tm.maximum }

// PastOptimum reports that starting another iteration is not worth it.
func (tm *TimeManager) PastOptimum() bool { return tm.Elapsed() >= tm.optimum }

// Adjust rescales the optimum from its initial value. stability is the
// number of consecutive iterations with the same best move; changes is how
// often the best move changed over the last few iterations.
func (tm *TimeManager) Adjust(stability, changes int) {
	pct := 100
	switch {
	case changes >= 4:
		pct = 200
	case changes >= 2:
		pct = 150
	case stability >= 6:
		pct = 40
	case stability >= 4:
		pct = 60
	case stability >= 2:
		pct = 80
	}
	tm.optimum = min(tm.base*time.Duration(pct)/100, tm.maximum)
}
