package engine

import (
	"sync"
	"sync/atomic"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/score"
)

// Bound tells how a stored value relates to the true one.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundUpper
	BoundLower
	BoundExact
)

const ttShardCount = 256

// TTEntry is one slot of the transposition table.
type TTEntry struct {
	Key   uint64
	Move  board.Move
	Value int16
	Eval  int16
	Depth int16
	Bound Bound
	Age   uint8
}

// TranspositionTable is shared by all search threads. Slots are guarded by
// striped locks.
type TranspositionTable struct {
	entries []TTEntry
	shards  [ttShardCount]sync.RWMutex
	mask    uint64
	age     atomic.Uint32
}

// NewTranspositionTable allocates a table of at most sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	const entrySize = 24
	n := roundDownToPowerOf2(uint64(max(sizeMB, 1)) << 20 / entrySize)
	return &TranspositionTable{
		entries: make([]TTEntry, n),
		mask:    n - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe returns the entry stored for key.
func (tt *TranspositionTable) Probe(key uint64) (TTEntry, bool) {
	idx := key & tt.mask
	mu := &tt.shards[idx%ttShardCount]
	mu.RLock()
	e := tt.entries[idx]
	mu.RUnlock()
	if e.Key == key && e.Bound != BoundNone {
		return e, true
	}
	return TTEntry{}, false
}

// Store writes an entry unless the slot holds a deeper one from the current
// search. Exact bounds always replace. An existing move of the same position
// is kept when the new one is absent.
func (tt *TranspositionTable) Store(key uint64, depth int, v, staticEval score.Value, bound Bound, m board.Move) {
	idx := key & tt.mask
	mu := &tt.shards[idx%ttShardCount]
	age := uint8(tt.age.Load())

	mu.Lock()
	e := &tt.entries[idx]
	if e.Age != age || depth >= int(e.Depth) || bound == BoundExact {
		if m == board.NoMove && e.Key == key {
			m = e.Move
		}
		*e = TTEntry{
			Key:   key,
			Move:  m,
			Value: int16(v),
			Eval:  int16(staticEval),
			Depth: int16(depth),
			Bound: bound,
			Age:   age,
		}
	}
	mu.Unlock()
}

// NewSearch ages existing entries.
func (tt *TranspositionTable) NewSearch() { tt.age.Add(1) }

// Clear wipes every entry.
func (tt *TranspositionTable) Clear() {
	for i := range tt.shards {
		tt.shards[i].Lock()
	}
	clear(tt.entries)
	for i := range tt.shards {
		tt.shards[i].Unlock()
	}
	tt.age.Store(0)
}

// HashFull samples the first thousand slots and reports how many per mille
// were written by the current search.
func (tt *TranspositionTable) HashFull() int {
	n := min(1000, len(tt.entries))
	age := uint8(tt.age.Load())
	used := 0
	for i := range n {
		mu := &tt.shards[i%ttShardCount]
		mu.RLock()
		e := tt.entries[i]
		mu.RUnlock()
		if e.Bound != BoundNone && e.Age == age {
			used++
		}
	}
	return used * 1000 / n
}

// Size is the number of slots.
func (tt *TranspositionTable) Size() int { return len(tt.entries) }

// valueToTT converts a mate or tablebase score from "plies from root" to
// "plies from this node" before it is stored.
func valueToTT(v score.Value, ply int) score.Value {
	switch {
	case v >= score.TBWinInMaxPly:
		return v + score.Value(ply)
	case v <= score.TBLossInMaxPly:
		return v - score.Value(ply)
	}
	return v
}

// valueFromTT is the inverse of valueToTT.
func valueFromTT(v score.Value, ply int) score.Value {
	switch {
	case v >= score.TBWinInMaxPly:
		return v - score.Value(ply)
	case v <= score.TBLossInMaxPly:
		return v + score.Value(ply)
	}
	return v
}
