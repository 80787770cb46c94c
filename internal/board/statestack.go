package board

import "fmt"

type stackEntry struct {
	move Move
	rec  UndoRecord
	held bool
	pass PassRecord
}

// StateStack is the LIFO ledger of moves applied to one position. Undo
// records never leave the stack: Pop always reverts the most recent Push,
// so out-of-order undo cannot be expressed.
type StateStack struct {
	pos     *Position
	entries []stackEntry
	hashes  []uint64
}

// NewStateStack binds a fresh, empty stack to pos.
func NewStateStack(pos *Position) *StateStack {
	return &StateStack{
		pos:     pos,
		entries: make([]stackEntry, 0, 64),
		hashes:  []uint64{pos.Hash},
	}
}

// Position returns the position the stack mutates.
func (s *StateStack) Position() *Position { return s.pos }

// Depth is the number of moves applied and not yet popped.
func (s *StateStack) Depth() int { return len(s.entries) }

// Push applies m to the bound position.
func (s *StateStack) Push(m Move) {
	s.entries = append(s.entries, stackEntry{move: m, rec: s.pos.Apply(m)})
	s.hashes = append(s.hashes, s.pos.Hash)
}

// PushHeld applies m and then passes the turn back, so the side that moved
// is to move again.
func (s *StateStack) PushHeld(m Move) {
	e := stackEntry{move: m, rec: s.pos.Apply(m), held: true}
	e.pass = s.pos.Pass()
	s.entries = append(s.entries, e)
	s.hashes = append(s.hashes, s.pos.Hash)
}

// Pop reverts the most recent push and returns its move. Popping an empty
// stack is a programming error.
func (s *StateStack) Pop() Move {
	n := len(s.entries)
	if n == 0 {
		panic("board: pop from empty state stack")
	}
	e := s.entries[n-1]
	if e.held {
		s.pos.Unpass(e.pass)
	}
	s.pos.Undo(e.move, e.rec)
	s.entries = s.entries[:n-1]
	s.hashes = s.hashes[:n]
	return e.move
}

// Unwind pops until the stack is depth entries deep.
func (s *StateStack) Unwind(depth int) {
	if depth < 0 || depth > len(s.entries) {
		panic(fmt.Sprintf("board: unwind to %d from depth %d", depth, len(s.entries)))
	}
	for len(s.entries) > depth {
		s.Pop()
	}
}

// Top returns the last pushed move, NoMove when empty.
func (s *StateStack) Top() Move {
	if len(s.entries) == 0 {
		return NoMove
	}
	return s.entries[len(s.entries)-1].move
}

// Moves returns the applied moves, oldest first.
func (s *StateStack) Moves() []Move {
	out := make([]Move, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.move
	}
	return out
}

// Lineage returns the hash of the root and of every position reached, oldest
// first. It is a copy: the search engine keeps it while the stack moves on.
func (s *StateStack) Lineage() []uint64 {
	return append([]uint64(nil), s.hashes...)
}
