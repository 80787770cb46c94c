package board

// Perft counts the leaf nodes of the legal move tree to the given depth.
func Perft(p *Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := p.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}
	var nodes uint64
	for _, m := range moves.Slice() {
		rec := p.Apply(m)
		nodes += Perft(p, depth-1)
		p.Undo(m, rec)
	}
	return nodes
}

// DivideEntry is the subtree size below one root move.
type DivideEntry struct {
	Move  Move
	Nodes uint64
}

// Divide runs perft per root move through a state stack, the form printed
// by `go perft`.
func Divide(s *StateStack, depth int) ([]DivideEntry, uint64) {
	if depth < 1 {
		return nil, 1
	}
	moves := s.Position().GenerateLegalMoves()
	entries := make([]DivideEntry, 0, moves.Len())
	var total uint64
	for _, m := range moves.Slice() {
		s.Push(m)
		n := Perft(s.Position(), depth-1)
		s.Pop()
		entries = append(entries, DivideEntry{Move: m, Nodes: n})
		total += n
	}
	return entries, total
}
