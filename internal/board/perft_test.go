package board

import "testing"

func TestPerft(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		nodes []uint64 // by depth, starting at 1
	}{
		{"startpos", StartFEN, []uint64{20, 400, 8902, 197281}},
		// Castling, en passant and promotions all interact here.
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", []uint64{48, 2039, 97862}},
		{"endgame", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1", []uint64{14, 191, 2812, 43238}},
		{"mirrored", "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1", []uint64{6, 264, 9467}},
		{"talkchess", "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8", []uint64{44, 1486, 62379}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			before := *pos
			for i, want := range tc.nodes {
				if got := Perft(pos, i+1); got != want {
					t.Errorf("perft(%d) = %d, want %d", i+1, got, want)
				}
			}
			if *pos != before {
				t.Errorf("position changed after perft:\n%s\nwant:\n%s", pos, &before)
			}
		})
	}
}

func TestDivideMatchesPerft(t *testing.T) {
	pos := NewPosition()
	stack := NewStateStack(pos)

	entries, total := Divide(stack, 3)
	if len(entries) != 20 {
		t.Fatalf("divide returned %d root moves, want 20", len(entries))
	}
	if total != 8902 {
		t.Errorf("divide total = %d, want 8902", total)
	}
	if stack.Depth() != 0 {
		t.Errorf("stack depth after divide = %d, want 0", stack.Depth())
	}
}
