package board

import (
	"sort"
	"testing"

	"github.com/notnil/chess"
)

// TestLegalMovesAgainstReference compares the generator with an independent
// implementation move for move.
func TestLegalMovesAgainstReference(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R b KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
		"8/8/8/KPp4r/8/8/8/7k w - c6 0 2",
		"4k3/8/8/8/8/8/4q3/4K3 w - - 0 1",
		"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		"1k6/1P6/8/8/8/8/6p1/4K2R b K - 0 1",
		// Pieces pinned along diagonals may only move on the pin line.
		"rnbq1k1r/pp1P1ppp/2p5/8/1bB5/8/PPPBNnPP/RN1QK2R w KQ - 3 9",
		"4k3/8/8/8/7b/8/5B2/4K3 w - - 0 1",
		"4k3/8/8/b7/8/2Q5/8/4K3 w - - 0 1",
		"4k3/5p2/8/7B/8/8/8/4K3 b - - 0 1",
		"q3k3/8/8/8/8/8/6P1/7K w - - 0 1",
	}

	for _, fen := range fens {
		t.Run(fen, func(t *testing.T) {
			pos, err := ParseFEN(fen)
			if err != nil {
				t.Fatalf("ParseFEN: %v", err)
			}
			var got []string
			for _, m := range (Generator{}).LegalMoves(pos) {
				got = append(got, m.String())
			}

			opt, err := chess.FEN(fen)
			if err != nil {
				t.Fatalf("reference FEN: %v", err)
			}
			game := chess.NewGame(opt)
			var want []string
			for _, m := range game.ValidMoves() {
				want = append(want, chess.UCINotation{}.Encode(game.Position(), m))
			}

			sort.Strings(got)
			sort.Strings(want)
			if len(got) != len(want) {
				t.Fatalf("got %d moves %v\nwant %d moves %v", len(got), got, len(want), want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("move %d: got %s, want %s", i, got[i], want[i])
				}
			}
		})
	}
}

func TestMoveText(t *testing.T) {
	tests := []struct {
		move     Move
		chess960 bool
		want     string
	}{
		{NoMove, false, "(none)"},
		{NullMove, false, "0000"},
		{NewMove(E2, E4), false, "e2e4"},
		{NewPromotion(E7, E8, Queen), false, "e7e8q"},
		{NewPromotion(B2, A1, Knight), false, "b2a1n"},
		{NewCastling(E1, G1), false, "e1g1"},
		{NewCastling(E1, G1), true, "e1h1"},
		{NewCastling(E8, C8), true, "e8a8"},
	}
	for _, tc := range tests {
		if got := tc.move.UCI(tc.chess960); got != tc.want {
			t.Errorf("UCI(%d, %v) = %s, want %s", tc.move, tc.chess960, got, tc.want)
		}
	}
}

func TestParseFENErrors(t *testing.T) {
	bad := []string{
		"",
		"8/8/8/8/8/8/8/8 w - -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq -",
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq -",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkx -",
	}
	for _, fen := range bad {
		if _, err := ParseFEN(fen); err == nil {
			t.Errorf("ParseFEN(%q) succeeded", fen)
		}
	}

	pos, err := ParseFEN(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	if pos.ToFEN() != StartFEN {
		t.Errorf("ToFEN = %s", pos.ToFEN())
	}
	if pos.MaterialCount() != 78 {
		t.Errorf("material = %d, want 78", pos.MaterialCount())
	}
}
