package board

import (
	"math/rand/v2"
	"testing"
)

func TestSliderLookupsMatchRayCasting(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for sq := A1; sq <= H8; sq++ {
		for range 200 {
			occ := Bitboard(rng.Uint64() & rng.Uint64())
			if got, want := BishopAttacks(sq, occ), slidingAttacks(sq, bishopSteps, occ); got != want {
				t.Fatalf("BishopAttacks(%s, %#x) = %#x, want %#x", sq, uint64(occ), uint64(got), uint64(want))
			}
			if got, want := RookAttacks(sq, occ), slidingAttacks(sq, rookSteps, occ); got != want {
				t.Fatalf("RookAttacks(%s, %#x) = %#x, want %#x", sq, uint64(occ), uint64(got), uint64(want))
			}
		}
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		a, b, c Square
		aligned bool
	}{
		{E1, E4, E8, true},
		{A1, H8, D4, true},
		{D2, B4, E1, true},
		{D2, B4, H6, false},
		{D2, E3, A5, false},
		{H1, A8, D5, true},
		{C1, F4, B2, false},
		{B1, C3, D5, false},
	}
	for _, tc := range tests {
		if got := Aligned(tc.a, tc.b, tc.c); got != tc.aligned {
			t.Errorf("Aligned(%s, %s, %s) = %v, want %v", tc.a, tc.b, tc.c, got, tc.aligned)
		}
	}

	if got, want := Between(A1, D4), SquareBB(B2)|SquareBB(C3); got != want {
		t.Errorf("Between(a1, d4) = %#x, want %#x", uint64(got), uint64(want))
	}
	if got, want := Between(E8, E5), SquareBB(E7)|SquareBB(E6); got != want {
		t.Errorf("Between(e8, e5) = %#x, want %#x", uint64(got), uint64(want))
	}
	if Between(B1, C3) != 0 {
		t.Error("knight-distance squares have squares between them")
	}
}
