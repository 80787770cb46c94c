package board

import "math/bits"

// magic is the fancy-magic lookup of one slider on one square: the relevant
// occupancy, masked and multiplied, indexes straight into attacks.
type magic struct {
	mask    Bitboard
	number  uint64
	shift   uint8
	attacks []Bitboard
}

func (m *magic) index(occupied Bitboard) uint64 {
	return (uint64(occupied&m.mask) * m.number) >> m.shift
}

var (
	bishopMagics [64]magic
	rookMagics   [64]magic
)

var (
	bishopSteps = [4][2]int{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
	rookSteps   = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}
)

// prng is xorshift64*. The seed is fixed so every start finds the same
// magics.
type prng uint64

func (r *prng) next() uint64 {
	x := uint64(*r)
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	*r = prng(x)
	return x * 2685821657736338717
}

// sparse returns a number with about an eighth of its bits set.
func (r *prng) sparse() uint64 { return r.next() & r.next() & r.next() }

func initMagics() {
	rng := prng(728)
	for sq := A1; sq <= H8; sq++ {
		findMagic(&bishopMagics[sq], sq, bishopSteps, &rng)
		findMagic(&rookMagics[sq], sq, rookSteps, &rng)
	}
}

// slidingAttacks casts each ray from sq up to and including the first
// occupied square.
func slidingAttacks(sq Square, steps [4][2]int, occupied Bitboard) Bitboard {
	var attacks Bitboard
	for _, step := range steps {
		f, r := sq.File()+step[0], sq.Rank()+step[1]
		for f >= 0 && f < 8 && r >= 0 && r < 8 {
			s := NewSquare(f, r)
			attacks |= SquareBB(s)
			if occupied.Has(s) {
				break
			}
			f += step[0]
			r += step[1]
		}
	}
	return attacks
}

// relevantMask drops the board edges, which never block anything beyond
// themselves.
func relevantMask(sq Square, steps [4][2]int) Bitboard {
	edges := (Rank1|Rank8)&^RankMask[sq.Rank()] | (FileA|FileH)&^FileMask[sq.File()]
	return slidingAttacks(sq, steps, 0) &^ edges
}

// findMagic searches for a multiplier that maps every subset of the mask to
// a slot holding that subset's attacks. Constructive collisions, where two
// subsets share a slot and the same attacks, are allowed.
func findMagic(m *magic, sq Square, steps [4][2]int, rng *prng) {
	m.mask = relevantMask(sq, steps)
	n := m.mask.PopCount()
	m.shift = uint8(64 - n)
	size := 1 << n

	occupancy := make([]Bitboard, 0, size)
	reference := make([]Bitboard, 0, size)
	for b := Bitboard(0); ; {
		occupancy = append(occupancy, b)
		reference = append(reference, slidingAttacks(sq, steps, b))
		b = (b - m.mask) & m.mask
		if b == 0 {
			break
		}
	}

	m.attacks = make([]Bitboard, size)
	epoch := make([]int, size)
	for attempt := 1; ; attempt++ {
		m.number = rng.sparse()
		if bits.OnesCount64((uint64(m.mask)*m.number)>>56) < 6 {
			continue
		}
		ok := true
		for i, occ := range occupancy {
			idx := m.index(occ)
			if epoch[idx] < attempt {
				epoch[idx] = attempt
				m.attacks[idx] = reference[i]
			} else if m.attacks[idx] != reference[i] {
				ok = false
				break
			}
		}
		if ok {
			return
		}
	}
}
