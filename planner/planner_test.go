package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphazero/bitset/bitset"
	"github.com/alphazero/bitset/config"
)

func mustBits(t *testing.T, offsets ...uint64) *bitset.Bitset {
	t.Helper()
	b, err := bitset.NewFromBits(offsets)
	require.NoError(t, err)
	return b
}

func mustBits64(t *testing.T, offsets ...uint64) *bitset.Bitset {
	t.Helper()
	b, err := bitset.NewFromBits(offsets, config.WithOffsetWidth64())
	require.NoError(t, err)
	return b
}

func collect(b *bitset.Bitset, upto uint64) []uint64 {
	var out []uint64
	for o := uint64(0); o < upto; o++ {
		if b.Get(o) {
			out = append(out, o)
		}
	}
	return out
}

func TestOrFoldOfThreeBitsets(t *testing.T) {
	b1 := mustBits(t, 1, 32, 100)
	b2 := mustBits(t, 2, 32, 200)
	b3 := mustBits(t, 3, 300)

	p := New()
	p.Add(FromBitset(b1)).Or(FromBitset(b2)).Or(FromBitset(b3))
	got, err := p.Exec()
	require.NoError(t, err)

	require.Equal(t, []uint64{1, 2, 3, 32, 100, 200, 300}, collect(got, 301))
	require.Equal(t, uint64(7), got.Count())
}

func TestAndNotChain(t *testing.T) {
	b1 := mustBits(t, 1, 2, 3, 4, 5)
	b2 := mustBits(t, 2, 4)
	b3 := mustBits(t, 3)

	// (b1 AND b2) ANDNOT b3
	p := New()
	p.Add(FromBitset(b1)).And(FromBitset(b2)).AndNot(FromBitset(b3))
	got, err := p.Exec()
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 4}, collect(got, 10))
}

func TestNestedPlanner(t *testing.T) {
	b1 := mustBits(t, 1, 2, 3)
	b2 := mustBits(t, 2, 3, 4)
	b3 := mustBits(t, 5, 6)

	inner := New()
	inner.Add(FromBitset(b1)).Or(FromBitset(b2))

	outer := New()
	outer.Add(FromPlanner(inner)).Or(FromBitset(b3))

	got, err := outer.Exec()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, collect(got, 10))
}

func TestOrIsCommutativeAndAssociative(t *testing.T) {
	b1 := mustBits(t, 1, 500, 1000)
	b2 := mustBits(t, 2, 500, 2000)
	b3 := mustBits(t, 3, 1000, 2000)

	left := New()
	left.Add(FromBitset(b1)).Or(FromBitset(b2)).Or(FromBitset(b3))
	l, err := left.Exec()
	require.NoError(t, err)

	right := New()
	right.Add(FromBitset(b3)).Or(FromBitset(b1)).Or(FromBitset(b2))
	r, err := right.Exec()
	require.NoError(t, err)

	require.Equal(t, l.Count(), r.Count())
	require.Equal(t, collect(l, 2001), collect(r, 2001))
}

func TestXorSelfInverse(t *testing.T) {
	b := mustBits(t, 1, 2, 3, 500)
	p := New()
	p.Add(FromBitset(b)).Xor(FromBitset(b))
	got, err := p.Exec()
	require.NoError(t, err)
	require.Equal(t, uint64(0), got.Count())
}

func TestAndNotEqualsAndOfComplement(t *testing.T) {
	universe := mustBits(t, 0, 1, 2, 3, 4, 5, 6, 7)
	b := mustBits(t, 1, 2, 3)
	excl := mustBits(t, 2, 3)

	andnot := New()
	andnot.Add(FromBitset(b)).AndNot(FromBitset(excl))
	got1, err := andnot.Exec()
	require.NoError(t, err)

	// complement of excl within universe, ANDed with b.
	comp := New()
	comp.Add(FromBitset(universe)).AndNot(FromBitset(excl))
	compBS, err := comp.Exec()
	require.NoError(t, err)

	and := New()
	and.Add(FromBitset(b)).And(FromBitset(compBS))
	got2, err := and.Exec()
	require.NoError(t, err)

	require.Equal(t, collect(got1, 8), collect(got2, 8))
}

func TestPlannerCountMatchesExec(t *testing.T) {
	b1 := mustBits(t, 1, 2, 3, 4000)
	b2 := mustBits(t, 3, 4, 4000)

	p := New()
	p.Add(FromBitset(b1)).Or(FromBitset(b2))
	n, err := p.Count()
	require.NoError(t, err)

	exec := New()
	exec.Add(FromBitset(b1)).Or(FromBitset(b2))
	got, err := exec.Exec()
	require.NoError(t, err)

	require.Equal(t, got.Count(), n)
}

func TestEmptyPlannerExecsToEmpty(t *testing.T) {
	p := New()
	got, err := p.Exec()
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}

// TestSparseFarOffsetMerge exercises the event-jump cursor walk on two
// operands whose set bits sit ~10^12 apart, separated by a single
// enormous clean fill run each - the shape that would take on the
// order of 10^10 per-block steps under a naive walk. Correctness only
// (there is no wall-clock assertion here), but the merge must still
// terminate and produce the right answer in any reasonable test run.
func TestSparseFarOffsetMerge(t *testing.T) {
	const (
		lo  = uint64(7)
		mid = uint64(500_000_000_000)
		hi  = uint64(999_999_999_999)
	)
	b1 := mustBits64(t, lo, hi)
	b2 := mustBits64(t, mid, hi)

	p := New(config.WithOffsetWidth64())
	p.Add(FromBitset(b1)).Or(FromBitset(b2))
	got, err := p.Exec()
	require.NoError(t, err)
	require.True(t, got.Get(lo))
	require.True(t, got.Get(mid))
	require.True(t, got.Get(hi))
	require.Equal(t, uint64(3), got.Count())

	and := New(config.WithOffsetWidth64())
	and.Add(FromBitset(b1)).And(FromBitset(b2))
	gotAnd, err := and.Exec()
	require.NoError(t, err)
	require.Equal(t, uint64(1), gotAnd.Count())
	require.True(t, gotAnd.Get(hi))

	n, err := p.Count()
	require.NoError(t, err)
	require.Equal(t, got.Count(), n)
}

// TestOrOfLeadingBitIsCanonicalLiteral guards the emitter.feed path
// that mirrors test.c's "Testing partition of fill 7": a set bit
// emitted with no preceding zero run (zeroRun == 0, e.g. the very
// first block of a merge) must come out as a plain literal, never a
// degenerate fill(L=0, P>0).
func TestOrOfLeadingBitIsCanonicalLiteral(t *testing.T) {
	a := mustBits(t, 0)
	empty := bitset.New()

	p := New()
	p.Add(FromBitset(a)).Or(FromBitset(empty))
	got, err := p.Exec()
	require.NoError(t, err)
	require.Equal(t, []uint32{0x40000000}, got.Words())
}
