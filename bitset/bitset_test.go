package bitset

import (
	"encoding/binary"
	"sort"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"

	"github.com/alphazero/bitset/config"
	"github.com/alphazero/bitset/word"
)

func TestSingleBitAcrossBlockBoundary(t *testing.T) {
	// seed scenario 1: set(b, 31, true) on an empty bitset lands on the
	// first block boundary and is absorbed into a single fill.
	b := New()
	prev, err := b.Set(31)
	require.NoError(t, err)
	require.False(t, prev)
	require.True(t, b.Get(31))
	require.Equal(t, uint64(1), b.Count())
	require.Equal(t, uint64(31), b.Min())
	require.Equal(t, uint64(31), b.Max())
}

func TestFillPartitionSplit(t *testing.T) {
	// seed scenario 2: splitting a clean fill mid-run folds the new bit
	// onto the untouched prefix fill as its absorbed bit, and keeps the
	// rest of the run (with its original absorbed bit) as a trailing
	// fill.
	b := New()
	_, err := b.Set(93) // block 3, forces a multi-block clean run ahead of it
	require.NoError(t, err)
	_, err = b.Set(32) // lands inside the clean run, block 1
	require.NoError(t, err)
	require.True(t, b.Get(32))
	require.True(t, b.Get(93))
	require.False(t, b.Get(0))
	require.False(t, b.Get(61))
	require.Equal(t, uint64(2), b.Count())
}

func TestUnsetClearsAbsorbedBit(t *testing.T) {
	b := New()
	_, err := b.Set(31)
	require.NoError(t, err)
	prev, err := b.Unset(31)
	require.NoError(t, err)
	require.True(t, prev)
	require.False(t, b.Get(31))
	require.Equal(t, uint64(0), b.Count())
	require.True(t, b.IsEmpty())
}

func TestSetFalsePastEndDoesNotAllocate(t *testing.T) {
	b := New()
	prev, err := b.SetTo(1000, false)
	require.NoError(t, err)
	require.False(t, prev)
	require.Equal(t, 0, b.Length())
}

func TestRoundTripThroughBuffer(t *testing.T) {
	offsets := []uint64{0, 1, 30, 31, 32, 61, 62, 1000, 1_000_000}
	b, err := NewFromBits(offsets)
	require.NoError(t, err)

	buf := b.Bytes()
	b2, err := NewFromBuffer(buf)
	require.NoError(t, err)

	for _, o := range offsets {
		require.True(t, b2.Get(o), "offset %d", o)
	}
	require.Equal(t, b.Count(), b2.Count())
	require.Equal(t, b.Min(), b2.Min())
	require.Equal(t, b.Max(), b2.Max())
}

func TestMinMaxOnEmpty(t *testing.T) {
	b := New()
	require.Equal(t, uint64(0), b.Min())
	require.Equal(t, uint64(0), b.Max())
	require.True(t, b.IsEmpty())
}

func TestSetIdempotent(t *testing.T) {
	b := New()
	_, err := b.Set(500)
	require.NoError(t, err)
	prev, err := b.Set(500)
	require.NoError(t, err)
	require.True(t, prev)
	require.Equal(t, uint64(1), b.Count())
}

func TestSparse64BitOffsets(t *testing.T) {
	b := New(config.WithOffsetWidth64())
	far := uint64(1) << 40
	_, err := b.Set(far)
	require.NoError(t, err)
	require.True(t, b.Get(far))
	require.Equal(t, uint64(1), b.Count())
	require.Equal(t, far, b.Min())
	require.Equal(t, far, b.Max())
}

// naiveRef mirrors Bitset's semantics with a plain map, used as the
// oracle for the property-based test below.
type naiveRef struct {
	set map[uint64]bool
}

func newNaiveRef() *naiveRef { return &naiveRef{set: map[uint64]bool{}} }

func (r *naiveRef) SetTo(o uint64, v bool) bool {
	prev := r.set[o]
	if v {
		r.set[o] = true
	} else {
		delete(r.set, o)
	}
	return prev
}

func (r *naiveRef) Get(o uint64) bool { return r.set[o] }

func (r *naiveRef) Count() uint64 { return uint64(len(r.set)) }

func TestPropertySetAgainstNaiveReference(t *testing.T) {
	f := func(ops []uint32, vals []bool) bool {
		b := New()
		ref := newNaiveRef()
		n := len(ops)
		if len(vals) < n {
			n = len(vals)
		}
		for i := 0; i < n; i++ {
			o := uint64(ops[i]) % 100000
			v := vals[i]
			got, err := b.SetTo(o, v)
			if err != nil {
				return false
			}
			want := ref.SetTo(o, v)
			if got != want {
				return false
			}
		}
		if b.Count() != ref.Count() {
			return false
		}
		for o := range ref.set {
			if !b.Get(o) {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 200}))
}

func TestCanonicalFormNoTrailingEmptyFill(t *testing.T) {
	b := New()
	_, err := b.Set(10)
	require.NoError(t, err)
	_, err = b.Unset(10)
	require.NoError(t, err)
	require.Equal(t, 0, len(b.Words()), "clearing the only set bit must leave no trailing empty fill")
}

func TestPartitionOfFillHeadBecomesLiteral(t *testing.T) {
	// test.c "Testing partition of fill 7": a set landing exactly on a
	// fill's first clean block (k == 0) must replace that block with a
	// plain literal, never a degenerate fill(L=0, P>0).
	b := FromWords([]word.Word{0x82000001, 0x86000001})
	prev, err := b.SetTo(0, true)
	require.NoError(t, err)
	require.False(t, prev)
	require.Equal(t, []word.Word{0x40000000, 0x40000000, 0x86000001}, b.Words())
}

func TestPartitionOfFillHeadFoldsAbsorbedBit(t *testing.T) {
	// test.c "Testing partition of fill 8/9": a set landing inside a
	// fill's clean span with leading clean blocks (k > 0) must fold the
	// new bit onto the head fill as its absorbed position, not split it
	// into a separate clean-fill-plus-literal pair.
	b := FromWords([]word.Word{0x82000003, 0x86000001})
	prev, err := b.SetTo(32, true)
	require.NoError(t, err)
	require.False(t, prev)
	require.Equal(t, []word.Word{0x84000001, 0x82000001, 0x86000001}, b.Words())
}

func TestCopyIsIndependent(t *testing.T) {
	b := New()
	_, err := b.Set(5)
	require.NoError(t, err)
	c := b.Copy()
	_, err = c.Set(6)
	require.NoError(t, err)
	require.False(t, b.Get(6))
	require.True(t, c.Get(6))
}

func TestManySetOffsetsSorted(t *testing.T) {
	offsets := []uint64{5, 36, 67, 98, 129, 31 * 1000, 31*1000 + 5}
	b, err := NewFromBits(offsets)
	require.NoError(t, err)
	for _, o := range offsets {
		require.True(t, b.Get(o))
	}
	sorted := append([]uint64{}, offsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	require.Equal(t, sorted[0], b.Min())
	require.Equal(t, sorted[len(sorted)-1], b.Max())
	require.Equal(t, uint64(len(offsets)), b.Count())
}

func TestNewFromBufferRejectsColorBit(t *testing.T) {
	w, ok := word.MakeFill(10, -1)
	require.True(t, ok)
	w |= word.ColorBit

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, w)

	_, err := NewFromBuffer(buf)
	require.Error(t, err)
}

func TestNewFromBufferAcceptsPlainFill(t *testing.T) {
	w, ok := word.MakeFill(10, 3)
	require.True(t, ok)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, w)

	b, err := NewFromBuffer(buf)
	require.NoError(t, err)
	require.True(t, b.Get(10*31+3))
}
