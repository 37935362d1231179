// Package bitset implements C2: the compressed bitset engine. A
// Bitset owns a dynamically sized sequence of encoded words (see the
// word package) and exposes random-access get/set/unset, population
// count, min/max, clear, copy, and byte-buffer serialization, all
// operating directly on the compressed word stream - there is no
// decompression step anywhere in this file.
package bitset

import (
	"encoding/binary"

	"github.com/alphazero/bitset/config"
	"github.com/alphazero/bitset/internal/errs"
	"github.com/alphazero/bitset/internal/growbuf"
	"github.com/alphazero/bitset/internal/tracing"
	"github.com/alphazero/bitset/word"
)

var trace = tracing.For("bitset")

// blockBits is the number of logical bits a single literal word (or
// one block of a fill's run) covers: the 31-bit payload of a literal.
const blockBits = word.LiteralPayload

// Bitset is a word-aligned hybrid compressed set of non-negative
// integer offsets. The zero value is not ready for use - construct
// one with New, NewFromBuffer, or NewFromBits.
type Bitset struct {
	words []word.Word
	cfg   config.Config
}

// New allocates an empty bitset.
func New(opts ...config.Option) *Bitset {
	return &Bitset{cfg: config.Resolve(opts...)}
}

// NewFromBuffer interprets buf as a packed array of little-endian
// 32-bit encoded words and copies them. len(buf) must be a multiple of
// 4 (spec.md §4.2/§6); a fill word whose reserved color bit is set is
// rejected (decision OQ-1 in DESIGN.md - this module never emits one
// and the format for it is unspecified).
func NewFromBuffer(buf []byte, opts ...config.Option) (*Bitset, error) {
	if len(buf)%4 != 0 {
		return nil, errs.InvalidArg("bitset.NewFromBuffer", "buffer length %d is not a multiple of 4", len(buf))
	}
	n := len(buf) / 4
	words := make([]word.Word, n)
	for i := 0; i < n; i++ {
		w := binary.LittleEndian.Uint32(buf[i*4:])
		if word.IsFill(w) && word.HasColor(w) {
			return nil, errs.InvalidArg("bitset.NewFromBuffer", "fill word at index %d sets the reserved color bit", i)
		}
		words[i] = w
	}
	return &Bitset{words: words, cfg: config.Resolve(opts...)}, nil
}

// NewFromBits constructs a bitset with exactly the given offsets set,
// in canonical form on return.
func NewFromBits(offsets []uint64, opts ...config.Option) (*Bitset, error) {
	b := New(opts...)
	for _, o := range offsets {
		if _, err := b.Set(o); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Copy returns a new bitset with an identical word stream.
func (b *Bitset) Copy() *Bitset {
	words := make([]word.Word, len(b.words))
	copy(words, b.words)
	return &Bitset{words: words, cfg: b.cfg}
}

// Clear resets the bitset to empty, preserving allocated capacity.
func (b *Bitset) Clear() {
	b.words = b.words[:0]
}

// Length returns the byte length of the encoded word stream.
func (b *Bitset) Length() int { return len(b.words) * 4 }

// Bytes serializes the word stream to a little-endian byte buffer -
// the canonical interchange format of spec.md §6.
func (b *Bitset) Bytes() []byte {
	buf := make([]byte, len(b.words)*4)
	for i, w := range b.words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// Words exposes the raw encoded word stream to the planner and list
// packages, which must walk bitsets in lockstep without forcing a copy.
func (b *Bitset) Words() []word.Word { return b.words }

// fromWords wraps an already-canonical word stream without copying.
// Internal constructor used by the planner's execution engine.
func fromWords(words []word.Word, cfg config.Config) *Bitset {
	return &Bitset{words: words, cfg: cfg}
}

// FromWords is the planner-facing equivalent of fromWords.
func FromWords(words []word.Word, opts ...config.Option) *Bitset {
	return fromWords(words, config.Resolve(opts...))
}

// Get reports whether offset is set.
func (b *Bitset) Get(offset uint64) bool {
	blk, inOff := blockOf(offset)
	idx, blkStart := locate(b.words, blk)
	if idx >= len(b.words) {
		return false
	}
	w := b.words[idx]
	if word.IsLiteral(w) {
		return word.LiteralBit(w, inOff)
	}
	L := uint64(word.FillLength(w))
	if blk < blkStart+L {
		return false
	}
	return word.FillPosition(w) == inOff
}

// Count returns the population count: the number of set bits.
func (b *Bitset) Count() uint64 {
	var n uint64
	for _, w := range b.words {
		if word.IsLiteral(w) {
			n += uint64(word.Popcount31(w))
		} else if word.FillPosition(w) >= 0 {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the bitset has no set bits. Added because
// Min/Max return 0 on empty (matching the reference, see DESIGN.md
// OQ-2) which is indistinguishable from "bit 0 is set".
func (b *Bitset) IsEmpty() bool {
	return b.Count() == 0
}

// Min returns the lowest set offset, or 0 if the bitset is empty.
func (b *Bitset) Min() uint64 {
	var blk uint64
	for _, w := range b.words {
		if word.IsLiteral(w) {
			if p := firstSetBit(w); p >= 0 {
				return blk*blockBits + uint64(p)
			}
			blk++
			continue
		}
		L := uint64(word.FillLength(w))
		if p := word.FillPosition(w); p >= 0 {
			return (blk+L)*blockBits + uint64(p)
		}
		blk += L
	}
	return 0
}

// Max returns the highest set offset, or 0 if the bitset is empty.
func (b *Bitset) Max() uint64 {
	var blk uint64
	var max uint64
	var found bool
	for _, w := range b.words {
		if word.IsLiteral(w) {
			if p := lastSetBit(w); p >= 0 {
				max = blk*blockBits + uint64(p)
				found = true
			}
			blk++
			continue
		}
		L := uint64(word.FillLength(w))
		p := word.FillPosition(w)
		if p >= 0 {
			max = (blk+L)*blockBits + uint64(p)
			found = true
			blk += L + 1
		} else {
			blk += L
		}
	}
	if !found {
		return 0
	}
	return max
}

// Set sets offset to true, returning its previous value.
func (b *Bitset) Set(offset uint64) (bool, error) { return b.SetTo(offset, true) }

// Unset sets offset to false, returning its previous value.
func (b *Bitset) Unset(offset uint64) (bool, error) { return b.SetTo(offset, false) }

// SetTo sets offset to v, returning its previous value. Canonical form
// (spec.md §3) is restored before returning.
func (b *Bitset) SetTo(offset uint64, v bool) (bool, error) {
	if offset > b.cfg.OffsetWidth.MaxOffset() {
		return false, errs.Overflowf("bitset.SetTo", "offset %d exceeds configured width", offset)
	}
	blk, inOff := blockOf(offset)
	idx, blkStart := locate(b.words, blk)

	var prev bool
	var touched int
	var err error

	switch {
	case idx >= len(b.words):
		prev, touched, err = b.setPastEnd(blk, blkStart, inOff, v)
	case word.IsLiteral(b.words[idx]):
		prev, touched = b.setInLiteral(idx, inOff, v)
	default:
		w := b.words[idx]
		L := uint64(word.FillLength(w))
		if blk < blkStart+L {
			prev, touched = b.setInFillSpan(idx, blkStart, L, word.FillPosition(w), blk, inOff, v)
		} else {
			prev, touched = b.setAbsorbedBit(idx, word.FillPosition(w), inOff, v)
		}
	}
	if err != nil {
		return false, err
	}

	b.canonicalizeNear(touched)
	b.trimTrailingEmptyFill()
	trace.Debugw("set", "offset", offset, "value", v, "prev", prev, "words", len(b.words))
	return prev, nil
}

/// internal cursor walk /////////////////////////////////////////////////////

func blockOf(offset uint64) (blk uint64, inOff int) {
	return offset / blockBits, int(offset % blockBits)
}

// locate returns the index of the word covering logical block blk
// (literal at blk, or fill whose clean span or absorbed block covers
// blk), and the block index at which that word's coverage begins.
// idx == len(words) means blk is past every word's coverage.
func locate(words []word.Word, blk uint64) (idx int, blkStart uint64) {
	var cur uint64
	for i, w := range words {
		if word.IsLiteral(w) {
			if blk == cur {
				return i, cur
			}
			cur++
			continue
		}
		L := uint64(word.FillLength(w))
		if blk < cur+L {
			return i, cur
		}
		if p := word.FillPosition(w); p >= 0 {
			if blk == cur+L {
				return i, cur
			}
			cur += L + 1
		} else {
			cur += L
		}
	}
	return len(words), cur
}

func firstSetBit(w word.Word) int {
	for p := 0; p < word.LiteralPayload; p++ {
		if word.LiteralBit(w, p) {
			return p
		}
	}
	return -1
}

func lastSetBit(w word.Word) int {
	for p := word.LiteralPayload - 1; p >= 0; p-- {
		if word.LiteralBit(w, p) {
			return p
		}
	}
	return -1
}

/// mutation cases (spec.md §4.2) //////////////////////////////////////////////

// setPastEnd handles the case where the cursor never reached blk: the
// bitset's word stream ends before the target block.
func (b *Bitset) setPastEnd(blk, blkStart uint64, inOff int, v bool) (prev bool, touched int, err error) {
	if !v {
		return false, -1, nil
	}
	gap := blk - blkStart
	chain := word.Chain(gap, inOff)
	start := len(b.words)
	words, err := growWords(b.words, start+len(chain), b.cfg)
	if err != nil {
		return false, -1, err
	}
	b.words = words
	copy(b.words[start:], chain)
	return false, start - 1, nil
}

// setInLiteral flips bit inOff of the literal at idx.
func (b *Bitset) setInLiteral(idx, inOff int, v bool) (prev bool, touched int) {
	w := b.words[idx]
	prev = word.LiteralBit(w, inOff)
	b.words[idx] = word.SetLiteralBit(w, inOff, v)
	return prev, idx
}

// setInFillSpan handles a set/unset landing inside a fill's clean
// span (not its absorbed block).
func (b *Bitset) setInFillSpan(idx int, blkStart, L uint64, origP int, blk uint64, inOff int, v bool) (prev bool, touched int) {
	if !v {
		return false, -1
	}
	k := blk - blkStart
	trailing := L - k - 1

	// the new bit folds directly onto the head chain's last word as its
	// absorbed bit, rather than splitting off a separate literal - one
	// fewer word, and the only form the reference ever produces.
	head := word.Chain(k, inOff)
	newWords := append([]word.Word(nil), head...)
	headIdx := len(newWords) - 1
	if trailing > 0 || origP >= 0 {
		// the original fill's absorbed bit (if any) sits right after its
		// clean run, which now starts right after the bit we just folded
		// onto the head chain - carry it forward onto the trailing chain.
		newWords = append(newWords, word.Chain(trailing, origP)...)
	}

	b.spliceWords(idx, idx+1, newWords)
	return false, idx + headIdx
}

// setAbsorbedBit handles a set/unset landing on a fill's absorbed
// bit block (the single block immediately after the fill's clean run).
func (b *Bitset) setAbsorbedBit(idx int, P int, inOff int, v bool) (prev bool, touched int) {
	w := b.words[idx]
	if v {
		if inOff == P {
			return true, -1
		}
		cleared := word.ClearFillPosition(w)
		lit := word.LiteralForBit(P) | word.LiteralForBit(inOff)
		b.spliceWords(idx, idx+1, []word.Word{cleared, lit})
		return false, idx + 1
	}
	if inOff != P {
		return false, -1
	}
	// clearing the absorbed bit extends the clean run by the one block
	// it used to occupy.
	newLen := uint64(word.FillLength(w)) + 1
	if newLen <= uint64(word.MaxFillLength) {
		nf, _ := word.MakeFill(uint32(newLen), -1)
		b.words[idx] = nf
		return true, idx
	}
	// length would overflow a single fill word at the max-length
	// boundary: keep the original run and append one more clean block.
	extra, _ := word.MakeFill(1, -1)
	b.spliceWords(idx, idx+1, []word.Word{word.ClearFillPosition(w), extra})
	return true, idx
}

/// splicing + canonicalization ////////////////////////////////////////////////

func (b *Bitset) spliceWords(from, to int, replacement []word.Word) {
	tail := append([]word.Word{}, b.words[to:]...)
	b.words = append(b.words[:from], replacement...)
	b.words = append(b.words, tail...)
}

func (b *Bitset) removeWord(idx int) {
	b.words = append(b.words[:idx], b.words[idx+1:]...)
}

// mergeForward merges words[idx] into words[idx+1] if words[idx] is a
// fill with no absorbed bit (P=0): rule 3 of spec.md §3, "a fill with
// P=0 followed by another fill absorbs into the second by summing
// lengths".
func (b *Bitset) mergeForward(idx int) {
	if idx < 0 || idx+1 >= len(b.words) {
		return
	}
	a, c := b.words[idx], b.words[idx+1]
	if !word.IsFill(a) || !word.IsFill(c) || word.FillPosition(a) != -1 {
		return
	}
	sum := uint64(word.FillLength(a)) + uint64(word.FillLength(c))
	if sum > uint64(word.MaxFillLength) {
		return
	}
	nf, _ := word.MakeFill(uint32(sum), word.FillPosition(c))
	b.words[idx] = nf
	b.removeWord(idx + 1)
}

// foldLiteralIntoPrecedingFill implements rule 4 of spec.md §3: a
// literal that is now all-zero or single-bit, directly preceded by a
// fill with P=0, folds into that fill.
func (b *Bitset) foldLiteralIntoPrecedingFill(idx int) bool {
	if idx <= 0 || idx >= len(b.words) {
		return false
	}
	w := b.words[idx]
	if !word.IsLiteral(w) {
		return false
	}
	prevW := b.words[idx-1]
	if !word.IsFill(prevW) || word.FillPosition(prevW) != -1 {
		return false
	}
	switch {
	case word.IsAllZeroLiteral(w):
		newLen := uint64(word.FillLength(prevW)) + 1
		if newLen > uint64(word.MaxFillLength) {
			return false
		}
		nf, _ := word.MakeFill(uint32(newLen), -1)
		b.words[idx-1] = nf
		b.removeWord(idx)
		return true
	default:
		if p := word.SingleBitPosition(w); p >= 0 {
			b.words[idx-1] = word.SetFillPosition(prevW, p)
			b.removeWord(idx)
			return true
		}
	}
	return false
}

// canonicalizeNear re-checks the adjacent window around a mutation at
// touched, per spec.md §4.2's "only adjacent windows around the
// mutation point need be re-checked" rule. touched < 0 means the
// mutation made no change (e.g. an unset no-op) and there is nothing
// to re-check.
func (b *Bitset) canonicalizeNear(touched int) {
	if touched < 0 {
		return
	}
	if touched < len(b.words) && word.IsLiteral(b.words[touched]) {
		if b.foldLiteralIntoPrecedingFill(touched) {
			touched--
		}
	}
	b.mergeForward(touched - 1)
	b.mergeForward(touched)
}

// trimTrailingEmptyFill enforces rule 1 of spec.md §3: a trailing fill
// with no absorbed bit, or a trailing all-zero literal, carries no
// information (bits past the end are implicitly zero) and is dropped.
func (b *Bitset) trimTrailingEmptyFill() {
	for len(b.words) > 0 {
		last := b.words[len(b.words)-1]
		if (word.IsFill(last) && word.FillPosition(last) == -1) || word.IsAllZeroLiteral(last) {
			b.words = b.words[:len(b.words)-1]
			continue
		}
		break
	}
}

// growWords applies the module's shared amortized-growth policy,
// honoring cfg's configured OOMPolicy on a sanity-bound allocation
// failure (see internal/growbuf).
func growWords(words []word.Word, length int, cfg config.Config) ([]word.Word, error) {
	return growbuf.GrowWords(words, length, cfg.OOMPolicy)
}
