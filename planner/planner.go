// Package planner implements C3: the bitset operation planner. A
// Planner describes an N-ary boolean composition - AND, OR, XOR,
// ANDNOT, nestable - as a left-folded sequence of operands, and
// executes it with a lockstep cursor walk over the operands' word
// streams, in the style of the teacher's wahl-or.go pairwise merge,
// generalized from "two bitmaps, one operator" to "a chain of
// operands, one operator per step".
//
// No operand is ever decompressed into a bit array: each step jumps
// its two cursors from event to event - the point where either
// operand's current run of identical blocks ends - consuming a whole
// clean fill span in one step exactly as wahl-or.go consumes
// min(rlen1, rlen2) of two runs at a time, rather than unrolling every
// block in between.
package planner

import (
	"github.com/alphazero/bitset/bitset"
	"github.com/alphazero/bitset/config"
	"github.com/alphazero/bitset/internal/errs"
	"github.com/alphazero/bitset/internal/tracing"
	"github.com/alphazero/bitset/word"
)

var trace = tracing.For("planner")

// Op identifies a binary boolean operator a step folds its operand in
// with.
type Op int

const (
	And Op = iota
	Or
	Xor
	AndNot
)

func (op Op) String() string {
	switch op {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Xor:
		return "XOR"
	case AndNot:
		return "ANDNOT"
	default:
		return "?"
	}
}

func (op Op) apply(a, b uint32) uint32 {
	switch op {
	case And:
		return a & b
	case Or:
		return a | b
	case Xor:
		return a ^ b
	case AndNot:
		return a &^ b
	default:
		return 0
	}
}

// Operand is one input to a planner step: either a concrete bitset or
// a nested sub-plan, resolved lazily at exec time.
type Operand struct {
	bs  *bitset.Bitset
	sub *Planner
}

// FromBitset wraps a concrete bitset as an operand.
func FromBitset(b *bitset.Bitset) Operand { return Operand{bs: b} }

// FromPlanner wraps a nested plan as an operand: its own exec result
// becomes this step's operand.
func FromPlanner(p *Planner) Operand { return Operand{sub: p} }

func (o Operand) resolve() (*bitset.Bitset, error) {
	if o.bs != nil {
		return o.bs, nil
	}
	if o.sub != nil {
		return o.sub.Exec()
	}
	return nil, errs.InvalidArg("planner.Operand", "empty operand")
}

type step struct {
	op      Op
	operand Operand
}

// Planner accumulates a left-folded chain of operands: base OP1
// operand1 OP2 operand2 ... The first operand added (via Add) has no
// associated operator - it seeds the fold.
type Planner struct {
	base    Operand
	hasBase bool
	steps   []step
	cfg     config.Config
}

// New returns an empty planner.
func New(opts ...config.Option) *Planner {
	return &Planner{cfg: config.Resolve(opts...)}
}

// Add seeds the fold with the base operand. Only the first call takes
// effect; later calls are ignored, matching the reference's add()
// which sets the initial operand once.
func (p *Planner) Add(o Operand) *Planner {
	if !p.hasBase {
		p.base = o
		p.hasBase = true
	}
	return p
}

func (p *Planner) step(op Op, o Operand) *Planner {
	if !p.hasBase {
		return p.Add(o)
	}
	p.steps = append(p.steps, step{op: op, operand: o})
	return p
}

// And folds o into the plan with AND.
func (p *Planner) And(o Operand) *Planner { return p.step(And, o) }

// Or folds o into the plan with OR.
func (p *Planner) Or(o Operand) *Planner { return p.step(Or, o) }

// Xor folds o into the plan with XOR.
func (p *Planner) Xor(o Operand) *Planner { return p.step(Xor, o) }

// AndNot folds o into the plan with ANDNOT (AND of the complement).
func (p *Planner) AndNot(o Operand) *Planner { return p.step(AndNot, o) }

// Exec runs the plan and returns the resulting canonical bitset.
func (p *Planner) Exec() (*bitset.Bitset, error) {
	if !p.hasBase {
		return bitset.New(), nil
	}
	acc, err := p.base.resolve()
	if err != nil {
		return nil, err
	}
	for _, s := range p.steps {
		rhs, err := s.operand.resolve()
		if err != nil {
			return nil, err
		}
		acc = merge(acc, rhs, s.op)
		trace.Debugw("fold", "op", s.op.String(), "words", len(acc.Words()))
	}
	return acc, nil
}

// Count runs the plan and returns only the population count of the
// result, without ever materializing a final word stream - the last
// fold's emitted words are counted as they are produced instead of
// being kept.
func (p *Planner) Count() (uint64, error) {
	if !p.hasBase {
		return 0, nil
	}
	acc, err := p.base.resolve()
	if err != nil {
		return 0, err
	}
	if len(p.steps) == 0 {
		return acc.Count(), nil
	}
	for i, s := range p.steps {
		rhs, err := s.operand.resolve()
		if err != nil {
			return 0, err
		}
		if i == len(p.steps)-1 {
			return mergeCount(acc, rhs, s.op), nil
		}
		acc = merge(acc, rhs, s.op)
	}
	return acc.Count(), nil
}

/// lockstep block-cursor merge ////////////////////////////////////////////////

// infiniteRun stands in for "this cursor has run off the end of its
// word stream, and every block from here on is an implicit zero" -
// large enough that it is always clipped by the merge loop's own
// extent bound.
const infiniteRun = ^uint64(0)

// cursor walks one bitset's word stream forward-only in whole runs
// rather than block by block: peek reports both the payload of the
// current block and how many consecutive blocks carry that same
// payload, so a merge can skip an entire clean fill run - however
// far two sparse, far-apart operands' next set bits are - in one
// step, in the style of the teacher's wahl-or.go, which consumes
// min(rlen1, rlen2) of two runs at a time rather than unrolling them.
type cursor struct {
	words []word.Word
	idx   int
	pos   uint64 // blocks of words[idx] already consumed
}

func newCursor(b *bitset.Bitset) *cursor {
	return &cursor{words: b.Words()}
}

// peek returns the current block's payload and the length of the run
// of consecutive blocks (starting here) sharing that payload. A
// nonzero payload always has run 1 - only a fill's clean span can
// ever report run > 1, and such a span is all zero.
func (c *cursor) peek() (payload uint32, run uint64) {
	for c.idx < len(c.words) {
		w := c.words[c.idx]
		if word.IsLiteral(w) {
			return uint32(w) & uint32(word.LiteralOneBit), 1
		}
		L := uint64(word.FillLength(w))
		if c.pos < L {
			return 0, L - c.pos
		}
		if p := word.FillPosition(w); p >= 0 && c.pos == L {
			return uint32(word.LiteralForBit(p)), 1
		}
		c.idx++
		c.pos = 0
	}
	return 0, infiniteRun
}

// advance consumes n blocks, n no greater than peek's most recent run.
func (c *cursor) advance(n uint64) {
	if c.idx >= len(c.words) {
		return
	}
	w := c.words[c.idx]
	if word.IsLiteral(w) {
		c.idx++
		c.pos = 0
		return
	}
	c.pos += n
	total := uint64(word.FillLength(w))
	if word.FillPosition(w) >= 0 {
		total++
	}
	if c.pos >= total {
		c.idx++
		c.pos = 0
	}
}

// extent returns the total number of logical blocks b's word stream
// spans (the block index one past the last block any word touches).
func extent(b *bitset.Bitset) uint64 {
	var blk uint64
	for _, w := range b.Words() {
		if word.IsLiteral(w) {
			blk++
			continue
		}
		L := uint64(word.FillLength(w))
		if word.FillPosition(w) >= 0 {
			blk += L + 1
		} else {
			blk += L
		}
	}
	return blk
}

// emitter accumulates a canonical word stream from a sequence of
// 31-bit block payloads - each possibly covering a run of n identical
// blocks at once - coalescing zero runs into fills and folding a lone
// single-bit block immediately following a run into that fill's
// absorbed-bit position - the same canonicalization the bitset
// engine's mutators perform, driven here by a merge instead of a
// single-offset set().
type emitter struct {
	words   []word.Word
	zeroRun uint64
}

// feed records n consecutive blocks of payload. Only a zero payload
// is ever fed with n > 1 - merge never hands the emitter a run longer
// than 1 for a nonzero result (see cursor.peek).
func (e *emitter) feed(payload uint32, n uint64) {
	if payload == 0 {
		e.zeroRun += n
		return
	}
	if pos := singleBitPos(payload); pos >= 0 {
		e.words = append(e.words, word.Chain(e.zeroRun, pos)...)
		e.zeroRun = 0
		return
	}
	if e.zeroRun > 0 {
		e.words = append(e.words, word.Chain(e.zeroRun, -1)...)
		e.zeroRun = 0
	}
	e.words = append(e.words, word.Word(payload))
}

func (e *emitter) finish() []word.Word {
	// a trailing zero run carries no information: offsets past the end
	// of the word stream are implicitly unset.
	return e.words
}

func singleBitPos(payload uint32) int {
	w := word.Word(payload)
	if word.Popcount31(w) != 1 {
		return -1
	}
	for p := 0; p < word.LiteralPayload; p++ {
		if word.LiteralBit(w, p) {
			return p
		}
	}
	return -1
}

// merge folds rhs into lhs with op, returning a new canonical bitset.
// The result always carries 64-bit-capable offsets internally; a
// narrower configured width is enforced on SetTo, which a planner
// result is never subject to directly.
//
// The walk jumps from event to event - the point where either
// operand's current run ends - rather than visiting every block, so
// two sparse operands whose next set bits are a fill's worth of clean
// blocks apart cost one step, not one step per block in between.
func merge(lhs, rhs *bitset.Bitset, op Op) *bitset.Bitset {
	ca, cb := newCursor(lhs), newCursor(rhs)
	total := extent(lhs)
	if e := extent(rhs); e > total {
		total = e
	}
	var e emitter
	for blk := uint64(0); blk < total; {
		pa, ra := ca.peek()
		pb, rb := cb.peek()
		n := minRun(ra, rb, total-blk)
		e.feed(op.apply(pa, pb), n)
		ca.advance(n)
		cb.advance(n)
		blk += n
	}
	return bitset.FromWords(e.finish(), config.WithOffsetWidth64())
}

// mergeCount folds rhs into lhs with op and returns only the
// resulting population count, without building the emitted word
// stream into a retained slice. Same event-jump walk as merge.
func mergeCount(lhs, rhs *bitset.Bitset, op Op) uint64 {
	ca, cb := newCursor(lhs), newCursor(rhs)
	total := extent(lhs)
	if e := extent(rhs); e > total {
		total = e
	}
	var count uint64
	for blk := uint64(0); blk < total; {
		pa, ra := ca.peek()
		pb, rb := cb.peek()
		n := minRun(ra, rb, total-blk)
		if payload := op.apply(pa, pb); payload != 0 {
			// n is always 1 here: a run longer than one block is only
			// ever reported for a clean (all-zero) span, see cursor.peek.
			count += uint64(word.Popcount31(word.Word(payload)))
		}
		ca.advance(n)
		cb.advance(n)
		blk += n
	}
	return count
}

func minRun(a, b, c uint64) uint64 {
	n := a
	if b < n {
		n = b
	}
	if c < n {
		n = c
	}
	return n
}
