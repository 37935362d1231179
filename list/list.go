// Package list implements C4: the append-only bitset list. A List is
// a packed byte buffer of (delta-offset varint, word-count varint,
// words...) entries, grown with the module's shared power-of-two
// policy (internal/growbuf) exactly as the teacher's own array types
// grow, and read back out through a windowed Iterator that decodes
// one entry's words at a time from the list's buffer instead of
// decoding the whole thing up front. Each returned bitset holds its own
// copy of the entry's words; it is not a view into the buffer.
package list

import (
	"context"
	"encoding/binary"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alphazero/bitset/bitset"
	"github.com/alphazero/bitset/config"
	"github.com/alphazero/bitset/internal/errs"
	"github.com/alphazero/bitset/internal/growbuf"
	"github.com/alphazero/bitset/internal/tracing"
	"github.com/alphazero/bitset/internal/varint"
	"github.com/alphazero/bitset/planner"
	"github.com/alphazero/bitset/word"
)

var trace = tracing.For("list")

// Open, passed as either bound of Iterator or CountRange, means "no
// lower bound" or "no upper bound" on entry offset respectively - the
// list's open sentinels.
const Open = -1

type entry struct {
	offset     uint64
	wordsStart int
	wordCount  int
}

// List is an append-only sequence of (offset, bitset) pairs. The zero
// value is not ready for use - construct one with New or
// NewFromBuffer.
type List struct {
	buf     []byte
	entries []entry
	cfg     config.Config
	id      uuid.UUID
}

// New returns an empty list.
func New(opts ...config.Option) *List {
	return &List{cfg: config.Resolve(opts...), id: uuid.New()}
}

// NewFromBuffer parses buf as a previously-serialized list, re-deriving
// entry offsets and boundaries by walking the buffer once - the same
// self-describing round trip the reference's bitset_list_new_buffer
// performs.
func NewFromBuffer(buf []byte, opts ...config.Option) (*List, error) {
	var entries []entry
	var last uint64
	pos := 0
	for pos < len(buf) {
		delta, n, err := varint.Decode(buf[pos:])
		if err != nil {
			return nil, errs.InvalidArg("list.NewFromBuffer", "entry %d: delta: %v", len(entries), err)
		}
		pos += n
		wc, n2, err := varint.Decode(buf[pos:])
		if err != nil {
			return nil, errs.InvalidArg("list.NewFromBuffer", "entry %d: word count: %v", len(entries), err)
		}
		pos += n2

		var offset uint64
		if len(entries) == 0 {
			offset = delta
		} else {
			offset = last + delta
		}
		last = offset

		wordsStart := pos
		need := int(wc) * 4
		if pos+need > len(buf) {
			return nil, errs.InvalidArg("list.NewFromBuffer", "entry %d: truncated word payload", len(entries))
		}
		pos += need
		entries = append(entries, entry{offset: offset, wordsStart: wordsStart, wordCount: int(wc)})
	}
	owned := append([]byte(nil), buf...)
	return &List{buf: owned, entries: entries, cfg: config.Resolve(opts...), id: uuid.New()}, nil
}

// ID returns this list's identity, assigned once at construction.
func (l *List) ID() uuid.UUID { return l.id }

// Length returns the byte length of the packed entry buffer.
func (l *List) Length() int { return len(l.buf) }

// EntryCount returns the number of (offset, bitset) entries pushed.
func (l *List) EntryCount() int { return len(l.entries) }

// Bytes returns the packed buffer, suitable for NewFromBuffer.
func (l *List) Bytes() []byte {
	return append([]byte(nil), l.buf...)
}

// Push appends bs at offset. offset must be strictly greater than the
// offset of the previously pushed entry (spec.md §4.4's append-only
// invariant); list membership is keyed by construction order, not by
// a sorted-insert.
func (l *List) Push(offset uint64, bs *bitset.Bitset) error {
	if len(l.entries) > 0 && offset <= l.entries[len(l.entries)-1].offset {
		return errs.InvalidArg("list.Push", "offset %d does not exceed the list's last offset %d", offset, l.entries[len(l.entries)-1].offset)
	}
	var delta uint64
	if len(l.entries) == 0 {
		delta = offset
	} else {
		delta = offset - l.entries[len(l.entries)-1].offset
	}

	words := bs.Words()
	var hdr []byte
	hdr, err := varint.Encode(hdr, delta)
	if err != nil {
		return err
	}
	hdr, err = varint.Encode(hdr, uint64(len(words)))
	if err != nil {
		return err
	}

	need := len(hdr) + len(words)*4
	oldLen := len(l.buf)
	buf, err := growbuf.GrowBytes(l.buf, oldLen+need, l.cfg.OOMPolicy)
	if err != nil {
		return err
	}
	l.buf = buf
	pos := oldLen
	copy(l.buf[pos:], hdr)
	pos += len(hdr)
	wordsStart := pos
	for _, w := range words {
		binary.LittleEndian.PutUint32(l.buf[pos:], w)
		pos += 4
	}

	l.entries = append(l.entries, entry{offset: offset, wordsStart: wordsStart, wordCount: len(words)})
	trace.Debugw("push", "offset", offset, "words", len(words), "entries", len(l.entries))
	return nil
}

func (l *List) bitsetAt(i int) *bitset.Bitset {
	e := l.entries[i]
	words := make([]word.Word, e.wordCount)
	base := e.wordsStart
	for j := range words {
		words[j] = binary.LittleEndian.Uint32(l.buf[base+j*4:])
	}
	return bitset.FromWords(words, config.WithOffsetWidth64())
}

/// iteration //////////////////////////////////////////////////////////////////

// Iterator walks the entries whose offset falls in a half-open
// absolute-offset window [start, end), copying each entry's words out
// of the list's own buffer only when that entry is reached rather than
// materializing the whole list.
type Iterator struct {
	list       *List
	start, end int // resolved entry-index range
	cursor     int
}

// Iterator returns an iterator over every pushed entry whose offset o
// satisfies start <= o < end (spec.md §4.4), mirroring the reference's
// bitset_list_iterator_new. Pass Open for start to mean "from the
// first entry" and Open for end to mean "through the last entry" -
// entries are never negatively offset, so a missing lower bound
// matches everything and a missing upper bound excludes nothing.
func (l *List) Iterator(start, end int) (*Iterator, error) {
	if start != Open && end != Open && start > end {
		return nil, errs.InvalidArg("list.Iterator", "invalid window [%d, %d)", start, end)
	}
	lo, hi := l.resolveOffsetWindow(start, end)
	return &Iterator{list: l, start: lo, end: hi, cursor: lo}, nil
}

// resolveOffsetWindow turns an absolute-offset window into the
// half-open range of entry indices it covers, via binary search over
// the list's strictly-increasing entry offsets.
func (l *List) resolveOffsetWindow(start, end int) (lo, hi int) {
	lo = 0
	if start != Open {
		lo = sort.Search(len(l.entries), func(i int) bool {
			return l.entries[i].offset >= uint64(start)
		})
	}
	hi = len(l.entries)
	if end != Open {
		hi = sort.Search(len(l.entries), func(i int) bool {
			return l.entries[i].offset >= uint64(end)
		})
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Next returns the next (offset, bitset) pair in the window, or
// ok=false once the window is exhausted.
func (it *Iterator) Next() (offset uint64, bs *bitset.Bitset, ok bool) {
	if it.cursor >= it.end {
		return 0, nil, false
	}
	e := it.list.entries[it.cursor]
	bs = it.list.bitsetAt(it.cursor)
	offset = e.offset
	it.cursor++
	return offset, bs, true
}

// Count returns (raw, unique) over the iterator's window: raw is the
// sum of each entry's own population count, unique is the population
// count of their union (an OR-fold through the planner).
func (it *Iterator) Count() (raw, unique uint64, err error) {
	if it.start >= it.end {
		return 0, 0, nil
	}
	p := planner.New()
	for i := it.start; i < it.end; i++ {
		bs := it.list.bitsetAt(i)
		raw += bs.Count()
		if i == it.start {
			p.Add(planner.FromBitset(bs))
		} else {
			p.Or(planner.FromBitset(bs))
		}
	}
	unique, err = p.Count()
	return raw, unique, err
}

// Concat builds a new list holding a's entries followed by b's, with
// every offset of b's entries shifted forward by shift. Supplemented
// from original_source/src/list.c's bitset_list_iterator_concat.
func Concat(a, b *List, shift uint64, opts ...config.Option) (*List, error) {
	out := New(opts...)
	ia, err := a.Iterator(Open, Open)
	if err != nil {
		return nil, err
	}
	for {
		o, bs, ok := ia.Next()
		if !ok {
			break
		}
		if err := out.Push(o, bs); err != nil {
			return nil, err
		}
	}
	ib, err := b.Iterator(Open, Open)
	if err != nil {
		return nil, err
	}
	for {
		o, bs, ok := ib.Next()
		if !ok {
			break
		}
		if err := out.Push(o+shift, bs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CountRange is the concurrent counterpart to Iterator(start,end).Count():
// it resolves the same absolute-offset window Iterator does, fans the
// matching entries out across GOMAXPROCS workers with errgroup, each
// computing a partial raw sum and a partial OR-fold, then reduces the
// partials sequentially. Not in the reference implementation - added
// because a list spanning many entries is exactly the shape a worker
// pool earns its keep on (SPEC_FULL.md §4, supplemented features).
func (l *List) CountRange(start, end int) (raw, unique uint64, err error) {
	if start != Open && end != Open && start > end {
		return 0, 0, errs.InvalidArg("list.CountRange", "invalid window [%d, %d)", start, end)
	}
	start, end = l.resolveOffsetWindow(start, end)
	if start == end {
		return 0, 0, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > end-start {
		workers = end - start
	}
	chunk := (end - start + workers - 1) / workers

	raws := make([]uint64, workers)
	partials := make([]*bitset.Bitset, workers)

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		cs := start + w*chunk
		ce := cs + chunk
		if ce > end {
			ce = end
		}
		if cs >= ce {
			continue
		}
		g.Go(func() error {
			p := planner.New()
			var r uint64
			for i := cs; i < ce; i++ {
				bs := l.bitsetAt(i)
				r += bs.Count()
				if i == cs {
					p.Add(planner.FromBitset(bs))
				} else {
					p.Or(planner.FromBitset(bs))
				}
			}
			res, err := p.Exec()
			if err != nil {
				return err
			}
			raws[w] = r
			partials[w] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	final := planner.New()
	first := true
	for w := 0; w < workers; w++ {
		raw += raws[w]
		if partials[w] == nil {
			continue
		}
		if first {
			final.Add(planner.FromBitset(partials[w]))
			first = false
		} else {
			final.Or(planner.FromBitset(partials[w]))
		}
	}
	unique, err = final.Count()
	return raw, unique, err
}
