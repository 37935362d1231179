// Package growbuf centralizes the power-of-two amortized growth policy
// that both the bitset word array and the bitset list byte buffer rely
// on (design notes §9: "centralize this in a generic growable-buffer
// abstraction rather than duplicating it"). It is also where the
// module's two OOMPolicy values actually take effect: Go's allocator
// does not hand malloc(3)'s NULL back to us, so the sanity bound below
// is this module's stand-in for the reference's bitset_oom() check.
package growbuf

import (
	"github.com/alphazero/bitset/config"
	"github.com/alphazero/bitset/internal/errs"
)

// maxWords/maxBytes bound a single growth request. Past this bound a
// request is treated as an allocation failure rather than handed to
// make - no real bitset or list approaches these sizes, so the bound
// only ever fires on a pathological or adversarial length.
const (
	maxWords = 1 << 32
	maxBytes = 1 << 34
)

// NextPow2 returns the smallest power of two >= n, or 1 if n is 0.
// Mirrors the teacher's BITSET_NEXT_POW2 macro bit-twiddle.
func NextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// GrowWords returns arr resized so that len(arr) == length, reusing the
// backing array when its capacity already covers length and growing it
// to the next power of two otherwise. Existing contents are preserved.
//
// If the grown capacity exceeds the sanity bound, the failure is
// reported according to policy: OOMAbort panics (matching the
// reference's bitset_oom(), which prints and exits), OOMPropagate
// returns an OutOfMemory error instead.
func GrowWords(arr []uint32, length int, policy config.OOMPolicy) ([]uint32, error) {
	if length <= cap(arr) {
		return arr[:length], nil
	}
	next := NextPow2(length)
	if next > maxWords {
		err := errs.OOM("growbuf.GrowWords")
		if policy == config.OOMPropagate {
			return arr, err
		}
		panic(err)
	}
	grown := make([]uint32, length, next)
	copy(grown, arr)
	return grown, nil
}

// GrowBytes is the byte-buffer analogue of GrowWords, used by the
// bitset list's packed entry buffer.
func GrowBytes(buf []byte, length int, policy config.OOMPolicy) ([]byte, error) {
	if length <= cap(buf) {
		return buf[:length], nil
	}
	next := NextPow2(length)
	if next > maxBytes {
		err := errs.OOM("growbuf.GrowBytes")
		if policy == config.OOMPropagate {
			return buf, err
		}
		panic(err)
	}
	grown := make([]byte, length, next)
	copy(grown, buf)
	return grown, nil
}
