// Package varint implements the bitset list's packed entry length
// codec: a 2-bit length-prefixed variable-width unsigned integer,
// grounded on original_source/src/list.c's bitset_encoded_length_*
// family (bitset_encoded_length_required_bytes/_bytes/_size/_length).
// It is deliberately not LEB128 - the width selector lives in the top
// two bits of the first byte rather than being spread across
// continuation bits, so the required byte count can be read from a
// single byte before any of the value is decoded.
//
//	prefix 00: 1 byte,  6 value bits  (0 .. 2^6-1)
//	prefix 01: 2 bytes, 14 value bits (0 .. 2^14-1)
//	prefix 10: 3 bytes, 22 value bits (0 .. 2^22-1)
//	prefix 11: 4 bytes, 30 value bits (0 .. 2^30-1)
package varint

import "github.com/alphazero/bitset/internal/errs"

const maxValue = 1<<30 - 1

// RequiredBytes returns the number of bytes Encode needs to represent
// v, or an error if v exceeds the format's 30-bit range.
func RequiredBytes(v uint64) (int, error) {
	switch {
	case v <= 1<<6-1:
		return 1, nil
	case v <= 1<<14-1:
		return 2, nil
	case v <= 1<<22-1:
		return 3, nil
	case v <= maxValue:
		return 4, nil
	default:
		return 0, errs.Overflowf("varint.RequiredBytes", "value %d exceeds the 30-bit varint range", v)
	}
}

// Encode appends the encoding of v to buf, returning the extended
// slice.
func Encode(buf []byte, v uint64) ([]byte, error) {
	n, err := RequiredBytes(v)
	if err != nil {
		return buf, err
	}
	switch n {
	case 1:
		buf = append(buf, byte(v))
	case 2:
		buf = append(buf, byte(v>>8)|0x40, byte(v))
	case 3:
		buf = append(buf, byte(v>>16)|0x80, byte(v>>8), byte(v))
	case 4:
		buf = append(buf, byte(v>>24)|0xC0, byte(v>>16), byte(v>>8), byte(v))
	}
	return buf, nil
}

// PeekWidth reports the total encoded byte width of the varint whose
// first byte is b, without needing the rest of the buffer.
func PeekWidth(b byte) int {
	switch b >> 6 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 3
	default:
		return 4
	}
}

// Decode reads one varint starting at buf[0], returning its value and
// the number of bytes consumed. buf must hold at least PeekWidth(buf[0])
// bytes.
func Decode(buf []byte) (v uint64, n int, err error) {
	if len(buf) == 0 {
		return 0, 0, errs.InvalidArg("varint.Decode", "empty buffer")
	}
	n = PeekWidth(buf[0])
	if len(buf) < n {
		return 0, 0, errs.InvalidArg("varint.Decode", "buffer holds %d bytes, need %d", len(buf), n)
	}
	switch n {
	case 1:
		v = uint64(buf[0])
	case 2:
		v = uint64(buf[0]&0x3F)<<8 | uint64(buf[1])
	case 3:
		v = uint64(buf[0]&0x3F)<<16 | uint64(buf[1])<<8 | uint64(buf[2])
	case 4:
		v = uint64(buf[0]&0x3F)<<24 | uint64(buf[1])<<16 | uint64(buf[2])<<8 | uint64(buf[3])
	}
	return v, n, nil
}
