// File: wire/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reader decodes untrusted input. Every read is bounds checked first; the
// first failure is sticky and all later reads return zero values.

package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Reader walks a byte slice in the order the Writer produced it.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b. The Reader never modifies b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first decode error.
func (r *Reader) Err() error { return r.err }

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Fail records a custom decode error at the current offset.
func (r *Reader) Fail(reason string) { r.fail(KindCustom, reason) }

// UnknownTag records that tag t matched no variant of union.
func (r *Reader) UnknownTag(union string, t uint32) {
	if r.err == nil {
		r.err = &Error{Kind: KindUnknownTag, Offset: r.off - 4, Reason: union + " tag " + itoa(t)}
	}
}

func (r *Reader) fail(kind Kind, reason string) {
	if r.err == nil {
		r.err = &Error{Kind: kind, Offset: r.off, Reason: reason}
	}
}

func (r *Reader) take(k int, kind Kind) []byte {
	if r.err != nil {
		return nil
	}
	if k < 0 || r.Remaining() < k {
		r.fail(kind, "unexpected end of input")
		return nil
	}
	b := r.buf[r.off : r.off+k]
	r.off += k
	return b
}

func (r *Reader) U8() uint8 {
	if b := r.take(1, KindBadInteger); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) U16() uint16 {
	if b := r.take(2, KindBadInteger); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *Reader) U32() uint32 {
	if b := r.take(4, KindBadInteger); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *Reader) U64() uint64 {
	if b := r.take(8, KindBadInteger); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *Reader) I8() int8   { return int8(r.U8()) }
func (r *Reader) I16() int16 { return int16(r.U16()) }
func (r *Reader) I32() int32 { return int32(r.U32()) }
func (r *Reader) I64() int64 { return int64(r.U64()) }

func (r *Reader) F32() float32 {
	if b := r.take(4, KindBadFloat); b != nil {
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *Reader) F64() float64 {
	if b := r.take(8, KindBadFloat); b != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// Bool accepts only 0 and 1.
func (r *Reader) Bool() bool {
	b := r.take(1, KindBadInteger)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	}
	r.off--
	r.fail(KindInvalidType, "bool byte must be 0 or 1")
	return false
}

// Option reads a presence byte.
func (r *Reader) Option() bool { return r.Bool() }

// Tag reads a union variant tag.
func (r *Reader) Tag() uint32 { return r.U32() }

// String reads a u32-prefixed UTF-8 string.
func (r *Reader) String() string {
	b, ok := r.prefixed()
	if !ok {
		return ""
	}
	if !utf8.Valid(b) {
		r.fail(KindBadString, "invalid utf-8")
		return ""
	}
	return string(b)
}

// Bytes reads a u32-prefixed byte string into a fresh slice. An empty byte
// string decodes to an empty, non-nil slice.
func (r *Reader) Bytes() []byte {
	b, ok := r.prefixed()
	if !ok {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// prefixed reads a length prefix and the bytes it covers. An error recorded
// before the call is left untouched.
func (r *Reader) prefixed() ([]byte, bool) {
	if r.err != nil {
		return nil, false
	}
	if r.Remaining() < 4 {
		r.fail(KindBadString, "truncated length prefix")
		return nil, false
	}
	n := r.U32()
	if uint64(n) > uint64(r.Remaining()) {
		r.fail(KindBadString, "stated length "+itoa(n)+" exceeds remaining input")
		return nil, false
	}
	b := r.take(int(n), KindBadString)
	return b, r.err == nil
}

// SeqLen reads a sequence length. minElem is the smallest encoded size of one
// element; lengths that cannot fit in the remaining input fail before any
// allocation is attempted.
func (r *Reader) SeqLen(minElem int) int {
	return r.count(minElem, "sequence")
}

// MapLen reads a map entry count; minEntry is the smallest encoded key+value size.
func (r *Reader) MapLen(minEntry int) int {
	return r.count(minEntry, "map")
}

func (r *Reader) count(minSize int, what string) int {
	n := r.U32()
	if r.err != nil {
		return 0
	}
	if minSize > 0 && uint64(n)*uint64(minSize) > uint64(r.Remaining()) {
		r.fail(KindCustom, what+" length "+itoa(n)+" exceeds remaining input")
		return 0
	}
	return int(n)
}

// Finish reports the sticky error, or a Custom error if input is left over.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.Remaining() != 0 {
		r.fail(KindCustom, itoa(uint32(r.Remaining()))+" trailing bytes")
	}
	return r.err
}

func itoa(v uint32) string {
	var b [10]byte
	i := len(b)
	for {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return string(b[i:])
}
