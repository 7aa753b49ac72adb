// File: wire/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Writer drives both passes of the two-pass encoder: a sizing pass that only
// counts bytes and a writing pass over a buffer of exactly that size.

package wire

import (
	"encoding/binary"
	"math"
)

// Marshaler is implemented by every encodable message.
// MarshalWire must issue the same sequence of Writer calls on every pass.
type Marshaler interface {
	MarshalWire(w *Writer)
}

// Writer accumulates the first error; later calls become no-ops.
type Writer struct {
	buf    []byte
	n      int
	sizing bool
	err    error
}

// Len returns the number of bytes counted or written so far.
func (w *Writer) Len() int { return w.n }

// Err returns the first error recorded by the writer.
func (w *Writer) Err() error { return w.err }

// Fail records a custom encode error.
func (w *Writer) Fail(reason string) {
	w.fail(KindCustom, reason)
}

func (w *Writer) fail(kind Kind, reason string) {
	if w.err == nil {
		w.err = &Error{Kind: kind, Offset: -1, Reason: reason}
	}
}

// next reserves k bytes and returns them, or nil while sizing or after an error.
func (w *Writer) next(k int) []byte {
	if w.err != nil {
		return nil
	}
	if w.sizing {
		w.n += k
		return nil
	}
	if len(w.buf)-w.n < k {
		w.fail(KindCustom, "output buffer too small")
		return nil
	}
	b := w.buf[w.n : w.n+k]
	w.n += k
	return b
}

func (w *Writer) U8(v uint8) {
	if b := w.next(1); b != nil {
		b[0] = v
	}
}

func (w *Writer) U16(v uint16) {
	if b := w.next(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

func (w *Writer) U32(v uint32) {
	if b := w.next(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

func (w *Writer) U64(v uint64) {
	if b := w.next(8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

func (w *Writer) I8(v int8)   { w.U8(uint8(v)) }
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// Tag writes a union variant tag.
func (w *Writer) Tag(t uint32) { w.U32(t) }

// Option writes the presence byte; the caller writes the value when present is true.
func (w *Writer) Option(present bool) { w.Bool(present) }

// String writes a u32 length prefix followed by the raw UTF-8 bytes.
func (w *Writer) String(s string) {
	if !w.length(len(s), KindBadString) {
		return
	}
	if b := w.next(len(s)); b != nil {
		copy(b, s)
	}
}

// Bytes writes a u32 length prefix followed by p.
func (w *Writer) Bytes(p []byte) {
	if !w.length(len(p), KindBadString) {
		return
	}
	if b := w.next(len(p)); b != nil {
		copy(b, p)
	}
}

// SeqLen writes a sequence length prefix. A negative n means the length is
// not known up front, which the format cannot express.
func (w *Writer) SeqLen(n int) {
	if n < 0 {
		w.fail(KindUnsizedSequence, "sequence length unknown")
		return
	}
	w.length(n, KindUnsizedSequence)
}

// MapLen writes a map entry-count prefix. A negative n is an UnsizedMap error.
func (w *Writer) MapLen(n int) {
	if n < 0 {
		w.fail(KindUnsizedMap, "map length unknown")
		return
	}
	w.length(n, KindUnsizedMap)
}

func (w *Writer) length(n int, kind Kind) bool {
	if uint64(n) > math.MaxUint32 {
		w.fail(kind, "length exceeds u32 prefix")
		return false
	}
	w.U32(uint32(n))
	return w.err == nil
}
