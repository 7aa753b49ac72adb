// File: wire/codec.go
// Package wire implements the binary message codec: little-endian fixed-width
// scalars, u32-prefixed strings/sequences/maps, u32 union tags and one-byte
// option/bool markers. Structs carry no names or lengths; both ends agree on
// field order.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

// DecodeFunc decodes one root message of type M from a complete payload.
type DecodeFunc[M any] func(b []byte) (M, error)

// Size returns the exact encoded length of m by running the encoder in
// counting mode. Nothing is allocated.
func Size(m Marshaler) (int, error) {
	w := Writer{sizing: true}
	m.MarshalWire(&w)
	return w.n, w.err
}

// EncodeInto writes m into dst, which must hold at least Size(m) bytes,
// and returns the number of bytes written.
func EncodeInto(m Marshaler, dst []byte) (int, error) {
	w := Writer{buf: dst}
	m.MarshalWire(&w)
	return w.n, w.err
}

// Encode sizes m and then encodes it into a single exact-length allocation.
func Encode(m Marshaler) ([]byte, error) {
	n, err := Size(m)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := EncodeInto(m, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode runs fn over b and requires that it consumes the whole input.
func Decode[M any](b []byte, fn func(r *Reader) M) (M, error) {
	r := NewReader(b)
	m := fn(r)
	if err := r.Finish(); err != nil {
		var zero M
		return zero, err
	}
	return m, nil
}
