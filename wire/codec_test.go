package wire_test

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/momentics/exosphere-ws/wire"
)

// sample exercises every primitive the codec offers.
type sample struct {
	A  uint8
	B  uint16
	C  uint32
	D  uint64
	E  int8
	F  int16
	G  int32
	H  int64
	I  float32
	J  float64
	K  bool
	S  string
	P  []byte
	O  *uint16
	L  []string
	M  map[uint8]bool
	Ks []uint8 // map keys in encode order
}

func (s *sample) MarshalWire(w *wire.Writer) {
	w.U8(s.A)
	w.U16(s.B)
	w.U32(s.C)
	w.U64(s.D)
	w.I8(s.E)
	w.I16(s.F)
	w.I32(s.G)
	w.I64(s.H)
	w.F32(s.I)
	w.F64(s.J)
	w.Bool(s.K)
	w.String(s.S)
	w.Bytes(s.P)
	w.Option(s.O != nil)
	if s.O != nil {
		w.U16(*s.O)
	}
	w.SeqLen(len(s.L))
	for _, v := range s.L {
		w.String(v)
	}
	w.MapLen(len(s.Ks))
	for _, k := range s.Ks {
		w.U8(k)
		w.Bool(s.M[k])
	}
}

func decodeSample(r *wire.Reader) *sample {
	s := &sample{}
	s.A = r.U8()
	s.B = r.U16()
	s.C = r.U32()
	s.D = r.U64()
	s.E = r.I8()
	s.F = r.I16()
	s.G = r.I32()
	s.H = r.I64()
	s.I = r.F32()
	s.J = r.F64()
	s.K = r.Bool()
	s.S = r.String()
	s.P = r.Bytes()
	if r.Option() {
		v := r.U16()
		s.O = &v
	}
	n := r.SeqLen(4)
	for i := 0; i < n && r.Err() == nil; i++ {
		s.L = append(s.L, r.String())
	}
	m := r.MapLen(2)
	if m > 0 {
		s.M = make(map[uint8]bool, m)
	}
	for i := 0; i < m && r.Err() == nil; i++ {
		k := r.U8()
		s.M[k] = r.Bool()
		s.Ks = append(s.Ks, k)
	}
	return s
}

func u16p(v uint16) *uint16 { return &v }

func TestRoundTrip(t *testing.T) {
	cases := []*sample{
		{P: []byte{}},
		{
			A: math.MaxUint8, B: math.MaxUint16, C: math.MaxUint32, D: math.MaxUint64,
			E: math.MinInt8, F: math.MinInt16, G: math.MinInt32, H: math.MinInt64,
			I: -4096.512, J: -8192.756, K: true,
			S: "héllo, 世界", P: []byte{0, 1, 2, 255},
			O: u16p(0), L: []string{"", "a", "bc"},
			M: map[uint8]bool{3: true, 1: false}, Ks: []uint8{3, 1},
		},
		{E: math.MaxInt8, F: math.MaxInt16, G: math.MaxInt32, H: math.MaxInt64, O: u16p(65535), P: []byte{}},
	}
	for i, in := range cases {
		buf, err := wire.Encode(in)
		if err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}
		n, err := wire.Size(in)
		if err != nil || n != len(buf) {
			t.Fatalf("case %d: Size=%d err=%v, encoded %d bytes", i, n, err, len(buf))
		}
		out, err := wire.Decode(buf, decodeSample)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("case %d: round trip mismatch\n in: %+v\nout: %+v", i, in, out)
		}
	}
}

func TestLittleEndianLayout(t *testing.T) {
	in := &sample{B: 0x0102, S: "hi", P: []byte{}}
	buf, err := wire.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	// A(1) then B little-endian.
	if buf[1] != 0x02 || buf[2] != 0x01 {
		t.Fatalf("u16 not little-endian: % x", buf[:3])
	}
	// String prefix follows the 1+2+4+8+1+2+4+8+4+8+1 = 43 bytes of scalars.
	want := []byte{2, 0, 0, 0, 'h', 'i'}
	if !bytes.Equal(buf[43:49], want) {
		t.Fatalf("string layout = % x, want % x", buf[43:49], want)
	}
}

func TestEncodeIntoExact(t *testing.T) {
	in := &sample{S: "abc", P: []byte{}}
	n, _ := wire.Size(in)
	dst := make([]byte, n)
	written, err := wire.EncodeInto(in, dst)
	if err != nil || written != n {
		t.Fatalf("EncodeInto wrote %d of %d: %v", written, n, err)
	}
	if _, err := wire.EncodeInto(in, dst[:n-1]); err == nil {
		t.Fatal("expected error for short output buffer")
	}
}

type unsized struct{ seq, m bool }

func (u unsized) MarshalWire(w *wire.Writer) {
	if u.seq {
		w.SeqLen(-1)
	}
	if u.m {
		w.MapLen(-1)
	}
}

func TestUnsizedCollectionsFailEncode(t *testing.T) {
	if _, err := wire.Encode(unsized{seq: true}); !errors.Is(err, wire.ErrUnsizedSequence) {
		t.Fatalf("want UnsizedSequence, got %v", err)
	}
	if _, err := wire.Size(unsized{m: true}); !errors.Is(err, wire.ErrUnsizedMap) {
		t.Fatalf("want UnsizedMap, got %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	readU32 := func(r *wire.Reader) uint32 { return r.U32() }
	readF64 := func(r *wire.Reader) float64 { return r.F64() }
	readStr := func(r *wire.Reader) string { return r.String() }
	readBool := func(r *wire.Reader) bool { return r.Bool() }
	readSeq := func(r *wire.Reader) int { return r.SeqLen(1) }

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"short int", func() error { _, err := wire.Decode([]byte{1, 2}, readU32); return err }, wire.ErrBadInteger},
		{"short float", func() error { _, err := wire.Decode([]byte{1, 2, 3}, readF64); return err }, wire.ErrBadFloat},
		{"truncated prefix", func() error { _, err := wire.Decode([]byte{5, 0}, readStr); return err }, wire.ErrBadString},
		{"length past end", func() error { _, err := wire.Decode([]byte{9, 0, 0, 0, 'a'}, readStr); return err }, wire.ErrBadString},
		{"huge length", func() error { _, err := wire.Decode([]byte{0xff, 0xff, 0xff, 0xff}, readStr); return err }, wire.ErrBadString},
		{"bad utf8", func() error { _, err := wire.Decode([]byte{2, 0, 0, 0, 0xc3, 0x28}, readStr); return err }, wire.ErrBadString},
		{"bool 2", func() error { _, err := wire.Decode([]byte{2}, readBool); return err }, wire.ErrInvalidType},
		{"trailing", func() error { _, err := wire.Decode([]byte{1, 0, 0, 0, 9}, readU32); return err }, wire.ErrCustom},
		{"hostile seq", func() error { _, err := wire.Decode([]byte{0, 0, 0, 0x7f}, readSeq); return err }, wire.ErrCustom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want kind %v", err, tc.want)
			}
			var we *wire.Error
			if !errors.As(err, &we) || we.Offset < 0 {
				t.Fatalf("expected *wire.Error with offset, got %#v", err)
			}
		})
	}
}

func TestUnknownTag(t *testing.T) {
	_, err := wire.Decode([]byte{7, 0, 0, 0}, func(r *wire.Reader) int {
		if tag := r.Tag(); tag != 0 {
			r.UnknownTag("Test", tag)
		}
		return 0
	})
	if !errors.Is(err, wire.ErrUnknownTag) {
		t.Fatalf("want unknown tag, got %v", err)
	}
}

func TestTruncatedSampleNeverPanics(t *testing.T) {
	buf, err := wire.Encode(&sample{S: "abc", P: []byte{1}, O: u16p(3), L: []string{"x"}, M: map[uint8]bool{1: true}, Ks: []uint8{1}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(buf); i++ {
		if _, err := wire.Decode(buf[:i], decodeSample); err == nil {
			t.Fatalf("prefix of %d bytes decoded without error", i)
		}
	}
}

func TestFirstErrorIsKept(t *testing.T) {
	r := wire.NewReader([]byte{5})
	r.Bool()
	if s := r.String(); s != "" {
		t.Fatalf("string after failure %q", s)
	}
	if b := r.Bytes(); b != nil {
		t.Fatalf("bytes after failure %v", b)
	}
	err := r.Err()
	if !errors.Is(err, wire.ErrInvalidType) {
		t.Fatalf("want invalid type, got %v", err)
	}
	var we *wire.Error
	if !errors.As(err, &we) || we.Offset != 0 {
		t.Fatalf("offset %#v", err)
	}

	r = wire.NewReader([]byte{1, 2})
	r.U32()
	_ = r.String()
	if err := r.Err(); !errors.Is(err, wire.ErrBadInteger) {
		t.Fatalf("want bad integer, got %v", err)
	}
}

func TestEmptyBytesStayNonNil(t *testing.T) {
	got, err := wire.Decode([]byte{0, 0, 0, 0}, func(r *wire.Reader) []byte { return r.Bytes() })
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
	if !reflect.DeepEqual(got, []byte{}) {
		t.Fatal("empty byte string does not round trip")
	}
}
