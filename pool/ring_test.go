package pool_test

import (
	"bytes"
	"testing"

	"github.com/momentics/exosphere-ws/pool"
)

func TestByteRingPushRead(t *testing.T) {
	r := pool.NewByteRing(8)
	if !r.Push([]byte("abcde")) {
		t.Fatal("push into empty ring failed")
	}
	if r.Len() != 5 || r.Free() != 3 {
		t.Fatalf("len %d free %d", r.Len(), r.Free())
	}
	out := make([]byte, 3)
	if !r.Read(out) || string(out) != "abc" {
		t.Fatalf("read %q", out)
	}
	// wraps around the end of the backing array
	if !r.Push([]byte("fghij")) {
		t.Fatal("wrapping push failed")
	}
	all := make([]byte, r.Len())
	if !r.Read(all) || string(all) != "defghij" {
		t.Fatalf("read %q", all)
	}
	if r.Len() != 0 {
		t.Fatalf("ring not empty: %d", r.Len())
	}
}

func TestByteRingPushAllOrNothing(t *testing.T) {
	r := pool.NewByteRing(4)
	r.Push([]byte("ab"))
	if r.Push([]byte("cde")) {
		t.Fatal("oversized push accepted")
	}
	if r.Len() != 2 {
		t.Fatalf("failed push changed length to %d", r.Len())
	}
	if r.Cap() != 4 {
		t.Fatalf("capacity changed to %d", r.Cap())
	}
}

func TestByteRingShortReadConsumesNothing(t *testing.T) {
	r := pool.NewByteRing(16)
	r.Push([]byte("xy"))
	buf := make([]byte, 3)
	if r.Read(buf) {
		t.Fatal("short read succeeded")
	}
	if r.Skip(3) {
		t.Fatal("short skip succeeded")
	}
	if r.Len() != 2 {
		t.Fatalf("len %d after failed reads", r.Len())
	}
}

func TestByteRingPeek(t *testing.T) {
	r := pool.NewByteRing(6)
	r.Push([]byte("1234"))
	r.Skip(3)
	r.Push([]byte("5678"))
	p := make([]byte, 10)
	n := r.PeekInto(p)
	if string(p[:n]) != "45678" {
		t.Fatalf("peek %q", p[:n])
	}
	if c, ok := r.PeekByte(2); !ok || c != '6' {
		t.Fatalf("peek byte %q %v", c, ok)
	}
	if _, ok := r.PeekByte(5); ok {
		t.Fatal("peek past end succeeded")
	}
	if i := r.IndexByte('7'); i != 3 {
		t.Fatalf("index %d", i)
	}
	if i := r.IndexByte('z'); i != -1 {
		t.Fatalf("index of missing byte %d", i)
	}
	if r.Len() != 5 {
		t.Fatal("peek consumed bytes")
	}
}

func TestByteRingMarkReset(t *testing.T) {
	r := pool.NewByteRing(4)
	r.Push([]byte("abcd"))
	r.Mark()
	c, _ := r.PopByte()
	d, _ := r.PopByte()
	if c != 'a' || d != 'b' {
		t.Fatalf("popped %q %q", c, d)
	}
	// bytes read under a mark stay reserved
	if r.Free() != 0 || r.Push([]byte("e")) {
		t.Fatal("push reused marked bytes")
	}
	r.Reset()
	if r.Len() != 4 {
		t.Fatalf("len %d after reset", r.Len())
	}
	r.Mark()
	r.Skip(2)
	r.Commit()
	if r.Free() != 2 || !r.Push([]byte("ef")) {
		t.Fatal("commit did not release bytes")
	}
	a, b := r.Segments()
	if got := string(append(append([]byte{}, a...), b...)); got != "cdef" {
		t.Fatalf("segments %q", got)
	}
}

func TestByteRingSegmentsWrap(t *testing.T) {
	r := pool.NewByteRing(5)
	r.Push([]byte("abcd"))
	r.Skip(3)
	r.Push([]byte("efg"))
	a, b := r.Segments()
	if !bytes.Equal(a, []byte("de")) || !bytes.Equal(b, []byte("fg")) {
		t.Fatalf("segments %q %q", a, b)
	}
	r.Clear()
	if a, b := r.Segments(); a != nil || b != nil || r.Len() != 0 {
		t.Fatal("clear left data")
	}
}

func TestNewByteRingRejectsZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	pool.NewByteRing(0)
}

func TestFrameBuffers(t *testing.T) {
	fb := pool.NewFrameBuffers(1024)
	b := fb.Get(300)
	if len(*b) != 300 {
		t.Fatalf("len %d", len(*b))
	}
	fb.Put(b)
	small := fb.Get(10)
	if len(*small) != 10 {
		t.Fatalf("len %d", len(*small))
	}
	fb.Put(small)

	big := fb.Get(4096)
	if len(*big) != 4096 {
		t.Fatalf("len %d", len(*big))
	}
	fb.Put(big)
	fb.Put(nil)
}
