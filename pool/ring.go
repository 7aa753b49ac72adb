// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity byte ring used as a connection inbox or outbox.
// Owned by a single goroutine; no method is safe for concurrent use.

package pool

// ByteRing is a circular byte buffer that never reallocates.
//
// Positions are monotonic counters reduced modulo the capacity. While a mark
// is set, bytes read after the mark stay reserved so Reset can restore them.
type ByteRing struct {
	data   []byte
	rd     uint64
	wr     uint64
	mark   uint64
	marked bool
}

// NewByteRing allocates a ring holding at most size bytes.
func NewByteRing(size int) *ByteRing {
	if size <= 0 {
		panic("byte ring size must be positive")
	}
	return &ByteRing{data: make([]byte, size)}
}

// Cap returns the fixed capacity.
func (r *ByteRing) Cap() int { return len(r.data) }

// Len returns the number of unread bytes.
func (r *ByteRing) Len() int { return int(r.wr - r.rd) }

// Free returns how many bytes Push can accept.
func (r *ByteRing) Free() int {
	base := r.rd
	if r.marked {
		base = r.mark
	}
	return len(r.data) - int(r.wr-base)
}

func (r *ByteRing) index(pos uint64) int { return int(pos % uint64(len(r.data))) }

// Push appends all of p or nothing. It reports false when p does not fit.
func (r *ByteRing) Push(p []byte) bool {
	if len(p) > r.Free() {
		return false
	}
	i := r.index(r.wr)
	n := copy(r.data[i:], p)
	copy(r.data, p[n:])
	r.wr += uint64(len(p))
	return true
}

// PeekInto copies up to len(p) unread bytes into p without consuming them.
func (r *ByteRing) PeekInto(p []byte) int {
	n := min(len(p), r.Len())
	i := r.index(r.rd)
	k := copy(p[:n], r.data[i:])
	copy(p[k:n], r.data)
	return n
}

// PeekByte returns the unread byte at offset off.
func (r *ByteRing) PeekByte(off int) (byte, bool) {
	if off < 0 || off >= r.Len() {
		return 0, false
	}
	return r.data[r.index(r.rd+uint64(off))], true
}

// IndexByte returns the offset of the first unread c, or -1.
func (r *ByteRing) IndexByte(c byte) int {
	a, b := r.Segments()
	for i, v := range a {
		if v == c {
			return i
		}
	}
	for i, v := range b {
		if v == c {
			return len(a) + i
		}
	}
	return -1
}

// Read fills p entirely and consumes those bytes. When fewer than len(p)
// bytes are buffered nothing is consumed and Read reports false.
func (r *ByteRing) Read(p []byte) bool {
	if len(p) > r.Len() {
		return false
	}
	r.PeekInto(p)
	r.rd += uint64(len(p))
	return true
}

// PopByte consumes one byte.
func (r *ByteRing) PopByte() (byte, bool) {
	c, ok := r.PeekByte(0)
	if ok {
		r.rd++
	}
	return c, ok
}

// Skip discards n unread bytes; it reports false and discards nothing if
// fewer are buffered.
func (r *ByteRing) Skip(n int) bool {
	if n < 0 || n > r.Len() {
		return false
	}
	r.rd += uint64(n)
	return true
}

// Mark saves the read cursor.
func (r *ByteRing) Mark() {
	r.mark = r.rd
	r.marked = true
}

// Reset rewinds the read cursor to the last Mark and clears it.
func (r *ByteRing) Reset() {
	if r.marked {
		r.rd = r.mark
		r.marked = false
	}
}

// Commit clears the mark, releasing bytes read since it was taken.
func (r *ByteRing) Commit() { r.marked = false }

// Segments returns the unread bytes as at most two slices aliasing the ring.
// They stay valid until the next Push.
func (r *ByteRing) Segments() (a, b []byte) {
	n := r.Len()
	if n == 0 {
		return nil, nil
	}
	i := r.index(r.rd)
	if i+n <= len(r.data) {
		return r.data[i : i+n], nil
	}
	return r.data[i:], r.data[:n-(len(r.data)-i)]
}

// Clear drops all unread bytes and any mark.
func (r *ByteRing) Clear() {
	r.rd = r.wr
	r.marked = false
}
