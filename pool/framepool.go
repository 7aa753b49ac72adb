// File: pool/framepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool wraps sync.Pool for generic usage.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a new SyncPool with a creator function.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}

// FrameBuffers recycles scratch space for encoding outbound frames. Frames
// are copied into an outbox ring, so the scratch can be returned right after.
// Buffers that grew past maxCap are left to the GC.
type FrameBuffers struct {
	pool   ObjectPool[*[]byte]
	maxCap int
}

// NewFrameBuffers returns a pool keeping buffers of at most maxCap bytes.
func NewFrameBuffers(maxCap int) *FrameBuffers {
	return &FrameBuffers{
		pool:   NewSyncPool(func() *[]byte { b := make([]byte, 0, 256); return &b }),
		maxCap: maxCap,
	}
}

// Get returns a buffer of length n.
func (f *FrameBuffers) Get(n int) *[]byte {
	bp := f.pool.Get()
	if cap(*bp) < n {
		*bp = make([]byte, n)
	}
	*bp = (*bp)[:n]
	return bp
}

// Put hands bp back for reuse.
func (f *FrameBuffers) Put(bp *[]byte) {
	if bp == nil || cap(*bp) > f.maxCap {
		return
	}
	*bp = (*bp)[:0]
	f.pool.Put(bp)
}
