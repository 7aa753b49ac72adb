// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral bookkeeping for the watched descriptor set.

package reactor

import (
	"slices"
	"time"
)

// Event reports readiness of one watched descriptor.
type Event struct {
	Key      uint64 // Caller-supplied key passed to Watch.
	Readable bool   // Data (or EOF) can be read without blocking.
	Hangup   bool   // Peer hung up or the descriptor errored.
}

// Poller waits for readability on a set of descriptors.
type Poller struct {
	fds      map[uint64]int
	keys     []uint64
	dirty    bool
	rebuilds uint64
	sys      pollSet
}

// NewPoller returns an empty Poller.
func NewPoller() *Poller {
	return &Poller{fds: make(map[uint64]int), dirty: true}
}

// Watch adds fd under key, replacing any previous descriptor for key.
func (p *Poller) Watch(key uint64, fd int) {
	p.fds[key] = fd
	p.dirty = true
}

// Forget stops watching key.
func (p *Poller) Forget(key uint64) {
	if _, ok := p.fds[key]; ok {
		delete(p.fds, key)
		p.dirty = true
	}
}

// Len returns the number of watched descriptors.
func (p *Poller) Len() int { return len(p.fds) }

// Dirty reports whether the next Wait rebuilds the descriptor list.
func (p *Poller) Dirty() bool { return p.dirty }

// Rebuilds returns how many times the descriptor list was rebuilt.
func (p *Poller) Rebuilds() uint64 { return p.rebuilds }

// pollMillis converts a wait to poll(2) milliseconds. Positive waits round
// up so a sub-millisecond timeout still blocks; a negative wait blocks
// until an event arrives.
func pollMillis(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

// Wait blocks for at most timeout and appends ready descriptors to dst.
// Keys are polled in ascending order, so events come back in that order.
func (p *Poller) Wait(timeout time.Duration, dst []Event) ([]Event, error) {
	if p.dirty {
		p.keys = p.keys[:0]
		for k := range p.fds {
			p.keys = append(p.keys, k)
		}
		slices.Sort(p.keys)
		p.sys.rebuild(p.keys, p.fds)
		p.dirty = false
		p.rebuilds++
	}
	return p.sys.wait(timeout, p.keys, dst)
}
