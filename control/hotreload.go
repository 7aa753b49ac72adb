// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Reload fan-out, triggered by SIGHUP in the gate binary.

package control

import "sync"

// Reloader dispatches a reload request to registered hooks in order.
type Reloader struct {
	mu    sync.Mutex
	hooks []func() error
}

// NewReloader returns a Reloader without hooks.
func NewReloader() *Reloader { return &Reloader{} }

// RegisterReloadHook adds a component reload listener.
func (r *Reloader) RegisterReloadHook(fn func() error) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// TriggerReload runs every hook synchronously and returns the first error.
// Later hooks still run when an earlier one fails.
func (r *Reloader) TriggerReload() error {
	r.mu.Lock()
	hooks := append([]func() error(nil), r.hooks...)
	r.mu.Unlock()

	var first error
	for _, fn := range hooks {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
