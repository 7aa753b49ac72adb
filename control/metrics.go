// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Counter registry shared between the reactor goroutine and observers.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry holds named integer metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]int64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]int64),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value int64) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add increments key by delta and returns the new value.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.metrics[key] += delta
	mr.updated = time.Now()
	return mr.metrics[key]
}

// SetMany updates several keys under one lock, so readers never see a
// half-published batch.
func (mr *MetricsRegistry) SetMany(values map[string]int64) {
	mr.mu.Lock()
	for k, v := range values {
		mr.metrics[k] = v
	}
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns the value of key and whether it was ever set.
func (mr *MetricsRegistry) Get(key string) (int64, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, ok := mr.metrics[key]
	return v, ok
}

// GetSnapshot returns a copy of all metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// UpdatedAt returns the time of the last write.
func (mr *MetricsRegistry) UpdatedAt() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
