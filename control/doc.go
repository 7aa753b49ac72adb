// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, debug probes and reload hooks for a running gate.
//
// The reactor goroutine publishes counters into a MetricsRegistry; operators
// and tests read snapshots from any goroutine. DebugProbes gathers live state
// on demand and Reloader fans a reload signal out to registered components.
package control
