// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "strconv"

// ConnID identifies one accepted connection for its whole lifetime.
// IDs are assigned in accept order starting at 1 and never reused within a process.
type ConnID uint64

func (id ConnID) String() string {
	return "conn-" + strconv.FormatUint(uint64(id), 10)
}

// ConnState enumerates the lifecycle of a connection. Transitions only move forward.
type ConnState int

const (
	ConnHTTP ConnState = iota
	ConnUpgraded
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnHTTP:
		return "http"
	case ConnUpgraded:
		return "upgraded"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}
