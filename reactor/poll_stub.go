//go:build !linux
// +build !linux

// File: reactor/poll_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"
	"time"

	"github.com/momentics/exosphere-ws/api"
)

type pollSet struct{}

func (s *pollSet) rebuild(keys []uint64, fds map[uint64]int) {}

func (s *pollSet) wait(timeout time.Duration, keys []uint64, dst []Event) ([]Event, error) {
	return dst, fmt.Errorf("reactor: %w on this platform", api.ErrNotSupported)
}
