// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/control"
	"github.com/momentics/exosphere-ws/protocol"
)

// maxFrameHeader is the largest client frame header: 2 + 8 ext length + 4 mask.
const maxFrameHeader = 14

// RateLimit bounds inbound messages per connection. A connection that
// exceeds it is closed.
type RateLimit struct {
	Enabled           bool
	MessagesPerSecond float64
	Burst             int
}

// Config holds all reactor configuration parameters.
type Config struct {
	ListenAddr       string        // TCP bind address, e.g. "0.0.0.0:3000"
	Backlog          int           // listen(2) backlog
	InboxSize        int           // per-connection inbound ring capacity
	OutboxSize       int           // per-connection outbound ring capacity
	MaxPayload       int           // largest accepted frame payload
	MaxHandshakeSize int           // largest accepted HTTP upgrade request
	PollTimeout      time.Duration // readiness wait per Poll
	ReadChunk        int           // bytes requested per read(2)
	ConnectionValues []string      // accepted Connection header values
	RateLimit        RateLimit
	Logger           *slog.Logger
	Metrics          *control.MetricsRegistry
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       "0.0.0.0:3000",
		Backlog:          128,
		InboxSize:        4096,
		OutboxSize:       64 * 1024,
		MaxPayload:       2048,
		MaxHandshakeSize: 4096,
		PollTimeout:      3 * time.Millisecond,
		ReadChunk:        4096,
		ConnectionValues: slices.Clone(protocol.DefaultConnectionValues),
		RateLimit: RateLimit{
			Enabled:           true,
			MessagesPerSecond: 120,
			Burst:             240,
		},
	}
}

// Validate checks that the limits are usable together.
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return invalid("listen address is empty")
	case c.InboxSize <= 0 || c.OutboxSize <= 0:
		return invalid("ring sizes must be positive")
	case c.MaxPayload <= 0:
		return invalid("max payload must be positive")
	case c.MaxPayload+maxFrameHeader > c.InboxSize:
		return invalid(fmt.Sprintf("inbox size %d cannot hold a %d byte frame", c.InboxSize, c.MaxPayload))
	case c.MaxHandshakeSize <= 0:
		return invalid("max handshake size must be positive")
	case c.MaxHandshakeSize > c.InboxSize:
		// header lines are scanned inside the inbox
		return invalid(fmt.Sprintf("max handshake size %d exceeds inbox size %d", c.MaxHandshakeSize, c.InboxSize))
	case c.PollTimeout < time.Millisecond:
		return invalid("poll timeout must be at least 1ms")
	case c.ReadChunk <= 0:
		return invalid("read chunk must be positive")
	case len(c.ConnectionValues) == 0:
		return invalid("no accepted Connection header values")
	case c.RateLimit.Enabled && (c.RateLimit.MessagesPerSecond <= 0 || c.RateLimit.Burst <= 0):
		return invalid("rate limit needs a positive rate and burst")
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("server config: %w: %s", api.ErrInvalidArgument, reason)
}

func (c *Config) rules() protocol.Rules {
	return protocol.Rules{
		ConnectionValues: slices.Clone(c.ConnectionValues),
		MaxPayload:       uint64(c.MaxPayload),
		MaxHandshakeSize: c.MaxHandshakeSize,
	}
}
