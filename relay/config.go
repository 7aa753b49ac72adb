// File: relay/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/control"
	"github.com/momentics/exosphere-ws/journal"
	"github.com/momentics/exosphere-ws/message"
)

// Recorder receives session lifecycle events. *journal.Journal implements it.
type Recorder interface {
	Record(ev journal.Event) bool
}

// Config tunes the relay between the reactor and the simulation.
type Config struct {
	EventBuffer   int           // comms channel capacity toward the simulation
	CommandBuffer int           // pending SendTo/Broadcast/Close requests
	BacklogLimit  int           // comms parked while the simulation lags; the rest are lost
	TickPeriod    time.Duration // simulation frame time; the reactor poll must be shorter
	Version       uint8         // protocol version placed in the verification probe
	Journal       Recorder      // optional session history
	Logger        *slog.Logger
	Probes        *control.DebugProbes // optional; relay.* probes are registered here
}

// DefaultConfig returns settings for a 30 Hz simulation.
func DefaultConfig() *Config {
	return &Config{
		EventBuffer:   1024,
		CommandBuffer: 4096,
		BacklogLimit:  64 * 1024,
		TickPeriod:    time.Second / 30,
		Version:       message.Version,
	}
}

// Validate checks the relay settings on their own.
func (c *Config) Validate() error {
	switch {
	case c.EventBuffer <= 0:
		return fmt.Errorf("relay: %w: event buffer must be positive", api.ErrInvalidArgument)
	case c.CommandBuffer <= 0:
		return fmt.Errorf("relay: %w: command buffer must be positive", api.ErrInvalidArgument)
	case c.BacklogLimit <= 0:
		return fmt.Errorf("relay: %w: backlog limit must be positive", api.ErrInvalidArgument)
	case c.TickPeriod <= 0:
		return fmt.Errorf("relay: %w: tick period must be positive", api.ErrInvalidArgument)
	}
	return nil
}
