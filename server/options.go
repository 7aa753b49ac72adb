// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/exosphere-ws/control"
)

// Option customizes a Config before the server validates it.
type Option func(*Config)

// WithListenAddr overrides the bind address.
func WithListenAddr(addr string) Option {
	return func(c *Config) {
		c.ListenAddr = addr
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics publishes per-tick counters into mr.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(c *Config) {
		c.Metrics = mr
	}
}

// WithRateLimit overrides the per-connection message rate limit.
func WithRateLimit(rl RateLimit) Option {
	return func(c *Config) {
		c.RateLimit = rl
	}
}

// WithConnectionValues replaces the accepted Connection header values.
func WithConnectionValues(values ...string) Option {
	return func(c *Config) {
		c.ConnectionValues = append([]string(nil), values...)
	}
}
