// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package config loads the gate's JSON configuration file and converts it
// into the server, relay and journal configurations. Durations are written
// as integer milliseconds.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/journal"
	"github.com/momentics/exosphere-ws/relay"
	"github.com/momentics/exosphere-ws/server"
)

// RateLimit mirrors server.RateLimit.
type RateLimit struct {
	Enabled           bool    `json:"enabled"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	Burst             int     `json:"burst"`
}

// File is the on-disk configuration. Fields absent from the file keep
// their defaults.
type File struct {
	ListenAddr       string    `json:"listen_addr"`
	Backlog          int       `json:"backlog"`
	InboxSize        int       `json:"inbox_size"`
	OutboxSize       int       `json:"outbox_size"`
	MaxPayload       int       `json:"max_payload"`
	MaxHandshakeSize int       `json:"max_handshake_size"`
	PollTimeoutMS    int       `json:"poll_timeout_ms"`
	ReadChunk        int       `json:"read_chunk"`
	ConnectionValues []string  `json:"connection_values"`
	RateLimit        RateLimit `json:"rate_limit"`

	EventBuffer   int `json:"event_buffer"`
	CommandBuffer int `json:"command_buffer"`
	BacklogLimit  int `json:"backlog_limit"`
	TickPeriodMS  int `json:"tick_period_ms"`

	JournalPath   string `json:"journal_path"` // empty disables the journal
	JournalBuffer int    `json:"journal_buffer"`

	LogLevel string `json:"log_level"`
}

// Default returns the built-in configuration.
func Default() *File {
	sc := server.DefaultConfig()
	rc := relay.DefaultConfig()
	return &File{
		ListenAddr:       sc.ListenAddr,
		Backlog:          sc.Backlog,
		InboxSize:        sc.InboxSize,
		OutboxSize:       sc.OutboxSize,
		MaxPayload:       sc.MaxPayload,
		MaxHandshakeSize: sc.MaxHandshakeSize,
		PollTimeoutMS:    int(sc.PollTimeout / time.Millisecond),
		ReadChunk:        sc.ReadChunk,
		ConnectionValues: sc.ConnectionValues,
		RateLimit: RateLimit{
			Enabled:           sc.RateLimit.Enabled,
			MessagesPerSecond: sc.RateLimit.MessagesPerSecond,
			Burst:             sc.RateLimit.Burst,
		},
		EventBuffer:   rc.EventBuffer,
		CommandBuffer: rc.CommandBuffer,
		BacklogLimit:  rc.BacklogLimit,
		TickPeriodMS:  int(rc.TickPeriod / time.Millisecond),
		JournalPath:   "exosphere-sessions.db",
		JournalBuffer: 256,
		LogLevel:      "info",
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults are returned and the fallback is logged.
func Load(path string) (*File, error) {
	f := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := Parse(data, f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data into f and validates the result.
func Parse(data []byte, f *File) error {
	if err := sonnet.Unmarshal(data, f); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return f.Validate()
}

// Encode renders f as JSON.
func (f *File) Encode() ([]byte, error) {
	return sonnet.Marshal(f)
}

// Validate checks every derived configuration.
func (f *File) Validate() error {
	if _, err := f.Level(); err != nil {
		return err
	}
	if f.PollTimeoutMS >= f.TickPeriodMS {
		return fmt.Errorf("config: %w: poll_timeout_ms must be below tick_period_ms", api.ErrInvalidArgument)
	}
	if err := f.Server().Validate(); err != nil {
		return err
	}
	if f.JournalPath != "" && f.JournalBuffer <= 0 {
		return fmt.Errorf("config: %w: journal_buffer must be positive", api.ErrInvalidArgument)
	}
	return f.Relay().Validate()
}

// Level parses LogLevel ("debug", "info", "warn", "error", or offsets such
// as "info+2").
func (f *File) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(f.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: %w: log_level %q", api.ErrInvalidArgument, f.LogLevel)
	}
	return lvl, nil
}

// Server returns the reactor configuration. Logger and Metrics are left
// for the caller.
func (f *File) Server() *server.Config {
	return &server.Config{
		ListenAddr:       f.ListenAddr,
		Backlog:          f.Backlog,
		InboxSize:        f.InboxSize,
		OutboxSize:       f.OutboxSize,
		MaxPayload:       f.MaxPayload,
		MaxHandshakeSize: f.MaxHandshakeSize,
		PollTimeout:      time.Duration(f.PollTimeoutMS) * time.Millisecond,
		ReadChunk:        f.ReadChunk,
		ConnectionValues: append([]string(nil), f.ConnectionValues...),
		RateLimit: server.RateLimit{
			Enabled:           f.RateLimit.Enabled,
			MessagesPerSecond: f.RateLimit.MessagesPerSecond,
			Burst:             f.RateLimit.Burst,
		},
	}
}

// Relay returns the relay configuration without a journal.
func (f *File) Relay() *relay.Config {
	rc := relay.DefaultConfig()
	rc.EventBuffer = f.EventBuffer
	rc.CommandBuffer = f.CommandBuffer
	rc.BacklogLimit = f.BacklogLimit
	rc.TickPeriod = time.Duration(f.TickPeriodMS) * time.Millisecond
	return rc
}

// Journal returns the journal configuration; ok is false when disabled.
func (f *File) Journal() (cfg journal.Config, ok bool) {
	if f.JournalPath == "" {
		return journal.Config{}, false
	}
	return journal.Config{Path: f.JournalPath, Buffer: f.JournalBuffer}, true
}
