// File: relay/relay.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package relay runs the WebSocket server on its own goroutine and connects
// it to the game simulation. Clients must echo the verification probe before
// anything they send reaches the simulation. Traffic in both directions
// crosses the goroutine boundary through buffered channels, and the reactor
// never blocks on a slow simulation.

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/journal"
	"github.com/momentics/exosphere-ws/message"
	"github.com/momentics/exosphere-ws/server"
)

// Kind tells the simulation what a Comms value carries.
type Kind uint8

const (
	ClientConnect Kind = iota + 1
	MessageFrom
	ClientDisconnect
)

func (k Kind) String() string {
	switch k {
	case ClientConnect:
		return "client-connect"
	case MessageFrom:
		return "message-from"
	case ClientDisconnect:
		return "client-disconnect"
	default:
		return "unknown"
	}
}

// Comms is one event delivered to the simulation. Msg is set for
// MessageFrom; Remote and Session identify the client.
type Comms struct {
	Kind    Kind
	Player  message.PlayerID
	Msg     message.ClientMessage
	Remote  string
	Session uuid.UUID
}

type commandKind uint8

const (
	cmdSend commandKind = iota
	cmdBroadcast
	cmdClose
)

type command struct {
	kind   commandKind
	player message.PlayerID
	msg    message.ServerMessage
}

// client is relay-side state for one upgraded connection.
type client struct {
	session  uuid.UUID
	remote   string
	verified bool
}

// Relay owns a server.Server. Run drives it; every other method may be
// called from any goroutine.
type Relay struct {
	cfg   Config
	log   *slog.Logger
	srv   *server.Server[message.ClientMessage]
	probe message.Test

	clients  map[api.ConnID]*client
	backlog  *queue.Queue
	events   chan Comms
	commands chan command

	running atomic.Bool
	done    chan struct{}

	verified    atomic.Int64
	rejected    atomic.Int64
	online      atomic.Int64
	parked      atomic.Int64
	lost        atomic.Int64
	cmdDropped  atomic.Int64
	cmdApplied  atomic.Int64
	journalMiss atomic.Int64
}

// New binds the server described by srvCfg and prepares the relay. A nil
// srvCfg or cfg selects the defaults.
func New(srvCfg *server.Config, cfg *Config, opts ...server.Option) (*Relay, error) {
	if srvCfg == nil {
		srvCfg = server.DefaultConfig()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if srvCfg.PollTimeout >= cfg.TickPeriod {
		return nil, fmt.Errorf("relay: %w: poll timeout %v must be shorter than tick period %v",
			api.ErrInvalidArgument, srvCfg.PollTimeout, cfg.TickPeriod)
	}
	c := *cfg
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	r := &Relay{
		cfg:      c,
		log:      c.Logger.With("component", "relay"),
		probe:    message.Probe(),
		clients:  make(map[api.ConnID]*client),
		backlog:  queue.New(),
		events:   make(chan Comms, c.EventBuffer),
		commands: make(chan command, c.CommandBuffer),
		done:     make(chan struct{}),
	}
	r.probe.Version = c.Version

	sc := *srvCfg
	if sc.Logger == nil {
		sc.Logger = c.Logger
	}
	srv, err := server.New(&sc, message.DecodeClient, gateHandler{r}, opts...)
	if err != nil {
		return nil, err
	}
	r.srv = srv
	r.registerProbes()
	return r, nil
}

// Addr returns the listener address.
func (r *Relay) Addr() string { return r.srv.Addr() }

// Events delivers comms to the simulation in the order they happened. It is
// closed after Run returns.
func (r *Relay) Events() <-chan Comms { return r.events }

// Done is closed once Run has returned and the server is shut down.
func (r *Relay) Done() <-chan struct{} { return r.done }

// Run polls the server until ctx is cancelled. It may be called once.
func (r *Relay) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("relay: %w: already running", api.ErrInvalidArgument)
	}
	defer close(r.done)
	defer close(r.events)

	r.log.Info("relay started", "addr", r.Addr(), "tick", r.cfg.TickPeriod)
	var err error
	for {
		if perr := r.srv.Poll(); perr != nil {
			err = perr
			break
		}
		r.drainCommands()
		r.flushBacklog()
		if ctx.Err() != nil {
			break
		}
	}

	if serr := r.srv.Shutdown(); serr != nil && !errors.Is(serr, api.ErrTransportClosed) {
		r.log.Warn("shutdown", "err", serr)
	}
	r.flushBacklog()
	if n := r.backlog.Length(); n > 0 {
		r.lost.Add(int64(n))
		r.log.Warn("events lost at shutdown", "count", n)
	}
	r.log.Info("relay stopped")
	return err
}

// SendTo queues msg for one verified player.
func (r *Relay) SendTo(p message.PlayerID, msg message.ServerMessage) error {
	return r.post(command{kind: cmdSend, player: p, msg: msg})
}

// Broadcast queues msg for every verified player.
func (r *Relay) Broadcast(msg message.ServerMessage) error {
	return r.post(command{kind: cmdBroadcast, msg: msg})
}

// Close disconnects a player. The relay keeps running.
func (r *Relay) Close(p message.PlayerID) error {
	return r.post(command{kind: cmdClose, player: p})
}

func (r *Relay) post(cmd command) error {
	select {
	case <-r.done:
		return api.ErrTransportClosed
	default:
	}
	select {
	case r.commands <- cmd:
		return nil
	default:
		r.cmdDropped.Add(1)
		return fmt.Errorf("relay: %w: command queue full", api.ErrResourceExhausted)
	}
}

// drainCommands applies the commands queued before this pass.
func (r *Relay) drainCommands() {
	for n := len(r.commands); n > 0; n-- {
		r.apply(<-r.commands)
	}
}

func (r *Relay) apply(cmd command) {
	r.cmdApplied.Add(1)
	switch cmd.kind {
	case cmdSend:
		id := api.ConnID(cmd.player)
		if !r.isVerified(id) {
			r.log.Debug("send to unknown player", "player", cmd.player)
			return
		}
		if err := r.srv.SendTo(id, cmd.msg); err != nil {
			r.log.Debug("send failed", "player", cmd.player, "err", err)
		}
	case cmdBroadcast:
		if _, err := r.srv.BroadcastTo(cmd.msg, r.isVerified); err != nil {
			r.log.Warn("broadcast failed", "err", err)
		}
	case cmdClose:
		if err := r.srv.Close(api.ConnID(cmd.player)); err != nil {
			r.log.Debug("close failed", "player", cmd.player, "err", err)
		}
	}
}

func (r *Relay) isVerified(id api.ConnID) bool {
	c, ok := r.clients[id]
	return ok && c.verified
}

// emit hands c to the simulation, parking it behind earlier events when the
// channel is full. Once BacklogLimit events are parked, c is lost.
func (r *Relay) emit(c Comms) {
	if r.backlog.Length() == 0 {
		select {
		case r.events <- c:
			return
		default:
		}
	}
	if r.backlog.Length() >= r.cfg.BacklogLimit {
		if r.lost.Add(1) == 1 {
			r.log.Warn("simulation backlog full, dropping events", "limit", r.cfg.BacklogLimit)
		}
		r.log.Debug("event lost", "kind", c.Kind, "player", c.Player)
		return
	}
	r.backlog.Add(c)
	r.parked.Store(int64(r.backlog.Length()))
}

func (r *Relay) flushBacklog() {
	for r.backlog.Length() > 0 {
		select {
		case r.events <- r.backlog.Peek().(Comms):
			r.backlog.Remove()
		default:
			r.parked.Store(int64(r.backlog.Length()))
			return
		}
	}
	r.parked.Store(0)
}

func (r *Relay) record(ev journal.Event) {
	if r.cfg.Journal == nil {
		return
	}
	if !r.cfg.Journal.Record(ev) {
		r.journalMiss.Add(1)
	}
}

func (r *Relay) registerProbes() {
	p := r.cfg.Probes
	if p == nil {
		return
	}
	p.RegisterProbe("relay.online", func() any { return r.online.Load() })
	p.RegisterProbe("relay.verified", func() any { return r.verified.Load() })
	p.RegisterProbe("relay.rejected", func() any { return r.rejected.Load() })
	p.RegisterProbe("relay.backlog", func() any { return r.parked.Load() })
	p.RegisterProbe("relay.events_lost", func() any { return r.lost.Load() })
	p.RegisterProbe("relay.commands_applied", func() any { return r.cmdApplied.Load() })
	p.RegisterProbe("relay.commands_dropped", func() any { return r.cmdDropped.Load() })
	p.RegisterProbe("relay.journal_dropped", func() any { return r.journalMiss.Load() })
}
