// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server is the single-threaded WebSocket reactor. The owning goroutine calls
// Poll once per outer tick; every socket is non-blocking and the only wait is
// the bounded readiness poll.

package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/time/rate"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/internal/transport"
	"github.com/momentics/exosphere-ws/pool"
	"github.com/momentics/exosphere-ws/protocol"
	"github.com/momentics/exosphere-ws/reactor"
	"github.com/momentics/exosphere-ws/wire"
)

// listenerKey is the poller key of the listening socket; ConnIDs start at 1.
const listenerKey = 0

type eventKind uint8

const (
	eventConnect eventKind = iota
	eventMessage
)

type event[M any] struct {
	kind eventKind
	id   api.ConnID
	msg  M
}

// Server owns the listener and the connection table.
type Server[M any] struct {
	cfg     Config
	log     *slog.Logger
	rules   protocol.Rules
	decode  wire.DecodeFunc[M]
	handler Handler[M]

	ln      *transport.Listener
	poller  *reactor.Poller
	conns   map[api.ConnID]*conn[M]
	nextID  api.ConnID
	ready   []reactor.Event
	pending *queue.Queue
	scratch []byte
	frames  *pool.FrameBuffers
	closing []api.ConnID

	stats   Stats
	metrics map[string]int64
	shut    bool
}

// New validates the configuration, binds the listener and returns a Server
// ready to Poll. decode turns each binary frame payload into an M.
func New[M any](cfg *Config, decode wire.DecodeFunc[M], h Handler[M], opts ...Option) (*Server[M], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.ConnectionValues = slices.Clone(cfg.ConnectionValues)
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if decode == nil || h == nil {
		return nil, fmt.Errorf("server: %w: decode and handler are required", api.ErrInvalidArgument)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	ln, err := transport.Listen(c.ListenAddr, c.Backlog)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	s := &Server[M]{
		cfg:     c,
		log:     c.Logger.With("component", "ws"),
		rules:   c.rules(),
		decode:  decode,
		handler: h,
		ln:      ln,
		poller:  reactor.NewPoller(),
		conns:   make(map[api.ConnID]*conn[M]),
		pending: queue.New(),
		scratch: make([]byte, c.ReadChunk),
		frames:  pool.NewFrameBuffers(c.OutboxSize),
		metrics: make(map[string]int64),
	}
	s.poller.Watch(listenerKey, ln.Fd())
	s.log.Info("listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server[M]) Addr() string { return s.ln.Addr().String() }

// Poll runs one reactor pass: wait for readiness, read and parse, dispatch
// queued events, flush outboxes, remove closed connections and accept new
// ones. It returns an error only when the reactor itself cannot continue.
func (s *Server[M]) Poll() error {
	if s.shut {
		return api.ErrTransportClosed
	}
	ready, err := s.poller.Wait(s.cfg.PollTimeout, s.ready[:0])
	s.ready = ready
	if err != nil {
		return fmt.Errorf("server: poll: %w", err)
	}

	accept := false
	for _, ev := range ready {
		if ev.Key == listenerKey {
			accept = true
			continue
		}
		c, ok := s.conns[api.ConnID(ev.Key)]
		if !ok || c.closed {
			continue
		}
		s.service(c)
	}

	s.dispatch()

	for _, c := range s.conns {
		s.flush(c)
	}

	s.reap()

	if accept {
		s.acceptAll()
	}
	s.publish()
	return nil
}

// service alternates reads and parser steps so the inbox is drained while
// data keeps arriving. Each read asks for no more than the inbox can take,
// and one pass reads at most one inbox worth of bytes so a busy peer cannot
// hold the reactor. Events are queued, not dispatched.
func (s *Server[M]) service(c *conn[M]) {
	budget := c.inbox.Cap()
	for budget > 0 && !c.closed {
		free := c.inbox.Free()
		if free == 0 {
			s.overflow(c)
			return
		}
		buf := s.scratch
		if free < len(buf) {
			buf = buf[:free]
		}
		n, err := c.sock.Read(buf)
		if n > 0 {
			s.stats.BytesIn += int64(n)
			budget -= n
			c.inbox.Push(buf[:n])
		}
		if !s.parse(c) {
			return
		}
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrWouldBlock):
			case errors.Is(err, io.EOF):
				c.markClosed("peer closed")
			default:
				s.log.Debug("read failed", "conn", c.id, "err", err)
				c.markClosed(err.Error())
			}
			return
		}
		if n < len(buf) {
			return
		}
	}
}

// overflow closes a connection whose inbox is full and whose parser cannot
// consume any of it. During the handshake the peer still gets a 400.
func (s *Server[M]) overflow(c *conn[M]) {
	s.stats.Overflows++
	s.log.Warn("inbox overflow", "conn", c.id, "remote", c.remote, "buffered", c.inbox.Len())
	if !c.parser.Upgraded() {
		c.outbox.Push(protocol.BadRequest(protocol.ErrHandshakeTooLarge.Error()))
	}
	c.markClosed("inbox overflow")
}

// parse steps c's parser until it needs more input. It reports false once
// the connection is closed.
func (s *Server[M]) parse(c *conn[M]) bool {
	for {
		prog, msg, err := c.parser.Step(c.inbox, c.outbox)
		if err != nil {
			s.protocolError(c, err)
			return false
		}
		switch prog {
		case protocol.ProgressNone:
			if c.parser.Closed() {
				c.markClosed("close frame")
				return false
			}
			return true
		case protocol.ProgressUpgraded:
			s.log.Debug("upgraded", "conn", c.id, "remote", c.remote)
			s.pending.Add(event[M]{kind: eventConnect, id: c.id})
		case protocol.ProgressMessage:
			if c.limiter != nil && !c.limiter.Allow() {
				s.stats.RateLimited++
				s.log.Warn("rate limit exceeded", "conn", c.id, "remote", c.remote)
				c.markClosed("rate limited")
				return false
			}
			s.stats.MessagesIn++
			s.pending.Add(event[M]{kind: eventMessage, id: c.id, msg: msg})
		}
	}
}

func (s *Server[M]) protocolError(c *conn[M], err error) {
	switch {
	case errors.Is(err, protocol.ErrBadRequestLine),
		errors.Is(err, protocol.ErrUpgradeRejected),
		errors.Is(err, protocol.ErrHandshakeTooLarge):
		s.stats.RejectedHandshakes++
		s.log.Warn("handshake rejected", "conn", c.id, "remote", c.remote, "err", err)
	default:
		s.stats.ProtocolErrors++
		s.log.Warn("closing connection", "conn", c.id, "remote", c.remote, "err", err)
	}
	c.markClosed(err.Error())
}

// dispatch hands queued events to the handler in the order they were parsed.
func (s *Server[M]) dispatch() {
	for s.pending.Length() > 0 {
		ev := s.pending.Remove().(event[M])
		switch ev.kind {
		case eventConnect:
			s.handler.OnConnect(s, ev.id)
		case eventMessage:
			s.handler.OnMessage(s, ev.id, ev.msg)
		}
	}
}

// flush writes as much of the outbox as the socket takes. Partial writes
// are retried on the next pass.
func (s *Server[M]) flush(c *conn[M]) {
	for c.outbox.Len() > 0 {
		seg, _ := c.outbox.Segments()
		n, err := c.sock.Write(seg)
		if n > 0 {
			c.outbox.Skip(n)
			s.stats.BytesOut += int64(n)
		}
		if err != nil {
			if !errors.Is(err, transport.ErrWouldBlock) {
				c.markClosed(err.Error())
			}
			return
		}
		if n < len(seg) {
			return
		}
	}
}

// reap removes closed connections in ID order and fires OnDisconnect.
func (s *Server[M]) reap() {
	s.closing = s.closing[:0]
	for id, c := range s.conns {
		if c.closed {
			s.closing = append(s.closing, id)
		}
	}
	slices.Sort(s.closing)
	for _, id := range s.closing {
		s.remove(s.conns[id])
	}
}

func (s *Server[M]) remove(c *conn[M]) {
	s.poller.Forget(uint64(c.id))
	if err := c.sock.Close(); err != nil {
		s.log.Debug("close failed", "conn", c.id, "err", err)
	}
	s.stats.Disconnected++
	s.log.Debug("disconnected", "conn", c.id, "remote", c.remote, "reason", c.reason)
	// Info still answers for c inside the callback.
	s.handler.OnDisconnect(s, c.id)
	delete(s.conns, c.id)
}

// acceptAll drains the accept queue until it would block.
func (s *Server[M]) acceptAll() {
	for {
		sock, err := s.ln.Accept()
		if errors.Is(err, transport.ErrWouldBlock) {
			return
		}
		if err != nil {
			s.log.Warn("accept failed", "err", err)
			return
		}
		s.nextID++
		c := &conn[M]{
			id:       s.nextID,
			sock:     sock,
			remote:   sock.RemoteAddr().String(),
			inbox:    pool.NewByteRing(s.cfg.InboxSize),
			outbox:   pool.NewByteRing(s.cfg.OutboxSize),
			parser:   protocol.NewParser(s.rules, s.decode),
			accepted: time.Now(),
		}
		if rl := s.cfg.RateLimit; rl.Enabled {
			c.limiter = rate.NewLimiter(rate.Limit(rl.MessagesPerSecond), rl.Burst)
		}
		s.conns[c.id] = c
		s.poller.Watch(uint64(c.id), sock.Fd())
		s.stats.Accepted++
		s.log.Debug("accepted", "conn", c.id, "remote", c.remote)
	}
}

// encodeFrame sizes m, then fills header and payload into one pooled
// buffer. The caller returns it with s.frames.Put once it is enqueued.
func (s *Server[M]) encodeFrame(m wire.Marshaler) (*[]byte, error) {
	n, err := wire.Size(m)
	if err != nil {
		return nil, fmt.Errorf("server: encode: %w", err)
	}
	bp := s.frames.Get(protocol.HeaderLen(n) + n)
	frame := *bp
	h := protocol.PutHeader(frame, protocol.OpBinary, n)
	if _, err := wire.EncodeInto(m, frame[h:]); err != nil {
		s.frames.Put(bp)
		return nil, fmt.Errorf("server: encode: %w", err)
	}
	return bp, nil
}

// enqueue appends a complete frame to c's outbox. When the outbox is full
// it flushes once and retries, then closes the connection.
func (s *Server[M]) enqueue(c *conn[M], frame []byte) error {
	if !c.outbox.Push(frame) {
		s.flush(c)
		if c.closed || !c.outbox.Push(frame) {
			s.stats.Overflows++
			s.log.Warn("outbox overflow", "conn", c.id, "remote", c.remote, "frame", len(frame))
			c.markClosed("outbox overflow")
			return fmt.Errorf("server: %w: outbox of %s", api.ErrResourceExhausted, c.id)
		}
	}
	s.stats.MessagesOut++
	return nil
}

func (s *Server[M]) sendable(id api.ConnID) (*conn[M], error) {
	c, ok := s.conns[id]
	switch {
	case !ok:
		return nil, fmt.Errorf("server: %w: %s", api.ErrNotFound, id)
	case c.closed:
		return nil, fmt.Errorf("server: %w: %s", api.ErrTransportClosed, id)
	case !c.parser.Upgraded():
		return nil, fmt.Errorf("server: %w: %s has not upgraded", api.ErrInvalidArgument, id)
	}
	return c, nil
}

// SendTo encodes m and queues it for one upgraded connection.
func (s *Server[M]) SendTo(id api.ConnID, m wire.Marshaler) error {
	c, err := s.sendable(id)
	if err != nil {
		return err
	}
	bp, err := s.encodeFrame(m)
	if err != nil {
		return err
	}
	defer s.frames.Put(bp)
	return s.enqueue(c, *bp)
}

// Broadcast encodes m once and queues it for every open, upgraded
// connection. It returns the number of connections it was queued for.
func (s *Server[M]) Broadcast(m wire.Marshaler) (int, error) {
	return s.BroadcastTo(m, nil)
}

// BroadcastTo is Broadcast restricted to the connections accept admits.
// A nil accept admits every upgraded connection.
func (s *Server[M]) BroadcastTo(m wire.Marshaler, accept func(api.ConnID) bool) (int, error) {
	bp, err := s.encodeFrame(m)
	if err != nil {
		return 0, err
	}
	defer s.frames.Put(bp)
	frame := *bp
	sent := 0
	for _, c := range s.conns {
		if c.closed || !c.parser.Upgraded() {
			continue
		}
		if accept != nil && !accept(c.id) {
			continue
		}
		if s.enqueue(c, frame) == nil {
			sent++
		}
	}
	return sent, nil
}

// Close sends a close frame to an upgraded connection and flags it for
// removal at the end of the current pass.
func (s *Server[M]) Close(id api.ConnID) error {
	c, ok := s.conns[id]
	if !ok {
		return fmt.Errorf("server: %w: %s", api.ErrNotFound, id)
	}
	if !c.closed && c.parser.Upgraded() {
		c.outbox.Push(protocol.AppendFrame(nil, protocol.OpClose, nil))
	}
	c.markClosed("closed by server")
	return nil
}

// Info describes one connection.
func (s *Server[M]) Info(id api.ConnID) (ConnInfo, error) {
	c, ok := s.conns[id]
	if !ok {
		return ConnInfo{}, fmt.Errorf("server: %w: %s", api.ErrNotFound, id)
	}
	return c.info(), nil
}

// Conns lists the connection table in ID order.
func (s *Server[M]) Conns() []ConnInfo {
	out := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.info())
	}
	slices.SortFunc(out, func(a, b ConnInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Stats returns a snapshot of the reactor counters.
func (s *Server[M]) Stats() Stats {
	st := s.stats
	st.Connections = int64(len(s.conns))
	for _, c := range s.conns {
		if !c.closed && c.parser.Upgraded() {
			st.Upgraded++
		}
	}
	st.Rebuilds = int64(s.poller.Rebuilds())
	return st
}

func (s *Server[M]) publish() {
	if s.cfg.Metrics == nil {
		return
	}
	st := s.Stats()
	st.publish(s.metrics)
	s.cfg.Metrics.SetMany(s.metrics)
}

// Shutdown closes every connection, firing OnDisconnect for each, and then
// the listener. Close frames are written best effort. Later calls are no-ops.
func (s *Server[M]) Shutdown() error {
	if s.shut {
		return nil
	}
	s.shut = true
	for _, c := range s.conns {
		if !c.closed && c.parser.Upgraded() {
			c.outbox.Push(protocol.AppendFrame(nil, protocol.OpClose, nil))
		}
		s.flush(c)
		c.markClosed("shutdown")
	}
	s.reap()
	s.publish()
	s.log.Info("shut down", "accepted", s.stats.Accepted)
	return s.ln.Close()
}
