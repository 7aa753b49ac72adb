// File: server/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/internal/transport"
	"github.com/momentics/exosphere-ws/pool"
	"github.com/momentics/exosphere-ws/protocol"
)

// conn is one entry of the connection table. Only the reactor goroutine
// touches it.
type conn[M any] struct {
	id       api.ConnID
	sock     *transport.Conn
	remote   string
	inbox    *pool.ByteRing
	outbox   *pool.ByteRing
	parser   *protocol.Parser[M]
	limiter  *rate.Limiter
	accepted time.Time
	closed   bool
	reason   string
}

func (c *conn[M]) state() api.ConnState {
	switch {
	case c.closed:
		return api.ConnClosed
	case c.parser.Upgraded():
		return api.ConnUpgraded
	default:
		return api.ConnHTTP
	}
}

// markClosed flags the connection for removal on this pass. The first
// reason is kept.
func (c *conn[M]) markClosed(reason string) {
	if !c.closed {
		c.closed = true
		c.reason = reason
	}
}

// ConnInfo describes one connection in the table.
type ConnInfo struct {
	ID       api.ConnID
	Remote   string
	State    api.ConnState
	Accepted time.Time
	Reason   string // why the connection closed; empty while open
}

func (c *conn[M]) info() ConnInfo {
	return ConnInfo{ID: c.id, Remote: c.remote, State: c.state(), Accepted: c.accepted, Reason: c.reason}
}
