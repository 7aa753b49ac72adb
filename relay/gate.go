// File: relay/gate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"github.com/google/uuid"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/journal"
	"github.com/momentics/exosphere-ws/message"
	"github.com/momentics/exosphere-ws/server"
)

type gate = server.Server[message.ClientMessage]

// gateHandler verifies clients on the reactor goroutine. A client that
// answers the probe with anything else is closed and never reported.
type gateHandler struct{ r *Relay }

func (g gateHandler) OnConnect(s *gate, id api.ConnID) {
	r := g.r
	c := &client{session: uuid.New()}
	if info, err := s.Info(id); err == nil {
		c.remote = info.Remote
	}
	r.clients[id] = c
	r.online.Add(1)
	r.record(journal.Event{Kind: journal.Connected, Session: c.session, ConnID: uint64(id), Remote: c.remote})
	if err := s.SendTo(id, r.probe); err != nil {
		r.log.Warn("probe not sent", "conn", id, "remote", c.remote, "err", err)
	}
}

func (g gateHandler) OnMessage(s *gate, id api.ConnID, m message.ClientMessage) {
	r := g.r
	c, ok := r.clients[id]
	if !ok {
		return
	}
	if c.verified {
		r.emit(Comms{Kind: MessageFrom, Player: message.PlayerID(id), Msg: m, Remote: c.remote, Session: c.session})
		return
	}
	if t, ok := m.(message.Test); !ok || t != r.probe {
		r.rejected.Add(1)
		r.log.Warn("verification failed", "conn", id, "remote", c.remote)
		s.Close(id)
		return
	}
	c.verified = true
	r.verified.Add(1)
	r.log.Info("client verified", "conn", id, "remote", c.remote, "session", c.session)
	r.record(journal.Event{Kind: journal.Verified, Session: c.session})
	r.emit(Comms{Kind: ClientConnect, Player: message.PlayerID(id), Remote: c.remote, Session: c.session})
}

func (g gateHandler) OnDisconnect(s *gate, id api.ConnID) {
	r := g.r
	c, ok := r.clients[id]
	if !ok {
		// never upgraded
		return
	}
	delete(r.clients, id)
	r.online.Add(-1)
	var reason string
	if info, err := s.Info(id); err == nil {
		reason = info.Reason
	}
	r.record(journal.Event{Kind: journal.Disconnected, Session: c.session, Reason: reason})
	if c.verified {
		r.emit(Comms{Kind: ClientDisconnect, Player: message.PlayerID(id), Remote: c.remote, Session: c.session})
	}
}
