// File: server/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/exosphere-ws/api"

// Handler receives connection events after each poll pass. Callbacks run on
// the reactor goroutine and may call back into the Server.
type Handler[M any] interface {
	// OnConnect fires once when a connection completes the upgrade.
	OnConnect(s *Server[M], id api.ConnID)
	// OnMessage fires for every decoded binary frame, in receipt order.
	OnMessage(s *Server[M], id api.ConnID, msg M)
	// OnDisconnect fires when a closed connection is removed, including
	// connections that never upgraded.
	OnDisconnect(s *Server[M], id api.ConnID)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs[M any] struct {
	Connect    func(s *Server[M], id api.ConnID)
	Message    func(s *Server[M], id api.ConnID, msg M)
	Disconnect func(s *Server[M], id api.ConnID)
}

func (h HandlerFuncs[M]) OnConnect(s *Server[M], id api.ConnID) {
	if h.Connect != nil {
		h.Connect(s, id)
	}
}

func (h HandlerFuncs[M]) OnMessage(s *Server[M], id api.ConnID, msg M) {
	if h.Message != nil {
		h.Message(s, id, msg)
	}
}

func (h HandlerFuncs[M]) OnDisconnect(s *Server[M], id api.ConnID) {
	if h.Disconnect != nil {
		h.Disconnect(s, id)
	}
}
