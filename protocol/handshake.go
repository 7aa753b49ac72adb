// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP upgrade checks for the single accepted route, and the
// Sec-WebSocket-Accept computation from RFC6455 section 1.3.

package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"slices"
	"strings"
)

const (
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// RequestLine is the only request line the server upgrades.
	RequestLine = "GET /game HTTP/1.1\r\n"

	HeaderConnection      = "Connection"
	HeaderUpgrade         = "Upgrade"
	HeaderSecWebSocketKey = "Sec-WebSocket-Key"

	ValueWebSocket = "websocket"
)

// DefaultConnectionValues are the accepted Connection header values.
var DefaultConnectionValues = []string{"keep-alive, Upgrade"}

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// Checklist records which upgrade requirements the request has satisfied.
type Checklist struct {
	ConnectionUpgrade bool
	UpgradeWebSocket  bool
	AcceptKey         string
}

// Ready reports whether the handshake may be accepted.
func (c *Checklist) Ready() bool {
	return c.ConnectionUpgrade && c.UpgradeWebSocket && c.AcceptKey != ""
}

// Rules configures a Parser.
type Rules struct {
	// ConnectionValues lists exact Connection header values that count as
	// an upgrade request.
	ConnectionValues []string
	// MaxPayload caps the declared payload length of any frame.
	MaxPayload uint64
	// MaxHandshakeSize caps the bytes consumed before the upgrade completes.
	MaxHandshakeSize int
}

// DefaultRules returns the production limits.
func DefaultRules() Rules {
	return Rules{
		ConnectionValues: slices.Clone(DefaultConnectionValues),
		MaxPayload:       2048,
		MaxHandshakeSize: 4096,
	}
}

// apply records one header line. Names are matched case-insensitively,
// values exactly after trimming. Unknown headers are ignored.
func (c *Checklist) apply(rules *Rules, name, value string) {
	switch {
	case strings.EqualFold(name, HeaderConnection):
		c.ConnectionUpgrade = slices.Contains(rules.ConnectionValues, value)
	case strings.EqualFold(name, HeaderUpgrade):
		c.UpgradeWebSocket = value == ValueWebSocket
	case strings.EqualFold(name, HeaderSecWebSocketKey):
		if value == "" {
			c.AcceptKey = ""
		} else {
			c.AcceptKey = ComputeAcceptKey(value)
		}
	}
}

// SwitchingProtocols returns the 101 response for an accept token.
func SwitchingProtocols(accept string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Connection: upgrade\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-Websocket-Accept: " + accept + "\r\n\r\n")
}

// BadRequest returns the 400 response with a short diagnostic body.
func BadRequest(reason string) []byte {
	return []byte("HTTP/1.1 400 Bad Request\r\n\r\n" + reason)
}
