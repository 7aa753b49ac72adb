// File: protocol/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "errors"

// Handshake violations. The parser answers each with 400 Bad Request.
var (
	ErrBadRequestLine    = errors.New("invalid request line")
	ErrUpgradeRejected   = errors.New("missing or invalid upgrade headers")
	ErrHandshakeTooLarge = errors.New("handshake too large")
)

// Frame violations. The connection is closed without a reply.
var (
	ErrPayloadTooLarge = errors.New("frame payload exceeds limit")
	ErrUnmaskedFrame   = errors.New("unmasked client frame")
	ErrReservedBits    = errors.New("reserved bits set")
	ErrFragmented      = errors.New("fragmented frames are not supported")
	ErrDecode          = errors.New("payload decode failed")
)
