// File: protocol/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental handshake and frame parser. Each Step works only on bytes
// already buffered in the inbox and either advances the state or leaves the
// inbox untouched, so it can be called again after the next read.

package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/momentics/exosphere-ws/api"
	"github.com/momentics/exosphere-ws/pool"
	"github.com/momentics/exosphere-ws/wire"
)

// State is the parser position within a connection's lifetime.
type State uint8

const (
	StateHTTPFirstLine State = iota
	StateHTTPHeaderStart
	StateHTTPHeaderName
	StateHTTPHeaderValue
	StateFirstTwo
	StateExtLength
	StateMasking
	StatePayload
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHTTPFirstLine:
		return "http-first-line"
	case StateHTTPHeaderStart:
		return "http-header-start"
	case StateHTTPHeaderName:
		return "http-header-name"
	case StateHTTPHeaderValue:
		return "http-header-value"
	case StateFirstTwo:
		return "ws-first-two"
	case StateExtLength:
		return "ws-ext-length"
	case StateMasking:
		return "ws-masking"
	case StatePayload:
		return "ws-payload"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Progress is the outcome of one Step.
type Progress uint8

const (
	// ProgressNone means more input is needed.
	ProgressNone Progress = iota
	// ProgressAdvanced means the state moved; call Step again.
	ProgressAdvanced
	// ProgressMessage means a binary frame decoded into a message.
	ProgressMessage
	// ProgressUpgraded means the 101 response was queued.
	ProgressUpgraded
)

func (p Progress) String() string {
	switch p {
	case ProgressNone:
		return "none"
	case ProgressAdvanced:
		return "advanced"
	case ProgressMessage:
		return "message"
	case ProgressUpgraded:
		return "upgraded"
	default:
		return "unknown"
	}
}

// Parser drives one connection from the request line to closed.
type Parser[M any] struct {
	rules   Rules
	decode  wire.DecodeFunc[M]
	state   State
	check   Checklist
	frame   Frame
	name    string
	seen    int
	line    []byte
	payload []byte
}

// NewParser returns a parser waiting for the request line.
func NewParser[M any](rules Rules, decode wire.DecodeFunc[M]) *Parser[M] {
	return &Parser[M]{rules: rules, decode: decode}
}

// State returns the current state.
func (p *Parser[M]) State() State { return p.state }

// Upgraded reports whether the handshake completed and the parser is open.
func (p *Parser[M]) Upgraded() bool {
	return p.state >= StateFirstTwo && p.state != StateClosed
}

// Closed reports whether the parser reached its terminal state.
func (p *Parser[M]) Closed() bool { return p.state == StateClosed }

// Checklist returns the handshake requirements seen so far.
func (p *Parser[M]) Checklist() Checklist { return p.check }

// Step advances the parser by at most one state using bytes from in.
// Replies (101, 400, pong, close) are queued on out. A non-nil error closes
// the parser; handshake errors have already queued a 400 response.
func (p *Parser[M]) Step(in, out *pool.ByteRing) (Progress, M, error) {
	var (
		msg  M
		prog Progress
		err  error
	)
	switch p.state {
	case StateHTTPFirstLine:
		prog, err = p.stepFirstLine(in)
	case StateHTTPHeaderStart:
		prog, err = p.stepHeaderStart(in, out)
	case StateHTTPHeaderName:
		prog, err = p.stepHeaderName(in)
	case StateHTTPHeaderValue:
		prog, err = p.stepHeaderValue(in)
	case StateFirstTwo:
		prog, err = p.stepFirstTwo(in)
	case StateExtLength:
		prog, err = p.stepExtLength(in)
	case StateMasking:
		prog, err = p.stepMasking(in)
	case StatePayload:
		prog, msg, err = p.stepPayload(in, out)
	default:
		return ProgressNone, msg, nil
	}
	if err == nil && p.state < StateFirstTwo && p.rules.MaxHandshakeSize > 0 {
		used := p.seen
		if prog == ProgressNone {
			used += in.Len()
		}
		if used > p.rules.MaxHandshakeSize {
			err = ErrHandshakeTooLarge
		}
	}
	if err != nil {
		if p.state < StateFirstTwo {
			out.Push(BadRequest(err.Error()))
		}
		p.state = StateClosed
		var zero M
		return ProgressNone, zero, err
	}
	return prog, msg, nil
}

func (p *Parser[M]) stepFirstLine(in *pool.ByteRing) (Progress, error) {
	var buf [len(RequestLine)]byte
	n := in.PeekInto(buf[:])
	if string(buf[:n]) != RequestLine[:n] {
		return ProgressNone, ErrBadRequestLine
	}
	if n < len(RequestLine) {
		return ProgressNone, nil
	}
	in.Skip(n)
	p.seen += n
	p.state = StateHTTPHeaderStart
	return ProgressAdvanced, nil
}

// stepHeaderStart decides between another header line and the blank line
// that ends the request.
func (p *Parser[M]) stepHeaderStart(in, out *pool.ByteRing) (Progress, error) {
	c, ok := in.PeekByte(0)
	if !ok {
		return ProgressNone, nil
	}
	if !isSpace(c) {
		p.state = StateHTTPHeaderName
		return ProgressAdvanced, nil
	}
	if _, ok := p.scan(in, '\n'); !ok {
		return ProgressNone, nil
	}
	if !p.check.Ready() {
		return ProgressNone, ErrUpgradeRejected
	}
	if !out.Push(SwitchingProtocols(p.check.AcceptKey)) {
		return ProgressNone, fmt.Errorf("queue 101: %w", api.ErrResourceExhausted)
	}
	p.state = StateFirstTwo
	return ProgressUpgraded, nil
}

func (p *Parser[M]) stepHeaderName(in *pool.ByteRing) (Progress, error) {
	line, ok := p.scan(in, ':')
	if !ok {
		return ProgressNone, nil
	}
	if line[len(line)-1] == '\n' {
		// no colon on this line; skip it like an unknown header
		p.state = StateHTTPHeaderStart
		return ProgressAdvanced, nil
	}
	p.name = string(bytes.TrimSpace(line[:len(line)-1]))
	p.state = StateHTTPHeaderValue
	return ProgressAdvanced, nil
}

func (p *Parser[M]) stepHeaderValue(in *pool.ByteRing) (Progress, error) {
	line, ok := p.scan(in, '\n')
	if !ok {
		return ProgressNone, nil
	}
	value := string(bytes.TrimSpace(line[:len(line)-1]))
	p.check.apply(&p.rules, p.name, value)
	p.state = StateHTTPHeaderStart
	return ProgressAdvanced, nil
}

// scan consumes through the next delim or '\n' and returns the consumed
// bytes. If neither is buffered the read cursor is rolled back.
func (p *Parser[M]) scan(in *pool.ByteRing, delim byte) ([]byte, bool) {
	p.line = p.line[:0]
	in.Mark()
	for {
		c, ok := in.PopByte()
		if !ok {
			in.Reset()
			return nil, false
		}
		p.line = append(p.line, c)
		if c == '\n' || c == delim {
			in.Commit()
			p.seen += len(p.line)
			return p.line, true
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (p *Parser[M]) stepFirstTwo(in *pool.ByteRing) (Progress, error) {
	var hdr [2]byte
	if !in.Read(hdr[:]) {
		return ProgressNone, nil
	}
	f := &p.frame
	f.parseFirstTwo(hdr[0], hdr[1])
	switch {
	case f.Rsv != 0:
		return ProgressNone, ErrReservedBits
	case !f.Fin || f.Opcode == OpContinuation:
		return ProgressNone, ErrFragmented
	case !f.Masked:
		return ProgressNone, ErrUnmaskedFrame
	}
	if f.extLengthSize() > 0 {
		p.state = StateExtLength
		return ProgressAdvanced, nil
	}
	if err := p.checkLength(); err != nil {
		return ProgressNone, err
	}
	p.state = StateMasking
	return ProgressAdvanced, nil
}

func (p *Parser[M]) stepExtLength(in *pool.ByteRing) (Progress, error) {
	var ext [8]byte
	n := p.frame.extLengthSize()
	if !in.Read(ext[:n]) {
		return ProgressNone, nil
	}
	if n == 2 {
		p.frame.Length = uint64(binary.BigEndian.Uint16(ext[:2]))
	} else {
		p.frame.Length = binary.BigEndian.Uint64(ext[:])
	}
	if err := p.checkLength(); err != nil {
		return ProgressNone, err
	}
	p.state = StateMasking
	return ProgressAdvanced, nil
}

// checkLength rejects a declared length before any payload is buffered.
func (p *Parser[M]) checkLength() error {
	if p.frame.Length > p.rules.MaxPayload {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, p.frame.Length, p.rules.MaxPayload)
	}
	return nil
}

func (p *Parser[M]) stepMasking(in *pool.ByteRing) (Progress, error) {
	if !in.Read(p.frame.MaskKey[:]) {
		return ProgressNone, nil
	}
	p.state = StatePayload
	return ProgressAdvanced, nil
}

func (p *Parser[M]) stepPayload(in, out *pool.ByteRing) (Progress, M, error) {
	var zero M
	n := int(p.frame.Length)
	if in.Len() < n {
		return ProgressNone, zero, nil
	}
	if cap(p.payload) < n {
		p.payload = make([]byte, n)
	}
	buf := p.payload[:n]
	in.Read(buf)
	Unmask(buf, p.frame.MaskKey)
	p.state = StateFirstTwo

	switch p.frame.Opcode {
	case OpBinary:
		m, err := p.decode(buf)
		if err != nil {
			return ProgressNone, zero, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return ProgressMessage, m, nil
	case OpClose:
		out.Push(closeFrame)
		p.state = StateClosed
		return ProgressAdvanced, zero, nil
	case OpPing:
		if !out.Push(pongFrame) {
			return ProgressNone, zero, fmt.Errorf("queue pong: %w", api.ErrResourceExhausted)
		}
		return ProgressAdvanced, zero, nil
	default:
		return ProgressAdvanced, zero, nil
	}
}
