// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame header layout, opcodes and masking.
//
// Outbound frames are written server to client and are never masked.

package protocol

import "encoding/binary"

const (
	FinBit  = 0x80
	RsvBits = 0x70
	MaskBit = 0x80
	OpMask  = 0x0F
	LenMask = 0x7F
)

// Opcode is the 4-bit frame type.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "reserved"
	}
}

// Frame is the header of the frame currently being parsed.
type Frame struct {
	Fin     bool
	Rsv     byte
	Opcode  Opcode
	Masked  bool
	Len7    byte
	Length  uint64
	MaskKey [4]byte
}

// parseFirstTwo fills the fixed part of the header from its first two bytes.
func (f *Frame) parseFirstTwo(b0, b1 byte) {
	f.Fin = b0&FinBit != 0
	f.Rsv = (b0 & RsvBits) >> 4
	f.Opcode = Opcode(b0 & OpMask)
	f.Masked = b1&MaskBit != 0
	f.Len7 = b1 & LenMask
	f.Length = uint64(f.Len7)
	f.MaskKey = [4]byte{}
}

// extLengthSize returns how many extended length bytes follow the first two.
func (f *Frame) extLengthSize() int {
	switch f.Len7 {
	case 126:
		return 2
	case 127:
		return 8
	default:
		return 0
	}
}

// HeaderLen returns the size of an unmasked header for an n-byte payload.
func HeaderLen(n int) int {
	switch {
	case n < 126:
		return 2
	case n <= 0xFFFF:
		return 4
	default:
		return 10
	}
}

// PutHeader writes a final, unmasked frame header for an n-byte payload into
// dst and returns its length. dst must hold HeaderLen(n) bytes.
func PutHeader(dst []byte, op Opcode, n int) int {
	dst[0] = FinBit | byte(op)
	switch {
	case n < 126:
		dst[1] = byte(n)
		return 2
	case n <= 0xFFFF:
		dst[1] = 126
		binary.BigEndian.PutUint16(dst[2:], uint16(n))
		return 4
	default:
		dst[1] = 127
		binary.BigEndian.PutUint64(dst[2:], uint64(n))
		return 10
	}
}

// AppendFrame appends a complete unmasked frame carrying payload.
func AppendFrame(dst []byte, op Opcode, payload []byte) []byte {
	var hdr [10]byte
	h := PutHeader(hdr[:], op, len(payload))
	dst = append(dst, hdr[:h]...)
	return append(dst, payload...)
}

// Unmask XORs p in place with key, starting at key offset 0.
func Unmask(p []byte, key [4]byte) {
	for i := range p {
		p[i] ^= key[i&3]
	}
}

var (
	closeFrame = []byte{FinBit | byte(OpClose), 0x00}
	pongFrame  = []byte{FinBit | byte(OpPong), 0x00}
)
