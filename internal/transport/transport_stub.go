//go:build !linux
// +build !linux

// File: internal/transport/transport_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms.

package transport

import (
	"fmt"
	"net"

	"github.com/momentics/exosphere-ws/api"
)

var errUnsupported = fmt.Errorf("transport: %w on this platform", api.ErrNotSupported)

type Listener struct{}

func Listen(addr string, backlog int) (*Listener, error) { return nil, errUnsupported }

func (l *Listener) Fd() int                { return -1 }
func (l *Listener) Addr() *net.TCPAddr     { return &net.TCPAddr{} }
func (l *Listener) Accept() (*Conn, error) { return nil, errUnsupported }
func (l *Listener) Close() error           { return nil }

type Conn struct{}

func (c *Conn) Fd() int                     { return -1 }
func (c *Conn) RemoteAddr() *net.TCPAddr    { return &net.TCPAddr{} }
func (c *Conn) Read(p []byte) (int, error)  { return 0, errUnsupported }
func (c *Conn) Write(p []byte) (int, error) { return 0, errUnsupported }
func (c *Conn) Close() error                { return nil }
