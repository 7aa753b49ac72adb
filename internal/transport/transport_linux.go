// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux listener and connection over raw non-blocking sockets.

package transport

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening TCP socket.
type Listener struct {
	fd   int
	addr *net.TCPAddr
}

// Listen binds a non-blocking TCP listener on addr ("host:port").
func Listen(addr string, backlog int) (*Listener, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	family, sa, err := sockaddr(tcp)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Listener{fd: fd, addr: tcpAddr(bound)}, nil
}

func sockaddr(a *net.TCPAddr) (int, unix.Sockaddr, error) {
	if a.IP == nil || a.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		if a.IP != nil {
			copy(sa.Addr[:], a.IP.To4())
		}
		return unix.AF_INET, sa, nil
	}
	if ip := a.IP.To16(); ip != nil {
		sa := &unix.SockaddrInet6{Port: a.Port}
		copy(sa.Addr[:], ip)
		return unix.AF_INET6, sa, nil
	}
	return 0, nil, fmt.Errorf("unsupported address %s", a)
}

func tcpAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]).To16(), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return &net.TCPAddr{}
	}
}

// Fd returns the listening descriptor for readiness polling.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address, including the kernel-chosen port.
func (l *Listener) Addr() *net.TCPAddr { return l.addr }

// Accept takes one pending connection, or returns ErrWouldBlock.
func (l *Listener) Accept() (*Conn, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			return &Conn{fd: nfd, remote: tcpAddr(sa)}, nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return nil, ErrWouldBlock
		default:
			return nil, fmt.Errorf("accept: %w", err)
		}
	}
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

// Conn is one accepted non-blocking TCP connection.
type Conn struct {
	fd     int
	remote *net.TCPAddr
}

// Fd returns the socket descriptor for readiness polling.
func (c *Conn) Fd() int { return c.fd }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() *net.TCPAddr { return c.remote }

// Read reads available bytes. It returns io.EOF when the peer closed its
// side and ErrWouldBlock when nothing is available.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("read: %w", err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

// Write writes as much of p as the socket accepts without blocking.
func (c *Conn) Write(p []byte) (int, error) {
	for {
		n, err := unix.SendmsgN(c.fd, p, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("write: %w", err)
		}
	}
}

// Close closes the socket. Further calls are no-ops.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}
