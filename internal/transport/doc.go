// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP sockets driven directly through golang.org/x/sys/unix.
// Nothing here blocks: reads and writes that cannot make progress return
// ErrWouldBlock and the reactor retries them on a later pass.

package transport
