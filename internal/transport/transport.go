// File: internal/transport/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "errors"

// ErrWouldBlock reports that a non-blocking socket call made no progress.
var ErrWouldBlock = errors.New("transport: operation would block")

// DefaultBacklog is the listen(2) backlog used when none is configured.
const DefaultBacklog = 128
