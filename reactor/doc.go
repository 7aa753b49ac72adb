// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides readiness polling over a descriptor list that is
// rebuilt only when the watched set changes. One goroutine owns a Poller.
package reactor
