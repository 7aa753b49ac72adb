// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the transport packages.

package api

import "errors"

// Common errors used across the module.
var (
	ErrTransportClosed   = errors.New("transport is closed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrNotSupported      = errors.New("operation not supported")
	ErrNotFound          = errors.New("resource not found")
)
