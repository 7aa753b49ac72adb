// Package pool
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity buffering for connection I/O.
// ByteRing backs every connection's inbox and outbox; it never grows, so a
// peer that outpaces processing is closed instead of absorbing memory.
// FrameBuffers recycles the scratch used to encode outbound frames.
package pool
