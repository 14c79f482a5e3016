// Package transport provides uniform line-oriented channels to SCPI
// instruments over serial ports, raw TCP sockets and VISA resource addresses.
//
// All transports behave identically from the caller's perspective except for
// their connection parameters: commands are framed with a configurable
// terminator, reads return one terminator-delimited line bounded by the
// configured timeout, and Query performs an atomic write+read pair. This
// uniformity is what lets the higher protocol layers stay transport-agnostic.
//
// A Transport is built from a Config via New, which performs no I/O; the
// channel is established by Connect and released by Disconnect. Connect is
// idempotent and Disconnect is always safe to call, even on a transport that
// was never connected.
//
// A single Transport must not be driven by two concurrent callers: each
// transport serializes its own Write/Read/Query internally, but interleaving
// independent command/response cycles is the responsibility of the scpi
// package's protocol lock.
package transport
