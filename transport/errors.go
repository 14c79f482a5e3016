package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected indicates an I/O operation was attempted on a transport
	// that is not connected.
	ErrNotConnected = errors.New("transport is not connected")

	// ErrUnknownMethod indicates that an unrecognized transport method was
	// requested from the factory.
	ErrUnknownMethod = errors.New(`unknown transport method, should be "serial", "socket" or "visa"`)

	// ErrConfig indicates an invalid transport configuration, such as a
	// missing parameter block or a parameter out of range. Configuration
	// errors signal a static setup mistake and are never retried.
	ErrConfig = errors.New("invalid transport configuration")
)

// OpError records an I/O failure during a transport operation.
type OpError struct {
	// Op is the failed operation: "connect", "disconnect", "write" or "read".
	Op string
	// Target identifies the channel: port name, host:port or VISA address.
	Target string
	// Err is the underlying cause.
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// TimeoutError indicates that a read did not produce a complete line within
// the configured timeout. The transport stays connected and usable after a
// timeout; callers may retry or disconnect explicitly.
type TimeoutError struct {
	Op     string
	Target string
	// Wait is the configured timeout that expired.
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport %s %s: no response within %s", e.Op, e.Target, e.Wait)
}

// Timeout reports that this error is a timeout, matching the net.Error
// convention.
func (e *TimeoutError) Timeout() bool { return true }
