package scpi

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPollInterval indicates a degenerate completion-poll configuration where
// the poll interval is not smaller than the timeout. Such a configuration
// would allow at most one poll and defeat the liveness check, so it is
// rejected before any I/O.
var ErrPollInterval = errors.New("scpi: poll interval must be smaller than the completion timeout")

// CommandTimeoutError indicates that an instrument did not report Operation
// Complete within the configured timeout.
type CommandTimeoutError struct {
	// Command is the command that did not complete.
	Command string
	// Elapsed is the time spent waiting.
	Elapsed time.Duration
	// Timeout is the configured deadline.
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("scpi: command %q did not report completion within %s (waited %s)",
		e.Command, e.Timeout, e.Elapsed.Round(time.Millisecond))
}

// FaultError indicates that the instrument reported completion with fault
// bits set in its event status register.
type FaultError struct {
	// Command is the command the fault was observed after.
	Command string
	// ESR is the raw register value.
	ESR StatusRegister
	// Flags are the decoded names of all set bits, in bit order.
	Flags []string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("scpi: device fault after %q: ESR=0x%02X (%s)",
		e.Command, uint8(e.ESR), strings.Join(e.Flags, ", "))
}

// DesyncError indicates that an *ESR? response could not be parsed. Unlike a
// FaultError this does not signal a device fault: it signals that the
// command/response framing is likely desynchronized and the caller should
// treat the session as suspect.
type DesyncError struct {
	// Command is the command whose completion was being tracked.
	Command string
	// Raw is the unparseable register response.
	Raw string
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("scpi: unparseable event status register response %q after %q, protocol may be desynchronized",
		e.Raw, e.Command)
}
