package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusRegister is the 8-bit IEEE-488.2 standard event status register
// (ESR) value read via *ESR?.
type StatusRegister uint8

// Named ESR bits, in bit order.
const (
	StatusOperationComplete StatusRegister = 1 << iota
	StatusRequestControl
	StatusQueryError
	StatusDeviceError
	StatusExecutionError
	StatusCommandError
	StatusUserRequest
	StatusPowerOn
)

// statusBitNames maps bit positions to their IEEE-488.2 names.
var statusBitNames = [8]string{
	"Operation Complete",
	"Request Control",
	"Query Error",
	"Device Dependent Error",
	"Execution Error",
	"Command Error",
	"User Request",
	"Power On",
}

// Flags returns the names of all set bits in bit order. A zero register
// yields an empty list.
func (r StatusRegister) Flags() []string {
	flags := make([]string, 0, 8)
	for i, name := range statusBitNames {
		if r&(1<<i) != 0 {
			flags = append(flags, name)
		}
	}

	return flags
}

// Complete reports whether the Operation Complete bit is set.
func (r StatusRegister) Complete() bool {
	return r&StatusOperationComplete != 0
}

// Faulted reports whether any bit other than Operation Complete is set.
// Such a register value after a command represents a device-reported fault.
func (r StatusRegister) Faulted() bool {
	return r&^StatusOperationComplete != 0
}

// String renders the register value with its decoded flags.
func (r StatusRegister) String() string {
	if r == 0 {
		return "ESR=0x00"
	}

	return fmt.Sprintf("ESR=0x%02X (%s)", uint8(r), strings.Join(r.Flags(), ", "))
}

// ParseStatusRegister parses the decimal ASCII response of an *ESR? query.
func ParseStatusRegister(s string) (StatusRegister, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid event status register value %q: %w", s, err)
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("event status register value %d out of range [0, 255]", v)
	}

	return StatusRegister(v), nil
}
