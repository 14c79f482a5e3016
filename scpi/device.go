package scpi

import (
	"context"
	"fmt"

	"github.com/labkit/go-scpi/transport"
)

// Handle is the base capability set every connected instrument exposes.
// It is implemented by *Device and by device plugin types embedding *Device.
type Handle interface {
	// Send executes a command with completion tracking (see Protocol.Send).
	Send(ctx context.Context, command string, opts ...CommandOption) error
	// Query executes a query with completion tracking (see Protocol.Query).
	Query(ctx context.Context, command string, opts ...CommandOption) (string, error)
	// IDN returns the *IDN? identification string.
	IDN(ctx context.Context) (string, error)
	// Reset issues *RST.
	Reset(ctx context.Context) error
	// ClearStatus issues *CLS.
	ClearStatus(ctx context.Context) error
	// CheckErrors reads and decodes the event status register.
	CheckErrors(ctx context.Context) ([]string, error)
	// Close releases the underlying transport. Closing an already-closed
	// handle is a no-op.
	Close() error
}

// Device composes one Transport with one Protocol and exposes the common
// IEEE-488.2 command set. A Device owns its transport exclusively: acquire
// it with Connect (or via the factory) and release it with Close, typically
// under defer so the transport is released on every exit path.
//
// The common commands below issue their traffic fire-and-forget, matching
// the IEEE-488.2 convention that the common command set is used for status
// management itself; Send and Query are the completion-tracked path for
// device commands.
type Device struct {
	tr    transport.Transport
	proto *Protocol
}

var _ Handle = (*Device)(nil)

// NewDevice creates a Device over tr. The options configure the embedded
// Protocol.
func NewDevice(tr transport.Transport, opts ...ProtocolOption) (*Device, error) {
	proto, err := NewProtocol(tr, opts...)
	if err != nil {
		return nil, err
	}

	return &Device{tr: tr, proto: proto}, nil
}

// Transport returns the underlying transport.
func (d *Device) Transport() transport.Transport { return d.tr }

// Protocol returns the completion-tracking protocol bound to the transport.
func (d *Device) Protocol() *Protocol { return d.proto }

// Connect establishes the underlying transport channel. It is idempotent.
func (d *Device) Connect() error { return d.tr.Connect() }

// Close releases the underlying transport. It is always safe to call.
func (d *Device) Close() error { return d.tr.Disconnect() }

// Send executes a command through the completion-tracking protocol.
func (d *Device) Send(ctx context.Context, command string, opts ...CommandOption) error {
	return d.proto.Send(ctx, command, opts...)
}

// Query executes a query through the completion-tracking protocol.
func (d *Device) Query(ctx context.Context, command string, opts ...CommandOption) (string, error) {
	return d.proto.Query(ctx, command, opts...)
}

// IDN queries *IDN? and returns the identification string.
func (d *Device) IDN(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*IDN?", Unsafe())
}

// Reset issues *RST, returning the instrument to its power-on defaults.
func (d *Device) Reset(ctx context.Context) error {
	return d.proto.Send(ctx, "*RST", Unsafe())
}

// ClearStatus issues *CLS, clearing the status and event registers.
func (d *Device) ClearStatus(ctx context.Context) error {
	return d.proto.Send(ctx, "*CLS", Unsafe())
}

// OPC issues *OPC, arming the Operation Complete bit.
func (d *Device) OPC(ctx context.Context) error {
	return d.proto.Send(ctx, opcCommand, Unsafe())
}

// OPCQuery queries *OPC?, which blocks on the instrument side until all
// pending operations finish.
func (d *Device) OPCQuery(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*OPC?", Unsafe())
}

// ESR queries *ESR? and returns the decoded event status register. Reading
// the register clears it on the instrument.
func (d *Device) ESR(ctx context.Context) (StatusRegister, error) {
	raw, err := d.proto.Query(ctx, esrQuery, Unsafe())
	if err != nil {
		return 0, err
	}
	esr, err := ParseStatusRegister(raw)
	if err != nil {
		return 0, &DesyncError{Command: esrQuery, Raw: raw}
	}

	return esr, nil
}

// CheckErrors reads the event status register and returns the names of all
// set bits in bit order. A clean register yields an empty list. The error
// return reports transport or parse failures only; interpreting fault flags
// is left to the caller.
func (d *Device) CheckErrors(ctx context.Context) ([]string, error) {
	esr, err := d.ESR(ctx)
	if err != nil {
		return nil, err
	}

	return esr.Flags(), nil
}

// STB queries *STB? and returns the status byte text.
func (d *Device) STB(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*STB?", Unsafe())
}

// SRE sets the service request enable register.
func (d *Device) SRE(ctx context.Context, value uint8) error {
	return d.proto.Send(ctx, fmt.Sprintf("*SRE %d", value), Unsafe())
}

// SREQuery queries the service request enable register.
func (d *Device) SREQuery(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*SRE?", Unsafe())
}

// ESE sets the standard event status enable register.
func (d *Device) ESE(ctx context.Context, value uint8) error {
	return d.proto.Send(ctx, fmt.Sprintf("*ESE %d", value), Unsafe())
}

// ESEQuery queries the standard event status enable register.
func (d *Device) ESEQuery(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*ESE?", Unsafe())
}

// OPT queries *OPT? and returns the installed-options report.
func (d *Device) OPT(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*OPT?", Unsafe())
}

// PSC sets power-on status clear.
func (d *Device) PSC(ctx context.Context, on bool) error {
	v := 0
	if on {
		v = 1
	}

	return d.proto.Send(ctx, fmt.Sprintf("*PSC %d", v), Unsafe())
}

// PSCQuery queries the power-on status clear setting.
func (d *Device) PSCQuery(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*PSC?", Unsafe())
}

// Recall issues *RCL, restoring a saved configuration.
func (d *Device) Recall(ctx context.Context, name string) error {
	return d.proto.Send(ctx, fmt.Sprintf("*RCL %q", name), Unsafe())
}

// Save issues *SAV, storing the current configuration.
func (d *Device) Save(ctx context.Context, name string) error {
	return d.proto.Send(ctx, fmt.Sprintf("*SAV %q", name), Unsafe())
}

// Trigger issues *TRG.
func (d *Device) Trigger(ctx context.Context) error {
	return d.proto.Send(ctx, "*TRG", Unsafe())
}

// SelfTest queries *TST? and returns the self-test result text.
func (d *Device) SelfTest(ctx context.Context) (string, error) {
	return d.proto.Query(ctx, "*TST?", Unsafe())
}

// Wait issues *WAI, holding off subsequent commands until pending operations
// finish on the instrument side.
func (d *Device) Wait(ctx context.Context) error {
	return d.proto.Send(ctx, "*WAI", Unsafe())
}
