// Package scpi implements the SCPI command protocol on top of a transport
// channel: completion-tracked command execution, event-status-register
// decoding, and the common IEEE-488.2 command set shared by all instruments.
//
// The protocol layer distinguishes a command that was merely sent from one
// that safely completed. In safe mode (the default), every Send and Query is
// followed by an *OPC directive and a bounded poll of the *ESR? register:
// the call returns only once the instrument reports Operation Complete, and
// any other status bit set at that point is surfaced as a device fault with
// its decoded bit names. Polling rather than a blocking wait gives a
// uniform, transport-independent timeout and cancellation point regardless
// of device quirks.
//
// A Device composes one Transport with one Protocol and exposes the common
// command surface (IDN, Reset, ClearStatus, CheckErrors, ...). Device-specific
// vocabularies are layered on by plugin packages embedding *Device; the
// Handle interface is the base capability set those plugins share.
//
// The protocol holds an internal mutex around each send/query cycle, so
// multiple logical callers sharing one Device are serialized rather than
// silently corrupting the write/read framing. No retries are performed
// internally: a retry on a stateful instrument could repeat side-effecting
// commands, so retry policy belongs to the calling automation code.
package scpi
