package transport

import (
	"fmt"

	"github.com/labkit/go-scpi/logger"
)

// Transport is a uniform line-oriented channel to one instrument.
//
// Implementations serialize Write, Read and Query internally, and Query
// performs its write+read pair atomically with respect to that lock.
type Transport interface {
	// Connect establishes the underlying channel. Calling Connect on an
	// already-connected transport is a no-op.
	Connect() error
	// Disconnect releases the channel. It is always safe to call, even on a
	// transport that was never connected.
	Disconnect() error
	// Write sends one command line framed with the configured terminator.
	Write(command string) error
	// Read blocks until one terminator-delimited line is received or the
	// configured timeout elapses, returning the line without its terminator.
	// On expiry it fails with *TimeoutError and the transport remains usable.
	Read() (string, error)
	// Query performs an atomic Write followed by Read.
	Query(command string) (string, error)
	// Connected reports whether the channel is currently established.
	Connected() bool
	// Method returns the transport variant.
	Method() Method
	// Target identifies the channel for logs and error messages.
	Target() string
}

// Option configures optional transport behavior.
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger sets the logger used by the transport. Defaults to the package
// default logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// New builds the concrete Transport selected by cfg.Method. It performs no
// I/O; the channel is established by Connect.
//
// Unset parameters are filled with defaults before construction. An
// unrecognized method or inconsistent parameter block fails with an error
// wrapping ErrConfig (or ErrUnknownMethod).
func New(cfg Config, opts ...Option) (Transport, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	switch cfg.Method {
	case MethodSerial:
		return newSerial(*cfg.Serial, o), nil
	case MethodSocket:
		return newSocket(*cfg.Socket, o), nil
	case MethodVisa:
		return newVisa(*cfg.Visa, o)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, cfg.Method)
	}
}
