package scpi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labkit/go-scpi/internal/pool"
	"github.com/labkit/go-scpi/logger"
	"github.com/labkit/go-scpi/transport"
)

// Default completion-tracking parameters.
const (
	DefaultCommandTimeout = 5 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
)

const (
	opcCommand = "*OPC"
	esrQuery   = "*ESR?"
)

// ErrTransportNil indicates that a nil Transport was provided.
var ErrTransportNil = errors.New("scpi: transport is nil")

// Protocol executes SCPI commands over one Transport with optional
// completion tracking. Each Send/Query cycle runs under an internal mutex,
// so concurrent callers sharing one Protocol are serialized.
type Protocol struct {
	tr     transport.Transport
	logger logger.Logger

	mu       sync.Mutex
	timeout  time.Duration
	interval time.Duration
}

// NewProtocol creates a Protocol bound to tr.
//
// The default completion timeout is 5s and the default poll interval 100ms;
// both can be changed with options and overridden per call. A configuration
// with interval >= timeout is rejected with ErrPollInterval.
func NewProtocol(tr transport.Transport, opts ...ProtocolOption) (*Protocol, error) {
	if tr == nil {
		return nil, ErrTransportNil
	}

	p := &Protocol{
		tr:       tr,
		logger:   logger.GetLogger(),
		timeout:  DefaultCommandTimeout,
		interval: DefaultPollInterval,
	}

	for _, opt := range opts {
		if err := opt.apply(p); err != nil {
			return nil, err
		}
	}

	if err := validatePollConfig(p.timeout, p.interval); err != nil {
		return nil, err
	}

	p.logger = p.logger.With("component", "scpi", "target", tr.Target())

	return p, nil
}

// Send executes command. In safe mode (the default) it writes the command
// followed by *OPC, then polls *ESR? until the instrument reports Operation
// Complete: a register with fault bits set fails with *FaultError, an
// unparseable register with *DesyncError, and deadline expiry with
// *CommandTimeoutError naming the command and elapsed time.
//
// With the Unsafe option the command is written and Send returns
// immediately; no completion or error state is checked, then or later.
func (p *Protocol) Send(ctx context.Context, command string, opts ...CommandOption) error {
	cfg, err := p.commandConfig(opts)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.tr.Write(command); err != nil {
		return err
	}
	if !cfg.safe {
		return nil
	}

	return p.awaitCompletion(ctx, command, cfg)
}

// Query executes a query command and returns its response text. The response
// is captured before the completion sequence begins, so the completion check
// validates the query without disturbing its payload read. Completion
// semantics match Send.
func (p *Protocol) Query(ctx context.Context, command string, opts ...CommandOption) (string, error) {
	cfg, err := p.commandConfig(opts)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	response, err := p.tr.Query(command)
	if err != nil {
		return "", err
	}
	if !cfg.safe {
		return response, nil
	}

	if err := p.awaitCompletion(ctx, command, cfg); err != nil {
		return "", err
	}

	return response, nil
}

// awaitCompletion runs the *OPC/*ESR? poll loop. The caller holds p.mu.
func (p *Protocol) awaitCompletion(ctx context.Context, command string, cfg commandConfig) error {
	if err := p.tr.Write(opcCommand); err != nil {
		return err
	}

	start := time.Now()
	for {
		raw, err := p.tr.Query(esrQuery)
		if err != nil {
			return err
		}

		esr, perr := ParseStatusRegister(raw)
		if perr != nil {
			return &DesyncError{Command: command, Raw: raw}
		}

		if esr.Complete() {
			if esr.Faulted() {
				return &FaultError{Command: command, ESR: esr, Flags: esr.Flags()}
			}
			p.logger.Debug("command completed", "command", command, "elapsed", time.Since(start))

			return nil
		}

		if cfg.timeout > 0 {
			if elapsed := time.Since(start); elapsed >= cfg.timeout {
				return &CommandTimeoutError{Command: command, Elapsed: elapsed, Timeout: cfg.timeout}
			}
		}

		if err := pool.Wait(ctx, cfg.interval); err != nil {
			return err
		}
	}
}

func (p *Protocol) commandConfig(opts []CommandOption) (commandConfig, error) {
	cfg := commandConfig{
		safe:     true,
		timeout:  p.timeout,
		interval: p.interval,
	}

	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.safe {
		if err := validatePollConfig(cfg.timeout, cfg.interval); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// validatePollConfig rejects degenerate poll configurations. A timeout of
// zero disables the deadline and is valid with any interval.
func validatePollConfig(timeout, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scpi: poll interval %s must be positive", interval)
	}
	if timeout < 0 {
		return fmt.Errorf("scpi: completion timeout %s must not be negative", timeout)
	}
	if timeout > 0 && interval >= timeout {
		return fmt.Errorf("%w (interval %s, timeout %s)", ErrPollInterval, interval, timeout)
	}

	return nil
}

// --- ProtocolOption ---

// ProtocolOption configures a Protocol's defaults.
type ProtocolOption interface {
	apply(*Protocol) error
}

type protocolOptFunc func(*Protocol) error

func (f protocolOptFunc) apply(p *Protocol) error { return f(p) }

// WithCommandTimeout sets the default completion timeout. Zero disables the
// deadline; the poll then runs until completion or context cancellation.
func WithCommandTimeout(d time.Duration) ProtocolOption {
	return protocolOptFunc(func(p *Protocol) error {
		if d < 0 {
			return fmt.Errorf("scpi: command timeout %s must not be negative", d)
		}
		p.timeout = d

		return nil
	})
}

// WithPollInterval sets the default spacing between *ESR? polls. It must be
// small relative to the completion timeout.
func WithPollInterval(d time.Duration) ProtocolOption {
	return protocolOptFunc(func(p *Protocol) error {
		if d <= 0 {
			return fmt.Errorf("scpi: poll interval %s must be positive", d)
		}
		p.interval = d

		return nil
	})
}

// WithLogger sets the logger used by the protocol.
func WithLogger(l logger.Logger) ProtocolOption {
	return protocolOptFunc(func(p *Protocol) error {
		if l == nil {
			return errors.New("scpi: logger is nil")
		}
		p.logger = l

		return nil
	})
}

// --- CommandOption ---

type commandConfig struct {
	safe     bool
	timeout  time.Duration
	interval time.Duration
}

// CommandOption adjusts a single Send or Query call.
type CommandOption interface {
	apply(*commandConfig) error
}

type commandOptFunc func(*commandConfig) error

func (f commandOptFunc) apply(cfg *commandConfig) error { return f(cfg) }

// Unsafe disables completion and error tracking for one call: the command is
// written and the call returns immediately. This is strict fire-and-forget;
// faults flagged by the instrument afterwards are not surfaced by any later
// call, so the caller accepts the risk of unflagged faults.
func Unsafe() CommandOption {
	return commandOptFunc(func(cfg *commandConfig) error {
		cfg.safe = false

		return nil
	})
}

// WithTimeout overrides the completion timeout for one call. Zero disables
// the deadline.
func WithTimeout(d time.Duration) CommandOption {
	return commandOptFunc(func(cfg *commandConfig) error {
		if d < 0 {
			return fmt.Errorf("scpi: command timeout %s must not be negative", d)
		}
		cfg.timeout = d

		return nil
	})
}

// WithInterval overrides the poll interval for one call.
func WithInterval(d time.Duration) CommandOption {
	return commandOptFunc(func(cfg *commandConfig) error {
		if d <= 0 {
			return fmt.Errorf("scpi: poll interval %s must be positive", d)
		}
		cfg.interval = d

		return nil
	})
}
