package transport

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/labkit/go-scpi/logger"
)

// serialReadSlice is the per-call read timeout on the underlying port. Reads
// are accumulated in slices of this size until a full line arrives or the
// configured timeout elapses, so a stalled instrument cannot block forever.
const serialReadSlice = 50 * time.Millisecond

// SerialTransport is a line-oriented channel over a local serial port.
type SerialTransport struct {
	cfg    SerialConfig
	logger logger.Logger

	mu   sync.Mutex // guards port lifecycle
	ioMu sync.Mutex // serializes command/response cycles
	port serial.Port
}

var _ Transport = (*SerialTransport)(nil)

func newSerial(cfg SerialConfig, o *options) *SerialTransport {
	return &SerialTransport{
		cfg:    cfg,
		logger: o.logger.With("transport", "serial", "target", cfg.Port),
	}
}

func (t *SerialTransport) Method() Method { return MethodSerial }

func (t *SerialTransport) Target() string { return t.cfg.Port }

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.port != nil
}

func (t *SerialTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		t.logger.Debug("connect skipped, already connected")
		return nil
	}

	port, err := serial.Open(t.cfg.Port, &serial.Mode{BaudRate: t.cfg.BaudRate})
	if err != nil {
		return &OpError{Op: "connect", Target: t.cfg.Port, Err: err}
	}
	if err := port.SetReadTimeout(serialReadSlice); err != nil {
		_ = port.Close()
		return &OpError{Op: "connect", Target: t.cfg.Port, Err: err}
	}
	t.port = port
	t.logger.Info("serial port opened", "baud_rate", t.cfg.BaudRate)

	return nil
}

func (t *SerialTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}

	err := t.port.Close()
	t.port = nil
	if err != nil {
		return &OpError{Op: "disconnect", Target: t.cfg.Port, Err: err}
	}
	t.logger.Info("serial port closed")

	return nil
}

func (t *SerialTransport) Write(command string) error {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	return t.writeLocked(command)
}

func (t *SerialTransport) Read() (string, error) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	return t.readLocked()
}

func (t *SerialTransport) Query(command string) (string, error) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	if err := t.writeLocked(command); err != nil {
		return "", err
	}

	return t.readLocked()
}

func (t *SerialTransport) writeLocked(command string) error {
	port, err := t.currentPort()
	if err != nil {
		return &OpError{Op: "write", Target: t.cfg.Port, Err: err}
	}

	frame := []byte(command + string(t.cfg.Terminator))
	written := 0
	for written < len(frame) {
		n, err := port.Write(frame[written:])
		if err != nil {
			return &OpError{Op: "write", Target: t.cfg.Port, Err: err}
		}
		written += n
	}
	t.logger.Debug("write", "command", command)

	return nil
}

func (t *SerialTransport) readLocked() (string, error) {
	port, err := t.currentPort()
	if err != nil {
		return "", &OpError{Op: "read", Target: t.cfg.Port, Err: err}
	}

	term := []byte(t.cfg.Terminator)
	deadline := time.Now().Add(time.Duration(t.cfg.Timeout))

	var data []byte
	chunk := make([]byte, 256)
	for {
		n, err := port.Read(chunk)
		if err != nil {
			return "", &OpError{Op: "read", Target: t.cfg.Port, Err: err}
		}
		data = append(data, chunk[:n]...)

		if bytes.HasSuffix(data, term) {
			line := strings.TrimSpace(strings.TrimSuffix(string(data), string(term)))
			t.logger.Debug("read", "response", line)

			return line, nil
		}
		if time.Now().After(deadline) {
			return "", &TimeoutError{Op: "read", Target: t.cfg.Port, Wait: time.Duration(t.cfg.Timeout)}
		}
	}
}

func (t *SerialTransport) currentPort() (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, ErrNotConnected
	}

	return t.port, nil
}
