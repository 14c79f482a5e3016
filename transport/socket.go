package transport

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/labkit/go-scpi/logger"
)

const socketConnectTimeout = 3 * time.Second

// SocketTransport is a line-oriented channel over a raw TCP socket, for
// instruments exposing a SCPI-over-TCP port.
type SocketTransport struct {
	cfg    SocketConfig
	logger logger.Logger

	mu     sync.Mutex // guards conn lifecycle
	ioMu   sync.Mutex // serializes command/response cycles
	conn   net.Conn
	reader *bufio.Reader
}

var _ Transport = (*SocketTransport)(nil)

func newSocket(cfg SocketConfig, o *options) *SocketTransport {
	return &SocketTransport{
		cfg:    cfg,
		logger: o.logger.With("transport", "socket", "target", cfg.Addr()),
	}
}

func (t *SocketTransport) Method() Method { return MethodSocket }

func (t *SocketTransport) Target() string { return t.cfg.Addr() }

func (t *SocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *SocketTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		t.logger.Debug("connect skipped, already connected")
		return nil
	}

	dialer := net.Dialer{Timeout: socketConnectTimeout}
	conn, err := dialer.Dial("tcp", t.cfg.Addr())
	if err != nil {
		return &OpError{Op: "connect", Target: t.cfg.Addr(), Err: err}
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.logger.Info("socket connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *SocketTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	if err != nil {
		return &OpError{Op: "disconnect", Target: t.cfg.Addr(), Err: err}
	}
	t.logger.Info("socket closed")

	return nil
}

func (t *SocketTransport) Write(command string) error {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	return t.writeLocked(command)
}

func (t *SocketTransport) Read() (string, error) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	return t.readLocked()
}

func (t *SocketTransport) Query(command string) (string, error) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	if err := t.writeLocked(command); err != nil {
		return "", err
	}

	return t.readLocked()
}

func (t *SocketTransport) writeLocked(command string) error {
	conn, _, err := t.current()
	if err != nil {
		return &OpError{Op: "write", Target: t.cfg.Addr(), Err: err}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(time.Duration(t.cfg.Timeout)))
	if _, err := conn.Write([]byte(command + string(t.cfg.Terminator))); err != nil {
		return &OpError{Op: "write", Target: t.cfg.Addr(), Err: err}
	}
	t.logger.Debug("write", "command", command)

	return nil
}

func (t *SocketTransport) readLocked() (string, error) {
	conn, reader, err := t.current()
	if err != nil {
		return "", &OpError{Op: "read", Target: t.cfg.Addr(), Err: err}
	}

	term := []byte(t.cfg.Terminator)
	_ = conn.SetReadDeadline(time.Now().Add(time.Duration(t.cfg.Timeout)))

	var data []byte
	for !bytes.HasSuffix(data, term) {
		b, err := reader.ReadByte()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return "", &TimeoutError{Op: "read", Target: t.cfg.Addr(), Wait: time.Duration(t.cfg.Timeout)}
			}

			return "", &OpError{Op: "read", Target: t.cfg.Addr(), Err: err}
		}
		data = append(data, b)
	}

	line := strings.TrimSpace(strings.TrimSuffix(string(data), string(term)))
	t.logger.Debug("read", "response", line)

	return line, nil
}

func (t *SocketTransport) current() (net.Conn, *bufio.Reader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, nil, ErrNotConnected
	}

	return t.conn, t.reader, nil
}
