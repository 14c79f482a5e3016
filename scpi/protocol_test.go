package scpi

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labkit/go-scpi/transport"
)

// simTransport simulates an instrument behind the Transport interface: it
// records every write and answers queries from a scripted table, with a
// configurable number of *ESR? polls before the Operation Complete bit
// appears.
type simTransport struct {
	mu        sync.Mutex
	connected bool

	writes    []string
	responses map[string]string

	// opcAfterPolls makes the OPC bit appear on the Nth *ESR? poll
	// (1-based). Zero means the bit never appears.
	opcAfterPolls int
	// esrOnComplete is the register value reported once complete.
	esrOnComplete StatusRegister
	// esrRaw, when set, is returned verbatim for every *ESR? poll.
	esrRaw string

	esrPolls int
}

var _ transport.Transport = (*simTransport)(nil)

func newSimTransport() *simTransport {
	return &simTransport{
		responses:     make(map[string]string),
		esrOnComplete: StatusOperationComplete,
	}
}

func (s *simTransport) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *simTransport) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *simTransport) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *simTransport) Method() transport.Method { return transport.MethodSocket }

func (s *simTransport) Target() string { return "sim" }

func (s *simTransport) Write(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, command)
	return nil
}

func (s *simTransport) Read() (string, error) {
	return "", errors.New("sim: unscripted read")
}

func (s *simTransport) Query(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, command)

	if command == esrQuery {
		s.esrPolls++
		if s.esrRaw != "" {
			return s.esrRaw, nil
		}
		if s.opcAfterPolls > 0 && s.esrPolls >= s.opcAfterPolls {
			return strconv.Itoa(int(s.esrOnComplete)), nil
		}
		return "0", nil
	}

	if resp, ok := s.responses[command]; ok {
		return resp, nil
	}
	return "", errors.New("sim: unscripted query " + command)
}

func (s *simTransport) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.esrPolls
}

func (s *simTransport) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	copy(out, s.writes)
	return out
}

func TestNewProtocol(t *testing.T) {
	t.Run("nil transport", func(t *testing.T) {
		_, err := NewProtocol(nil)
		require.ErrorIs(t, err, ErrTransportNil)
	})

	t.Run("degenerate poll config", func(t *testing.T) {
		_, err := NewProtocol(newSimTransport(),
			WithCommandTimeout(100*time.Millisecond),
			WithPollInterval(100*time.Millisecond),
		)
		require.ErrorIs(t, err, ErrPollInterval)
	})

	t.Run("zero timeout disables the deadline", func(t *testing.T) {
		_, err := NewProtocol(newSimTransport(),
			WithCommandTimeout(0),
			WithPollInterval(time.Second),
		)
		require.NoError(t, err)
	})
}

func TestSendSafeCompletesAfterNPolls(t *testing.T) {
	const polls = 5

	sim := newSimTransport()
	sim.opcAfterPolls = polls

	proto, err := NewProtocol(sim,
		WithCommandTimeout(time.Second),
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	require.NoError(t, proto.Send(context.Background(), ":FREQ 1000"))
	assert.Equal(t, polls, sim.pollCount())

	// The wire saw the command, the OPC directive, then the polls.
	written := sim.written()
	require.Len(t, written, 2+polls)
	assert.Equal(t, ":FREQ 1000", written[0])
	assert.Equal(t, "*OPC", written[1])
	assert.Equal(t, "*ESR?", written[2])
}

func TestSendUnsafeIsFireAndForget(t *testing.T) {
	sim := newSimTransport()

	proto, err := NewProtocol(sim)
	require.NoError(t, err)

	require.NoError(t, proto.Send(context.Background(), ":FREQ 1000", Unsafe()))

	// Exactly one write: no OPC directive, no polls.
	assert.Equal(t, []string{":FREQ 1000"}, sim.written())
	assert.Equal(t, 0, sim.pollCount())
}

func TestSendTimesOutAtOrAfterDeadline(t *testing.T) {
	sim := newSimTransport() // OPC bit never appears

	proto, err := NewProtocol(sim,
		WithCommandTimeout(100*time.Millisecond),
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	err = proto.Send(context.Background(), ":FREQ 1000")
	elapsed := time.Since(start)

	var timeoutErr *CommandTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, ":FREQ 1000", timeoutErr.Command)
	assert.GreaterOrEqual(t, timeoutErr.Elapsed, timeoutErr.Timeout)
	// Never before the deadline.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestSendSurfacesDeviceFault(t *testing.T) {
	sim := newSimTransport()
	sim.opcAfterPolls = 1
	sim.esrOnComplete = 0x21 // Operation Complete + Command Error

	proto, err := NewProtocol(sim)
	require.NoError(t, err)

	err = proto.Send(context.Background(), ":BOGUS")

	var faultErr *FaultError
	require.ErrorAs(t, err, &faultErr)
	assert.Equal(t, ":BOGUS", faultErr.Command)
	assert.Equal(t, StatusRegister(0x21), faultErr.ESR)
	assert.Equal(t, []string{"Operation Complete", "Command Error"}, faultErr.Flags)
}

func TestSendDetectsDesync(t *testing.T) {
	sim := newSimTransport()
	sim.esrRaw = "ACME,MODEL1,SN1,1.0" // a stray response instead of a register value

	proto, err := NewProtocol(sim)
	require.NoError(t, err)

	err = proto.Send(context.Background(), ":FREQ 1000")

	var desyncErr *DesyncError
	require.ErrorAs(t, err, &desyncErr)
	assert.Equal(t, "ACME,MODEL1,SN1,1.0", desyncErr.Raw)

	// A desync is not a device fault.
	var faultErr *FaultError
	assert.False(t, errors.As(err, &faultErr))
}

func TestSendRejectsDegeneratePerCallConfig(t *testing.T) {
	sim := newSimTransport()

	proto, err := NewProtocol(sim)
	require.NoError(t, err)

	err = proto.Send(context.Background(), ":FREQ 1000",
		WithTimeout(50*time.Millisecond),
		WithInterval(50*time.Millisecond),
	)
	require.ErrorIs(t, err, ErrPollInterval)

	// Rejected before any I/O.
	assert.Empty(t, sim.written())
}

func TestSendHonorsContextCancellation(t *testing.T) {
	sim := newSimTransport() // never completes

	proto, err := NewProtocol(sim,
		WithCommandTimeout(0), // no deadline of its own
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = proto.Send(ctx, ":FREQ 1000")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueryReturnsResponseBeforeCompletionPoll(t *testing.T) {
	sim := newSimTransport()
	sim.opcAfterPolls = 3
	sim.responses["*IDN?"] = "ACME,MODEL1,SN1,1.0"

	proto, err := NewProtocol(sim,
		WithCommandTimeout(time.Second),
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	resp, err := proto.Query(context.Background(), "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "ACME,MODEL1,SN1,1.0", resp)
	assert.Equal(t, 3, sim.pollCount())
}

func TestQueryUnsafeRoundTrip(t *testing.T) {
	sim := newSimTransport()
	sim.responses["*IDN?"] = "ACME,MODEL1,SN1,1.0"

	proto, err := NewProtocol(sim)
	require.NoError(t, err)

	resp, err := proto.Query(context.Background(), "*IDN?", Unsafe())
	require.NoError(t, err)
	assert.Equal(t, "ACME,MODEL1,SN1,1.0", resp)
	assert.Equal(t, 0, sim.pollCount())
}

func TestQueryFaultSuppressesResponse(t *testing.T) {
	sim := newSimTransport()
	sim.opcAfterPolls = 1
	sim.esrOnComplete = 0x05 // Operation Complete + Query Error
	sim.responses[":MEAS?"] = "9.99e+37"

	proto, err := NewProtocol(sim)
	require.NoError(t, err)

	resp, err := proto.Query(context.Background(), ":MEAS?")

	var faultErr *FaultError
	require.ErrorAs(t, err, &faultErr)
	assert.Equal(t, []string{"Operation Complete", "Query Error"}, faultErr.Flags)
	assert.Empty(t, resp)
}
