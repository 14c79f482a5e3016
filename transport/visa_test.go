package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisaResource(t *testing.T) {
	base := VisaConfig{Timeout: Duration(2 * time.Second), Terminator: TermLF}

	t.Run("tcpip socket resource", func(t *testing.T) {
		cfg := base
		cfg.Address = "TCPIP0::10.0.0.5::5025::SOCKET"

		inner, err := parseVisaResource(cfg)
		require.NoError(t, err)
		assert.Equal(t, MethodSocket, inner.Method)
		require.NotNil(t, inner.Socket)
		assert.Equal(t, "10.0.0.5", inner.Socket.Host)
		assert.Equal(t, 5025, inner.Socket.Port)
		assert.Equal(t, Duration(2*time.Second), inner.Socket.Timeout)
		assert.Equal(t, TermLF, inner.Socket.Terminator)
	})

	t.Run("tcpip instr resource defaults to raw scpi port", func(t *testing.T) {
		cfg := base
		cfg.Address = "TCPIP::10.0.0.5::INSTR"

		inner, err := parseVisaResource(cfg)
		require.NoError(t, err)
		assert.Equal(t, MethodSocket, inner.Method)
		assert.Equal(t, DefaultVisaPort, inner.Socket.Port)
	})

	t.Run("serial resource with device path", func(t *testing.T) {
		cfg := base
		cfg.Address = "ASRL/dev/ttyUSB0::INSTR"

		inner, err := parseVisaResource(cfg)
		require.NoError(t, err)
		assert.Equal(t, MethodSerial, inner.Method)
		require.NotNil(t, inner.Serial)
		assert.Equal(t, "/dev/ttyUSB0", inner.Serial.Port)
	})

	t.Run("serial resource without device path", func(t *testing.T) {
		cfg := base
		cfg.Address = "ASRL1::INSTR"

		_, err := parseVisaResource(cfg)
		require.ErrorIs(t, err, ErrConfig)
	})

	t.Run("socket resource without port", func(t *testing.T) {
		cfg := base
		cfg.Address = "TCPIP0::10.0.0.5::SOCKET"

		_, err := parseVisaResource(cfg)
		require.ErrorIs(t, err, ErrConfig)
	})

	t.Run("gpib resource unsupported", func(t *testing.T) {
		cfg := base
		cfg.Address = "GPIB0::12::INSTR"

		_, err := parseVisaResource(cfg)
		require.ErrorIs(t, err, ErrConfig)
	})
}

func TestVisaTransportIdentity(t *testing.T) {
	tr, err := New(Config{
		Method: MethodVisa,
		Visa:   &VisaConfig{Address: "TCPIP0::10.0.0.5::5025::SOCKET"},
	})
	require.NoError(t, err)

	assert.Equal(t, MethodVisa, tr.Method())
	assert.Equal(t, "TCPIP0::10.0.0.5::5025::SOCKET", tr.Target())
	assert.False(t, tr.Connected())
	require.NoError(t, tr.Disconnect())
}
