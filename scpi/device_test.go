package scpi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, sim *simTransport) *Device {
	t.Helper()

	dev, err := NewDevice(sim)
	require.NoError(t, err)

	return dev
}

func TestDeviceLifecycle(t *testing.T) {
	sim := newSimTransport()
	dev := newTestDevice(t, sim)

	require.NoError(t, dev.Connect())
	assert.True(t, sim.Connected())

	require.NoError(t, dev.Close())
	assert.False(t, sim.Connected())

	// Closing an already-closed handle is a no-op.
	require.NoError(t, dev.Close())
}

func TestDeviceIDN(t *testing.T) {
	sim := newSimTransport()
	sim.responses["*IDN?"] = "ACME,MODEL1,SN1,1.0"
	dev := newTestDevice(t, sim)

	idn, err := dev.IDN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ACME,MODEL1,SN1,1.0", idn)
	// The identification query is not completion-tracked.
	assert.Equal(t, 0, sim.pollCount())
}

func TestDeviceCommonCommands(t *testing.T) {
	ctx := context.Background()

	sim := newSimTransport()
	sim.responses["*OPC?"] = "1"
	sim.responses["*STB?"] = "0"
	sim.responses["*TST?"] = "0"
	dev := newTestDevice(t, sim)

	require.NoError(t, dev.Reset(ctx))
	require.NoError(t, dev.ClearStatus(ctx))
	require.NoError(t, dev.Trigger(ctx))
	require.NoError(t, dev.Wait(ctx))
	require.NoError(t, dev.SRE(ctx, 32))
	require.NoError(t, dev.ESE(ctx, 61))
	require.NoError(t, dev.PSC(ctx, true))
	require.NoError(t, dev.Save(ctx, "setup1"))
	require.NoError(t, dev.Recall(ctx, "setup1"))

	opc, err := dev.OPCQuery(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", opc)

	tst, err := dev.SelfTest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", tst)

	assert.Equal(t, []string{
		"*RST",
		"*CLS",
		"*TRG",
		"*WAI",
		"*SRE 32",
		"*ESE 61",
		"*PSC 1",
		`*SAV "setup1"`,
		`*RCL "setup1"`,
		"*OPC?",
		"*TST?",
	}, sim.written())
}

func TestDeviceCheckErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("clean register yields empty list", func(t *testing.T) {
		sim := newSimTransport()
		sim.esrRaw = "0"
		dev := newTestDevice(t, sim)

		flags, err := dev.CheckErrors(ctx)
		require.NoError(t, err)
		assert.Empty(t, flags)
	})

	t.Run("fault bits decode in bit order", func(t *testing.T) {
		sim := newSimTransport()
		sim.esrRaw = "33" // 0x21
		dev := newTestDevice(t, sim)

		flags, err := dev.CheckErrors(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Operation Complete", "Command Error"}, flags)
	})

	t.Run("unparseable register", func(t *testing.T) {
		sim := newSimTransport()
		sim.esrRaw = "???"
		dev := newTestDevice(t, sim)

		_, err := dev.CheckErrors(ctx)
		var desyncErr *DesyncError
		require.ErrorAs(t, err, &desyncErr)
	})
}

func TestDeviceESR(t *testing.T) {
	sim := newSimTransport()
	sim.esrRaw = "33"
	dev := newTestDevice(t, sim)

	esr, err := dev.ESR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRegister(0x21), esr)
	assert.True(t, esr.Faulted())
}
