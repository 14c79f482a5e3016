// Package plz164w provides the capability set of the Kikusui PLZ164W
// electronic load, layered on the common SCPI command surface.
package plz164w

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/labkit/go-scpi/registry"
	"github.com/labkit/go-scpi/scpi"
)

// Name is the implementation reference descriptors use to bind to this
// plugin.
const Name = "plz164w"

// PLZ164W drives a Kikusui PLZ164W electronic load. All setters run through
// the completion-tracked protocol; a rejected setpoint surfaces the decoded
// fault bits.
type PLZ164W struct {
	*scpi.Device
}

var _ scpi.Handle = (*PLZ164W)(nil)

// New wraps a connected base device in the PLZ164W capability set.
func New(dev *scpi.Device) *PLZ164W {
	return &PLZ164W{Device: dev}
}

// Register binds this plugin's constructor into reg under Name.
func Register(reg *registry.Registry) error {
	return reg.RegisterImplementation(Name, func(dev *scpi.Device) scpi.Handle {
		return New(dev)
	})
}

// LoadOn enables the load input.
func (d *PLZ164W) LoadOn(ctx context.Context) error {
	return d.Send(ctx, "OUTP ON")
}

// LoadOff disables the load input.
func (d *PLZ164W) LoadOff(ctx context.Context) error {
	return d.Send(ctx, "OUTP OFF")
}

// SetVoltage sets the voltage setpoint in volts.
func (d *PLZ164W) SetVoltage(ctx context.Context, volts float64) error {
	return d.Send(ctx, fmt.Sprintf("VOLT %g", volts))
}

// SetCurrent sets the current setpoint in amperes.
func (d *PLZ164W) SetCurrent(ctx context.Context, amps float64) error {
	return d.Send(ctx, fmt.Sprintf("CURR %g", amps))
}

// SetOverPowerProtection sets the over-power protection limit in watts.
func (d *PLZ164W) SetOverPowerProtection(ctx context.Context, watts float64) error {
	return d.Send(ctx, fmt.Sprintf("POW:PROT %g", watts))
}

// Voltage measures the input voltage in volts.
func (d *PLZ164W) Voltage(ctx context.Context) (float64, error) {
	res, err := d.Query(ctx, "MEAS:VOLT?")
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(strings.TrimSpace(res), 64)
}

// Current measures the input current in amperes.
func (d *PLZ164W) Current(ctx context.Context) (float64, error) {
	res, err := d.Query(ctx, "MEAS:CURR?")
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(strings.TrimSpace(res), 64)
}

// Local returns the front panel to local control.
func (d *PLZ164W) Local(ctx context.Context) error {
	return d.Send(ctx, "SYST:LOC")
}
