// Package im3590 provides the capability set of the HIOKI IM3590 LCR meter,
// layered on the common SCPI command surface.
package im3590

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
const Name = "im3590"

// IM3590 drives a HIOKI IM3590 chemical impedance analyzer / LCR meter.
// Setters run through the completion-tracked protocol, so a command that the
// instrument rejects surfaces its decoded fault bits instead of failing
// silently.
type IM3590 struct {
	*scpi.Device
}

var _ scpi.Handle = (*IM3590)(nil)

// New wraps a connected base device in the IM3590 capability set.
func New(dev *scpi.Device) *IM3590 {
	return &IM3590{Device: dev}
}

// Register binds this plugin's constructor into reg under Name.
func Register(reg *registry.Registry) error {
	return reg.RegisterImplementation(Name, func(dev *scpi.Device) scpi.Handle {
		return New(dev)
	})
}

// SetParameter sets display parameter idx (1-based) to param, e.g. Z, Y or
// PHASE.
func (d *IM3590) SetParameter(ctx context.Context, idx int, param string) error {
	return d.Send(ctx, fmt.Sprintf(":PARameter%d %s", idx, param))
}

// Parameter queries display parameter idx.
func (d *IM3590) Parameter(ctx context.Context, idx int) (string, error) {
	return d.Query(ctx, fmt.Sprintf(":PARameter%d?", idx))
}

// SetRange sets the measurement range number.
func (d *IM3590) SetRange(ctx context.Context, rangeNo int) error {
	return d.Send(ctx, fmt.Sprintf(":RANGe %d", rangeNo))
}

// Range queries the measurement range number.
func (d *IM3590) Range(ctx context.Context) (int, error) {
	res, err := d.Query(ctx, ":RANGe?")
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.TrimSpace(res))
}

// SetSpeed sets the measurement speed: FAST, MEDium, SLOW or SLOW2.
func (d *IM3590) SetSpeed(ctx context.Context, speed string) error {
	return d.Send(ctx, fmt.Sprintf(":SPEEd %s", speed))
}

// Speed queries the measurement speed.
func (d *IM3590) Speed(ctx context.Context) (string, error) {
	return d.Query(ctx, ":SPEEd?")
}

// SetFrequency sets the measurement frequency in Hz.
func (d *IM3590) SetFrequency(ctx context.Context, hz float64) error {
	return d.Send(ctx, fmt.Sprintf(":FREQuency %g", hz))
}

// Frequency queries the measurement frequency in Hz.
func (d *IM3590) Frequency(ctx context.Context) (float64, error) {
	res, err := d.Query(ctx, ":FREQuency?")
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(strings.TrimSpace(res), 64)
}

// SetMode sets the measurement mode: LCR, ANALyzer or CONTinuous.
func (d *IM3590) SetMode(ctx context.Context, mode string) error {
	return d.Send(ctx, fmt.Sprintf(":MODE %s", mode))
}

// Mode queries the measurement mode.
func (d *IM3590) Mode(ctx context.Context) (string, error) {
	return d.Query(ctx, ":MODE?")
}

// Measure queries the current measurement result. The response format
// follows the configured display parameters.
func (d *IM3590) Measure(ctx context.Context) (string, error) {
	return d.Query(ctx, ":MEASure?")
}
