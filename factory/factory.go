// Package factory builds connected device handles from registry entries or
// raw transport parameters.
//
// Connect resolves a device name through the registry, merges caller
// overrides onto the descriptor's transport defaults key-by-key, builds and
// connects the transport, and wraps it in the device's capability
// implementation. ConnectRaw skips the registry and returns a base handle
// speaking only the common command set.
package factory

import (
	"fmt"

	"github.com/labkit/go-scpi/logger"
	"github.com/labkit/go-scpi/registry"
	"github.com/labkit/go-scpi/scpi"
	"github.com/labkit/go-scpi/transport"
)

// Factory wires the registry, transport construction and protocol setup into
// a single connect surface. The registry is passed in by reference at
// construction; the factory holds no device state of its own.
type Factory struct {
	reg       *registry.Registry
	logger    logger.Logger
	protoOpts []scpi.ProtocolOption
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used by the factory and the transports it
// builds.
func WithLogger(l logger.Logger) Option {
	return func(f *Factory) {
		f.logger = l
	}
}

// WithProtocolOptions sets protocol options applied to every device the
// factory connects, such as default completion timeout and poll interval.
func WithProtocolOptions(opts ...scpi.ProtocolOption) Option {
	return func(f *Factory) {
		f.protoOpts = opts
	}
}

// New creates a Factory bound to reg.
func New(reg *registry.Registry, opts ...Option) *Factory {
	f := &Factory{
		reg:    reg,
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Connect resolves name through the registry, applies overrides onto the
// descriptor's transport defaults, connects the transport and returns the
// device's capability implementation.
//
// Overrides win key-by-key over descriptor defaults; parameters they don't
// name keep their descriptor values. The descriptor itself is never mutated.
// If anything fails after the transport connected, the transport is
// disconnected before returning, so no channel leaks on an error path.
func (f *Factory) Connect(name string, overrides ...transport.Override) (scpi.Handle, error) {
	entry, err := f.reg.Resolve(name)
	if err != nil {
		return nil, err
	}

	cfg := entry.Descriptor.Transport.Clone()
	for _, override := range overrides {
		override(&cfg)
	}

	dev, err := f.connectDevice(cfg, entry.Descriptor.Name)
	if err != nil {
		return nil, err
	}

	ctor, ok := f.reg.Implementation(entry.Descriptor.Implementation)
	if !ok {
		_ = dev.Close()

		return nil, fmt.Errorf("%w: %q (implementation %q has no registered constructor)",
			registry.ErrInvalidDescriptor, name, entry.Descriptor.Implementation)
	}

	f.logger.Info("device connected", "device", entry.Descriptor.Name,
		"implementation", entry.Descriptor.Implementation, "target", cfg.Target())

	return ctor(dev), nil
}

// ConnectRaw builds and connects a transport from a method name and
// overrides, without consulting the registry. The returned handle exposes
// only the base command set.
func (f *Factory) ConnectRaw(method string, overrides ...transport.Override) (*scpi.Device, error) {
	m, err := transport.ParseMethod(method)
	if err != nil {
		return nil, err
	}

	cfg := transport.Config{Method: m}
	switch m {
	case transport.MethodSerial:
		cfg.Serial = &transport.SerialConfig{}
	case transport.MethodSocket:
		cfg.Socket = &transport.SocketConfig{}
	case transport.MethodVisa:
		cfg.Visa = &transport.VisaConfig{}
	}
	for _, override := range overrides {
		override(&cfg)
	}

	dev, err := f.connectDevice(cfg, "")
	if err != nil {
		return nil, err
	}

	f.logger.Info("raw transport connected", "method", m.String(), "target", cfg.Target())

	return dev, nil
}

// ListDevices returns the names of all registered devices, sorted.
func (f *Factory) ListDevices() []string {
	return f.reg.List()
}

// connectDevice builds the transport, establishes the channel and wraps it
// in a base Device. The transport is released on every failure path past
// Connect.
func (f *Factory) connectDevice(cfg transport.Config, device string) (*scpi.Device, error) {
	log := f.logger
	if device != "" {
		log = log.With("device", device)
	}

	tr, err := transport.New(cfg, transport.WithLogger(log))
	if err != nil {
		return nil, err
	}

	if err := tr.Connect(); err != nil {
		return nil, err
	}

	dev, err := scpi.NewDevice(tr, f.protoOpts...)
	if err != nil {
		_ = tr.Disconnect()

		return nil, err
	}

	return dev, nil
}
