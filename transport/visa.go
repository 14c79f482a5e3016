package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// VisaTransport is a channel addressed by a VISA resource string. The
// byte-level VISA driver itself is out of scope; the resource string is
// parsed and the exchange is delegated to the matching raw channel:
//
//	TCPIP[board]::<host>::<port>::SOCKET  -> raw TCP socket
//	TCPIP[board]::<host>[::inst]::INSTR   -> raw TCP socket on port 5025
//	ASRL<device path>::INSTR              -> serial port
//
// GPIB and USB resource classes require a native VISA library and are
// rejected at construction time.
type VisaTransport struct {
	address string
	inner   Transport
}

var _ Transport = (*VisaTransport)(nil)

func newVisa(cfg VisaConfig, o *options) (*VisaTransport, error) {
	inner, err := parseVisaResource(cfg)
	if err != nil {
		return nil, err
	}

	t, err := New(inner, WithLogger(o.logger.With("visa_address", cfg.Address)))
	if err != nil {
		return nil, err
	}

	return &VisaTransport{address: cfg.Address, inner: t}, nil
}

// parseVisaResource maps a VISA resource string onto a raw transport config,
// carrying the VISA timeout and terminator through.
func parseVisaResource(cfg VisaConfig) (Config, error) {
	parts := strings.Split(cfg.Address, "::")
	head := strings.ToUpper(parts[0])

	switch {
	case strings.HasPrefix(head, "TCPIP"):
		if len(parts) < 2 {
			return Config{}, fmt.Errorf("%w: visa resource %q has no host", ErrConfig, cfg.Address)
		}
		host := parts[1]
		suffix := strings.ToUpper(parts[len(parts)-1])
		switch suffix {
		case "SOCKET":
			if len(parts) < 4 {
				return Config{}, fmt.Errorf("%w: visa SOCKET resource %q has no port", ErrConfig, cfg.Address)
			}
			port, err := strconv.Atoi(parts[len(parts)-2])
			if err != nil {
				return Config{}, fmt.Errorf("%w: visa resource %q has invalid port: %w", ErrConfig, cfg.Address, err)
			}

			return socketResource(host, port, cfg), nil
		case "INSTR":
			return socketResource(host, DefaultVisaPort, cfg), nil
		default:
			return Config{}, fmt.Errorf("%w: visa resource %q has unsupported suffix %q", ErrConfig, cfg.Address, suffix)
		}

	case strings.HasPrefix(head, "ASRL"):
		device := parts[0][len("ASRL"):]
		if device == "" || !strings.ContainsAny(device, "/\\") {
			return Config{}, fmt.Errorf("%w: visa serial resource %q must carry a device path, e.g. ASRL/dev/ttyUSB0::INSTR", ErrConfig, cfg.Address)
		}

		return Config{
			Method: MethodSerial,
			Serial: &SerialConfig{
				Port:       device,
				Timeout:    cfg.Timeout,
				Terminator: cfg.Terminator,
			},
		}, nil

	default:
		return Config{}, fmt.Errorf("%w: visa resource class %q is not supported without a native VISA library", ErrConfig, head)
	}
}

func socketResource(host string, port int, cfg VisaConfig) Config {
	return Config{
		Method: MethodSocket,
		Socket: &SocketConfig{
			Host:       host,
			Port:       port,
			Timeout:    cfg.Timeout,
			Terminator: cfg.Terminator,
		},
	}
}

func (t *VisaTransport) Method() Method { return MethodVisa }

func (t *VisaTransport) Target() string { return t.address }

func (t *VisaTransport) Connect() error { return t.inner.Connect() }

func (t *VisaTransport) Disconnect() error { return t.inner.Disconnect() }

func (t *VisaTransport) Connected() bool { return t.inner.Connected() }

func (t *VisaTransport) Write(command string) error { return t.inner.Write(command) }

func (t *VisaTransport) Read() (string, error) { return t.inner.Read() }

func (t *VisaTransport) Query(command string) (string, error) { return t.inner.Query(command) }
