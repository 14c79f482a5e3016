package transport

import (
	"fmt"
	"net"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default connection parameters, matching common bench-instrument settings.
const (
	DefaultBaudRate = 9600
	DefaultTimeout  = 1 * time.Second

	// DefaultVisaPort is the conventional raw-SCPI TCP port used when a
	// TCPIP::INSTR resource does not carry an explicit port.
	DefaultVisaPort = 5025
)

// Method selects the concrete transport variant.
type Method string

const (
	// MethodSerial selects a serial port channel.
	MethodSerial Method = "serial"
	// MethodSocket selects a raw TCP socket channel.
	MethodSocket Method = "socket"
	// MethodVisa selects a channel addressed by a VISA resource string.
	MethodVisa Method = "visa"
)

// ParseMethod parses a transport method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodSerial:
		return MethodSerial, nil
	case MethodSocket:
		return MethodSocket, nil
	case MethodVisa:
		return MethodVisa, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

func (m Method) String() string { return string(m) }

// UnmarshalYAML parses and case-normalizes a method name from a descriptor.
func (m *Method) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	method, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*m = method

	return nil
}

// Terminator is the line-ending sequence used to frame commands and
// responses on the wire.
type Terminator string

const (
	TermCR   Terminator = "\r"
	TermLF   Terminator = "\n"
	TermCRLF Terminator = "\r\n"
	TermLFCR Terminator = "\n\r"
)

// ParseTerminator maps the symbolic names CR, LF, CRLF and LFCR
// (case-insensitive) to their byte sequences. Any other value is taken as a
// literal terminator.
func ParseTerminator(s string) Terminator {
	switch strings.ToUpper(s) {
	case "CR":
		return TermCR
	case "LF":
		return TermLF
	case "CRLF":
		return TermCRLF
	case "LFCR":
		return TermLFCR
	default:
		return Terminator(s)
	}
}

// UnmarshalYAML accepts either a symbolic terminator name or a literal value.
func (t *Terminator) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	*t = ParseTerminator(s)

	return nil
}

// MarshalYAML renders the terminator back as its symbolic name when one
// exists.
func (t Terminator) MarshalYAML() (any, error) {
	switch t {
	case TermCR:
		return "CR", nil
	case TermLF:
		return "LF", nil
	case TermCRLF:
		return "CRLF", nil
	case TermLFCR:
		return "LFCR", nil
	default:
		return string(t), nil
	}
}

// Duration wraps time.Duration so descriptor timeouts can be written in Go
// duration syntax ("500ms", "2s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)

	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// SerialConfig holds connection parameters for a serial port channel.
type SerialConfig struct {
	Port       string     `yaml:"port"`
	BaudRate   int        `yaml:"baud_rate"`
	Timeout    Duration   `yaml:"timeout"`
	Terminator Terminator `yaml:"terminator"`
}

// SocketConfig holds connection parameters for a raw TCP socket channel.
type SocketConfig struct {
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	Timeout    Duration   `yaml:"timeout"`
	Terminator Terminator `yaml:"terminator"`
}

// Addr returns "host:port".
func (c *SocketConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// VisaConfig holds connection parameters for a VISA-addressed channel.
type VisaConfig struct {
	Address    string     `yaml:"address"`
	Timeout    Duration   `yaml:"timeout"`
	Terminator Terminator `yaml:"terminator"`
}

// Config selects a transport variant and carries its parameters. Exactly one
// parameter block must be populated, matching Method.
type Config struct {
	Method Method        `yaml:"method"`
	Serial *SerialConfig `yaml:"serial_params,omitempty"`
	Socket *SocketConfig `yaml:"socket_params,omitempty"`
	Visa   *VisaConfig   `yaml:"visa_params,omitempty"`
}

// Validate checks that exactly one parameter block is populated and that it
// matches Method, and that the block's parameters are structurally sound.
// All failures wrap ErrConfig.
func (cfg *Config) Validate() error {
	if _, err := ParseMethod(string(cfg.Method)); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	populated := 0
	if cfg.Serial != nil {
		populated++
	}
	if cfg.Socket != nil {
		populated++
	}
	if cfg.Visa != nil {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("%w: exactly one parameter block required, got %d", ErrConfig, populated)
	}

	switch cfg.Method {
	case MethodSerial:
		if cfg.Serial == nil {
			return fmt.Errorf("%w: method is serial but serial_params is missing", ErrConfig)
		}
		if cfg.Serial.Port == "" {
			return fmt.Errorf("%w: serial port is empty", ErrConfig)
		}
		if cfg.Serial.BaudRate < 0 {
			return fmt.Errorf("%w: baud rate %d is negative", ErrConfig, cfg.Serial.BaudRate)
		}
	case MethodSocket:
		if cfg.Socket == nil {
			return fmt.Errorf("%w: method is socket but socket_params is missing", ErrConfig)
		}
		if cfg.Socket.Host == "" {
			return fmt.Errorf("%w: socket host is empty", ErrConfig)
		}
		if cfg.Socket.Port < 0 || cfg.Socket.Port > 65535 {
			return fmt.Errorf("%w: socket port %d out of range [0, 65535]", ErrConfig, cfg.Socket.Port)
		}
	case MethodVisa:
		if cfg.Visa == nil {
			return fmt.Errorf("%w: method is visa but visa_params is missing", ErrConfig)
		}
		if cfg.Visa.Address == "" {
			return fmt.Errorf("%w: visa address is empty", ErrConfig)
		}
	}

	return nil
}

// withDefaults returns a copy of cfg with unset parameters filled in.
func (cfg Config) withDefaults() Config {
	out := cfg.Clone()
	switch {
	case out.Serial != nil:
		if out.Serial.BaudRate == 0 {
			out.Serial.BaudRate = DefaultBaudRate
		}
		if out.Serial.Timeout == 0 {
			out.Serial.Timeout = Duration(DefaultTimeout)
		}
		if out.Serial.Terminator == "" {
			out.Serial.Terminator = TermCRLF
		}
	case out.Socket != nil:
		if out.Socket.Timeout == 0 {
			out.Socket.Timeout = Duration(DefaultTimeout)
		}
		if out.Socket.Terminator == "" {
			out.Socket.Terminator = TermCRLF
		}
	case out.Visa != nil:
		if out.Visa.Timeout == 0 {
			out.Visa.Timeout = Duration(DefaultTimeout)
		}
		if out.Visa.Terminator == "" {
			out.Visa.Terminator = TermLF
		}
	}

	return out
}

// Clone returns a deep copy, so overrides applied to the copy never mutate a
// registered descriptor's defaults.
func (cfg Config) Clone() Config {
	out := cfg
	if cfg.Serial != nil {
		s := *cfg.Serial
		out.Serial = &s
	}
	if cfg.Socket != nil {
		s := *cfg.Socket
		out.Socket = &s
	}
	if cfg.Visa != nil {
		v := *cfg.Visa
		out.Visa = &v
	}

	return out
}

// Target identifies the configured channel for logs and error messages.
func (cfg *Config) Target() string {
	switch {
	case cfg.Serial != nil:
		return cfg.Serial.Port
	case cfg.Socket != nil:
		return cfg.Socket.Addr()
	case cfg.Visa != nil:
		return cfg.Visa.Address
	default:
		return ""
	}
}

// Override adjusts a single connection parameter on top of a descriptor's
// transport defaults. Overrides win key-by-key; parameters they don't name
// keep their descriptor values.
type Override func(*Config)

// WithPort overrides the serial port path.
func WithPort(port string) Override {
	return func(cfg *Config) {
		if cfg.Serial != nil {
			cfg.Serial.Port = port
		}
	}
}

// WithBaudRate overrides the serial baud rate.
func WithBaudRate(baud int) Override {
	return func(cfg *Config) {
		if cfg.Serial != nil {
			cfg.Serial.BaudRate = baud
		}
	}
}

// WithHost overrides the socket host.
func WithHost(host string) Override {
	return func(cfg *Config) {
		if cfg.Socket != nil {
			cfg.Socket.Host = host
		}
	}
}

// WithTCPPort overrides the socket TCP port.
func WithTCPPort(port int) Override {
	return func(cfg *Config) {
		if cfg.Socket != nil {
			cfg.Socket.Port = port
		}
	}
}

// WithAddress overrides the VISA resource address.
func WithAddress(address string) Override {
	return func(cfg *Config) {
		if cfg.Visa != nil {
			cfg.Visa.Address = address
		}
	}
}

// WithTimeout overrides the read timeout of whichever variant is configured.
func WithTimeout(d time.Duration) Override {
	return func(cfg *Config) {
		switch {
		case cfg.Serial != nil:
			cfg.Serial.Timeout = Duration(d)
		case cfg.Socket != nil:
			cfg.Socket.Timeout = Duration(d)
		case cfg.Visa != nil:
			cfg.Visa.Timeout = Duration(d)
		}
	}
}

// WithTerminator overrides the line terminator of whichever variant is
// configured.
func WithTerminator(t Terminator) Override {
	return func(cfg *Config) {
		switch {
		case cfg.Serial != nil:
			cfg.Serial.Terminator = t
		case cfg.Socket != nil:
			cfg.Socket.Terminator = t
		case cfg.Visa != nil:
			cfg.Visa.Terminator = t
		}
	}
}
