package registry

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/labkit/go-scpi/transport"
)

// DescriptorFileName is the file each plugin directory must carry to be
// considered a discovery candidate.
const DescriptorFileName = "device.yaml"

// Descriptor is the declarative record describing one device: its
// case-normalized name, the implementation it binds to, its transport
// defaults and free-form metadata. Descriptors are immutable after
// registration; re-discovery replaces them wholesale.
type Descriptor struct {
	Name           string            `yaml:"name"`
	Implementation string            `yaml:"implementation"`
	Transport      transport.Config  `yaml:",inline"`
	Metadata       map[string]string `yaml:"metadata,omitempty"`
}

// ParseDescriptor parses a device.yaml document and case-normalizes the
// device name.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	d.Name = NormalizeName(d.Name)
	d.Implementation = NormalizeName(d.Implementation)

	return &d, nil
}

// NormalizeName lower-cases and trims a device or implementation name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Status is the validation outcome of a discovered descriptor.
type Status uint8

const (
	// StatusRegistered marks a descriptor that passed validation and can be
	// resolved.
	StatusRegistered Status = iota + 1
	// StatusInvalid marks a descriptor that failed validation; the entry
	// records the reasons.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Entry is a discovered descriptor together with its discovery timestamp and
// validation status. Entries are owned by the Registry and are read-only
// snapshots for callers.
type Entry struct {
	Descriptor   Descriptor
	DiscoveredAt time.Time
	Status       Status
	// Reasons lists the validation failures of an Invalid entry.
	Reasons []string
}

// Registered reports whether the entry passed validation.
func (e *Entry) Registered() bool { return e.Status == StatusRegistered }
