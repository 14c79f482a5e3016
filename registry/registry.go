package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/labkit/go-scpi/logger"
	"github.com/labkit/go-scpi/scpi"
)

// Constructor builds a device-specific capability implementation around a
// connected base device. Plugin packages provide one per device model.
type Constructor func(*scpi.Device) scpi.Handle

// Registry binds device names to validated descriptors and implementation
// constructors.
type Registry struct {
	logger logger.Logger

	// discoverMu serializes discovery passes; entries are replaced wholesale,
	// never mutated in place.
	discoverMu sync.Mutex
	entries    *xsync.MapOf[string, Entry]

	ctorMu sync.RWMutex
	ctors  map[string]Constructor
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:  logger.GetLogger(),
		entries: xsync.NewMapOf[string, Entry](),
		ctors:   make(map[string]Constructor),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")

	return r
}

// RegisterImplementation binds an implementation reference to its
// constructor. Registering the same name again replaces the previous
// constructor.
func (r *Registry) RegisterImplementation(name string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("%w: %q", ErrConstructorNil, name)
	}

	r.ctorMu.Lock()
	defer r.ctorMu.Unlock()
	r.ctors[NormalizeName(name)] = ctor

	return nil
}

// Implementation returns the constructor bound to an implementation
// reference.
func (r *Registry) Implementation(name string) (Constructor, bool) {
	r.ctorMu.RLock()
	defer r.ctorMu.RUnlock()
	ctor, ok := r.ctors[NormalizeName(name)]

	return ctor, ok
}

// Discover scans each location for plugin subdirectories carrying a
// device.yaml descriptor and registers every candidate found.
//
// A candidate that fails to parse or validate is recorded as Invalid with
// its reasons and discovery continues with the next candidate; one bad
// plugin never aborts discovery of the others. Entries of re-discovered
// names are replaced wholesale.
//
// The returned error reports unreadable locations only, joined per
// location; descriptor problems are never returned as errors.
func (r *Registry) Discover(locations ...string) error {
	r.discoverMu.Lock()
	defer r.discoverMu.Unlock()

	var errs []error
	seen := make(map[string]string) // name -> source dir, uniqueness within this pass

	for _, location := range locations {
		dirs, err := os.ReadDir(location)
		if err != nil {
			errs = append(errs, fmt.Errorf("registry: read plugin location %q: %w", location, err))
			continue
		}

		for _, dir := range dirs {
			if !dir.IsDir() || strings.HasPrefix(dir.Name(), ".") {
				continue
			}

			path := filepath.Join(location, dir.Name(), DescriptorFileName)
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue // not a plugin directory
				}
				errs = append(errs, fmt.Errorf("registry: read descriptor %q: %w", path, err))

				continue
			}

			r.registerCandidate(dir.Name(), path, data, seen)
		}
	}

	return errors.Join(errs...)
}

// registerCandidate parses, validates and stores one discovery candidate.
// The caller holds discoverMu.
func (r *Registry) registerCandidate(dirName, path string, data []byte, seen map[string]string) {
	now := time.Now()

	desc, err := ParseDescriptor(data)
	if err != nil {
		// Unparseable descriptors are keyed by their directory name so the
		// failure is visible to Resolve and List callers.
		r.storeInvalid(Descriptor{Name: NormalizeName(dirName)}, now, []string{err.Error()})

		return
	}

	reasons := r.validate(desc)

	name := desc.Name
	if name == "" {
		name = NormalizeName(dirName)
		desc.Name = name
	}

	if prev, dup := seen[name]; dup {
		// First candidate wins; storing the duplicate would clobber it.
		r.logger.Warn("duplicate device name skipped", "device", name, "source", path, "first_source", prev)

		return
	}
	seen[name] = path

	if len(reasons) > 0 {
		r.storeInvalid(*desc, now, reasons)

		return
	}

	r.entries.Store(name, Entry{
		Descriptor:   *desc,
		DiscoveredAt: now,
		Status:       StatusRegistered,
	})
	r.logger.Info("device registered", "device", name, "implementation", desc.Implementation,
		"method", desc.Transport.Method.String(), "source", path)
}

func (r *Registry) storeInvalid(desc Descriptor, now time.Time, reasons []string) {
	r.entries.Store(desc.Name, Entry{
		Descriptor:   desc,
		DiscoveredAt: now,
		Status:       StatusInvalid,
		Reasons:      reasons,
	})
	r.logger.Warn("device descriptor invalid", "device", desc.Name, "reasons", strings.Join(reasons, "; "))
}

// validate checks the required descriptor fields and returns the reasons of
// every failure.
func (r *Registry) validate(desc *Descriptor) []string {
	var reasons []string

	if desc.Name == "" {
		reasons = append(reasons, "device name is missing")
	}

	if err := desc.Transport.Validate(); err != nil {
		reasons = append(reasons, err.Error())
	}

	if desc.Implementation == "" {
		reasons = append(reasons, "implementation reference is missing")
	} else if _, ok := r.Implementation(desc.Implementation); !ok {
		reasons = append(reasons, fmt.Sprintf("implementation %q has no registered constructor", desc.Implementation))
	}

	return reasons
}

// Resolve returns the Registered entry for name.
//
// An unknown name fails with an error wrapping ErrNotFound. A name that was
// discovered but failed validation fails with an error wrapping
// ErrInvalidDescriptor and carrying the validation reasons, as an explicit
// signal that the device is broken rather than absent.
func (r *Registry) Resolve(name string) (Entry, error) {
	normalized := NormalizeName(name)

	entry, ok := r.entries.Load(normalized)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q (known devices: %s)", ErrNotFound, name, strings.Join(r.List(), ", "))
	}
	if !entry.Registered() {
		return Entry{}, fmt.Errorf("%w: %q (%s)", ErrInvalidDescriptor, name, strings.Join(entry.Reasons, "; "))
	}

	return entry, nil
}

// List returns the names of all Registered entries, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0)
	r.entries.Range(func(name string, entry Entry) bool {
		if entry.Registered() {
			names = append(names, name)
		}

		return true
	})
	sort.Strings(names)

	return names
}

// Clear removes all discovered entries. Implementation constructors stay
// registered.
func (r *Registry) Clear() {
	r.discoverMu.Lock()
	defer r.discoverMu.Unlock()
	r.entries.Clear()
}
