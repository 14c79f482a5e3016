package registry

import "errors"

var (
	// ErrNotFound indicates that no device with the given name has been
	// discovered.
	ErrNotFound = errors.New("registry: device not found")

	// ErrInvalidDescriptor indicates that the device is present but its
	// descriptor failed validation. This is deliberately distinct from
	// ErrNotFound: the device is broken, not absent.
	ErrInvalidDescriptor = errors.New("registry: device descriptor is invalid")

	// ErrConstructorNil indicates that a nil implementation constructor was
	// registered.
	ErrConstructorNil = errors.New("registry: implementation constructor is nil")
)
