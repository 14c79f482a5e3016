// Package registry discovers device descriptors from plugin locations and
// binds device names to capability implementations and transport defaults.
//
// A plugin location is a directory whose subdirectories each carry a
// device.yaml descriptor naming the device, its implementation reference and
// its per-method transport parameter blocks. Discover parses and validates
// every candidate it finds; a malformed descriptor is recorded as Invalid
// with its reasons and never aborts discovery of the others. Re-discovery
// replaces prior entries of the same name wholesale, never merging partial
// updates.
//
// Implementations are constructors behind the fixed scpi.Handle capability
// interface, registered explicitly by the embedding application (typically by
// calling each plugin package's Register helper). A descriptor whose
// implementation reference has no registered constructor is Invalid.
//
// The Registry is an explicit object with a documented lifecycle: construct
// with New, populate with Discover, tear down with Clear. It is safe for
// concurrent use; discovery passes are serialized internally.
package registry
