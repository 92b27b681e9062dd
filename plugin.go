// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package spa

import (
	"fmt"

	"github.com/creachadair/spa/abi"
)

// EntrySymbol is the name of the function a plugin library exports to supply
// its descriptor. The function must have type [EntryFunc].
const EntrySymbol = "SpaDescriptor"

// APIVersion is the version of the plugin interface defined by this package.
// The major version changes when the interface changes incompatibly, and the
// minor version when it is extended.
var APIVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Version is a semantic version of the plugin interface.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// Supports reports whether a host built against v can load a plugin built
// against p. The major versions must match, and p must not be newer than v
// in its minor version.
func (v Version) Supports(p Version) bool { return v.Major == p.Major && p.Minor <= v.Minor }

// EntryFunc is the type of the entry point of a plugin library. The argument
// is the index of the plugin within the library, and is currently always 0.
// It returns nil if there is no plugin at that index.
type EntryFunc = func(index uint64) Descriptor

// A Descriptor identifies a plugin and constructs instances of it. A
// descriptor carries no mutable state, and outlives the instances it creates.
type Descriptor interface {
	// APIVersion reports the version of the plugin interface the plugin was
	// built against, normally [APIVersion].
	APIVersion() Version

	// Info returns metadata about the plugin.
	Info() Info

	// PortNames returns the names of the ports the host should negotiate, in
	// the order it should negotiate them.
	PortNames() abi.Vec[abi.Str]

	// Instantiate constructs a new plugin instance with unbound ports.
	Instantiate() (Plugin, error)

	// Close releases any resources held by the descriptor. The host calls
	// Close after closing every instance created by the descriptor.
	Close() error
}

// A Plugin is a single instance of a plugin.
type Plugin interface {
	// Port returns the port with the given name. If there is no such port, it
	// reports a *PortNotFoundError.
	Port(name string) (Port, error)

	// Init performs one-time allocation. The host calls Init after all ports
	// are bound, so the buffer size is known.
	Init() error

	// Activate prepares the plugin to run. It must not block or allocate.
	Activate() error

	// Run processes one block. It must not block or allocate.
	Run() error

	// Deactivate stops processing. Run will not be called again unless the
	// plugin is reactivated.
	Deactivate() error

	// Close releases all resources held by the plugin.
	Close() error
}

// Info is metadata describing a plugin.
type Info struct {
	// Label is a stable identifier for the plugin, unique within its project
	// (e.g., "sweep-filter-3").
	Label string

	// Name is the full name of the plugin (e.g., "Resonant sweep filter").
	Name string

	Project     string
	Authors     string // comma separated
	License     string // e.g., "BSD-3-Clause"
	Description string // one line

	Version    [3]int // major, minor, patch
	Properties Properties
}

// Properties describe the real-time behaviour of a plugin.
type Properties struct {
	// The plugin depends on a real-time resource such as a hardware device,
	// so its output may not be cached or delayed.
	RealtimeDependency bool

	// The plugin makes no system calls and uses only bounded-time
	// algorithms on its processing path.
	HardRTCapable bool
}

// VersionString renders the version of i as "major.minor.patch".
func (i Info) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", i.Version[0], i.Version[1], i.Version[2])
}
