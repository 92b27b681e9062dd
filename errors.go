// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package spa

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyBound is reported when a port is bound more than once.
	ErrAlreadyBound = errors.New("port is already bound")

	// ErrUnbound is reported when a required port is not bound at the end of
	// negotiation.
	ErrUnbound = errors.New("required port is not bound")

	// ErrDuplicateEventPort is reported when a plugin has more than one event
	// input port.
	ErrDuplicateEventPort = errors.New("duplicate event input port")
)

// PortNotFoundError is reported by [Plugin.Port] when the plugin has no port
// with the requested name.
type PortNotFoundError struct {
	Name string
}

// Error satisfies the error interface.
func (e *PortNotFoundError) Error() string {
	return fmt.Sprintf("no port named %q", e.Name)
}

// VersionError is reported when a plugin was built against a version of the
// plugin interface the host does not support.
type VersionError struct {
	Host   Version // the version implemented by the host
	Plugin Version // the version reported by the plugin
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("plugin API version %v is not supported by host version %v", e.Plugin, e.Host)
}

// State is the lifecycle state of a plugin instance.
type State int32

const (
	Unloaded State = iota
	Loaded
	Negotiating
	Allocated
	Active
	Running
	Deactivated
)

var stateStr = [...]string{
	Unloaded:    "unloaded",
	Loaded:      "loaded",
	Negotiating: "negotiating",
	Allocated:   "allocated",
	Active:      "active",
	Running:     "running",
	Deactivated: "deactivated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateStr) {
		return stateStr[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// StateError is reported when an operation is attempted in a state that does
// not permit it.
type StateError struct {
	Op    string  // the operation attempted
	State State   // the state at the time
	Want  []State // the states in which Op is permitted
}

// Error satisfies the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid in state %v (want %v)", e.Op, e.State, e.Want)
}
