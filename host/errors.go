// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

import "fmt"

// LoadError is reported when a plugin library cannot be loaded or its plugin
// cannot be instantiated.
type LoadError struct {
	Path string // the library path
	Err  error  // the underlying error
}

// Unwrap supports error wrapping.
func (e *LoadError) Unwrap() error { return e.Err }

// Error satisfies the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Path, e.Err)
}

// NegotiationError is reported when port negotiation fails. The instance is
// unloaded when this occurs.
type NegotiationError struct {
	Plugin string // the label of the plugin
	Port   string // the port being negotiated, if any
	Stage  string // "enumerate", "lookup", "bind", or "verify"
	Err    error  // the underlying error
}

// Unwrap supports error wrapping.
func (e *NegotiationError) Unwrap() error { return e.Err }

// Error satisfies the error interface.
func (e *NegotiationError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("negotiate %s: %s: %v", e.Plugin, e.Stage, e.Err)
	}
	return fmt.Sprintf("negotiate %s: %s port %q: %v", e.Plugin, e.Stage, e.Port, e.Err)
}
