// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package loader resolves the entry point of a plugin library.
//
// A library is either a Go plugin built with -buildmode=plugin, loaded from a
// file path, or an entry point registered in the current process with
// [Register] and opened by the name "builtin:<name>".
package loader

import (
	"errors"
	"fmt"
	"plugin"
	"strings"
	"sync"

	"github.com/creachadair/spa"
)

// BuiltinPrefix is the prefix of library paths that name registered entry
// points rather than files.
const BuiltinPrefix = "builtin:"

// ErrClosed is reported by methods of a closed library.
var ErrClosed = errors.New("library is closed")

var registry struct {
	sync.Mutex
	entries map[string]spa.EntryFunc
}

// Register registers fn as the entry point of a builtin library with the
// given name. It panics if name is empty, fn is nil, or name is already
// registered.
func Register(name string, fn spa.EntryFunc) {
	if name == "" {
		panic("loader: empty library name")
	} else if fn == nil {
		panic("loader: nil entry point")
	}
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.entries[name]; ok {
		panic(fmt.Sprintf("loader: duplicate library %q", name))
	}
	if registry.entries == nil {
		registry.entries = make(map[string]spa.EntryFunc)
	}
	registry.entries[name] = fn
}

// Builtins returns the names of the registered builtin libraries, in no
// particular order.
func Builtins() []string {
	registry.Lock()
	defer registry.Unlock()
	names := make([]string, 0, len(registry.entries))
	for name := range registry.entries {
		names = append(names, name)
	}
	return names
}

// A Library is a handle to a loaded plugin library.
type Library struct {
	path  string
	entry spa.EntryFunc
}

// Open opens the library at path and resolves its entry point.
func Open(path string) (*Library, error) {
	if name, ok := strings.CutPrefix(path, BuiltinPrefix); ok {
		registry.Lock()
		fn, ok := registry.entries[name]
		registry.Unlock()
		if !ok {
			return nil, fmt.Errorf("no builtin library %q", name)
		}
		return &Library{path: path, entry: fn}, nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(spa.EntrySymbol)
	if err != nil {
		return nil, err
	}
	fn, ok := sym.(spa.EntryFunc)
	if !ok {
		return nil, fmt.Errorf("symbol %s has type %T, want %T", spa.EntrySymbol, sym, fn)
	} else if fn == nil {
		return nil, fmt.Errorf("symbol %s is nil", spa.EntrySymbol)
	}
	return &Library{path: path, entry: fn}, nil
}

// FromEntry returns a library handle for the given entry point, without a
// registered name.
func FromEntry(path string, fn spa.EntryFunc) *Library {
	return &Library{path: path, entry: fn}
}

// Path returns the path from which l was opened.
func (l *Library) Path() string { return l.path }

// Descriptor calls the entry point of l with the given index. It reports an
// error if the entry point returns nil.
func (l *Library) Descriptor(index uint64) (spa.Descriptor, error) {
	if l.entry == nil {
		return nil, ErrClosed
	}
	d := l.entry(index)
	if d == nil {
		return nil, fmt.Errorf("no descriptor at index %d", index)
	}
	return d, nil
}

// Close releases l. Once closed, l cannot produce further descriptors.
//
// Go plugins cannot be unloaded from a running process, so closing a library
// loaded from a file drops the reference to its entry point but does not
// unmap its code.
func (l *Library) Close() error {
	if l.entry == nil {
		return ErrClosed
	}
	l.entry = nil
	return nil
}
