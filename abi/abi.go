// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package abi defines the container types passed between a host and a plugin.
//
// Values of these types are plain owned buffers with an explicit length. A
// container is never grown on behalf of the other side of the boundary:
// whoever allocates a value is the only side that appends to it, and the
// receiver copies what it wants to keep.
package abi

import (
	"fmt"
	"iter"
	"slices"
)

// OutOfRangeError is reported by bounds-checked accessors when an index is
// outside the valid range of a container. It indicates a programming error
// in the caller.
type OutOfRangeError struct {
	Index int // the index requested
	Size  int // the number of valid indexes
}

// Error satisfies the error interface.
func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

// CheckIndex reports an *OutOfRangeError if i is not in [0, size).
func CheckIndex(i, size int) error {
	if i < 0 || i >= size {
		return &OutOfRangeError{Index: i, Size: size}
	}
	return nil
}

// A Str is an owned byte string. The zero value is an empty string, and
// constructing an empty string does not allocate.
type Str struct {
	data []byte
}

// NewStr returns a Str holding a copy of s.
func NewStr(s string) Str {
	if s == "" {
		return Str{}
	}
	return Str{data: []byte(s)}
}

// Len reports the number of bytes in s.
func (s Str) Len() int { return len(s.data) }

// IsEmpty reports whether s has no contents.
func (s Str) IsEmpty() bool { return len(s.data) == 0 }

// At returns the byte at offset i of s, or an *OutOfRangeError.
func (s Str) At(i int) (byte, error) {
	if err := CheckIndex(i, len(s.data)); err != nil {
		return 0, err
	}
	return s.data[i], nil
}

// Append returns a new Str with the contents of s followed by t.
// The storage of s is never shared with the result.
func (s Str) Append(t string) Str {
	out := make([]byte, len(s.data)+len(t))
	copy(out, s.data)
	copy(out[len(s.data):], t)
	return Str{data: out}
}

// Clone returns a copy of s that does not share storage with it.
func (s Str) Clone() Str { return Str{data: slices.Clone(s.data)} }

// Equal reports whether s has the same contents as t.
func (s Str) Equal(t string) bool { return string(s.data) == t }

// String returns a copy of the contents of s as a string.
func (s Str) String() string { return string(s.data) }

// A Vec is an owned, fixed sequence of values. The zero value is empty.
type Vec[T any] struct {
	items []T
}

// VecOf returns a Vec holding a copy of the given values.
func VecOf[T any](items ...T) Vec[T] { return Vec[T]{items: slices.Clone(items)} }

// Len reports the number of elements in v.
func (v Vec[T]) Len() int { return len(v.items) }

// At returns the element at index i of v, or an *OutOfRangeError.
func (v Vec[T]) At(i int) (T, error) {
	if err := CheckIndex(i, len(v.items)); err != nil {
		var zero T
		return zero, err
	}
	return v.items[i], nil
}

// Append returns a new Vec with the elements of v followed by items.
// The storage of v is never shared with the result.
func (v Vec[T]) Append(items ...T) Vec[T] {
	out := make([]T, 0, len(v.items)+len(items))
	return Vec[T]{items: append(append(out, v.items...), items...)}
}

// All returns an iterator over the indexes and elements of v.
func (v Vec[T]) All() iter.Seq2[int, T] { return slices.All(v.items) }

// Names returns a Vec of strings constructed from names.
func Names(names ...string) Vec[Str] {
	out := make([]Str, len(names))
	for i, name := range names {
		out[i] = NewStr(name)
	}
	return Vec[Str]{items: out}
}
