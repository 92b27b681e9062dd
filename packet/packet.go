// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package packet provides support for encoding and decoding binary message
// data exchanged between a host and a plugin in the same process.
//
// Multi-byte scalar values are encoded in the native byte order of the
// platform, since both sides of the boundary run on the same machine. Strings
// are encoded C style, as their bytes followed by a single NUL terminator.
package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// A Builder is a buffer that accumulates data into a packet. The zero value is
// ready for use as an empty builder.
type Builder struct {
	buf []byte
}

// CString appends s followed by a NUL terminator to b.
// It reports an error without modifying b if s contains a NUL byte.
func (b *Builder) CString(s string) error {
	if i := indexNUL(s); i >= 0 {
		return fmt.Errorf("string contains NUL at offset %d", i)
	}
	b.buf = append(append(b.buf, s...), 0)
	return nil
}

// Uint32 appends v to b in native byte order.
func (b *Builder) Uint32(v uint32) { b.buf = binary.NativeEndian.AppendUint32(b.buf, v) }

// Uint64 appends v to b in native byte order.
func (b *Builder) Uint64(v uint64) { b.buf = binary.NativeEndian.AppendUint64(b.buf, v) }

// Len reports the number of bytes currently in the buffer.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes reports the current contents of the buffer. The builder retains ownership
// of the reported slice, and the caller must not retain or modify its contents
// unless b will no longer be accessed.
func (b *Builder) Bytes() []byte { return b.buf }

// Reset discards the contents of b and leaves it empty.
func (b *Builder) Reset() { b.buf = b.buf[:0] }

// Truncate discards all but the first n bytes of b.
// It panics if n < 0 or n > b.Len().
func (b *Builder) Truncate(n int) { b.buf = b.buf[:n] }

// Grow resizes the internal buffer of b if necessary to ensure that at least n
// more bytes can be added without triggering another allocation.
func (b *Builder) Grow(n int) {
	want := len(b.buf) + n
	if cap(b.buf) < want {
		r := make([]byte, len(b.buf), max(want, 2*cap(b.buf)))
		copy(r, b.buf)
		b.buf = r
	}
}

// A Scanner reads encoded values from the contents of a packet.
// The methods of a scanner return [io.EOF] when no further input is available.
// Incomplete values report [io.ErrUnexpectedEOF].
type Scanner struct {
	rest   []byte
	offset int // of rest from the start of the input
}

// NewScanner constructs a [Scanner] that consumes data from input.
// The scanner does not modify the contents of input, but retain slices
// into it, so the caller should ensure it is not modified while the scanner
// is in use.
func NewScanner[Str ~string | ~[]byte](input Str) *Scanner {
	return &Scanner{rest: []byte(input)}
}

// Reset discards the state of s and starts scanning input from the beginning.
// Unlike [NewScanner], Reset does not allocate.
func (s *Scanner) Reset(input []byte) {
	s.rest, s.offset = input, 0
}

// CString scans a NUL-terminated string from the head of the input and
// returns its contents without the terminator. The result aliases the input,
// and the caller must not modify its contents.
func (s *Scanner) CString() ([]byte, error) {
	if len(s.rest) == 0 {
		return nil, io.EOF
	}
	i := bytes.IndexByte(s.rest, 0)
	if i < 0 {
		return nil, fmt.Errorf("unterminated string (%d bytes): %w", len(s.rest), io.ErrUnexpectedEOF)
	}
	out := s.rest[:i]
	s.offset += i + 1
	s.rest = s.rest[i+1:]
	return out, nil
}

// Uint32 parses a native-endian uint32 value from the head of the input.
func (s *Scanner) Uint32() (uint32, error) {
	if len(s.rest) < 4 {
		return 0, fmt.Errorf("value truncated (%d < 4 bytes): %w", len(s.rest), io.ErrUnexpectedEOF)
	}
	s.offset += 4
	out := binary.NativeEndian.Uint32(s.rest[:4])
	s.rest = s.rest[4:]
	return out, nil
}

// Uint64 parses a native-endian uint64 value from the head of the input.
func (s *Scanner) Uint64() (uint64, error) {
	if len(s.rest) < 8 {
		return 0, fmt.Errorf("value truncated (%d < 8 bytes): %w", len(s.rest), io.ErrUnexpectedEOF)
	}
	s.offset += 8
	out := binary.NativeEndian.Uint64(s.rest[:8])
	s.rest = s.rest[8:]
	return out, nil
}

// Len reports the number of remaining unconsumed input bytes in s.
func (s *Scanner) Len() int { return len(s.rest) }

// Offset reports the offset (0-based) of the next unconsumed input byte in s.
func (s *Scanner) Offset() int { return s.offset }

func indexNUL(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return -1
}
