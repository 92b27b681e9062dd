// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package event implements the encoding of control messages sent from a host
// to a plugin through a framed ring buffer.
//
// A message comprises an address string, a type tag string, and a sequence of
// scalar arguments, one per tag character. The binary encoding is:
//
//	[address][NUL][tags][NUL][arg]...
//
// Each argument is encoded in the native byte order of the platform, with a
// width determined by its tag:
//
//	i  int32        4 bytes
//	h  int64        8 bytes
//	f  float32      4 bytes
//	d  float64      8 bytes
//	c  character    4 bytes (int32)
//	m  MIDI message 4 bytes
//	T  true         no data
//	F  false        no data
//	N  nil          no data
//	I  impulse      no data
//
// Any other tag is invalid, and a message containing one cannot be decoded.
//
// Use a [Writer] on the producer side of a ring buffer, and a [Reader] on the
// consumer side. The Reader decodes into a reusable [View] without allocating,
// so that it can be used on a real-time path.
package event

import (
	"fmt"
	"math"
	"strings"

	"github.com/creachadair/spa/packet"
)

// A Message is a decoded control message.
type Message struct {
	Address string // e.g., "/gain"
	Tags    string // one tag per argument, e.g., "f"
	Args    []Arg
}

// New constructs a message with the given address and arguments.
// The tag string is derived from the arguments.
func New(addr string, args ...Arg) Message {
	tags := make([]byte, len(args))
	for i, a := range args {
		tags[i] = a.Tag
	}
	return Message{Address: addr, Tags: string(tags), Args: args}
}

// String returns a human-friendly rendering of the message.
func (m Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s ,%s", m.Address, m.Tags)
	for _, a := range m.Args {
		sb.WriteByte(' ')
		sb.WriteString(a.String())
	}
	return sb.String()
}

// EncodedLen reports the size in bytes of the encoding of m, not including
// the frame header added by the ring buffer. It does not validate m.
func (m Message) EncodedLen() int {
	n := len(m.Address) + 1 + len(m.Tags) + 1
	for i := 0; i < len(m.Tags); i++ {
		n += max(argSize(m.Tags[i]), 0)
	}
	return n
}

// Encode encodes m in binary format.
func Encode(m Message) ([]byte, error) {
	var b packet.Builder
	b.Grow(m.EncodedLen())
	if err := encodeTo(&b, m); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// encodeTo appends the encoding of m to b. If m is invalid, b is restored to
// its original length and an error is reported.
func encodeTo(b *packet.Builder, m Message) (err error) {
	start := b.Len()
	defer func() {
		if err != nil {
			b.Truncate(start)
		}
	}()

	if m.Address == "" {
		return fmt.Errorf("empty address")
	} else if len(m.Args) != len(m.Tags) {
		return fmt.Errorf("message %q has %d tags but %d arguments", m.Address, len(m.Tags), len(m.Args))
	}
	if err := b.CString(m.Address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	if err := b.CString(m.Tags); err != nil {
		return fmt.Errorf("invalid tags: %w", err)
	}
	for i, a := range m.Args {
		if a.Tag != m.Tags[i] {
			return fmt.Errorf("argument %d has tag %q, want %q", i+1, a.Tag, m.Tags[i])
		}
		switch argSize(a.Tag) {
		case 0:
			// no data
		case 4:
			b.Uint32(uint32(a.bits))
		case 8:
			b.Uint64(a.bits)
		default:
			return &TagError{Tag: a.Tag, Index: i}
		}
	}
	return nil
}

// Decode decodes a complete message from data.
func Decode(data []byte) (Message, error) {
	var v View
	if err := v.decode(data); err != nil {
		return Message{}, err
	}
	return v.Message(), nil
}

// argSize reports the number of data bytes for an argument with the given
// tag, or -1 if the tag is not valid.
func argSize(tag byte) int {
	switch tag {
	case 'i', 'f', 'c', 'm':
		return 4
	case 'h', 'd':
		return 8
	case 'T', 'F', 'N', 'I':
		return 0
	default:
		return -1
	}
}

// An Arg is a single typed scalar argument of a message.
type Arg struct {
	Tag  byte // the type tag of the argument
	bits uint64
}

// Int32 returns an argument with tag 'i'.
func Int32(v int32) Arg { return Arg{Tag: 'i', bits: uint64(uint32(v))} }

// Int64 returns an argument with tag 'h'.
func Int64(v int64) Arg { return Arg{Tag: 'h', bits: uint64(v)} }

// Float32 returns an argument with tag 'f'.
func Float32(v float32) Arg { return Arg{Tag: 'f', bits: uint64(math.Float32bits(v))} }

// Float64 returns an argument with tag 'd'.
func Float64(v float64) Arg { return Arg{Tag: 'd', bits: math.Float64bits(v)} }

// Char returns an argument with tag 'c'.
func Char(r rune) Arg { return Arg{Tag: 'c', bits: uint64(uint32(r))} }

// MIDI returns an argument with tag 'm'. The bytes are port, status, data1,
// and data2 in that order.
func MIDI(m [4]byte) Arg {
	return Arg{Tag: 'm', bits: uint64(m[0]) | uint64(m[1])<<8 | uint64(m[2])<<16 | uint64(m[3])<<24}
}

// Bool returns an argument with tag 'T' or 'F' according to v.
func Bool(v bool) Arg {
	if v {
		return Arg{Tag: 'T'}
	}
	return Arg{Tag: 'F'}
}

// Nil returns an argument with tag 'N'.
func Nil() Arg { return Arg{Tag: 'N'} }

// Impulse returns an argument with tag 'I'.
func Impulse() Arg { return Arg{Tag: 'I'} }

// Int32 returns the value of an 'i' or 'c' argument, or 0.
func (a Arg) Int32() int32 {
	if a.Tag == 'i' || a.Tag == 'c' {
		return int32(uint32(a.bits))
	}
	return 0
}

// Int64 returns the value of an 'h' argument, or 0.
func (a Arg) Int64() int64 {
	if a.Tag == 'h' {
		return int64(a.bits)
	}
	return 0
}

// Float32 returns the value of an 'f' argument, or 0.
func (a Arg) Float32() float32 {
	if a.Tag == 'f' {
		return math.Float32frombits(uint32(a.bits))
	}
	return 0
}

// Float64 returns the value of a 'd' argument, or 0.
func (a Arg) Float64() float64 {
	if a.Tag == 'd' {
		return math.Float64frombits(a.bits)
	}
	return 0
}

// MIDI returns the value of an 'm' argument, or zeroes.
func (a Arg) MIDI() (m [4]byte) {
	if a.Tag == 'm' {
		m = [4]byte{byte(a.bits), byte(a.bits >> 8), byte(a.bits >> 16), byte(a.bits >> 24)}
	}
	return
}

// Bool reports whether a is a 'T' argument.
func (a Arg) Bool() bool { return a.Tag == 'T' }

// Number returns the numeric value of a as a float64, and reports whether a
// has a numeric tag.
func (a Arg) Number() (float64, bool) {
	switch a.Tag {
	case 'i', 'c':
		return float64(a.Int32()), true
	case 'h':
		return float64(a.Int64()), true
	case 'f':
		return float64(a.Float32()), true
	case 'd':
		return a.Float64(), true
	case 'T':
		return 1, true
	case 'F':
		return 0, true
	}
	return 0, false
}

// String returns a human-friendly rendering of the argument.
func (a Arg) String() string {
	switch a.Tag {
	case 'i':
		return fmt.Sprint(a.Int32())
	case 'h':
		return fmt.Sprintf("%dh", a.Int64())
	case 'f':
		return fmt.Sprint(a.Float32())
	case 'd':
		return fmt.Sprintf("%vd", a.Float64())
	case 'c':
		return fmt.Sprintf("%q", rune(a.Int32()))
	case 'm':
		return fmt.Sprintf("midi%v", a.MIDI())
	case 'T':
		return "true"
	case 'F':
		return "false"
	case 'N':
		return "nil"
	case 'I':
		return "impulse"
	default:
		return fmt.Sprintf("?%c", a.Tag)
	}
}

// TagError is reported when a message contains a type tag that has no
// defined encoding.
type TagError struct {
	Tag   byte // the offending tag
	Index int  // its offset in the tag string
}

// Error satisfies the error interface.
func (e *TagError) Error() string {
	return fmt.Sprintf("invalid type tag %q at offset %d", e.Tag, e.Index)
}

// TypeError is reported by a handler when a message does not have the type
// tags the handler expects.
type TypeError struct {
	Address string
	Want    string
	Got     string
}

// Error satisfies the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("message %q: got types %q, want %q", e.Address, e.Got, e.Want)
}
