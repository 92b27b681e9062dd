// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package event

import (
	"fmt"
	"math"
	"strconv"

	"github.com/creachadair/mds/value"
	"github.com/creachadair/spa/abi"
	"github.com/creachadair/spa/packet"
	"github.com/creachadair/spa/ring"
)

// A View is a decoded message whose contents alias a buffer owned by the
// decoder. A View is valid only until the next call to the method that
// produced it.
type View struct {
	path []byte
	tags []byte
	args []Arg
	sc   packet.Scanner
}

// Path returns the address of the message. The caller must not modify or
// retain the returned slice.
func (v *View) Path() []byte { return v.path }

// Is reports whether the address of the message is path.
func (v *View) Is(path string) bool { return string(v.path) == path }

// Tags returns the type tags of the message. The caller must not modify or
// retain the returned slice.
func (v *View) Tags() []byte { return v.tags }

// Expect reports a *TypeError if the type tags of v are not exactly tags.
func (v *View) Expect(tags string) error {
	if string(v.tags) != tags {
		return &TypeError{Address: string(v.path), Want: tags, Got: string(v.tags)}
	}
	return nil
}

// Len reports the number of arguments of the message.
func (v *View) Len() int { return len(v.args) }

// Arg returns the argument at index i, or an *abi.OutOfRangeError.
func (v *View) Arg(i int) (Arg, error) {
	if err := abi.CheckIndex(i, len(v.args)); err != nil {
		return Arg{}, err
	}
	return v.args[i], nil
}

// Message returns a copy of the contents of v that does not alias the
// decoder's buffers.
func (v *View) Message() Message {
	return Message{
		Address: string(v.path),
		Tags:    string(v.tags),
		Args:    append([]Arg(nil), v.args...),
	}
}

// decode parses a complete message from data into v, reusing the storage
// of v.args.
func (v *View) decode(data []byte) error {
	v.sc.Reset(data)
	v.args = v.args[:0]

	path, err := v.sc.CString()
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	} else if len(path) == 0 {
		return fmt.Errorf("empty address")
	}
	tags, err := v.sc.CString()
	if err != nil {
		return fmt.Errorf("invalid type tags: %w", err)
	}
	v.path, v.tags = path, tags

	for i, tag := range tags {
		var bits uint64
		switch argSize(tag) {
		case 0:
			// no data
		case 4:
			w, err := v.sc.Uint32()
			if err != nil {
				return fmt.Errorf("argument %d: %w", i+1, err)
			}
			bits = uint64(w)
		case 8:
			bits, err = v.sc.Uint64()
			if err != nil {
				return fmt.Errorf("argument %d: %w", i+1, err)
			}
		default:
			return &TagError{Tag: tag, Index: i}
		}
		v.args = append(v.args, Arg{Tag: tag, bits: bits})
	}
	if n := v.sc.Len(); n != 0 {
		return fmt.Errorf("extra data at offset %d (%d bytes)", v.sc.Offset(), n)
	}
	return nil
}

// A Reader decodes messages from the reading end of a ring buffer.
//
// Once constructed, a Reader does not allocate while decoding messages with
// at most DefaultMaxArgs arguments, so it is safe to use on a real-time path.
type Reader struct {
	r    *ring.Reader
	buf  []byte
	view View
}

// DefaultMaxArgs is the number of arguments a Reader can decode without
// allocating.
const DefaultMaxArgs = 16

// NewReader constructs a Reader that consumes messages from r.
func NewReader(r *ring.Reader) *Reader {
	return &Reader{
		r:    r,
		buf:  make([]byte, 0, r.Cap()),
		view: View{args: make([]Arg, 0, DefaultMaxArgs)},
	}
}

// Next decodes the next available message. If no message is available, it
// returns (nil, false, nil). The returned view is valid until the next call
// to Next.
//
// An error from the ring buffer or from decoding is fatal: the buffer does not
// contain a message the producer could have written.
func (r *Reader) Next() (*View, bool, error) {
	data, ok, err := r.r.ReadFramed(r.buf)
	if err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}
	r.buf = data
	if err := r.view.decode(data); err != nil {
		return nil, false, fmt.Errorf("decode event: %w", err)
	}
	return &r.view, true, nil
}

// DecodeNext consumes and decodes the next message from r. It reports false
// if no message is available. Unlike a [Reader], DecodeNext allocates the
// message it returns.
func DecodeNext(r *ring.Reader) (Message, bool, error) {
	data, ok, err := r.ReadFramed(nil)
	if err != nil || !ok {
		return Message{}, false, err
	}
	m, err := Decode(data)
	if err != nil {
		return Message{}, false, fmt.Errorf("decode event: %w", err)
	}
	return m, true, nil
}

// A Writer encodes messages to the writing end of a ring buffer.
// A Writer is not safe for concurrent use by multiple goroutines.
type Writer struct {
	w *ring.Writer
	b packet.Builder
}

// NewWriter constructs a Writer that sends messages to w.
func NewWriter(w *ring.Writer) *Writer { return &Writer{w: w} }

// Write encodes m and writes it as a single frame. It reports false without
// error if the buffer does not have space for the message; the message is
// dropped and the caller decides whether to report it. An error means m is
// not a valid message.
func (w *Writer) Write(m Message) (bool, error) {
	w.b.Reset()
	if err := encodeTo(&w.b, m); err != nil {
		return false, err
	}
	return w.w.WriteFramed(w.b.Bytes()), nil
}

// Send constructs a message from addr, the given type tags, and the argument
// values, and writes it. Tags T, F, N, and I do not consume an argument
// value. Numeric values are converted to the width required by their tag.
func (w *Writer) Send(addr, tags string, vals ...any) (bool, error) {
	m, err := Build(addr, tags, vals...)
	if err != nil {
		return false, err
	}
	return w.Write(m)
}

// Build constructs a message from addr, the given type tags, and the
// argument values, following the conventions of [Writer.Send].
func Build(addr, tags string, vals ...any) (Message, error) {
	m := Message{Address: addr, Tags: tags, Args: make([]Arg, 0, len(tags))}
	for i := 0; i < len(tags); i++ {
		tag := tags[i]
		switch tag {
		case 'T', 'F', 'N', 'I':
			m.Args = append(m.Args, Arg{Tag: tag})
			continue
		}
		if len(vals) == 0 {
			return Message{}, fmt.Errorf("missing value for tag %q", tag)
		}
		a, err := argFor(tag, vals[0])
		if err != nil {
			return Message{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		m.Args = append(m.Args, a)
		vals = vals[1:]
	}
	if len(vals) != 0 {
		return Message{}, fmt.Errorf("extra values: %v", vals)
	}
	return m, nil
}

// Parse constructs a message from addr, the given type tags, and argument
// values written as strings, following the conventions of [Writer.Send].
func Parse(addr, tags string, vals []string) (Message, error) {
	args := make([]any, 0, len(vals))
	j := 0
	for i := 0; i < len(tags); i++ {
		if argSize(tags[i]) == 0 {
			continue
		} else if j >= len(vals) {
			return Message{}, fmt.Errorf("missing value for tag %q", tags[i])
		}
		s := vals[j]
		j++
		switch tags[i] {
		case 'i', 'h':
			v, err := strconv.ParseInt(s, 0, value.Cond(tags[i] == 'i', 32, 64))
			if err != nil {
				return Message{}, fmt.Errorf("invalid integer %q: %w", s, err)
			}
			args = append(args, v)
		case 'f', 'd':
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Message{}, fmt.Errorf("invalid number %q: %w", s, err)
			}
			args = append(args, v)
		case 'c':
			r := []rune(s)
			if len(r) != 1 {
				return Message{}, fmt.Errorf("invalid character %q", s)
			}
			args = append(args, r[0])
		case 'm':
			v, err := strconv.ParseUint(s, 0, 32)
			if err != nil {
				return Message{}, fmt.Errorf("invalid MIDI word %q: %w", s, err)
			}
			args = append(args, [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
		default:
			return Message{}, &TagError{Tag: tags[i], Index: i}
		}
	}
	if j != len(vals) {
		return Message{}, fmt.Errorf("extra values: %q", vals[j:])
	}
	return Build(addr, tags, args...)
}

// argFor converts v to an argument with the given tag.
func argFor(tag byte, v any) (Arg, error) {
	switch tag {
	case 'i':
		n, err := asInt32(tag, v)
		if err != nil {
			return Arg{}, err
		}
		return Int32(n), nil
	case 'h':
		n, ok := asInt(v)
		if !ok {
			return Arg{}, fmt.Errorf("cannot use %T for tag 'h'", v)
		}
		return Int64(n), nil
	case 'c':
		n, err := asInt32(tag, v)
		if err != nil {
			return Arg{}, err
		}
		return Char(n), nil
	case 'f':
		f, ok := asFloat(v)
		if !ok {
			return Arg{}, fmt.Errorf("cannot use %T for tag 'f'", v)
		}
		return Float32(float32(f)), nil
	case 'd':
		f, ok := asFloat(v)
		if !ok {
			return Arg{}, fmt.Errorf("cannot use %T for tag 'd'", v)
		}
		return Float64(f), nil
	case 'm':
		m, ok := v.([4]byte)
		if !ok {
			return Arg{}, fmt.Errorf("cannot use %T for tag 'm'", v)
		}
		return MIDI(m), nil
	default:
		return Arg{}, &TagError{Tag: tag}
	}
}

// asInt32 converts v to an int32 for the given tag, reporting an error if v
// is not an integer or is out of range.
func asInt32(tag byte, v any) (int32, error) {
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Errorf("cannot use %T for tag '%c'", v, tag)
	} else if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of range for tag '%c'", n, tag)
	}
	return int32(n), nil
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	if n, ok := asInt(v); ok {
		return float64(n), true
	}
	return 0, false
}
