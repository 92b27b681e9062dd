// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package spa

import (
	"fmt"

	"github.com/creachadair/spa/event"
	"github.com/creachadair/spa/ring"
)

// Direction is the direction of data flow through a port, as seen from the
// plugin.
type Direction byte

const (
	Input  Direction = 1 // data from host to plugin
	Output Direction = 2 // data from plugin to host
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return fmt.Sprintf("Direction(%d)", d)
}

// Kind identifies the variant of a port.
type Kind byte

const (
	KindUnknown Kind = iota
	KindScalarIn
	KindScalarOut
	KindStereoIn
	KindStereoOut
	KindBufferSize
	KindEventsIn
	KindEventsOut
)

var kindStr = [...]string{
	KindUnknown:    "unknown",
	KindScalarIn:   "scalar-in",
	KindScalarOut:  "scalar-out",
	KindStereoIn:   "stereo-in",
	KindStereoOut:  "stereo-out",
	KindBufferSize: "buffer-size",
	KindEventsIn:   "events-in",
	KindEventsOut:  "events-out",
}

func (k Kind) String() string {
	if int(k) < len(kindStr) {
		return kindStr[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// A Port is a named input or output of a plugin instance.
//
// The host discovers the variant of a port by calling Accept, which invokes
// the method of the Binder that corresponds to the variant. A port is bound
// at most once.
type Port interface {
	Name() string
	Direction() Direction
	Kind() Kind

	// Required reports whether negotiation fails if the port is not bound.
	Required() bool

	// Bound reports whether memory has been bound to the port.
	Bound() bool

	// Accept calls the method of b for the variant of the port, and returns
	// its result.
	Accept(b Binder) error
}

// portBase carries the fields common to all port implementations.
type portBase struct {
	name  string
	dir   Direction
	bound bool
}

func (p *portBase) Name() string         { return p.name }
func (p *portBase) Direction() Direction { return p.dir }
func (p *portBase) Bound() bool          { return p.bound }

// bind marks p as bound, or reports ErrAlreadyBound.
func (p *portBase) bind() error {
	if p.bound {
		return fmt.Errorf("port %q: %w", p.name, ErrAlreadyBound)
	}
	p.bound = true
	return nil
}

// Number is the constraint satisfied by the value types of scalar ports.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// ScalarType identifies the value type of a scalar port.
type ScalarType byte

const (
	Int8 ScalarType = iota + 1
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

var scalarStr = [...]string{"", "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64", "float32", "float64"}

func (s ScalarType) String() string {
	if s > 0 && int(s) < len(scalarStr) {
		return scalarStr[s]
	}
	return fmt.Sprintf("ScalarType(%d)", s)
}

// ScalarTypeOf returns the ScalarType corresponding to T.
func ScalarTypeOf[T Number]() ScalarType {
	var z T
	switch any(z).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

// A ScalarPort is a port carrying a single value of numeric type. Use
// [BindScalar] to bind host memory to a scalar port.
type ScalarPort interface {
	Port

	// ScalarType reports the value type of the port.
	ScalarType() ScalarType

	bindRef(ref any) error
}

// BindScalar binds ref to p. It reports an error if the type of ref does not
// match the value type of p, or if p is already bound.
func BindScalar[T Number](p ScalarPort, ref *T) error {
	if ref == nil {
		return fmt.Errorf("port %q: nil reference", p.Name())
	}
	return p.bindRef(ref)
}

// scalar is the shared implementation of scalar ports.
type scalar[T Number] struct {
	portBase
	ref *T
}

func (s *scalar[T]) Required() bool         { return true }
func (s *scalar[T]) ScalarType() ScalarType { return ScalarTypeOf[T]() }

func (s *scalar[T]) bindRef(ref any) error {
	r, ok := ref.(*T)
	if !ok {
		return fmt.Errorf("port %q: cannot bind %T to %v port", s.name, ref, s.ScalarType())
	}
	if err := s.bind(); err != nil {
		return err
	}
	s.ref = r
	return nil
}

// ScalarIn is a scalar port read by the plugin.
type ScalarIn[T Number] struct{ scalar[T] }

// NewScalarIn constructs an unbound scalar input port with the given name.
func NewScalarIn[T Number](name string) *ScalarIn[T] {
	return &ScalarIn[T]{scalar[T]{portBase: portBase{name: name, dir: Input}}}
}

func (p *ScalarIn[T]) Kind() Kind { return KindScalarIn }

// Accept implements the [Port] interface.
func (p *ScalarIn[T]) Accept(b Binder) error { return b.BindScalarIn(p) }

// Value returns the current value of the port, or zero if it is unbound.
func (p *ScalarIn[T]) Value() T {
	if p.ref == nil {
		var zero T
		return zero
	}
	return *p.ref
}

// ScalarOut is a scalar port written by the plugin.
type ScalarOut[T Number] struct{ scalar[T] }

// NewScalarOut constructs an unbound scalar output port with the given name.
func NewScalarOut[T Number](name string) *ScalarOut[T] {
	return &ScalarOut[T]{scalar[T]{portBase: portBase{name: name, dir: Output}}}
}

func (p *ScalarOut[T]) Kind() Kind { return KindScalarOut }

// Accept implements the [Port] interface.
func (p *ScalarOut[T]) Accept(b Binder) error { return b.BindScalarOut(p) }

// Set stores v to the port. It has no effect if the port is unbound.
func (p *ScalarOut[T]) Set(v T) {
	if p.ref != nil {
		*p.ref = v
	}
}

// stereo is the shared implementation of stereo audio ports.
type stereo struct {
	portBase
	left, right []float32
}

func (s *stereo) Required() bool { return true }

// Connect binds host sample buffers for the left and right channels. The
// buffers must have equal length, at least the negotiated buffer size.
func (s *stereo) Connect(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("port %q: channel lengths differ (%d, %d)", s.name, len(left), len(right))
	}
	if err := s.bind(); err != nil {
		return err
	}
	s.left, s.right = left, right
	return nil
}

// Channels returns the bound sample buffers, or nil if the port is unbound.
func (s *stereo) Channels() (left, right []float32) { return s.left, s.right }

// StereoIn is a two-channel audio input.
type StereoIn struct{ stereo }

// NewStereoIn constructs an unbound stereo input port with the given name.
func NewStereoIn(name string) *StereoIn {
	return &StereoIn{stereo{portBase: portBase{name: name, dir: Input}}}
}

func (p *StereoIn) Kind() Kind { return KindStereoIn }

// Accept implements the [Port] interface.
func (p *StereoIn) Accept(b Binder) error { return b.BindStereoIn(p) }

// StereoOut is a two-channel audio output.
type StereoOut struct{ stereo }

// NewStereoOut constructs an unbound stereo output port with the given name.
func NewStereoOut(name string) *StereoOut {
	return &StereoOut{stereo{portBase: portBase{name: name, dir: Output}}}
}

func (p *StereoOut) Kind() Kind { return KindStereoOut }

// Accept implements the [Port] interface.
func (p *StereoOut) Accept(b Binder) error { return b.BindStereoOut(p) }

// BufferSize is the port through which the host reports the number of
// samples processed by each call to Run.
type BufferSize struct {
	portBase
	ref *int
}

// NewBufferSize constructs an unbound buffer size port with the given name.
func NewBufferSize(name string) *BufferSize {
	return &BufferSize{portBase: portBase{name: name, dir: Input}}
}

func (p *BufferSize) Kind() Kind     { return KindBufferSize }
func (p *BufferSize) Required() bool { return true }

// Accept implements the [Port] interface.
func (p *BufferSize) Accept(b Binder) error { return b.BindBufferSize(p) }

// Connect binds ref as the buffer size.
func (p *BufferSize) Connect(ref *int) error {
	if ref == nil {
		return fmt.Errorf("port %q: nil reference", p.name)
	} else if err := p.bind(); err != nil {
		return err
	}
	p.ref = ref
	return nil
}

// Value returns the current buffer size, or 0 if the port is unbound.
func (p *BufferSize) Value() int {
	if p.ref == nil {
		return 0
	}
	return *p.ref
}

// EventsIn is an event input port. The port owns a ring buffer: the host
// claims the writing end, and the plugin reads messages from the other.
type EventsIn struct {
	portBase
	buf *ring.Buffer
	rd  *event.Reader
}

// NewEventsIn constructs an event input port with a ring buffer of the given
// capacity in bytes. It panics if capacity <= 0.
func NewEventsIn(name string, capacity int) *EventsIn {
	buf := ring.New(capacity)
	return &EventsIn{
		portBase: portBase{name: name, dir: Input},
		buf:      buf,
		rd:       event.NewReader(buf.Reader()),
	}
}

func (p *EventsIn) Kind() Kind     { return KindEventsIn }
func (p *EventsIn) Required() bool { return true }

// Accept implements the [Port] interface.
func (p *EventsIn) Accept(b Binder) error { return b.BindEventsIn(p) }

// Cap reports the capacity of the ring buffer in bytes.
func (p *EventsIn) Cap() int { return p.buf.Cap() }

// Claim returns the writing end of the ring buffer. Only one caller may claim
// the port; subsequent calls report ErrAlreadyBound.
func (p *EventsIn) Claim() (*ring.Writer, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	return p.buf.Writer(), nil
}

// Reader returns the reader for messages arriving on the port. It is intended
// for use by the plugin within Run.
func (p *EventsIn) Reader() *event.Reader { return p.rd }

// EventsOut is an event output port. The host connects the writing end of a
// ring buffer it owns, and drains the reading end after each call to Run.
type EventsOut struct {
	portBase
	w *event.Writer
}

// NewEventsOut constructs an unbound event output port with the given name.
func NewEventsOut(name string) *EventsOut {
	return &EventsOut{portBase: portBase{name: name, dir: Output}}
}

func (p *EventsOut) Kind() Kind { return KindEventsOut }

// Required reports false: a host that does not understand event outputs may
// leave the port unbound.
func (p *EventsOut) Required() bool { return false }

// Accept implements the [Port] interface. If b does not implement
// [EventsOutBinder], the port is passed to b.BindUnknown.
func (p *EventsOut) Accept(b Binder) error {
	if eb, ok := b.(EventsOutBinder); ok {
		return eb.BindEventsOut(p)
	}
	return b.BindUnknown(p)
}

// Connect binds w as the destination for messages sent by the plugin.
func (p *EventsOut) Connect(w *ring.Writer) error {
	if w == nil {
		return fmt.Errorf("port %q: nil writer", p.name)
	} else if err := p.bind(); err != nil {
		return err
	}
	p.w = event.NewWriter(w)
	return nil
}

// Send writes m to the port. It reports false if the port is unbound, the
// buffer is full, or m is not a valid message.
func (p *EventsOut) Send(m event.Message) bool {
	if p.w == nil {
		return false
	}
	ok, err := p.w.Write(m)
	return ok && err == nil
}

// Opaque is a port whose variant the host is not expected to understand.
// Hosts bind it to a discard location with Connect.
type Opaque struct {
	portBase
	data []byte
}

// NewOpaque constructs an unbound opaque port with the given name and
// direction.
func NewOpaque(name string, dir Direction) *Opaque {
	return &Opaque{portBase: portBase{name: name, dir: dir}}
}

func (p *Opaque) Kind() Kind     { return KindUnknown }
func (p *Opaque) Required() bool { return false }

// Accept implements the [Port] interface.
func (p *Opaque) Accept(b Binder) error { return b.BindUnknown(p) }

// Connect binds data to the port.
func (p *Opaque) Connect(data []byte) error {
	if err := p.bind(); err != nil {
		return err
	}
	p.data = data
	return nil
}

// Data returns the bound data, or nil if the port is unbound.
func (p *Opaque) Data() []byte { return p.data }
