// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/creachadair/spa"
	"github.com/creachadair/spa/event"
	"github.com/creachadair/spa/ring"
)

// A Bus is a pair of host-owned sample buffers bound to a stereo port.
type Bus struct {
	Name        string
	Direction   spa.Direction
	Left, Right []float32
}

// A control is a host-owned slot bound to a scalar port.
//
// The control role stores and loads the value through bits, which holds a
// float64 in IEEE 754 format. The processing role copies bits into the slot
// before each block (inputs) or out of it after each block (outputs), so the
// bound memory is touched only by the processing role.
type control struct {
	name string
	dir  spa.Direction
	typ  spa.ScalarType
	bits atomic.Uint64

	get func() float64
	set func(float64)
}

func (c *control) value() float64  { return math.Float64frombits(c.bits.Load()) }
func (c *control) store(v float64) { c.bits.Store(math.Float64bits(v)) }
func (c *control) copyIn()         { c.set(c.value()) }
func (c *control) copyOut()        { c.store(c.get()) }
func (c *control) isInput() bool   { return c.dir == spa.Input }

// newControl allocates a slot of the type of p and binds it to p.
func newControl(p spa.ScalarPort) (*control, error) {
	switch p.ScalarType() {
	case spa.Int8:
		return slotFor[int8](p)
	case spa.Int16:
		return slotFor[int16](p)
	case spa.Int32:
		return slotFor[int32](p)
	case spa.Int64:
		return slotFor[int64](p)
	case spa.Uint8:
		return slotFor[uint8](p)
	case spa.Uint16:
		return slotFor[uint16](p)
	case spa.Uint32:
		return slotFor[uint32](p)
	case spa.Uint64:
		return slotFor[uint64](p)
	case spa.Float32:
		return slotFor[float32](p)
	case spa.Float64:
		return slotFor[float64](p)
	default:
		return nil, fmt.Errorf("unsupported scalar type %v", p.ScalarType())
	}
}

func slotFor[T spa.Number](p spa.ScalarPort) (*control, error) {
	slot := new(T)
	if err := spa.BindScalar(p, slot); err != nil {
		return nil, err
	}
	return &control{
		name: p.Name(),
		dir:  p.Direction(),
		typ:  p.ScalarType(),
		get:  func() float64 { return float64(*slot) },
		set:  func(v float64) { *slot = clampTo[T](v) },
	}, nil
}

// clampTo converts v to T. For integer types, v is truncated toward zero and
// clamped to the range of T, and NaN converts to 0.
func clampTo[T spa.Number](v float64) T {
	var lo, hi T
	switch any(lo).(type) {
	case float32, float64:
		return T(v)
	case int8:
		lo, hi = limits[int8, T](math.MinInt8, math.MaxInt8)
	case int16:
		lo, hi = limits[int16, T](math.MinInt16, math.MaxInt16)
	case int32:
		lo, hi = limits[int32, T](math.MinInt32, math.MaxInt32)
	case int64:
		lo, hi = limits[int64, T](math.MinInt64, math.MaxInt64)
	case uint8:
		lo, hi = limits[uint8, T](0, math.MaxUint8)
	case uint16:
		lo, hi = limits[uint16, T](0, math.MaxUint16)
	case uint32:
		lo, hi = limits[uint32, T](0, math.MaxUint32)
	case uint64:
		lo, hi = limits[uint64, T](0, math.MaxUint64)
	}
	switch {
	case math.IsNaN(v):
		return 0
	case v <= float64(lo):
		return lo
	case v >= float64(hi):
		return hi
	}
	return T(v)
}

// limits converts the bounds lo and hi of S to T, where T is S.
func limits[S, T spa.Number](lo, hi S) (T, T) { return T(lo), T(hi) }

// outPort is the host end of an event output port.
type outPort struct {
	name string
	rd   *event.Reader
}

// binder is the host's implementation of the spa.Binder interface. Variants
// it does not handle fall through to the instance's bindUnknown method.
type binder struct {
	spa.BaseBinder
	in *Instance
}

var _ spa.EventsOutBinder = (*binder)(nil)

func newBinder(in *Instance) *binder {
	return &binder{BaseBinder: spa.BaseBinder{Default: in.bindUnknown}, in: in}
}

func (b *binder) BindScalarIn(p spa.ScalarPort) error  { return b.bindScalar(p) }
func (b *binder) BindScalarOut(p spa.ScalarPort) error { return b.bindScalar(p) }

func (b *binder) bindScalar(p spa.ScalarPort) error {
	c, err := newControl(p)
	if err != nil {
		return err
	}
	b.in.controls[c.name] = c
	if c.isInput() {
		b.in.inputs = append(b.in.inputs, c)
	} else {
		b.in.outputs = append(b.in.outputs, c)
	}
	return nil
}

func (b *binder) BindStereoIn(p *spa.StereoIn) error   { return b.bindBus(p.Name(), spa.Input, p.Connect) }
func (b *binder) BindStereoOut(p *spa.StereoOut) error { return b.bindBus(p.Name(), spa.Output, p.Connect) }

func (b *binder) bindBus(name string, dir spa.Direction, connect func(l, r []float32) error) error {
	n := b.in.cfg.blockSize()
	bus := &Bus{Name: name, Direction: dir, Left: make([]float32, n), Right: make([]float32, n)}
	if err := connect(bus.Left, bus.Right); err != nil {
		return err
	}
	b.in.buses = append(b.in.buses, bus)
	return nil
}

func (b *binder) BindBufferSize(p *spa.BufferSize) error {
	b.in.bufSize = b.in.cfg.blockSize()
	return p.Connect(&b.in.bufSize)
}

func (b *binder) BindEventsIn(p *spa.EventsIn) error {
	if b.in.events != nil {
		return spa.ErrDuplicateEventPort
	}
	w, err := p.Claim()
	if err != nil {
		return err
	}
	b.in.events = event.NewWriter(w)
	b.in.eventPort = p.Name()
	return nil
}

func (b *binder) BindEventsOut(p *spa.EventsOut) error {
	rb := ring.New(b.in.cfg.outEventCapacity())
	if err := p.Connect(rb.Writer()); err != nil {
		return err
	}
	b.in.outs = append(b.in.outs, &outPort{name: p.Name(), rd: event.NewReader(rb.Reader())})
	return nil
}
