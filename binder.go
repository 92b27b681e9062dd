// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package spa

// A Binder receives ports from their Accept methods, one method per variant.
// The host implements a Binder to bind its memory to the ports of a plugin.
//
// A Binder method that reports an error fails negotiation for the port.
type Binder interface {
	BindScalarIn(ScalarPort) error
	BindScalarOut(ScalarPort) error
	BindStereoIn(*StereoIn) error
	BindStereoOut(*StereoOut) error
	BindBufferSize(*BufferSize) error
	BindEventsIn(*EventsIn) error

	// BindUnknown is called for a port whose variant the Binder does not
	// handle, including variants added after the Binder was written.
	BindUnknown(Port) error
}

// EventsOutBinder is an optional extension of a [Binder] that accepts event
// output ports. If a Binder does not implement this interface, event output
// ports are passed to its BindUnknown method.
type EventsOutBinder interface {
	BindEventsOut(*EventsOut) error
}

// BaseBinder is a [Binder] that routes every variant to its Default function.
// A nil Default accepts every port without binding it.
//
// BaseBinder is meant to be embedded by binders that handle only some of the
// variants. It does not implement [EventsOutBinder].
type BaseBinder struct {
	Default func(Port) error
}

func (b BaseBinder) dflt(p Port) error {
	if b.Default == nil {
		return nil
	}
	return b.Default(p)
}

func (b BaseBinder) BindScalarIn(p ScalarPort) error    { return b.dflt(p) }
func (b BaseBinder) BindScalarOut(p ScalarPort) error   { return b.dflt(p) }
func (b BaseBinder) BindStereoIn(p *StereoIn) error     { return b.dflt(p) }
func (b BaseBinder) BindStereoOut(p *StereoOut) error   { return b.dflt(p) }
func (b BaseBinder) BindBufferSize(p *BufferSize) error { return b.dflt(p) }
func (b BaseBinder) BindEventsIn(p *EventsIn) error     { return b.dflt(p) }
func (b BaseBinder) BindUnknown(p Port) error           { return b.dflt(p) }
