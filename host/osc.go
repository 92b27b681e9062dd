// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

import (
	"fmt"
	"net"

	"github.com/creachadair/spa/event"
	"github.com/hypebeast/go-osc/osc"
)

// FromOSC converts an OSC message to an event. Arguments of type int32,
// int64, float32, float64, bool, and nil are supported; strings, blobs, and
// time tags have no event encoding and are reported as errors.
func FromOSC(m *osc.Message) (event.Message, error) {
	args := make([]event.Arg, len(m.Arguments))
	for i, a := range m.Arguments {
		switch v := a.(type) {
		case int32:
			args[i] = event.Int32(v)
		case int64:
			args[i] = event.Int64(v)
		case float32:
			args[i] = event.Float32(v)
		case float64:
			args[i] = event.Float64(v)
		case bool:
			args[i] = event.Bool(v)
		case nil:
			args[i] = event.Nil()
		default:
			return event.Message{}, fmt.Errorf("argument %d of %q: unsupported OSC type %T", i+1, m.Address, a)
		}
	}
	return event.New(m.Address, args...), nil
}

// OSCDispatcher returns an OSC dispatcher that forwards every message it
// receives to in. Messages inside bundles are forwarded in order; bundle time
// tags are ignored. Messages that cannot be converted or sent are logged and
// discarded.
func (in *Instance) OSCDispatcher() osc.Dispatcher { return oscDispatcher{in: in} }

type oscDispatcher struct{ in *Instance }

// Dispatch implements the osc.Dispatcher interface.
func (d oscDispatcher) Dispatch(p osc.Packet) {
	switch t := p.(type) {
	case *osc.Message:
		d.forward(t)
	case *osc.Bundle:
		for _, m := range t.Messages {
			d.forward(m)
		}
		for _, b := range t.Bundles {
			d.Dispatch(b)
		}
	}
}

func (d oscDispatcher) forward(m *osc.Message) {
	msg, err := FromOSC(m)
	if err != nil {
		d.in.log.Warn("discarding OSC message", "err", err)
		return
	}
	if _, err := d.in.Send(msg); err != nil {
		d.in.log.Warn("discarding OSC message", "address", m.Address, "err", err)
	}
}

// ServeOSC receives OSC packets from conn and forwards their messages to in,
// until conn is closed or reports an error.
func (in *Instance) ServeOSC(conn net.PacketConn) error {
	srv := &osc.Server{Dispatcher: in.OSCDispatcher()}
	return srv.Serve(conn)
}
