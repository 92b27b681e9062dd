// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package gain implements a stereo gain plugin.
//
// The plugin has four ports:
//
//   - in: stereo audio input
//   - out: stereo audio output
//   - buffersize: the number of samples per block
//   - osc: event input
//
// Each block, the plugin applies the current gain to every input sample and
// writes the result to the output. The gain starts at 1 and is set by the
// event "/gain" with a single numeric argument. Other events are counted and
// ignored.
package gain

import (
	"errors"
	"fmt"

	"github.com/creachadair/spa"
	"github.com/creachadair/spa/abi"
	"github.com/creachadair/spa/event"
)

// Label is the stable identifier of the plugin.
const Label = "spa-gain"

// EventCapacity is the capacity in bytes of the event input buffer.
const EventCapacity = 1024

// Entry is the entry point of the plugin library.
func Entry(index uint64) spa.Descriptor {
	if index != 0 {
		return nil
	}
	return descriptor{}
}

type descriptor struct{}

func (descriptor) APIVersion() spa.Version { return spa.APIVersion }

func (descriptor) Info() spa.Info {
	return spa.Info{
		Label:       Label,
		Name:        "Stereo gain",
		Project:     "spa",
		License:     "BSD-3-Clause",
		Description: "Multiplies a stereo signal by a controllable gain",
		Version:     [3]int{1, 0, 0},
		Properties:  spa.Properties{HardRTCapable: true},
	}
}

func (descriptor) PortNames() abi.Vec[abi.Str] {
	return abi.Names("in", "out", "buffersize", "osc")
}

func (descriptor) Instantiate() (spa.Plugin, error) { return New(), nil }
func (descriptor) Close() error                     { return nil }

// Plugin is an instance of the gain plugin.
type Plugin struct {
	in   *spa.StereoIn
	out  *spa.StereoOut
	size *spa.BufferSize
	osc  *spa.EventsIn

	mux     event.Mux
	gain    float32
	ignored int
}

// New constructs a new gain plugin with unbound ports.
func New() *Plugin {
	p := &Plugin{
		in:   spa.NewStereoIn("in"),
		out:  spa.NewStereoOut("out"),
		size: spa.NewBufferSize("buffersize"),
		osc:  spa.NewEventsIn("osc", EventCapacity),
		gain: 1,
	}
	p.mux.Handle("/gain", event.OnNumber(func(v float64) error {
		p.gain = float32(v)
		return nil
	}))
	return p
}

// Port implements part of the [spa.Plugin] interface.
func (p *Plugin) Port(name string) (spa.Port, error) {
	switch name {
	case "in":
		return p.in, nil
	case "out":
		return p.out, nil
	case "buffersize":
		return p.size, nil
	case "osc":
		return p.osc, nil
	}
	return nil, &spa.PortNotFoundError{Name: name}
}

// Init checks that the bound buffers can hold a block.
func (p *Plugin) Init() error {
	n := p.size.Value()
	if n <= 0 {
		return fmt.Errorf("invalid buffer size %d", n)
	}
	il, _ := p.in.Channels()
	ol, _ := p.out.Channels()
	if len(il) < n || len(ol) < n {
		return fmt.Errorf("buffers too small for %d samples", n)
	}
	return nil
}

func (p *Plugin) Activate() error   { return nil }
func (p *Plugin) Deactivate() error { return nil }
func (p *Plugin) Close() error      { return nil }

// Run applies pending events, then processes one block.
func (p *Plugin) Run() error {
	rd := p.osc.Reader()
	for {
		unhandled, err := p.mux.Drain(rd)
		p.ignored += unhandled
		if err == nil {
			break
		}
		var te *event.TypeError
		if !errors.As(err, &te) {
			return err
		}
		p.ignored++
	}

	n := p.size.Value()
	il, ir := p.in.Channels()
	ol, or := p.out.Channels()
	g := p.gain
	for i := range n {
		ol[i] = g * il[i]
		or[i] = g * ir[i]
	}
	return nil
}

// Gain reports the current gain.
func (p *Plugin) Gain() float32 { return p.gain }

// Ignored reports the number of events the plugin has ignored.
func (p *Plugin) Ignored() int { return p.ignored }
