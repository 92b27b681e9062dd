// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package host implements the host side of a plugin instance.
//
// An [Instance] drives a single plugin through its lifecycle:
//
//	in, err := host.Open("gain.so", host.Config{BlockSize: 256})
//	if err != nil {
//	   log.Fatalf("Load failed: %v", err)
//	}
//	defer in.Close()
//	if err := in.Prepare(); err != nil { // negotiate, allocate, activate
//	   log.Fatalf("Prepare failed: %v", err)
//	}
//
// The processing role calls [Instance.Run] once per block, directly or by a
// goroutine managed with [Instance.Start]. Other goroutines, the control
// role, send events with [Instance.Send] and update scalar controls with
// [Instance.SetControl].
//
// # Metrics
//
// Instances maintain a collection of metrics while running. Use the
// [Instance.Metrics] method to obtain an [expvar.Map] containing the metrics.
// Metrics are shared globally among all instances.
//
//   - blocks_run: counter of blocks processed
//   - run_failed: counter of blocks that reported an error
//   - events_sent: counter of events written to event input ports
//   - events_dropped: counter of events discarded because the buffer was full
//   - events_out: counter of events read from event output ports
//   - load_failed: counter of libraries that failed to load
//   - negotiation_failed: counter of failed port negotiations
//   - instances_active: gauge of instances loaded and not yet closed
package host

import (
	"errors"
	"expvar"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/spa"
	"github.com/creachadair/spa/event"
	"github.com/creachadair/spa/loader"
	"github.com/creachadair/taskgroup"
)

// An EventLogger logs an event exchanged with the plugin.
type EventLogger func(EventInfo)

// EventInfo describes an event exchanged with the plugin.
type EventInfo struct {
	Port    string        // the name of the event port
	Message event.Message // the event
	Sent    bool          // whether the host sent (true) or received (false) the event
	Dropped bool          // whether the event was dropped because the buffer was full
}

func (e EventInfo) String() string {
	dir := "recv"
	if e.Sent {
		dir = "send"
	}
	if e.Dropped {
		dir = "drop"
	}
	return fmt.Sprintf("%s %s %v", dir, e.Port, e.Message)
}

// PortInfo describes a negotiated port.
type PortInfo struct {
	Name      string
	Kind      spa.Kind
	Direction spa.Direction
	Required  bool
	Bound     bool
}

// An Instance is a single plugin instance under the control of the host.
//
// The lifecycle methods (Negotiate, Allocate, Activate, Deactivate, Close)
// must be called from one goroutine. Run must be called from one goroutine
// at a time. Send, SetControl, Control, and State are safe for concurrent
// use with each other and with Run.
type Instance struct {
	cfg   Config
	log   Logger
	state atomic.Int32

	lib  *loader.Library
	desc spa.Descriptor
	plug spa.Plugin
	info spa.Info

	// Negotiated resources, written only during Negotiate.
	ports     []PortInfo
	bufSize   int
	buses     []*Bus
	controls  map[string]*control
	inputs    []*control
	outputs   []*control
	events    *event.Writer // host end of the event input port, or nil
	eventPort string
	outs      []*outPort
	discard   []byte
	mux       event.Mux

	evμ sync.Mutex // serializes Send

	μ      sync.Mutex
	tasks  *taskgroup.Group
	stop   chan struct{}
	err    error // processing error
	onExit func(error)
	elog   atomic.Pointer[EventLogger]
}

// Open opens the plugin library at path and loads its plugin.
// A path of the form "builtin:name" opens a library registered with
// [loader.Register].
func Open(path string, cfg Config) (*Instance, error) {
	lib, err := loader.Open(path)
	if err != nil {
		metrics.loadFailed.Add(1)
		cfg.logger().Error("open failed", "path", path, "err", err)
		return nil, &LoadError{Path: path, Err: err}
	}
	return Load(lib, cfg)
}

// Load resolves the descriptor of lib and instantiates its plugin. On success
// the instance is in the Loaded state and owns lib. On failure lib is closed.
func Load(lib *loader.Library, cfg Config) (*Instance, error) {
	log := cfg.logger()
	fail := func(err error) (*Instance, error) {
		metrics.loadFailed.Add(1)
		lib.Close()
		log.Error("load failed", "path", lib.Path(), "err", err)
		return nil, &LoadError{Path: lib.Path(), Err: err}
	}

	desc, err := lib.Descriptor(0)
	if err != nil {
		return fail(err)
	}
	if v := desc.APIVersion(); !spa.APIVersion.Supports(v) {
		desc.Close()
		return fail(&spa.VersionError{Host: spa.APIVersion, Plugin: v})
	}
	plug, err := desc.Instantiate()
	if err == nil && plug == nil {
		err = errors.New("descriptor returned no plugin")
	}
	if err != nil {
		desc.Close()
		return fail(fmt.Errorf("instantiate: %w", err))
	}

	in := &Instance{
		cfg:      cfg,
		log:      log,
		lib:      lib,
		desc:     desc,
		plug:     plug,
		info:     desc.Info(),
		controls: make(map[string]*control),
	}
	in.state.Store(int32(spa.Loaded))
	metrics.instanceActive.Add(1)
	log.Info("loaded plugin", "path", lib.Path(), "label", in.info.Label, "name", in.info.Name)
	return in, nil
}

// State reports the current lifecycle state of the instance.
func (in *Instance) State() spa.State { return spa.State(in.state.Load()) }

func (in *Instance) setState(s spa.State) { in.state.Store(int32(s)) }

// Info returns the metadata of the plugin.
func (in *Instance) Info() spa.Info { return in.info }

// Metrics returns a metrics map for the instance. It is safe for the caller to
// add additional metrics to the map.
func (in *Instance) Metrics() *expvar.Map { return metrics.emap }

// require reports a *spa.StateError if the state of in is not one of want.
// The error holds a copy of want, so callers do not allocate on success.
func (in *Instance) require(op string, want ...spa.State) error {
	if s := in.State(); !slices.Contains(want, s) {
		return &spa.StateError{Op: op, State: s, Want: slices.Clone(want)}
	}
	return nil
}

// Prepare negotiates, allocates, and activates the instance.
func (in *Instance) Prepare() error {
	if err := in.Negotiate(); err != nil {
		return err
	} else if err := in.Allocate(); err != nil {
		return err
	}
	return in.Activate()
}

// Negotiate binds host memory to every port reported by the descriptor. If
// negotiation fails, the instance is unloaded and the error has concrete type
// *NegotiationError.
func (in *Instance) Negotiate() (err error) {
	if err := in.require("negotiate", spa.Loaded); err != nil {
		return err
	}
	in.setState(spa.Negotiating)
	defer func() {
		if err != nil {
			metrics.negotiateFail.Add(1)
			in.log.Error("negotiation failed", "label", in.info.Label, "err", err)
			in.release()
		}
	}()
	fail := func(port, stage string, err error) error {
		return &NegotiationError{Plugin: in.info.Label, Port: port, Stage: stage, Err: err}
	}

	b := newBinder(in)
	seen := mapset.New[string]()
	for _, s := range in.desc.PortNames().All() {
		name := s.String()
		if seen.Has(name) {
			return fail(name, "enumerate", errors.New("duplicate port name"))
		}
		seen.Add(name)

		p, err := in.plug.Port(name)
		if err != nil {
			return fail(name, "lookup", err)
		}
		if err := p.Accept(b); err != nil {
			return fail(name, "bind", err)
		}
		if p.Required() && !p.Bound() {
			return fail(name, "verify", spa.ErrUnbound)
		}
		in.ports = append(in.ports, PortInfo{
			Name:      name,
			Kind:      p.Kind(),
			Direction: p.Direction(),
			Required:  p.Required(),
			Bound:     p.Bound(),
		})
		in.log.Debug("bound port", "name", name, "kind", p.Kind(), "bound", p.Bound())
	}
	return nil
}

// bindUnknown handles ports whose variant the host binder does not know.
func (in *Instance) bindUnknown(p spa.Port) error {
	if op, ok := p.(*spa.Opaque); ok {
		if in.discard == nil {
			in.discard = make([]byte, 64)
		}
		return op.Connect(in.discard)
	}
	if p.Required() {
		return fmt.Errorf("unsupported %v port", p.Kind())
	}
	in.log.Warn("ignoring unsupported port", "name", p.Name(), "kind", p.Kind())
	return nil
}

// Allocate performs the one-time allocation step of the plugin. It requires a
// completed negotiation.
func (in *Instance) Allocate() error {
	if err := in.require("allocate", spa.Negotiating); err != nil {
		return err
	}
	if err := in.plug.Init(); err != nil {
		return fmt.Errorf("init %s: %w", in.info.Label, err)
	}
	in.setState(spa.Allocated)
	return nil
}

// Activate activates the plugin so that it can run. An instance that has been
// deactivated may be activated again.
func (in *Instance) Activate() error {
	if err := in.require("activate", spa.Allocated, spa.Deactivated); err != nil {
		return err
	}
	if err := in.plug.Activate(); err != nil {
		return fmt.Errorf("activate %s: %w", in.info.Label, err)
	}
	in.setState(spa.Active)
	return nil
}

// Run processes one block. It copies input controls into their slots, calls
// the plugin, publishes output controls, and dispatches any events the plugin
// sent. An error from Run is fatal to the instance.
func (in *Instance) Run() error {
	if s := in.State(); s != spa.Active && s != spa.Running {
		return &spa.StateError{Op: "run", State: s, Want: []spa.State{spa.Active, spa.Running}}
	}
	in.setState(spa.Running)
	for _, c := range in.inputs {
		c.copyIn()
	}
	if err := in.plug.Run(); err != nil {
		metrics.runFailed.Add(1)
		return fmt.Errorf("run %s: %w", in.info.Label, err)
	}
	for _, c := range in.outputs {
		c.copyOut()
	}
	for _, o := range in.outs {
		if err := in.drain(o); err != nil {
			metrics.runFailed.Add(1)
			return fmt.Errorf("port %q: %w", o.name, err)
		}
	}
	metrics.blocksRun.Add(1)
	return nil
}

// drain dispatches all events pending on o.
func (in *Instance) drain(o *outPort) error {
	for {
		v, ok, err := o.rd.Next()
		if err != nil {
			return err
		} else if !ok {
			return nil
		}
		metrics.eventsOut.Add(1)
		if elog := in.elog.Load(); elog != nil {
			(*elog)(EventInfo{Port: o.name, Message: v.Message()})
		}
		if _, err := in.mux.Dispatch(v); err != nil {
			return err
		}
	}
}

// Deactivate stops processing. If the instance was started, Deactivate stops
// it first, and reports the error that stopped processing, if any.
func (in *Instance) Deactivate() error {
	if err := in.require("deactivate", spa.Active, spa.Running); err != nil {
		return err
	}
	serr := in.Stop()
	if err := in.plug.Deactivate(); err != nil {
		return errors.Join(serr, fmt.Errorf("deactivate %s: %w", in.info.Label, err))
	}
	in.setState(spa.Deactivated)
	return serr
}

// Close deactivates the plugin if necessary, and then closes the plugin, the
// descriptor, and the library, in that order. Close is valid in any state.
// After Close the instance is Unloaded.
func (in *Instance) Close() error {
	var errs []error
	switch in.State() {
	case spa.Unloaded:
		return nil
	case spa.Active, spa.Running:
		errs = append(errs, in.Deactivate())
	}
	errs = append(errs, in.release())
	return errors.Join(errs...)
}

// release closes the plugin, the descriptor, and the library, and moves the
// instance to the Unloaded state.
func (in *Instance) release() error {
	errs := []error{in.plug.Close(), in.desc.Close(), in.lib.Close()}
	in.setState(spa.Unloaded)
	metrics.instanceActive.Add(-1)
	in.log.Info("unloaded plugin", "label", in.info.Label)
	return errors.Join(errs...)
}

// Ports returns descriptions of the negotiated ports, in negotiation order.
func (in *Instance) Ports() []PortInfo { return slices.Clone(in.ports) }

// BlockSize reports the number of samples processed per block.
func (in *Instance) BlockSize() int { return in.cfg.blockSize() }

// SampleRate reports the configured sample rate.
func (in *Instance) SampleRate() int { return in.cfg.sampleRate() }

// Bus returns the buffers bound to the stereo port with the given name, or
// nil if there is no such port. The processing role fills input buses before
// calling Run and reads output buses after it returns.
func (in *Instance) Bus(name string) *Bus {
	for _, b := range in.buses {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Buses returns the buffers bound to each stereo port of the given direction.
func (in *Instance) Buses(dir spa.Direction) []*Bus {
	var out []*Bus
	for _, b := range in.buses {
		if b.Direction == dir {
			out = append(out, b)
		}
	}
	return out
}

// SetControl sets the value of the scalar input port with the given name. The
// value takes effect at the start of the next block, converted to the type of
// the port.
func (in *Instance) SetControl(name string, v float64) error {
	c, ok := in.controls[name]
	if !ok {
		return &spa.PortNotFoundError{Name: name}
	} else if !c.isInput() {
		return fmt.Errorf("port %q is not an input", name)
	}
	c.store(v)
	return nil
}

// Control reports the value of the scalar port with the given name. For an
// output, this is the value at the end of the most recent block.
func (in *Instance) Control(name string) (float64, error) {
	c, ok := in.controls[name]
	if !ok {
		return 0, &spa.PortNotFoundError{Name: name}
	}
	return c.value(), nil
}

// ErrNoEventPort is reported by Send if the plugin has no event input port.
var ErrNoEventPort = errors.New("plugin has no event input port")

// Send writes m to the event input port of the plugin. It reports false
// without error if the buffer is full; the event is dropped, logged, and
// counted. An error means m is invalid, the plugin has no event input, or the
// instance is not negotiated.
//
// Send is safe for concurrent use by multiple goroutines.
func (in *Instance) Send(m event.Message) (bool, error) {
	if err := in.require("send", spa.Allocated, spa.Active, spa.Running, spa.Deactivated); err != nil {
		return false, err
	} else if in.events == nil {
		return false, ErrNoEventPort
	}

	in.evμ.Lock()
	ok, err := in.events.Write(m)
	in.evμ.Unlock()
	if err != nil {
		return false, err
	}

	if ok {
		metrics.eventsSent.Add(1)
	} else {
		metrics.eventsDropped.Add(1)
		in.log.Warn("event dropped", "port", in.eventPort, "address", m.Address)
	}
	if elog := in.elog.Load(); elog != nil {
		(*elog)(EventInfo{Port: in.eventPort, Message: m, Sent: true, Dropped: !ok})
	}
	return ok, nil
}

// Handle registers a handler for events sent by the plugin on its event output
// ports, as [event.Mux.Handle]. Handlers are called synchronously by Run, and
// must be registered before the instance is started.
func (in *Instance) Handle(addr string, h event.Handler) *Instance {
	in.mux.Handle(addr, h)
	return in
}

// LogEvents registers a callback that will be invoked for each event sent to
// or received from the plugin, including dropped events. Passing nil disables
// event logging.
//
// The callback for received events is invoked synchronously by Run, and
// receives a copy of the message, so logging allocates on the processing path.
func (in *Instance) LogEvents(log EventLogger) *Instance {
	if log == nil {
		in.elog.Store(nil)
	} else {
		in.elog.Store(&log)
	}
	return in
}

// OnExit registers a callback to be invoked when the processing goroutine
// started by Start exits. The callback is executed synchronously during
// shutdown, with the same error value that would be reported by Wait.
//
// Only one exit callback can be registered at a time; if f == nil the callback
// is removed.
func (in *Instance) OnExit(f func(error)) *Instance {
	in.μ.Lock()
	defer in.μ.Unlock()
	in.onExit = f
	return in
}

// Start starts a goroutine that calls Run once for each value received from
// ticks. The goroutine runs until ticks is closed, Stop is called, or Run
// reports an error. Start does not block; call Wait to wait for the goroutine
// to exit and report its status.
func (in *Instance) Start(ticks <-chan struct{}) error {
	if err := in.require("start", spa.Active, spa.Running); err != nil {
		return err
	}
	in.μ.Lock()
	defer in.μ.Unlock()
	if in.tasks != nil {
		return errors.New("instance is already started")
	}

	stop := make(chan struct{})
	in.stop = stop
	in.err = nil
	in.tasks = taskgroup.New(nil)
	in.tasks.Go(func() error {
		for {
			select {
			case <-stop:
				in.exit(nil)
				return nil
			case _, ok := <-ticks:
				if !ok {
					in.exit(nil)
					return nil
				}
				if err := in.Run(); err != nil {
					in.exit(err)
					return nil
				}
			}
		}
	})
	return nil
}

// exit records the status of the processing goroutine.
func (in *Instance) exit(err error) {
	in.μ.Lock()
	defer in.μ.Unlock()
	in.err = err
	if err != nil {
		in.log.Error("processing stopped", "label", in.info.Label, "err", err)
	}
	if in.onExit != nil {
		in.onExit(err)
	}
}

// Stop terminates the processing goroutine, if any, and returns its status.
func (in *Instance) Stop() error {
	in.μ.Lock()
	if in.stop != nil {
		close(in.stop)
		in.stop = nil
	}
	in.μ.Unlock()
	return in.Wait()
}

// Wait blocks until the processing goroutine exits and reports the error
// that caused it to stop, if any. If the instance was not started, Wait
// returns nil.
func (in *Instance) Wait() error {
	in.μ.Lock()
	t := in.tasks
	in.μ.Unlock()
	if t == nil {
		return nil
	}
	t.Wait()

	in.μ.Lock()
	defer in.μ.Unlock()
	in.tasks = nil
	in.stop = nil
	return in.err
}
