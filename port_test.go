// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package spa_test

import (
	"errors"
	"testing"

	"github.com/creachadair/mds/mtest"
	"github.com/creachadair/spa"
	"github.com/creachadair/spa/event"
	"github.com/google/go-cmp/cmp"
)

// recorder is a Binder that records the method called for each port.
type recorder struct {
	calls []string
}

func (r *recorder) add(method string, p spa.Port) error {
	r.calls = append(r.calls, method+":"+p.Name())
	return nil
}

func (r *recorder) BindScalarIn(p spa.ScalarPort) error    { return r.add("ScalarIn", p) }
func (r *recorder) BindScalarOut(p spa.ScalarPort) error   { return r.add("ScalarOut", p) }
func (r *recorder) BindStereoIn(p *spa.StereoIn) error     { return r.add("StereoIn", p) }
func (r *recorder) BindStereoOut(p *spa.StereoOut) error   { return r.add("StereoOut", p) }
func (r *recorder) BindBufferSize(p *spa.BufferSize) error { return r.add("BufferSize", p) }
func (r *recorder) BindEventsIn(p *spa.EventsIn) error     { return r.add("EventsIn", p) }
func (r *recorder) BindUnknown(p spa.Port) error           { return r.add("Unknown", p) }

// extRecorder also handles event outputs.
type extRecorder struct{ recorder }

func (r *extRecorder) BindEventsOut(p *spa.EventsOut) error { return r.add("EventsOut", p) }

// customPort is a port of a variant no binder knows about.
type customPort struct{ name string }

func (c customPort) Name() string              { return c.name }
func (customPort) Direction() spa.Direction    { return spa.Input }
func (customPort) Kind() spa.Kind              { return spa.Kind(99) }
func (customPort) Required() bool              { return false }
func (customPort) Bound() bool                 { return false }
func (c customPort) Accept(b spa.Binder) error { return b.BindUnknown(c) }

func allPorts() []spa.Port {
	return []spa.Port{
		spa.NewScalarIn[float32]("gain"),
		spa.NewScalarOut[int64]("peak"),
		spa.NewStereoIn("in"),
		spa.NewStereoOut("out"),
		spa.NewBufferSize("buffersize"),
		spa.NewEventsIn("osc", 64),
		spa.NewEventsOut("notify"),
		spa.NewOpaque("blob", spa.Output),
		customPort{"custom"},
	}
}

func TestDoubleDispatch(t *testing.T) {
	t.Run("Core", func(t *testing.T) {
		var r recorder
		for _, p := range allPorts() {
			if err := p.Accept(&r); err != nil {
				t.Fatalf("Accept %q: unexpected error: %v", p.Name(), err)
			}
		}
		want := []string{
			"ScalarIn:gain", "ScalarOut:peak", "StereoIn:in", "StereoOut:out",
			"BufferSize:buffersize", "EventsIn:osc",
			"Unknown:notify", // no extension, falls back
			"Unknown:blob", "Unknown:custom",
		}
		if diff := cmp.Diff(r.calls, want); diff != "" {
			t.Errorf("Calls (-got, +want):\n%s", diff)
		}
	})

	t.Run("Extension", func(t *testing.T) {
		var r extRecorder
		for _, p := range allPorts() {
			if err := p.Accept(&r); err != nil {
				t.Fatalf("Accept %q: unexpected error: %v", p.Name(), err)
			}
		}
		want := []string{
			"ScalarIn:gain", "ScalarOut:peak", "StereoIn:in", "StereoOut:out",
			"BufferSize:buffersize", "EventsIn:osc", "EventsOut:notify",
			"Unknown:blob", "Unknown:custom",
		}
		if diff := cmp.Diff(r.calls, want); diff != "" {
			t.Errorf("Calls (-got, +want):\n%s", diff)
		}
	})
}

func TestBaseBinder(t *testing.T) {
	var seen []string
	b := spa.BaseBinder{Default: func(p spa.Port) error {
		seen = append(seen, p.Kind().String())
		return nil
	}}
	for _, p := range allPorts()[:6] {
		if err := p.Accept(b); err != nil {
			t.Fatalf("Accept %q: %v", p.Name(), err)
		}
	}
	want := []string{"scalar-in", "scalar-out", "stereo-in", "stereo-out", "buffer-size", "events-in"}
	if diff := cmp.Diff(seen, want); diff != "" {
		t.Errorf("Default calls (-got, +want):\n%s", diff)
	}

	// A zero BaseBinder accepts everything.
	for _, p := range allPorts() {
		if err := p.Accept(spa.BaseBinder{}); err != nil {
			t.Errorf("Accept %q: unexpected error: %v", p.Name(), err)
		}
	}
}

func TestBindScalar(t *testing.T) {
	in := spa.NewScalarIn[float32]("gain")
	if in.ScalarType() != spa.Float32 {
		t.Errorf("ScalarType: got %v, want float32", in.ScalarType())
	}
	if got := in.Value(); got != 0 {
		t.Errorf("Unbound value: got %v, want 0", got)
	}

	var wrong float64
	if err := spa.BindScalar(in, &wrong); err == nil {
		t.Error("BindScalar with wrong type: got nil error")
	}
	if in.Bound() {
		t.Error("Port bound after failed BindScalar")
	}

	v := float32(0.25)
	if err := spa.BindScalar(in, &v); err != nil {
		t.Fatalf("BindScalar: unexpected error: %v", err)
	}
	if !in.Bound() || in.Value() != 0.25 {
		t.Errorf("Bound port: got bound=%v value=%v", in.Bound(), in.Value())
	}
	v = 0.75
	if got := in.Value(); got != 0.75 {
		t.Errorf("Value after update: got %v, want 0.75", got)
	}

	var other float32
	if err := spa.BindScalar(in, &other); !errors.Is(err, spa.ErrAlreadyBound) {
		t.Errorf("Second bind: got %v, want ErrAlreadyBound", err)
	}

	out := spa.NewScalarOut[uint16]("level")
	out.Set(5) // no effect when unbound
	var level uint16
	if err := spa.BindScalar(out, &level); err != nil {
		t.Fatalf("BindScalar: unexpected error: %v", err)
	}
	out.Set(9)
	if level != 9 {
		t.Errorf("Output: got %d, want 9", level)
	}
}

func TestScalarTypeOf(t *testing.T) {
	got := []spa.ScalarType{
		spa.ScalarTypeOf[int8](), spa.ScalarTypeOf[int16](), spa.ScalarTypeOf[int32](),
		spa.ScalarTypeOf[int64](), spa.ScalarTypeOf[uint8](), spa.ScalarTypeOf[uint16](),
		spa.ScalarTypeOf[uint32](), spa.ScalarTypeOf[uint64](), spa.ScalarTypeOf[float32](),
		spa.ScalarTypeOf[float64](),
	}
	want := []spa.ScalarType{
		spa.Int8, spa.Int16, spa.Int32, spa.Int64, spa.Uint8, spa.Uint16,
		spa.Uint32, spa.Uint64, spa.Float32, spa.Float64,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("ScalarTypeOf (-got, +want):\n%s", diff)
	}
}

func TestStereo(t *testing.T) {
	p := spa.NewStereoIn("in")
	if err := p.Connect(make([]float32, 4), make([]float32, 5)); err == nil {
		t.Error("Connect with unequal channels: got nil error")
	}
	l, r := make([]float32, 8), make([]float32, 8)
	if err := p.Connect(l, r); err != nil {
		t.Fatalf("Connect: unexpected error: %v", err)
	}
	gl, gr := p.Channels()
	if len(gl) != 8 || len(gr) != 8 {
		t.Errorf("Channels: got lengths %d, %d", len(gl), len(gr))
	}
	if err := p.Connect(l, r); !errors.Is(err, spa.ErrAlreadyBound) {
		t.Errorf("Second Connect: got %v, want ErrAlreadyBound", err)
	}
}

func TestEventsIn(t *testing.T) {
	p := spa.NewEventsIn("osc", 64)
	if p.Cap() != 64 {
		t.Errorf("Cap: got %d, want 64", p.Cap())
	}
	w, err := p.Claim()
	if err != nil {
		t.Fatalf("Claim: unexpected error: %v", err)
	}
	if _, err := p.Claim(); !errors.Is(err, spa.ErrAlreadyBound) {
		t.Errorf("Second Claim: got %v, want ErrAlreadyBound", err)
	}

	if ok, err := event.NewWriter(w).Send("/gain", "f", 0.5); !ok || err != nil {
		t.Fatalf("Send: got (%v, %v)", ok, err)
	}
	v, ok, err := p.Reader().Next()
	if err != nil || !ok {
		t.Fatalf("Next: got (%v, %v)", ok, err)
	}
	if !v.Is("/gain") {
		t.Errorf("Path: got %q, want /gain", v.Path())
	}

	mtest.MustPanic(t, func() { spa.NewEventsIn("bad", 0) })
}

func TestEventsOutUnbound(t *testing.T) {
	p := spa.NewEventsOut("notify")
	if p.Required() {
		t.Error("EventsOut should not be required")
	}
	if p.Send(event.New("/x")) {
		t.Error("Send on unbound port: got true")
	}
	if err := p.Connect(nil); err == nil {
		t.Error("Connect(nil): got nil error")
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{spa.Input.String(), "input"},
		{spa.Output.String(), "output"},
		{spa.KindEventsOut.String(), "events-out"},
		{spa.Kind(99).String(), "Kind(99)"},
		{spa.Running.String(), "running"},
		{spa.State(42).String(), "State(42)"},
		{spa.Float64.String(), "float64"},
		{(&spa.PortNotFoundError{Name: "gain"}).Error(), `no port named "gain"`},
		{spa.Info{Version: [3]int{1, 2, 3}}.VersionString(), "1.2.3"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("Got %q, want %q", tc.got, tc.want)
		}
	}
}
