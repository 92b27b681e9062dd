// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host_test

import (
	"net"
	"testing"
	"time"

	"github.com/creachadair/spa/host"
	"github.com/creachadair/taskgroup"
	"github.com/hypebeast/go-osc/osc"
)

func TestFromOSC(t *testing.T) {
	m := osc.NewMessage("/mix", int32(1), int64(2), float32(0.5), float64(0.25), true, false, nil)
	got, err := host.FromOSC(m)
	if err != nil {
		t.Fatalf("FromOSC: unexpected error: %v", err)
	}
	if want := "/mix ,ihfdTFN 1 2h 0.5 0.25d true false nil"; got.String() != want {
		t.Errorf("FromOSC: got %q, want %q", got.String(), want)
	}

	for _, arg := range []any{"text", []byte("blob"), osc.NewTimetag(time.Now())} {
		if got, err := host.FromOSC(osc.NewMessage("/x", arg)); err == nil {
			t.Errorf("FromOSC(%T): got %v, want error", arg, got)
		}
	}
}

// openGain opens and prepares a gain instance that reports events it
// accepts on the returned channel.
func openGain(t *testing.T) (*host.Instance, chan host.EventInfo) {
	t.Helper()
	in, err := host.Open("builtin:host-test-gain", host.Config{BlockSize: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { in.Close() })
	if err := in.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	sent := make(chan host.EventInfo, 16)
	in.LogEvents(func(e host.EventInfo) {
		if e.Sent {
			sent <- e
		}
	})
	return in, sent
}

func TestOSCDispatcher(t *testing.T) {
	in, sent := openGain(t)
	d := in.OSCDispatcher()

	d.Dispatch(osc.NewMessage("/gain", float32(0.5)))
	d.Dispatch(osc.NewMessage("/gain", "loud")) // discarded
	d.Dispatch(&osc.Bundle{
		Messages: []*osc.Message{osc.NewMessage("/a", int32(1)), osc.NewMessage("/b")},
		Bundles: []*osc.Bundle{{
			Messages: []*osc.Message{osc.NewMessage("/c", true)},
		}},
	})
	close(sent)

	var got []string
	for e := range sent {
		got = append(got, e.Message.String())
	}
	want := []string{"/gain ,f 0.5", "/a ,i 1", "/b ,", "/c ,T true"}
	if len(got) != len(want) {
		t.Fatalf("Events: got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestServeOSC(t *testing.T) {
	in, sent := openGain(t)

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	g := taskgroup.New(nil)
	g.Go(func() error { in.ServeOSC(conn); return nil })

	addr := conn.LocalAddr().(*net.UDPAddr)
	cli := osc.NewClient("127.0.0.1", addr.Port)
	if err := cli.Send(osc.NewMessage("/gain", float32(0.25))); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case e := <-sent:
		if got, want := e.Message.String(), "/gain ,f 0.25"; got != want {
			t.Errorf("Event: got %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for OSC delivery")
	}

	// The event reaches the plugin on the next block.
	src := in.Bus("in")
	copy(src.Left, []float32{4, 4, 4, 4})
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := in.Bus("out").Left[0]; got != 1 {
		t.Errorf("Output: got %v, want 1", got)
	}

	conn.Close()
	g.Wait()
}
