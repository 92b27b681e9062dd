// Program spahost is a command-line host for SPA audio plugins.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"math"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/spa"
	"github.com/creachadair/spa/event"
	"github.com/creachadair/spa/host"
	"github.com/creachadair/spa/loader"
	"github.com/creachadair/spa/plugins/gain"
	"github.com/creachadair/spa/ring"
	"github.com/creachadair/taskgroup"
)

func init() { loader.Register("gain", gain.Entry) }

var flags struct {
	LogLevel   string `flag:"log-level,default=warn,Log level (debug, info, warn, error)"`
	BlockSize  int    `flag:"block-size,default=256,Samples per processing block"`
	SampleRate int    `flag:"sample-rate,default=48000,Sample rate in Hz"`
	Events     int    `flag:"event-capacity,default=4096,Capacity in bytes of each event output buffer"`
	Trace      bool   `flag:"trace,Log every event exchanged with the plugin"`
	Metrics    bool   `flag:"metrics,Print host metrics on exit"`
}

var renderFlags struct {
	Seconds float64 `flag:"seconds,default=1,Duration of the rendered audio"`
	Freq    float64 `flag:"freq,default=440,Frequency of the test tone in Hz"`
	Level   float64 `flag:"level,default=0.5,Amplitude of the test tone"`
}

var runFlags struct {
	Blocks int `flag:"blocks,default=1,Number of blocks to process"`
}

func main() {
	root := &command.C{
		Name:  filepath.Base(os.Args[0]),
		Usage: "<command> [arguments]",
		Help: `Load and run SPA audio plugins.

A plugin path is either the path of a shared library exporting the
SpaDescriptor entry point, or "builtin:<name>" for a plugin compiled into
this program. Builtin plugins: ` + strings.Join(loader.Builtins(), ", ") + `.

Events are written as a single argument "<address> <tags> <value>...",
for example "/gain f 0.5".`,
		SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &flags) },
		Commands: []*command.C{
			{
				Name:  "ports",
				Usage: "<plugin>",
				Help:  "Negotiate the ports of a plugin and print them.",
				Run:   runPorts,
			},
			{
				Name:     "run",
				Usage:    "<plugin> [event]...",
				Help:     "Send events to a plugin and process blocks of silence.",
				SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &runFlags) },
				Run:      runRun,
			},
			{
				Name:  "render",
				Usage: "<plugin> <output.wav> [event]...",
				Help: `Process a test tone through a plugin and write the result to a WAV file.

The tone is written to the first stereo input of the plugin, and the first
stereo output is written to the file as 16-bit PCM. Events are sent before
the first block is processed.`,
				SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &renderFlags) },
				Run:      runRender,
			},
			{
				Name:  "listen",
				Usage: "<plugin> <host:port>",
				Help: `Run a plugin in real time, forwarding OSC messages received on a UDP
address to its event input. Processing continues until interrupted.`,
				Run: runListen,
			},
			{
				Name:  "pack",
				Usage: "<address> <tags> <value>...",
				Help: `Encode an event and print it as a hex dump.

Tags are i (int32), h (int64), f (float32), d (float64), c (char),
m (MIDI, 4 bytes), T (true), F (false), N (nil), and I (impulse).
The output includes the 4-byte frame header written to event buffers.`,
				Run: runPack,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

// openInstance opens the plugin at path and prepares it for processing.
func openInstance(path string) (*host.Instance, error) {
	level, err := log.ParseLevel(flags.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	in, err := host.Open(path, host.Config{
		BlockSize:        flags.BlockSize,
		SampleRate:       flags.SampleRate,
		OutEventCapacity: flags.Events,
		Logger:           host.NewLogger(os.Stderr, level),
	})
	if err != nil {
		return nil, err
	}
	if flags.Trace {
		in.LogEvents(func(e host.EventInfo) { fmt.Fprintln(os.Stderr, e) })
	}
	return in, nil
}

// closeInstance closes in and prints its metrics, if requested.
func closeInstance(in *host.Instance) error {
	err := in.Close()
	if flags.Metrics {
		fmt.Println(in.Metrics())
	}
	return err
}

// parseEvent parses an event of the form "<address> <tags> <value>...".
func parseEvent(s string) (event.Message, error) {
	fs := strings.Fields(s)
	switch len(fs) {
	case 0:
		return event.Message{}, errors.New("empty event")
	case 1:
		return event.New(fs[0]), nil
	}
	tags := strings.TrimPrefix(fs[1], ",")
	return event.Parse(fs[0], tags, fs[2:])
}

func sendEvents(in *host.Instance, args []string) error {
	for _, arg := range args {
		m, err := parseEvent(arg)
		if err != nil {
			return fmt.Errorf("event %q: %w", arg, err)
		}
		if ok, err := in.Send(m); err != nil {
			return fmt.Errorf("send %q: %w", arg, err)
		} else if !ok {
			return fmt.Errorf("send %q: event buffer is full", arg)
		}
	}
	return nil
}

func runPorts(env *command.Env) error {
	if len(env.Args) != 1 {
		return env.Usagef("Expected one plugin path")
	}
	in, err := openInstance(env.Args[0])
	if err != nil {
		return err
	}
	defer closeInstance(in)
	if err := in.Negotiate(); err != nil {
		return err
	}
	info := in.Info()
	fmt.Printf("%s (%s) version %s\n", info.Name, info.Label, info.VersionString())
	if info.Description != "" {
		fmt.Println(info.Description)
	}
	for _, p := range in.Ports() {
		req := ""
		if p.Required {
			req = " required"
		}
		fmt.Printf("  %-16s %-8s %-10s%s\n", p.Name, p.Direction, p.Kind, req)
	}
	return nil
}

func runRun(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("Missing plugin path")
	}
	in, err := openInstance(env.Args[0])
	if err != nil {
		return err
	}
	defer closeInstance(in)
	if err := in.Prepare(); err != nil {
		return err
	}
	if err := sendEvents(in, env.Args[1:]); err != nil {
		return err
	}
	for range runFlags.Blocks {
		if err := in.Run(); err != nil {
			return err
		}
	}
	return printControls(in)
}

// printControls prints the output buses and scalar controls of in.
func printControls(in *host.Instance) error {
	for _, p := range in.Ports() {
		switch p.Kind {
		case spa.KindScalarIn, spa.KindScalarOut:
			v, err := in.Control(p.Name)
			if err != nil {
				return err
			}
			fmt.Printf("%s = %v\n", p.Name, v)
		}
	}
	for _, b := range in.Buses(spa.Output) {
		fmt.Printf("%s: peak %.4f\n", b.Name, max(peak(b.Left), peak(b.Right)))
	}
	return nil
}

func peak(vs []float32) float64 {
	var p float64
	for _, v := range vs {
		p = max(p, math.Abs(float64(v)))
	}
	return p
}

func runRender(env *command.Env) error {
	if len(env.Args) < 2 {
		return env.Usagef("Expected plugin path and output file")
	}
	in, err := openInstance(env.Args[0])
	if err != nil {
		return err
	}
	defer closeInstance(in)
	if err := in.Prepare(); err != nil {
		return err
	}
	ins, outs := in.Buses(spa.Input), in.Buses(spa.Output)
	if len(outs) == 0 {
		return errors.New("plugin has no stereo output")
	}
	if err := sendEvents(in, env.Args[2:]); err != nil {
		return err
	}

	f, err := os.Create(env.Args[1])
	if err != nil {
		return err
	}
	w := host.NewWAVWriter(f, in.SampleRate())

	rate, size := float64(in.SampleRate()), in.BlockSize()
	total := int(renderFlags.Seconds * rate)
	step := 2 * math.Pi * renderFlags.Freq / rate
	for pos := 0; pos < total; pos += size {
		if len(ins) != 0 {
			for i := range size {
				v := float32(renderFlags.Level * math.Sin(step*float64(pos+i)))
				ins[0].Left[i], ins[0].Right[i] = v, v
			}
		}
		if err := in.Run(); err != nil {
			f.Close()
			return err
		}
		n := min(size, total-pos)
		if err := w.WriteBlock(outs[0].Left[:n], outs[0].Right[:n]); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runListen(env *command.Env) error {
	if len(env.Args) != 2 {
		return env.Usagef("Expected plugin path and listen address")
	}
	in, err := openInstance(env.Args[0])
	if err != nil {
		return err
	}
	defer closeInstance(in)
	if err := in.Prepare(); err != nil {
		return err
	}
	conn, err := net.ListenPacket("udp", env.Args[1])
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(env.Context(), os.Interrupt)
	defer cancel()

	// Deliver one tick per block period.
	period := time.Duration(float64(time.Second) * float64(in.BlockSize()) / float64(in.SampleRate()))
	ticks := make(chan struct{})
	g := taskgroup.New(nil)
	g.Go(func() error {
		defer close(ticks)
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				select {
				case ticks <- struct{}{}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error { in.ServeOSC(conn); return nil })

	in.OnExit(func(error) { cancel() })
	if err := in.Start(ticks); err != nil {
		cancel()
		g.Wait()
		return err
	}
	fmt.Fprintf(os.Stderr, "Listening for OSC on %s\n", conn.LocalAddr())
	<-ctx.Done()
	err = in.Wait()
	g.Wait()
	return err
}

func runPack(env *command.Env) error {
	if len(env.Args) < 2 {
		return env.Usagef("Expected address and tags")
	}
	m, err := event.Parse(env.Args[0], strings.TrimPrefix(env.Args[1], ","), env.Args[2:])
	if err != nil {
		return err
	}
	rb := ring.New(ring.HeaderLen + m.EncodedLen())
	if ok, err := event.NewWriter(rb.Writer()).Write(m); err != nil {
		return err
	} else if !ok {
		return errors.New("event does not fit its buffer")
	}
	payload, _, err := rb.ReadFramed(nil)
	if err != nil {
		return err
	}
	frame := binary.BigEndian.AppendUint32(nil, uint32(len(payload)))
	fmt.Print(hex.Dump(append(frame, payload...)))
	return nil
}
