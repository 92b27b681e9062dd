// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package ring_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/creachadair/mds/mtest"
	"github.com/creachadair/spa/ring"
	"github.com/creachadair/taskgroup"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestNewInvalid(t *testing.T) {
	mtest.MustPanic(t, func() { ring.New(0) })
	mtest.MustPanic(t, func() { ring.New(-5) })
}

func TestRoundTrip(t *testing.T) {
	for _, capacity := range []int{4, 5, 16, 17, 64, 100, 1024} {
		t.Run(fmt.Sprintf("cap-%d", capacity), func(t *testing.T) {
			b := ring.New(capacity)

			// Repeat enough times that the cursors wrap around the storage at
			// many different offsets.
			rng := rand.New(rand.NewSource(int64(capacity)))
			for round := range 50 {
				var want [][]byte
				free := capacity
				for free >= ring.HeaderLen {
					n := rng.Intn(free - ring.HeaderLen + 1)
					msg := make([]byte, n)
					rng.Read(msg)
					if !b.WriteFramed(msg) {
						t.Fatalf("Round %d: WriteFramed(%d bytes) failed with %d free", round, n, free)
					}
					want = append(want, msg)
					free -= ring.HeaderLen + n
					if rng.Intn(3) == 0 {
						break
					}
				}
				if got := b.AvailableWrite(); got != free {
					t.Errorf("Round %d: AvailableWrite = %d, want %d", round, got, free)
				}

				var got [][]byte
				for {
					msg, ok, err := b.ReadFramed(nil)
					if err != nil {
						t.Fatalf("Round %d: ReadFramed: unexpected error: %v", round, err)
					} else if !ok {
						break
					}
					got = append(got, msg)
				}
				if diff := cmp.Diff(got, want, cmpopts.EquateEmpty()); diff != "" {
					t.Fatalf("Round %d: messages (-got, +want):\n%s", round, diff)
				}
				if n := b.AvailableRead(); n != 0 {
					t.Errorf("Round %d: AvailableRead = %d, want 0", round, n)
				}
			}
		})
	}
}

func TestNoPartialWrite(t *testing.T) {
	b := ring.New(16)
	if !b.WriteFramed([]byte("abcdef")) { // 10 bytes
		t.Fatal("WriteFramed: unexpected failure")
	}
	before := b.AvailableWrite()

	if b.WriteFramed([]byte("ghi")) { // 7 bytes > 6 free
		t.Error("WriteFramed: unexpectedly succeeded")
	}
	if b.Write([]byte("1234567")) {
		t.Error("Write: unexpectedly succeeded")
	}
	if got := b.AvailableWrite(); got != before {
		t.Errorf("AvailableWrite after failure = %d, want %d", got, before)
	}

	msg, ok, err := b.ReadFramed(nil)
	if err != nil || !ok {
		t.Fatalf("ReadFramed: got (%v, %v), want success", ok, err)
	}
	if got := string(msg); got != "abcdef" {
		t.Errorf("ReadFramed: got %q, want %q", got, "abcdef")
	}
	if _, ok, _ := b.ReadFramed(nil); ok {
		t.Error("ReadFramed: got extra message")
	}
}

func TestFillToCapacity(t *testing.T) {
	// Five frames of 12, 12, 12, 12, and 16 bytes exactly fill 64 bytes.
	b := ring.New(64)
	msgs := []string{"12345678", "abcdefgh", "ABCDEFGH", "zyxwvuts", "0123456789ab"}
	for i, m := range msgs {
		if !b.WriteFramed([]byte(m)) {
			t.Fatalf("WriteFramed %d: unexpected failure", i+1)
		}
	}
	if n := b.AvailableWrite(); n != 0 {
		t.Fatalf("AvailableWrite = %d, want 0", n)
	}
	if b.WriteFramed(nil) {
		t.Error("WriteFramed 6: unexpectedly succeeded on a full buffer")
	}

	buf := make([]byte, 0, 64)
	for i, want := range msgs {
		got, ok, err := b.ReadFramed(buf)
		if err != nil || !ok {
			t.Fatalf("ReadFramed %d: got (%v, %v)", i+1, ok, err)
		}
		if string(got) != want {
			t.Errorf("ReadFramed %d: got %q, want %q", i+1, got, want)
		}
	}
}

func TestEmptyFrame(t *testing.T) {
	b := ring.New(8)
	if !b.WriteFramed(nil) {
		t.Fatal("WriteFramed(nil) failed")
	}
	if n := b.AvailableRead(); n != ring.HeaderLen {
		t.Errorf("AvailableRead = %d, want %d", n, ring.HeaderLen)
	}
	msg, ok, err := b.ReadFramed(nil)
	if err != nil || !ok || len(msg) != 0 {
		t.Errorf("ReadFramed: got (%q, %v, %v), want empty message", msg, ok, err)
	}
}

func TestCorrupt(t *testing.T) {
	b := ring.New(32)

	// A raw header declaring 10 bytes, followed by only 3.
	if !b.Write([]byte{0, 0, 0, 10, 'a', 'b', 'c'}) {
		t.Fatal("Write: unexpected failure")
	}
	_, ok, err := b.ReadFramed(nil)
	var cerr *ring.CorruptError
	if !errors.As(err, &cerr) {
		t.Fatalf("ReadFramed: got (%v, %v), want CorruptError", ok, err)
	}
	if cerr.Length != 10 || cerr.Available != 3 {
		t.Errorf("CorruptError: got %+v, want length 10, available 3", cerr)
	}

	// Adding the missing data does not repair the buffer.
	b.Write([]byte("defghij"))
	if _, _, err := b.ReadFramed(nil); !errors.As(err, &cerr) {
		t.Errorf("ReadFramed after corruption: got %v, want CorruptError", err)
	}
}

func TestPartialHeader(t *testing.T) {
	b := ring.New(8)
	b.Write([]byte{0, 0})
	if _, ok, err := b.ReadFramed(nil); ok || err != nil {
		t.Errorf("ReadFramed with 2 bytes: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestNoAllocRead(t *testing.T) {
	b := ring.New(256)
	w, r := b.Writer(), b.Reader()
	msg := []byte("the quick brown fox")
	buf := make([]byte, 0, 256)

	allocs := testing.AllocsPerRun(100, func() {
		if !w.WriteFramed(msg) {
			panic("write failed")
		}
		if _, ok, err := r.ReadFramed(buf); !ok || err != nil {
			panic("read failed")
		}
	})
	if allocs != 0 {
		t.Errorf("Write+Read: got %v allocations, want 0", allocs)
	}
}

func TestConcurrent(t *testing.T) {
	defer leaktest.Check(t)()

	const numMessages = 20000
	b := ring.New(97) // deliberately not a power of two
	w, r := b.Writer(), b.Reader()

	g := taskgroup.New(nil)
	g.Go(func() error {
		var buf [8]byte
		for i := 0; i < numMessages; {
			n := i%len(buf) + 1
			for j := range n {
				buf[j] = byte(i + j)
			}
			if w.WriteFramed(buf[:n]) {
				i++
			}
		}
		return nil
	})
	g.Go(func() error {
		dst := make([]byte, 0, 16)
		for i := 0; i < numMessages; {
			msg, ok, err := r.ReadFramed(dst)
			if err != nil {
				return err
			} else if !ok {
				continue
			}
			n := i%8 + 1
			if len(msg) != n {
				return fmt.Errorf("message %d: got %d bytes, want %d", i, len(msg), n)
			}
			for j, c := range msg {
				if c != byte(i+j) {
					return fmt.Errorf("message %d: byte %d = %d, want %d", i, j, c, byte(i+j))
				}
			}
			i++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent transfer: %v", err)
	}
}
