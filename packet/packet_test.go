// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package packet_test

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/creachadair/spa/packet"
	"github.com/google/go-cmp/cmp"
)

func TestBuilder(t *testing.T) {
	var b packet.Builder
	if err := b.CString("/gain"); err != nil {
		t.Fatalf("CString: unexpected error: %v", err)
	}
	if err := b.CString(""); err != nil {
		t.Fatalf("CString: unexpected error: %v", err)
	}
	b.Uint32(0xfc009a01)
	b.Uint32(math.Float32bits(0.5))
	b.Uint64(math.Float64bits(math.Pi))

	const wantLen = 6 + 1 + 4 + 4 + 8
	if n := b.Len(); n != wantLen {
		t.Errorf("Len = %d, want %d", n, wantLen)
	}

	s := packet.NewScanner(b.Bytes())
	check(t, "CString", func() (string, error) {
		v, err := s.CString()
		return string(v), err
	}, "/gain")
	check(t, "Empty", func() (string, error) {
		v, err := s.CString()
		return string(v), err
	}, "")
	check(t, "Uint32", s.Uint32, 0xfc009a01)
	check(t, "Float32", func() (float32, error) {
		v, err := s.Uint32()
		return math.Float32frombits(v), err
	}, 0.5)
	check(t, "Float64", func() (float64, error) {
		v, err := s.Uint64()
		return math.Float64frombits(v), err
	}, math.Pi)

	if s.Len() != 0 {
		t.Errorf("Extra data at EOF (%d bytes)", s.Len())
	}
	if s.Offset() != wantLen {
		t.Errorf("Offset = %d, want %d", s.Offset(), wantLen)
	}
	if _, err := s.CString(); !errors.Is(err, io.EOF) {
		t.Errorf("CString at EOF: got %v, want %v", err, io.EOF)
	}

	b.Truncate(6)
	if got := string(b.Bytes()); got != "/gain\x00" {
		t.Errorf("Truncate: got %q, want %q", got, "/gain\x00")
	}
	b.Reset()
	b.Grow(64)
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", b.Len())
	}
}

func TestNativeOrder(t *testing.T) {
	var b packet.Builder
	b.Uint32(0x01020304)
	if got, want := b.Bytes(), binary.NativeEndian.AppendUint32(nil, 0x01020304); string(got) != string(want) {
		t.Errorf("Uint32: got %v, want %v", got, want)
	}
}

func TestCStringErrors(t *testing.T) {
	var b packet.Builder
	if err := b.CString("bad\x00string"); err == nil {
		t.Error("CString with NUL: got nil error")
	}
	if b.Len() != 0 {
		t.Errorf("CString failure modified the builder: %q", b.Bytes())
	}

	s := packet.NewScanner("no terminator")
	if _, err := s.CString(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("CString: got %v, want %v", err, io.ErrUnexpectedEOF)
	}
	if s.Offset() != 0 {
		t.Errorf("Offset after failure = %d, want 0", s.Offset())
	}
}

func TestScannerTruncated(t *testing.T) {
	s := packet.NewScanner([]byte{1, 2, 3})
	if _, err := s.Uint32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Uint32: got %v, want %v", err, io.ErrUnexpectedEOF)
	}
	if _, err := s.Uint64(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Uint64: got %v, want %v", err, io.ErrUnexpectedEOF)
	}
	s.Reset([]byte{0, 0, 0, 0})
	if _, err := s.Uint32(); err != nil {
		t.Errorf("Uint32 after Reset: unexpected error: %v", err)
	}
}

func check[T any](t *testing.T, label string, f func() (T, error), want T) {
	t.Helper()

	got, err := f()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", label, err)
	} else if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("%s result (-got, +want):\n%s", label, diff)
	}
}
