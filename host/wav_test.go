// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/creachadair/spa/host"
	"github.com/go-audio/wav"
	"github.com/google/go-cmp/cmp"
)

func TestWAVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := host.NewWAVWriter(f, 8000)
	if err := w.WriteBlock([]float32{0, 0.5, 1}, []float32{-0.5, -1, 2}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.WriteBus(&host.Bus{Left: []float32{0.25}, Right: []float32{-2}}); err != nil {
		t.Fatalf("WriteBus: %v", err)
	}
	if err := w.WriteBlock([]float32{float32(math.NaN())}, []float32{1}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.WriteBlock([]float32{1}, nil); err == nil {
		t.Error("WriteBlock with uneven channels: got nil error")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close file: %v", err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		t.Fatal("Decoder reports an invalid file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if dec.SampleRate != 8000 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("Format: got rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, -16383, 16383, -32767, 32767, 32767, 8191, -32767, 0, 32767}
	if diff := cmp.Diff(buf.Data, want); diff != "" {
		t.Errorf("Samples (-got, +want):\n%s", diff)
	}
}
