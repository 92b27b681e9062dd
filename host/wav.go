// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVWriter writes stereo blocks to a 16-bit PCM WAV stream.
type WAVWriter struct {
	enc *wav.Encoder
	buf *audio.IntBuffer
}

// NewWAVWriter constructs a WAVWriter that writes to w at the given sample
// rate. The caller must call Close to finish the stream.
func NewWAVWriter(w io.WriteSeeker, sampleRate int) *WAVWriter {
	const bitDepth, numChans, pcmFormat = 16, 2, 1
	return &WAVWriter{
		enc: wav.NewEncoder(w, sampleRate, bitDepth, numChans, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}
}

// WriteBlock interleaves and writes one block of samples. Samples are clipped
// to [-1, 1].
func (w *WAVWriter) WriteBlock(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel lengths differ (%d, %d)", len(left), len(right))
	}
	data := w.buf.Data[:0]
	for i := range left {
		data = append(data, toPCM16(left[i]), toPCM16(right[i]))
	}
	w.buf.Data = data
	return w.enc.Write(w.buf)
}

// WriteBus writes the samples of b.
func (w *WAVWriter) WriteBus(b *Bus) error { return w.WriteBlock(b.Left, b.Right) }

// Close finishes the stream, updating its headers. It does not close the
// underlying writer.
func (w *WAVWriter) Close() error { return w.enc.Close() }

func toPCM16(v float32) int {
	const scale = 32767
	if math.IsNaN(float64(v)) {
		return 0
	}
	v = min(max(v, -1), 1)
	return int(v * scale)
}
