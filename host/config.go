// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

// Config carries settings for an [Instance]. A zero Config is ready for use
// and selects the defaults described on each field.
type Config struct {
	// BlockSize is the number of samples processed by each call to Run, and
	// the value written to the buffer size port. If zero, DefaultBlockSize.
	BlockSize int

	// SampleRate is the sample rate of rendered audio, in Hz.
	// If zero, DefaultSampleRate.
	SampleRate int

	// OutEventCapacity is the capacity in bytes of the ring buffer the host
	// allocates for each event output port. If zero, DefaultOutEventCapacity.
	OutEventCapacity int

	// Logger receives log output. If nil, NopLogger.
	Logger Logger
}

const (
	DefaultBlockSize        = 256
	DefaultSampleRate       = 48000
	DefaultOutEventCapacity = 4096
)

func (c Config) blockSize() int {
	if c.BlockSize <= 0 {
		return DefaultBlockSize
	}
	return c.BlockSize
}

func (c Config) sampleRate() int {
	if c.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return c.SampleRate
}

func (c Config) outEventCapacity() int {
	if c.OutEventCapacity <= 0 {
		return DefaultOutEventCapacity
	}
	return c.OutEventCapacity
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return NopLogger
	}
	return c.Logger
}
