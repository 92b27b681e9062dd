// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package ring implements a fixed-capacity single-producer, single-consumer
// byte queue with length-prefixed message framing.
//
// A Buffer is shared by exactly one writer and one reader, which may run on
// separate goroutines. Neither side locks or blocks: a write that does not fit
// reports false and leaves the buffer unchanged, and a read with no complete
// frame available reports false.
//
// Each framed message is stored as a 4-byte big-endian length followed by that
// many bytes of payload. The writer publishes its cursor only after the whole
// frame has been copied, so the reader never observes a partial frame. If the
// reader does see a length prefix without the corresponding payload, the
// framing invariant has been violated and the buffer reports a [CorruptError].
package ring

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// HeaderLen is the size in bytes of the length prefix on a framed message.
const HeaderLen = 4

// A Buffer is a fixed-capacity circular byte queue. The zero value is not
// ready for use; call [New] to construct one.
type Buffer struct {
	data []byte

	// The cursors count bytes written and read over the lifetime of the
	// buffer. They increase monotonically, so the amount of readable data is
	// always wpos - rpos, and the buffer can be filled to capacity.
	wpos atomic.Uint64 // written only by the writer
	_    [56]byte      // keep the cursors on separate cache lines
	rpos atomic.Uint64 // written only by the reader

	bad atomic.Pointer[CorruptError] // set once the reader detects corruption
}

// New constructs an empty buffer with the given capacity in bytes.
// It panics if capacity <= 0.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring: invalid capacity %d", capacity))
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap reports the capacity of b in bytes.
func (b *Buffer) Cap() int { return len(b.data) }

// AvailableWrite reports the number of bytes that can currently be written.
// Only the writer should rely on this value; the reader may concurrently
// increase it.
func (b *Buffer) AvailableWrite() int {
	return len(b.data) - int(b.wpos.Load()-b.rpos.Load())
}

// AvailableRead reports the number of bytes that can currently be read.
// Only the reader should rely on this value; the writer may concurrently
// increase it.
func (b *Buffer) AvailableRead() int {
	return int(b.wpos.Load() - b.rpos.Load())
}

// Write appends p to the buffer without framing. It reports false, and writes
// nothing, if fewer than len(p) bytes are available.
//
// Unframed writes are the caller's responsibility: mixing them with framed
// reads breaks message boundaries.
func (b *Buffer) Write(p []byte) bool {
	w := b.wpos.Load()
	if len(b.data)-int(w-b.rpos.Load()) < len(p) {
		return false
	}
	b.copyIn(w, p)
	b.wpos.Store(w + uint64(len(p)))
	return true
}

// WriteFramed appends p to the buffer with a 4-byte big-endian length prefix.
// It reports false, and writes nothing, if the buffer does not have room for
// the prefix and the payload together.
func (b *Buffer) WriteFramed(p []byte) bool {
	if uint64(len(p)) > 1<<32-1 {
		return false
	}
	w := b.wpos.Load()
	if len(b.data)-int(w-b.rpos.Load()) < HeaderLen+len(p) {
		return false
	}
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(p)))
	b.copyIn(w, hdr[:])
	b.copyIn(w+HeaderLen, p)
	b.wpos.Store(w + HeaderLen + uint64(len(p)))
	return true
}

// ReadFramed consumes the next framed message from b and appends its payload
// to dst[:0], returning the updated slice. If no frame header is available, it
// returns (dst[:0], false, nil). If dst has sufficient capacity, ReadFramed
// does not allocate.
//
// If the header declares more data than is readable, the buffer is corrupt:
// ReadFramed reports a *CorruptError, consumes nothing, and reports the same
// error on every subsequent call.
func (b *Buffer) ReadFramed(dst []byte) ([]byte, bool, error) {
	dst = dst[:0]
	if bad := b.bad.Load(); bad != nil {
		return dst, false, bad
	}
	r := b.rpos.Load()
	avail := int(b.wpos.Load() - r)
	if avail < HeaderLen {
		return dst, false, nil
	}
	var hdr [HeaderLen]byte
	b.copyOut(hdr[:], r)
	size := binary.BigEndian.Uint32(hdr[:])
	if uint64(size) > uint64(avail-HeaderLen) {
		bad := &CorruptError{Length: size, Available: avail - HeaderLen}
		b.bad.Store(bad)
		return dst, false, bad
	}
	n := int(size)
	if cap(dst) < n {
		dst = make([]byte, n)
	} else {
		dst = dst[:n]
	}
	b.copyOut(dst, r+HeaderLen)
	b.rpos.Store(r + HeaderLen + uint64(n))
	return dst, true, nil
}

// copyIn copies p into the buffer starting at logical position pos,
// wrapping around the end of the storage if necessary.
func (b *Buffer) copyIn(pos uint64, p []byte) {
	i := int(pos % uint64(len(b.data)))
	n := copy(b.data[i:], p)
	copy(b.data, p[n:])
}

// copyOut fills p from the buffer starting at logical position pos,
// wrapping around the end of the storage if necessary.
func (b *Buffer) copyOut(p []byte, pos uint64) {
	i := int(pos % uint64(len(b.data)))
	n := copy(p, b.data[i:])
	copy(p[n:], b.data)
}

// Writer returns the writing end of b.
func (b *Buffer) Writer() *Writer { return &Writer{b: b} }

// Reader returns the reading end of b.
func (b *Buffer) Reader() *Reader { return &Reader{b: b} }

// A Writer is the producer end of a Buffer. Only one goroutine at a time may
// use the writer of a given buffer.
type Writer struct{ b *Buffer }

// Write is a wrapper for [Buffer.Write].
func (w *Writer) Write(p []byte) bool { return w.b.Write(p) }

// WriteFramed is a wrapper for [Buffer.WriteFramed].
func (w *Writer) WriteFramed(p []byte) bool { return w.b.WriteFramed(p) }

// Available reports the number of bytes that can currently be written.
func (w *Writer) Available() int { return w.b.AvailableWrite() }

// Cap reports the capacity of the underlying buffer.
func (w *Writer) Cap() int { return w.b.Cap() }

// A Reader is the consumer end of a Buffer. Only one goroutine at a time may
// use the reader of a given buffer.
type Reader struct{ b *Buffer }

// ReadFramed is a wrapper for [Buffer.ReadFramed].
func (r *Reader) ReadFramed(dst []byte) ([]byte, bool, error) { return r.b.ReadFramed(dst) }

// Available reports the number of bytes that can currently be read.
func (r *Reader) Available() int { return r.b.AvailableRead() }

// Cap reports the capacity of the underlying buffer.
func (r *Reader) Cap() int { return r.b.Cap() }

// CorruptError is reported when a frame header declares more payload than
// the buffer contains. It indicates a broken producer, and is not recoverable
// for the buffer that reported it.
type CorruptError struct {
	Length    uint32 // the length declared by the frame header
	Available int    // the number of payload bytes actually readable
}

// Error satisfies the error interface.
func (c *CorruptError) Error() string {
	return fmt.Sprintf("ring: corrupt frame (length %d > %d bytes available)", c.Length, c.Available)
}
