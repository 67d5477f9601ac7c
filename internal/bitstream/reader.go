// Package bitstream implements the two bit orders used by zstd entropy
// coded streams.
//
// Reader consumes a stream backwards, starting at the last byte, with the
// most significant bits read first. FSE and Huffman payloads are written
// this way. ForwardReader consumes bits from the first byte, least
// significant bit first, which is how FSE table descriptions are stored.
package bitstream

import (
	"errors"
	"math/bits"

	"github.com/xsong93/zdec/internal/le"
)

var (
	// ErrEmptyStream is returned when a reverse stream has no bytes.
	ErrEmptyStream = errors.New("bitstream: empty stream")

	// ErrMissingEndMark is returned when the last byte of a reverse stream is zero.
	ErrMissingEndMark = errors.New("bitstream: final byte is zero, end mark missing")

	// ErrOverread is returned when more bits were consumed than the stream holds.
	ErrOverread = errors.New("bitstream: read past end of stream")

	// ErrUnderread is returned when a stream was expected to be fully consumed.
	ErrUnderread = errors.New("bitstream: stream not fully consumed")
)

// Reader reads a bitstream in reverse.
// The zero value is not usable, call Init first.
type Reader struct {
	in       []byte
	off      int    // next byte to read is at in[off-1]
	value    uint64 // bits are consumed from the top
	bitsRead uint   // number of bits of value already consumed
}

// Init prepares the reader for in and skips the padding up to and
// including the highest set bit of the final byte.
func (b *Reader) Init(in []byte) error {
	if len(in) == 0 {
		return ErrEmptyStream
	}
	last := in[len(in)-1]
	if last == 0 {
		return ErrMissingEndMark
	}
	b.in = in
	b.off = len(in)
	b.value = 0
	b.bitsRead = 64
	b.Fill()
	b.Fill()
	b.bitsRead += 8 - uint(bits.Len8(last)-1)
	return nil
}

// Fill makes sure at least 32 bits are available, if the input holds them.
func (b *Reader) Fill() {
	if b.bitsRead < 32 {
		return
	}
	if b.off >= 4 {
		b.value = b.value<<32 | uint64(le.Load32(b.in, b.off-4))
		b.bitsRead -= 32
		b.off -= 4
		return
	}
	for b.off > 0 && b.bitsRead >= 8 {
		b.value = b.value<<8 | uint64(b.in[b.off-1])
		b.bitsRead -= 8
		b.off--
	}
}

// GetBits returns the next n bits, n <= 32.
// Fill must have been called so n bits are buffered. Reading past the end
// returns zero bits and is reported by Overread.
func (b *Reader) GetBits(n uint8) uint32 {
	if n == 0 {
		return 0
	}
	v := (b.value << b.bitsRead) >> (64 - uint(n))
	b.bitsRead += uint(n)
	return uint32(v)
}

// PeekBits returns the next n bits without consuming them, 0 < n <= 32.
func (b *Reader) PeekBits(n uint8) uint32 {
	return uint32((b.value << b.bitsRead) >> (64 - uint(n)))
}

// Advance consumes n bits.
func (b *Reader) Advance(n uint8) {
	b.bitsRead += uint(n)
}

// Remaining returns the number of bits left, negative after an overread.
func (b *Reader) Remaining() int {
	return b.off*8 + 64 - int(b.bitsRead)
}

// Overread reports whether more bits were consumed than the stream holds.
func (b *Reader) Overread() bool {
	return b.Remaining() < 0
}

// Close releases the input and returns an error unless the stream was
// consumed exactly.
func (b *Reader) Close() error {
	b.in = nil
	switch r := b.Remaining(); {
	case r < 0:
		return ErrOverread
	case r > 0:
		return ErrUnderread
	}
	return nil
}
