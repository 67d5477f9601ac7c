package huff0

import (
	"fmt"

	"github.com/xsong93/zdec/internal/bitstream"
	"github.com/xsong93/zdec/internal/le"
)

// Decompress1X decodes a single stream of size symbols and appends them to dst.
// The stream must be consumed exactly.
func (t *Table) Decompress1X(dst, src []byte, size int) ([]byte, error) {
	if t == nil || len(t.dt) == 0 {
		return dst, fmt.Errorf("%w: no table loaded", ErrCorrupt)
	}
	var br bitstream.Reader
	if err := br.Init(src); err != nil {
		return dst, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	tableLog := t.TableLog
	for i := 0; i < size; i++ {
		br.Fill()
		v := t.dt[br.PeekBits(tableLog)]
		br.Advance(v.nBits)
		dst = append(dst, v.symbol)
		if br.Overread() {
			return dst, fmt.Errorf("%w: stream overrun after %d of %d symbols", ErrCorrupt, i+1, size)
		}
	}
	if err := br.Close(); err != nil {
		return dst, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return dst, nil
}

// Decompress4X decodes four streams preceded by a 6 byte jump table
// holding the sizes of the first three. The first three streams hold
// (size+3)/4 symbols each, the fourth the rest.
func (t *Table) Decompress4X(dst, src []byte, size int) ([]byte, error) {
	if len(src) < 6+4 {
		return dst, fmt.Errorf("%w: input too small", ErrCorrupt)
	}
	dstEvery := (size + 3) / 4
	last := size - 3*dstEvery
	if last < 0 {
		return dst, fmt.Errorf("%w: size %d too small for 4 streams", ErrCorrupt, size)
	}

	// Decode "jump table"
	start := 6
	var streams [4][]byte
	for i := 0; i < 3; i++ {
		length := int(le.Load16(src, i*2))
		if start+length >= len(src) {
			return dst, fmt.Errorf("%w: truncated input (or invalid offset)", ErrCorrupt)
		}
		streams[i] = src[start : start+length]
		start += length
	}
	streams[3] = src[start:]

	var err error
	for i, s := range streams {
		n := dstEvery
		if i == 3 {
			n = last
		}
		dst, err = t.Decompress1X(dst, s, n)
		if err != nil {
			return dst, fmt.Errorf("stream %d: %w", i+1, err)
		}
	}
	return dst, nil
}
