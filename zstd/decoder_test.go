package zstd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"testing/iotest"

	refzstd "github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsong93/zdec/internal/le"
)

func testEncode(t testing.TB, in []byte, opts ...refzstd.EOption) []byte {
	t.Helper()
	opts = append([]refzstd.EOption{refzstd.WithEncoderConcurrency(1)}, opts...)
	enc, err := refzstd.NewWriter(nil, opts...)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(in, nil)
}

func testInputs() map[string][]byte {
	mixed := append(testText(50000, 3), testRandom(20000, 4)...)
	mixed = append(mixed, bytes.Repeat([]byte{0}, 70000)...)
	mixed = append(mixed, testText(100000, 5)...)
	return map[string][]byte{
		"small":  []byte("abcabcabcabcabcabcabcabc"),
		"text":   testText(20000, 1),
		"large":  testText(600000, 2),
		"random": testRandom(300000, 6),
		"zeros":  make([]byte, 400000),
		"mixed":  mixed,
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	levels := []refzstd.EncoderLevel{
		refzstd.SpeedFastest,
		refzstd.SpeedDefault,
		refzstd.SpeedBetterCompression,
		refzstd.SpeedBestCompression,
	}
	for name, in := range testInputs() {
		for _, level := range levels {
			t.Run(fmt.Sprintf("%s/%s", name, level), func(t *testing.T) {
				comp := testEncode(t, in, refzstd.WithEncoderLevel(level))
				got, err := decodeAll(t, comp)
				require.NoError(t, err)
				require.True(t, bytes.Equal(in, got), "output mismatch, got %d bytes, want %d", len(got), len(in))
			})
		}
	}
}

func TestDecoderRoundTripOptions(t *testing.T) {
	in := testInputs()["mixed"]
	tests := map[string][]refzstd.EOption{
		"small window":      {refzstd.WithWindowSize(1 << 12)},
		"window 64k":        {refzstd.WithWindowSize(1 << 16), refzstd.WithEncoderLevel(refzstd.SpeedBestCompression)},
		"crc":               {refzstd.WithEncoderCRC(true)},
		"no crc":            {refzstd.WithEncoderCRC(false)},
		"single segment":    {refzstd.WithSingleSegment(true)},
		"no single segment": {refzstd.WithSingleSegment(false)},
		"raw literals":      {refzstd.WithNoEntropyCompression(true)},
		"all literals":      {refzstd.WithAllLitEntropyCompression(true)},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			comp := testEncode(t, in, opts...)
			for _, lowMem := range []bool{true, false} {
				got, err := decodeAll(t, comp, WithDecoderLowmem(lowMem))
				require.NoError(t, err)
				require.True(t, bytes.Equal(in, got), "lowmem %v: output mismatch", lowMem)
			}
		})
	}
}

func TestDecoderZeroFrames(t *testing.T) {
	comp := testEncode(t, nil, refzstd.WithZeroFrames(true))
	require.NotEmpty(t, comp)
	got, err := decodeAll(t, comp)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecoderChecksumRecorded(t *testing.T) {
	in := testText(1000, 9)
	comp := testEncode(t, in, refzstd.WithEncoderCRC(true))
	f := newFrameDec(testOptions(t))
	br := byteBuf(comp)
	require.NoError(t, f.reset(&br))
	require.True(t, f.HasCheckSum)
	got, err := f.runDecoder(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, le.Load32(comp, len(comp)-4), f.Checksum)
	assert.Empty(t, br.remain())
}

func testOptions(t testing.TB, opts ...DOption) decoderOptions {
	var o decoderOptions
	o.setDefault()
	for _, opt := range opts {
		require.NoError(t, opt(&o))
	}
	return o
}

func TestDecoderReader(t *testing.T) {
	in := testInputs()["mixed"]
	comp := testEncode(t, in)
	for _, n := range []int{1, 3} {
		t.Run(fmt.Sprint("concurrency-", n), func(t *testing.T) {
			dec, err := NewReader(bytes.NewReader(comp), WithDecoderConcurrency(n))
			require.NoError(t, err)
			defer dec.Close()
			got, err := io.ReadAll(iotest.OneByteReader(dec))
			require.NoError(t, err)
			require.True(t, bytes.Equal(in, got))

			// Reset to a short reader
			require.NoError(t, dec.Reset(iotest.HalfReader(bytes.NewReader(comp))))
			var buf bytes.Buffer
			written, err := dec.WriteTo(&buf)
			require.NoError(t, err)
			assert.EqualValues(t, len(in), written)
			require.True(t, bytes.Equal(in, buf.Bytes()))

			// Reset while output is pending
			require.NoError(t, dec.Reset(bytes.NewReader(comp)))
			_, err = dec.Read(make([]byte, 100))
			require.NoError(t, err)
			require.NoError(t, dec.Reset(bytes.NewReader(helloFrame)))
			got, err = io.ReadAll(dec)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(got))
		})
	}
}

func TestDecoderReaderErrors(t *testing.T) {
	for _, n := range []int{1, 2} {
		in := append(bytes.Clone(helloFrame), helloFrame[:10]...)
		dec, err := NewReader(bytes.NewReader(in), WithDecoderConcurrency(n))
		require.NoError(t, err)
		got, err := io.ReadAll(dec)
		assert.ErrorIs(t, err, ErrTruncated)
		assert.Equal(t, "hello", string(got))

		// The error sticks.
		_, err = dec.Read(make([]byte, 10))
		assert.ErrorIs(t, err, ErrTruncated)

		require.NoError(t, dec.Reset(nil))
		_, err = dec.Read(make([]byte, 10))
		assert.ErrorIs(t, err, ErrDecoderNilInput)
		dec.Close()

		_, err = dec.Read(make([]byte, 10))
		assert.ErrorIs(t, err, ErrDecoderClosed)
		_, err = dec.DecodeAll(helloFrame, nil)
		assert.ErrorIs(t, err, ErrDecoderClosed)
		assert.ErrorIs(t, dec.Reset(bytes.NewReader(helloFrame)), ErrDecoderClosed)
	}
}

type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n < len(p) {
		n := w.n
		w.n = 0
		return n, errors.New("write failed")
	}
	w.n -= len(p)
	return len(p), nil
}

func TestDecoderWriteToError(t *testing.T) {
	comp := testEncode(t, testText(300000, 8))
	dec, err := NewReader(bytes.NewReader(comp), WithDecoderConcurrency(2))
	require.NoError(t, err)
	defer dec.Close()
	n, err := dec.WriteTo(&failWriter{n: 150000})
	assert.EqualError(t, err, "write failed")
	assert.EqualValues(t, 150000, n)
}

func testConcatenated(t testing.TB) (comp, want []byte) {
	for i := 0; i < 6; i++ {
		in := testText(10000+i*7000, int64(10+i))
		if i == 2 {
			in = testRandom(5000, 2)
		}
		want = append(want, in...)
		comp = append(comp, testEncode(t, in, refzstd.WithEncoderCRC(i%2 == 0))...)
		if i == 3 {
			// skippable frame between frames
			comp = append(comp, 0x51, 0x2a, 0x4d, 0x18, 3, 0, 0, 0, 1, 2, 3)
		}
	}
	return comp, want
}

func TestDecoderConcurrentFrames(t *testing.T) {
	comp, want := testConcatenated(t)
	assert.Len(t, splitFrames(comp), 6)
	for _, n := range []int{1, 2, 4, 8} {
		got, err := decodeAll(t, comp, WithDecoderConcurrency(n))
		require.NoError(t, err, "concurrency %d", n)
		require.True(t, bytes.Equal(want, got), "concurrency %d", n)
	}

	// The same decoder may be used from several goroutines.
	dec, err := NewReader(nil, WithDecoderConcurrency(3))
	require.NoError(t, err)
	defer dec.Close()
	errs := make(chan error, 8)
	for i := 0; i < cap(errs); i++ {
		go func() {
			got, err := dec.DecodeAll(comp, nil)
			if err == nil && !bytes.Equal(want, got) {
				err = errors.New("output mismatch")
			}
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		assert.NoError(t, <-errs)
	}
}

func TestDecoderConcurrentFramesError(t *testing.T) {
	comp, _ := testConcatenated(t)
	frames := splitFrames(comp)
	require.Len(t, frames, 6)

	// Mark the literals of the second frame as reusing a Huffman table
	// that does not exist. Block sizes are untouched, so it still splits.
	var bad []byte
	for i, f := range frames {
		f = bytes.Clone(f)
		if i == 1 {
			var h Header
			require.NoError(t, h.Decode(f))
			require.Equal(t, blockTypeCompressed, blockType((f[h.HeaderSize]>>1)&3))
			f[h.HeaderSize+3] |= 3
		}
		bad = append(bad, f...)
	}
	require.Len(t, splitFrames(bad), 6)

	first, err := decodeAll(t, frames[0])
	require.NoError(t, err)

	seqOut, seqErr := decodeAll(t, bad, WithDecoderConcurrency(1))
	require.Error(t, seqErr)
	assert.Equal(t, first, seqOut)
	for _, n := range []int{2, 4} {
		got, err := decodeAll(t, bad, WithDecoderConcurrency(n))
		require.Error(t, err)
		assert.Equal(t, seqErr.Error(), err.Error())
		assert.Equal(t, first, got)
	}
}

func TestDecoderContext(t *testing.T) {
	comp := testEncode(t, testText(500000, 7))
	dec, err := NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dec.DecodeAllContext(ctx, comp, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoderMaxMemory(t *testing.T) {
	in := testText(5000, 1)
	comp := testEncode(t, in, refzstd.WithSingleSegment(true))
	_, err := decodeAll(t, comp, WithDecoderMaxMemory(1000))
	assert.ErrorIs(t, err, ErrDecoderSizeExceeded)

	got, err := decodeAll(t, comp, WithDecoderMaxMemory(5000))
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// Without a declared size the limit triggers while decoding.
	noFCS := testFrame([]byte{0x00, 0x00},
		testBlockHeader(false, blockTypeRaw, 600), in[:600],
		testBlockHeader(true, blockTypeRaw, 600), in[600:1200])
	_, err = decodeAll(t, noFCS, WithDecoderMaxMemory(1100))
	assert.ErrorIs(t, err, ErrDecoderSizeExceeded)
	got, err = decodeAll(t, noFCS, WithDecoderMaxMemory(1200))
	require.NoError(t, err)
	assert.Equal(t, in[:1200], got)
}

func TestDecoderMaxWindow(t *testing.T) {
	in := testText(100000, 1)
	comp := testEncode(t, in, refzstd.WithWindowSize(1<<16), refzstd.WithSingleSegment(false))
	var h Header
	require.NoError(t, h.Decode(comp))
	require.False(t, h.SingleSegment)
	require.Greater(t, h.WindowSize, uint64(1<<15))

	_, err := decodeAll(t, comp, WithDecoderMaxWindow(1<<15))
	assert.ErrorIs(t, err, ErrWindowSizeExceeded)
	assert.ErrorIs(t, err, ErrUnsupported)
	got, err := decodeAll(t, comp, WithDecoderMaxWindow(h.WindowSize))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
