package zstd

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/xsong93/zdec/internal/le"
)

// Decoder provides decoding of zstandard streams.
// The decoder has been designed to operate without allocations after a warmup.
// This means that you should store the decoder for best performance.
// To re-use a stream decoder, use the Reset(r io.Reader) error to switch to another stream.
// A decoder can safely be re-used even if the previous stream failed.
// To release the resources, you must call the Close() function on a decoder.
type Decoder struct {
	o decoderOptions

	// Unreferenced decoders, ready for use by DecodeAll.
	decoders chan *frameDec

	// Frame decoder used for streams.
	streamFrame *frameDec

	// Streams ready to be decoded.
	stream *streamDec

	// Current read position used for Reader functionality.
	current decoderState
}

// decoderState is used for maintaining state when the decoder
// is used for streaming.
type decoderState struct {
	// current block being written to stream.
	decodeOutput

	// output in order to be written to stream.
	// nil when blocks are decoded on demand.
	output chan decodeOutput

	// cancel remaining output.
	cancel context.CancelFunc
	eg     *errgroup.Group
}

type decodeOutput struct {
	b   []byte
	err error
}

var (
	// Check the interfaces we want to support.
	_ = io.WriterTo(&Decoder{})
	_ = io.Reader(&Decoder{})
)

// NewReader creates a new decoder.
// A nil Reader can be provided in which case Reset can be used to start a decode.
//
// A Decoder can be used in two modes:
//
// 1) As a stream, or
// 2) For stateless decoding using DecodeAll.
//
// Only a single stream can be decoded concurrently, but the same decoder
// can run multiple concurrent stateless decodes. It is even possible to
// use stateless decodes while a stream is being decoded.
//
// The Reset function can be used to initiate a new stream, which will considerably
// reduce the allocations normally caused by NewReader.
func NewReader(r io.Reader, opts ...DOption) (*Decoder, error) {
	var d Decoder
	d.o.setDefault()
	for _, o := range opts {
		err := o(&d.o)
		if err != nil {
			return nil, err
		}
	}
	if d.o.maxWindowSize > d.o.maxDecodedSize {
		d.o.maxWindowSize = d.o.maxDecodedSize
	}

	// Create decoders
	d.decoders = make(chan *frameDec, d.o.concurrent)
	for i := 0; i < d.o.concurrent; i++ {
		d.decoders <- newFrameDec(d.o)
	}
	d.streamFrame = newFrameDec(d.o)

	if r == nil {
		d.current.err = ErrDecoderNilInput
		return &d, nil
	}
	return &d, d.Reset(r)
}

// Read bytes from the decompressed stream into p.
// Returns the number of bytes written and any error that occurred.
// When the stream is done, io.EOF will be returned.
func (d *Decoder) Read(p []byte) (int, error) {
	var n int
	for {
		if len(d.current.b) > 0 {
			filled := copy(p, d.current.b)
			p = p[filled:]
			d.current.b = d.current.b[filled:]
			n += filled
		}
		if len(p) == 0 {
			break
		}
		if len(d.current.b) == 0 {
			// We have an error and no more data
			if d.current.err != nil {
				break
			}
			d.nextBlock()
		}
	}
	if len(d.current.b) > 0 {
		// Only return error at end of block
		return n, nil
	}
	if d.current.err != nil {
		d.drainOutput()
	}
	if debugDecoder {
		println("returning", n, d.current.err, len(d.decoders))
	}
	return n, d.current.err
}

// Reset will reset the decoder the supplied stream after the current has finished processing.
// Note that this functionality cannot be used after Close has been called.
// Reset can be called with a nil reader to release references to the previous reader.
// After being called with a nil reader, no other operations than Reset or DecodeAll or Close
// should be used.
func (d *Decoder) Reset(r io.Reader) error {
	if d.current.err == ErrDecoderClosed {
		return d.current.err
	}
	d.drainOutput()

	if r == nil {
		d.current.err = ErrDecoderNilInput
		d.stream = nil
		return nil
	}
	d.current.decodeOutput = decodeOutput{}

	size := 64 << 10
	if d.o.lowMem {
		size = 4 << 10
	}
	d.stream = &streamDec{
		br:    newReaderWrapper(r, size),
		frame: d.streamFrame,
	}
	if d.o.concurrent > 1 {
		d.startStreamDecoder()
	}
	return nil
}

// drainOutput will stop the read-ahead decoder and drop any pending output.
func (d *Decoder) drainOutput() {
	if d.current.cancel == nil {
		return
	}
	d.current.cancel()
	for range d.current.output {
	}
	if err := d.current.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		println("stream decoder returned", err)
	}
	d.current.cancel = nil
	d.current.output = nil
	d.current.eg = nil
}

// startStreamDecoder starts a goroutine decoding blocks ahead of Read.
// At most d.o.concurrent decoded blocks are buffered.
func (d *Decoder) startStreamDecoder() {
	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	output := make(chan decodeOutput, d.o.concurrent)
	stream := d.stream
	eg.Go(func() error {
		defer close(output)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := stream.nextBlock()
			o := decodeOutput{err: err}
			if len(b) > 0 {
				// The block buffer is reused for the next block.
				o.b = append(make([]byte, 0, len(b)), b...)
			}
			select {
			case output <- o:
			case <-ctx.Done():
				return ctx.Err()
			}
			if err != nil {
				return nil
			}
		}
	})
	d.current.output = output
	d.current.cancel = cancel
	d.current.eg = eg
}

// WriteTo writes data to w until there's no more data to write or when an error occurs.
// The return value n is the number of bytes written.
// Any error encountered during the write is also returned.
func (d *Decoder) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for {
		if len(d.current.b) > 0 {
			n2, err2 := w.Write(d.current.b)
			n += int64(n2)
			if err2 == nil && n2 != len(d.current.b) {
				err2 = io.ErrShortWrite
			}
			d.current.b = d.current.b[n2:]
			if err2 != nil {
				d.current.err = err2
				d.drainOutput()
				return n, err2
			}
		}
		if d.current.err != nil {
			break
		}
		d.nextBlock()
	}
	err := d.current.err
	if err != nil {
		d.drainOutput()
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// nextBlock moves the next decoded block to d.current.
// If an error occurs d.current.err will be set.
func (d *Decoder) nextBlock() {
	if d.current.err != nil {
		// Keep error state.
		return
	}
	if d.current.output == nil {
		b, err := d.stream.nextBlock()
		d.current.decodeOutput = decodeOutput{b: b, err: err}
		return
	}
	o, ok := <-d.current.output
	if !ok {
		o.err = io.ErrUnexpectedEOF
	}
	d.current.decodeOutput = o
}

// DecodeAll allows stateless decoding of a blob of bytes.
// Output will be appended to dst, so if the destination size is known
// you can pre-allocate the destination slice to avoid allocations.
// DecodeAll can be used concurrently.
// The Decoder concurrency limits will be respected.
func (d *Decoder) DecodeAll(input, dst []byte) ([]byte, error) {
	return d.DecodeAllContext(context.Background(), input, dst)
}

// DecodeAllContext is DecodeAll with a context.
// The context is checked between blocks, and an error from the
// context will stop decoding.
func (d *Decoder) DecodeAllContext(ctx context.Context, input, dst []byte) ([]byte, error) {
	if d.decoders == nil {
		return dst, ErrDecoderClosed
	}
	if d.o.concurrent > 1 {
		if frames := splitFrames(input); len(frames) > 1 {
			return d.decodeFrames(ctx, frames, dst)
		}
	}

	// Grab a block decoder and frame decoder.
	frame := <-d.decoders
	if frame == nil {
		return dst, ErrDecoderClosed
	}
	defer func() {
		if debugDecoder {
			printf("re-adding frame decoder %p", frame)
		}
		d.decoders <- frame
	}()

	start := len(dst)
	br := byteBuf(input)
	for {
		err := frame.reset(&br)
		if err == io.EOF {
			if debugDecoder {
				println("frame reset return EOF")
			}
			return dst, nil
		}
		if err != nil {
			return dst, err
		}
		dst, err = frame.runDecoder(ctx, dst)
		if err != nil {
			return dst, err
		}
		if uint64(len(dst)-start) > d.o.maxDecodedSize {
			return dst, ErrDecoderSizeExceeded
		}
	}
}

// decodeFrames decodes independent frames concurrently and appends
// the output in order. Output of frames before the first failing frame
// is kept.
func (d *Decoder) decodeFrames(ctx context.Context, frames [][]byte, dst []byte) ([]byte, error) {
	outs := make([][]byte, len(frames))
	errs := make([]error, len(frames))

	// Index of the first failed frame. Frames after it are not started.
	var failed atomic.Int64
	failed.Store(int64(len(frames)))
	setFailed := func(i int) {
		for {
			cur := failed.Load()
			if int64(i) >= cur || failed.CompareAndSwap(cur, int64(i)) {
				return
			}
		}
	}

	var eg errgroup.Group
	eg.SetLimit(d.o.concurrent)
	for i, input := range frames {
		eg.Go(func() error {
			if int64(i) > failed.Load() {
				return nil
			}
			frame := <-d.decoders
			if frame == nil {
				errs[i] = ErrDecoderClosed
				setFailed(i)
				return nil
			}
			defer func() { d.decoders <- frame }()
			br := byteBuf(input)
			if err := frame.reset(&br); err != nil {
				errs[i] = err
				setFailed(i)
				return nil
			}
			outs[i], errs[i] = frame.runDecoder(ctx, nil)
			if errs[i] != nil {
				setFailed(i)
			}
			return nil
		})
	}
	_ = eg.Wait()

	start := len(dst)
	for i := range frames {
		dst = append(dst, outs[i]...)
		if err := errs[i]; err != nil {
			return dst, err
		}
		if uint64(len(dst)-start) > d.o.maxDecodedSize {
			return dst, ErrDecoderSizeExceeded
		}
	}
	return dst, nil
}

// splitFrames returns the frames of input without decoding them.
// Skippable frames are left out. nil is returned if input cannot be split
// cleanly, in which case the input is decoded in order to report the error.
func splitFrames(input []byte) [][]byte {
	var frames [][]byte
	for len(input) > 0 {
		var h Header
		if err := h.Decode(input); err != nil {
			return nil
		}
		if h.Skippable {
			n := 8 + int64(h.SkippableSize)
			if n > int64(len(input)) {
				return nil
			}
			input = input[n:]
			continue
		}
		pos := h.HeaderSize
		for {
			if pos+3 > len(input) {
				return nil
			}
			bh := le.Load24(input, pos)
			pos += 3
			size := int(bh >> 3)
			switch blockType((bh >> 1) & 3) {
			case blockTypeRLE:
				size = 1
			case blockTypeReserved:
				return nil
			}
			pos += size
			if pos > len(input) {
				return nil
			}
			if bh&1 != 0 {
				break
			}
		}
		if h.HasCheckSum {
			pos += 4
			if pos > len(input) {
				return nil
			}
		}
		frames = append(frames, input[:pos])
		input = input[pos:]
	}
	return frames
}

// Close will release all resources.
// It is NOT possible to reuse the decoder after this.
func (d *Decoder) Close() {
	if d.current.err == ErrDecoderClosed {
		return
	}
	d.drainOutput()
	if d.decoders != nil {
		close(d.decoders)
		for range d.decoders {
		}
		d.decoders = nil
	}
	d.stream = nil
	d.current.decodeOutput = decodeOutput{err: ErrDecoderClosed}
}

// IOReadCloser returns the decoder as an io.ReadCloser for convenience.
// Any changes to the decoder will be reflected, so the returned ReadCloser
// can be reused along with the decoder.
// io.WriterTo is also supported by the returned ReadCloser.
func (d *Decoder) IOReadCloser() io.ReadCloser {
	return closeWrapper{d: d}
}

// closeWrapper wraps a function call as a closer.
type closeWrapper struct {
	d *Decoder
}

// WriteTo forwards WriteTo calls to the decoder.
func (c closeWrapper) WriteTo(w io.Writer) (n int64, err error) {
	return c.d.WriteTo(w)
}

// Read forwards read calls to the decoder.
func (c closeWrapper) Read(p []byte) (n int, err error) {
	return c.d.Read(p)
}

// Close closes the decoder.
func (c closeWrapper) Close() error {
	c.d.Close()
	return nil
}

// streamDec decodes consecutive frames from a byte source, one block at a time.
type streamDec struct {
	br      byteBuffer
	frame   *frameDec
	inFrame bool
}

// nextBlock returns the output of the next block.
// The returned slice is only valid until the next call.
// io.EOF is returned when the input ends between frames.
func (s *streamDec) nextBlock() ([]byte, error) {
	if !s.inFrame {
		if err := s.frame.reset(s.br); err != nil {
			return nil, err
		}
		s.inFrame = true
	}
	s.frame.rawInput = s.br
	done, err := s.frame.next()
	if done {
		s.inFrame = false
	}
	if err != nil && !done {
		return nil, err
	}
	return s.frame.block.dst, err
}
