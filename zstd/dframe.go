package zstd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/kr/pretty"

	"github.com/xsong93/zdec/internal/le"
)

const (
	frameMagic = 0xFD2FB528

	skippableFrameMagic = 0x184D2A50
	skippableFrameMask  = 0xFFFFFFF0

	// The minimum Window_Size is 1 KB.
	minWindowSize = 1 << 10

	// fcsUnknown is used when the frame does not declare its content size.
	fcsUnknown = ^uint64(0)

	// Declared content sizes up to this are allocated before decoding.
	maxFCSPrealloc = 16 << 20
)

// frameHeader holds the fields of a frame header that drive decoding.
type frameHeader struct {
	WindowSize       uint64
	FrameContentSize uint64
	DictionaryID     uint32
	HasFCS           bool
	HasCheckSum      bool
	SingleSegment    bool
}

// frameHeaderSize returns the number of header bytes following the
// frame header descriptor fhd.
func frameHeaderSize(fhd byte) int {
	singleSegment := fhd&(1<<5) != 0
	n := 0
	if !singleSegment {
		n++
	}
	n += [4]int{0, 1, 2, 4}[fhd&3]
	switch fhd >> 6 {
	case 0:
		if singleSegment {
			n++
		}
	case 1:
		n += 2
	case 2:
		n += 4
	case 3:
		n += 8
	}
	return n
}

// parse the fields following the frame header descriptor fhd.
// b must be frameHeaderSize(fhd) bytes.
// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#frame_header
func (h *frameHeader) parse(fhd byte, b []byte) error {
	if fhd&(1<<3) != 0 {
		return fmt.Errorf("%w: frame header descriptor 0x%02x", ErrReservedBits, fhd)
	}
	*h = frameHeader{
		SingleSegment: fhd&(1<<5) != 0,
		HasCheckSum:   fhd&(1<<2) != 0,
	}

	// Read Window_Descriptor
	// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#window_descriptor
	if !h.SingleSegment {
		wd := b[0]
		b = b[1:]
		windowLog := 10 + (wd >> 3)
		windowBase := uint64(1) << windowLog
		windowAdd := (windowBase / 8) * uint64(wd&0x7)
		h.WindowSize = windowBase + windowAdd
	}

	// Read Dictionary_ID
	// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#dictionary_id
	if size := [4]int{0, 1, 2, 4}[fhd&3]; size != 0 {
		h.DictionaryID = uint32(le.LoadN(b[:size]))
		b = b[size:]
	}

	// Read Frame_Content_Size
	// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#frame_content_size
	h.FrameContentSize = fcsUnknown
	if len(b) > 0 {
		h.HasFCS = true
		h.FrameContentSize = le.LoadN(b)
		if len(b) == 2 {
			// When FCS_Field_Size is 2, the offset of 256 is added.
			h.FrameContentSize += 256
		}
	}
	if h.SingleSegment {
		h.WindowSize = h.FrameContentSize
	}
	return nil
}

// String returns the header fields on one line.
func (h frameHeader) String() string {
	return pretty.Sprint(h)
}

// blockMax returns the maximum decoded size of a block in the frame.
func (h *frameHeader) blockMax() int {
	if h.WindowSize < maxCompressedBlockSize {
		return int(h.WindowSize)
	}
	return maxCompressedBlockSize
}

type frameDec struct {
	o        decoderOptions
	rawInput byteBuffer
	block    *blockDec

	frameHeader

	// Checksum read after the last block, when present. Not verified.
	Checksum uint32

	// decoded bytes of the current frame
	produced uint64

	// Frame history passed between blocks
	history history
}

func newFrameDec(o decoderOptions) *frameDec {
	return &frameDec{
		o:     o,
		block: newBlockDec(o.lowMem),
	}
}

// reset will read the frame header and prepare for block decoding.
// Skippable frames in front of the frame are consumed.
// If nothing can be read from the input, io.EOF will be returned.
// Any other error indicated that the stream contained data, but
// there was a problem.
func (d *frameDec) reset(br byteBuffer) error {
	d.rawInput = br
	d.produced = 0
	d.Checksum = 0
	for {
		b, err := br.readSmall(4)
		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			println("Reading Frame Magic", err)
			return truncated("frame magic", err)
		}
		magic := le.Load32(b, 0)
		if magic == frameMagic {
			break
		}
		if magic&skippableFrameMask != skippableFrameMagic {
			if debugDecoder {
				println("Got magic numbers: ", hex.EncodeToString(b), "want:", frameMagic)
			}
			return fmt.Errorf("%w: got 0x%08x", ErrMagicMismatch, magic)
		}
		// Read size to skip
		b, err = br.readSmall(4)
		if err != nil {
			println("Reading Frame Size", err)
			return truncated("skippable frame size", err)
		}
		n := le.Load32(b, 0)
		println("Skipping frame with", n, "bytes.")
		if err := br.skipN(int64(n)); err != nil {
			println("Reading discarded frame", err)
			return truncated("skippable frame", err)
		}
	}

	// Read Frame_Header_Descriptor
	fhd, err := br.readByte()
	if err != nil {
		println("Reading Frame_Header_Descriptor", err)
		return truncated("frame header descriptor", io.ErrUnexpectedEOF)
	}
	b, err := br.readSmall(frameHeaderSize(fhd))
	if err != nil {
		println("Reading frame header", err)
		return truncated("frame header", io.ErrUnexpectedEOF)
	}
	if err := d.frameHeader.parse(fhd, b); err != nil {
		return err
	}
	if debugDecoder {
		println("frame header:", d.frameHeader)
	}
	if d.DictionaryID != 0 {
		return fmt.Errorf("%w: id %d in %v", ErrUnknownDictionary, d.DictionaryID, d.frameHeader)
	}
	if d.HasFCS && d.FrameContentSize > d.o.maxDecodedSize {
		return fmt.Errorf("%w: frame content size %d > %d", ErrDecoderSizeExceeded, d.FrameContentSize, d.o.maxDecodedSize)
	}
	if d.WindowSize > d.o.maxWindowSize {
		printf("window size %d > max %d\n", d.WindowSize, d.o.maxWindowSize)
		return fmt.Errorf("%w: %d > %d in %v", ErrWindowSizeExceeded, d.WindowSize, d.o.maxWindowSize, d.frameHeader)
	}
	d.history.reset(int(d.WindowSize), d.o.lowMem)
	return nil
}

// next decodes the next block of the frame into d.block.dst.
// done is true after the last block of the frame was decoded.
func (d *frameDec) next() (done bool, err error) {
	dec := d.block
	if err := dec.reset(d.rawInput, d.blockMax()); err != nil {
		println("block error:", err)
		return false, err
	}
	if dec.Last && d.HasCheckSum {
		// Read the checksum before decoding so a short read leaves the history untouched.
		b, err := d.rawInput.readSmall(4)
		if err != nil {
			println("CRC missing?", err)
			return false, truncated("frame checksum", err)
		}
		d.Checksum = le.Load32(b, 0)
	}
	if debugDecoder {
		println("next block:", dec)
	}
	if err := dec.decodeBuf(&d.history); err != nil {
		return false, err
	}
	d.produced += uint64(len(dec.dst))
	if d.produced > d.o.maxDecodedSize {
		return false, fmt.Errorf("%w: %d > %d", ErrDecoderSizeExceeded, d.produced, d.o.maxDecodedSize)
	}
	if d.HasFCS && d.produced > d.FrameContentSize {
		return false, fmt.Errorf("%w: got %d > %d", ErrFrameSizeMismatch, d.produced, d.FrameContentSize)
	}
	if !dec.Last {
		return false, nil
	}
	if d.HasFCS && d.produced != d.FrameContentSize {
		return true, fmt.Errorf("%w: got %d, want %d", ErrFrameSizeMismatch, d.produced, d.FrameContentSize)
	}
	return true, nil
}

// runDecoder decodes the remaining blocks of the frame and appends the output to dst.
// The context is checked between blocks.
func (d *frameDec) runDecoder(ctx context.Context, dst []byte) ([]byte, error) {
	if d.HasFCS && uint64(cap(dst)-len(dst)) < d.FrameContentSize && d.FrameContentSize <= maxFCSPrealloc {
		// Grow once when the size is known.
		dst = append(dst, make([]byte, d.FrameContentSize)...)[:len(dst)]
	}
	for {
		if err := ctx.Err(); err != nil {
			return dst, err
		}
		done, err := d.next()
		if err != nil {
			if done {
				dst = append(dst, d.block.dst...)
			}
			return dst, err
		}
		dst = append(dst, d.block.dst...)
		if done {
			return dst, nil
		}
	}
}
