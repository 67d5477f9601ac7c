package zstd

import (
	"fmt"

	"github.com/xsong93/zdec/internal/le"
)

// HeaderMaxSize is the maximum size of a Frame and Block Header.
// If less is sent to Header.Decode it *may* still contain enough information.
const HeaderMaxSize = 4 + 1 + 1 + 4 + 8 + 3

// Header contains information about the first frame and block within that.
type Header struct {
	// SingleSegment specifies whether the data is to be decompressed into a
	// single contiguous memory segment.
	// It implies that WindowSize is invalid and that FrameContentSize is valid.
	SingleSegment bool

	// WindowSize is the window of data to keep while decoding.
	// Will only be set if SingleSegment is false.
	WindowSize uint64

	// Dictionary ID.
	// If 0, no dictionary.
	DictionaryID uint32

	// HasFCS specifies whether FrameContentSize has a valid value.
	HasFCS bool

	// FrameContentSize is the expected uncompressed size of the entire frame.
	FrameContentSize uint64

	// Skippable will be true if the frame is meant to be skipped.
	// This implies that FirstBlock.OK is false.
	Skippable bool

	// SkippableID is the user-specific ID for the skippable frame.
	// Valid values are between 0 to 15, inclusive.
	SkippableID int

	// SkippableSize is the length of the user data to skip following
	// the header.
	SkippableSize uint32

	// HeaderSize is the raw size of the frame header.
	//
	// For normal frames, it includes the size of the magic number and
	// the size of the header (per section 3.1.1.1).
	// It does not include the size for any data blocks (section 3.1.1.2) nor
	// the size for the trailing content checksum.
	//
	// For skippable frames, this counts the size of the magic number
	// along with the size of the size field of the payload.
	// It does not include the size of the skippable payload itself.
	// The total frame size is the HeaderSize plus the SkippableSize.
	HeaderSize int

	// First block information.
	FirstBlock struct {
		// OK will be set if first block could be decoded.
		OK bool

		// Is this the last block of a frame?
		Last bool

		// Is the data compressed?
		// If true CompressedSize will be populated.
		// Unfortunately DecompressedSize cannot be determined
		// without decoding the blocks.
		Compressed bool

		// DecompressedSize is the expected decompressed size of the block.
		// Will be 0 if it cannot be determined.
		DecompressedSize int

		// CompressedSize of the data in the block.
		// Does not include the block header.
		// Will be equal to DecompressedSize if not Compressed.
		CompressedSize int
	}

	// If set there is a checksum present for the block content.
	// The checksum field at the end is always 4 bytes long.
	HasCheckSum bool
}

// Decode the header from the beginning of the stream.
// This will decode the frame header and the first block header if enough bytes are provided.
// It is recommended to provide at least HeaderMaxSize bytes.
// If the frame header cannot be read an error will be returned.
// If there isn't enough input, an error matching ErrTruncated is returned.
// The FirstBlock.OK will indicate if enough information was available to decode the first block header.
func (h *Header) Decode(in []byte) error {
	*h = Header{}
	if len(in) < 4 {
		return fmt.Errorf("%w: header needs 4 bytes, got %d", ErrTruncated, len(in))
	}
	h.HeaderSize += 4
	magic := le.Load32(in, 0)
	if magic&skippableFrameMask == skippableFrameMagic {
		if len(in) < 8 {
			return fmt.Errorf("%w: skippable header", ErrTruncated)
		}
		h.HeaderSize += 4
		h.Skippable = true
		h.SkippableID = int(magic & 0xf)
		h.SkippableSize = le.Load32(in, 4)
		return nil
	}
	if magic != frameMagic {
		return fmt.Errorf("%w: got 0x%08x", ErrMagicMismatch, magic)
	}

	// Read Frame_Header_Descriptor
	if len(in) < 5 {
		return fmt.Errorf("%w: frame header descriptor", ErrTruncated)
	}
	fhd := in[4]
	n := frameHeaderSize(fhd)
	if len(in) < 5+n {
		return fmt.Errorf("%w: frame header needs %d bytes, got %d", ErrTruncated, 5+n, len(in))
	}
	var fh frameHeader
	if err := fh.parse(fhd, in[5:5+n]); err != nil {
		return err
	}
	h.HeaderSize += 1 + n
	h.SingleSegment = fh.SingleSegment
	if !fh.SingleSegment {
		h.WindowSize = fh.WindowSize
	}
	h.DictionaryID = fh.DictionaryID
	h.HasFCS = fh.HasFCS
	if fh.HasFCS {
		h.FrameContentSize = fh.FrameContentSize
	}
	h.HasCheckSum = fh.HasCheckSum

	// Frame Header done, we will not fail from now on.
	in = in[h.HeaderSize:]
	if len(in) < 3 {
		return nil
	}
	b := le.Load24(in, 0)
	h.FirstBlock.Last = b&1 != 0
	blockType := blockType((b >> 1) & 3)
	// find size.
	cSize := int(b >> 3)
	switch blockType {
	case blockTypeReserved:
		return nil
	case blockTypeRLE:
		h.FirstBlock.Compressed = true
		h.FirstBlock.DecompressedSize = cSize
		h.FirstBlock.CompressedSize = 1
	case blockTypeCompressed:
		h.FirstBlock.Compressed = true
		h.FirstBlock.CompressedSize = cSize
	case blockTypeRaw:
		h.FirstBlock.DecompressedSize = cSize
		h.FirstBlock.CompressedSize = cSize
	default:
		panic("Invalid block type")
	}

	h.FirstBlock.OK = true
	return nil
}
