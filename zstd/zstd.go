// Package zstd provides decompression of zstandard streams and frames
// as described in RFC 8878.
//
// Use NewReader for io.Reader based decoding, Decoder.DecodeAll for
// complete buffers and NewStream when input arrives in pieces.
package zstd

import (
	"errors"
	"fmt"
	"io"
	"log"
)

// enable debug printing
const debugDecoder = false

// enable debug printing of sequence decoding
const debugSequences = false

// Error categories. Every error returned by this package for bad input
// matches one of these with errors.Is.
var (
	// ErrFormat is returned when the input is not a zstd stream or uses a
	// reserved encoding.
	ErrFormat = errors.New("invalid input: format error")

	// ErrUnsupported is returned when the input uses a feature that this
	// decoder does not provide, or exceeds a configured limit.
	ErrUnsupported = errors.New("unsupported feature")

	// ErrCorrupted is returned when the entropy coded content or the
	// sequences of a block are inconsistent.
	ErrCorrupted = errors.New("invalid input: corrupted data")

	// ErrTruncated is returned when the input ends before a declared structure
	// is complete. It also matches io.ErrUnexpectedEOF.
	ErrTruncated = fmt.Errorf("invalid input: truncated: %w", io.ErrUnexpectedEOF)
)

var (
	// ErrMagicMismatch is returned when a "magic" number isn't what is expected.
	// Typically this indicates wrong or corrupted input.
	ErrMagicMismatch = fmt.Errorf("%w: magic number mismatch", ErrFormat)

	// ErrReservedBlockType is returned when a reserved block type is found.
	// Typically this indicates wrong or corrupted input.
	ErrReservedBlockType = fmt.Errorf("%w: reserved block type encountered", ErrFormat)

	// ErrReservedBits is returned when a reserved header bit is set.
	ErrReservedBits = fmt.Errorf("%w: reserved bit set", ErrFormat)

	// ErrUnknownDictionary is returned if the dictionary ID is unknown.
	// Dictionaries are not supported.
	ErrUnknownDictionary = fmt.Errorf("%w: unknown dictionary", ErrUnsupported)

	// ErrWindowSizeExceeded is returned when a frame requires a window
	// bigger than the configured maximum.
	ErrWindowSizeExceeded = fmt.Errorf("%w: window size exceeded", ErrUnsupported)

	// ErrCompressedSizeTooBig is returned when a block is bigger than allowed.
	// Typically this indicates wrong or corrupted input.
	ErrCompressedSizeTooBig = fmt.Errorf("%w: compressed size too big", ErrCorrupted)

	// ErrBlockTooSmall is returned when a block is too small to be decoded.
	ErrBlockTooSmall = fmt.Errorf("%w: block too small", ErrCorrupted)

	// ErrFrameSizeMismatch is returned if the decoded size of a frame
	// differs from its declared content size.
	ErrFrameSizeMismatch = fmt.Errorf("%w: frame size does not match content size", ErrCorrupted)

	// ErrNoPreviousTable is returned when a block asks to repeat an FSE
	// table that was never defined in the frame.
	ErrNoPreviousTable = fmt.Errorf("%w: repeat table without previous table", ErrCorrupted)

	// ErrNoPreviousHuffman is returned when treeless literals appear before
	// any Huffman table was defined in the frame.
	ErrNoPreviousHuffman = fmt.Errorf("%w: treeless literals without previous table", ErrCorrupted)

	// ErrOffsetOutOfRange is returned when a match reaches beyond the
	// decoded history or the window.
	ErrOffsetOutOfRange = fmt.Errorf("%w: match offset out of range", ErrCorrupted)

	// ErrDecoderSizeExceeded is returned if decompressed size exceeds the configured limit.
	ErrDecoderSizeExceeded = fmt.Errorf("%w: decompressed size exceeds configured limit", ErrUnsupported)

	// ErrDecoderClosed will be returned if the Decoder was used after
	// Close has been called.
	ErrDecoderClosed = errors.New("decoder used after Close")

	// ErrDecoderNilInput is returned when a reader was expected but none was given.
	ErrDecoderNilInput = errors.New("nil input provided as reader")
)

// corrupted wraps an error from an entropy decoder.
func corrupted(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCorrupted, what, err)
}

// truncated maps short reads from a byte source to ErrTruncated.
func truncated(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return err
}

func println(a ...interface{}) {
	if debugDecoder || debugSequences {
		log.Println(a...)
	}
}

func printf(format string, a ...interface{}) {
	if debugDecoder || debugSequences {
		log.Printf(format, a...)
	}
}
