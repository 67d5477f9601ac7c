// Package huff0 decodes the Huffman coded literals used by zstd.
//
// A table is read from its compact weight description with ReadTable,
// after which one or four interleaved streams can be decoded.
package huff0

import (
	"errors"
	"fmt"
)

const (
	// MaxTableLog is the longest code length the format allows.
	MaxTableLog = 11

	// BlockSizeMax is the maximum number of symbols decoded for one block.
	BlockSizeMax = 128 << 10

	maxSymbolValue = 255

	// weights are FSE compressed with at most this accuracy log.
	maxWeightTableLog = 6
)

var (
	// ErrTableTooSmall is returned when the table description is cut short.
	ErrTableTooSmall = errors.New("huff0: input too small for table")

	// ErrInvalidTable is returned when weights do not describe a complete prefix code.
	ErrInvalidTable = errors.New("huff0: invalid table")

	// ErrCorrupt is returned when a stream does not decode to the expected size.
	ErrCorrupt = errors.New("huff0: corrupt stream")
)

// dEntry is a single symbol decoding entry.
type dEntry struct {
	symbol uint8
	nBits  uint8
}

// Table is a canonical Huffman decoding table.
// It is indexed with the next TableLog bits of a stream.
type Table struct {
	dt       []dEntry
	bitLen   [maxSymbolValue + 1]uint8
	nSymbols int

	// TableLog is the maximum code length.
	TableLog uint8
}

// BitLength returns the code length of symbol, 0 if it is unused.
func (t *Table) BitLength(symbol uint8) uint8 {
	return t.bitLen[symbol]
}

// Symbols returns the size of the alphabet, including the implied last symbol.
func (t *Table) Symbols() int {
	return t.nSymbols
}

func (t *Table) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("huffman table log %d, %d symbols", t.TableLog, t.nSymbols)
}
