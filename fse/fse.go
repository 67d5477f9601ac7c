// Package fse decodes Finite State Entropy coded data as used by zstd.
//
// A table description (normalized counts) is read with ReadNCount and
// turned into a decoding table with Build. Tables are stateless and may
// be shared, the decoding position lives in State.
package fse

import (
	"errors"
	"fmt"
)

const (
	// MinTableLog is the smallest accuracy log a table description can encode.
	MinTableLog = 5

	// AbsoluteMaxTableLog is the largest accuracy log the format allows.
	AbsoluteMaxTableLog = 15

	// MaxSymbolValue is the largest symbol a table can hold.
	MaxSymbolValue = 255
)

var (
	// ErrTableLogTooLarge is returned when a description exceeds the allowed accuracy log.
	ErrTableLogTooLarge = errors.New("fse: accuracy log too large")

	// ErrMaxSymbolExceeded is returned when a description assigns a symbol above the alphabet size.
	ErrMaxSymbolExceeded = errors.New("fse: symbol value too large")

	// ErrInvalidDistribution is returned when counts do not add up to the table size.
	ErrInvalidDistribution = errors.New("fse: invalid distribution")

	// ErrTruncated is returned when a table description ends early.
	ErrTruncated = errors.New("fse: table description truncated")

	// ErrOutputTooLarge is returned by Decompress when the output limit is exceeded.
	ErrOutputTooLarge = errors.New("fse: output too large")
)

// Entry is one decoding table slot.
// Decoding a symbol emits Symbol, then the next state is NewState plus
// the next NbBits bits of the stream.
type Entry struct {
	NewState uint16
	Symbol   uint8
	NbBits   uint8
}

// Table is an FSE decoding table of 1<<TableLog entries.
type Table struct {
	Entries  []Entry
	TableLog uint8
}

// String returns a short description of the table.
func (t *Table) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("fse table log %d, %d entries", t.TableLog, len(t.Entries))
}

// tableStep returns the next table index.
func tableStep(tableSize uint32) uint32 {
	return (tableSize >> 1) + (tableSize >> 3) + 3
}
