package fse

import (
	"fmt"
	"math/bits"
)

// Build will build the decoding table for a normalized distribution.
// The slots of all counts, with -1 counting as one, must add up to
// exactly 1<<tableLog.
func Build(norm []int16, tableLog uint8) (*Table, error) {
	if tableLog > AbsoluteMaxTableLog {
		return nil, fmt.Errorf("%w: %d", ErrTableLogTooLarge, tableLog)
	}
	if len(norm) == 0 || len(norm) > MaxSymbolValue+1 {
		return nil, fmt.Errorf("%w: %d symbols", ErrInvalidDistribution, len(norm))
	}
	tableSize := uint32(1) << tableLog
	var total uint32
	for _, v := range norm {
		switch {
		case v == -1:
			total++
		case v < -1:
			return nil, fmt.Errorf("%w: count %d", ErrInvalidDistribution, v)
		default:
			total += uint32(v)
		}
	}
	if total != tableSize {
		return nil, fmt.Errorf("%w: counts sum to %d, want %d", ErrInvalidDistribution, total, tableSize)
	}

	t := &Table{
		Entries:  make([]Entry, tableSize),
		TableLog: tableLog,
	}
	symbolNext := make([]uint16, len(norm))
	highThreshold := tableSize - 1

	// Init, lay down lowprob symbols
	for i, v := range norm {
		if v == -1 {
			t.Entries[highThreshold].Symbol = uint8(i)
			highThreshold--
			symbolNext[i] = 1
			continue
		}
		symbolNext[i] = uint16(v)
	}

	// Spread symbols
	tableMask := tableSize - 1
	step := tableStep(tableSize)
	position := uint32(0)
	for s, v := range norm {
		for i := 0; i < int(v); i++ {
			t.Entries[position].Symbol = uint8(s)
			for {
				position = (position + step) & tableMask
				if position <= highThreshold {
					break
				}
			}
		}
	}
	if position != 0 {
		// position must reach all cells once, otherwise normalizedCounter is incorrect
		return nil, fmt.Errorf("%w: spread ended at %d", ErrInvalidDistribution, position)
	}

	// Build decoding table
	for u := range t.Entries {
		e := &t.Entries[u]
		nextState := symbolNext[e.Symbol]
		symbolNext[e.Symbol] = nextState + 1
		e.NbBits = tableLog - uint8(bits.Len16(nextState)-1)
		e.NewState = (nextState << e.NbBits) - uint16(tableSize)
	}
	return t, nil
}

// RLE returns a table that always decodes symbol and never reads bits.
func RLE(symbol uint8) *Table {
	return &Table{
		Entries:  []Entry{{Symbol: symbol}},
		TableLog: 0,
	}
}

// SymbolCounts returns how many slots each symbol occupies in t.
func (t *Table) SymbolCounts() map[uint8]int {
	m := make(map[uint8]int)
	for _, e := range t.Entries {
		m[e.Symbol]++
	}
	return m
}
