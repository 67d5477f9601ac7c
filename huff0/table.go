package huff0

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/icza/bitio"

	"github.com/xsong93/zdec/fse"
)

// ReadTable reads a table description from the start of in and returns
// the table and the remaining input.
//
// A header byte below 128 is the size of an FSE compressed weight stream.
// Otherwise header-127 weights follow as 4 bit values, high nibble first.
func ReadTable(in []byte) (t *Table, remain []byte, err error) {
	if len(in) <= 1 {
		return nil, nil, ErrTableTooSmall
	}
	iSize := in[0]
	in = in[1:]
	var weights []byte
	if iSize >= 128 {
		// Uncompressed
		oSize := int(iSize) - 127
		n := (oSize + 1) / 2
		if n > len(in) {
			return nil, nil, ErrTableTooSmall
		}
		r := bitio.NewReader(bytes.NewReader(in[:n]))
		weights = make([]byte, oSize)
		for i := range weights {
			v, err := r.ReadBits(4)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrTableTooSmall, err)
			}
			weights[i] = byte(v)
		}
		in = in[n:]
	} else {
		if int(iSize) > len(in) {
			return nil, nil, ErrTableTooSmall
		}
		// FSE compressed weights
		weights, err = fse.Decompress(in[:iSize], maxWeightTableLog, maxSymbolValue)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: weights: %w", ErrInvalidTable, err)
		}
		in = in[iSize:]
	}
	t, err = buildTable(weights)
	if err != nil {
		return nil, nil, err
	}
	return t, in, nil
}

// buildTable builds the decoding table from the weights of all but the
// last symbol. The weight of the last symbol is implied: it is the one
// that makes the code complete.
func buildTable(weights []byte) (*Table, error) {
	if len(weights) > maxSymbolValue {
		return nil, fmt.Errorf("%w: %d weights", ErrInvalidTable, len(weights))
	}
	var rankStats [MaxTableLog + 1]uint32
	weightTotal := uint32(0)
	for _, w := range weights {
		if w > MaxTableLog {
			return nil, fmt.Errorf("%w: weight %d too large", ErrInvalidTable, w)
		}
		rankStats[w]++
		weightTotal += (1 << w) >> 1
	}
	if weightTotal == 0 {
		return nil, fmt.Errorf("%w: weights zero", ErrInvalidTable)
	}

	// get last non-null symbol weight (implied, total must be 2^n)
	tableLog := bits.Len32(weightTotal)
	if tableLog > MaxTableLog {
		return nil, fmt.Errorf("%w: tableLog %d too big", ErrInvalidTable, tableLog)
	}
	rest := uint32(1)<<tableLog - weightTotal
	if rest&(rest-1) != 0 {
		// last value must be a clean power of 2
		return nil, fmt.Errorf("%w: last value not power of two", ErrInvalidTable)
	}
	lastWeight := bits.Len32(rest)
	rankStats[lastWeight]++
	if rankStats[1] < 2 || rankStats[1]&1 != 0 {
		// by construction : at least 2 elts of rank 1, must be even
		return nil, fmt.Errorf("%w: min elt size, even check failed", ErrInvalidTable)
	}
	all := make([]byte, len(weights)+1)
	copy(all, weights)
	all[len(weights)] = byte(lastWeight)

	// Calculate starting value for each rank
	var nextRankStart uint32
	for n := 1; n <= tableLog; n++ {
		current := nextRankStart
		nextRankStart += rankStats[n] << (n - 1)
		rankStats[n] = current
	}

	t := &Table{
		dt:       make([]dEntry, 1<<tableLog),
		TableLog: uint8(tableLog),
		nSymbols: len(all),
	}
	for n, w := range all {
		if w == 0 {
			continue
		}
		length := (uint32(1) << w) >> 1
		d := dEntry{
			symbol: uint8(n),
			nBits:  uint8(tableLog) + 1 - w,
		}
		t.bitLen[n] = d.nBits
		for u := rankStats[w]; u < rankStats[w]+length; u++ {
			t.dt[u] = d
		}
		rankStats[w] += length
	}
	return t, nil
}
