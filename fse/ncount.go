package fse

import (
	"fmt"
	"math/bits"

	"github.com/xsong93/zdec/internal/bitstream"
)

// ReadNCount reads a table description from the start of in.
// It returns the normalized counts, the accuracy log and the number of
// bytes the description occupied. Counts of -1 mark low probability
// symbols, symbols after the returned slice have a count of zero.
func ReadNCount(in []byte, maxSymbol uint8, maxLog uint8) (norm []int16, tableLog uint8, n int, err error) {
	if len(in) == 0 {
		return nil, 0, 0, ErrTruncated
	}
	br := bitstream.NewForwardReader(in)
	tableLog = uint8(br.GetBits(4)) + MinTableLog
	if tableLog > maxLog || tableLog > AbsoluteMaxTableLog {
		return nil, 0, 0, fmt.Errorf("%w: %d > %d", ErrTableLogTooLarge, tableLog, maxLog)
	}

	var (
		remaining = int32(1<<tableLog) + 1
		threshold = int32(1) << tableLog
		nbBits    = uint(tableLog) + 1
		symbol    = 0
		previous0 = false
	)
	norm = make([]int16, 0, int(maxSymbol)+1)
	for remaining > 1 && symbol <= int(maxSymbol) {
		if previous0 {
			// Zero run: 2 bit repeat flags, 3 means another flag follows.
			n0 := symbol
			for {
				r := int(br.GetBits(2))
				n0 += r
				if r != 3 {
					break
				}
				if br.Overread() {
					return nil, 0, 0, ErrTruncated
				}
			}
			if n0 > int(maxSymbol) {
				return nil, 0, 0, fmt.Errorf("%w: zero run to %d > %d", ErrMaxSymbolExceeded, n0, maxSymbol)
			}
			for symbol < n0 {
				norm = append(norm, 0)
				symbol++
			}
		}

		max := (2*threshold - 1) - remaining
		v := int32(br.PeekBits(nbBits))
		var count int32
		if v&(threshold-1) < max {
			count = v & (threshold - 1)
			br.Skip(nbBits - 1)
		} else {
			count = v & (2*threshold - 1)
			if count >= threshold {
				count -= max
			}
			br.Skip(nbBits)
		}

		count-- // extra accuracy
		if count < 0 {
			// -1 means +1
			remaining += count
		} else {
			remaining -= count
		}
		norm = append(norm, int16(count))
		symbol++
		previous0 = count == 0
		if br.Overread() {
			return nil, 0, 0, ErrTruncated
		}
		if remaining < threshold {
			if remaining <= 1 {
				break
			}
			nbBits = uint(bits.Len32(uint32(remaining)))
			threshold = int32(1) << (nbBits - 1)
		}
	}
	if remaining != 1 {
		return nil, 0, 0, fmt.Errorf("%w: remaining %d != 1", ErrInvalidDistribution, remaining)
	}
	if len(norm) > int(maxSymbol)+1 {
		return nil, 0, 0, fmt.Errorf("%w: %d symbols", ErrMaxSymbolExceeded, len(norm))
	}
	return norm, tableLog, br.BytesUsed(), nil
}
