package zstd

import "fmt"

// executeSequences reconstructs the block output in b.dst from
// b.literals and b.sequences, using hist for matches reaching before
// the start of the block.
func (b *blockDec) executeSequences(hist *history) error {
	out := b.dst[:0]
	lits := b.literals
	win := &hist.win
	for i, seq := range b.sequences {
		out = append(out, lits[:seq.ll]...)
		lits = lits[seq.ll:]

		mo, ml := seq.mo, seq.ml
		if mo > len(out)+win.filled() || mo > win.size {
			return fmt.Errorf("%w: sequence %d offset %d, history %d, window %d", ErrOffsetOutOfRange, i, mo, len(out)+win.filled(), win.size)
		}
		if back := mo - len(out); back > 0 {
			// Copy from the window first.
			n := min(back, ml)
			out = win.appendTail(out, back, n)
			// The rest starts at the beginning of this block.
			for j := 0; j < ml-n; j++ {
				out = append(out, out[j])
			}
			continue
		}
		start := len(out) - mo
		if mo >= ml {
			out = append(out, out[start:start+ml]...)
			continue
		}
		// Overlapping copy
		for j := 0; j < ml; j++ {
			out = append(out, out[start+j])
		}
	}
	// Add final literals
	out = append(out, lits...)
	if len(out) > b.blockMax {
		return fmt.Errorf("%w: block output %d > %d", ErrCompressedSizeTooBig, len(out), b.blockMax)
	}
	b.dst = out
	return nil
}
