package zstd

import (
	"fmt"

	"github.com/xsong93/zdec/fse"
	"github.com/xsong93/zdec/internal/bitstream"
)

type seqCompMode uint8

const (
	compModePredefined seqCompMode = iota
	compModeRLE
	compModeFSE
	compModeRepeat
)

func (m seqCompMode) String() string {
	switch m {
	case compModePredefined:
		return "predefined"
	case compModeRLE:
		return "rle"
	case compModeFSE:
		return "fse"
	case compModeRepeat:
		return "repeat"
	}
	return fmt.Sprintf("seqCompMode(%d)", uint8(m))
}

// seqVals is a single decoded sequence.
// mo is the resolved offset, never a repeat code.
type seqVals struct {
	ll, ml, mo int
}

// sequenceDecs holds the state of the three FSE decoders of a block.
type sequenceDecs struct {
	litLengths   fse.State
	offsets      fse.State
	matchLengths fse.State
	prevOffset   [3]int
	br           bitstream.Reader
	nLiterals    int
	blockMax     int
	windowSize   int
}

// parseSeqCount reads the number of sequences at the start of in.
func parseSeqCount(in []byte) (nSeqs int, n int, err error) {
	if len(in) < 1 {
		return 0, 0, ErrBlockTooSmall
	}
	switch v := int(in[0]); {
	case v < 128:
		return v, 1, nil
	case v < 255:
		if len(in) < 2 {
			return 0, 0, ErrBlockTooSmall
		}
		return ((v - 128) << 8) + int(in[1]), 2, nil
	default:
		if len(in) < 3 {
			return 0, 0, ErrBlockTooSmall
		}
		return int(in[1]) + (int(in[2]) << 8) + 0x7F00, 3, nil
	}
}

// decodeSequences decodes the sequences section in into b.sequences.
// The tables used are stored in hist for later repeat modes, and the
// repeat offsets in hist are updated.
func (b *blockDec) decodeSequences(in []byte, hist *history) error {
	nSeqs, n, err := parseSeqCount(in)
	if err != nil {
		return err
	}
	in = in[n:]
	b.sequences = b.sequences[:0]
	if nSeqs == 0 {
		if len(in) != 0 {
			return fmt.Errorf("%w: %d bytes after empty sequences section", ErrCorrupted, len(in))
		}
		return nil
	}
	if len(in) < 1 {
		return ErrBlockTooSmall
	}
	modes := in[0]
	in = in[1:]
	if modes&3 != 0 {
		return fmt.Errorf("%w: sequence compression modes 0x%02x", ErrReservedBits, modes)
	}
	var tables [3]*fse.Table
	for i := range tables {
		mode := seqCompMode((modes >> (6 - 2*i)) & 3)
		if debugDecoder {
			println("table", tableNames[i], "mode", mode)
		}
		switch mode {
		case compModePredefined:
			tables[i] = fsePredef[i]
		case compModeRLE:
			if len(in) < 1 {
				return ErrBlockTooSmall
			}
			if in[0] > maxSymbols[i] {
				return fmt.Errorf("%w: %s rle symbol %d > %d", ErrCorrupted, tableNames[i], in[0], maxSymbols[i])
			}
			tables[i] = fse.RLE(in[0])
			in = in[1:]
		case compModeFSE:
			norm, tableLog, n, err := fse.ReadNCount(in, maxSymbols[i], maxTableLogs[i])
			if err != nil {
				return corrupted(tableNames[i]+" table", err)
			}
			t, err := fse.Build(norm, tableLog)
			if err != nil {
				return corrupted(tableNames[i]+" table", err)
			}
			if debugDecoder {
				println(tableNames[i], t)
			}
			tables[i] = t
			in = in[n:]
		case compModeRepeat:
			if hist.seqTables[i] == nil {
				return fmt.Errorf("%w: %s", ErrNoPreviousTable, tableNames[i])
			}
			tables[i] = hist.seqTables[i]
		}
	}
	hist.seqTables = tables

	s := sequenceDecs{
		prevOffset: hist.recentOffsets,
		nLiterals:  len(b.literals),
		blockMax:   b.blockMax,
		windowSize: hist.win.size,
	}
	if err := s.br.Init(in); err != nil {
		return corrupted("sequences bitstream", err)
	}
	s.litLengths.Init(&s.br, tables[tableLiteralLengths])
	s.offsets.Init(&s.br, tables[tableOffsets])
	s.matchLengths.Init(&s.br, tables[tableMatchLengths])
	if s.br.Overread() {
		return corrupted("sequences bitstream", bitstream.ErrOverread)
	}

	if cap(b.sequences) < nSeqs {
		b.sequences = make([]seqVals, 0, nSeqs)
	}
	b.sequences = b.sequences[:nSeqs]
	if err := s.decode(b.sequences); err != nil {
		return err
	}
	hist.recentOffsets = s.prevOffset
	return nil
}

// decode sequences from the stream, resolving offsets.
func (s *sequenceDecs) decode(seqs []seqVals) error {
	br := &s.br
	size := 0
	litRemain := s.nLiterals
	for i := range seqs {
		ofCode := s.offsets.Symbol()
		llCode := s.litLengths.Symbol()
		mlCode := s.matchLengths.Symbol()

		// extra bits are stored in reverse order.
		br.Fill()
		ofValue := (1 << ofCode) + int(br.GetBits(ofCode))
		ml := mlCodeTable[mlCode]
		br.Fill()
		matchLen := int(ml.baseLine) + int(br.GetBits(ml.addBits))
		ll := llCodeTable[llCode]
		br.Fill()
		litLen := int(ll.baseLine) + int(br.GetBits(ll.addBits))

		offset, err := s.adjustOffset(ofValue, litLen)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", i, err)
		}
		if debugSequences {
			println("Seq", i, "Litlen:", litLen, "mo:", offset, "(abs) ml:", matchLen)
		}

		size += litLen + matchLen
		if size > s.blockMax {
			return fmt.Errorf("%w: output (%d) bigger than max block size (%d)", ErrCorrupted, size, s.blockMax)
		}
		litRemain -= litLen
		if litRemain < 0 {
			return fmt.Errorf("%w: unexpected literal count, want %d bytes, but only %d is available", ErrCorrupted, litLen, litRemain+litLen)
		}
		seqs[i] = seqVals{ll: litLen, ml: matchLen, mo: offset}

		if i == len(seqs)-1 {
			// This is the last sequence, so we shouldn't update state.
			break
		}
		br.Fill()
		s.litLengths.Update(br)
		s.matchLengths.Update(br)
		s.offsets.Update(br)
		if br.Overread() {
			return fmt.Errorf("%w: sequence bitstream exhausted after %d of %d sequences", ErrCorrupted, i+1, len(seqs))
		}
	}
	if size+litRemain > s.blockMax {
		return fmt.Errorf("%w: output (%d) bigger than max block size (%d)", ErrCorrupted, size+litRemain, s.blockMax)
	}
	if err := br.Close(); err != nil {
		return corrupted("sequences bitstream", err)
	}
	return nil
}

// adjustOffset resolves an offset value to an absolute offset and updates
// the repeat offsets. Values 1 to 3 select a previous offset.
func (s *sequenceDecs) adjustOffset(ofValue, litLen int) (int, error) {
	if ofValue > 3 {
		mo := ofValue - 3
		s.prevOffset[2] = s.prevOffset[1]
		s.prevOffset[1] = s.prevOffset[0]
		s.prevOffset[0] = mo
		return mo, nil
	}
	// When the literal length is zero, repeated offsets are shifted by one,
	// so 1 means Repeated_Offset2, 2 means Repeated_Offset3,
	// and 3 means Repeated_Offset1 - 1_byte.
	idx := ofValue - 1
	if litLen == 0 {
		idx++
	}
	if idx == 0 {
		return s.prevOffset[0], nil
	}
	var mo int
	if idx == 3 {
		mo = s.prevOffset[0] - 1
	} else {
		mo = s.prevOffset[idx]
	}
	if mo <= 0 {
		return 0, fmt.Errorf("%w: repeat offset resolved to %d", ErrOffsetOutOfRange, mo)
	}
	if idx != 1 {
		s.prevOffset[2] = s.prevOffset[1]
	}
	s.prevOffset[1] = s.prevOffset[0]
	s.prevOffset[0] = mo
	return mo, nil
}
