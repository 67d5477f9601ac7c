package zstd

import (
	"fmt"

	"github.com/xsong93/zdec/internal/le"
)

type blockType uint8

const (
	blockTypeRaw blockType = iota
	blockTypeRLE
	blockTypeCompressed
	blockTypeReserved
)

func (t blockType) String() string {
	switch t {
	case blockTypeRaw:
		return "Raw"
	case blockTypeRLE:
		return "RLE"
	case blockTypeCompressed:
		return "Compressed"
	case blockTypeReserved:
		return "Reserved"
	}
	return fmt.Sprintf("blockType(%d)", uint8(t))
}

// maxCompressedBlockSize is the biggest allowed compressed block size (128KB)
const maxCompressedBlockSize = 128 << 10

type blockDec struct {
	// Raw source data of the block.
	data []byte

	// Decoded output of the block.
	dst []byte

	// Literals of a compressed block, either pointing into data or literalBuf.
	literals   []byte
	literalBuf []byte
	sequences  []seqVals

	// Block maximum of the current frame.
	blockMax int

	Type    blockType
	RLESize int
	Last    bool

	// Use less memory
	lowMem bool
}

func (b *blockDec) String() string {
	if b == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Stream Size: %d, Type: %v, Last: %t, Max: %d", len(b.data), b.Type, b.Last, b.blockMax)
}

func newBlockDec(lowMem bool) *blockDec {
	return &blockDec{lowMem: lowMem}
}

// reset will read the block header and data from br.
// Input must be a start of a block and will be at the end of the block when returned.
func (b *blockDec) reset(br byteBuffer, blockMax int) error {
	b.blockMax = blockMax
	tmp, err := br.readSmall(3)
	if err != nil {
		println("Reading block header:", err)
		return truncated("block header", err)
	}
	bh := le.Load24(tmp, 0)
	b.Last = bh&1 != 0
	b.Type = blockType((bh >> 1) & 3)
	// find size.
	cSize := int(bh >> 3)
	switch b.Type {
	case blockTypeReserved:
		return ErrReservedBlockType
	case blockTypeRLE:
		if cSize > blockMax {
			return fmt.Errorf("%w: rle block size %d > %d", ErrCompressedSizeTooBig, cSize, blockMax)
		}
		b.RLESize = cSize
		cSize = 1
	default:
		if cSize > blockMax {
			if debugDecoder {
				printf("block too big: %+v, size %d\n", b, cSize)
			}
			return fmt.Errorf("%w: %s block size %d > %d", ErrCompressedSizeTooBig, b.Type, cSize, blockMax)
		}
		b.RLESize = 0
	}

	// Read block data.
	if cap(b.data) < cSize {
		if b.lowMem {
			b.data = make([]byte, 0, cSize)
		} else {
			b.data = make([]byte, 0, maxCompressedBlockSize)
		}
	}
	b.data, err = br.readBig(cSize, b.data[:0])
	if err != nil {
		println("Reading block:", err, "(", cSize, ")", len(b.data))
		return truncated("block data", err)
	}
	return nil
}

// decodeBuf decodes the block into b.dst and adds the output to the history.
func (b *blockDec) decodeBuf(hist *history) error {
	if cap(b.dst) < b.blockMax && !b.lowMem {
		b.dst = make([]byte, 0, min(b.blockMax, maxCompressedBlockSize))
	}
	switch b.Type {
	case blockTypeRLE:
		b.dst = b.dst[:0]
		v := b.data[0]
		for i := 0; i < b.RLESize; i++ {
			b.dst = append(b.dst, v)
		}
	case blockTypeRaw:
		b.dst = append(b.dst[:0], b.data...)
	case blockTypeCompressed:
		if err := b.decodeCompressed(hist); err != nil {
			return err
		}
	default:
		panic("Invalid block type")
	}
	hist.win.append(b.dst)
	return nil
}

// decodeCompressed decodes the literals and sequences sections of a
// compressed block and executes the sequences.
func (b *blockDec) decodeCompressed(hist *history) error {
	in, err := b.decodeLiterals(b.data, hist)
	if err != nil {
		return err
	}
	if err := b.decodeSequences(in, hist); err != nil {
		return err
	}
	if len(b.sequences) == 0 {
		b.dst = append(b.dst[:0], b.literals...)
		return nil
	}
	return b.executeSequences(hist)
}
