package zstd

import (
	"fmt"

	"github.com/xsong93/zdec/huff0"
	"github.com/xsong93/zdec/internal/le"
)

type literalsBlockType uint8

const (
	literalsBlockRaw literalsBlockType = iota
	literalsBlockRLE
	literalsBlockCompressed
	literalsBlockTreeless
)

func (t literalsBlockType) String() string {
	switch t {
	case literalsBlockRaw:
		return "Raw"
	case literalsBlockRLE:
		return "RLE"
	case literalsBlockCompressed:
		return "Compressed"
	case literalsBlockTreeless:
		return "Treeless"
	}
	return fmt.Sprintf("literalsBlockType(%d)", uint8(t))
}

// literalsHeader is the parsed header of a literals section.
type literalsHeader struct {
	Type       literalsBlockType
	Regen      int // regenerated size
	Compressed int // compressed size, incl. any tree description
	Streams    int
	HeaderSize int
}

// parseLiteralsHeader parses the header at the start of a literals section.
// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#literals_section_header
func parseLiteralsHeader(in []byte) (literalsHeader, error) {
	var h literalsHeader
	if len(in) < 1 {
		return h, ErrBlockTooSmall
	}
	h.Type = literalsBlockType(in[0] & 3)
	sizeFormat := (in[0] >> 2) & 3
	switch h.Type {
	case literalsBlockRaw, literalsBlockRLE:
		switch sizeFormat {
		case 0, 2:
			h.HeaderSize = 1
			h.Regen = int(in[0] >> 3)
		case 1:
			h.HeaderSize = 2
			if len(in) < 2 {
				return h, ErrBlockTooSmall
			}
			h.Regen = int(in[0]>>4) + (int(in[1]) << 4)
		case 3:
			h.HeaderSize = 3
			if len(in) < 3 {
				return h, ErrBlockTooSmall
			}
			h.Regen = int(in[0]>>4) + (int(in[1]) << 4) + (int(in[2]) << 12)
		}
		h.Streams = 1
		if h.Type == literalsBlockRLE {
			h.Compressed = 1
		} else {
			h.Compressed = h.Regen
		}
	default:
		var n uint64
		switch sizeFormat {
		case 0, 1:
			h.HeaderSize = 3
			if len(in) < 3 {
				return h, ErrBlockTooSmall
			}
			n = uint64(le.Load24(in, 0))
			h.Regen = int(n>>4) & 1023
			h.Compressed = int(n>>14) & 1023
		case 2:
			h.HeaderSize = 4
			if len(in) < 4 {
				return h, ErrBlockTooSmall
			}
			n = uint64(le.Load32(in, 0))
			h.Regen = int(n>>4) & 16383
			h.Compressed = int(n>>18) & 16383
		case 3:
			h.HeaderSize = 5
			if len(in) < 5 {
				return h, ErrBlockTooSmall
			}
			n = uint64(le.Load32(in, 0)) | uint64(in[4])<<32
			h.Regen = int(n>>4) & 262143
			h.Compressed = int(n>>22) & 262143
		}
		h.Streams = 4
		if sizeFormat == 0 {
			h.Streams = 1
		}
	}
	return h, nil
}

// decodeLiterals decodes the literals section at the start of in into
// b.literals and returns the remaining input.
func (b *blockDec) decodeLiterals(in []byte, hist *history) (remain []byte, err error) {
	h, err := parseLiteralsHeader(in)
	if err != nil {
		return in, err
	}
	if debugDecoder {
		printf("literals: %+v", h)
	}
	if h.Regen > b.blockMax {
		return in, fmt.Errorf("%w: literals regenerated size %d > %d", ErrCompressedSizeTooBig, h.Regen, b.blockMax)
	}
	in = in[h.HeaderSize:]
	if len(in) < h.Compressed {
		return in, fmt.Errorf("%w: literals need %d bytes, have %d", ErrBlockTooSmall, h.Compressed, len(in))
	}
	src := in[:h.Compressed]
	remain = in[h.Compressed:]

	switch h.Type {
	case literalsBlockRaw:
		b.literals = src
		return remain, nil
	case literalsBlockRLE:
		if cap(b.literalBuf) < h.Regen {
			b.literalBuf = make([]byte, 0, b.literalAlloc(h.Regen))
		}
		lits := b.literalBuf[:h.Regen]
		v := src[0]
		for i := range lits {
			lits[i] = v
		}
		b.literals = lits
		return remain, nil
	}

	huff := hist.huffTree
	if h.Type == literalsBlockCompressed {
		huff, src, err = huff0.ReadTable(src)
		if err != nil {
			return remain, corrupted("literals huffman table", err)
		}
		hist.huffTree = huff
	} else if huff == nil {
		return remain, ErrNoPreviousHuffman
	}

	if cap(b.literalBuf) < h.Regen {
		b.literalBuf = make([]byte, 0, b.literalAlloc(h.Regen))
	}
	if h.Streams == 1 {
		b.literals, err = huff.Decompress1X(b.literalBuf[:0], src, h.Regen)
	} else {
		b.literals, err = huff.Decompress4X(b.literalBuf[:0], src, h.Regen)
	}
	if err != nil {
		return remain, corrupted(fmt.Sprintf("decoding %d %s literals", h.Regen, h.Type), err)
	}
	return remain, nil
}

// literalAlloc returns the capacity to allocate for n literals.
func (b *blockDec) literalAlloc(n int) int {
	if b.lowMem {
		return n
	}
	return maxCompressedBlockSize
}
