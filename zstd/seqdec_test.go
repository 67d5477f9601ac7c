package zstd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsong93/zdec/fse"
)

func TestSequenceDecsAdjustOffset(t *testing.T) {
	type result struct {
		offset     int
		prevOffset [3]int
	}

	tc := []struct {
		ofValue    int
		litLen     int
		prevOffset [3]int

		res result
	}{{
		ofValue:    447,
		litLen:     0,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     444,
			prevOffset: [3]int{444, 111, 222},
		},
	}, {
		ofValue:    1,
		litLen:     1,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     111,
			prevOffset: [3]int{111, 222, 333},
		},
	}, {
		ofValue:    2,
		litLen:     1,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     222,
			prevOffset: [3]int{222, 111, 333},
		},
	}, {
		ofValue:    3,
		litLen:     1,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     333,
			prevOffset: [3]int{333, 111, 222},
		},
	}, {
		ofValue:    1,
		litLen:     0,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     222,
			prevOffset: [3]int{222, 111, 333},
		},
	}, {
		ofValue:    2,
		litLen:     0,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     333,
			prevOffset: [3]int{333, 111, 222},
		},
	}, {
		ofValue:    3,
		litLen:     0,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     110,
			prevOffset: [3]int{110, 111, 222},
		},
	}, {
		ofValue:    4,
		litLen:     5,
		prevOffset: [3]int{111, 222, 333},

		res: result{
			offset:     1,
			prevOffset: [3]int{1, 111, 222},
		},
	}}

	for i := range tc {
		s := sequenceDecs{prevOffset: tc[i].prevOffset}
		got, err := s.adjustOffset(tc[i].ofValue, tc[i].litLen)
		require.NoError(t, err, "case %d", i)
		assert.Equal(t, tc[i].res, result{offset: got, prevOffset: s.prevOffset}, "case %d", i)
	}
}

func TestSequenceDecsRepeatCodes(t *testing.T) {
	s := sequenceDecs{prevOffset: [3]int{1, 4, 8}}
	var offsets []int
	for _, code := range []int{1, 1, 2} {
		mo, err := s.adjustOffset(code, 3)
		require.NoError(t, err)
		offsets = append(offsets, mo)
	}
	assert.Equal(t, []int{1, 1, 4}, offsets)
	assert.Equal(t, [3]int{4, 1, 8}, s.prevOffset)
}

func TestSequenceDecsZeroOffset(t *testing.T) {
	s := sequenceDecs{prevOffset: [3]int{1, 4, 8}}
	_, err := s.adjustOffset(3, 0)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestParseSeqCount(t *testing.T) {
	tests := []struct {
		in    []byte
		nSeqs int
		n     int
	}{
		{in: []byte{0}, nSeqs: 0, n: 1},
		{in: []byte{127}, nSeqs: 127, n: 1},
		{in: []byte{128, 200}, nSeqs: 200, n: 2},
		{in: []byte{254, 0xff}, nSeqs: 0x7eff, n: 2},
		{in: []byte{255, 1, 0}, nSeqs: 0x7f01, n: 3},
		{in: []byte{255, 0xff, 0xff}, nSeqs: 0xffff + 0x7f00, n: 3},
	}
	for _, tt := range tests {
		nSeqs, n, err := parseSeqCount(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.nSeqs, nSeqs, "%v", tt.in)
		assert.Equal(t, tt.n, n, "%v", tt.in)
	}
	for _, in := range [][]byte{nil, {128}, {255, 1}} {
		_, _, err := parseSeqCount(in)
		assert.ErrorIs(t, err, ErrBlockTooSmall, "%v", in)
	}
}

// A literal 'a', then a match of 10 at offset 1, all tables in RLE mode.
// The bitstream only holds the 2 offset extra bits.
var overlapBlock = []byte{0x08, 'a', 0x01, 0x54, 0x01, 0x02, 0x07, 0x04}

func TestDecodeSelfOverlappingMatch(t *testing.T) {
	in := testFrame([]byte{0x00, 0x00}, testBlockHeader(true, blockTypeCompressed, len(overlapBlock)), overlapBlock)
	got, err := decodeAll(t, in)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 11), got)
}

func TestDecodeSequencesRepeatTables(t *testing.T) {
	// Second block repeats all three tables from the first.
	second := []byte{0x08, 'b', 0x01, 0xfc, 0x04}
	in := testFrame([]byte{0x00, 0x00},
		testBlockHeader(false, blockTypeCompressed, len(overlapBlock)), overlapBlock,
		testBlockHeader(true, blockTypeCompressed, len(second)), second,
	)
	got, err := decodeAll(t, in)
	require.NoError(t, err)
	want := append(bytes.Repeat([]byte{'a'}, 11), bytes.Repeat([]byte{'b'}, 11)...)
	assert.Equal(t, string(want), string(got))
}

func TestDecodeLiteralsOnlyBlock(t *testing.T) {
	block := append([]byte{0x28}, "hello"...)
	block = append(block, 0)
	in := testFrame([]byte{0x00, 0x00}, testBlockHeader(true, blockTypeCompressed, len(block)), block)
	got, err := decodeAll(t, in)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	var b blockDec
	b.data = block
	b.blockMax = 128
	b.Type = blockTypeCompressed
	var h history
	h.reset(1024, true)
	h.recentOffsets = [3]int{7, 8, 9}
	require.NoError(t, b.decodeBuf(&h))
	assert.Equal(t, [3]int{7, 8, 9}, h.recentOffsets, "no sequences leaves offsets")
	assert.Equal(t, [3]*fse.Table{}, h.seqTables, "no sequences leaves tables")

	b.data = append(bytes.Clone(block), 0)
	assert.ErrorIs(t, b.decodeBuf(&h), ErrCorrupted)
}

func TestExecuteSequencesFromWindow(t *testing.T) {
	var h history
	h.reset(16, true)
	h.win.append([]byte("0123456789abcdefXYZ")) // window keeps "3456789abcdefXYZ"

	b := blockDec{
		blockMax: 16,
		literals: []byte("-+"),
		sequences: []seqVals{
			// 3 bytes from the window, then 2 from the block start.
			{ll: 1, ml: 5, mo: 4},
			// straddles the window end and block start.
			{ll: 1, ml: 4, mo: 9},
		},
	}
	require.NoError(t, b.executeSequences(&h))
	assert.Equal(t, "-XYZ-X+YZ-X", string(b.dst))

	b.sequences = []seqVals{{ll: 0, ml: 3, mo: 17}}
	b.literals = nil
	assert.ErrorIs(t, b.executeSequences(&h), ErrOffsetOutOfRange)
}
