package zstd

import (
	"fmt"

	"github.com/xsong93/zdec/fse"
)

const (
	tableLiteralLengths = 0
	tableOffsets        = 1
	tableMatchLengths   = 2
)

// Accuracy and alphabet limits per table, indexed as above.
var (
	maxTableLogs = [3]uint8{9, 8, 9}
	maxSymbols   = [3]uint8{35, 31, 52}
	tableNames   = [3]string{"literal lengths", "offsets", "match lengths"}
)

// fsePredef are the predefined fse tables as defined here:
// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#default-distributions
var fsePredef [3]*fse.Table

// predefNorm are the default distributions the tables are built from.
var predefNorm = [3]struct {
	tableLog uint8
	norm     []int16
}{
	tableLiteralLengths: {
		tableLog: 6,
		norm: []int16{4, 3, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1,
			2, 2, 2, 2, 2, 2, 2, 2, 2, 3, 2, 1, 1, 1, 1, 1,
			-1, -1, -1, -1},
	},
	tableOffsets: {
		tableLog: 5,
		norm: []int16{
			1, 1, 1, 1, 1, 1, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1,
			1, 1, 1, 1, 1, 1, 1, 1, -1, -1, -1, -1, -1},
	},
	tableMatchLengths: {
		tableLog: 6,
		norm: []int16{
			1, 4, 3, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1,
			1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
			1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, -1, -1,
			-1, -1, -1, -1, -1},
	},
}

type baseOffset struct {
	baseLine uint32
	addBits  uint8
}

// Literal length and match length codes to values.
var (
	llCodeTable [36]baseOffset
	mlCodeTable [53]baseOffset
)

func fillBase(dst []baseOffset, base uint32, bits ...uint8) {
	if len(bits) != len(dst) {
		panic(fmt.Sprintf("len(dst) (%d) != len(bits) (%d)", len(dst), len(bits)))
	}
	for i, bit := range bits {
		dst[i] = baseOffset{
			baseLine: base,
			addBits:  bit,
		}
		base += 1 << bit
	}
}

func init() {
	// Literals length codes
	for i := range llCodeTable[:16] {
		llCodeTable[i] = baseOffset{baseLine: uint32(i)}
	}
	fillBase(llCodeTable[16:], 16, 1, 1, 1, 1, 2, 2, 3, 3, 4, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)

	// Match length codes
	for i := range mlCodeTable[:32] {
		mlCodeTable[i] = baseOffset{baseLine: uint32(i) + 3}
	}
	fillBase(mlCodeTable[32:], 35, 1, 1, 1, 1, 2, 2, 3, 3, 4, 4, 5, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)

	for i, p := range predefNorm {
		t, err := fse.Build(p.norm, p.tableLog)
		if err != nil {
			panic(fmt.Errorf("building table %d: %v", i, err))
		}
		fsePredef[i] = t
	}
}
