// Package le provides little endian loads shared by the bit readers
// and the header parsers.
package le

import (
	"encoding/binary"
)

// Indexer is the set of integer types accepted as slice offsets.
type Indexer interface {
	int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64
}

// Load16 will load from b at index i.
func Load16[I Indexer](b []byte, i I) uint16 {
	return binary.LittleEndian.Uint16(b[i:])
}

// Load24 will load 3 bytes from b at index i.
func Load24[I Indexer](b []byte, i I) uint32 {
	b = b[i : i+3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// Load32 will load from b at index i.
func Load32[I Indexer](b []byte, i I) uint32 {
	return binary.LittleEndian.Uint32(b[i:])
}

// Load64 will load from b at index i.
func Load64[I Indexer](b []byte, i I) uint64 {
	return binary.LittleEndian.Uint64(b[i:])
}

// LoadN loads up to 8 bytes from b as a little endian value.
// Used for variable width header fields.
func LoadN(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
