package bitstream

// ForwardReader reads bits from the start of a byte slice, least
// significant bit of each byte first.
type ForwardReader struct {
	in  []byte
	pos uint // bit position of the next unread bit
}

// NewForwardReader returns a reader positioned at the first bit of in.
func NewForwardReader(in []byte) *ForwardReader {
	return &ForwardReader{in: in}
}

// PeekBits returns the next n bits without consuming them, n <= 32.
// Bits past the end of the input read as zero.
func (f *ForwardReader) PeekBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	idx := f.pos >> 3
	shift := f.pos & 7
	var v uint64
	for i := uint(0); i < 5; i++ {
		if idx+i < uint(len(f.in)) {
			v |= uint64(f.in[idx+i]) << (8 * i)
		}
	}
	return uint32((v >> shift) & (1<<n - 1))
}

// GetBits consumes and returns the next n bits, n <= 32.
func (f *ForwardReader) GetBits(n uint) uint32 {
	v := f.PeekBits(n)
	f.pos += n
	return v
}

// Skip consumes n bits.
func (f *ForwardReader) Skip(n uint) {
	f.pos += n
}

// BytesUsed returns the number of bytes touched so far, rounding a
// partially read byte up.
func (f *ForwardReader) BytesUsed() int {
	return int((f.pos + 7) >> 3)
}

// Overread reports whether bits past the end of the input were consumed.
func (f *ForwardReader) Overread() bool {
	return f.BytesUsed() > len(f.in)
}
