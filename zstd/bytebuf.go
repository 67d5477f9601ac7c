package zstd

import (
	"bufio"
	"io"
)

// byteBuffer is the input source of the frame and block parsers.
// A read that cannot be satisfied returns io.EOF when nothing was
// available and io.ErrUnexpectedEOF when the input ended part way.
type byteBuffer interface {
	// Read up to 8 bytes.
	readSmall(n int) ([]byte, error)

	// Read n bytes. The returned slice is only valid until the next read.
	readBig(n int, dst []byte) ([]byte, error)

	readByte() (byte, error)

	skipN(n int64) error
}

// in-memory buffer
type byteBuf []byte

func (b *byteBuf) readSmall(n int) ([]byte, error) {
	bb := *b
	if len(bb) < n {
		if len(bb) == 0 {
			return nil, io.EOF
		}
		*b = bb[:0]
		return nil, io.ErrUnexpectedEOF
	}
	r := bb[:n]
	*b = bb[n:]
	return r, nil
}

func (b *byteBuf) readBig(n int, dst []byte) ([]byte, error) {
	return b.readSmall(n)
}

func (b *byteBuf) remain() []byte {
	return *b
}

func (b *byteBuf) readByte() (byte, error) {
	bb := *b
	if len(bb) < 1 {
		return 0, io.EOF
	}
	r := bb[0]
	*b = bb[1:]
	return r, nil
}

func (b *byteBuf) skipN(n int64) error {
	bb := *b
	if n < 0 || int64(len(bb)) < n {
		*b = bb[:0]
		return io.ErrUnexpectedEOF
	}
	*b = bb[n:]
	return nil
}

// wrapper around a bufio.Reader
type readerWrapper struct {
	r   *bufio.Reader
	tmp [8]byte
}

func newReaderWrapper(r io.Reader, size int) *readerWrapper {
	if br, ok := r.(*bufio.Reader); ok && br.Size() >= size {
		return &readerWrapper{r: br}
	}
	return &readerWrapper{r: bufio.NewReaderSize(r, size)}
}

func (r *readerWrapper) readSmall(n int) ([]byte, error) {
	n2, err := io.ReadFull(r.r, r.tmp[:n])
	// We only really care about the actual bytes read.
	if err != nil {
		if err == io.EOF && n2 > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return r.tmp[:n], nil
}

func (r *readerWrapper) readBig(n int, dst []byte) ([]byte, error) {
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	n2, err := io.ReadFull(r.r, dst)
	if err == io.EOF && n > 0 {
		err = io.ErrUnexpectedEOF
	}
	return dst[:n2], err
}

func (r *readerWrapper) readByte() (byte, error) {
	return r.r.ReadByte()
}

func (r *readerWrapper) skipN(n int64) error {
	n2, err := io.CopyN(io.Discard, r.r, n)
	if n2 != n {
		return io.ErrUnexpectedEOF
	}
	return err
}
