package zstd

import (
	"github.com/xsong93/zdec/fse"
	"github.com/xsong93/zdec/huff0"
)

// history is the state carried from one block to the next within a frame.
type history struct {
	win           window
	huffTree      *huff0.Table
	recentOffsets [3]int
	// previous tables for repeat mode, indexed by tableLiteralLengths etc.
	seqTables [3]*fse.Table
}

// reset will reset the history to initial state of a frame.
func (h *history) reset(windowSize int, lowMem bool) {
	h.win.reset(windowSize, lowMem)
	h.recentOffsets = [3]int{1, 4, 8}
	h.huffTree = nil
	h.seqTables = [3]*fse.Table{}
}

// When not in low memory mode, windows up to this size are allocated up front.
const maxWindowPrealloc = 8 << 20

// window holds the most recent output of a frame.
// It grows as output is added until it reaches size,
// after which it is used as a ring buffer where pos is the oldest byte.
type window struct {
	b    []byte
	size int
	pos  int
}

func (w *window) reset(size int, lowMem bool) {
	w.size = size
	w.pos = 0
	alloc := size
	if lowMem && alloc > maxCompressedBlockSize {
		alloc = maxCompressedBlockSize
	}
	if alloc > maxWindowPrealloc {
		alloc = maxWindowPrealloc
	}
	if cap(w.b) < alloc || (lowMem && cap(w.b) > size+maxCompressedBlockSize) {
		w.b = make([]byte, 0, alloc)
	}
	w.b = w.b[:0]
}

// filled returns the number of bytes addressable by a back-reference.
func (w *window) filled() int {
	return len(w.b)
}

// append b to the window, discarding the oldest bytes if full.
func (w *window) append(b []byte) {
	if w.size == 0 {
		return
	}
	if len(b) >= w.size {
		// Discard all history by simply overwriting
		w.b = append(w.b[:0], b[len(b)-w.size:]...)
		w.pos = 0
		return
	}
	if free := w.size - len(w.b); free > 0 {
		n := min(free, len(b))
		w.b = append(w.b, b[:n]...)
		b = b[n:]
	}
	for len(b) > 0 {
		n := copy(w.b[w.pos:], b)
		b = b[n:]
		w.pos += n
		if w.pos == w.size {
			w.pos = 0
		}
	}
}

// appendTail appends n bytes to dst, starting back bytes before the end
// of the window. back must be in 1..filled() and n <= back.
func (w *window) appendTail(dst []byte, back, n int) []byte {
	// Logical index of the first byte, 0 is the oldest.
	start := len(w.b) - back
	if len(w.b) < w.size || w.pos == 0 {
		return append(dst, w.b[start:start+n]...)
	}
	p := w.pos + start
	if p >= w.size {
		p -= w.size
	}
	if first := w.size - p; first < n {
		dst = append(dst, w.b[p:]...)
		return append(dst, w.b[:n-first]...)
	}
	return append(dst, w.b[p:p+n]...)
}

// bytes returns the window content, oldest first.
func (w *window) bytes() []byte {
	out := make([]byte, 0, len(w.b))
	if len(w.b) == 0 {
		return out
	}
	return w.appendTail(out, len(w.b), len(w.b))
}
