package zstd

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
)

// DOption is an option for creating a decoder.
type DOption func(*decoderOptions) error

// options retains accumulated state of multiple options.
type decoderOptions struct {
	lowMem         bool
	concurrent     int
	maxDecodedSize uint64
	maxWindowSize  uint64
}

const (
	// MinWindowSize is the smallest window size accepted by WithDecoderMaxWindow.
	MinWindowSize = minWindowSize

	// MaxWindowSize is the largest window size accepted by WithDecoderMaxWindow.
	MaxWindowSize = 1 << 31

	// default maximum window size, the limit reference decoders apply.
	defaultMaxWindowSize = 1 << 27
)

func (o *decoderOptions) setDefault() {
	*o = decoderOptions{
		// use less ram: true for now, but may change.
		lowMem:         true,
		concurrent:     1,
		maxDecodedSize: 64 << 30,
		maxWindowSize:  defaultMaxWindowSize,
	}
}

// WithDecoderLowmem will set whether to use a lower amount of memory,
// but possibly have to allocate more while running.
func WithDecoderLowmem(b bool) DOption {
	return func(o *decoderOptions) error { o.lowMem = b; return nil }
}

// WithDecoderConcurrency sets the number of created decoders.
// When decoding concatenated frames with DecodeAll, up to this many frames
// are decoded concurrently. When decoding a stream, up to this many
// decoded blocks are buffered ahead of the reader.
// A value of 0 uses GOMAXPROCS.
// By default a single decoder is used.
func WithDecoderConcurrency(n int) DOption {
	return func(o *decoderOptions) error {
		if n < 0 {
			return errors.New("concurrency must be at least 1")
		}
		if n == 0 {
			o.concurrent = runtime.GOMAXPROCS(0)
		} else {
			o.concurrent = n
		}
		return nil
	}
}

// WithDecoderMaxMemory allows to set a maximum decoded size for in-memory
// non-streaming operations or maximum window size for streaming operations.
// This can be used to control memory usage of potentially hostile content.
// Maximum is 1 << 63 bytes. Default is 64GiB.
func WithDecoderMaxMemory(n uint64) DOption {
	return func(o *decoderOptions) error {
		if n == 0 {
			return errors.New("WithDecoderMaxMemory must be at least 1")
		}
		if n > 1<<63 {
			return errors.New("WithDecoderMaxmemory must be less than 1 << 63")
		}
		o.maxDecodedSize = n
		return nil
	}
}

// WithDecoderMaxWindow allows to set a maximum window size for decodes.
// This allows rejecting packets that will cause big memory usage.
// The Decoder will likely allocate more memory based on the WithDecoderLowmem setting.
// If WithDecoderMaxMemory is set to a lower value, that will be used.
// Default is 128MiB, maximum is 2GiB.
func WithDecoderMaxWindow(size uint64) DOption {
	return func(o *decoderOptions) error {
		if size < MinWindowSize {
			return fmt.Errorf("WithDecoderMaxWindow must be at least %d", MinWindowSize)
		}
		if size > MaxWindowSize || bits.UintSize == 32 && size > 1<<30 {
			return fmt.Errorf("WithDecoderMaxWindow must be no more than %d", uint64(MaxWindowSize))
		}
		o.maxWindowSize = size
		return nil
	}
}
