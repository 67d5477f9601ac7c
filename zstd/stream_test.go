package zstd

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	refzstd "github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pollAll returns all output available from s.
func pollAll(t testing.TB, s *Stream) []byte {
	t.Helper()
	var out []byte
	for {
		b, err := s.Poll()
		require.NoError(t, err)
		if b == nil {
			return out
		}
		out = append(out, b...)
	}
}

func TestStreamChunks(t *testing.T) {
	comp, want := testConcatenated(t)
	for _, size := range []int{1, 7, 1000, 1 << 20} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			s, err := NewStream()
			require.NoError(t, err)
			var got []byte
			for in := comp; len(in) > 0; {
				n := min(size, len(in))
				require.NoError(t, s.Feed(in[:n]))
				in = in[n:]
				got = append(got, pollAll(t, s)...)
			}
			require.NoError(t, s.Finish())
			require.True(t, bytes.Equal(want, got), "got %d bytes, want %d", len(got), len(want))
		})
	}
}

func TestStreamOutputBetweenFeeds(t *testing.T) {
	in := testFrame([]byte{0x00, 0x00},
		testBlockHeader(false, blockTypeRaw, 1), []byte("a"),
		testBlockHeader(true, blockTypeRaw, 1), []byte("b"))
	s, err := NewStream()
	require.NoError(t, err)
	var got []string
	for i := range in {
		require.NoError(t, s.Feed(in[i:i+1]))
		if b := pollAll(t, s); len(b) > 0 {
			got = append(got, fmt.Sprintf("%d:%s", i, b))
		}
	}
	require.NoError(t, s.Finish())
	// Each block is returned as soon as its last byte is fed.
	assert.Equal(t, []string{"9:a", "13:b"}, got)
}

func TestStreamCompressedBlocksByteByByte(t *testing.T) {
	in := testText(20000, 11)
	comp := testEncode(t, in, refzstd.WithWindowSize(1<<12))
	var h Header
	require.NoError(t, h.Decode(comp))
	require.True(t, h.FirstBlock.OK)
	require.True(t, h.FirstBlock.Compressed)
	require.False(t, h.FirstBlock.Last)

	s, err := NewStream()
	require.NoError(t, err)
	var got []byte
	var feedsWithOutput []int
	for i := range comp {
		require.NoError(t, s.Feed(comp[i:i+1]))
		if b := pollAll(t, s); len(b) > 0 {
			got = append(got, b...)
			feedsWithOutput = append(feedsWithOutput, i)
		}
	}
	require.NoError(t, s.Finish())
	require.True(t, bytes.Equal(in, got))

	// Blocks are at most 4 KiB, so output arrives in several pieces
	// well before the input ends.
	require.GreaterOrEqual(t, len(feedsWithOutput), 5)
	assert.Less(t, feedsWithOutput[0], len(comp)/2)
	assert.Equal(t, len(comp)-1, feedsWithOutput[len(feedsWithOutput)-1])
}

func TestStreamMatchesDecodeAll(t *testing.T) {
	in := testInputs()["mixed"]
	comp := testEncode(t, in)
	s, err := NewStream(WithDecoderLowmem(false))
	require.NoError(t, err)
	require.NoError(t, s.Feed(comp))
	got := pollAll(t, s)
	require.NoError(t, s.Finish())
	require.True(t, bytes.Equal(in, got))
}

func TestStreamTruncated(t *testing.T) {
	comp, want := testConcatenated(t)
	s, err := NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Feed(comp[:len(comp)-5]))
	got := pollAll(t, s)
	assert.True(t, bytes.HasPrefix(want, got))
	assert.Less(t, len(got), len(want))

	err = s.Finish()
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// The error sticks.
	_, err = s.Poll()
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, s.Feed(comp[len(comp)-5:]), ErrTruncated)
}

func TestStreamPartialHeader(t *testing.T) {
	s, err := NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Feed(helloFrame[:5]))
	b, err := s.Poll()
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.ErrorIs(t, s.Finish(), ErrTruncated)
}

func TestStreamSkippable(t *testing.T) {
	skippable := []byte{0x5f, 0x2a, 0x4d, 0x18, 4, 0, 0, 0, 'a', 'b', 'c', 'd'}

	s, err := NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Feed(skippable))
	require.NoError(t, s.Feed(helloFrame))
	require.NoError(t, s.Feed(skippable))
	assert.Equal(t, "hello", string(pollAll(t, s)))
	assert.NoError(t, s.Finish())

	// A skippable frame cut short.
	s, err = NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Feed(helloFrame))
	require.NoError(t, s.Feed(skippable[:10]))
	assert.Equal(t, "hello", string(pollAll(t, s)))
	assert.ErrorIs(t, s.Finish(), ErrTruncated)
}

func TestStreamErrors(t *testing.T) {
	s, err := NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Feed(helloFrame))
	require.NoError(t, s.Feed([]byte("not a frame")))
	b, err := s.Poll()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	_, err = s.Poll()
	assert.ErrorIs(t, err, ErrMagicMismatch)
	assert.ErrorIs(t, err, ErrFormat)
	assert.ErrorIs(t, s.Feed(helloFrame), ErrMagicMismatch)
	assert.ErrorIs(t, s.Finish(), ErrMagicMismatch)

	s, err = NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Finish())
	assert.Error(t, s.Feed(helloFrame))

	_, err = NewStream(WithDecoderConcurrency(-1))
	assert.Error(t, err)
}
