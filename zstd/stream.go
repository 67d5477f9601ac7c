package zstd

import (
	"errors"
	"io"
)

// Stream decodes input that is pushed to it in pieces.
//
// Feed adds input and Poll returns decoded output as soon as a complete
// block is available. A Stream is not safe for concurrent use.
type Stream struct {
	o     decoderOptions
	dec   streamDec
	in    []byte
	err   error
	ended bool
}

// NewStream returns a Stream ready for input.
func NewStream(opts ...DOption) (*Stream, error) {
	var s Stream
	s.o.setDefault()
	for _, o := range opts {
		if err := o(&s.o); err != nil {
			return nil, err
		}
	}
	if s.o.maxWindowSize > s.o.maxDecodedSize {
		s.o.maxWindowSize = s.o.maxDecodedSize
	}
	s.dec.frame = newFrameDec(s.o)
	return &s, nil
}

// Feed adds compressed input. The slice is copied.
func (s *Stream) Feed(p []byte) error {
	if s.err != nil {
		return s.err
	}
	if s.ended {
		return errors.New("zstd: feed after finish")
	}
	s.in = append(s.in, p...)
	return nil
}

// Poll decodes the next complete block of the input.
// It returns nil and no error when more input is needed.
// The returned slice is only valid until the next call to Poll.
// After an error all calls return the same error.
func (s *Stream) Poll() ([]byte, error) {
	for s.err == nil {
		br := byteBuf(s.in)
		if !s.dec.inFrame {
			err := s.dec.frame.reset(&br)
			if needInput(err) {
				return nil, nil
			}
			if err != nil {
				s.err = err
				return nil, err
			}
			s.dec.inFrame = true
			s.in = br.remain()
			continue
		}
		s.dec.br = &br
		b, err := s.dec.nextBlock()
		if needInput(err) {
			// The block is parsed again from its header when more input arrives.
			return nil, nil
		}
		s.in = br.remain()
		if err != nil {
			s.err = err
			return b, err
		}
		if len(b) > 0 {
			return b, nil
		}
	}
	return nil, s.err
}

// Finish tells the stream that no more input will be fed.
// It returns ErrTruncated if the input ended inside a frame.
// Poll should be called until it returns nil before Finish.
func (s *Stream) Finish() error {
	s.ended = true
	if s.err != nil {
		return s.err
	}
	if s.dec.inFrame {
		s.err = ErrTruncated
		return s.err
	}
	if len(s.in) > 0 {
		// Only complete skippable frames may remain.
		br := byteBuf(s.in)
		switch err := s.dec.frame.reset(&br); {
		case err == io.EOF:
			s.in = nil
			return nil
		case err == nil:
			s.err = ErrTruncated
		default:
			s.err = err
		}
		return s.err
	}
	return nil
}

func needInput(err error) bool {
	return err == io.EOF || errors.Is(err, ErrTruncated)
}
