package fse

import (
	"fmt"

	"github.com/xsong93/zdec/internal/bitstream"
)

// State keeps track of the current state and updates it from the bitstream.
type State struct {
	table *Table
	state uint16
}

// Init will initialize the state from the first TableLog bits of br.
func (s *State) Init(br *bitstream.Reader, t *Table) {
	s.table = t
	br.Fill()
	s.state = uint16(br.GetBits(t.TableLog))
}

// Symbol returns the current state symbol without decoding the next.
func (s *State) Symbol() uint8 {
	return s.table.Entries[s.state].Symbol
}

// Update reads the low bits of the next state from br.
// br must hold at least NbBits buffered bits.
func (s *State) Update(br *bitstream.Reader) {
	e := s.table.Entries[s.state]
	s.state = e.NewState + uint16(br.GetBits(e.NbBits))
}

// Next returns the current symbol and moves to the next state.
func (s *State) Next(br *bitstream.Reader) uint8 {
	br.Fill()
	sym := s.Symbol()
	s.Update(br)
	return sym
}

// Decompress decodes a table description followed by a bitstream
// interleaving two states. Decoding stops when a state update runs past
// the end of the stream; the other state's symbol is then the last one.
// At most maxOut symbols are produced.
func Decompress(in []byte, maxLog uint8, maxOut int) ([]byte, error) {
	norm, tableLog, n, err := ReadNCount(in, MaxSymbolValue, maxLog)
	if err != nil {
		return nil, err
	}
	t, err := Build(norm, tableLog)
	if err != nil {
		return nil, err
	}
	var br bitstream.Reader
	if err := br.Init(in[n:]); err != nil {
		return nil, err
	}
	var s1, s2 State
	s1.Init(&br, t)
	s2.Init(&br, t)
	if br.Overread() {
		return nil, bitstream.ErrOverread
	}

	out := make([]byte, 0, maxOut)
	for {
		if len(out) > maxOut-2 {
			return nil, fmt.Errorf("%w: limit %d", ErrOutputTooLarge, maxOut)
		}
		out = append(out, s1.Next(&br))
		if br.Overread() {
			out = append(out, s2.Symbol())
			break
		}
		out = append(out, s2.Next(&br))
		if br.Overread() {
			if len(out) >= maxOut {
				return nil, fmt.Errorf("%w: limit %d", ErrOutputTooLarge, maxOut)
			}
			out = append(out, s1.Symbol())
			break
		}
	}
	return out, nil
}
