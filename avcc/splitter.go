// Package avcc implements the length-prefixed half of the NALU Splitter
// (spec §4.4): each NALU is preceded by a big-endian length_size-byte
// field giving its body length, generalizing the fixed-at-7-bytes-header
// reading extradata.ParseH264AVCC does for the
// configuration record into a streaming per-NALU reader.
package avcc

import "fmt"

// NALU is one framing unit produced by Split/Flush.
type NALU struct {
	StrippedPrefix []byte // the length_size-byte big-endian length field
	Payload        []byte
}

// ErrInvalidLengthSize is returned by New for any length_size outside
// the set the DCR's lengthSizeMinusOne field can encode (spec §4.8).
type ErrInvalidLengthSize struct {
	LengthSize int
}

func (e ErrInvalidLengthSize) Error() string {
	return fmt.Sprintf("avcc: invalid length_size %d (must be 1, 2, or 4)", e.LengthSize)
}

// Splitter holds the pending-tail buffer between Split calls: bytes that
// don't yet contain a full length field plus advertised body.
type Splitter struct {
	lengthSize int
	buf        []byte
}

// New returns a Splitter reading lengthSize-byte length prefixes.
func New(lengthSize int) (*Splitter, error) {
	switch lengthSize {
	case 1, 2, 4:
		return &Splitter{lengthSize: lengthSize}, nil
	default:
		return nil, ErrInvalidLengthSize{LengthSize: lengthSize}
	}
}

// Split feeds data in and returns every NALU whose length prefix and
// full advertised body are already buffered. assumeAligned is accepted
// for symmetry with annexb.Splitter but has no effect here: AVCC framing
// never needs lookahead to confirm a NALU's end, since its length is
// given up front.
func (s *Splitter) Split(data []byte, assumeAligned bool) []NALU {
	s.buf = append(s.buf, data...)
	return s.drain()
}

// Flush returns nothing new beyond what Split already emitted: a
// truncated trailing length prefix or partial body can never become a
// valid NALU, so any remaining bytes are simply discarded. It exists to
// satisfy the same splitter shape the Filter coordinator drives
// uniformly across framings (spec §4.9 step 2).
func (s *Splitter) Flush() []NALU {
	s.buf = nil
	return nil
}

func (s *Splitter) drain() []NALU {
	var out []NALU
	for {
		if len(s.buf) < s.lengthSize {
			return out
		}
		length := readLength(s.buf[:s.lengthSize], s.lengthSize)
		total := s.lengthSize + length
		if len(s.buf) < total {
			return out
		}
		out = append(out, NALU{
			StrippedPrefix: clone(s.buf[:s.lengthSize]),
			Payload:        clone(s.buf[s.lengthSize:total]),
		})
		s.buf = s.buf[total:]
	}
}

func readLength(b []byte, n int) int {
	v := 0
	for i := 0; i < n; i++ {
		v = (v << 8) | int(b[i])
	}
	return v
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
