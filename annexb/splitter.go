// Package annexb implements the Annex B half of the NALU Splitter (spec
// §4.4): a start-code scanner with a one-NALU lookahead and a pending-tail
// buffer, generalizing extradata.SplitAnnexB's one-shot behavior into
// an incremental state machine that can be fed a chunked byte stream.
package annexb

// NALU is one framing unit produced by Split/Flush: the start code that
// preceded it plus the NALU bytes that followed.
type NALU struct {
	StrippedPrefix []byte // the 3- or 4-byte start code
	Payload        []byte
}

// Splitter holds the pending-tail buffer between Split calls (spec §4.4:
// "bytes after the last start code are withheld until either more input
// arrives or flush() is called").
type Splitter struct {
	buf []byte
}

// New returns an empty Splitter.
func New() *Splitter {
	return &Splitter{}
}

// Split feeds data into the splitter and returns every NALU that can be
// confirmed complete: one whose closing start code (or the end of input,
// if assumeAligned) has already been seen. assumeAligned signals that
// the caller guarantees each call to Split carries exactly one complete
// NALU (the filter's nalu_aligned input mode, spec §4.9 step 2) — in that
// case no tail is withheld.
func (s *Splitter) Split(data []byte, assumeAligned bool) []NALU {
	s.buf = append(s.buf, data...)
	nalus := s.drain(false)
	if assumeAligned {
		nalus = append(nalus, s.drain(true)...)
	}
	return nalus
}

// Flush emits whatever NALU remains in the pending-tail buffer (end of
// stream, or a caller-signalled alignment boundary) and clears the
// splitter's state.
func (s *Splitter) Flush() []NALU {
	return s.drain(true)
}

// drain scans s.buf for start codes and emits every NALU whose end is
// confirmed: either by a subsequent start code, or — when final is true —
// by the end of the buffered bytes.
func (s *Splitter) drain(final bool) []NALU {
	var out []NALU
	start := findStartCode(s.buf, 0)
	if start < 0 {
		if final {
			s.buf = nil
		}
		return out
	}

	pos := start
	for {
		scLen := startCodeLen(s.buf, pos)
		bodyStart := pos + scLen
		next := findStartCode(s.buf, bodyStart)

		if next < 0 {
			if !final {
				// hold this NALU as the pending tail; it isn't confirmed
				// complete yet.
				s.buf = s.buf[pos:]
				return out
			}
			if bodyStart < len(s.buf) {
				out = append(out, NALU{
					StrippedPrefix: clone(s.buf[pos:bodyStart]),
					Payload:        clone(s.buf[bodyStart:]),
				})
			}
			s.buf = nil
			return out
		}

		if bodyStart < next {
			out = append(out, NALU{
				StrippedPrefix: clone(s.buf[pos:bodyStart]),
				Payload:        clone(s.buf[bodyStart:next]),
			})
		}
		pos = next
	}
}

// findStartCode returns the index of the first occurrence, at or after
// start, of either 00 00 01 or 00 00 00 01, or -1. Grounded on
// extradata.FindStartCode, generalized to tolerate a buffer whose tail
// might still grow (no decision is made about a start code straddling
// the end of the buffer — the caller's "no match" handling naturally
// holds those bytes back until more data arrives).
func findStartCode(b []byte, start int) int {
	n := len(b)
	for i := start; i+3 <= n; i++ {
		if b[i] == 0 && b[i+1] == 0 {
			if b[i+2] == 1 {
				return i
			}
			if i+4 <= n && b[i+2] == 0 && b[i+3] == 1 {
				return i
			}
		}
	}
	return -1
}

// startCodeLen returns 3 or 4 depending on which start-code form begins
// at pos. Assumes findStartCode already confirmed a match there.
func startCodeLen(b []byte, pos int) int {
	if pos+3 < len(b) && b[pos] == 0 && b[pos+1] == 0 && b[pos+2] == 0 && b[pos+3] == 1 {
		return 4
	}
	return 3
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
