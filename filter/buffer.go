package filter

import "github.com/membraneframework-labs/membrane-h264-plugin/h264"

// Span is a contiguous byte range within an output buffer's payload
// (spec §6): offset and length, in bytes.
type Span struct {
	Offset int
	Length int
}

// NALUMeta describes one NALU within an output buffer's payload
// (spec §6 output buffer metadata).
type NALUMeta struct {
	Type             h264.Type
	PrefixedPosLen   Span // spans the NALU including its length/start-code prefix
	UnprefixedPosLen Span // spans the NALU body only
	NewAccessUnit    bool
	EndAccessUnit    bool
}

// OutputBuffer is one buffer handed back to the host (spec §6): either
// one AU's worth of concatenated NALU payloads, or one NALU, depending
// on Config.OutputAlignment.
type OutputBuffer struct {
	Payload   []byte
	KeyFrame  bool
	NALUs     []NALUMeta
	Timestamps h264.Timestamps
}
