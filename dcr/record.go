// Package dcr parses and generates the AVCC Decoder Configuration Record
// (spec §4.8), generalizing extradata.H264AVCC's read-only
// parser with a matching encode path.
package dcr

import (
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Record is a parsed (or to-be-generated) AVCDecoderConfigurationRecord.
type Record struct {
	Profile       uint8
	Compatibility uint8
	Level         uint8
	LengthSize    int // 1, 2, or 4
	SPSs          [][]byte
	PPSs          [][]byte
}

// MalformedError wraps a DCR parse failure (spec §7 MalformedDcr).
type MalformedError struct {
	Reason string
}

func (e MalformedError) Error() string {
	return fmt.Sprintf("malformed DCR: %s", e.Reason)
}

// Parse decodes an AVCDecoderConfigurationRecord (spec §4.8), following
// extradata.ParseH264AVCC's field layout.
func Parse(b []byte) (*Record, error) {
	if len(b) < 7 {
		return nil, MalformedError{Reason: fmt.Sprintf("data too short (%d bytes)", len(b))}
	}
	if b[0] != 1 {
		return nil, MalformedError{Reason: fmt.Sprintf("unsupported configurationVersion (%d)", b[0])}
	}

	rec := &Record{
		Profile:       b[1],
		Compatibility: b[2],
		Level:         b[3],
		LengthSize:    int(b[4]&0x03) + 1,
	}

	numSPS := int(b[5] & 0x1F)
	offset := 6

	var err error
	rec.SPSs, offset, err = readBlobs(b, offset, numSPS)
	if err != nil {
		return nil, err
	}
	if offset >= len(b) {
		return nil, MalformedError{Reason: "missing numOfPictureParameterSets"}
	}

	numPPS := int(b[offset])
	offset++
	rec.PPSs, offset, err = readBlobs(b, offset, numPPS)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// readBlobs reads count u16-length-prefixed byte blobs starting at
// offset (used for both the SPS and PPS lists, which share this shape).
func readBlobs(b []byte, offset, count int) ([][]byte, int, error) {
	var blobs [][]byte
	for i := 0; i < count; i++ {
		if offset+2 > len(b) {
			return nil, offset, MalformedError{Reason: "truncated length field"}
		}
		length := int(binary.BigEndian.Uint16(b[offset:]))
		offset += 2
		if offset+length > len(b) {
			return nil, offset, MalformedError{Reason: "truncated parameter set blob"}
		}
		blob := make([]byte, length)
		copy(blob, b[offset:offset+length])
		blobs = append(blobs, blob)
		offset += length
	}
	return blobs, offset, nil
}

// Generate encodes rec back into an AVCDecoderConfigurationRecord. It
// encodes whatever LengthSize rec holds (Parse fills it from the source
// record), and, per spec §9's open question, makes no attempt
// to preserve any leading zero padding a source record might have had —
// only byte-exact payload and a correctly sized length prefix matter.
func (rec *Record) Generate() ([]byte, error) {
	if rec.LengthSize != 1 && rec.LengthSize != 2 && rec.LengthSize != 4 {
		return nil, fmt.Errorf("dcr: invalid LengthSize %d", rec.LengthSize)
	}
	if len(rec.SPSs) == 0 {
		return nil, fmt.Errorf("dcr: at least one SPS is required")
	}
	if len(rec.SPSs) > 31 {
		return nil, fmt.Errorf("dcr: too many SPSs (%d, max 31)", len(rec.SPSs))
	}
	if len(rec.PPSs) > 255 {
		return nil, fmt.Errorf("dcr: too many PPSs (%d, max 255)", len(rec.PPSs))
	}

	out := []byte{
		1,
		rec.Profile,
		rec.Compatibility,
		rec.Level,
		0xFC | byte(rec.LengthSize-1),
		0xE0 | byte(len(rec.SPSs)),
	}
	for _, sps := range rec.SPSs {
		out = appendBlob(out, sps)
	}
	out = append(out, byte(len(rec.PPSs)))
	for _, pps := range rec.PPSs {
		out = appendBlob(out, pps)
	}
	return out, nil
}

func appendBlob(out []byte, blob []byte) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(blob)))
	out = append(out, lenBuf[:]...)
	return append(out, blob...)
}

// String renders a human-readable summary, in the style of
// extradata.H264AVCC.String().
func (rec *Record) String() string {
	totalParamBytes := 0
	for _, s := range rec.SPSs {
		totalParamBytes += len(s)
	}
	for _, p := range rec.PPSs {
		totalParamBytes += len(p)
	}
	return fmt.Sprintf("DCR profile=0x%02X level=0x%02X length_size=%d sps=%d pps=%d (%s param bytes)",
		rec.Profile, rec.Level, rec.LengthSize, len(rec.SPSs), len(rec.PPSs), humanize.Comma(int64(totalParamBytes)))
}
