package dcr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildRecordBytes(lengthSize int, sps, pps []byte) []byte {
	out := []byte{1, 0x42, 0xC0, 0x1E, 0xFC | byte(lengthSize-1), 0xE0 | 1}
	out = appendBlob(out, sps)
	out = append(out, 1)
	out = appendBlob(out, pps)
	return out
}

func TestParseRoundTrip(t *testing.T) {
	sps := []byte{0x67, 0x42, 0xC0, 0x1E}
	pps := []byte{0x68, 0xCE, 0x3C, 0x80}
	raw := buildRecordBytes(4, sps, pps)

	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, uint8(0x42), rec.Profile)
	require.Equal(t, 4, rec.LengthSize)
	require.Equal(t, [][]byte{sps}, rec.SPSs)
	require.Equal(t, [][]byte{pps}, rec.PPSs)

	regen, err := rec.Generate()
	require.NoError(t, err)
	require.Equal(t, raw, regen)
}

func TestParseRejectsShortInput(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	require.Error(t, err)
	require.IsType(t, MalformedError{}, err)
}

func TestParseRejectsBadVersion(t *testing.T) {
	raw := buildRecordBytes(4, []byte{0x67}, []byte{0x68})
	raw[0] = 2
	_, err := Parse(raw)
	require.Error(t, err)
}

func TestParseRejectsTruncatedBlob(t *testing.T) {
	raw := buildRecordBytes(4, []byte{0x67, 0x01, 0x02}, []byte{0x68})
	truncated := raw[:len(raw)-4]
	_, err := Parse(truncated)
	require.Error(t, err)
}

func TestGenerateRejectsNoSPS(t *testing.T) {
	rec := &Record{LengthSize: 4}
	_, err := rec.Generate()
	require.Error(t, err)
}

func TestGenerateRejectsInvalidLengthSize(t *testing.T) {
	rec := &Record{LengthSize: 3, SPSs: [][]byte{{0x67}}}
	_, err := rec.Generate()
	require.Error(t, err)
}

func TestParseTwoByteLengthSize(t *testing.T) {
	raw := buildRecordBytes(2, []byte{0x67}, []byte{0x68})
	rec, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 2, rec.LengthSize)
}
