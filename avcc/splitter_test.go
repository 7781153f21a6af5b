package avcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidLengthSize(t *testing.T) {
	_, err := New(3)
	require.Error(t, err)
}

func TestSplitHoldsPartialBody(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	nalus := s.Split([]byte{0, 0, 0, 5, 0x67, 0xAA}, false)
	require.Empty(t, nalus, "body isn't fully buffered yet")

	nalus = s.Split([]byte{0xBB, 0xCC, 0xDD}, false)
	require.Len(t, nalus, 1)
	require.Equal(t, []byte{0, 0, 0, 5}, nalus[0].StrippedPrefix)
	require.Equal(t, []byte{0x67, 0xAA, 0xBB, 0xCC, 0xDD}, nalus[0].Payload)
}

func TestSplitMultipleNALUsInOneChunk(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	data := []byte{0, 0, 0, 2, 0x67, 0x01, 0, 0, 0, 3, 0x68, 0x02, 0x03}
	nalus := s.Split(data, false)
	require.Len(t, nalus, 2)
	require.Equal(t, []byte{0x67, 0x01}, nalus[0].Payload)
	require.Equal(t, []byte{0x68, 0x02, 0x03}, nalus[1].Payload)
}

func TestSplitTwoByteLengthSize(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)

	nalus := s.Split([]byte{0, 3, 0x65, 0x01, 0x02}, false)
	require.Len(t, nalus, 1)
	require.Equal(t, []byte{0x65, 0x01, 0x02}, nalus[0].Payload)
}

func TestFlushDiscardsIncompleteTail(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	s.Split([]byte{0, 0, 0, 9, 0x01}, false)
	require.Empty(t, s.Flush())
}
