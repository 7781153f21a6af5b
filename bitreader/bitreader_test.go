package bitreader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadU(t *testing.T) {
	r := New([]byte{0b10110010, 0b11110000})

	t.Run("single_bits", func(t *testing.T) {
		r := New([]byte{0b10100000})
		v, err := r.ReadU(1)
		require.NoError(t, err)
		require.Equal(t, uint32(1), v)
		v, err = r.ReadU(1)
		require.NoError(t, err)
		require.Equal(t, uint32(0), v)
	})

	t.Run("crosses_byte_boundary", func(t *testing.T) {
		v, err := r.ReadU(12)
		require.NoError(t, err)
		require.Equal(t, uint32(0b101100101111), v)
	})

	t.Run("eof", func(t *testing.T) {
		r := New([]byte{0xFF})
		_, err := r.ReadU(1)
		require.NoError(t, err)
		_, err = r.ReadU(8)
		require.Error(t, err)
		require.IsType(t, ErrUnexpectedEOF{}, err)
	})
}

func TestReadS(t *testing.T) {
	// 4-bit two's complement: 0b1000 == -8, 0b0111 == 7
	r := New([]byte{0b10000111, 0b00000000})
	v, err := r.ReadS(4)
	require.NoError(t, err)
	require.Equal(t, int32(-8), v)
	v, err = r.ReadS(4)
	require.NoError(t, err)
	require.Equal(t, int32(7), v)
}

func TestReadBool(t *testing.T) {
	r := New([]byte{0b10000000})
	v, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, v)
	v, err = r.ReadBool()
	require.NoError(t, err)
	require.False(t, v)
}

func TestReadUE(t *testing.T) {
	// ue(v) table from the H.264 spec: bit string -> value
	cases := []struct {
		bits  []byte
		value uint32
	}{
		{[]byte{0b10000000}, 0},
		{[]byte{0b01000000}, 1},
		{[]byte{0b01100000}, 2},
		{[]byte{0b00100000}, 3},
		{[]byte{0b00101000}, 4},
	}
	for _, c := range cases {
		r := New(c.bits)
		v, err := r.ReadUE()
		require.NoError(t, err)
		require.Equal(t, c.value, v)
	}
}

func TestReadSE(t *testing.T) {
	cases := []struct {
		bits  []byte
		value int32
	}{
		{[]byte{0b10000000}, 0},
		{[]byte{0b01000000}, 1},
		{[]byte{0b01100000}, -1},
		{[]byte{0b00100000}, 2},
	}
	for _, c := range cases {
		r := New(c.bits)
		v, err := r.ReadSE()
		require.NoError(t, err)
		require.Equal(t, c.value, v)
	}
}

func TestExpGolombRoundTrip(t *testing.T) {
	for x := int32(-(1 << 20)); x <= (1 << 20); x += 997 {
		w := &Writer{}
		w.EncodeSE(x)
		r := New(w.Bytes())
		got, err := r.ReadSE()
		require.NoError(t, err)
		require.Equal(t, x, got, "se round trip for %d", x)
	}

	for x := uint32(0); x <= (1 << 20); x += 997 {
		w := &Writer{}
		w.EncodeUE(x)
		r := New(w.Bytes())
		got, err := r.ReadUE()
		require.NoError(t, err)
		require.Equal(t, x, got, "ue round trip for %d", x)
	}
}

func TestByteAlign(t *testing.T) {
	r := New([]byte{0xFF, 0xFF})
	_, err := r.ReadU(3)
	require.NoError(t, err)
	r.ByteAlign()
	require.Equal(t, 8, r.BitsRemaining())
}
