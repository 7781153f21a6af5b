package filter

import (
	"context"
	"testing"

	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/h264"
	"github.com/stretchr/testify/require"
)

// buildSPSBody mirrors h264.buildBaselineSPSBody: a 320x240
// baseline-profile SPS RBSP with pic_order_cnt_type=2.
func buildSPSBody() []byte {
	w := &bitreader.Writer{}
	w.WriteU(66, 8)
	w.WriteU(1, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 2)
	w.WriteU(30, 8)
	w.EncodeUE(0)
	w.EncodeUE(0)
	w.EncodeUE(2)
	w.EncodeUE(2)
	w.WriteU(0, 1)
	w.EncodeUE(19)
	w.EncodeUE(14)
	w.WriteU(1, 1)
	w.WriteU(1, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	return w.Bytes()
}

func buildPPSBody() []byte {
	w := &bitreader.Writer{}
	w.EncodeUE(0)
	w.EncodeUE(0)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	w.EncodeUE(0)
	w.EncodeUE(0)
	w.EncodeUE(0)
	w.WriteU(0, 1)
	w.WriteU(0, 2)
	w.EncodeSE(0)
	w.EncodeSE(0)
	w.EncodeSE(0)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	w.WriteU(0, 1)
	return w.Bytes()
}

func buildSliceBody(frameNum uint32, isIDR bool) []byte {
	w := &bitreader.Writer{}
	w.EncodeUE(0)
	w.EncodeUE(7)
	w.EncodeUE(0)
	w.WriteU(frameNum, 4)
	if isIDR {
		w.EncodeUE(0) // idr_pic_id
	}
	return w.Bytes()
}

func naluHeader(refIdc uint8, typ h264.Type) byte {
	return byte(refIdc<<5) | byte(typ)
}

func annexBFrame(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func sps() []byte {
	return append([]byte{naluHeader(3, h264.TypeSPS)}, buildSPSBody()...)
}

func pps() []byte {
	return append([]byte{naluHeader(3, h264.TypePPS)}, buildPPSBody()...)
}

func idrSlice(frameNum uint32) []byte {
	return append([]byte{naluHeader(3, h264.TypeIDR)}, buildSliceBody(frameNum, true)...)
}

func nonIdrSlice(frameNum uint32) []byte {
	return append([]byte{naluHeader(2, h264.TypeNonIDR)}, buildSliceBody(frameNum, false)...)
}

func TestPushAnnexBBytestreamProducesOneAUBuffer(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeBytestream, StreamStructure{Kind: StructureAnnexB}, nil))

	data := annexBFrame(sps(), pps(), idrSlice(0))
	res, err := f.Push(ctx, data, nil)
	require.NoError(t, err)
	require.Empty(t, res.Buffers, "bytestream mode withholds the tail until flush")

	flushed := f.Flush(ctx)
	require.Len(t, flushed.Buffers, 1)
	buf := flushed.Buffers[0]
	require.True(t, buf.KeyFrame)
	require.Len(t, buf.NALUs, 3)
	require.True(t, flushed.FormatChanged)
	require.Equal(t, 320, flushed.Format.Width)
	require.Equal(t, 240, flushed.Format.Height)
	require.Equal(t, h264.ProfileBaseline, flushed.Format.Profile)

	// offset-contiguity invariant: each NALU's prefixed span starts where
	// the previous one ends, and the last one ends at len(Payload).
	for i, nm := range buf.NALUs {
		if i == 0 {
			require.Equal(t, 0, nm.PrefixedPosLen.Offset)
		} else {
			prev := buf.NALUs[i-1]
			require.Equal(t, prev.PrefixedPosLen.Offset+prev.PrefixedPosLen.Length, nm.PrefixedPosLen.Offset)
		}
	}
	last := buf.NALUs[len(buf.NALUs)-1]
	require.Equal(t, len(buf.Payload), last.PrefixedPosLen.Offset+last.PrefixedPosLen.Length)
}

func TestPushAUAlignedSkipsUntilKeyframe(t *testing.T) {
	f := New(WithSkipUntilKeyframe(true))
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))

	leading, err := f.Push(ctx, annexBFrame(sps(), pps(), nonIdrSlice(0)), nil)
	require.NoError(t, err)
	require.Empty(t, leading.Buffers, "non-IDR AU before the first keyframe must be dropped")

	res, err := f.Push(ctx, annexBFrame(idrSlice(0)), nil)
	require.NoError(t, err)
	require.Len(t, res.Buffers, 1)
	require.True(t, res.Buffers[0].KeyFrame)
}

func TestRepeatParameterSetsPrependsCachedSPSPPSOnIDR(t *testing.T) {
	f := New(WithRepeatParameterSets(true), WithSkipUntilKeyframe(false))
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))

	// first AU carries its own SPS/PPS; nothing extra to prepend.
	first, err := f.Push(ctx, annexBFrame(sps(), pps(), idrSlice(0)), nil)
	require.NoError(t, err)
	require.Len(t, first.Buffers, 1)
	require.Len(t, first.Buffers[0].NALUs, 3)

	// second IDR AU carries no parameter sets of its own; the cached
	// SPS/PPS must be prepended.
	second, err := f.Push(ctx, annexBFrame(idrSlice(1)), nil)
	require.NoError(t, err)
	require.Len(t, second.Buffers, 1)
	require.Len(t, second.Buffers[0].NALUs, 3)
	types := []h264.Type{second.Buffers[0].NALUs[0].Type, second.Buffers[0].NALUs[1].Type, second.Buffers[0].NALUs[2].Type}
	require.Contains(t, types, h264.TypeSPS)
	require.Contains(t, types, h264.TypePPS)
	require.Contains(t, types, h264.TypeIDR)
}

func TestOutputAVC1StripsParameterSetsFromEachAU(t *testing.T) {
	structure := StreamStructure{Kind: StructureAVC1, LengthSize: 4}
	f := New(WithOutputStreamStructure(&structure))
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))

	res, err := f.Push(ctx, annexBFrame(sps(), pps(), idrSlice(0)), nil)
	require.NoError(t, err)
	require.Len(t, res.Buffers, 1)
	require.Len(t, res.Buffers[0].NALUs, 1)
	require.Equal(t, h264.TypeIDR, res.Buffers[0].NALUs[0].Type)
}

func TestNALUAlignedOutputEmitsOneBufferPerNALU(t *testing.T) {
	f := New(WithOutputAlignment(OutputAlignmentNALU), WithSkipUntilKeyframe(false))
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))

	res, err := f.Push(ctx, annexBFrame(sps(), pps(), idrSlice(0)), nil)
	require.NoError(t, err)
	require.Len(t, res.Buffers, 3)
	for _, b := range res.Buffers {
		require.Len(t, b.NALUs, 1)
	}
	require.True(t, res.Buffers[0].NALUs[0].NewAccessUnit)
	require.True(t, res.Buffers[len(res.Buffers)-1].NALUs[0].EndAccessUnit)
}

func TestBestEffortTimestampsAssignedWhenInputHasNone(t *testing.T) {
	f := New(WithSkipUntilKeyframe(false), WithBestEffortTimestamps(BestEffortTimestamps{Framerate: Framerate{Num: 25, Den: 1}}))
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))

	first, err := f.Push(ctx, annexBFrame(sps(), pps(), idrSlice(0)), nil)
	require.NoError(t, err)
	require.Len(t, first.Buffers, 1)
	require.True(t, first.Buffers[0].Timestamps.HasPTS)
	require.Equal(t, int64(0), first.Buffers[0].Timestamps.PTS)
	require.Equal(t, first.Buffers[0].Timestamps.PTS, first.Buffers[0].Timestamps.DTS)

	second, err := f.Push(ctx, annexBFrame(nonIdrSlice(1)), nil)
	require.NoError(t, err)
	require.Len(t, second.Buffers, 1)
	require.Equal(t, int64(1_000_000_000/25), second.Buffers[0].Timestamps.PTS)
	require.Equal(t, second.Buffers[0].Timestamps.PTS, second.Buffers[0].Timestamps.DTS)
}

func TestConfigureRejectsModeChangeMidStream(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))
	err := f.Configure(ctx, ModeBytestream, StreamStructure{Kind: StructureAnnexB}, nil)
	require.Error(t, err)
	require.IsType(t, UnsupportedModeChangeError{}, err)
}

func TestConfigureRejectsStructureChangeMidStream(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAnnexB}, nil))
	err := f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAVC1, LengthSize: 4}, nil)
	require.Error(t, err)
	require.IsType(t, UnsupportedStreamStructureChangeError{}, err)
}

func TestConfigureRejectsParameterSetConflictWithDCR(t *testing.T) {
	f := New(WithParameterSets([][]byte{buildSPSBody()}, [][]byte{buildPPSBody()}))
	ctx := context.Background()
	err := f.Configure(ctx, ModeAUAligned, StreamStructure{Kind: StructureAVC1, LengthSize: 4}, []byte{
		1, 66, 0, 30, 0xff, 0xe0, 0,
	})
	require.Error(t, err)
	require.IsType(t, ParameterSetConflictError{}, err)
}
