package h264

import (
	"context"
	"testing"

	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
	"github.com/stretchr/testify/require"
)

// buildBaselineSPSBody encodes an SPS RBSP (without the NALU header
// byte) for a 320x240 baseline-profile stream with pic_order_cnt_type=2
// (which needs no further POC syntax, keeping the fixture small).
func buildBaselineSPSBody() []byte {
	w := &bitreader.Writer{}
	w.WriteU(66, 8) // profile_idc: baseline
	w.WriteU(1, 1)  // constraint_set0_flag
	w.WriteU(0, 1)  // constraint_set1_flag
	w.WriteU(0, 1)  // constraint_set2_flag
	w.WriteU(0, 1)  // constraint_set3_flag
	w.WriteU(0, 1)  // constraint_set4_flag
	w.WriteU(0, 1)  // constraint_set5_flag
	w.WriteU(0, 2)  // reserved_zero_2bits
	w.WriteU(30, 8) // level_idc
	w.EncodeUE(0)   // seq_parameter_set_id
	w.EncodeUE(0)   // log2_max_frame_num_minus4
	w.EncodeUE(2)   // pic_order_cnt_type
	w.EncodeUE(2)   // max_num_ref_frames
	w.WriteU(0, 1)  // gaps_in_frame_num_value_allowed_flag
	w.EncodeUE(19)  // pic_width_in_mbs_minus1 -> 20 mbs -> 320px
	w.EncodeUE(14)  // pic_height_in_map_units_minus1 -> 15 units
	w.WriteU(1, 1)  // frame_mbs_only_flag
	w.WriteU(1, 1)  // direct_8x8_inference_flag
	w.WriteU(0, 1)  // frame_cropping_flag
	w.WriteU(0, 1)  // vui_parameters_present_flag
	return w.Bytes()
}

func buildMinimalPPSBody() []byte {
	w := &bitreader.Writer{}
	w.EncodeUE(0)  // pic_parameter_set_id
	w.EncodeUE(0)  // seq_parameter_set_id
	w.WriteU(0, 1) // entropy_coding_mode_flag
	w.WriteU(0, 1) // bottom_field_pic_order_in_frame_present_flag
	w.EncodeUE(0)  // num_slice_groups_minus1
	w.EncodeUE(0)  // num_ref_idx_l0_default_active_minus1
	w.EncodeUE(0)  // num_ref_idx_l1_default_active_minus1
	w.WriteU(0, 1) // weighted_pred_flag
	w.WriteU(0, 2) // weighted_bipred_idc
	w.EncodeSE(0)  // pic_init_qp_minus26
	w.EncodeSE(0)  // pic_init_qs_minus26
	w.EncodeSE(0)  // chroma_qp_index_offset
	w.WriteU(0, 1) // deblocking_filter_control_present_flag
	w.WriteU(0, 1) // constrained_intra_pred_flag
	w.WriteU(0, 1) // redundant_pic_cnt_present_flag
	return w.Bytes()
}

// buildPPSBodyWithSliceGroups encodes a PPS whose num_slice_groups_minus1
// is non-zero, exercising readSliceGroups's slice_group_map_type=0 path
// (run-length coded groups).
func buildPPSBodyWithSliceGroups() []byte {
	w := &bitreader.Writer{}
	w.EncodeUE(0)  // pic_parameter_set_id
	w.EncodeUE(0)  // seq_parameter_set_id
	w.WriteU(0, 1) // entropy_coding_mode_flag
	w.WriteU(0, 1) // bottom_field_pic_order_in_frame_present_flag
	w.EncodeUE(1)  // num_slice_groups_minus1 -> 2 groups
	w.EncodeUE(0)  // slice_group_map_type: 0 (interleaved run-length)
	w.EncodeUE(3)  // run_length_minus1[0]
	w.EncodeUE(1)  // run_length_minus1[1]
	w.EncodeUE(0)  // num_ref_idx_l0_default_active_minus1
	w.EncodeUE(0)  // num_ref_idx_l1_default_active_minus1
	w.WriteU(0, 1) // weighted_pred_flag
	w.WriteU(0, 2) // weighted_bipred_idc
	w.EncodeSE(0)  // pic_init_qp_minus26
	w.EncodeSE(0)  // pic_init_qs_minus26
	w.EncodeSE(0)  // chroma_qp_index_offset
	w.WriteU(0, 1) // deblocking_filter_control_present_flag
	w.WriteU(0, 1) // constrained_intra_pred_flag
	w.WriteU(0, 1) // redundant_pic_cnt_present_flag
	return w.Bytes()
}

func buildIDRSliceBody() []byte {
	w := &bitreader.Writer{}
	w.EncodeUE(0)  // first_mb_in_slice
	w.EncodeUE(7)  // slice_type: I
	w.EncodeUE(0)  // pic_parameter_set_id
	w.WriteU(5, 4) // frame_num (log2_max_frame_num_minus4+4 == 4 bits)
	w.EncodeUE(0)  // idr_pic_id
	return w.Bytes()
}

func naluHeader(refIdc uint8, typ Type) byte {
	return byte(refIdc<<5) | byte(typ)
}

func TestParseSPS(t *testing.T) {
	p := New()
	payload := append([]byte{naluHeader(3, TypeSPS)}, buildBaselineSPSBody()...)
	nalu := p.Parse(context.Background(), payload)

	require.Equal(t, StatusValid, nalu.Status)
	require.Equal(t, TypeSPS, nalu.Type)
	require.Equal(t, uint32(66), scheme.GetUint(nalu.ParsedFields, "profile_idc"))

	width, height, err := Dimensions(nalu.ParsedFields)
	require.NoError(t, err)
	require.Equal(t, 320, width)
	require.Equal(t, 240, height)
	require.Equal(t, ProfileBaseline, RecognizeProfile(nalu.ParsedFields))

	require.True(t, p.Global.Has("sps", 0))
}

func TestParsePPSAndSlice(t *testing.T) {
	p := New()
	sps := append([]byte{naluHeader(3, TypeSPS)}, buildBaselineSPSBody()...)
	pps := append([]byte{naluHeader(3, TypePPS)}, buildMinimalPPSBody()...)
	idr := append([]byte{naluHeader(3, TypeIDR)}, buildIDRSliceBody()...)

	require.Equal(t, StatusValid, p.Parse(context.Background(), sps).Status)
	ppsN := p.Parse(context.Background(), pps)
	require.Equal(t, StatusValid, ppsN.Status)
	require.True(t, p.Global.Has("pps", 0))

	idrN := p.Parse(context.Background(), idr)
	require.Equal(t, StatusValid, idrN.Status)
	require.Equal(t, TypeIDR, idrN.Type)
	require.Equal(t, uint32(5), scheme.GetUint(idrN.ParsedFields, "frame_num"))
	// merged in via load_global from the cached SPS:
	require.Equal(t, uint32(66), scheme.GetUint(idrN.ParsedFields, "profile_idc"))
}

func TestParsePPSWithSliceGroups(t *testing.T) {
	p := New()
	pps := append([]byte{naluHeader(3, TypePPS)}, buildPPSBodyWithSliceGroups()...)

	nalu := p.Parse(context.Background(), pps)
	require.Equal(t, StatusValid, nalu.Status)

	runLengths, ok := nalu.ParsedFields["run_length_minus1"].([]uint32)
	require.True(t, ok)
	require.Equal(t, []uint32{3, 1}, runLengths)

	sps, pps2 := p.CachedParameterSetIDs()
	require.Empty(t, sps)
	require.Equal(t, []int{0}, pps2)
}

func TestParseSliceBeforeSpsIsError(t *testing.T) {
	p := New()
	idr := append([]byte{naluHeader(3, TypeIDR)}, buildIDRSliceBody()...)
	nalu := p.Parse(context.Background(), idr)
	require.Equal(t, StatusError, nalu.Status)
}

func TestParseForbiddenZeroBit(t *testing.T) {
	p := New()
	payload := []byte{0x80 | naluHeader(3, TypeAUD), 0x00}
	nalu := p.Parse(context.Background(), payload)
	require.Equal(t, StatusError, nalu.Status)
	require.Equal(t, TypeAUD, nalu.Type)
}

func TestParseEmptyPayload(t *testing.T) {
	p := New()
	nalu := p.Parse(context.Background(), nil)
	require.Equal(t, StatusError, nalu.Status)
}
