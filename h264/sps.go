package h264

import (
	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// chromaFormatProfiles are the profile_idc values carrying chroma/bit
// depth syntax in the SPS (spec §4.3).
var chromaFormatProfiles = map[uint32]bool{
	100: true, 110: true, 122: true, 244: true,
	44: true, 83: true, 86: true, 118: true, 128: true,
}

// SPSScheme is the declarative scheme for Sequence Parameter Sets
// (spec §4.3). Execution populates local with every named field; the
// last directive saves it into global_state["sps"][seq_parameter_set_id].
var SPSScheme = []scheme.Directive{
	scheme.Field("profile_idc", scheme.U(8)),
	scheme.Field("constraint_set0_flag", scheme.Bool),
	scheme.Field("constraint_set1_flag", scheme.Bool),
	scheme.Field("constraint_set2_flag", scheme.Bool),
	scheme.Field("constraint_set3_flag", scheme.Bool),
	scheme.Field("constraint_set4_flag", scheme.Bool),
	scheme.Field("constraint_set5_flag", scheme.Bool),
	scheme.Field("reserved_zero_2bits", scheme.U(2)),
	scheme.Field("level_idc", scheme.U(8)),
	scheme.Field("seq_parameter_set_id", scheme.UE),

	scheme.If(func(l scheme.Local) bool { return chromaFormatProfiles[scheme.GetUint(l, "profile_idc")] },
		scheme.Field("chroma_format_idc", scheme.UE),
		scheme.If(func(l scheme.Local) bool { return scheme.GetUint(l, "chroma_format_idc") == 3 },
			scheme.Field("separate_colour_plane_flag", scheme.Bool),
		),
		scheme.Field("bit_depth_luma_minus8", scheme.UE),
		scheme.Field("bit_depth_chroma_minus8", scheme.UE),
		scheme.Field("qpprime_y_zero_transform_bypass_flag", scheme.Bool),
		scheme.Field("seq_scaling_matrix_present_flag", scheme.Bool),
		scheme.If(func(l scheme.Local) bool { return scheme.GetBool(l, "seq_scaling_matrix_present_flag") },
			scheme.Execute(readSeqScalingLists),
		),
	),

	scheme.Field("log2_max_frame_num_minus4", scheme.UE),
	scheme.Field("pic_order_cnt_type", scheme.UE),
	scheme.If(func(l scheme.Local) bool { return scheme.GetUint(l, "pic_order_cnt_type") == 0 },
		scheme.Field("log2_max_pic_order_cnt_lsb_minus4", scheme.UE),
	),
	scheme.If(func(l scheme.Local) bool { return scheme.GetUint(l, "pic_order_cnt_type") == 1 },
		scheme.Execute(readPicOrderCntType1),
	),

	scheme.Field("max_num_ref_frames", scheme.UE),
	scheme.Field("gaps_in_frame_num_value_allowed_flag", scheme.Bool),
	scheme.Field("pic_width_in_mbs_minus1", scheme.UE),
	scheme.Field("pic_height_in_map_units_minus1", scheme.UE),
	scheme.Field("frame_mbs_only_flag", scheme.Bool),
	scheme.If(func(l scheme.Local) bool { return !scheme.GetBool(l, "frame_mbs_only_flag") },
		scheme.Field("mb_adaptive_frame_field_flag", scheme.Bool),
	),
	scheme.Field("direct_8x8_inference_flag", scheme.Bool),
	scheme.Field("frame_cropping_flag", scheme.Bool),
	scheme.If(func(l scheme.Local) bool { return scheme.GetBool(l, "frame_cropping_flag") },
		scheme.Field("frame_crop_left_offset", scheme.UE),
		scheme.Field("frame_crop_right_offset", scheme.UE),
		scheme.Field("frame_crop_top_offset", scheme.UE),
		scheme.Field("frame_crop_bottom_offset", scheme.UE),
	),
	scheme.Field("vui_parameters_present_flag", scheme.Bool),
	scheme.If(func(l scheme.Local) bool { return scheme.GetBool(l, "vui_parameters_present_flag") },
		scheme.Execute(readVUIParameters),
	),

	scheme.SaveAsGlobal("sps", func(l scheme.Local) int { return int(scheme.GetUint(l, "seq_parameter_set_id")) }),
}

// readSeqScalingLists consumes seq_scaling_list_present_flag[i] and the
// scaling_list() syntax for each present list (H.264 §7.3.2.1.1.1).
// It's expressed as an execute() directive rather than nested for/if
// directives because scaling_list's per-coefficient width depends on
// the running "nextScale" value computed during the previous
// coefficient — state the declarative For/Field primitives don't carry.
func readSeqScalingLists(r *bitreader.Reader, local scheme.Local, _ *scheme.GlobalState) error {
	numLists := 8
	if scheme.GetUint(local, "chroma_format_idc") == 3 {
		numLists = 12
	}
	present := make([]bool, numLists)
	for i := 0; i < numLists; i++ {
		flag, err := r.ReadBool()
		if err != nil {
			return scheme.ErrMalformedField{Field: "seq_scaling_list_present_flag", Err: err}
		}
		present[i] = flag
		if !flag {
			continue
		}
		size := 16
		if i >= 6 {
			size = 64
		}
		if _, err := readScalingList(r, size); err != nil {
			return err
		}
	}
	local["seq_scaling_list_present_flag"] = present
	return nil
}

// readScalingList implements scaling_list() (H.264 §7.3.2.1.1.1).
func readScalingList(r *bitreader.Reader, size int) ([]int32, error) {
	list := make([]int32, size)
	lastScale := int32(8)
	nextScale := int32(8)
	useDefault := false
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			deltaScale, err := r.ReadSE()
			if err != nil {
				return nil, scheme.ErrMalformedField{Field: "delta_scale", Err: err}
			}
			nextScale = (lastScale + deltaScale + 256) % 256
			useDefault = j == 0 && nextScale == 0
		}
		if nextScale == 0 {
			list[j] = lastScale
		} else {
			list[j] = nextScale
		}
		lastScale = list[j]
	}
	_ = useDefault
	return list, nil
}

// readPicOrderCntType1 consumes the pic_order_cnt_type==1 branch,
// including the offset_for_ref_frame[] loop whose trip count is itself
// a field read earlier in the same branch.
func readPicOrderCntType1(r *bitreader.Reader, local scheme.Local, _ *scheme.GlobalState) error {
	flag, err := r.ReadBool()
	if err != nil {
		return scheme.ErrMalformedField{Field: "delta_pic_order_always_zero_flag", Err: err}
	}
	local["delta_pic_order_always_zero_flag"] = flag

	offNonRef, err := r.ReadSE()
	if err != nil {
		return scheme.ErrMalformedField{Field: "offset_for_non_ref_pic", Err: err}
	}
	local["offset_for_non_ref_pic"] = offNonRef

	offTopBottom, err := r.ReadSE()
	if err != nil {
		return scheme.ErrMalformedField{Field: "offset_for_top_to_bottom_field", Err: err}
	}
	local["offset_for_top_to_bottom_field"] = offTopBottom

	count, err := r.ReadUE()
	if err != nil {
		return scheme.ErrMalformedField{Field: "num_ref_frames_in_pic_order_cnt_cycle", Err: err}
	}
	local["num_ref_frames_in_pic_order_cnt_cycle"] = count

	offsets := make([]int32, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := r.ReadSE()
		if err != nil {
			return scheme.ErrMalformedField{Field: "offset_for_ref_frame", Err: err}
		}
		offsets = append(offsets, v)
	}
	local["offset_for_ref_frame"] = offsets
	return nil
}
