package h264

import (
	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// PPSScheme is the declarative scheme for Picture Parameter Sets
// (spec §4.3).
var PPSScheme = []scheme.Directive{
	scheme.Field("pic_parameter_set_id", scheme.UE),
	scheme.Field("seq_parameter_set_id", scheme.UE),
	scheme.Field("entropy_coding_mode_flag", scheme.Bool),
	scheme.Field("bottom_field_pic_order_in_frame_present_flag", scheme.Bool),
	scheme.Field("num_slice_groups_minus1", scheme.UE),
	scheme.If(func(l scheme.Local) bool { return scheme.GetUint(l, "num_slice_groups_minus1") > 0 },
		scheme.Execute(readSliceGroups),
	),
	scheme.Field("num_ref_idx_l0_default_active_minus1", scheme.UE),
	scheme.Field("num_ref_idx_l1_default_active_minus1", scheme.UE),
	scheme.Field("weighted_pred_flag", scheme.Bool),
	scheme.Field("weighted_bipred_idc", scheme.U(2)),
	scheme.Field("pic_init_qp_minus26", scheme.SE),
	scheme.Field("pic_init_qs_minus26", scheme.SE),
	scheme.Field("chroma_qp_index_offset", scheme.SE),
	scheme.Field("deblocking_filter_control_present_flag", scheme.Bool),
	scheme.Field("constrained_intra_pred_flag", scheme.Bool),
	scheme.Field("redundant_pic_cnt_present_flag", scheme.Bool),

	scheme.SaveAsGlobal("pps", func(l scheme.Local) int { return int(scheme.GetUint(l, "pic_parameter_set_id")) }),
}

// readSliceGroups consumes the slice-group-map machinery (H.264
// §7.3.2.2), whose structure depends on slice_group_map_type read
// partway through — another case better expressed as execute() than
// as deeply nested if/for directives.
func readSliceGroups(r *bitreader.Reader, local scheme.Local, _ *scheme.GlobalState) error {
	mapType, err := r.ReadUE()
	if err != nil {
		return scheme.ErrMalformedField{Field: "slice_group_map_type", Err: err}
	}
	local["slice_group_map_type"] = mapType

	numGroups := int(scheme.MustGetUint(local, "num_slice_groups_minus1")) + 1

	switch mapType {
	case 0:
		runLengths := make([]uint32, numGroups)
		for i := 0; i < numGroups; i++ {
			v, err := r.ReadUE()
			if err != nil {
				return scheme.ErrMalformedField{Field: "run_length_minus1", Err: err}
			}
			runLengths[i] = v
		}
		local["run_length_minus1"] = runLengths
	case 2:
		topLeft := make([]uint32, numGroups-1)
		bottomRight := make([]uint32, numGroups-1)
		for i := 0; i < numGroups-1; i++ {
			tl, err := r.ReadUE()
			if err != nil {
				return scheme.ErrMalformedField{Field: "top_left", Err: err}
			}
			br, err := r.ReadUE()
			if err != nil {
				return scheme.ErrMalformedField{Field: "bottom_right", Err: err}
			}
			topLeft[i] = tl
			bottomRight[i] = br
		}
		local["top_left"] = topLeft
		local["bottom_right"] = bottomRight
	case 3, 4, 5:
		flag, err := r.ReadBool()
		if err != nil {
			return scheme.ErrMalformedField{Field: "slice_group_change_direction_flag", Err: err}
		}
		local["slice_group_change_direction_flag"] = flag
		rate, err := r.ReadUE()
		if err != nil {
			return scheme.ErrMalformedField{Field: "slice_group_change_rate_minus1", Err: err}
		}
		local["slice_group_change_rate_minus1"] = rate
	case 6:
		picSizeInMapUnitsMinus1, err := r.ReadUE()
		if err != nil {
			return scheme.ErrMalformedField{Field: "pic_size_in_map_units_minus1", Err: err}
		}
		local["pic_size_in_map_units_minus1"] = picSizeInMapUnitsMinus1
		bitsPerEntry := bitsFor(uint32(numGroups))
		ids := make([]uint32, picSizeInMapUnitsMinus1+1)
		for i := range ids {
			v, err := r.ReadU(bitsPerEntry)
			if err != nil {
				return scheme.ErrMalformedField{Field: "slice_group_id", Err: err}
			}
			ids[i] = v
		}
		local["slice_group_id"] = ids
	}
	return nil
}

// bitsFor returns Ceil(Log2(n)), the fixed width H.264 uses to code a
// value in [0, n-1] (used by slice_group_id in slice_group_map_type 6).
func bitsFor(n uint32) int {
	if n <= 1 {
		return 0
	}
	bits := 0
	for v := n - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits
}
