package h264

import (
	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// SliceHeaderScheme decodes just enough of a slice header to run the
// Access Unit Splitter's new-primary-picture detection (spec §4.3,
// §4.5). The parser facade pre-populates local["nal_unit_type"] and
// local["nal_ref_idc"] from the already-decoded NALU header before
// running this scheme, since slice_header() itself never encodes
// nal_unit_type.
var SliceHeaderScheme = []scheme.Directive{
	scheme.Field("first_mb_in_slice", scheme.UE),
	scheme.Field("slice_type", scheme.UE),
	scheme.Field("pic_parameter_set_id", scheme.UE),
	scheme.LoadGlobal("pps", func(l scheme.Local) int { return int(scheme.GetUint(l, "pic_parameter_set_id")) }),
	scheme.LoadGlobal("sps", func(l scheme.Local) int { return int(scheme.GetUint(l, "seq_parameter_set_id")) }),
	scheme.Execute(readSliceHeaderRemainder),
}

// readSliceHeaderRemainder consumes the fields whose width or presence
// depends on values only known once the referenced SPS/PPS have been
// merged in (frame_num's width, the POC fields' widths and gating). A
// static Field/If list can't express a field width computed at run
// time, so this is execute()'d.
func readSliceHeaderRemainder(r *bitreader.Reader, local scheme.Local, _ *scheme.GlobalState) error {
	log2MaxFrameNum := int(scheme.GetUint(local, "log2_max_frame_num_minus4")) + 4
	frameNum, err := r.ReadU(log2MaxFrameNum)
	if err != nil {
		return scheme.ErrMalformedField{Field: "frame_num", Err: err}
	}
	local["frame_num"] = frameNum

	frameMbsOnly := scheme.GetBool(local, "frame_mbs_only_flag")
	fieldPicFlag := false
	if !frameMbsOnly {
		v, err := r.ReadBool()
		if err != nil {
			return scheme.ErrMalformedField{Field: "field_pic_flag", Err: err}
		}
		fieldPicFlag = v
		local["field_pic_flag"] = v
		if v {
			bottom, err := r.ReadBool()
			if err != nil {
				return scheme.ErrMalformedField{Field: "bottom_field_flag", Err: err}
			}
			local["bottom_field_flag"] = bottom
		}
	}

	if Type(scheme.GetUint(local, "nal_unit_type")) == TypeIDR {
		idrPicID, err := r.ReadUE()
		if err != nil {
			return scheme.ErrMalformedField{Field: "idr_pic_id", Err: err}
		}
		local["idr_pic_id"] = idrPicID
	}

	pocType := scheme.GetUint(local, "pic_order_cnt_type")
	bottomFieldPOCPresent := scheme.GetBool(local, "bottom_field_pic_order_in_frame_present_flag")

	switch pocType {
	case 0:
		width := int(scheme.GetUint(local, "log2_max_pic_order_cnt_lsb_minus4")) + 4
		lsb, err := r.ReadU(width)
		if err != nil {
			return scheme.ErrMalformedField{Field: "pic_order_cnt_lsb", Err: err}
		}
		local["pic_order_cnt_lsb"] = lsb
		if bottomFieldPOCPresent && !fieldPicFlag {
			delta, err := r.ReadSE()
			if err != nil {
				return scheme.ErrMalformedField{Field: "delta_pic_order_cnt_bottom", Err: err}
			}
			local["delta_pic_order_cnt_bottom"] = delta
		}
	case 1:
		if !scheme.GetBool(local, "delta_pic_order_always_zero_flag") {
			d0, err := r.ReadSE()
			if err != nil {
				return scheme.ErrMalformedField{Field: "delta_pic_order_cnt_0", Err: err}
			}
			local["delta_pic_order_cnt_0"] = d0
			if bottomFieldPOCPresent && !fieldPicFlag {
				d1, err := r.ReadSE()
				if err != nil {
					return scheme.ErrMalformedField{Field: "delta_pic_order_cnt_1", Err: err}
				}
				local["delta_pic_order_cnt_1"] = d1
			}
		}
	}
	return nil
}
