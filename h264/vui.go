package h264

import (
	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// readVUIParameters consumes vui_parameters() (H.264 Annex E.1.1),
// including the HRD parameter sets needed by §4.6's reorder-offset
// derivation (max_num_reorder_frames). Expressed as a single execute()
// directive: VUI mixes several independently-gated optional blocks
// whose presence flags aren't known until the moment they're read,
// which the flat field/if/for primitives can still express, but only
// at a verbosity that buries the syntax it's modeling.
func readVUIParameters(r *bitreader.Reader, local scheme.Local, global *scheme.GlobalState) error {
	read := func(name string, kind scheme.Kind) (any, error) {
		v, err := kind.Read(r)
		if err != nil {
			return nil, scheme.ErrMalformedField{Field: name, Err: err}
		}
		local[name] = v
		return v, nil
	}

	if _, err := read("aspect_ratio_info_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "aspect_ratio_info_present_flag") {
		v, err := read("aspect_ratio_idc", scheme.U(8))
		if err != nil {
			return err
		}
		if v.(uint32) == 255 {
			if _, err := read("sar_width", scheme.U(16)); err != nil {
				return err
			}
			if _, err := read("sar_height", scheme.U(16)); err != nil {
				return err
			}
		}
	}

	if _, err := read("overscan_info_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "overscan_info_present_flag") {
		if _, err := read("overscan_appropriate_flag", scheme.Bool); err != nil {
			return err
		}
	}

	if _, err := read("video_signal_type_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "video_signal_type_present_flag") {
		if _, err := read("video_format", scheme.U(3)); err != nil {
			return err
		}
		if _, err := read("video_full_range_flag", scheme.Bool); err != nil {
			return err
		}
		if _, err := read("colour_description_present_flag", scheme.Bool); err != nil {
			return err
		}
		if scheme.GetBool(local, "colour_description_present_flag") {
			if _, err := read("colour_primaries", scheme.U(8)); err != nil {
				return err
			}
			if _, err := read("transfer_characteristics", scheme.U(8)); err != nil {
				return err
			}
			if _, err := read("matrix_coefficients", scheme.U(8)); err != nil {
				return err
			}
		}
	}

	if _, err := read("chroma_loc_info_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "chroma_loc_info_present_flag") {
		if _, err := read("chroma_sample_loc_type_top_field", scheme.UE); err != nil {
			return err
		}
		if _, err := read("chroma_sample_loc_type_bottom_field", scheme.UE); err != nil {
			return err
		}
	}

	if _, err := read("timing_info_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "timing_info_present_flag") {
		if _, err := read("num_units_in_tick", scheme.U(32)); err != nil {
			return err
		}
		if _, err := read("time_scale", scheme.U(32)); err != nil {
			return err
		}
		if _, err := read("fixed_frame_rate_flag", scheme.Bool); err != nil {
			return err
		}
	}

	if _, err := read("nal_hrd_parameters_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "nal_hrd_parameters_present_flag") {
		hrd, err := readHRDParameters(r)
		if err != nil {
			return err
		}
		local["nal_hrd_parameters"] = hrd
	}

	if _, err := read("vcl_hrd_parameters_present_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "vcl_hrd_parameters_present_flag") {
		hrd, err := readHRDParameters(r)
		if err != nil {
			return err
		}
		local["vcl_hrd_parameters"] = hrd
	}

	if scheme.GetBool(local, "nal_hrd_parameters_present_flag") || scheme.GetBool(local, "vcl_hrd_parameters_present_flag") {
		if _, err := read("low_delay_hrd_flag", scheme.Bool); err != nil {
			return err
		}
	}

	if _, err := read("pic_struct_present_flag", scheme.Bool); err != nil {
		return err
	}

	if _, err := read("bitstream_restriction_flag", scheme.Bool); err != nil {
		return err
	}
	if scheme.GetBool(local, "bitstream_restriction_flag") {
		if _, err := read("motion_vectors_over_pic_boundaries_flag", scheme.Bool); err != nil {
			return err
		}
		if _, err := read("max_bytes_per_pic_denom", scheme.UE); err != nil {
			return err
		}
		if _, err := read("max_bits_per_mb_denom", scheme.UE); err != nil {
			return err
		}
		if _, err := read("log2_max_mv_length_horizontal", scheme.UE); err != nil {
			return err
		}
		if _, err := read("log2_max_mv_length_vertical", scheme.UE); err != nil {
			return err
		}
		if _, err := read("max_num_reorder_frames", scheme.UE); err != nil {
			return err
		}
		if _, err := read("max_dec_frame_buffering", scheme.UE); err != nil {
			return err
		}
	}

	return nil
}

// HRDParameters is the decoded hrd_parameters() syntax structure
// (H.264 Annex E.1.2).
type HRDParameters struct {
	CPBCntMinus1                        uint32
	BitRateScale                        uint32
	CPBSizeScale                        uint32
	BitRateValueMinus1                  []uint32
	CPBSizeValueMinus1                  []uint32
	CBRFlag                             []bool
	InitialCPBRemovalDelayLengthMinus1  uint32
	CPBRemovalDelayLengthMinus1         uint32
	DPBOutputDelayLengthMinus1          uint32
	TimeOffsetLength                    uint32
}

func readHRDParameters(r *bitreader.Reader) (*HRDParameters, error) {
	h := &HRDParameters{}
	var err error
	if h.CPBCntMinus1, err = r.ReadUE(); err != nil {
		return nil, scheme.ErrMalformedField{Field: "cpb_cnt_minus1", Err: err}
	}
	if h.BitRateScale, err = r.ReadU(4); err != nil {
		return nil, scheme.ErrMalformedField{Field: "bit_rate_scale", Err: err}
	}
	if h.CPBSizeScale, err = r.ReadU(4); err != nil {
		return nil, scheme.ErrMalformedField{Field: "cpb_size_scale", Err: err}
	}
	for i := uint32(0); i <= h.CPBCntMinus1; i++ {
		bitRate, err := r.ReadUE()
		if err != nil {
			return nil, scheme.ErrMalformedField{Field: "bit_rate_value_minus1", Err: err}
		}
		cpbSize, err := r.ReadUE()
		if err != nil {
			return nil, scheme.ErrMalformedField{Field: "cpb_size_value_minus1", Err: err}
		}
		cbr, err := r.ReadBool()
		if err != nil {
			return nil, scheme.ErrMalformedField{Field: "cbr_flag", Err: err}
		}
		h.BitRateValueMinus1 = append(h.BitRateValueMinus1, bitRate)
		h.CPBSizeValueMinus1 = append(h.CPBSizeValueMinus1, cpbSize)
		h.CBRFlag = append(h.CBRFlag, cbr)
	}
	if h.InitialCPBRemovalDelayLengthMinus1, err = r.ReadU(5); err != nil {
		return nil, scheme.ErrMalformedField{Field: "initial_cpb_removal_delay_length_minus1", Err: err}
	}
	if h.CPBRemovalDelayLengthMinus1, err = r.ReadU(5); err != nil {
		return nil, scheme.ErrMalformedField{Field: "cpb_removal_delay_length_minus1", Err: err}
	}
	if h.DPBOutputDelayLengthMinus1, err = r.ReadU(5); err != nil {
		return nil, scheme.ErrMalformedField{Field: "dpb_output_delay_length_minus1", Err: err}
	}
	if h.TimeOffsetLength, err = r.ReadU(5); err != nil {
		return nil, scheme.ErrMalformedField{Field: "time_offset_length", Err: err}
	}
	return h, nil
}
