package h264

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// Dimensions computes width and height in pixels from a parsed SPS
// field map (spec §4.7).
func Dimensions(sps scheme.Local) (width, height int, err error) {
	widthInMbs := int(scheme.GetUint(sps, "pic_width_in_mbs_minus1")) + 1
	heightInMapUnits := int(scheme.GetUint(sps, "pic_height_in_map_units_minus1")) + 1
	frameMbsOnly := scheme.GetBool(sps, "frame_mbs_only_flag")

	frameMbsOnlyFactor := 2
	if frameMbsOnly {
		frameMbsOnlyFactor = 1
	}
	heightInMbs := frameMbsOnlyFactor * heightInMapUnits

	chromaFormatIdc := scheme.GetUint(sps, "chroma_format_idc")
	// chroma_format_idc defaults to 1 (4:2:0) when the profile doesn't
	// carry it at all (spec §4.3's profile gate).
	if _, ok := sps["chroma_format_idc"]; !ok {
		chromaFormatIdc = 1
	}

	subWidthC, subHeightC := 2, 2
	switch chromaFormatIdc {
	case 1:
		subWidthC, subHeightC = 2, 2
	case 2:
		subWidthC, subHeightC = 2, 1
	case 3:
		subWidthC, subHeightC = 1, 1
	case 0:
		subWidthC, subHeightC = 1, 1
	}

	chromaArrayType := int(chromaFormatIdc)
	if scheme.GetBool(sps, "separate_colour_plane_flag") {
		chromaArrayType = 0
	}

	var cropUnitX, cropUnitY int
	if chromaArrayType == 0 {
		cropUnitX = 1
		cropUnitY = frameMbsOnlyFactor
	} else {
		cropUnitX = subWidthC
		cropUnitY = subHeightC * frameMbsOnlyFactor
	}

	width = 16*widthInMbs - cropUnitX*(cropLeft(sps)+cropRight(sps))
	height = 16*heightInMbs - cropUnitY*(cropTop(sps)+cropBottom(sps))

	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("h264: derived non-positive dimensions (%dx%d)", width, height)
	}
	return width, height, nil
}

func cropLeft(sps scheme.Local) int   { return int(scheme.GetUint(sps, "frame_crop_left_offset")) }
func cropRight(sps scheme.Local) int  { return int(scheme.GetUint(sps, "frame_crop_right_offset")) }
func cropTop(sps scheme.Local) int    { return int(scheme.GetUint(sps, "frame_crop_top_offset")) }
func cropBottom(sps scheme.Local) int { return int(scheme.GetUint(sps, "frame_crop_bottom_offset")) }

// Profile is a recognized H.264 profile name (spec §4.7 table).
type Profile string

const (
	ProfileHighCAVLC444Intra   Profile = "high_cavlc_4_4_4_intra"
	ProfileConstrainedBaseline Profile = "constrained_baseline"
	ProfileBaseline            Profile = "baseline"
	ProfileMain                Profile = "main"
	ProfileExtended            Profile = "extended"
	ProfileConstrainedHigh     Profile = "constrained_high"
	ProfileProgressiveHigh     Profile = "progressive_high"
	ProfileHigh                Profile = "high"
	ProfileHigh10Intra         Profile = "high_10_intra"
	ProfileHigh10              Profile = "high_10"
	ProfileHigh422Intra        Profile = "high_4_2_2_intra"
	ProfileHigh422             Profile = "high_4_2_2"
	ProfileHigh444Intra        Profile = "high_4_4_4_intra"
	ProfileHigh444Predictive   Profile = "high_4_4_4_predictive"
	ProfileUnknown             Profile = "unknown"
)

type profileRule struct {
	name        Profile
	profileIDC  uint32
	constraints func(sps scheme.Local) bool
}

// profileTable is ordered most-specific first, matching spec §4.7.
var profileTable = []profileRule{
	{ProfileHighCAVLC444Intra, 44, nil},
	{ProfileConstrainedBaseline, 66, func(s scheme.Local) bool { return scheme.GetBool(s, "constraint_set1_flag") }},
	{ProfileBaseline, 66, nil},
	{ProfileMain, 77, nil},
	{ProfileExtended, 88, nil},
	{ProfileConstrainedHigh, 100, func(s scheme.Local) bool {
		return scheme.GetBool(s, "constraint_set4_flag") && scheme.GetBool(s, "constraint_set5_flag")
	}},
	{ProfileProgressiveHigh, 100, func(s scheme.Local) bool { return scheme.GetBool(s, "constraint_set4_flag") }},
	{ProfileHigh, 100, nil},
	{ProfileHigh10Intra, 110, func(s scheme.Local) bool { return scheme.GetBool(s, "constraint_set3_flag") }},
	{ProfileHigh10, 110, nil},
	{ProfileHigh422Intra, 122, func(s scheme.Local) bool { return scheme.GetBool(s, "constraint_set3_flag") }},
	{ProfileHigh422, 122, nil},
	{ProfileHigh444Intra, 244, func(s scheme.Local) bool { return scheme.GetBool(s, "constraint_set3_flag") }},
	{ProfileHigh444Predictive, 244, nil},
}

// RecognizeProfile matches (profile_idc, constraint_set*) against the
// table in spec §4.7, first match wins.
func RecognizeProfile(sps scheme.Local) Profile {
	profileIDC := scheme.GetUint(sps, "profile_idc")
	for _, rule := range profileTable {
		if rule.profileIDC != profileIDC {
			continue
		}
		if rule.constraints == nil || rule.constraints(sps) {
			return rule.name
		}
	}
	return ProfileUnknown
}

// IsBaselineLike reports whether profile is one where PTS==DTS is
// always safe because the encoder never reorders frames (spec §4.6).
func (p Profile) IsBaselineLike() bool {
	return p == ProfileBaseline || p == ProfileConstrainedBaseline
}

// DescribeSPS renders a human-readable summary of a parsed SPS, in the
// style of extradata.H264AVCC.String() dumps.
func DescribeSPS(sps scheme.Local) string {
	width, height, err := Dimensions(sps)
	profile := RecognizeProfile(sps)
	if err != nil {
		return fmt.Sprintf("SPS id=%d profile=%s level=%d (dimensions unavailable: %v)",
			scheme.GetUint(sps, "seq_parameter_set_id"), profile, scheme.GetUint(sps, "level_idc"), err)
	}
	return fmt.Sprintf("SPS id=%d profile=%s level=%d %dx%d (%s pixels)",
		scheme.GetUint(sps, "seq_parameter_set_id"), profile, scheme.GetUint(sps, "level_idc"),
		width, height, humanize.Comma(int64(width*height)))
}
