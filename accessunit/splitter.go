// Package accessunit implements the Access Unit Splitter (spec §4.5): a
// state machine that groups parsed NALUs into access units using the
// H.264 primary-coded-picture detection rules of ITU-T Rec. H.264
// §7.4.1.2.4. xaionaro-go/avpipeline operates below this layer (raw
// packets) and above it (decoded frames), so this is written fresh, in
// the error-as-value, struct-based idiom the rest of this module
// follows.
package accessunit

import (
	"github.com/membraneframework-labs/membrane-h264-plugin/h264"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// AU is one completed access unit: one coded picture plus the non-VCL
// NALUs that precede it.
type AU struct {
	NALUs []*h264.NALU
}

// isDelimiterType reports whether t forces an AU boundary before the
// next primary-coded-picture NALU regardless of picture continuity
// (spec §4.5: AUD, SPS, PPS, SEI, or 14-18).
func isDelimiterType(t h264.Type) bool {
	switch t {
	case h264.TypeAUD, h264.TypeSPS, h264.TypePPS, h264.TypeSEI,
		h264.TypePrefixNALUnit, h264.TypeSubsetSPS, h264.TypeReserved16,
		h264.TypeReserved17, h264.TypeReserved18:
		return true
	default:
		return false
	}
}

// Splitter accumulates parsed NALUs into access units.
type Splitter struct {
	currentAU     []*h264.NALU
	pendingNonVCL []*h264.NALU
	hasPrimary    bool
	sawDelimiter  bool
	lastPrimary   *h264.NALU
}

// New returns an empty Splitter.
func New() *Splitter {
	return &Splitter{}
}

// Push feeds one parsed NALU in. It returns a completed AU when this
// NALU opens a new access unit, or nil if the NALU was absorbed into the
// AU currently being built.
func (s *Splitter) Push(nalu *h264.NALU) *AU {
	if nalu.Type == h264.TypePartB || nalu.Type == h264.TypePartC {
		// data-partition continuations of the current picture: never
		// carry slice_header fields, never trigger boundary detection.
		s.currentAU = append(s.currentAU, nalu)
		return nil
	}

	if !nalu.IsVCL() {
		s.pendingNonVCL = append(s.pendingNonVCL, nalu)
		if isDelimiterType(nalu.Type) {
			s.sawDelimiter = true
		}
		return nil
	}

	boundary := !s.hasPrimary || s.sawDelimiter || newPrimaryPicture(s.lastPrimary, nalu)

	var completed *AU
	if boundary {
		if s.hasPrimary && len(s.currentAU) > 0 {
			completed = &AU{NALUs: s.currentAU}
		}
		s.currentAU = append(append([]*h264.NALU{}, s.pendingNonVCL...), nalu)
	} else {
		s.currentAU = append(append(s.currentAU, s.pendingNonVCL...), nalu)
	}

	s.pendingNonVCL = nil
	s.sawDelimiter = false
	s.hasPrimary = true
	s.lastPrimary = nalu

	return completed
}

// Flush emits whatever AU remains under construction, per spec §9's
// resolved open question: a final AU is emitted only if it already holds
// a primary coded picture; any dangling pendingNonVCL prefix with no
// following VCL is discarded. The splitter is reset afterward.
func (s *Splitter) Flush() *AU {
	var au *AU
	if s.hasPrimary && len(s.currentAU) > 0 {
		au = &AU{NALUs: s.currentAU}
	}
	s.currentAU = nil
	s.pendingNonVCL = nil
	s.hasPrimary = false
	s.sawDelimiter = false
	s.lastPrimary = nil
	return au
}

// newPrimaryPicture implements the new-primary-picture-detection test of
// spec §4.5 between the previous VCL NALU (prev) and a candidate (cur).
func newPrimaryPicture(prev, cur *h264.NALU) bool {
	if prev == nil {
		return true
	}
	pf, cf := prev.ParsedFields, cur.ParsedFields

	if scheme.GetUint(pf, "frame_num") != scheme.GetUint(cf, "frame_num") {
		return true
	}
	if scheme.GetUint(pf, "pic_parameter_set_id") != scheme.GetUint(cf, "pic_parameter_set_id") {
		return true
	}
	if scheme.GetBool(pf, "field_pic_flag") != scheme.GetBool(cf, "field_pic_flag") {
		return true
	}
	_, pHasBottom := pf["bottom_field_flag"]
	_, cHasBottom := cf["bottom_field_flag"]
	if pHasBottom && cHasBottom && scheme.GetBool(pf, "bottom_field_flag") != scheme.GetBool(cf, "bottom_field_flag") {
		return true
	}

	pRefZero := scheme.GetUint(pf, "nal_ref_idc") == 0
	cRefZero := scheme.GetUint(cf, "nal_ref_idc") == 0
	if pRefZero != cRefZero {
		return true
	}

	pIDR := prev.IsIDR()
	cIDR := cur.IsIDR()
	if pIDR != cIDR {
		return true
	}
	if pIDR && cIDR && scheme.GetUint(pf, "idr_pic_id") != scheme.GetUint(cf, "idr_pic_id") {
		return true
	}

	switch scheme.GetUint(cf, "pic_order_cnt_type") {
	case 0:
		if scheme.GetUint(pf, "pic_order_cnt_lsb") != scheme.GetUint(cf, "pic_order_cnt_lsb") {
			return true
		}
		if scheme.GetInt(pf, "delta_pic_order_cnt_bottom") != scheme.GetInt(cf, "delta_pic_order_cnt_bottom") {
			return true
		}
	case 1:
		if scheme.GetInt(pf, "delta_pic_order_cnt_0") != scheme.GetInt(cf, "delta_pic_order_cnt_0") {
			return true
		}
		if scheme.GetInt(pf, "delta_pic_order_cnt_1") != scheme.GetInt(cf, "delta_pic_order_cnt_1") {
			return true
		}
	}

	return false
}
