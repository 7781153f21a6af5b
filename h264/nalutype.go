// Package h264 implements the NALU parser facade (spec §4.5): header
// decoding, scheme dispatch for SPS/PPS/slice-header payloads, format
// derivation, and profile recognition. It borrows its NALU type tag set
// and byte-level style from extradata.H264NalUnitType,
// generalized with the parsed-field map, prefix, status, and timestamp
// metadata spec.md's NALU type requires.
package h264

import "fmt"

// Type tags an NALU by its nal_unit_type field (spec §3).
type Type uint8

const (
	TypeUnspecified     Type = 0
	TypeNonIDR          Type = 1
	TypePartA           Type = 2
	TypePartB           Type = 3
	TypePartC           Type = 4
	TypeIDR             Type = 5
	TypeSEI             Type = 6
	TypeSPS             Type = 7
	TypePPS             Type = 8
	TypeAUD             Type = 9
	TypeEndOfSeq        Type = 10
	TypeEndOfStream     Type = 11
	TypeFillerData      Type = 12
	TypeSPSExtension    Type = 13
	TypePrefixNALUnit   Type = 14
	TypeSubsetSPS       Type = 15
	TypeReserved16      Type = 16
	TypeReserved17      Type = 17
	TypeReserved18      Type = 18
	TypeAuxiliaryNonVCL Type = 19
	TypeExtension       Type = 20
	TypeReserved21      Type = 21
	TypeReserved22      Type = 22
	TypeReserved23      Type = 23
)

// IsVCL reports whether t is a Video Coding Layer NALU type that can
// carry a primary coded picture (spec §4.5, Glossary "VCL NALU").
func (t Type) IsVCL() bool {
	switch t {
	case TypeNonIDR, TypePartA, TypeIDR:
		return true
	default:
		return false
	}
}

// String renders the nal_unit_type name used throughout logs and the
// scenario fixtures in spec §8.
func (t Type) String() string {
	switch t {
	case TypeUnspecified:
		return "unspecified"
	case TypeNonIDR:
		return "non_idr"
	case TypePartA:
		return "part_a"
	case TypePartB:
		return "part_b"
	case TypePartC:
		return "part_c"
	case TypeIDR:
		return "idr"
	case TypeSEI:
		return "sei"
	case TypeSPS:
		return "sps"
	case TypePPS:
		return "pps"
	case TypeAUD:
		return "aud"
	case TypeEndOfSeq:
		return "end_of_seq"
	case TypeEndOfStream:
		return "end_of_stream"
	case TypeFillerData:
		return "filler_data"
	case TypeSPSExtension:
		return "sps_extension"
	case TypePrefixNALUnit:
		return "prefix_nal_unit"
	case TypeSubsetSPS:
		return "subset_sps"
	case TypeAuxiliaryNonVCL:
		return "auxiliary_non_part"
	case TypeExtension:
		return "extension"
	case TypeReserved16, TypeReserved17, TypeReserved18, TypeReserved21, TypeReserved22, TypeReserved23:
		return "reserved"
	default:
		if t >= 24 {
			return "unspecified"
		}
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// TypeFromHeader extracts nal_unit_type from the first byte of a NALU.
func TypeFromHeader(header byte) Type {
	return Type(header & 0x1F)
}

// ForbiddenZeroBit extracts forbidden_zero_bit from the first byte.
func ForbiddenZeroBit(header byte) bool {
	return header&0x80 != 0
}

// NalRefIdc extracts nal_ref_idc from the first byte.
func NalRefIdc(header byte) uint8 {
	return (header >> 5) & 0x03
}
