package h264

import (
	"context"

	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
	"github.com/membraneframework-labs/membrane-h264-plugin/logger"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
)

// Parser is the NALU Parser facade (spec §4.5): it unprefixes (the
// caller already stripped any start code / length prefix before
// calling Parse — that's the splitter's job), decodes the header,
// dispatches by type, and runs the scheme interpreter over
// SPS/PPS/slice payloads. It owns the cross-NALU Parser State (spec
// §3) as a *scheme.GlobalState keyed by "sps"/"pps" namespaces.
type Parser struct {
	Global *scheme.GlobalState
}

// New returns a Parser with an empty, freshly-initialized Parser State.
func New() *Parser {
	return &Parser{Global: scheme.NewGlobalState()}
}

// CachedParameterSetIDs returns the seq_parameter_set_id/
// pic_parameter_set_id values the Parser State currently holds, for
// diagnostic reporting.
func (p *Parser) CachedParameterSetIDs() (sps, pps []int) {
	return p.Global.Keys("sps"), p.Global.Keys("pps")
}

// Parse decodes payload (the NALU bytes in output framing, without any
// start code or length prefix) into a NALU. It never returns an error
// itself: bit-level parse failures are contained to the returned NALU
// via Status=StatusError, exactly as spec §4.2/§7 require, so that a
// single malformed NALU can never corrupt the Parser State.
func (p *Parser) Parse(ctx context.Context, payload []byte) *NALU {
	nalu := &NALU{Payload: payload}

	if len(payload) == 0 {
		nalu.Status = StatusError
		logger.WarnFields(ctx, MalformedHeaderError{Reason: "empty NALU payload"}.Error(), nil)
		return nalu
	}

	header := payload[0]
	nalu.Type = TypeFromHeader(header)

	if ForbiddenZeroBit(header) {
		nalu.Status = StatusError
		logger.WarnFields(ctx, MalformedHeaderError{Reason: "forbidden_zero_bit set"}.Error(), nil)
		// spec §4.3: does not abort parsing, only marks status=error.
	}

	body := payload[1:]
	switch nalu.Type {
	case TypeSPS:
		fields, err := p.runScheme(SPSScheme, body, nil)
		nalu.ParsedFields = fields
		if err != nil {
			nalu.Status = StatusError
			logger.WarnFields(ctx, "SPS parse failed: "+err.Error(), nil)
		}
	case TypePPS:
		fields, err := p.runScheme(PPSScheme, body, nil)
		nalu.ParsedFields = fields
		if err != nil {
			nalu.Status = StatusError
			logger.WarnFields(ctx, "PPS parse failed: "+err.Error(), nil)
		}
	case TypeIDR, TypeNonIDR, TypePartA:
		seed := scheme.Local{
			"nal_unit_type": uint32(nalu.Type),
			"nal_ref_idc":   uint32(nalu.NalRefIdc()),
		}
		fields, err := p.runScheme(SliceHeaderScheme, body, seed)
		nalu.ParsedFields = fields
		if err != nil {
			nalu.Status = StatusError
			logger.WarnFields(ctx, "slice header parse failed: "+err.Error(), nil)
		}
	}

	return nalu
}

// runScheme unescapes body, runs directives over it starting from seed
// (or an empty map), and translates scheme-level errors into the
// exported error kinds from spec §7.
func (p *Parser) runScheme(directives []scheme.Directive, body []byte, seed scheme.Local) (scheme.Local, error) {
	local := scheme.Local{}
	for k, v := range seed {
		local[k] = v
	}
	r := bitreader.New(bitreader.Unescape(body))
	err := scheme.Run(directives, r, local, p.Global)
	if err != nil {
		switch e := err.(type) {
		case scheme.ErrMalformedField:
			return local, MalformedFieldError{Field: e.Field, Err: e.Err}
		case scheme.ErrGlobalUnavailable:
			return local, SpsUnavailableError{Namespace: e.Namespace, Key: e.Key}
		default:
			return local, err
		}
	}
	return local, nil
}
