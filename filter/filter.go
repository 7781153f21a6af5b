// Package filter implements the Filter coordinator (spec §4.9): it
// composes the NALU Splitter, NALU Parser, and Access Unit Splitter,
// handles the three input alignment modes, converts between stream
// structures, maintains the parameter-set cache with optional IDR
// repetition, generates timestamps when absent, and assembles output
// buffers with the metadata spec §6 requires.
package filter

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/membraneframework-labs/membrane-h264-plugin/accessunit"
	"github.com/membraneframework-labs/membrane-h264-plugin/annexb"
	"github.com/membraneframework-labs/membrane-h264-plugin/avcc"
	"github.com/membraneframework-labs/membrane-h264-plugin/dcr"
	"github.com/membraneframework-labs/membrane-h264-plugin/h264"
	"github.com/membraneframework-labs/membrane-h264-plugin/logger"
	"github.com/membraneframework-labs/membrane-h264-plugin/scheme"
	"github.com/membraneframework-labs/membrane-h264-plugin/timestamp"
)

// OutputFormat mirrors the output stream-format action spec §6 requires
// the Filter emit before any buffer that depends on it.
type OutputFormat struct {
	Alignment OutputAlignment
	Width     int
	Height    int
	Profile   h264.Profile
	Framerate *Framerate
	Structure StreamStructure
}

// PushResult is what one call to Push produces: zero or more output
// buffers, and whether the output format changed (and to what) since
// the previous call.
type PushResult struct {
	Buffers       []OutputBuffer
	FormatChanged bool
	Format        OutputFormat
}

// Filter is the stateful coordinator described by spec §4.9. Use New to
// construct one; it is not safe for concurrent use (spec §5: single
// instance, single-threaded).
type Filter struct {
	cfg Config

	parser *h264.Parser

	configured      bool
	mode            Mode
	inputStructure  StreamStructure
	outputStructure StreamStructure

	annexbSplit *annexb.Splitter
	avccSplit   *avcc.Splitter
	auSplit     *accessunit.Splitter

	spsCache map[int]*h264.NALU
	ppsCache map[int]*h264.NALU

	seenIDR bool

	tsGen      *timestamp.Generator
	tsGenTried bool

	pendingFramePrefix []byte

	width   int
	height  int
	profile h264.Profile
}

// New constructs an unconfigured Filter. Configure must be called with
// the first stream-format signal before Push.
func New(opts ...Option) *Filter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Filter{
		cfg:      cfg,
		parser:   h264.New(),
		auSplit:  accessunit.New(),
		spsCache: map[int]*h264.NALU{},
		ppsCache: map[int]*h264.NALU{},
	}
}

// CachedParameterSetIDs reports the seq_parameter_set_id/
// pic_parameter_set_id values the parser's Parser State currently holds,
// for diagnostic reporting.
func (f *Filter) CachedParameterSetIDs() (sps, pps []int) {
	return f.parser.CachedParameterSetIDs()
}

// Configure handles the stream-format handshake (spec §4.9, §6): it
// fixes the input alignment mode and stream structure on first call, and
// validates that any later call agrees with what was fixed. dcrBytes is the
// raw Decoder Configuration Record bytes, required iff structure is
// AVC1 or AVC3.
func (f *Filter) Configure(ctx context.Context, mode Mode, structure StreamStructure, dcrBytes []byte) error {
	if f.configured {
		if mode != f.mode {
			return UnsupportedModeChangeError{From: f.mode, To: mode}
		}
		if structure.Kind != f.inputStructure.Kind || (structure.IsAVC() && structure.LengthSize != f.inputStructure.LengthSize) {
			return UnsupportedStreamStructureChangeError{From: f.inputStructure, To: structure}
		}
		return nil
	}

	if structure.IsAVC() {
		rec, err := dcr.Parse(dcrBytes)
		if err != nil {
			return err
		}
		structure.LengthSize = rec.LengthSize
		if (len(f.cfg.SPS) > 0 || len(f.cfg.PPS) > 0) && (len(rec.SPSs) > 0 || len(rec.PPSs) > 0) {
			return ParameterSetConflictError{}
		}
		for _, blob := range rec.SPSs {
			f.ingestParameterSet(ctx, blob)
		}
		for _, blob := range rec.PPSs {
			f.ingestParameterSet(ctx, blob)
		}
	}

	outputStructure := structure
	if f.cfg.OutputStreamStructure != nil {
		outputStructure = *f.cfg.OutputStreamStructure
		if outputStructure.IsAVC() && outputStructure.LengthSize == 0 {
			outputStructure.LengthSize = 4
		}
	}
	if len(f.cfg.SPS) > 0 && outputStructure.Kind != StructureAnnexB {
		return ParameterSetConflictError{}
	}

	f.mode = mode
	f.inputStructure = structure
	f.outputStructure = outputStructure
	f.configured = true

	switch structure.Kind {
	case StructureAnnexB:
		f.annexbSplit = annexb.New()
	default:
		split, err := avcc.New(structure.LengthSize)
		if err != nil {
			return err
		}
		f.avccSplit = split
	}

	if len(f.cfg.SPS) > 0 {
		var buf bytes.Buffer
		for _, sps := range f.cfg.SPS {
			buf.Write(startCode())
			buf.Write(sps)
			f.ingestParameterSet(ctx, sps)
		}
		for _, pps := range f.cfg.PPS {
			buf.Write(startCode())
			buf.Write(pps)
			f.ingestParameterSet(ctx, pps)
		}
		f.pendingFramePrefix = buf.Bytes()
	}

	return nil
}

// ingestParameterSet runs a bare SPS/PPS payload (no prefix) through the
// parser and caches it, used both for DCR-supplied and option-supplied
// parameter sets (spec §4.9 step 1, §6 sps/pps options).
func (f *Filter) ingestParameterSet(ctx context.Context, payload []byte) {
	nalu := f.parser.Parse(ctx, payload)
	f.cacheParameterSet(ctx, nalu)
}

func (f *Filter) cacheParameterSet(ctx context.Context, nalu *h264.NALU) bool {
	if nalu.Status != h264.StatusValid {
		return false
	}
	switch nalu.Type {
	case h264.TypeSPS:
		id := int(nalu.ParsedFields["seq_parameter_set_id"].(uint32))
		existing, had := f.spsCache[id]
		changed := !had || !bytes.Equal(existing.Payload, nalu.Payload)
		f.spsCache[id] = nalu.Clone()
		if changed {
			f.width, f.height, _ = h264.Dimensions(nalu.ParsedFields)
			f.profile = h264.RecognizeProfile(nalu.ParsedFields)
			f.maybeStartTimestampGenerator(ctx, nalu)
		}
		return changed
	case h264.TypePPS:
		id := int(nalu.ParsedFields["pic_parameter_set_id"].(uint32))
		existing, had := f.ppsCache[id]
		changed := !had || !bytes.Equal(existing.Payload, nalu.Payload)
		f.ppsCache[id] = nalu.Clone()
		return changed
	}
	return false
}

// maybeStartTimestampGenerator implements the SPEC_FULL §4.10 supplement:
// the best-effort-timestamps viability decision is made once, at the
// first SPS, and cached for the life of the Filter; a later SPS with an
// incompatible profile is only logged, not fatal.
func (f *Filter) maybeStartTimestampGenerator(ctx context.Context, sps *h264.NALU) {
	if f.cfg.BestEffort == nil {
		return
	}
	profile := h264.RecognizeProfile(sps.ParsedFields)
	if !f.tsGenTried {
		f.tsGenTried = true
		maxReorderFrames := int(scheme.GetUint(sps.ParsedFields, "max_num_reorder_frames"))
		gen, err := timestamp.New(f.cfg.BestEffort.Framerate.Num, f.cfg.BestEffort.Framerate.Den, profile, f.cfg.BestEffort.AddDTSOffset, maxReorderFrames)
		if err != nil {
			logger.WarnFields(ctx, "best-effort timestamp generation unavailable: "+err.Error(), nil)
			return
		}
		f.tsGen = gen
		return
	}
	if f.tsGen != nil && !profile.IsBaselineLike() && !f.cfg.BestEffort.AddDTSOffset {
		logger.Warnf(ctx, "SPS profile %q changed to one that reorders frames; keeping prior timestamp generation in place", profile)
	}
}

// Push feeds one input buffer through the pipeline (spec §4.9's
// per-input-buffer procedure) and returns the output buffers it
// produces.
func (f *Filter) Push(ctx context.Context, data []byte, inputTimestamps *h264.Timestamps) (*PushResult, error) {
	if f.pendingFramePrefix != nil {
		data = append(f.pendingFramePrefix, data...)
		f.pendingFramePrefix = nil
	}

	assumeAligned := f.mode != ModeBytestream
	var framed []framedNALU
	if f.inputStructure.Kind == StructureAnnexB {
		for _, n := range f.annexbSplit.Split(data, assumeAligned) {
			framed = append(framed, framedNALU{prefix: n.StrippedPrefix, payload: n.Payload})
		}
		if assumeAligned {
			for _, n := range f.annexbSplit.Flush() {
				framed = append(framed, framedNALU{prefix: n.StrippedPrefix, payload: n.Payload})
			}
		}
	} else {
		for _, n := range f.avccSplit.Split(data, assumeAligned) {
			framed = append(framed, framedNALU{prefix: n.StrippedPrefix, payload: n.Payload})
		}
	}

	result := &PushResult{}

	for i, fn := range framed {
		nalu := f.parser.Parse(ctx, fn.payload)
		nalu.StrippedPrefix = fn.prefix
		if i == 0 && f.mode == ModeNALUAligned && inputTimestamps != nil {
			nalu.Timestamps = *inputTimestamps
		}

		completed := f.auSplit.Push(nalu)
		if completed != nil {
			f.processAU(ctx, completed, result)
		}
	}

	if f.mode == ModeAUAligned {
		if completed := f.auSplit.Flush(); completed != nil {
			f.processAU(ctx, completed, result)
		}
	}

	return result, nil
}

// Flush forces out whatever NALU the NALU Splitter is still withholding
// as an unconfirmed tail, feeds it through, and then forces out whatever
// AU the Access Unit Splitter is still holding, per spec §9's resolved
// open question (emit at EOS only if it holds a primary coded picture).
func (f *Filter) Flush(ctx context.Context) *PushResult {
	result := &PushResult{}

	var framed []framedNALU
	if f.inputStructure.Kind == StructureAnnexB {
		for _, n := range f.annexbSplit.Flush() {
			framed = append(framed, framedNALU{prefix: n.StrippedPrefix, payload: n.Payload})
		}
	} else {
		for _, n := range f.avccSplit.Flush() {
			framed = append(framed, framedNALU{prefix: n.StrippedPrefix, payload: n.Payload})
		}
	}
	for _, fn := range framed {
		nalu := f.parser.Parse(ctx, fn.payload)
		nalu.StrippedPrefix = fn.prefix
		if completed := f.auSplit.Push(nalu); completed != nil {
			f.processAU(ctx, completed, result)
		}
	}

	if completed := f.auSplit.Flush(); completed != nil {
		f.processAU(ctx, completed, result)
	}
	return result
}

type framedNALU struct {
	prefix  []byte
	payload []byte
}

// processAU implements spec §4.9 step 5 for one completed AU.
func (f *Filter) processAU(ctx context.Context, au *accessunit.AU, result *PushResult) {
	formatChanged := false
	isIDR := false
	var firstNALUTimestamps h264.Timestamps

	for _, nalu := range au.NALUs {
		if nalu.Status != h264.StatusValid {
			logger.WarnFields(ctx, "dropping AU containing a malformed NALU", nil)
			return
		}
		if nalu.Type == h264.TypeSPS || nalu.Type == h264.TypePPS {
			if f.cacheParameterSet(ctx, nalu) {
				formatChanged = true
			}
		}
		if nalu.IsIDR() {
			isIDR = true
		}
		if nalu.Timestamps.HasPTS && !firstNALUTimestamps.HasPTS {
			firstNALUTimestamps = nalu.Timestamps
		}
	}

	if f.cfg.SkipUntilKeyframe && !f.seenIDR {
		if !isIDR {
			return
		}
		f.seenIDR = true
	} else if isIDR {
		f.seenIDR = true
	}

	nalus := au.NALUs
	if f.outputStructure.Kind == StructureAVC1 {
		nalus = stripParameterSets(nalus)
	} else if isIDR && f.cfg.RepeatParameterSets {
		nalus = f.prependCachedParameterSets(nalus)
	}

	ts := firstNALUTimestamps
	if !ts.HasPTS && f.tsGen != nil {
		ts = f.tsGen.Next()
	}

	buffers := f.buildOutputBuffers(nalus, isIDR, ts)
	result.Buffers = append(result.Buffers, buffers...)

	if formatChanged {
		result.FormatChanged = true
		result.Format = OutputFormat{
			Alignment: f.cfg.OutputAlignment,
			Width:     f.width,
			Height:    f.height,
			Profile:   f.profile,
			Framerate: f.cfg.Framerate,
			Structure: f.outputStructure,
		}
	}
}

func stripParameterSets(nalus []*h264.NALU) []*h264.NALU {
	out := make([]*h264.NALU, 0, len(nalus))
	for _, n := range nalus {
		if n.Type == h264.TypeSPS || n.Type == h264.TypePPS {
			continue
		}
		out = append(out, n)
	}
	return out
}

// prependCachedParameterSets prepends the latest cached SPS+PPS ahead of
// an IDR AU's own NALUs, deduplicated against any copy already present
// (spec §6 repeat_parameter_sets).
func (f *Filter) prependCachedParameterSets(nalus []*h264.NALU) []*h264.NALU {
	present := map[h264.Type]map[int]bool{h264.TypeSPS: {}, h264.TypePPS: {}}
	for _, n := range nalus {
		if n.Type == h264.TypeSPS {
			present[h264.TypeSPS][int(n.ParsedFields["seq_parameter_set_id"].(uint32))] = true
		}
		if n.Type == h264.TypePPS {
			present[h264.TypePPS][int(n.ParsedFields["pic_parameter_set_id"].(uint32))] = true
		}
	}

	var prefix []*h264.NALU
	for id, nalu := range f.spsCache {
		if !present[h264.TypeSPS][id] {
			prefix = append(prefix, nalu.Clone())
		}
	}
	for id, nalu := range f.ppsCache {
		if !present[h264.TypePPS][id] {
			prefix = append(prefix, nalu.Clone())
		}
	}
	return append(prefix, nalus...)
}

// buildOutputBuffers wraps nalus into one or more OutputBuffers per
// Config.OutputAlignment, reframed under f.outputStructure and annotated
// per spec §6.
func (f *Filter) buildOutputBuffers(nalus []*h264.NALU, keyFrame bool, ts h264.Timestamps) []OutputBuffer {
	if len(nalus) == 0 {
		return nil
	}

	if f.cfg.OutputAlignment == OutputAlignmentNALU {
		buffers := make([]OutputBuffer, 0, len(nalus))
		for i, n := range nalus {
			prefix := f.framePrefix(n.Payload)
			payload := append(append([]byte{}, prefix...), n.Payload...)
			buffers = append(buffers, OutputBuffer{
				Payload:   payload,
				KeyFrame:  keyFrame,
				Timestamps: ts,
				NALUs: []NALUMeta{{
					Type:             n.Type,
					PrefixedPosLen:   Span{Offset: 0, Length: len(payload)},
					UnprefixedPosLen: Span{Offset: len(prefix), Length: len(n.Payload)},
					NewAccessUnit:    i == 0,
					EndAccessUnit:    i == len(nalus)-1,
				}},
			})
		}
		return buffers
	}

	var payload bytes.Buffer
	metas := make([]NALUMeta, 0, len(nalus))
	for i, n := range nalus {
		prefix := f.framePrefix(n.Payload)
		prefixedOffset := payload.Len()
		payload.Write(prefix)
		unprefixedOffset := payload.Len()
		payload.Write(n.Payload)
		metas = append(metas, NALUMeta{
			Type:             n.Type,
			PrefixedPosLen:   Span{Offset: prefixedOffset, Length: len(prefix) + len(n.Payload)},
			UnprefixedPosLen: Span{Offset: unprefixedOffset, Length: len(n.Payload)},
			NewAccessUnit:    i == 0,
			EndAccessUnit:    i == len(nalus)-1,
		})
	}

	return []OutputBuffer{{
		Payload:    payload.Bytes(),
		KeyFrame:   keyFrame,
		Timestamps: ts,
		NALUs:      metas,
	}}
}

// framePrefix returns the output-framing prefix for a NALU payload
// (spec §6 wire framing): a start code for Annex B, a big-endian
// length_size-byte length for AVC1/AVC3.
func (f *Filter) framePrefix(payload []byte) []byte {
	if f.outputStructure.Kind == StructureAnnexB {
		return startCode()
	}
	buf := make([]byte, f.outputStructure.LengthSize)
	switch f.outputStructure.LengthSize {
	case 1:
		buf[0] = byte(len(payload))
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	}
	return buf
}

func startCode() []byte {
	return []byte{0, 0, 0, 1}
}
