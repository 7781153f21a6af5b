package filter

import "fmt"

// StreamStructureKind tags one of the three standard H.264 byte-level
// framings (spec §3, Glossary).
type StreamStructureKind int

const (
	StructureAnnexB StreamStructureKind = iota
	StructureAVC1
	StructureAVC3
)

func (k StreamStructureKind) String() string {
	switch k {
	case StructureAnnexB:
		return "annexb"
	case StructureAVC1:
		return "avc1"
	case StructureAVC3:
		return "avc3"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// StreamStructure is the tagged variant from spec §3: {AnnexB} |
// {Avc1, length_size} | {Avc3, length_size}.
type StreamStructure struct {
	Kind       StreamStructureKind
	LengthSize int // only meaningful for AVC1/AVC3; one of 1, 2, 4
}

// IsAVC reports whether s is one of the length-prefixed variants.
func (s StreamStructure) IsAVC() bool {
	return s.Kind == StructureAVC1 || s.Kind == StructureAVC3
}

// Mode is the input alignment mode (spec §4.9), fixed at the first
// stream-format signal.
type Mode int

const (
	ModeBytestream Mode = iota
	ModeNALUAligned
	ModeAUAligned
)

// OutputAlignment selects whether output buffers carry one AU or one
// NALU each (spec §6).
type OutputAlignment int

const (
	OutputAlignmentAU OutputAlignment = iota
	OutputAlignmentNALU
)

// Framerate is a (num, den) ratio: num frames per den seconds.
type Framerate struct {
	Num int
	Den int
}

// BestEffortTimestamps configures the AU Timestamp Generator (spec §4.6,
// §6 generate_best_effort_timestamps).
type BestEffortTimestamps struct {
	Framerate    Framerate
	AddDTSOffset bool
}

// Config holds the Filter coordinator's configuration options (spec §6).
type Config struct {
	SPS [][]byte
	PPS [][]byte

	Framerate *Framerate

	OutputAlignment     OutputAlignment
	SkipUntilKeyframe   bool
	RepeatParameterSets bool

	// OutputStreamStructure is nil to follow the input's structure, or a
	// concrete target structure.
	OutputStreamStructure *StreamStructure

	BestEffort *BestEffortTimestamps
}

// Option mutates a Config at construction time. The pipeline engine's own
// kernels take plain config structs as constructor arguments (e.g.
// kernel.InputConfig) rather than options, but the functional-options
// idiom itself is grounded on storage.Option/db.Option in
// CVDS2020-CVDS-MAS, which builds its *Channel and *DBManager
// constructors the same way: WithXxx funcs closing over the field they
// set, applied in sequence by the constructor.
type Option func(*Config)

// WithParameterSets pre-supplies SPS/PPS payloads to inject as a
// synthetic frame prefix ahead of the first output buffer. Only valid
// when the output stream structure is Annex B (spec §6).
func WithParameterSets(sps, pps [][]byte) Option {
	return func(c *Config) {
		c.SPS = sps
		c.PPS = pps
	}
}

// WithFramerate records the stream's framerate for metadata purposes
// (independent of timestamp generation).
func WithFramerate(num, den int) Option {
	return func(c *Config) { c.Framerate = &Framerate{Num: num, Den: den} }
}

// WithOutputAlignment sets whether output buffers are AU- or
// NALU-aligned. Default is AU.
func WithOutputAlignment(a OutputAlignment) Option {
	return func(c *Config) { c.OutputAlignment = a }
}

// WithSkipUntilKeyframe sets whether AUs before the first IDR are
// dropped. Default true (spec §6).
func WithSkipUntilKeyframe(v bool) Option {
	return func(c *Config) { c.SkipUntilKeyframe = v }
}

// WithRepeatParameterSets sets whether each IDR AU is prefixed with the
// latest cached SPS+PPS. Default false.
func WithRepeatParameterSets(v bool) Option {
	return func(c *Config) { c.RepeatParameterSets = v }
}

// WithOutputStreamStructure sets the target output framing. nil (the
// default) means "follow the input."
func WithOutputStreamStructure(s *StreamStructure) Option {
	return func(c *Config) { c.OutputStreamStructure = s }
}

// WithBestEffortTimestamps enables constant-framerate PTS/DTS synthesis
// for AUs that arrive without timestamps (spec §4.6, §6).
func WithBestEffortTimestamps(b BestEffortTimestamps) Option {
	return func(c *Config) { c.BestEffort = &b }
}

// defaultConfig mirrors spec §6's stated defaults.
func defaultConfig() Config {
	return Config{
		OutputAlignment:   OutputAlignmentAU,
		SkipUntilKeyframe: true,
	}
}
