package filter

import "fmt"

// ParameterSetConflictError fires when both option-provided SPS/PPS and
// an input DCR supply parameter sets (spec §7), and when SPS options are
// given while the output stream structure is not Annex B.
type ParameterSetConflictError struct{}

func (e ParameterSetConflictError) Error() string {
	return "parameter sets supplied both via options and via the input DCR"
}

// UnsupportedStreamStructureChangeError fires on an AnnexB<->AVC switch
// or a length_size change mid-stream (spec §7).
type UnsupportedStreamStructureChangeError struct {
	From, To StreamStructure
}

func (e UnsupportedStreamStructureChangeError) Error() string {
	return fmt.Sprintf("unsupported stream structure change: %s -> %s", e.From.Kind, e.To.Kind)
}

// UnsupportedModeChangeError fires when the input alignment mode
// changes after being fixed at the first stream-format signal.
type UnsupportedModeChangeError struct {
	From, To Mode
}

func (e UnsupportedModeChangeError) Error() string {
	return fmt.Sprintf("unsupported input mode change: %d -> %d", e.From, e.To)
}
