// Package timestamp implements the AU Timestamp Generator (spec §4.6):
// constant-framerate PTS/DTS synthesis with a B-frame reorder DTS
// offset, for streams whose input buffers don't already carry
// timestamps.
package timestamp

import (
	"fmt"

	"github.com/membraneframework-labs/membrane-h264-plugin/h264"
)

// NanosecondsPerSecond is the host time unit this generator emits
// timestamps in (spec §4.6: "T is the host time unit per second").
const NanosecondsPerSecond = int64(1_000_000_000)

// defaultMaxReorderFrames is used when the SPS doesn't carry
// max_num_reorder_frames (spec §4.6).
const defaultMaxReorderFrames = 2

// UnsupportedProfileError is raised when timestamp generation is
// requested for a profile known to reorder frames without an explicit
// DTS offset (spec §7 UnsupportedProfileForTsGen).
type UnsupportedProfileError struct {
	Profile h264.Profile
}

func (e UnsupportedProfileError) Error() string {
	return fmt.Sprintf("timestamp generation unsupported for profile %q without an explicit DTS offset", e.Profile)
}

// Generator synthesizes PTS/DTS for a constant-framerate stream.
type Generator struct {
	framerateNum int
	framerateDen int

	applyDTSOffset   bool
	maxReorderFrames int
	counter          int64
}

// New returns a Generator for the given framerate (frames per
// framerateDen seconds). profile gates whether generation is allowed at
// all (spec §4.6: only baseline-like profiles are safe by default,
// unless addDTSOffset is true, which derives an explicit reorder-based
// DTS offset instead of assuming PTS==DTS). A baseline-like profile with
// addDTSOffset false is exactly the case spec §4.6 calls safe, so Next
// sets DTS==PTS for it; the reorder offset (maxReorderFrames, defaulting
// to 2 when not taken from the SPS's max_num_reorder_frames) is only
// ever applied when the caller explicitly asked for it.
func New(framerateNum, framerateDen int, profile h264.Profile, addDTSOffset bool, maxReorderFrames int) (*Generator, error) {
	if !profile.IsBaselineLike() && !addDTSOffset {
		return nil, UnsupportedProfileError{Profile: profile}
	}
	if addDTSOffset && maxReorderFrames <= 0 {
		maxReorderFrames = defaultMaxReorderFrames
	}
	return &Generator{
		framerateNum:     framerateNum,
		framerateDen:     framerateDen,
		applyDTSOffset:   addDTSOffset,
		maxReorderFrames: maxReorderFrames,
	}, nil
}

// Next assigns pts/dts to the next AU in sequence and advances the
// internal frame counter.
func (g *Generator) Next() h264.Timestamps {
	n := g.counter
	g.counter++

	pts := g.pts(n)
	dts := pts
	if g.applyDTSOffset {
		dts = pts - int64(g.maxReorderFrames)*g.framePeriod()
	}

	return h264.Timestamps{PTS: pts, DTS: dts, HasPTS: true, HasDTS: true}
}

// pts computes floor(n * framerateDen * T / framerateNum) (spec §4.6).
func (g *Generator) pts(n int64) int64 {
	return (n * int64(g.framerateDen) * NanosecondsPerSecond) / int64(g.framerateNum)
}

func (g *Generator) framePeriod() int64 {
	return (int64(g.framerateDen) * NanosecondsPerSecond) / int64(g.framerateNum)
}

// Reset rewinds the AU counter to zero. The Filter coordinator does not
// call it: its generator keeps counting for the life of the Filter.
func (g *Generator) Reset() {
	g.counter = 0
}
