package signal

import "math"

// FPS is the simulation rate the target steps at.
const FPS = 60

// FrameMs is the duration of one simulated frame.
const FrameMs = 1000.0 / FPS

// FrameSpan is the range of whole frames a millisecond duration may occupy.
type FrameSpan struct {
	MinFrames int `json:"minFrames"`
	MaxFrames int `json:"maxFrames"`
}

// frameRatio converts ms to frames, rounded to three decimals so values
// quoted to two decimal places (33.34 ms) land on whole frames.
func frameRatio(ms float64) float64 {
	return math.Round(ms/FrameMs*1000) / 1000
}

// NormalizeMsToFrames returns the frame span covering ms. MinFrames is never
// below 1 and MaxFrames never below MinFrames.
func NormalizeMsToFrames(ms float64) FrameSpan {
	r := frameRatio(ms)
	lo := max(1, int(math.Floor(r)))
	return FrameSpan{MinFrames: lo, MaxFrames: max(lo, int(math.Ceil(r)))}
}

// CeilFrames returns the number of whole frames needed to cover ms.
func CeilFrames(ms float64) int {
	return max(0, int(math.Ceil(frameRatio(ms))))
}
