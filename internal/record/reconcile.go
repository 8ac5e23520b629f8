package record

import "github.com/vidgrab/vidgrab/internal/util"

// audioFrameStepUs is the presentation-time step substituted for a
// non-monotonic audio timestamp: the duration of one encoded AAC frame.
const audioFrameStepUs = 23219

// reconciler derives monotonic per-track presentation timestamps from a
// capture source that occasionally reports zero or out-of-order times.
type reconciler struct {
	lastAudioUs  int64
	audioEmitted bool
}

// Video substitutes the current monotonic clock for a zero timestamp; the
// capture source is not guaranteed to timestamp every frame.
func (r *reconciler) Video(ptsUs int64) int64 {
	if ptsUs == 0 {
		return util.NowMicros()
	}
	return ptsUs
}

// Audio clamps negative timestamps to zero and replaces any timestamp that
// would run backwards with last-emitted plus one frame duration, keeping
// the audio track strictly non-decreasing without re-deriving capture time.
func (r *reconciler) Audio(ptsUs int64) int64 {
	if ptsUs < 0 {
		ptsUs = 0
	}
	if r.audioEmitted && ptsUs < r.lastAudioUs {
		ptsUs = r.lastAudioUs + audioFrameStepUs
	}
	r.lastAudioUs = ptsUs
	r.audioEmitted = true
	return ptsUs
}
