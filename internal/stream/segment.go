package stream

import (
	"time"

	"github.com/locknlabs/listen/pkg/audio"
)

// DefaultMaxSegmentBytes bounds a single segment at 30 s of audio
// (16 000 samples/s × 2 bytes × 30 s). A segment that grows past this is
// force-finalized so memory and per-segment inference latency stay bounded
// regardless of utterance length.
const DefaultMaxSegmentBytes = SampleRate * 2 * 30

// DefaultMinSegmentDuration is the floor below which a finalized segment is
// discarded instead of dispatched — anything shorter is VAD noise, not an
// utterance.
const DefaultMinSegmentDuration = 200 * time.Millisecond

// SegmentAccumulator collects validated frames into one contiguous speech
// segment between a VAD speech-start and speech-end. It is per-connection
// state, owned exclusively by its session.
type SegmentAccumulator struct {
	buf      []byte
	maxBytes int
}

// NewSegmentAccumulator creates an empty accumulator bounded at maxBytes.
// Non-positive maxBytes means DefaultMaxSegmentBytes.
func NewSegmentAccumulator(maxBytes int) *SegmentAccumulator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSegmentBytes
	}
	return &SegmentAccumulator{maxBytes: maxBytes}
}

// Append adds one validated frame to the segment.
func (a *SegmentAccumulator) Append(frame []byte) {
	a.buf = append(a.buf, frame...)
}

// Len returns the accumulated byte length.
func (a *SegmentAccumulator) Len() int { return len(a.buf) }

// Empty reports whether no frames have been accumulated.
func (a *SegmentAccumulator) Empty() bool { return len(a.buf) == 0 }

// OverBudget reports whether the accumulated bytes have reached the segment
// byte budget and the segment must be force-finalized.
func (a *SegmentAccumulator) OverBudget() bool { return len(a.buf) >= a.maxBytes }

// Duration returns the play time of the accumulated audio.
func (a *SegmentAccumulator) Duration() time.Duration {
	return audio.Duration(a.buf, SampleRate)
}

// Drain returns the accumulated bytes and resets the accumulator. The
// returned slice is never aliased by subsequent Appends — ownership moves to
// the caller, so a dispatched segment can be read concurrently while the
// accumulator grows the next one.
func (a *SegmentAccumulator) Drain() []byte {
	seg := a.buf
	a.buf = nil
	return seg
}

// Clear discards any accumulated bytes.
func (a *SegmentAccumulator) Clear() { a.buf = nil }
