// Package classify defines the Provider interface for sound-event
// classification backends.
//
// A classification provider tags a short window of audio with labelled
// sound events (speech, clapping, a bouncing ball) and their confidences.
// Unlike transcription, classification is expected to complete well within
// the time it takes the next window to fill, so session code calls Classify
// synchronously and uses the call as a natural backpressure point.
//
// Implementations must be safe for concurrent use from many sessions.
package classify

import "context"

// Provider is the abstraction over any sound-event classification backend.
type Provider interface {
	// Classify runs inference over a window of raw 16-bit signed
	// little-endian mono PCM and returns the detected sound tags ordered by
	// descending confidence. The call blocks until inference completes,
	// fails, or ctx is done.
	Classify(ctx context.Context, pcm []byte, req Request) (Result, error)
}
