// Package stream implements the real-time audio streaming pipeline: frame
// validation, energy-based voice activity detection, segment and window
// accumulation, and the per-connection session orchestrators that tie them
// to the transport and the inference collaborators.
//
// Everything in this package is per-connection state. Sessions own their
// detector and accumulator exclusively; the only shared resources are the
// inference providers, which must be safe for concurrent use.
package stream

import (
	"errors"
	"fmt"
	"time"
)

// Audio frame contract: 16 kHz, 16-bit signed little-endian, mono, 60 ms.
const (
	// SampleRate is the fixed PCM sample rate in Hz.
	SampleRate = 16000

	// FrameSamples is the number of samples in one frame (60 ms at 16 kHz).
	FrameSamples = 960

	// FrameBytes is the exact byte length of a valid frame (2 bytes/sample).
	FrameBytes = FrameSamples * 2

	// FrameDuration is the play time of one frame.
	FrameDuration = 60 * time.Millisecond
)

// ErrInvalidFrame is returned by ValidateFrame for byte blocks that do not
// match the fixed frame contract. Use errors.Is to detect it.
var ErrInvalidFrame = errors.New("stream: invalid audio frame")

// ValidateFrame checks that data is exactly one well-formed PCM frame.
// A frame is valid iff its length equals FrameBytes and is even — the
// even-length check is redundant with the fixed-size check but kept as an
// explicit guard for 16-bit alignment. Frames are never partially accepted.
func ValidateFrame(data []byte) error {
	if len(data) != FrameBytes {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidFrame, len(data), FrameBytes)
	}
	if len(data)%2 != 0 {
		return fmt.Errorf("%w: odd byte count %d", ErrInvalidFrame, len(data))
	}
	return nil
}
