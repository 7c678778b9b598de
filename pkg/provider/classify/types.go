package classify

import "time"

// Request carries per-call classification options.
type Request struct {
	// SampleRate is the PCM sample rate in Hz. Zero means the provider
	// default (16000).
	SampleRate int

	// TopK limits the number of returned tags. Zero means the provider
	// default (10).
	TopK int
}

// Tag is a single labelled sound event.
type Tag struct {
	// Label is the classifier's class name (e.g., "Speech", "Clapping").
	Label string

	// Confidence is the class probability (0.0–1.0).
	Confidence float64
}

// Result is a completed classification.
type Result struct {
	// Tags holds the detected sound events, ordered by descending
	// confidence. Low-confidence classes are filtered out by the provider.
	Tags []Tag

	// Duration is the play time of the audio that was classified.
	Duration time.Duration
}
