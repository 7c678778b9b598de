package transcribe

import "time"

// Request carries per-call recognition hints.
type Request struct {
	// SampleRate is the PCM sample rate in Hz. Zero means the provider
	// default (16000).
	SampleRate int

	// Language is the BCP-47 language hint (e.g., "en", "de"). An empty
	// string lets the provider auto-detect, if supported.
	Language string
}

// Result is a completed transcription.
type Result struct {
	// Text is the recognised speech content.
	Text string

	// Language is the language the provider detected or was told to use.
	Language string

	// Confidence is the overall recognition confidence (0.0–1.0). Zero if
	// the provider does not report confidence.
	Confidence float64

	// Duration is the play time of the audio that was transcribed.
	Duration time.Duration
}
