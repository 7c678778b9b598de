// Package transcribe defines the Provider interface for batch
// speech-to-text backends.
//
// A transcription provider wraps an inference service (a local
// whisper-server, the in-process whisper.cpp bindings, or the OpenAI audio
// API) behind a single blocking call: hand it a finalized speech segment as
// raw PCM, get back the recognised text. Streaming sessions dispatch each
// segment in its own goroutine, so Transcribe is where per-segment inference
// latency lives — the caller never blocks frame ingestion on it.
//
// Implementations must be safe for concurrent use: many sessions, and many
// in-flight segments within a session, may call Transcribe simultaneously.
// Any pooling or serialisation of a thread-unsafe native model is the
// implementation's responsibility, never the caller's.
package transcribe

import "context"

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Transcribe runs inference over a complete utterance of raw 16-bit
	// signed little-endian mono PCM and returns the recognised text.
	// The call blocks until inference completes, fails, or ctx is done.
	//
	// pcm is owned by the caller for the duration of the call only;
	// implementations must copy it if they retain it past return.
	Transcribe(ctx context.Context, pcm []byte, req Request) (Result, error)
}
