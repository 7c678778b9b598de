package stream

import "context"

// Wire protocol event and message types. All JSON fields are snake_case.

// Machine-readable error codes shared across the LockN Listen APIs.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeInvalidAudioFormat   = "LISTEN_INVALID_AUDIO_FORMAT"
	CodeTranscriptionFailed  = "LISTEN_TRANSCRIPTION_FAILED"
	CodeClassificationFailed = "LISTEN_CLASSIFICATION_FAILED"
	CodeServerInternalError  = "SERVER_INTERNAL_ERROR"
)

// ConfigMessage is the client → server configuration message. It is optional
// and may arrive interleaved with audio frames at any point.
type ConfigMessage struct {
	Type          string `json:"type"`
	Language      string `json:"language,omitempty"`
	SendVADStatus bool   `json:"send_vad_status,omitempty"`
}

// ReadyEvent announces a new session to the client.
type ReadyEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// SpeechStartEvent marks the VAD-detected start of a speech segment.
type SpeechStartEvent struct {
	Type      string `json:"type"`
	SegmentID string `json:"segment_id"`
}

// SpeechEndEvent marks the end of a speech segment, whether by hangover
// expiry or forced budget flush.
type SpeechEndEvent struct {
	Type       string `json:"type"`
	SegmentID  string `json:"segment_id"`
	DurationMs int64  `json:"duration_ms"`
}

// TranscriptEvent carries the transcription result for one segment.
type TranscriptEvent struct {
	Type            string  `json:"type"`
	SegmentID       string  `json:"segment_id"`
	Text            string  `json:"text"`
	IsFinal         bool    `json:"is_final"`
	Confidence      float64 `json:"confidence"`
	Language        string  `json:"language,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ClassificationTag is one labelled sound event in a ClassificationEvent.
type ClassificationTag struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassificationEvent carries the classification result for one window.
type ClassificationEvent struct {
	Type            string              `json:"type"`
	Tags            []ClassificationTag `json:"tags"`
	DurationSeconds float64             `json:"duration_seconds"`
}

// ErrorEvent reports a recoverable failure scoped to one segment or window.
// Clients must not assume the session terminates on error.
type ErrorEvent struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	SegmentID string `json:"segment_id,omitempty"`
}

// VADStatusEvent is the opt-in per-frame detector telemetry.
type VADStatusEvent struct {
	Type      string  `json:"type"`
	IsSpeech  bool    `json:"is_speech"`
	Energy    float64 `json:"energy"`
	Threshold float64 `json:"threshold"`
}

// Sender delivers protocol events back to the client over the transport.
// Implementations must be safe for concurrent use: the session goroutine and
// its in-flight dispatch goroutines both send.
//
// Send returns an error when the transport is no longer live; the session
// treats that as terminal for write-back but never retries.
type Sender interface {
	Send(ctx context.Context, event any) error
}
