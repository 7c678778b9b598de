package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/locknlabs/listen/internal/observe"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// SessionConfig holds per-connection pipeline tuning for a StreamingSession.
type SessionConfig struct {
	// VAD configures the energy detector. Zero fields take defaults.
	VAD VADConfig

	// MaxSegmentBytes bounds one segment. Zero means DefaultMaxSegmentBytes.
	MaxSegmentBytes int

	// MinSegmentDuration is the floor under which finalized segments are
	// discarded instead of dispatched. Zero means DefaultMinSegmentDuration.
	MinSegmentDuration time.Duration

	// Language is the initial language hint, overridable by a client config
	// message.
	Language string
}

// StreamingSession orchestrates one transcription connection: it validates
// incoming frames, drives the VAD, accumulates speech segments, and
// dispatches finalized segments to the transcriber without ever blocking
// frame ingestion.
//
// HandleFrame, HandleConfig, and Close must be called from a single
// goroutine (the transport read loop) — frames are processed strictly in
// arrival order. Dispatch goroutines run concurrently and are tracked; Close
// drains them. The Sender must be safe for concurrent use because boundary
// events and dispatch results are written from different goroutines.
type StreamingSession struct {
	id      string
	cfg     SessionConfig
	sender  Sender
	stt     transcribe.Provider
	metrics *observe.Metrics
	log     *slog.Logger

	vad *VAD
	acc *SegmentAccumulator

	// lookback retains the most recent silence-state frames so the frames
	// that trigger a speech-start are part of the segment. Capacity is
	// SpeechStartFrames-1; the transition frame itself is appended directly.
	lookback [][]byte

	segmentID string
	language  string
	verbose   bool

	closed atomic.Bool
	g      errgroup.Group
}

// NewStreamingSession creates a session around the given transport sender
// and transcription provider. metrics may be nil, in which case the
// package-level default instruments are used.
func NewStreamingSession(cfg SessionConfig, sender Sender, provider transcribe.Provider, metrics *observe.Metrics) *StreamingSession {
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = DefaultMaxSegmentBytes
	}
	if cfg.MinSegmentDuration <= 0 {
		cfg.MinSegmentDuration = DefaultMinSegmentDuration
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	id := uuid.NewString()
	return &StreamingSession{
		id:       id,
		cfg:      cfg,
		sender:   sender,
		stt:      provider,
		metrics:  metrics,
		log:      slog.Default().With("session_id", id, "endpoint", "stream"),
		vad:      NewVAD(cfg.VAD),
		acc:      NewSegmentAccumulator(cfg.MaxSegmentBytes),
		language: cfg.Language,
	}
}

// ID returns the session identifier announced in the ready event.
func (s *StreamingSession) ID() string { return s.id }

// Start announces the session to the client. The session accepts frames
// immediately; a config message is optional and may arrive interleaved with
// audio.
func (s *StreamingSession) Start(ctx context.Context) error {
	return s.sender.Send(ctx, ReadyEvent{Type: "ready", SessionID: s.id})
}

// HandleConfig processes a client text message. Unparsable JSON is a
// protocol error: it is reported to the client and logged, and the session
// stays open.
func (s *StreamingSession) HandleConfig(ctx context.Context, data []byte) {
	if s.closed.Load() {
		return
	}
	var msg ConfigMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("unparsable config message", "err", err)
		s.send(ctx, ErrorEvent{
			Type:  "error",
			Error: "config message is not valid JSON",
			Code:  CodeValidationFailed,
		})
		return
	}
	if msg.Type != "config" {
		s.log.Debug("ignoring unknown message type", "type", msg.Type)
		return
	}
	if msg.Language != "" {
		s.language = msg.Language
	}
	s.verbose = msg.SendVADStatus
	s.log.Debug("config updated", "language", s.language, "send_vad_status", s.verbose)
}

// HandleFrame processes one binary frame. Invalid frames are logged and
// dropped; the session stays open. Valid frames feed the VAD, whose decision
// drives segment accumulation and dispatch.
func (s *StreamingSession) HandleFrame(ctx context.Context, frame []byte) {
	if s.closed.Load() {
		return
	}
	if err := ValidateFrame(frame); err != nil {
		s.log.Warn("dropping invalid frame", "err", err)
		s.metrics.FramesDropped.Add(ctx, 1, metric.WithAttributes(observe.Attr("endpoint", "stream")))
		return
	}
	s.metrics.FramesReceived.Add(ctx, 1, metric.WithAttributes(observe.Attr("endpoint", "stream")))

	d := s.vad.ProcessFrame(frame)

	if s.verbose {
		s.send(ctx, VADStatusEvent{
			Type:      "vad_status",
			IsSpeech:  d.IsSpeech,
			Energy:    d.Energy,
			Threshold: d.Threshold,
		})
	}

	switch {
	case d.JustStarted:
		s.segmentID = uuid.NewString()
		s.acc.Clear()
		for _, f := range s.lookback {
			s.acc.Append(f)
		}
		s.lookback = s.lookback[:0]
		s.acc.Append(frame)
		s.send(ctx, SpeechStartEvent{Type: "speech_start", SegmentID: s.segmentID})

	case d.JustStopped:
		// The transition frame is the last of the hangover; include it so
		// the trailing silence stays part of the utterance.
		s.acc.Append(frame)
		s.finalize(ctx, "speech_end")

	case d.IsSpeech:
		s.acc.Append(frame)
		if s.acc.OverBudget() {
			// Forced flush: dispatch as if speech had ended, then keep
			// accumulating under a fresh segment_id without waiting for an
			// explicit VAD stop.
			s.finalize(ctx, "overflow")
			s.segmentID = uuid.NewString()
			s.send(ctx, SpeechStartEvent{Type: "speech_start", SegmentID: s.segmentID})
		}

	default:
		s.pushLookback(frame)
	}
}

// pushLookback retains a copy of frame in the silence-state lookback,
// bounded at SpeechStartFrames-1 entries.
func (s *StreamingSession) pushLookback(frame []byte) {
	keep := s.vad.cfg.SpeechStartFrames - 1
	if keep <= 0 {
		return
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.lookback = append(s.lookback, cp)
	if len(s.lookback) > keep {
		s.lookback = s.lookback[len(s.lookback)-keep:]
	}
}

// finalize drains the current segment, emits speech_end, and dispatches the
// audio to the transcriber in a tracked goroutine. Segments under the
// minimum duration are discarded without dispatch.
func (s *StreamingSession) finalize(ctx context.Context, reason string) {
	if s.acc.Empty() {
		return
	}
	dur := s.acc.Duration()
	segID := s.segmentID
	pcm := s.acc.Drain()

	s.send(ctx, SpeechEndEvent{
		Type:       "speech_end",
		SegmentID:  segID,
		DurationMs: dur.Milliseconds(),
	})

	if dur < s.cfg.MinSegmentDuration {
		s.log.Debug("discarding short segment", "segment_id", segID, "duration", dur)
		s.metrics.SegmentsDiscarded.Add(ctx, 1)
		return
	}

	s.metrics.SegmentsDispatched.Add(ctx, 1, metric.WithAttributes(observe.Attr("reason", reason)))
	lang := s.language

	s.g.Go(func() error {
		dctx, span := observe.StartSpan(ctx, "stream.transcribe")
		defer span.End()

		start := time.Now()
		res, err := s.stt.Transcribe(dctx, pcm, transcribe.Request{
			SampleRate: SampleRate,
			Language:   lang,
		})
		s.metrics.TranscriptionDuration.Record(dctx, time.Since(start).Seconds())

		if s.closed.Load() {
			// The transport is gone; results are discarded best-effort.
			s.log.Debug("discarding transcription result after close", "segment_id", segID)
			return nil
		}
		if err != nil {
			s.log.Error("transcription failed", "segment_id", segID, "err", err)
			s.metrics.RecordInferenceError(dctx, "transcribe")
			s.send(dctx, ErrorEvent{
				Type:      "error",
				Error:     "transcription failed",
				Code:      CodeTranscriptionFailed,
				SegmentID: segID,
			})
			return nil
		}
		s.send(dctx, TranscriptEvent{
			Type:            "transcript",
			SegmentID:       segID,
			Text:            res.Text,
			IsFinal:         true,
			Confidence:      res.Confidence,
			Language:        res.Language,
			DurationSeconds: res.Duration.Seconds(),
		})
		return nil
	})
}

// Close shuts the session down: the in-flight segment is discarded (the
// client is gone, a partial utterance has no consumer), the detector and
// accumulator are released, and all in-flight dispatches are drained.
// Dispatches are not forcibly aborted; their results are discarded because
// the closed flag is already set. Calling Close more than once is safe.
func (s *StreamingSession) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.acc.Clear()
	s.vad.Reset()
	s.lookback = nil

	done := make(chan struct{})
	go func() {
		_ = s.g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send writes an event to the transport, checking liveness first. Transport
// write failures are logged and swallowed — a dead transport is terminal for
// writes but the read loop discovers that on its own.
func (s *StreamingSession) send(ctx context.Context, event any) {
	if s.closed.Load() {
		return
	}
	if err := s.sender.Send(ctx, event); err != nil {
		s.log.Debug("event send failed", "err", err)
	}
}
