package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/locknlabs/listen/internal/observe"
	"github.com/locknlabs/listen/pkg/provider/classify"
)

// ClassifyConfig holds per-connection tuning for a ClassificationSession.
type ClassifyConfig struct {
	// WindowFrames is the number of frames per classification window. Zero
	// means one frame (one 60 ms window).
	WindowFrames int

	// TopK limits the number of tags requested per window. Zero means the
	// provider default.
	TopK int
}

// ClassificationSession orchestrates one sound-classification connection.
// It is the simpler sibling of StreamingSession: frames fill a fixed window,
// and each full window is classified synchronously — the dispatch call is a
// deliberate suspension point so window latency provides backpressure on the
// read loop.
//
// HandleFrame and Close must be called from a single goroutine.
type ClassificationSession struct {
	id         string
	cfg        ClassifyConfig
	sender     Sender
	classifier classify.Provider
	metrics    *observe.Metrics
	log        *slog.Logger

	window *FixedWindowBuffer
	closed bool
}

// NewClassificationSession creates a session around the given transport
// sender and classification provider. metrics may be nil, in which case the
// package-level default instruments are used.
func NewClassificationSession(cfg ClassifyConfig, sender Sender, provider classify.Provider, metrics *observe.Metrics) *ClassificationSession {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	id := uuid.NewString()
	return &ClassificationSession{
		id:         id,
		cfg:        cfg,
		sender:     sender,
		classifier: provider,
		metrics:    metrics,
		log:        slog.Default().With("session_id", id, "endpoint", "classify"),
		window:     NewFixedWindowBuffer(cfg.WindowFrames),
	}
}

// ID returns the session identifier announced in the ready event.
func (s *ClassificationSession) ID() string { return s.id }

// Start announces the session to the client.
func (s *ClassificationSession) Start(ctx context.Context) error {
	return s.sender.Send(ctx, ReadyEvent{Type: "ready", SessionID: s.id})
}

// HandleFrame processes one binary frame. An invalid frame discards the
// entire in-progress window — misaligned audio must never reach the
// classifier — and the session stays open.
func (s *ClassificationSession) HandleFrame(ctx context.Context, frame []byte) {
	if s.closed {
		return
	}
	if err := ValidateFrame(frame); err != nil {
		s.log.Warn("dropping invalid frame, resetting window", "err", err)
		s.metrics.FramesDropped.Add(ctx, 1, metric.WithAttributes(observe.Attr("endpoint", "classify")))
		s.window.Clear()
		return
	}
	s.metrics.FramesReceived.Add(ctx, 1, metric.WithAttributes(observe.Attr("endpoint", "classify")))

	s.window.Append(frame)
	if !s.window.Full() {
		return
	}

	pcm := s.window.Drain()

	dctx, span := observe.StartSpan(ctx, "stream.classify")
	defer span.End()

	start := time.Now()
	res, err := s.classifier.Classify(dctx, pcm, classify.Request{
		SampleRate: SampleRate,
		TopK:       s.cfg.TopK,
	})
	s.metrics.ClassificationDuration.Record(dctx, time.Since(start).Seconds())

	if err != nil {
		s.log.Error("classification failed", "err", err)
		s.metrics.RecordInferenceError(dctx, "classify")
		s.send(dctx, ErrorEvent{
			Type:  "error",
			Error: "classification failed",
			Code:  CodeClassificationFailed,
		})
		return
	}

	s.metrics.WindowsClassified.Add(dctx, 1)
	tags := make([]ClassificationTag, 0, len(res.Tags))
	for _, tg := range res.Tags {
		tags = append(tags, ClassificationTag{Label: tg.Label, Confidence: tg.Confidence})
	}
	s.send(dctx, ClassificationEvent{
		Type:            "classification",
		Tags:            tags,
		DurationSeconds: res.Duration.Seconds(),
	})
}

// Close releases the window. Calling Close more than once is safe.
func (s *ClassificationSession) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.window.Clear()
	return nil
}

// send writes an event to the transport. Write failures are logged and
// swallowed; the read loop discovers a dead transport on its own.
func (s *ClassificationSession) send(ctx context.Context, event any) {
	if err := s.sender.Send(ctx, event); err != nil {
		s.log.Debug("event send failed", "err", err)
	}
}
