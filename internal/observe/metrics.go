// Package observe provides application-wide observability primitives for
// the Listen streaming server: OpenTelemetry metrics, tracing helpers, and
// the SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Listen metrics.
const meterName = "github.com/locknlabs/listen"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per inference kind ---

	// TranscriptionDuration tracks per-segment transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// ClassificationDuration tracks per-window classification latency.
	ClassificationDuration metric.Float64Histogram

	// --- Counters ---

	// FramesReceived counts frames accepted by sessions. Use with attribute:
	//   attribute.String("endpoint", "stream"|"classify")
	FramesReceived metric.Int64Counter

	// FramesDropped counts frames rejected by validation. Same endpoint
	// attribute as FramesReceived.
	FramesDropped metric.Int64Counter

	// SegmentsDispatched counts finalized speech segments handed to the
	// transcriber. Use with attribute:
	//   attribute.String("reason", "speech_end"|"overflow")
	SegmentsDispatched metric.Int64Counter

	// SegmentsDiscarded counts segments dropped for being shorter than the
	// minimum dispatch duration.
	SegmentsDiscarded metric.Int64Counter

	// WindowsClassified counts completed classification windows.
	WindowsClassified metric.Int64Counter

	// --- Error counters ---

	// InferenceErrors counts collaborator failures. Use with attribute:
	//   attribute.String("kind", "transcribe"|"classify")
	InferenceErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming connections. Use
	// with the endpoint attribute.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for audio inference latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("listen.transcription.duration",
		metric.WithDescription("Latency of per-segment transcription dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassificationDuration, err = m.Float64Histogram("listen.classification.duration",
		metric.WithDescription("Latency of per-window classification dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesReceived, err = m.Int64Counter("listen.frames.received",
		metric.WithDescription("Total valid frames accepted by sessions, by endpoint."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("listen.frames.dropped",
		metric.WithDescription("Total frames rejected by validation, by endpoint."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDispatched, err = m.Int64Counter("listen.segments.dispatched",
		metric.WithDescription("Total speech segments dispatched to the transcriber, by finalize reason."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDiscarded, err = m.Int64Counter("listen.segments.discarded",
		metric.WithDescription("Total segments discarded for falling under the minimum duration."),
	); err != nil {
		return nil, err
	}
	if met.WindowsClassified, err = m.Int64Counter("listen.windows.classified",
		metric.WithDescription("Total completed classification windows."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.InferenceErrors, err = m.Int64Counter("listen.inference.errors",
		metric.WithDescription("Total inference collaborator failures, by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("listen.active_sessions",
		metric.WithDescription("Number of live streaming connections, by endpoint."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordInferenceError increments the inference error counter for the given
// collaborator kind ("transcribe" or "classify").
func (m *Metrics) RecordInferenceError(ctx context.Context, kind string) {
	m.InferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
