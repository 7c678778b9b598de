package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/locknlabs/listen/internal/observe"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecording(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(ctx) }()

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.FramesReceived.Add(ctx, 3)
	m.SegmentsDispatched.Add(ctx, 1)
	m.TranscriptionDuration.Record(ctx, 0.42)
	m.RecordInferenceError(ctx, "transcribe")

	got := collect(t, reader)

	frames, ok := got["listen.frames.received"].Data.(metricdata.Sum[int64])
	if !ok || len(frames.DataPoints) != 1 || frames.DataPoints[0].Value != 3 {
		t.Errorf("frames.received = %+v, want a single data point of 3", got["listen.frames.received"].Data)
	}

	hist, ok := got["listen.transcription.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("transcription.duration = %+v, want one recorded sample", got["listen.transcription.duration"].Data)
	}

	errs, ok := got["listen.inference.errors"].Data.(metricdata.Sum[int64])
	if !ok || len(errs.DataPoints) != 1 || errs.DataPoints[0].Value != 1 {
		t.Errorf("inference.errors = %+v, want a single data point of 1", got["listen.inference.errors"].Data)
	}
}

func TestDefaultMetricsSingleton(t *testing.T) {
	a := observe.DefaultMetrics()
	b := observe.DefaultMetrics()
	if a != b {
		t.Fatal("DefaultMetrics must return the same instance")
	}
}
