package stream_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/locknlabs/listen/internal/stream"
	"github.com/locknlabs/listen/pkg/provider/classify"
	classifymock "github.com/locknlabs/listen/pkg/provider/classify/mock"
)

func TestClassificationSessionFullWindowDispatch(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	prov := &classifymock.Provider{Result: classify.Result{
		Tags:     []classify.Tag{{Label: "Speech", Confidence: 0.91}, {Label: "Music", Confidence: 0.12}},
		Duration: 42 * time.Millisecond,
	}}

	s := stream.NewClassificationSession(stream.ClassifyConfig{WindowFrames: 3, TopK: 5}, sender, prov, nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	frames := [][]byte{sineFrame(0.1), sineFrame(0.2), sineFrame(0.3)}
	for _, f := range frames {
		s.HandleFrame(ctx, f)
	}

	if got := prov.CallCount(); got != 1 {
		t.Fatalf("classify calls = %d, want 1", got)
	}
	call := prov.Calls[0]
	want := append(append(append([]byte{}, frames[0]...), frames[1]...), frames[2]...)
	if !bytes.Equal(call.PCM, want) {
		t.Error("classified window does not match the appended frames in order")
	}
	if call.Req.TopK != 5 {
		t.Errorf("request top_k = %d, want 5", call.Req.TopK)
	}
	if call.Req.SampleRate != stream.SampleRate {
		t.Errorf("request sample rate = %d, want %d", call.Req.SampleRate, stream.SampleRate)
	}

	ev := sender.waitFor(t, "classification").(stream.ClassificationEvent)
	if len(ev.Tags) != 2 || ev.Tags[0].Label != "Speech" {
		t.Errorf("unexpected tags: %+v", ev.Tags)
	}

	// A second full window produces a second result.
	for _, f := range frames {
		s.HandleFrame(ctx, f)
	}
	if got := prov.CallCount(); got != 2 {
		t.Errorf("classify calls = %d, want 2", got)
	}
	_ = s.Close(ctx)
}

func TestClassificationSessionPartialWindowNotDispatched(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	prov := &classifymock.Provider{}

	s := stream.NewClassificationSession(stream.ClassifyConfig{WindowFrames: 4}, sender, prov, nil)
	for i := 0; i < 3; i++ {
		s.HandleFrame(ctx, silenceFrame())
	}
	if got := prov.CallCount(); got != 0 {
		t.Errorf("partial window dispatched %d times", got)
	}
	_ = s.Close(ctx)
}

func TestClassificationSessionInvalidFrameResetsWindow(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	prov := &classifymock.Provider{}

	s := stream.NewClassificationSession(stream.ClassifyConfig{WindowFrames: 3}, sender, prov, nil)

	// Two good frames, then garbage: the whole window is discarded, so two
	// more good frames still do not complete a window.
	s.HandleFrame(ctx, silenceFrame())
	s.HandleFrame(ctx, silenceFrame())
	s.HandleFrame(ctx, make([]byte, 7))
	s.HandleFrame(ctx, silenceFrame())
	s.HandleFrame(ctx, silenceFrame())
	if got := prov.CallCount(); got != 0 {
		t.Fatalf("misaligned window dispatched %d times", got)
	}

	// A third good frame completes the rebuilt window.
	s.HandleFrame(ctx, silenceFrame())
	if got := prov.CallCount(); got != 1 {
		t.Errorf("classify calls = %d, want 1", got)
	}
	_ = s.Close(ctx)
}

func TestClassificationSessionErrorKeepsSessionOpen(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	prov := &classifymock.Provider{Err: errors.New("model not loaded")}

	s := stream.NewClassificationSession(stream.ClassifyConfig{WindowFrames: 1}, sender, prov, nil)
	s.HandleFrame(ctx, silenceFrame())

	ev := sender.waitFor(t, "error").(stream.ErrorEvent)
	if ev.Code != stream.CodeClassificationFailed {
		t.Errorf("error code %q, want %q", ev.Code, stream.CodeClassificationFailed)
	}

	// The next window is still processed.
	prov.Err = nil
	s.HandleFrame(ctx, silenceFrame())
	if got := prov.CallCount(); got != 2 {
		t.Errorf("classify calls = %d, want 2", got)
	}
	if got := sender.count("classification"); got != 1 {
		t.Errorf("classification events = %d, want 1", got)
	}
	_ = s.Close(ctx)
}

func TestClassificationSessionCloseStopsProcessing(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	prov := &classifymock.Provider{}

	s := stream.NewClassificationSession(stream.ClassifyConfig{WindowFrames: 1}, sender, prov, nil)
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	s.HandleFrame(ctx, silenceFrame())
	if got := prov.CallCount(); got != 0 {
		t.Errorf("frame processed after close: %d calls", got)
	}
}
