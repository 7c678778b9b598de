package stream_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/locknlabs/listen/internal/stream"
)

func TestSegmentAccumulatorAppendAndDuration(t *testing.T) {
	acc := stream.NewSegmentAccumulator(0)
	if !acc.Empty() {
		t.Fatal("new accumulator not empty")
	}

	for i := 0; i < 10; i++ {
		acc.Append(silenceFrame())
	}
	if got := acc.Len(); got != 10*stream.FrameBytes {
		t.Errorf("Len = %d, want %d", got, 10*stream.FrameBytes)
	}
	if got, want := acc.Duration(), 10*stream.FrameDuration; got != want {
		t.Errorf("Duration = %v, want %v", got, want)
	}
}

func TestSegmentAccumulatorOverBudget(t *testing.T) {
	// Budget of three frames: the accumulator reports over-budget exactly
	// when the third frame lands, not before.
	acc := stream.NewSegmentAccumulator(3 * stream.FrameBytes)

	acc.Append(silenceFrame())
	acc.Append(silenceFrame())
	if acc.OverBudget() {
		t.Fatal("over budget before the limit")
	}
	acc.Append(silenceFrame())
	if !acc.OverBudget() {
		t.Fatal("not over budget at the limit")
	}
}

func TestSegmentAccumulatorDrainMovesOwnership(t *testing.T) {
	acc := stream.NewSegmentAccumulator(0)
	first := sineFrame(0.3)
	acc.Append(first)

	drained := acc.Drain()
	if !acc.Empty() {
		t.Fatal("accumulator not empty after drain")
	}
	if !bytes.Equal(drained, first) {
		t.Fatal("drained bytes do not match appended frame")
	}

	// Appending after the drain must not mutate the drained slice.
	snapshot := make([]byte, len(drained))
	copy(snapshot, drained)
	for i := 0; i < 5; i++ {
		acc.Append(sineFrame(0.9))
	}
	if !bytes.Equal(drained, snapshot) {
		t.Fatal("drained segment mutated by later appends")
	}
}

func TestSegmentDurationThreshold(t *testing.T) {
	// Three 60 ms frames sit just under the 200 ms discard floor; four sit
	// over it.
	acc := stream.NewSegmentAccumulator(0)
	for i := 0; i < 3; i++ {
		acc.Append(silenceFrame())
	}
	if acc.Duration() >= 200*time.Millisecond {
		t.Errorf("3 frames = %v, expected under 200ms", acc.Duration())
	}
	acc.Append(silenceFrame())
	if acc.Duration() < 200*time.Millisecond {
		t.Errorf("4 frames = %v, expected at least 200ms", acc.Duration())
	}
}
