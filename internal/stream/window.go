package stream

// FixedWindowBuffer collects a fixed count of frames for windowed
// classification. Unlike SegmentAccumulator it has no notion of speech or
// silence — only capacity. It is per-connection state, owned exclusively by
// its session.
type FixedWindowBuffer struct {
	buf         []byte
	targetBytes int
}

// NewFixedWindowBuffer creates an empty window targeting frameCount frames.
// Non-positive frameCount means one frame (one 60 ms window).
func NewFixedWindowBuffer(frameCount int) *FixedWindowBuffer {
	if frameCount <= 0 {
		frameCount = 1
	}
	return &FixedWindowBuffer{
		buf:         make([]byte, 0, frameCount*FrameBytes),
		targetBytes: frameCount * FrameBytes,
	}
}

// Append adds one validated frame to the window.
func (w *FixedWindowBuffer) Append(frame []byte) {
	w.buf = append(w.buf, frame...)
}

// Full reports whether the window has reached its target size and is ready
// to be drained.
func (w *FixedWindowBuffer) Full() bool { return len(w.buf) >= w.targetBytes }

// Len returns the accumulated byte length.
func (w *FixedWindowBuffer) Len() int { return len(w.buf) }

// Drain returns the accumulated bytes and resets the window. Ownership of
// the returned slice moves to the caller.
func (w *FixedWindowBuffer) Drain() []byte {
	win := w.buf
	w.buf = make([]byte, 0, w.targetBytes)
	return win
}

// Clear discards any accumulated bytes. Called on a malformed frame so a
// garbled stream never produces a truncated or misaligned window.
func (w *FixedWindowBuffer) Clear() { w.buf = w.buf[:0] }
