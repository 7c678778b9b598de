// Package mock provides a test double for the transcribe package.
//
// Use Provider to feed controlled Result values to a session under test and
// inspect which PCM segments were dispatched.
//
// Example:
//
//	p := &mock.Provider{Result: transcribe.Result{Text: "hello"}}
//	res, _ := p.Transcribe(ctx, pcm, transcribe.Request{})
package mock

import (
	"context"
	"sync"

	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// Call records a single invocation of Provider.Transcribe.
type Call struct {
	// PCM is a copy of the audio bytes that were passed to Transcribe.
	PCM []byte
	// Req is the Request passed to Transcribe.
	Req transcribe.Request
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call when Err is nil.
	Result transcribe.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Fn, if non-nil, is invoked instead of returning Result/Err. The call
	// is still recorded.
	Fn func(ctx context.Context, pcm []byte, req transcribe.Request) (transcribe.Result, error)

	// Calls records every invocation of Transcribe.
	Calls []Call
}

// Transcribe records the call and returns Result, Err (or delegates to Fn).
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, req transcribe.Request) (transcribe.Result, error) {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)

	p.mu.Lock()
	p.Calls = append(p.Calls, Call{PCM: cp, Req: req})
	fn := p.Fn
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, pcm, req)
	}
	if err != nil {
		return transcribe.Result{}, err
	}
	return res, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements transcribe.Provider at compile time.
var _ transcribe.Provider = (*Provider)(nil)
