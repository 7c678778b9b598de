// Package mock provides a test double for the classify package.
package mock

import (
	"context"
	"sync"

	"github.com/locknlabs/listen/pkg/provider/classify"
)

// Call records a single invocation of Provider.Classify.
type Call struct {
	// PCM is a copy of the audio bytes that were passed to Classify.
	PCM []byte
	// Req is the Request passed to Classify.
	Req classify.Request
}

// Provider is a mock implementation of classify.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Classify call when Err is nil.
	Result classify.Result

	// Err, if non-nil, is returned as the error from Classify.
	Err error

	// Calls records every invocation of Classify.
	Calls []Call
}

// Classify records the call and returns Result, Err.
func (p *Provider) Classify(_ context.Context, pcm []byte, req classify.Request) (classify.Result, error) {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, Call{PCM: cp, Req: req})
	if p.Err != nil {
		return classify.Result{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns the number of recorded Classify calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Ensure Provider implements classify.Provider at compile time.
var _ classify.Provider = (*Provider)(nil)
