package resilience

import (
	"context"
	"fmt"

	"github.com/locknlabs/listen/pkg/provider/classify"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// guardedTranscriber runs every Transcribe call through a circuit breaker.
type guardedTranscriber struct {
	inner   transcribe.Provider
	breaker *Breaker
}

var _ transcribe.Provider = (*guardedTranscriber)(nil)

// WrapTranscriber returns a [transcribe.Provider] whose calls are gated by
// breaker. When the breaker is open, Transcribe fails fast with an error
// wrapping [ErrOpen].
func WrapTranscriber(p transcribe.Provider, breaker *Breaker) transcribe.Provider {
	return &guardedTranscriber{inner: p, breaker: breaker}
}

func (g *guardedTranscriber) Transcribe(ctx context.Context, pcm []byte, req transcribe.Request) (transcribe.Result, error) {
	var res transcribe.Result
	err := g.breaker.Do(func() error {
		var err error
		res, err = g.inner.Transcribe(ctx, pcm, req)
		return err
	})
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("transcribe: %w", err)
	}
	return res, nil
}

// guardedClassifier runs every Classify call through a circuit breaker.
type guardedClassifier struct {
	inner   classify.Provider
	breaker *Breaker
}

var _ classify.Provider = (*guardedClassifier)(nil)

// WrapClassifier returns a [classify.Provider] whose calls are gated by
// breaker.
func WrapClassifier(p classify.Provider, breaker *Breaker) classify.Provider {
	return &guardedClassifier{inner: p, breaker: breaker}
}

func (g *guardedClassifier) Classify(ctx context.Context, pcm []byte, req classify.Request) (classify.Result, error) {
	var res classify.Result
	err := g.breaker.Do(func() error {
		var err error
		res, err = g.inner.Classify(ctx, pcm, req)
		return err
	})
	if err != nil {
		return classify.Result{}, fmt.Errorf("classify: %w", err)
	}
	return res, nil
}
