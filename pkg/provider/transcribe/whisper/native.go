// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/locknlabs/listen/pkg/audio"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// Compile-time assertion that NativeProvider satisfies transcribe.Provider.
var _ transcribe.Provider = (*NativeProvider)(nil)

// NativeProvider implements transcribe.Provider using whisper.cpp Go
// bindings (CGO), eliminating HTTP overhead entirely. The model is loaded
// once at startup and shared across all concurrent calls; each call creates
// its own whisper context, which is the unit of thread confinement the
// bindings require.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en". A per-request Language hint
// overrides this.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The model is loaded once and shared across all
// concurrent calls. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe converts pcm to float32 samples, runs whisper.cpp inference in
// a fresh context, and returns the concatenated segment text.
func (p *NativeProvider) Transcribe(ctx context.Context, pcm []byte, req transcribe.Request) (transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(pcm) == 0 {
		return transcribe.Result{}, errors.New("whisper: empty audio segment")
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	sr := req.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}

	samples := audio.ToFloat32(pcm)

	// Create a new whisper context for this inference. Each context is NOT
	// thread-safe, but the model can be shared across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return transcribe.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return transcribe.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return transcribe.Result{
		Text:     strings.Join(parts, " "),
		Language: lang,
		Duration: audio.Duration(pcm, sr),
	}, nil
}
