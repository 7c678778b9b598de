// Package openai provides a transcription provider backed by the OpenAI
// audio transcription API.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/locknlabs/listen/pkg/audio"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

const defaultSampleRate = 16000

// Ensure Provider implements the transcribe.Provider interface.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider using the OpenAI audio API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// OpenAI-compatible proxies and for tests.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai transcribe: apiKey must not be empty")
	}
	if model == "" {
		model = string(DefaultModel)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Transcribe wraps pcm in a WAV container and submits it to the OpenAI audio
// transcription endpoint.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, req transcribe.Request) (transcribe.Result, error) {
	if len(pcm) == 0 {
		return transcribe.Result{}, fmt.Errorf("openai transcribe: empty audio segment")
	}

	sr := req.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	wav := audio.EncodeWAV(pcm, sr, 1)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("openai transcribe: %w", err)
	}

	return transcribe.Result{
		Text:     resp.Text,
		Language: req.Language,
		Duration: audio.Duration(pcm, sr),
	}, nil
}
