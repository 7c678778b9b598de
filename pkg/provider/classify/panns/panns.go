// Package panns provides a classification provider backed by a PANNs
// audio-tagging service, which exposes a REST API at POST /v1/audio/classify.
//
// Each call encodes the PCM window as a WAV file and submits it as a
// multipart/form-data request. The service performs its own resampling and
// model pooling, so the provider is safe for concurrent use from any number
// of sessions.
package panns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/locknlabs/listen/pkg/audio"
	"github.com/locknlabs/listen/pkg/provider/classify"
)

const (
	defaultSampleRate = 16000
	defaultTopK       = 10
)

// Compile-time assertion that Provider implements classify.Provider.
var _ classify.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTopK sets the default number of tags requested per classification.
// A per-request TopK overrides this. Defaults to 10.
func WithTopK(k int) Option {
	return func(p *Provider) { p.topK = k }
}

// WithHTTPClient replaces the default HTTP client (15 s timeout). Useful for
// tests and for callers that need custom transport settings.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements classify.Provider backed by a PANNs tagging service.
// It holds no per-call state and is safe for concurrent use.
type Provider struct {
	serverURL  string
	topK       int
	httpClient *http.Client
}

// New creates a Provider that connects to the PANNs service at serverURL
// (e.g., "http://localhost:8893"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("panns: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		topK:       defaultTopK,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// classifyResponse is the JSON structure returned by the PANNs service.
type classifyResponse struct {
	Tags []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Classify encodes pcm as a WAV file and POSTs it to the PANNs
// /v1/audio/classify endpoint as multipart/form-data.
func (p *Provider) Classify(ctx context.Context, pcm []byte, req classify.Request) (classify.Result, error) {
	if len(pcm) == 0 {
		return classify.Result{}, errors.New("panns: empty audio window")
	}

	sr := req.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	topK := req.TopK
	if topK <= 0 {
		topK = p.topK
	}

	wav := audio.EncodeWAV(pcm, sr, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "window.wav")
	if err != nil {
		return classify.Result{}, fmt.Errorf("panns: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return classify.Result{}, fmt.Errorf("panns: write wav data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return classify.Result{}, fmt.Errorf("panns: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/v1/audio/classify?top_k=" + strconv.Itoa(topK)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return classify.Result{}, fmt.Errorf("panns: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return classify.Result{}, fmt.Errorf("panns: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classify.Result{}, fmt.Errorf("panns: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify.Result{}, fmt.Errorf("panns: read response body: %w", err)
	}

	var parsed classifyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return classify.Result{}, fmt.Errorf("panns: parse JSON response: %w", err)
	}

	tags := make([]classify.Tag, 0, len(parsed.Tags))
	for _, tg := range parsed.Tags {
		tags = append(tags, classify.Tag{Label: tg.Label, Confidence: tg.Confidence})
	}

	return classify.Result{
		Tags:     tags,
		Duration: time.Duration(parsed.DurationSeconds * float64(time.Second)),
	}, nil
}
