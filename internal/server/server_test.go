package server_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/locknlabs/listen/internal/health"
	"github.com/locknlabs/listen/internal/server"
	"github.com/locknlabs/listen/internal/stream"
	"github.com/locknlabs/listen/pkg/provider/classify"
	classifymock "github.com/locknlabs/listen/pkg/provider/classify/mock"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
	transcribemock "github.com/locknlabs/listen/pkg/provider/transcribe/mock"
)

func sineFrame(amplitude float64) []byte {
	frame := make([]byte, stream.FrameBytes)
	for i := 0; i < stream.FrameSamples; i++ {
		v := amplitude * math.Sin(2*math.Pi*1000*float64(i)/float64(stream.SampleRate))
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(int16(v*32767)))
	}
	return frame
}

func wsURL(httpURL, path string) string {
	return strings.Replace(httpURL, "http://", "ws://", 1) + path
}

// readEvent reads one JSON event and returns its type plus the raw payload.
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var raw json.RawMessage
	if err := wsjson.Read(ctx, conn, &raw); err != nil {
		t.Fatalf("read event: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		t.Fatalf("decode event type: %v", err)
	}
	return head.Type, raw
}

// awaitEvent reads events until one of the wanted type arrives, skipping
// others (vad_status, interleavings).
func awaitEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	for {
		typ, raw := readEvent(ctx, t, conn)
		if typ == want {
			return raw
		}
	}
}

func TestStreamEndpoint(t *testing.T) {
	prov := &transcribemock.Provider{Result: transcribe.Result{Text: "hello from the wire"}}
	srv := server.New(server.Options{Transcriber: prov})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts.URL, "/v1/audio/stream"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	typ, raw := readEvent(ctx, t, conn)
	if typ != "ready" {
		t.Fatalf("first event %q, want ready", typ)
	}
	var ready struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &ready); err != nil || ready.SessionID == "" {
		t.Fatalf("ready event missing session_id: %s", raw)
	}

	// Calibration silence, a loud burst, then hangover silence.
	silence := make([]byte, stream.FrameBytes)
	for i := 0; i < 60; i++ {
		if err := conn.Write(ctx, websocket.MessageBinary, silence); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	loud := sineFrame(0.5)
	for i := 0; i < 10; i++ {
		if err := conn.Write(ctx, websocket.MessageBinary, loud); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	for i := 0; i < 25; i++ {
		if err := conn.Write(ctx, websocket.MessageBinary, silence); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}

	awaitEvent(ctx, t, conn, "speech_start")
	awaitEvent(ctx, t, conn, "speech_end")
	raw = awaitEvent(ctx, t, conn, "transcript")

	var transcript struct {
		Text    string `json:"text"`
		IsFinal bool   `json:"is_final"`
	}
	if err := json.Unmarshal(raw, &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if transcript.Text != "hello from the wire" || !transcript.IsFinal {
		t.Errorf("unexpected transcript: %s", raw)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	prov := &classifymock.Provider{Result: classify.Result{
		Tags: []classify.Tag{{Label: "Dog bark", Confidence: 0.87}},
	}}
	srv := server.New(server.Options{
		Classifier: prov,
		Classify:   stream.ClassifyConfig{WindowFrames: 2},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts.URL, "/v1/audio/classify/stream"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if typ, _ := readEvent(ctx, t, conn); typ != "ready" {
		t.Fatalf("first event %q, want ready", typ)
	}

	frame := sineFrame(0.2)
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	raw := awaitEvent(ctx, t, conn, "classification")
	var ev struct {
		Tags []struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"tags"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode classification: %v", err)
	}
	if len(ev.Tags) != 1 || ev.Tags[0].Label != "Dog bark" {
		t.Errorf("unexpected tags: %s", raw)
	}
}

func TestDisabledEndpointRejected(t *testing.T) {
	srv := server.New(server.Options{Transcriber: &transcribemock.Provider{}}) // no classifier
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/audio/classify/stream")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", resp.StatusCode)
	}
}

func TestOperationalRoutes(t *testing.T) {
	srv := server.New(server.Options{
		Transcriber: &transcribemock.Provider{},
		Health:      health.New(health.StaticChecker("transcriber", nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d, want 200", path, resp.StatusCode)
		}
	}
}
