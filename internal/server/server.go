// Package server exposes the streaming pipeline over WebSocket transport
// plus the accompanying health and metrics HTTP endpoints.
//
// Two WebSocket endpoints are served:
//
//   - /v1/audio/stream          — VAD-gated speech transcription
//   - /v1/audio/classify/stream — fixed-window sound classification
//
// Binary WebSocket messages carry PCM frames; text messages carry JSON
// configuration. Events flow back as JSON text messages.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/locknlabs/listen/internal/health"
	"github.com/locknlabs/listen/internal/observe"
	"github.com/locknlabs/listen/internal/stream"
	"github.com/locknlabs/listen/pkg/provider/classify"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
)

// drainTimeout bounds how long a closing session may wait for in-flight
// inference dispatches.
const drainTimeout = 10 * time.Second

// Options configures a Server. A nil provider disables the corresponding
// endpoint: connections to it are rejected with a policy violation close.
type Options struct {
	// Transcriber serves /v1/audio/stream. Must be safe for concurrent use.
	Transcriber transcribe.Provider

	// Classifier serves /v1/audio/classify/stream. Must be safe for
	// concurrent use.
	Classifier classify.Provider

	// Session is the per-connection pipeline tuning for transcription
	// sessions.
	Session stream.SessionConfig

	// Classify is the per-connection tuning for classification sessions.
	Classify stream.ClassifyConfig

	// Health serves /healthz and /readyz. Nil means a handler with no
	// readiness checks.
	Health *health.Handler

	// Metrics may be nil, in which case the package-level default
	// instruments are used.
	Metrics *observe.Metrics
}

// Server handles WebSocket audio connections and operational HTTP routes.
type Server struct {
	opts    Options
	metrics *observe.Metrics
	log     *slog.Logger
}

// New creates a Server from opts.
func New(opts Options) *Server {
	if opts.Health == nil {
		opts.Health = health.New()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		opts:    opts,
		metrics: metrics,
		log:     slog.Default().With("component", "server"),
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/audio/stream", s.handleStream)
	mux.HandleFunc("GET /v1/audio/classify/stream", s.handleClassify)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.opts.Health.Register(mux)
	return mux
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.opts.Transcriber == nil {
		http.Error(w, "transcription endpoint disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.accept(w, r)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	session := stream.NewStreamingSession(s.opts.Session, newWSSender(conn), s.opts.Transcriber, s.metrics)
	log := s.log.With("session_id", session.ID(), "endpoint", "stream", "remote", r.RemoteAddr)
	log.Info("session opened")

	s.metrics.ActiveSessions.Add(ctx, 1, metric.WithAttributes(observe.Attr("endpoint", "stream")))
	defer s.metrics.ActiveSessions.Add(context.Background(), -1, metric.WithAttributes(observe.Attr("endpoint", "stream")))

	if err := session.Start(ctx); err != nil {
		log.Debug("ready event send failed", "err", err)
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			log.Info("session closing", "reason", err)
			break
		}
		switch typ {
		case websocket.MessageBinary:
			session.HandleFrame(ctx, data)
		case websocket.MessageText:
			session.HandleConfig(ctx, data)
		}
	}

	// The request context is already dead once the read loop exits, so the
	// dispatch drain gets its own deadline.
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := session.Close(drainCtx); err != nil {
		log.Warn("session close did not drain cleanly", "err", err)
	}
	log.Info("session closed")
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.opts.Classifier == nil {
		http.Error(w, "classification endpoint disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.accept(w, r)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	session := stream.NewClassificationSession(s.opts.Classify, newWSSender(conn), s.opts.Classifier, s.metrics)
	log := s.log.With("session_id", session.ID(), "endpoint", "classify", "remote", r.RemoteAddr)
	log.Info("session opened")

	s.metrics.ActiveSessions.Add(ctx, 1, metric.WithAttributes(observe.Attr("endpoint", "classify")))
	defer s.metrics.ActiveSessions.Add(context.Background(), -1, metric.WithAttributes(observe.Attr("endpoint", "classify")))

	if err := session.Start(ctx); err != nil {
		log.Debug("ready event send failed", "err", err)
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			log.Info("session closing", "reason", err)
			break
		}
		// Classification has no config message; text frames are ignored.
		if typ == websocket.MessageBinary {
			session.HandleFrame(ctx, data)
		}
	}

	_ = session.Close(context.Background())
	log.Info("session closed")
}

// accept upgrades the request to a WebSocket connection. Frames are small
// and fixed-size, so the read limit stays modest.
func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error("websocket accept failed", "err", err, "remote", r.RemoteAddr)
		return nil, err
	}
	conn.SetReadLimit(64 * 1024)
	return conn, nil
}
