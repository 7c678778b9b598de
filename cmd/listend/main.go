// Command listend is the LockN Listen streaming server: real-time speech
// transcription and sound-event classification over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/locknlabs/listen/internal/config"
	"github.com/locknlabs/listen/internal/health"
	"github.com/locknlabs/listen/internal/observe"
	"github.com/locknlabs/listen/internal/resilience"
	"github.com/locknlabs/listen/internal/server"
	"github.com/locknlabs/listen/internal/stream"
	"github.com/locknlabs/listen/pkg/provider/classify"
	"github.com/locknlabs/listen/pkg/provider/classify/panns"
	"github.com/locknlabs/listen/pkg/provider/transcribe"
	"github.com/locknlabs/listen/pkg/provider/transcribe/openai"
	"github.com/locknlabs/listen/pkg/provider/transcribe/whisper"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "listend: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "listend: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("listend starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "listen",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sdCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	transcriber, classifier, checkers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if transcriber == nil && classifier == nil {
		slog.Error("no providers configured — both endpoints would be disabled")
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(server.Options{
		Transcriber: transcriber,
		Classifier:  classifier,
		Session:     sessionConfig(cfg.Pipeline),
		Classify: stream.ClassifyConfig{
			WindowFrames: cfg.Pipeline.ClassifyWindowFrames,
			TopK:         cfg.Pipeline.ClassifyTopK,
		},
		Health: health.New(checkers...),
	})

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8890"
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// sessionConfig maps the pipeline section of the config file onto the
// per-connection session tuning.
func sessionConfig(p config.PipelineConfig) stream.SessionConfig {
	return stream.SessionConfig{
		Language:           p.Language,
		MaxSegmentBytes:    p.MaxSegmentSeconds * stream.SampleRate * 2,
		MinSegmentDuration: time.Duration(p.MinSegmentMs) * time.Millisecond,
		VAD: stream.VADConfig{
			MinEnergyThreshold:   p.VAD.MinEnergyThreshold,
			NoiseFloorMultiplier: p.VAD.NoiseFloorMultiplier,
			CalibrationFrames:    p.VAD.CalibrationFrames,
			SmoothingWindow:      p.VAD.SmoothingWindow,
			SpeechStartFrames:    p.VAD.SpeechStartFrames,
			SilenceEndFrames:     p.VAD.SilenceEndFrames,
		},
	}
}

// registerBuiltinProviders wires the provider factories that ship with
// listend into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcribers ──────────────────────────────────────────────────────────

	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Classifiers ───────────────────────────────────────────────────────────

	reg.RegisterClassifier("panns", func(entry config.ProviderEntry) (classify.Provider, error) {
		var opts []panns.Option
		if topK := optInt(entry.Options, "top_k"); topK > 0 {
			opts = append(opts, panns.WithTopK(topK))
		}
		return panns.New(entry.BaseURL, opts...)
	})
}

// buildProviders instantiates the providers named in cfg, wraps them with
// circuit breakers, and assembles matching readiness checkers.
func buildProviders(cfg *config.Config, reg *config.Registry) (transcribe.Provider, classify.Provider, []health.Checker, error) {
	var (
		transcriber transcribe.Provider
		classifier  classify.Provider
		checkers    []health.Checker
	)

	if entry := cfg.Providers.Transcriber; entry.Name != "" {
		p, err := reg.CreateTranscriber(entry)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create transcriber %q: %w", entry.Name, err)
		}
		transcriber = resilience.WrapTranscriber(p, resilience.NewBreaker(resilience.BreakerConfig{
			Name: "transcriber/" + entry.Name,
		}))
		checkers = append(checkers, providerChecker("transcriber", entry))
		slog.Info("provider created", "kind", "transcriber", "name", entry.Name)
	}

	if entry := cfg.Providers.Classifier; entry.Name != "" {
		p, err := reg.CreateClassifier(entry)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create classifier %q: %w", entry.Name, err)
		}
		classifier = resilience.WrapClassifier(p, resilience.NewBreaker(resilience.BreakerConfig{
			Name: "classifier/" + entry.Name,
		}))
		checkers = append(checkers, providerChecker("classifier", entry))
		slog.Info("provider created", "kind", "classifier", "name", entry.Name)
	}

	return transcriber, classifier, checkers, nil
}

// providerChecker builds a readiness checker for one provider entry. HTTP
// collaborators are probed at their /health endpoint; everything else is
// considered ready once constructed.
func providerChecker(kind string, entry config.ProviderEntry) health.Checker {
	switch entry.Name {
	case "whisper", "panns":
		return health.HTTPChecker(kind, entry.BaseURL, nil)
	default:
		return health.StaticChecker(kind, nil)
	}
}

// optString extracts a string value from a provider options map.
func optString(opts map[string]any, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

// optInt extracts an int value from a provider options map. YAML decodes
// integers as int.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
