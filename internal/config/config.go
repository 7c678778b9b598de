// Package config provides the configuration schema, loader, and provider
// registry for the Listen streaming server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the server.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8890").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig selects the inference collaborators.
type ProvidersConfig struct {
	// Transcriber names the speech-to-text backend for the streaming
	// endpoint.
	Transcriber ProviderEntry `yaml:"transcriber"`

	// Classifier names the sound-event backend for the classification
	// endpoint.
	Classifier ProviderEntry `yaml:"classifier"`
}

// ProviderEntry configures one named provider instance.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "whisper",
	// "whisper-native", "openai", "panns").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted providers. Local servers ignore it.
	APIKey string `yaml:"api_key"`

	// BaseURL is the endpoint of a local or self-hosted inference server.
	BaseURL string `yaml:"base_url"`

	// Model selects a provider-specific model identifier or model file path.
	Model string `yaml:"model"`

	// Options holds provider-specific settings not covered by the common
	// fields.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig tunes the per-connection streaming pipeline.
type PipelineConfig struct {
	// Language is the default BCP-47 language hint, overridable per session
	// by a client config message.
	Language string `yaml:"language"`

	// MaxSegmentSeconds bounds a single speech segment. Zero means 30.
	MaxSegmentSeconds int `yaml:"max_segment_seconds"`

	// MinSegmentMs is the floor under which finalized segments are
	// discarded. Zero means 200.
	MinSegmentMs int `yaml:"min_segment_ms"`

	// ClassifyWindowFrames is the number of frames per classification
	// window. Zero means 1.
	ClassifyWindowFrames int `yaml:"classify_window_frames"`

	// ClassifyTopK limits the tags returned per window. Zero means the
	// provider default.
	ClassifyTopK int `yaml:"classify_top_k"`

	// VAD tunes the energy detector. Zero fields take detector defaults.
	VAD VADSettings `yaml:"vad"`
}

// VADSettings mirrors the energy detector tuning knobs.
type VADSettings struct {
	MinEnergyThreshold   float64 `yaml:"min_energy_threshold"`
	NoiseFloorMultiplier float64 `yaml:"noise_floor_multiplier"`
	CalibrationFrames    int     `yaml:"calibration_frames"`
	SmoothingWindow      int     `yaml:"smoothing_window"`
	SpeechStartFrames    int     `yaml:"speech_start_frames"`
	SilenceEndFrames     int     `yaml:"silence_end_frames"`
}
