package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to reject unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"transcriber": {"whisper", "whisper-native", "openai"},
	"classifier":  {"panns"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := validateProviderName("transcriber", cfg.Providers.Transcriber.Name); err != nil {
		errs = append(errs, err)
	}
	if err := validateProviderName("classifier", cfg.Providers.Classifier.Name); err != nil {
		errs = append(errs, err)
	}

	p := cfg.Pipeline
	if p.MaxSegmentSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_segment_seconds %d must not be negative", p.MaxSegmentSeconds))
	}
	if p.MinSegmentMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_segment_ms %d must not be negative", p.MinSegmentMs))
	}
	if p.ClassifyWindowFrames < 0 {
		errs = append(errs, fmt.Errorf("pipeline.classify_window_frames %d must not be negative", p.ClassifyWindowFrames))
	}
	if p.VAD.MinEnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("pipeline.vad.min_energy_threshold %g must not be negative", p.VAD.MinEnergyThreshold))
	}
	if p.VAD.NoiseFloorMultiplier < 0 {
		errs = append(errs, fmt.Errorf("pipeline.vad.noise_floor_multiplier %g must not be negative", p.VAD.NoiseFloorMultiplier))
	}
	if p.VAD.SpeechStartFrames < 0 || p.VAD.SilenceEndFrames < 0 {
		errs = append(errs, errors.New("pipeline.vad frame counters must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName returns an error when name is set but not among the
// known providers for the given kind. An empty name means the provider is
// not configured and is allowed — the corresponding endpoint is disabled.
func validateProviderName(kind, name string) error {
	if name == "" {
		return nil
	}
	valid := ValidProviderNames[kind]
	if !slices.Contains(valid, name) {
		return fmt.Errorf("providers.%s.name %q is unknown; valid values: %v", kind, name, valid)
	}
	return nil
}
