package stream

import (
	"math"

	"github.com/locknlabs/listen/pkg/audio"
)

// VADConfig holds the tuning parameters for the energy detector. The zero
// value is not usable; start from DefaultVADConfig.
type VADConfig struct {
	// MinEnergyThreshold is the floor below which the speech threshold never
	// drops, regardless of how quiet the calibrated noise floor is.
	MinEnergyThreshold float64

	// NoiseFloorMultiplier scales the calibrated noise floor into the speech
	// threshold.
	NoiseFloorMultiplier float64

	// CalibrationFrames is the number of initial frames used to estimate the
	// ambient noise floor (50 frames ≈ 3 s). After calibration the floor is
	// frozen.
	CalibrationFrames int

	// SmoothingWindow is the capacity of the circular energy history used to
	// smooth per-frame RMS before thresholding.
	SmoothingWindow int

	// SpeechStartFrames is the number of consecutive speech frames required
	// to transition Silence → Speech (3 frames ≈ 180 ms).
	SpeechStartFrames int

	// SilenceEndFrames is the number of consecutive silence frames required
	// to transition Speech → Silence (15 frames ≈ 900 ms of hangover).
	SilenceEndFrames int
}

// DefaultVADConfig returns the standard detector tuning for 60 ms frames.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		MinEnergyThreshold:   0.01,
		NoiseFloorMultiplier: 2.5,
		CalibrationFrames:    50,
		SmoothingWindow:      5,
		SpeechStartFrames:    3,
		SilenceEndFrames:     15,
	}
}

// VADDecision is the per-frame output of the detector.
type VADDecision struct {
	// IsSpeech reports the detector state after processing the frame. It
	// stays true through the silence hangover until SilenceEndFrames
	// consecutive silent frames have elapsed.
	IsSpeech bool

	// Energy is the raw RMS energy of the frame, normalised to [0, 1].
	Energy float64

	// SmoothedEnergy is the mean over the circular history buffer. Before
	// the buffer fills, zero-initialised slots are included in the mean —
	// a deliberate simplification that biases early-session sensitivity
	// downward.
	SmoothedEnergy float64

	// Threshold is the speech threshold the frame was compared against.
	Threshold float64

	// JustStarted is true only on the frame that caused the Silence → Speech
	// transition.
	JustStarted bool

	// JustStopped is true only on the frame that caused the Speech → Silence
	// transition.
	JustStopped bool
}

// VAD is an adaptive energy-based voice activity detector with hysteresis.
// It is per-connection state and must not be shared across goroutines.
//
// Detection is a pure function of the frame sequence: the same frames always
// produce the same decisions, which keeps segment boundaries deterministic
// and testable without any ML backend. The tradeoff is that sustained loud
// non-speech noise reads as speech; real semantic discrimination belongs to
// the inference collaborator downstream.
type VAD struct {
	cfg VADConfig

	inSpeech     bool
	speechCount  int
	silenceCount int

	history    []float64
	historyIdx int

	noiseFloor  float64
	calibFrames int
}

// NewVAD creates a detector in its initial Silence, uncalibrated state.
// Non-positive config fields are replaced with defaults.
func NewVAD(cfg VADConfig) *VAD {
	def := DefaultVADConfig()
	if cfg.MinEnergyThreshold <= 0 {
		cfg.MinEnergyThreshold = def.MinEnergyThreshold
	}
	if cfg.NoiseFloorMultiplier <= 0 {
		cfg.NoiseFloorMultiplier = def.NoiseFloorMultiplier
	}
	if cfg.CalibrationFrames <= 0 {
		cfg.CalibrationFrames = def.CalibrationFrames
	}
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = def.SmoothingWindow
	}
	if cfg.SpeechStartFrames <= 0 {
		cfg.SpeechStartFrames = def.SpeechStartFrames
	}
	if cfg.SilenceEndFrames <= 0 {
		cfg.SilenceEndFrames = def.SilenceEndFrames
	}
	return &VAD{
		cfg:     cfg,
		history: make([]float64, cfg.SmoothingWindow),
	}
}

// ProcessFrame analyses one validated PCM frame and returns the detection
// decision. It must be called synchronously in the session loop; it never
// blocks.
func (v *VAD) ProcessFrame(frame []byte) VADDecision {
	energy := audio.RMS(frame)

	// Noise-floor calibration: incremental mean over the first
	// CalibrationFrames frames, frozen afterwards.
	if v.calibFrames < v.cfg.CalibrationFrames {
		n := float64(v.calibFrames)
		v.noiseFloor = (v.noiseFloor*n + energy) / (n + 1)
		v.calibFrames++
	}

	// Smoothing over the circular history. Stale zero slots before the
	// buffer fills are part of the mean on purpose.
	v.history[v.historyIdx] = energy
	v.historyIdx = (v.historyIdx + 1) % len(v.history)
	var sum float64
	for _, e := range v.history {
		sum += e
	}
	smoothed := sum / float64(len(v.history))

	threshold := math.Max(v.cfg.MinEnergyThreshold, v.noiseFloor*v.cfg.NoiseFloorMultiplier)
	speechFrame := smoothed > threshold

	d := VADDecision{
		Energy:         energy,
		SmoothedEnergy: smoothed,
		Threshold:      threshold,
	}

	if v.inSpeech {
		if speechFrame {
			v.silenceCount = 0
		} else {
			v.silenceCount++
			v.speechCount = 0
			if v.silenceCount >= v.cfg.SilenceEndFrames {
				v.inSpeech = false
				v.silenceCount = 0
				d.JustStopped = true
			}
		}
	} else {
		if speechFrame {
			v.speechCount++
			v.silenceCount = 0
			if v.speechCount >= v.cfg.SpeechStartFrames {
				v.inSpeech = true
				v.speechCount = 0
				d.JustStarted = true
			}
		} else {
			v.speechCount = 0
		}
	}

	d.IsSpeech = v.inSpeech
	return d
}

// Reset returns the detector to its initial Silence, uncalibrated state:
// counters, energy history, and noise floor are all cleared. A reset
// detector is observationally identical to a freshly constructed one.
func (v *VAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
	for i := range v.history {
		v.history[i] = 0
	}
	v.historyIdx = 0
	v.noiseFloor = 0
	v.calibFrames = 0
}
