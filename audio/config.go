package audio

import (
	"fmt"

	"github.com/RyanBlaney/retro-compositor/algorithms/common"
)

// AnalysisConfig holds the tunables of the analysis pipeline
type AnalysisConfig struct {
	// WindowSize is the FFT frame length and must be a power of two
	WindowSize int `json:"window_size"`
	// HopSize is the distance between frame starts, at most WindowSize
	HopSize int     `json:"hop_size"`
	MinBPM  float64 `json:"min_bpm"`
	// MaxBPM also sets the minimum beat spacing, 60/MaxBPM seconds
	MaxBPM float64 `json:"max_bpm"`
	// BeatSensitivity in [0,1]; higher values accept weaker flux peaks
	BeatSensitivity float64 `json:"beat_sensitivity"`
	// EnergyWindowSize is the energy profiler window in seconds
	EnergyWindowSize          float64 `json:"energy_window_size"`
	DetectPhrases             bool    `json:"detect_phrases"`
	CalculateSpectralFeatures bool    `json:"calculate_spectral_features"`
}

// DefaultAnalysisConfig returns the balanced preset
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		WindowSize:                1024,
		HopSize:                   512,
		MinBPM:                    60,
		MaxBPM:                    200,
		BeatSensitivity:           0.7,
		EnergyWindowSize:          0.1,
		DetectPhrases:             true,
		CalculateSpectralFeatures: true,
	}
}

// FastAnalysisConfig trades resolution for speed
func FastAnalysisConfig() AnalysisConfig {
	cfg := DefaultAnalysisConfig()
	cfg.WindowSize = 512
	cfg.HopSize = 256
	cfg.DetectPhrases = false
	cfg.CalculateSpectralFeatures = false
	return cfg
}

// HighQualityAnalysisConfig uses larger windows and finer energy resolution
func HighQualityAnalysisConfig() AnalysisConfig {
	cfg := DefaultAnalysisConfig()
	cfg.WindowSize = 2048
	cfg.HopSize = 512
	cfg.BeatSensitivity = 0.8
	cfg.EnergyWindowSize = 0.05
	return cfg
}

// AnalysisPreset resolves a preset name: "default", "fast" or "high_quality"
func AnalysisPreset(name string) (AnalysisConfig, error) {
	switch name {
	case "", "default":
		return DefaultAnalysisConfig(), nil
	case "fast":
		return FastAnalysisConfig(), nil
	case "high_quality", "high-quality":
		return HighQualityAnalysisConfig(), nil
	default:
		return AnalysisConfig{}, &InvalidParametersError{Reason: fmt.Sprintf("unknown analysis preset %q", name)}
	}
}

// Validate rejects invalid settings. Values are never clamped.
func (c AnalysisConfig) Validate() error {
	if !common.IsPowerOfTwo(c.WindowSize) {
		return &InvalidParametersError{Reason: fmt.Sprintf("Window size must be a power of two, got %d", c.WindowSize)}
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		return &InvalidParametersError{Reason: fmt.Sprintf("Hop size must be between 1 and window size %d, got %d", c.WindowSize, c.HopSize)}
	}
	if c.MinBPM <= 0 {
		return &InvalidParametersError{Reason: fmt.Sprintf("Min BPM must be positive, got %g", c.MinBPM)}
	}
	if c.MinBPM >= c.MaxBPM {
		return &InvalidParametersError{Reason: fmt.Sprintf("Min BPM (%g) must be less than max BPM (%g)", c.MinBPM, c.MaxBPM)}
	}
	if c.BeatSensitivity < 0 || c.BeatSensitivity > 1 {
		return &InvalidParametersError{Reason: fmt.Sprintf("Beat sensitivity must be between 0 and 1, got %g", c.BeatSensitivity)}
	}
	if c.EnergyWindowSize <= 0 {
		return &InvalidParametersError{Reason: fmt.Sprintf("Energy window size must be positive, got %g", c.EnergyWindowSize)}
	}
	return nil
}

// MinBeatInterval is the smallest allowed spacing between beats, 60/MaxBPM seconds
func (c AnalysisConfig) MinBeatInterval() float64 {
	return 60.0 / c.MaxBPM
}
