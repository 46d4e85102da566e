// Package config holds the top-level settings of a composition run and reads
// them from JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/styles"
	"github.com/RyanBlaney/retro-compositor/transcode"
	"github.com/RyanBlaney/retro-compositor/video"
)

// CompositionConfig tunes the cut decision engine
type CompositionConfig struct {
	// BeatSyncStrength in [0,1] scales every cut score
	BeatSyncStrength float64 `json:"beat_sync_strength"`
	PhraseAwareCuts  bool    `json:"phrase_aware_cuts"`
	MinCutInterval   float64 `json:"min_cut_interval"`
	MaxCutInterval   float64 `json:"max_cut_interval"`
	EnergyBasedCuts  bool    `json:"energy_based_cuts"`
	// CrossfadeDuration is reserved; cuts are hard
	CrossfadeDuration float64 `json:"crossfade_duration"`
}

// DefaultCompositionConfig returns the defaults
func DefaultCompositionConfig() CompositionConfig {
	return CompositionConfig{
		BeatSyncStrength:  0.8,
		PhraseAwareCuts:   true,
		MinCutInterval:    1.0,
		MaxCutInterval:    8.0,
		EnergyBasedCuts:   true,
		CrossfadeDuration: 0.1,
	}
}

// Validate checks the strength range and the cut interval bounds
func (c CompositionConfig) Validate() error {
	if c.BeatSyncStrength < 0 || c.BeatSyncStrength > 1 {
		return &InvalidValueError{Key: "composition.beat_sync_strength", Value: formatFloat(c.BeatSyncStrength)}
	}
	if c.MinCutInterval <= 0 || c.MaxCutInterval <= 0 {
		return &InvalidValueError{
			Key:   "composition.cut_interval_range",
			Value: formatFloat(c.MinCutInterval) + "-" + formatFloat(c.MaxCutInterval),
			Err:   errors.New("cut intervals must be positive"),
		}
	}
	if c.MaxCutInterval <= c.MinCutInterval {
		return &InvalidValueError{
			Key:   "composition.cut_interval_range",
			Value: formatFloat(c.MinCutInterval) + "-" + formatFloat(c.MaxCutInterval),
			Err:   errors.New("min cut interval must be less than max cut interval"),
		}
	}
	if c.CrossfadeDuration < 0 {
		return &InvalidValueError{Key: "composition.crossfade_duration", Value: formatFloat(c.CrossfadeDuration)}
	}
	return nil
}

// StyleSettings selects a style and its parameters
type StyleSettings struct {
	Name string `json:"name"`
	styles.StyleConfig
}

// Config is everything a composition run needs
type Config struct {
	Audio       audio.AnalysisConfig    `json:"audio"`
	Decoder     transcode.DecoderConfig `json:"decoder"`
	Composition CompositionConfig       `json:"composition"`
	Video       video.VideoParams       `json:"video"`
	Style       StyleSettings           `json:"style"`
	LogLevel    string                  `json:"log_level,omitempty"`
}

// Default returns the default configuration with the vhs style
func Default() *Config {
	return &Config{
		Audio:       audio.DefaultAnalysisConfig(),
		Decoder:     *transcode.DefaultDecoderConfig(),
		Composition: DefaultCompositionConfig(),
		Video:       video.DefaultVideoParams(),
		Style: StyleSettings{
			Name:        "vhs",
			StyleConfig: *styles.DefaultStyleConfig(),
		},
		LogLevel: "info",
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return &InvalidValueError{Key: "audio", Value: "analysis", Err: err}
	}
	if err := c.Decoder.Validate(); err != nil {
		return &InvalidValueError{Key: "decoder", Value: c.Decoder.NormalizationMethod, Err: err}
	}
	if err := c.Composition.Validate(); err != nil {
		return err
	}
	if err := c.Video.Validate(); err != nil {
		return &InvalidValueError{Key: "video", Value: fmt.Sprintf("%dx%d@%v", c.Video.Width, c.Video.Height, c.Video.FPS), Err: err}
	}
	if !styles.Has(c.Style.Name) {
		return &InvalidValueError{Key: "style.name", Value: c.Style.Name, Err: &styles.NotFoundError{Name: c.Style.Name}}
	}
	if c.Style.Intensity < 0 || c.Style.Intensity > 1 {
		return &InvalidValueError{Key: "style.intensity", Value: formatFloat(c.Style.Intensity)}
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return &InvalidValueError{Key: "log_level", Value: c.LogLevel, Err: err}
		}
	}
	return nil
}

// StyleConfig returns a copy of the style parameters layered over the
// style's own defaults
func (c *Config) StyleConfig(style styles.Style) *styles.StyleConfig {
	return style.DefaultConfig().Merge(&c.Style.StyleConfig)
}

// LoadFile reads a JSON configuration. Keys absent from the file keep their
// defaults. The result is validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &ParseFailedError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveFile writes the configuration as indented JSON
func (c *Config) SaveFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &InvalidValueError{Key: "config", Value: "marshal", Err: err}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
