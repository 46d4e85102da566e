// Package analyzer runs the audio analysis pipeline: energy profile, onset
// detection, beat tracking, tempo estimation, spectral features and phrases.
package analyzer

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/retro-compositor/algorithms/spectral"
	"github.com/RyanBlaney/retro-compositor/algorithms/temporal"
	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
)

// Loader decodes an audio file into a SampleBuffer
type Loader interface {
	Load(ctx context.Context, path string) (*audio.SampleBuffer, error)
}

// Analyzer turns a SampleBuffer into an AudioAnalysis. It holds no state
// between runs and is safe for concurrent use.
type Analyzer struct {
	config    audio.AnalysisConfig
	loader    Loader
	frameOpts []spectral.FrameOption
	logger    logging.Logger
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithLoader sets the decoder used by AnalyzeFile
func WithLoader(loader Loader) Option {
	return func(a *Analyzer) {
		a.loader = loader
	}
}

// WithFrameOptions forwards options to every spectral frame transform
func WithFrameOptions(opts ...spectral.FrameOption) Option {
	return func(a *Analyzer) {
		a.frameOpts = append(a.frameOpts, opts...)
	}
}

// WithLogger replaces the global logger
func WithLogger(logger logging.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an analyzer. The config is validated on every run, not here.
func New(cfg audio.AnalysisConfig, opts ...Option) *Analyzer {
	a := &Analyzer{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the analysis settings
func (a *Analyzer) Config() audio.AnalysisConfig {
	return a.config
}

func (a *Analyzer) log() logging.Logger {
	if a.logger != nil {
		return a.logger
	}
	return logging.GetGlobalLogger()
}

// AnalyzeFile loads path with the configured Loader and analyzes it
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*audio.AudioAnalysis, error) {
	if a.loader == nil {
		return nil, &audio.LoadFailedError{Path: path, Err: fmt.Errorf("no audio loader configured")}
	}

	buf, err := a.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, buf)
}

// Analyze runs every stage in order. Configuration errors are returned before
// any processing; a cancelled ctx stops the run between stages and yields no
// partial result.
func (a *Analyzer) Analyze(ctx context.Context, buf *audio.SampleBuffer) (*audio.AudioAnalysis, error) {
	logger := a.log().WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_analyzer",
		"function":  "Analyze",
	})

	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, &audio.InvalidParametersError{Reason: "no sample buffer"}
	}
	if buf.SampleRate <= 0 {
		return nil, &audio.InvalidParametersError{Reason: fmt.Sprintf("Sample rate must be positive, got %d", buf.SampleRate)}
	}

	logger.Info("Starting audio analysis", logging.Fields{
		"duration":    buf.Duration,
		"sample_rate": buf.SampleRate,
		"channels":    buf.Channels,
	})

	mono := buf.MonoMix()
	sr := buf.SampleRate

	logger.Debug("Calculating energy levels")
	energy := temporal.NewEnergy(a.config.EnergyWindowSize).Profile(mono, sr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("Performing onset detection")
	onsets, flux, err := temporal.NewOnsetDetection(a.config, a.frameOpts...).DetectOnsets(mono, sr)
	if err != nil {
		logger.Error(err, "Onset detection failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("Tracking beats", logging.Fields{"onsets": len(onsets)})
	beats := temporal.NewBeatTracker(a.config.MaxBPM).Track(onsets, energy)

	tempo := temporal.NewTempoEstimation(a.config.MinBPM, a.config.MaxBPM).EstimateTempo(beats)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	features := &audio.SpectralFeatures{
		SpectralCentroid: []float64{},
		SpectralRolloff:  []float64{},
		OnsetDetection:   flux,
	}
	if a.config.CalculateSpectralFeatures {
		logger.Debug("Calculating spectral features")
		features.SpectralCentroid, features.SpectralRolloff, err = a.spectralShape(mono, sr)
		if err != nil {
			logger.Error(err, "Spectral feature extraction failed")
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	phrases := []audio.Phrase{}
	if a.config.DetectPhrases {
		phrases = temporal.SegmentPhrases(beats, buf.Duration)
	}

	logger.Info("Analysis complete", logging.Fields{
		"beats":      len(beats),
		"bpm":        tempo.GlobalBPM,
		"confidence": tempo.Confidence,
		"phrases":    len(phrases),
	})

	return &audio.AudioAnalysis{
		Beats:            beats,
		Tempo:            tempo,
		EnergyLevels:     energy,
		SpectralFeatures: features,
		Phrases:          phrases,
		Config:           a.config,
		BPM:              tempo.GlobalBPM,
		BPMConfidence:    tempo.Confidence,
		Duration:         buf.Duration,
	}, nil
}

// spectralShape computes per-frame centroid and 85% rolloff in one pass
func (a *Analyzer) spectralShape(mono []float64, sampleRate int) ([]float64, []float64, error) {
	ft, err := spectral.NewFrameTransform(a.config.WindowSize, a.config.HopSize, a.frameOpts...)
	if err != nil {
		return nil, nil, &audio.AnalysisFailedError{Reason: "frame transform setup", Err: err}
	}

	centroid := spectral.NewSpectralCentroid(sampleRate)
	rolloff := spectral.NewSpectralRolloff(sampleRate)

	n := ft.NumFrames(len(mono))
	centroids := make([]float64, 0, n)
	rolloffs := make([]float64, 0, n)
	err = ft.ForEach(mono, func(_ int, magnitude []float64) error {
		centroids = append(centroids, centroid.Compute(magnitude))
		rolloffs = append(rolloffs, rolloff.Compute(magnitude, spectral.DefaultRolloffThreshold))
		return nil
	})
	if err != nil {
		return nil, nil, &audio.AnalysisFailedError{Reason: "FFT processing failed", Err: err}
	}
	return centroids, rolloffs, nil
}
