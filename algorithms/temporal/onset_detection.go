package temporal

import (
	"github.com/RyanBlaney/retro-compositor/algorithms/common"
	"github.com/RyanBlaney/retro-compositor/algorithms/spectral"
	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
)

// peakContext is the number of flux frames needed on each side of a candidate
const peakContext = 3

// OnsetDetection finds moments of sudden spectral energy increase
type OnsetDetection struct {
	windowSize  int
	hopSize     int
	sensitivity float64
	opts        []spectral.FrameOption
}

// NewOnsetDetection creates a detector using the frame geometry and sensitivity of cfg.
// opts are forwarded to the frame transform.
func NewOnsetDetection(cfg audio.AnalysisConfig, opts ...spectral.FrameOption) *OnsetDetection {
	return &OnsetDetection{
		windowSize:  cfg.WindowSize,
		hopSize:     cfg.HopSize,
		sensitivity: cfg.BeatSensitivity,
		opts:        opts,
	}
}

// DetectOnsets returns onset times in seconds and the spectral flux curve, one
// value per frame. Transform failures are reported as AnalysisFailedError.
func (od *OnsetDetection) DetectOnsets(samples []float64, sampleRate int) ([]float64, []float64, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "onset_detector",
		"function":  "DetectOnsets",
	})

	ft, err := spectral.NewFrameTransform(od.windowSize, od.hopSize, od.opts...)
	if err != nil {
		return nil, nil, &audio.AnalysisFailedError{Reason: "frame transform setup", Err: err}
	}

	tracker := spectral.NewSpectralFlux(ft.Bins())
	flux := make([]float64, 0, ft.NumFrames(len(samples)))
	err = ft.ForEach(samples, func(_ int, magnitude []float64) error {
		flux = append(flux, tracker.Next(magnitude))
		return nil
	})
	if err != nil {
		return nil, nil, &audio.AnalysisFailedError{Reason: "FFT processing failed", Err: err}
	}

	frames := PickPeaks(flux, od.sensitivity)
	method := "adaptive"
	if len(frames) == 0 && len(flux) > 0 {
		frames = GlobalThresholdPeaks(flux, od.sensitivity)
		method = "global_threshold"
	}

	onsets := make([]float64, len(frames))
	for i, f := range frames {
		onsets[i] = float64(f*od.hopSize) / float64(sampleRate)
	}

	logger.Debug("Spectral flux analysis complete", logging.Fields{
		"frames":   len(flux),
		"max_flux": common.Max(flux),
		"onsets":   len(onsets),
		"method":   method,
	})

	return onsets, flux, nil
}

// PickPeaks runs adaptive local thresholding over a complete flux curve.
// Frame i (with 3 frames of context on each side) is an onset when, over the
// window flux[i-3:i+3], it is the maximum, reaches mean+sensitivity*(max-mean)/2,
// and exceeds 1.5x the local mean. Frames at or below the global flux mean are
// never candidates, which keeps the ripple of steady tones out.
func PickPeaks(flux []float64, sensitivity float64) []int {
	if len(flux) < 2*peakContext+1 {
		return nil
	}

	globalMean := common.Mean(flux)

	var peaks []int
	for i := peakContext; i < len(flux)-peakContext; i++ {
		value := flux[i]
		if value <= globalMean {
			continue
		}

		window := flux[i-peakContext : i+peakContext]
		localMax := common.Max(window)
		localMean := common.Mean(window)
		threshold := localMean + sensitivity*(localMax-localMean)*0.5

		if value >= threshold && value == localMax && value > localMean*1.5 {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// GlobalThresholdPeaks flags every frame whose flux exceeds mean*(2+sensitivity).
// It rescues recordings so uniform that no local peak stands out.
func GlobalThresholdPeaks(flux []float64, sensitivity float64) []int {
	threshold := common.Mean(flux) * (2 + sensitivity)

	var peaks []int
	for i, value := range flux {
		if value > threshold {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
