package spectral

// DefaultRolloffThreshold is the cumulative magnitude fraction used by the analyzer
const DefaultRolloffThreshold = 0.85

// SpectralRolloff finds the frequency below which a fixed fraction of the
// spectrum's total magnitude lies
type SpectralRolloff struct {
	sampleRate int
}

// NewSpectralRolloff creates a new spectral rolloff calculator
func NewSpectralRolloff(sampleRate int) *SpectralRolloff {
	return &SpectralRolloff{
		sampleRate: sampleRate,
	}
}

// Compute returns the rolloff frequency in Hz for a single magnitude spectrum.
// threshold is typically 0.85. A silent spectrum rolls off at 0 Hz.
func (sr *SpectralRolloff) Compute(spectrum []float64, threshold float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	total := 0.0
	for _, mag := range spectrum {
		total += mag
	}

	target := threshold * total
	cumulative := 0.0
	bin := 0
	for i, mag := range spectrum {
		cumulative += mag
		if cumulative >= target {
			bin = i
			break
		}
	}

	return float64(bin) / float64(len(spectrum)) * (float64(sr.sampleRate) / 2)
}

// ComputeFrames processes multiple frames
func (sr *SpectralRolloff) ComputeFrames(spectrogram [][]float64, threshold float64) []float64 {
	rolloffs := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		rolloffs[t] = sr.Compute(spectrum, threshold)
	}
	return rolloffs
}
