package spectral

// SpectralCentroid computes the magnitude-weighted mean frequency of a spectrum.
// Bin i maps to i/nbins * (sampleRate/2), so the top bin sits just under Nyquist.
type SpectralCentroid struct {
	sampleRate int
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
	}
}

// Compute calculates spectral centroid in Hz for a single magnitude spectrum
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	weighted := 0.0
	total := 0.0
	for i, mag := range spectrum {
		weighted += float64(i) * mag
		total += mag
	}

	if total == 0 {
		return 0
	}

	return (weighted / total) * (float64(sc.sampleRate) / 2) / float64(len(spectrum))
}

// ComputeFrames processes multiple frames
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
	}
	return centroids
}
