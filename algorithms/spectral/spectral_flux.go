package spectral

// SpectralFlux measures frame-to-frame increases in magnitude: the sum over bins
// of max(0, current-previous). Only the previous frame is retained.
type SpectralFlux struct {
	previous []float64
}

// NewSpectralFlux creates a flux tracker for frames of the given bin count.
// The first frame is compared against silence.
func NewSpectralFlux(bins int) *SpectralFlux {
	return &SpectralFlux{previous: make([]float64, bins)}
}

// Next returns the flux of frame against the previously seen frame and
// remembers frame for the next call.
func (sf *SpectralFlux) Next(frame []float64) float64 {
	if len(sf.previous) != len(frame) {
		sf.previous = make([]float64, len(frame))
	}

	flux := 0.0
	for i, cur := range frame {
		if diff := cur - sf.previous[i]; diff > 0 {
			flux += diff
		}
	}
	copy(sf.previous, frame)
	return flux
}

// Reset forgets the previous frame
func (sf *SpectralFlux) Reset() {
	clear(sf.previous)
}

// Compute calculates the flux curve of a whole spectrogram, one value per frame
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	if len(spectrogram) == 0 {
		return []float64{}
	}

	tracker := NewSpectralFlux(len(spectrogram[0]))
	flux := make([]float64, len(spectrogram))
	for t, frame := range spectrogram {
		flux[t] = tracker.Next(frame)
	}
	return flux
}
