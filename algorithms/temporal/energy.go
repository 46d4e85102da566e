package temporal

import (
	"math"

	"github.com/RyanBlaney/retro-compositor/algorithms/common"
	"github.com/RyanBlaney/retro-compositor/audio"
)

// Energy computes a sliding-window loudness profile with 50% overlap
type Energy struct {
	windowSeconds float64
}

// NewEnergy creates a profiler with windows of windowSeconds
func NewEnergy(windowSeconds float64) *Energy {
	return &Energy{windowSeconds: windowSeconds}
}

// Geometry returns the window and hop lengths in samples for a sample rate.
// Both are at least one sample.
func (e *Energy) Geometry(sampleRate int) (window, hop int) {
	window = max(1, int(math.Round(e.windowSeconds*float64(sampleRate))))
	hop = max(1, window/2)
	return window, hop
}

// Profile computes one EnergyLevel per window. Windows start at i*hop while the
// whole window fits; a buffer shorter than one window is summarized as a single
// window. SpectralCentroid is the rms*1000 placeholder, not a spectral measure.
func (e *Energy) Profile(samples []float64, sampleRate int) []audio.EnergyLevel {
	if len(samples) == 0 || sampleRate <= 0 {
		return []audio.EnergyLevel{}
	}

	window, hop := e.Geometry(sampleRate)
	if len(samples) < window {
		return []audio.EnergyLevel{e.level(samples, 0)}
	}

	numWindows := (len(samples)-window)/hop + 1
	levels := make([]audio.EnergyLevel, 0, numWindows)
	for i := range numWindows {
		start := i * hop
		t := float64(start) / float64(sampleRate)
		levels = append(levels, e.level(samples[start:start+window], t))
	}
	return levels
}

func (e *Energy) level(chunk []float64, t float64) audio.EnergyLevel {
	rms := common.RMS(chunk)
	return audio.EnergyLevel{
		Time:             t,
		RMS:              rms,
		Peak:             common.Peak(chunk),
		ZeroCrossingRate: common.ZeroCrossingRate(chunk),
		SpectralCentroid: rms * 1000,
	}
}

// Times extracts the window start times of a profile
func Times(levels []audio.EnergyLevel) []float64 {
	times := make([]float64, len(levels))
	for i, l := range levels {
		times[i] = l.Time
	}
	return times
}

// RMSValues extracts the RMS column of a profile
func RMSValues(levels []audio.EnergyLevel) []float64 {
	values := make([]float64, len(levels))
	for i, l := range levels {
		values[i] = l.RMS
	}
	return values
}
