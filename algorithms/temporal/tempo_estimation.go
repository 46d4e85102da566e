package temporal

import (
	"math"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
)

const (
	fallbackBPM        = 120.0
	fallbackConfidence = 0.1
	// intervals within this many seconds of the modal interval support it
	confidenceTolerance = 0.05
)

// TempoEstimation derives a global tempo from inter-beat intervals
type TempoEstimation struct {
	minBPM float64
	maxBPM float64
}

// NewTempoEstimation creates an estimator accepting intervals whose implied BPM lies in [minBPM, maxBPM]
func NewTempoEstimation(minBPM, maxBPM float64) *TempoEstimation {
	return &TempoEstimation{minBPM: minBPM, maxBPM: maxBPM}
}

// FallbackTempo is reported when there is too little rhythm to measure
func FallbackTempo() audio.TempoMap {
	return audio.TempoMap{
		GlobalBPM:     fallbackBPM,
		Confidence:    fallbackConfidence,
		TempoChanges:  []audio.TempoChange{},
		TimeSignature: audio.DefaultTimeSignature(),
	}
}

// EstimateTempo picks the modal inter-beat interval on a millisecond histogram.
// Ties go to the smallest interval so the result never depends on map order.
func (te *TempoEstimation) EstimateTempo(beats []audio.Beat) audio.TempoMap {
	logger := logging.WithFields(logging.Fields{
		"component": "tempo_estimator",
		"function":  "EstimateTempo",
	})

	if len(beats) < 2 {
		return FallbackTempo()
	}

	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		interval := beats[i].Time - beats[i-1].Time
		if interval <= 0 {
			continue
		}
		bpm := 60.0 / interval
		if bpm >= te.minBPM && bpm <= te.maxBPM {
			intervals = append(intervals, interval)
		}
	}

	if len(intervals) == 0 {
		logger.Debug("No inter-beat interval inside the BPM range, using fallback tempo")
		return FallbackTempo()
	}

	histogram := make(map[int64]int)
	for _, interval := range intervals {
		histogram[int64(math.Round(interval*1000))]++
	}

	var modeMs int64
	modeCount := 0
	for ms, count := range histogram {
		if count > modeCount || (count == modeCount && ms < modeMs) {
			modeMs = ms
			modeCount = count
		}
	}

	mode := float64(modeMs) / 1000
	supporting := 0
	for _, interval := range intervals {
		if math.Abs(interval-mode) < confidenceTolerance {
			supporting++
		}
	}
	confidence := math.Min(1, float64(supporting)/float64(len(intervals)))

	logger.Debug("Tempo estimated", logging.Fields{
		"intervals":   len(intervals),
		"mode_ms":     modeMs,
		"mode_count":  modeCount,
		"bpm":         60 / mode,
		"confidence":  confidence,
		"histogram_n": len(histogram),
	})

	return audio.TempoMap{
		GlobalBPM:     60 / mode,
		Confidence:    confidence,
		TempoChanges:  []audio.TempoChange{},
		TimeSignature: audio.DefaultTimeSignature(),
	}
}
