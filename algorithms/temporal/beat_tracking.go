package temporal

import (
	"math"

	"github.com/RyanBlaney/retro-compositor/algorithms/common"
	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
)

const (
	// minEnergySamples is how many energy windows the fallback path needs
	minEnergySamples = 10
	// energyPeakRadius is the half-width of the local-maximum window of the fallback
	energyPeakRadius = 2
	beatsPerBar      = 4
)

// BeatTracker turns onsets, or the energy profile when there are none, into beats
type BeatTracker struct {
	minInterval float64
}

// NewBeatTracker creates a tracker whose beats are at least 60/maxBPM seconds apart
func NewBeatTracker(maxBPM float64) *BeatTracker {
	return &BeatTracker{minInterval: 60.0 / maxBPM}
}

// Track produces an ordered beat sequence with strictly increasing times
func (bt *BeatTracker) Track(onsets []float64, energy []audio.EnergyLevel) []audio.Beat {
	logger := logging.WithFields(logging.Fields{
		"component": "beat_tracker",
		"function":  "Track",
	})

	var beats []audio.Beat
	if len(onsets) > 0 {
		beats = bt.fromOnsets(onsets, energy)
	}

	if len(beats) == 0 && len(energy) > 0 {
		logger.Debug("No beats from onsets, trying energy-based detection")
		beats = bt.fromEnergy(energy)
	}

	logger.Debug("Beat tracking complete", logging.Fields{
		"onsets": len(onsets),
		"beats":  len(beats),
	})

	if beats == nil {
		beats = []audio.Beat{}
	}
	return beats
}

// FilterOnsets keeps onsets greedily from the left, dropping any closer than
// minInterval to the last kept one
func FilterOnsets(onsets []float64, minInterval float64) []float64 {
	var kept []float64
	last := math.Inf(-1)
	for _, t := range onsets {
		if t-last >= minInterval {
			kept = append(kept, t)
			last = t
		}
	}
	return kept
}

func (bt *BeatTracker) fromOnsets(onsets []float64, energy []audio.EnergyLevel) []audio.Beat {
	filtered := FilterOnsets(onsets, bt.minInterval)
	times := Times(energy)

	beats := make([]audio.Beat, 0, len(filtered))
	for i, t := range filtered {
		localEnergy := 0.0
		if idx := common.NearestIndex(times, t); idx >= 0 {
			localEnergy = energy[idx].RMS
		}
		strength := math.Min(1, localEnergy*2)

		beats = append(beats, audio.Beat{
			Time:        t,
			Strength:    strength,
			Type:        positionalBeatType(i),
			OnsetValue:  strength,
			LocalEnergy: localEnergy,
		})
	}
	return beats
}

func (bt *BeatTracker) fromEnergy(energy []audio.EnergyLevel) []audio.Beat {
	if len(energy) < minEnergySamples {
		return nil
	}

	rms := RMSValues(energy)
	mean := common.Mean(rms)
	peak := common.Max(rms)
	threshold := mean + (peak-mean)*0.3

	var beats []audio.Beat
	last := math.Inf(-1)
	for i, level := range energy {
		if level.RMS <= threshold {
			continue
		}
		if !isLocalMax(rms, i, energyPeakRadius) {
			continue
		}
		if level.Time-last < bt.minInterval {
			continue
		}

		// threshold > mean here, so peak > mean
		strength := math.Min(1, (level.RMS-mean)/(peak-mean))
		beats = append(beats, audio.Beat{
			Time:        level.Time,
			Strength:    strength,
			Type:        positionalBeatType(len(beats)),
			OnsetValue:  level.RMS,
			LocalEnergy: level.RMS,
		})
		last = level.Time
	}
	return beats
}

func isLocalMax(values []float64, i, radius int) bool {
	lo := max(0, i-radius)
	hi := min(len(values)-1, i+radius)
	for j := lo; j <= hi; j++ {
		if values[j] > values[i] {
			return false
		}
	}
	return true
}

// positionalBeatType marks every fourth beat as a downbeat. It is not meter-aware.
func positionalBeatType(index int) audio.BeatType {
	if index%beatsPerBar == 0 {
		return audio.Downbeat
	}
	return audio.RegularBeat
}
