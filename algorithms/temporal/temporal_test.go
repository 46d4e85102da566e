package temporal

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clickTrack is a quiet 220 Hz tone with sharp decaying clicks every period seconds
func clickTrack(sampleRate int, seconds, period float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = 0.2 * math.Sin(2*math.Pi*220*t)

		since := math.Mod(t, period)
		if since < 0.03 {
			env := math.Exp(-since * 150)
			out[i] += 0.6 * env * (math.Sin(2*math.Pi*80*since) + math.Sin(2*math.Pi*2000*since))
		}
	}
	return out
}

func TestEnergyProfileProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := make([]float64, 44100)
	for i := range samples {
		samples[i] = rng.Float64()*2 - 1
	}

	levels := NewEnergy(0.1).Profile(samples, 44100)
	require.NotEmpty(t, levels)

	// window 4410, hop 2205: (44100-4410)/2205 + 1
	assert.Len(t, levels, 19)
	for i, l := range levels {
		assert.GreaterOrEqual(t, l.RMS, 0.0)
		assert.GreaterOrEqual(t, l.Peak, 0.0)
		assert.LessOrEqual(t, l.RMS, l.Peak)
		assert.InDelta(t, l.RMS*1000, l.SpectralCentroid, 1e-9)
		assert.InDelta(t, float64(i*2205)/44100, l.Time, 1e-12)
		if i > 0 {
			assert.GreaterOrEqual(t, l.Time, levels[i-1].Time)
		}
	}
}

func TestEnergyEdgeCases(t *testing.T) {
	e := NewEnergy(0.1)
	assert.Empty(t, e.Profile(nil, 44100))

	short := e.Profile([]float64{0.5, -0.5, 0.5}, 44100)
	require.Len(t, short, 1)
	assert.InDelta(t, 0.5, short[0].RMS, 1e-12)
	assert.InDelta(t, 1.0, short[0].ZeroCrossingRate, 1e-12)

	window, hop := NewEnergy(0.0001).Geometry(1000)
	assert.Equal(t, 1, window)
	assert.Equal(t, 1, hop)
}

func TestPickPeaks(t *testing.T) {
	flux := []float64{0, 0, 0, 0, 0, 10, 1, 0, 0, 0, 0, 0, 8, 0, 0, 0, 0}
	assert.Equal(t, []int{5, 12}, PickPeaks(flux, 0.7))

	// a local bump in a quiet section stays below the global mean and is not a candidate
	quiet := []float64{0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 100, 100, 100, 100, 100, 100, 100, 100}
	assert.Equal(t, []int{12}, PickPeaks(quiet, 0.7))

	// a plateau has no strict local peak beyond the mean
	assert.Empty(t, PickPeaks([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1}, 0.7))
	assert.Empty(t, PickPeaks([]float64{1, 2}, 0.7))
}

func TestGlobalThresholdPeaks(t *testing.T) {
	flux := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 20}
	// mean 2.9, threshold 2.9*2.7
	assert.Equal(t, []int{9}, GlobalThresholdPeaks(flux, 0.7))
}

func TestDetectOnsetsOnClicks(t *testing.T) {
	cfg := audio.DefaultAnalysisConfig()
	samples := clickTrack(44100, 4, 0.5)

	onsets, flux, err := NewOnsetDetection(cfg).DetectOnsets(samples, 44100)
	require.NoError(t, err)
	assert.Len(t, flux, (len(samples)+cfg.HopSize-1)/cfg.HopSize)

	beats := FilterOnsets(onsets, cfg.MinBeatInterval())
	require.GreaterOrEqual(t, len(beats), 6)
	for _, b := range beats {
		// every kept onset sits within a window length of a click
		nearest := math.Round(b/0.5) * 0.5
		assert.InDelta(t, nearest, b, 0.05, "onset at %.3f", b)
	}
}

func TestDetectOnsetsRejectsBadGeometry(t *testing.T) {
	cfg := audio.DefaultAnalysisConfig()
	cfg.WindowSize = 1000

	_, _, err := NewOnsetDetection(cfg).DetectOnsets(make([]float64, 4096), 44100)
	var failed *audio.AnalysisFailedError
	require.ErrorAs(t, err, &failed)
}

func TestBeatSpacingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := range 50 {
		onsets := make([]float64, 40)
		for i := range onsets {
			onsets[i] = rng.Float64() * 10
		}
		sort.Float64s(onsets)

		energy := make([]audio.EnergyLevel, 200)
		for i := range energy {
			energy[i] = audio.EnergyLevel{Time: float64(i) * 0.05, RMS: rng.Float64()}
		}

		maxBPM := 60 + rng.Float64()*200
		beats := NewBeatTracker(maxBPM).Track(onsets, energy)
		minSpacing := 60 / maxBPM
		for i := 1; i < len(beats); i++ {
			assert.GreaterOrEqual(t, beats[i].Time-beats[i-1].Time, minSpacing, "trial %d", trial)
		}
		for _, b := range beats {
			assert.GreaterOrEqual(t, b.Strength, 0.0)
			assert.LessOrEqual(t, b.Strength, 1.0)
		}
	}
}

func TestBeatsFromOnsets(t *testing.T) {
	energy := []audio.EnergyLevel{
		{Time: 0.0, RMS: 0.1},
		{Time: 0.5, RMS: 0.3},
		{Time: 1.0, RMS: 0.8},
	}
	onsets := []float64{0.0, 0.1, 0.5, 0.9, 1.3, 1.7, 2.1}

	beats := NewBeatTracker(200).Track(onsets, energy)
	times := make([]float64, len(beats))
	for i, b := range beats {
		times[i] = b.Time
	}
	assert.Equal(t, []float64{0.0, 0.5, 0.9, 1.3, 1.7, 2.1}, times)

	assert.Equal(t, audio.Downbeat, beats[0].Type)
	assert.Equal(t, audio.RegularBeat, beats[1].Type)
	assert.Equal(t, audio.Downbeat, beats[4].Type)

	assert.InDelta(t, 0.2, beats[0].Strength, 1e-12)
	assert.InDelta(t, 0.6, beats[1].Strength, 1e-12)
	assert.InDelta(t, 1.0, beats[2].Strength, 1e-12, "strength is capped at 1")
	assert.InDelta(t, 0.8, beats[2].LocalEnergy, 1e-12)
	assert.Equal(t, beats[1].Strength, beats[1].OnsetValue)
}

func TestBeatsFromEnergyFallback(t *testing.T) {
	energy := make([]audio.EnergyLevel, 20)
	for i := range energy {
		rms := 0.1
		if i%5 == 2 {
			rms = 0.9
		}
		energy[i] = audio.EnergyLevel{Time: float64(i) * 0.1, RMS: rms}
	}

	beats := NewBeatTracker(200).Track(nil, energy)
	require.Len(t, beats, 4)
	for i, b := range beats {
		assert.InDelta(t, 0.2+0.5*float64(i), b.Time, 1e-9)
		assert.InDelta(t, 1.0, b.Strength, 1e-9)
	}
	assert.Equal(t, audio.Downbeat, beats[0].Type)
}

func TestBeatsFromEnergyNeedsTenSamples(t *testing.T) {
	energy := make([]audio.EnergyLevel, 9)
	for i := range energy {
		energy[i] = audio.EnergyLevel{Time: float64(i) * 0.1, RMS: float64(i % 3)}
	}
	beats := NewBeatTracker(200).Track(nil, energy)
	assert.NotNil(t, beats)
	assert.Empty(t, beats)
}

func TestTempoFallback(t *testing.T) {
	te := NewTempoEstimation(60, 200)
	for _, beats := range [][]audio.Beat{nil, {{Time: 1}}} {
		tempo := te.EstimateTempo(beats)
		assert.Equal(t, 120.0, tempo.GlobalBPM)
		assert.Equal(t, 0.1, tempo.Confidence)
		assert.Equal(t, audio.DefaultTimeSignature(), tempo.TimeSignature)
	}

	// a single 5 s gap is 12 BPM, outside the range
	tempo := te.EstimateTempo([]audio.Beat{{Time: 0}, {Time: 5}})
	assert.Equal(t, 120.0, tempo.GlobalBPM)
	assert.Equal(t, 0.1, tempo.Confidence)
}

func beatsAt(times ...float64) []audio.Beat {
	beats := make([]audio.Beat, len(times))
	for i, t := range times {
		beats[i] = audio.Beat{Time: t}
	}
	return beats
}

func TestTempoMode(t *testing.T) {
	te := NewTempoEstimation(60, 200)

	tempo := te.EstimateTempo(beatsAt(0, 0.5, 1.0, 1.5, 2.0, 2.7))
	assert.InDelta(t, 120.0, tempo.GlobalBPM, 1e-9)
	assert.InDelta(t, 0.8, tempo.Confidence, 1e-9)
}

func TestTempoTieBreaksToSmallestInterval(t *testing.T) {
	te := NewTempoEstimation(60, 200)

	for range 20 {
		tempo := te.EstimateTempo(beatsAt(0, 0.6, 1.1, 1.7, 2.2))
		assert.InDelta(t, 120.0, tempo.GlobalBPM, 1e-9)
	}
}

func TestTempoConfidenceBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	te := NewTempoEstimation(60, 200)

	for range 100 {
		n := rng.Intn(30)
		times := make([]float64, n)
		cur := 0.0
		for i := range times {
			cur += 0.2 + rng.Float64()
			times[i] = cur
		}
		tempo := te.EstimateTempo(beatsAt(times...))
		assert.GreaterOrEqual(t, tempo.Confidence, 0.0)
		assert.LessOrEqual(t, tempo.Confidence, 1.0)
		assert.Greater(t, tempo.GlobalBPM, 0.0)
	}
}

func TestSegmentPhrases(t *testing.T) {
	assert.Empty(t, SegmentPhrases(nil, 60))

	phrases := SegmentPhrases(beatsAt(1), 60)
	require.Len(t, phrases, 8)

	assert.Equal(t, audio.PhraseIntro, phrases[0].Type)
	assert.Equal(t, audio.PhraseChorus, phrases[1].Type)
	assert.Equal(t, audio.PhraseVerse, phrases[2].Type)
	assert.Equal(t, audio.PhraseOutro, phrases[7].Type, "56 s is in the last tenth of 60 s")
	assert.Equal(t, 60.0, phrases[7].End)
	for i, p := range phrases {
		assert.Equal(t, 0.6, p.Confidence)
		if i > 0 {
			assert.Equal(t, phrases[i-1].End, p.Start)
		}
	}
}
