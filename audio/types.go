// Package audio holds the data model shared by the analysis stages: sample
// buffers, energy profiles, beats, tempo and the aggregate analysis result.
package audio

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FormatInfo describes where a SampleBuffer came from
type FormatInfo struct {
	Container string `json:"container"`
	Codec     string `json:"codec,omitempty"`
	BitDepth  int    `json:"bit_depth,omitempty"`
}

// SampleBuffer is interleaved floating-point PCM.
// Duration is len(Samples)/(SampleRate*Channels) seconds.
type SampleBuffer struct {
	Samples    []float64  `json:"-"`
	SampleRate int        `json:"sample_rate"`
	Channels   int        `json:"channels"`
	Duration   float64    `json:"duration"`
	Format     FormatInfo `json:"format"`
}

// NewSampleBuffer builds a buffer and derives its duration
func NewSampleBuffer(samples []float64, sampleRate, channels int) *SampleBuffer {
	b := &SampleBuffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}
	if sampleRate > 0 && channels > 0 {
		b.Duration = float64(len(samples)) / float64(sampleRate*channels)
	}
	return b
}

// MonoMix averages the channels of every frame. A mono buffer yields a copy.
// A trailing partial frame is dropped.
func (b *SampleBuffer) MonoMix() []float64 {
	if b.Channels <= 1 {
		mono := make([]float64, len(b.Samples))
		copy(mono, b.Samples)
		return mono
	}

	frames := len(b.Samples) / b.Channels
	mono := make([]float64, frames)
	for f := range frames {
		sum := 0.0
		for c := range b.Channels {
			sum += b.Samples[f*b.Channels+c]
		}
		mono[f] = sum / float64(b.Channels)
	}
	return mono
}

// EnergyLevel is the loudness summary of one sliding window
type EnergyLevel struct {
	Time             float64 `json:"time"`
	RMS              float64 `json:"rms"`
	Peak             float64 `json:"peak"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	SpectralCentroid float64 `json:"spectral_centroid"`
}

// BeatType classifies a beat
type BeatType int

const (
	Downbeat BeatType = iota
	RegularBeat
	Offbeat
	OnsetBeat
)

var beatTypeNames = map[BeatType]string{
	Downbeat:    "downbeat",
	RegularBeat: "beat",
	Offbeat:     "offbeat",
	OnsetBeat:   "onset",
}

func (t BeatType) String() string {
	if name, ok := beatTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("BeatType(%d)", int(t))
}

func (t BeatType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *BeatType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for bt, n := range beatTypeNames {
		if n == name {
			*t = bt
			return nil
		}
	}
	return fmt.Errorf("unknown beat type %q", name)
}

// Beat is a detected musical beat
type Beat struct {
	Time        float64  `json:"time"`
	Strength    float64  `json:"strength"`
	Type        BeatType `json:"beat_type"`
	OnsetValue  float64  `json:"onset_value"`
	LocalEnergy float64  `json:"local_energy"`
}

// TimeSignature defaults to 4/4
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// DefaultTimeSignature returns 4/4
func DefaultTimeSignature() TimeSignature {
	return TimeSignature{Numerator: 4, Denominator: 4}
}

// TempoChange is reserved for time-varying tempo; nothing produces it yet
type TempoChange struct {
	Time float64 `json:"time"`
	BPM  float64 `json:"bpm"`
}

// TempoMap is the single global tempo estimate
type TempoMap struct {
	GlobalBPM     float64       `json:"global_bpm"`
	Confidence    float64       `json:"confidence"`
	TempoChanges  []TempoChange `json:"tempo_changes"`
	TimeSignature TimeSignature `json:"time_signature"`
}

// PhraseType labels a coarse musical section
type PhraseType string

const (
	PhraseIntro   PhraseType = "intro"
	PhraseVerse   PhraseType = "verse"
	PhraseChorus  PhraseType = "chorus"
	PhraseBridge  PhraseType = "bridge"
	PhraseOutro   PhraseType = "outro"
	PhraseUnknown PhraseType = "unknown"
)

// Phrase is a positional segment of the track
type Phrase struct {
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Type       PhraseType `json:"phrase_type"`
	Confidence float64    `json:"confidence"`
}

// SpectralFeatures are per-frame spectral descriptors
type SpectralFeatures struct {
	SpectralCentroid []float64 `json:"spectral_centroid"`
	SpectralRolloff  []float64 `json:"spectral_rolloff"`
	OnsetDetection   []float64 `json:"onset_detection_function"`
}

// AudioAnalysis is the immutable result of one analysis run
type AudioAnalysis struct {
	Beats            []Beat            `json:"beats"`
	Tempo            TempoMap          `json:"tempo"`
	EnergyLevels     []EnergyLevel     `json:"energy_levels"`
	SpectralFeatures *SpectralFeatures `json:"spectral_features,omitempty"`
	Phrases          []Phrase          `json:"phrases"`
	Config           AnalysisConfig    `json:"config"`
	BPM              float64           `json:"bpm"`
	BPMConfidence    float64           `json:"bpm_confidence"`
	Duration         float64           `json:"duration"`
}

// AverageEnergyInRange is the mean RMS of energy samples with start <= t <= end,
// or 0 when none fall inside
func (a *AudioAnalysis) AverageEnergyInRange(start, end float64) float64 {
	sum := 0.0
	n := 0
	for _, e := range a.EnergyLevels {
		if e.Time >= start && e.Time <= end {
			sum += e.RMS
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// BeatsInRange returns the beats with start <= t <= end
func (a *AudioAnalysis) BeatsInRange(start, end float64) []Beat {
	var out []Beat
	for _, b := range a.Beats {
		if b.Time >= start && b.Time <= end {
			out = append(out, b)
		}
	}
	return out
}

// NextBeatAfter returns the first beat strictly after t
func (a *AudioAnalysis) NextBeatAfter(t float64) (Beat, bool) {
	i := sort.Search(len(a.Beats), func(i int) bool { return a.Beats[i].Time > t })
	if i == len(a.Beats) {
		return Beat{}, false
	}
	return a.Beats[i], true
}
