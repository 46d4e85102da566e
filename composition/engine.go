package composition

import (
	"math"
	"slices"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/video"
)

const (
	cutThreshold = 0.4

	// Distribution fixup
	maxInjectedCuts   = 3
	injectedCutSpread = 2.0
)

// CutEngine decides on which beats to cut and which clip to show next. Clips
// rotate round-robin; an engine is meant for one caller at a time.
type CutEngine struct {
	config config.CompositionConfig
	logger logging.Logger
}

// NewCutEngine creates an engine. Pass a validated config.
func NewCutEngine(cfg config.CompositionConfig) *CutEngine {
	return &CutEngine{config: cfg}
}

// WithLogger replaces the global logger
func (e *CutEngine) WithLogger(logger logging.Logger) *CutEngine {
	e.logger = logger
	return e
}

func (e *CutEngine) log() logging.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.GetGlobalLogger()
}

// GenerateTimeline sweeps the beats of analysis and assigns clipIDs in
// rotation, then injects cuts for clips the sweep never reached. The first
// cut is always at 0 with clipIDs[0].
func (e *CutEngine) GenerateTimeline(analysis *audio.AudioAnalysis, clipIDs []uint32) (*Timeline, error) {
	logger := e.log().WithFields(logging.Fields{
		"component": "cut_engine",
		"function":  "GenerateTimeline",
	})

	if len(clipIDs) == 0 {
		return nil, &SequencingFailedError{Reason: "no video clips available"}
	}
	if analysis == nil || len(analysis.Beats) == 0 {
		return nil, &SequencingFailedError{Reason: "no beats to place cuts on"}
	}

	timeline := e.sweep(analysis, clipIDs)
	e.ensureDistribution(timeline, clipIDs, analysis.Duration, logger)

	logger.Info("Timeline generated", logging.Fields{
		"cuts":             timeline.Len(),
		"average_segment":  analysis.Duration / float64(timeline.Len()),
		"clips_used":       timeline.UniqueClips(),
		"available_clips":  len(clipIDs),
		"beats_considered": len(analysis.Beats),
	})
	return timeline, nil
}

func (e *CutEngine) sweep(analysis *audio.AudioAnalysis, clipIDs []uint32) *Timeline {
	timeline := NewTimeline()
	timeline.AddCut(0, clipIDs[0])

	rotation := 0
	lastCut := 0.0
	for _, beat := range analysis.Beats {
		since := beat.Time - lastCut
		if !e.ShouldCut(beat, since, analysis) {
			continue
		}
		rotation = (rotation + 1) % len(clipIDs)
		timeline.AddCut(beat.Time, clipIDs[rotation])
		lastCut = beat.Time
	}
	return timeline
}

// ShouldCut applies the interval bounds and, between them, the cut score
func (e *CutEngine) ShouldCut(beat audio.Beat, sinceLastCut float64, analysis *audio.AudioAnalysis) bool {
	if sinceLastCut >= e.config.MaxCutInterval {
		return true
	}
	if sinceLastCut < e.config.MinCutInterval {
		return false
	}
	return e.CutScore(beat, sinceLastCut, analysis) >= cutThreshold
}

// CutScore weighs beat strength, local energy, downbeats and elapsed time,
// scaled by the beat sync strength
func (e *CutEngine) CutScore(beat audio.Beat, sinceLastCut float64, analysis *audio.AudioAnalysis) float64 {
	score := 0.5 * beat.Strength

	if e.config.EnergyBasedCuts {
		score += 0.4 * analysis.AverageEnergyInRange(beat.Time-0.5, beat.Time+0.5)
	}
	if beat.Type == audio.Downbeat {
		score += 0.3
	}

	ideal := (e.config.MinCutInterval + e.config.MaxCutInterval) / 2
	if sinceLastCut >= ideal {
		score += 0.2 + (sinceLastCut-ideal)/ideal*0.3
	} else {
		score += 0.1
	}

	return score * e.config.BeatSyncStrength
}

// ensureDistribution injects up to three cuts for unused clips when the
// timeline is sparse, at 30%, 50% and 70% of the track
func (e *CutEngine) ensureDistribution(timeline *Timeline, clipIDs []uint32, duration float64, logger logging.Logger) {
	used := timeline.UniqueClips()
	var unused []uint32
	for _, id := range clipIDs {
		if _, found := slices.BinarySearch(used, id); !found && !slices.Contains(unused, id) {
			unused = append(unused, id)
		}
	}

	if len(unused) > 0 && timeline.Len() < int(duration/3) {
		for i, id := range unused[:min(len(unused), maxInjectedCuts)] {
			at := duration * (0.3 + 0.2*float64(i))
			if timeline.hasCutNear(at, injectedCutSpread) {
				continue
			}
			timeline.AddCut(at, id)
			logger.Debug("Added cut for unused clip", logging.Fields{
				"time": at,
				"clip": id,
			})
		}
		timeline.Sort()
	}

	if len(used) < len(clipIDs)/2 {
		logger.Warn("Less than half of the clips are used, consider adjusting beat sensitivity", logging.Fields{
			"used":      len(used),
			"available": len(clipIDs),
		})
	}
}

// MapTimelineToClips returns a copy of timeline whose clip ids all exist in
// clips. An id missing from the pool maps to the (id-1)th pool entry, wrapping.
func MapTimelineToClips(timeline *Timeline, clips []*video.VideoClip) *Timeline {
	mapped := timeline.Clone()
	if len(clips) == 0 {
		return mapped
	}

	pool := make([]uint32, len(clips))
	for i, c := range clips {
		pool[i] = c.Sequence
	}
	slices.Sort(pool)

	n := len(pool)
	for i, id := range mapped.ClipAssignments {
		if _, found := slices.BinarySearch(pool, id); found {
			continue
		}
		idx := (int(id) - 1) % n
		if idx < 0 {
			idx += n
		}
		mapped.ClipAssignments[i] = pool[idx]
	}
	return mapped
}

// ExpectedFrames is the number of output frames a timeline renders to
func ExpectedFrames(timeline *Timeline, total, fps float64) int {
	frames := 0
	for _, seg := range timeline.Segments(total) {
		frames += int(math.Round(seg.Duration() * fps))
	}
	return frames
}
