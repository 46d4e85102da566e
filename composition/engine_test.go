package composition

import (
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// beatGrid builds an analysis with a beat every spacing seconds (from spacing
// up to duration) and a flat energy profile
func beatGrid(duration, spacing, strength, rms float64) *audio.AudioAnalysis {
	analysis := &audio.AudioAnalysis{Duration: duration}
	for k := 1; float64(k)*spacing < duration; k++ {
		analysis.Beats = append(analysis.Beats, audio.Beat{
			Time:     float64(k) * spacing,
			Strength: strength,
			Type:     audio.RegularBeat,
		})
	}
	for k := 0; float64(k)*0.1 < duration; k++ {
		analysis.EnergyLevels = append(analysis.EnergyLevels, audio.EnergyLevel{Time: float64(k) * 0.1, RMS: rms})
	}
	return analysis
}

func testEngine() *CutEngine {
	return NewCutEngine(config.DefaultCompositionConfig()).WithLogger(&logging.NoOpLogger{})
}

func TestTimelineAddAndSort(t *testing.T) {
	tl := NewTimeline()
	tl.AddCut(5, 1)
	tl.AddCut(1, 2)
	tl.AddCut(5, 3)
	tl.AddCut(0, 4)

	assert.Equal(t, []float64{5, 1, 5, 0}, tl.Cuts, "AddCut does not reorder")

	tl.Sort()
	assert.Equal(t, []float64{0, 1, 5, 5}, tl.Cuts)
	assert.Equal(t, []uint32{4, 2, 1, 3}, tl.ClipAssignments, "equal times keep insertion order")

	before := tl.Clone()
	tl.Sort()
	assert.Equal(t, before, tl, "sorting a sorted timeline is a no-op")
}

func TestTimelineSortKeepsPairsAligned(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for range 50 {
		tl := NewTimeline()
		pairs := map[uint32]float64{}
		for id := range uint32(20) {
			at := float64(rng.IntN(30))
			tl.AddCut(at, id)
			pairs[id] = at
		}
		tl.Sort()

		require.Equal(t, len(tl.Cuts), len(tl.ClipAssignments))
		for i, id := range tl.ClipAssignments {
			assert.Equal(t, pairs[id], tl.Cuts[i])
			if i > 0 {
				assert.LessOrEqual(t, tl.Cuts[i-1], tl.Cuts[i])
			}
		}
	}
}

func TestTimelineQueries(t *testing.T) {
	tl := NewTimeline()
	tl.AddCut(0, 3)
	tl.AddCut(2, 1)
	tl.AddCut(5, 3)

	assert.Equal(t, []uint32{1, 3}, tl.UniqueClips())
	assert.Equal(t, 3, tl.Len())

	assert.Equal(t, 2.0, tl.SegmentDuration(0, 10))
	assert.Equal(t, 3.0, tl.SegmentDuration(1, 10))
	assert.Equal(t, 5.0, tl.SegmentDuration(2, 10))
	assert.Zero(t, tl.SegmentDuration(3, 10))
	assert.Zero(t, tl.SegmentDuration(-1, 10))

	assert.Equal(t, []Segment{
		{Start: 0, End: 2, ClipID: 3},
		{Start: 2, End: 5, ClipID: 1},
		{Start: 5, End: 10, ClipID: 3},
	}, tl.Segments(10))
}

func TestCutScore(t *testing.T) {
	analysis := beatGrid(20, 0.5, 0, 0.5)
	beat := audio.Beat{Time: 10, Strength: 0.6, Type: audio.Downbeat}

	// 0.5*0.6 + 0.4*0.5 + 0.3 + (0.2 + 1.5/4.5*0.3), scaled by 0.8
	assert.InDelta(t, 0.88, testEngine().CutScore(beat, 6, analysis), 1e-9)

	cfg := config.DefaultCompositionConfig()
	cfg.EnergyBasedCuts = false
	assert.InDelta(t, 0.72, NewCutEngine(cfg).CutScore(beat, 6, analysis), 1e-9)

	beat.Type = audio.RegularBeat
	// below the ideal interval the time factor is 0.1
	assert.InDelta(t, (0.3+0.2+0.1)*0.8, testEngine().CutScore(beat, 2, analysis), 1e-9)
}

func TestShouldCutBounds(t *testing.T) {
	e := testEngine()
	analysis := beatGrid(20, 0.5, 0, 0)
	weak := audio.Beat{Time: 10, Strength: 0, Type: audio.RegularBeat}
	strong := audio.Beat{Time: 10, Strength: 1, Type: audio.Downbeat}

	assert.True(t, e.ShouldCut(weak, 8, analysis), "max interval forces a cut")
	assert.False(t, e.ShouldCut(strong, 0.99, analysis), "min interval suppresses a cut")
	assert.True(t, e.ShouldCut(strong, 1, analysis))
	assert.False(t, e.ShouldCut(weak, 7.5, analysis))
}

func TestGenerateTimelineStrongBeats(t *testing.T) {
	tl, err := testEngine().GenerateTimeline(beatGrid(30, 0.5, 0.8, 0.5), []uint32{1, 2, 3})
	require.NoError(t, err)

	require.Equal(t, 30, tl.Len())
	assert.Equal(t, 0.0, tl.Cuts[0])
	assert.Equal(t, []uint32{1, 2, 3, 1, 2}, tl.ClipAssignments[:5])
	for i := 1; i < tl.Len(); i++ {
		assert.Equal(t, 1.0, tl.Cuts[i]-tl.Cuts[i-1])
	}
}

func TestGenerateTimelineForcedCuts(t *testing.T) {
	tl, err := testEngine().GenerateTimeline(beatGrid(30, 0.5, 0, 0), []uint32{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 8, 16, 24}, tl.Cuts)
	assert.Equal(t, []uint32{1, 2, 3, 1}, tl.ClipAssignments)
}

func TestSweepIntervalBounds(t *testing.T) {
	cfg := config.DefaultCompositionConfig()
	e := NewCutEngine(cfg).WithLogger(&logging.NoOpLogger{})
	rng := rand.New(rand.NewPCG(3, 5))

	for range 100 {
		analysis := beatGrid(60, 0.5, 0, 0)
		for i := range analysis.Beats {
			analysis.Beats[i].Strength = rng.Float64()
			if rng.IntN(4) == 0 {
				analysis.Beats[i].Type = audio.Downbeat
			}
		}
		for i := range analysis.EnergyLevels {
			analysis.EnergyLevels[i].RMS = rng.Float64()
		}

		tl := e.sweep(analysis, []uint32{1, 2, 3, 4})
		for i := 1; i < tl.Len(); i++ {
			gap := tl.Cuts[i] - tl.Cuts[i-1]
			assert.LessOrEqual(t, gap, cfg.MaxCutInterval)
			assert.GreaterOrEqual(t, gap, cfg.MinCutInterval)
		}
	}
}

func TestDistributionInjectsUnusedClips(t *testing.T) {
	analysis := &audio.AudioAnalysis{
		Duration: 30,
		Beats:    []audio.Beat{{Time: 0.5, Strength: 1, Type: audio.RegularBeat}},
	}

	tl, err := testEngine().GenerateTimeline(analysis, []uint32{1, 2, 3, 4, 5})
	require.NoError(t, err)

	require.Equal(t, 4, tl.Len())
	assert.Equal(t, []uint32{1, 2, 3, 4}, tl.ClipAssignments)
	assert.InDelta(t, 9, tl.Cuts[1], 1e-9)
	assert.InDelta(t, 15, tl.Cuts[2], 1e-9)
	assert.InDelta(t, 21, tl.Cuts[3], 1e-9)
}

func TestDistributionSkipsPointsNearCuts(t *testing.T) {
	analysis := &audio.AudioAnalysis{
		Duration: 30,
		Beats:    []audio.Beat{{Time: 8, Strength: 0, Type: audio.RegularBeat}},
	}

	tl, err := testEngine().GenerateTimeline(analysis, []uint32{1, 2, 3, 4, 5})
	require.NoError(t, err)

	require.Equal(t, 4, tl.Len())
	assert.Equal(t, []uint32{1, 2, 4, 5}, tl.ClipAssignments, "the 30% point is within 2s of the cut at 8s")
	assert.Equal(t, []float64{0, 8}, tl.Cuts[:2])
	for i := 1; i < tl.Len(); i++ {
		assert.GreaterOrEqual(t, tl.Cuts[i]-tl.Cuts[i-1], 2.0)
	}
}

func TestDistributionLeavesBusyTimelines(t *testing.T) {
	ids := []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tl, err := testEngine().GenerateTimeline(beatGrid(6, 0.5, 0.8, 0.5), ids)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, tl.Cuts)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6}, tl.ClipAssignments)
}

func TestGenerateTimelineErrors(t *testing.T) {
	var seqErr *SequencingFailedError

	_, err := testEngine().GenerateTimeline(beatGrid(10, 0.5, 1, 1), nil)
	require.ErrorAs(t, err, &seqErr)
	assert.Contains(t, err.Error(), "no video clips")

	_, err = testEngine().GenerateTimeline(&audio.AudioAnalysis{Duration: 10}, []uint32{1})
	require.ErrorAs(t, err, &seqErr)
	assert.Contains(t, err.Error(), "no beats")
}

func TestMapTimelineToClips(t *testing.T) {
	clips := []*video.VideoClip{{Sequence: 10}, {Sequence: 3}, {Sequence: 7}}

	tl := NewTimeline()
	tl.AddCut(0, 7)
	tl.AddCut(1, 1)
	tl.AddCut(2, 5)
	tl.AddCut(3, 0)

	mapped := MapTimelineToClips(tl, clips)
	assert.Equal(t, []uint32{7, 3, 7, 10}, mapped.ClipAssignments)
	assert.Equal(t, []uint32{7, 1, 5, 0}, tl.ClipAssignments, "the input is not modified")
	assert.Equal(t, tl.Cuts, mapped.Cuts)
}

func TestExpectedFrames(t *testing.T) {
	tl := NewTimeline()
	tl.AddCut(0, 1)
	tl.AddCut(1.04, 2)
	tl.AddCut(2.5, 1)

	// round(10.4) + round(14.6) + round(5)
	assert.Equal(t, 10+15+5, ExpectedFrames(tl, 3, 10))
}
