package composition

import (
	"math"
	"slices"
	"sort"
)

// Timeline pairs cut times in seconds with the clip shown from that cut on.
// Cuts may be added out of order; call Sort before asking for durations.
type Timeline struct {
	Cuts            []float64 `json:"cuts"`
	ClipAssignments []uint32  `json:"clip_assignments"`
}

// Segment is the span between two cuts
type Segment struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	ClipID uint32  `json:"clip_id"`
}

// Duration of the segment in seconds
func (s Segment) Duration() float64 { return s.End - s.Start }

// NewTimeline returns an empty timeline
func NewTimeline() *Timeline {
	return &Timeline{Cuts: []float64{}, ClipAssignments: []uint32{}}
}

// AddCut appends a cut without reordering
func (t *Timeline) AddCut(time float64, clipID uint32) {
	t.Cuts = append(t.Cuts, time)
	t.ClipAssignments = append(t.ClipAssignments, clipID)
}

// Len is the number of cuts
func (t *Timeline) Len() int { return len(t.Cuts) }

type byCutTime Timeline

func (t *byCutTime) Len() int           { return len(t.Cuts) }
func (t *byCutTime) Less(i, j int) bool { return t.Cuts[i] < t.Cuts[j] }
func (t *byCutTime) Swap(i, j int) {
	t.Cuts[i], t.Cuts[j] = t.Cuts[j], t.Cuts[i]
	t.ClipAssignments[i], t.ClipAssignments[j] = t.ClipAssignments[j], t.ClipAssignments[i]
}

// Sort orders cuts by time, keeping equal times in insertion order
func (t *Timeline) Sort() {
	sort.Stable((*byCutTime)(t))
}

// UniqueClips returns the assigned clip ids, sorted and deduplicated
func (t *Timeline) UniqueClips() []uint32 {
	ids := slices.Clone(t.ClipAssignments)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// SegmentDuration is the gap from cut i to the next cut, or to total for the
// last one. Out-of-range indices give 0.
func (t *Timeline) SegmentDuration(i int, total float64) float64 {
	if i < 0 || i >= len(t.Cuts) {
		return 0
	}
	if i+1 < len(t.Cuts) {
		return t.Cuts[i+1] - t.Cuts[i]
	}
	return total - t.Cuts[i]
}

// Segments lists every cut as a span ending at the next cut or at total
func (t *Timeline) Segments(total float64) []Segment {
	segments := make([]Segment, len(t.Cuts))
	for i, start := range t.Cuts {
		segments[i] = Segment{
			Start:  start,
			End:    start + t.SegmentDuration(i, total),
			ClipID: t.ClipAssignments[i],
		}
	}
	return segments
}

// Clone deep-copies the timeline
func (t *Timeline) Clone() *Timeline {
	return &Timeline{
		Cuts:            slices.Clone(t.Cuts),
		ClipAssignments: slices.Clone(t.ClipAssignments),
	}
}

func (t *Timeline) hasCutNear(time, distance float64) bool {
	for _, c := range t.Cuts {
		if math.Abs(c-time) < distance {
			return true
		}
	}
	return false
}
