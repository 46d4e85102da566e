package temporal

import (
	"math"

	"github.com/RyanBlaney/retro-compositor/audio"
)

const (
	phraseLength     = 8.0
	phraseConfidence = 0.6
)

// SegmentPhrases cuts the track into fixed 8 second phrases labelled by position
// alone: intro in the first tenth, outro in the last tenth, verse and chorus
// alternating in between. A track without beats has no phrases.
func SegmentPhrases(beats []audio.Beat, duration float64) []audio.Phrase {
	phrases := []audio.Phrase{}
	if len(beats) == 0 || duration <= 0 {
		return phrases
	}

	for start := 0.0; start < duration; {
		end := math.Min(start+phraseLength, duration)

		var kind audio.PhraseType
		switch {
		case start < duration*0.1:
			kind = audio.PhraseIntro
		case start > duration*0.9:
			kind = audio.PhraseOutro
		case int(start/phraseLength)%2 == 0:
			kind = audio.PhraseVerse
		default:
			kind = audio.PhraseChorus
		}

		phrases = append(phrases, audio.Phrase{
			Start:      start,
			End:        end,
			Type:       kind,
			Confidence: phraseConfidence,
		})
		start = end
	}
	return phrases
}
