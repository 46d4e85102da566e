package styles

import (
	"math"

	"github.com/RyanBlaney/retro-compositor/video"
)

// Boards parameter keys
const (
	PosterizeLevels = "posterize_levels"
	EdgeThreshold   = "edge_threshold"
	EdgeStrength    = "edge_strength"
	Grayscale       = "grayscale"
)

// Boards renders frames like pencil storyboard panels
type Boards struct{}

func NewBoards() *Boards { return &Boards{} }

func (b *Boards) Name() string { return "boards" }

func (b *Boards) Description() string {
	return "Storyboard sketch with posterized tones and hand-drawn edges"
}

func (b *Boards) DefaultConfig() *StyleConfig {
	return &StyleConfig{
		Intensity: 0.8,
		Params: map[string]float64{
			PosterizeLevels: 5,
			EdgeThreshold:   40,
			EdgeStrength:    0.8,
			Grayscale:       1,
		},
	}
}

func (b *Boards) Parameters() []Parameter {
	return []Parameter{
		{PosterizeLevels, 5, "Number of tone levels per channel"},
		{EdgeThreshold, 40, "Luminance gradient that counts as an edge"},
		{EdgeStrength, 0.8, "Darkness of the drawn edges"},
		{Grayscale, 1, "1 draws in pencil grey, 0 keeps colour"},
	}
}

func (b *Boards) Apply(frame *video.Frame, cfg *StyleConfig) error {
	w, h := frame.Width(), frame.Height()
	if w == 0 || h == 0 {
		return &EffectFailedError{Style: b.Name(), Reason: "empty frame"}
	}
	i := cfg.Intensity

	levels := math.Max(2, math.Round(cfg.GetOr(PosterizeLevels, 5)))
	threshold := cfg.GetOr(EdgeThreshold, 40)
	strength := cfg.GetOr(EdgeStrength, 0.8) * i
	gray := cfg.GetOr(Grayscale, 1) >= 0.5

	lum := make([]float64, w*h)
	for y := range h {
		for x := range w {
			r, g, bl := frame.RGB(x, y)
			lum[y*w+x] = luminance(r, g, bl)
		}
	}

	step := 255 / (levels - 1)
	quantize := func(v float64) float64 {
		return math.Round(v/step) * step
	}

	for y := range h {
		for x := range w {
			r, g, bl := frame.RGB(x, y)
			var nr, ng, nb float64
			if gray {
				l := quantize(lum[y*w+x])
				nr, ng, nb = l, l, l
			} else {
				nr, ng, nb = quantize(float64(r)), quantize(float64(g)), quantize(float64(bl))
			}

			// blend with the original by intensity
			nr = float64(r)*(1-i) + nr*i
			ng = float64(g)*(1-i) + ng*i
			nb = float64(bl)*(1-i) + nb*i

			if gradient(lum, w, h, x, y) > threshold {
				f := 1 - strength
				nr, ng, nb = nr*f, ng*f, nb*f
			}
			frame.SetRGB(x, y, clamp8(nr), clamp8(ng), clamp8(nb))
		}
	}
	return nil
}

// gradient is the Sobel magnitude of the luminance plane, edges clamped
func gradient(lum []float64, w, h, x, y int) float64 {
	at := func(px, py int) float64 {
		px = min(max(px, 0), w-1)
		py = min(max(py, 0), h-1)
		return lum[py*w+px]
	}
	gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
	gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
	return math.Hypot(gx, gy)
}
