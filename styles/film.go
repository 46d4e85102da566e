package styles

import (
	"github.com/RyanBlaney/retro-compositor/video"
)

// Film parameter keys
const (
	GrainIntensity   = "grain_intensity"
	ScratchFrequency = "scratch_frequency"
	ColorFade        = "color_fade"
	VignetteStrength = "vignette_strength"
)

// Film emulates projected film stock: grain, scratches, faded colour and a vignette
type Film struct{}

func NewFilm() *Film { return &Film{} }

func (f *Film) Name() string { return "film" }

func (f *Film) Description() string {
	return "Aged film with grain, scratches, faded colour and vignetting"
}

func (f *Film) DefaultConfig() *StyleConfig {
	return &StyleConfig{
		Intensity: 0.8,
		Params: map[string]float64{
			GrainIntensity:   0.5,
			ScratchFrequency: 0.2,
			ColorFade:        0.3,
			VignetteStrength: 0.5,
		},
	}
}

func (f *Film) Parameters() []Parameter {
	return []Parameter{
		{GrainIntensity, 0.5, "Amount of film grain"},
		{ScratchFrequency, 0.2, "Chance of vertical scratches per frame"},
		{ColorFade, 0.3, "Pull of the colours towards a warm grey"},
		{VignetteStrength, 0.5, "Darkening of the corners"},
	}
}

func (f *Film) Apply(frame *video.Frame, cfg *StyleConfig) error {
	if frame.Width() == 0 || frame.Height() == 0 {
		return &EffectFailedError{Style: f.Name(), Reason: "empty frame"}
	}
	i := cfg.Intensity
	rng := rngFor(cfg, frame)
	w, h := frame.Width(), frame.Height()

	grain := cfg.GetOr(GrainIntensity, 0.5) * i * 40
	fade := cfg.GetOr(ColorFade, 0.3) * i
	for y := range h {
		for x := range w {
			r, g, b := frame.RGB(x, y)
			n := rng.NormFloat64() * grain
			// fade towards a warm grey and tint slightly warm
			l := luminance(r, g, b)
			nr := (float64(r)*(1-fade)+l*fade)*(1+0.08*i) + n
			ng := float64(g)*(1-fade) + l*fade + n
			nb := (float64(b)*(1-fade)+l*fade)*(1-0.08*i) + n
			frame.SetRGB(x, y, clamp8(nr), clamp8(ng), clamp8(nb))
		}
	}

	scratches := cfg.GetOr(ScratchFrequency, 0.2) * i
	for range 3 {
		if rng.Float64() >= scratches {
			continue
		}
		x := rng.IntN(w)
		bright := rng.Float64() < 0.5
		for y := range h {
			r, g, b := frame.RGB(x, y)
			if bright {
				frame.SetRGB(x, y, clamp8(float64(r)+60), clamp8(float64(g)+60), clamp8(float64(b)+60))
			} else {
				frame.SetRGB(x, y, r/2, g/2, b/2)
			}
		}
	}

	vignette(frame, cfg.GetOr(VignetteStrength, 0.5)*i)
	return nil
}
