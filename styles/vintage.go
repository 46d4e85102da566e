package styles

import (
	"github.com/RyanBlaney/retro-compositor/video"
)

// Vintage parameter keys
const (
	SepiaAmount = "sepia_amount"
	FadeAmount  = "fade_amount"
)

// Vintage is a sepia photograph look with lifted blacks
type Vintage struct{}

func NewVintage() *Vintage { return &Vintage{} }

func (v *Vintage) Name() string { return "vintage" }

func (v *Vintage) Description() string {
	return "Old photograph look with sepia toning, faded blacks and a vignette"
}

func (v *Vintage) DefaultConfig() *StyleConfig {
	return &StyleConfig{
		Intensity: 0.8,
		Params: map[string]float64{
			SepiaAmount:      0.8,
			FadeAmount:       0.4,
			VignetteStrength: 0.6,
		},
	}
}

func (v *Vintage) Parameters() []Parameter {
	return []Parameter{
		{SepiaAmount, 0.8, "Blend between the original colours and sepia"},
		{FadeAmount, 0.4, "Lift of the blacks and drop of the whites"},
		{VignetteStrength, 0.6, "Darkening of the corners"},
	}
}

func (v *Vintage) Apply(frame *video.Frame, cfg *StyleConfig) error {
	if frame.Width() == 0 || frame.Height() == 0 {
		return &EffectFailedError{Style: v.Name(), Reason: "empty frame"}
	}
	i := cfg.Intensity
	sepia := cfg.GetOr(SepiaAmount, 0.8) * i
	fade := cfg.GetOr(FadeAmount, 0.4) * i

	for y := range frame.Height() {
		for x := range frame.Width() {
			r, g, b := frame.RGB(x, y)
			fr, fg, fb := float64(r), float64(g), float64(b)

			sr := 0.393*fr + 0.769*fg + 0.189*fb
			sg := 0.349*fr + 0.686*fg + 0.168*fb
			sb := 0.272*fr + 0.534*fg + 0.131*fb

			nr := fr*(1-sepia) + sr*sepia
			ng := fg*(1-sepia) + sg*sepia
			nb := fb*(1-sepia) + sb*sepia

			nr = nr*(1-fade*0.3) + 255*fade*0.15
			ng = ng*(1-fade*0.3) + 255*fade*0.15
			nb = nb*(1-fade*0.3) + 255*fade*0.15
			frame.SetRGB(x, y, clamp8(nr), clamp8(ng), clamp8(nb))
		}
	}

	vignette(frame, cfg.GetOr(VignetteStrength, 0.6)*i)
	return nil
}
