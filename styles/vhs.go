package styles

import (
	"math/rand/v2"

	"github.com/RyanBlaney/retro-compositor/video"
)

// VHS parameter keys
const (
	ScanlineIntensity = "scanline_intensity"
	ColorBleeding     = "color_bleeding"
	TrackingError     = "tracking_error"
	NoiseLevel        = "noise_level"
	ChromaShift       = "chroma_shift"
	SaturationBoost   = "saturation_boost"
)

// VHS emulates worn tape playback
type VHS struct{}

func NewVHS() *VHS { return &VHS{} }

func (v *VHS) Name() string { return "vhs" }

func (v *VHS) Description() string {
	return "VHS tape look with scan lines, colour bleeding, tracking errors and noise"
}

// DefaultConfig is the pronounced preset the compositor renders with
func (v *VHS) DefaultConfig() *StyleConfig {
	return &StyleConfig{
		Intensity: 0.9,
		Params: map[string]float64{
			ScanlineIntensity: 0.9,
			ColorBleeding:     0.8,
			TrackingError:     0.5,
			NoiseLevel:        0.6,
			ChromaShift:       0.7,
			SaturationBoost:   0.4,
		},
	}
}

func (v *VHS) Parameters() []Parameter {
	return []Parameter{
		{ScanlineIntensity, 0.9, "Darkness of horizontal scan lines"},
		{ColorBleeding, 0.8, "Horizontal smear of the colour channels"},
		{TrackingError, 0.5, "Frequency of displaced scan lines"},
		{NoiseLevel, 0.6, "Amount of grain, snow and dropouts"},
		{ChromaShift, 0.7, "Offset between the red, green and blue channels"},
		{SaturationBoost, 0.4, "Colour saturation increase"},
	}
}

func (v *VHS) Apply(frame *video.Frame, cfg *StyleConfig) error {
	if frame.Width() == 0 || frame.Height() == 0 {
		return &EffectFailedError{Style: v.Name(), Reason: "empty frame"}
	}
	i := cfg.Intensity
	rng := rngFor(cfg, frame)

	applyScanlines(frame, cfg.GetOr(ScanlineIntensity, 0.9)*i)
	applyColorBleeding(frame, cfg.GetOr(ColorBleeding, 0.8)*i)
	applyChromaShift(frame, cfg.GetOr(ChromaShift, 0.7)*i)
	applyTrackingError(frame, cfg.GetOr(TrackingError, 0.5)*i, rng)
	applyNoise(frame, cfg.GetOr(NoiseLevel, 0.6)*i, rng)
	applySaturationBoost(frame, cfg.GetOr(SaturationBoost, 0.4)*i)
	applyColorTemperature(frame, i)
	return nil
}

func applyScanlines(frame *video.Frame, intensity float64) {
	for y := range frame.Height() {
		f := 1 - intensity*0.2
		if y%2 == 0 {
			f = 1 - intensity*0.4
		}
		if y%8 == 0 && intensity > 0.5 {
			f *= 0.7
		}
		for x := range frame.Width() {
			r, g, b := frame.RGB(x, y)
			frame.SetRGB(x, y, uint8(float64(r)*f), uint8(float64(g)*f), uint8(float64(b)*f))
		}
	}
}

// applyColorBleeding smears red to the left and blue to the right
func applyColorBleeding(frame *video.Frame, intensity float64) {
	w, h := frame.Width(), frame.Height()
	if w < 5 || intensity <= 0 {
		return
	}
	src := frame.Clone()
	blend := intensity * 0.4

	for y := range h {
		for x := 2; x < w-2; x++ {
			r, g, b := src.RGB(x, y)
			r1, _, _ := src.RGB(x+1, y)
			r2, _, _ := src.RGB(x+2, y)
			_, gl, bl1 := src.RGB(x-1, y)
			_, _, bl2 := src.RGB(x-2, y)
			_, gr, _ := src.RGB(x+1, y)

			nr := float64(r)*(1-blend) + (float64(r1)*0.7+float64(r2)*0.3)*blend
			nb := float64(b)*(1-blend) + (float64(bl1)*0.7+float64(bl2)*0.3)*blend
			ng := float64(g)*(1-blend*0.3) + (float64(gl)+float64(gr))*0.5*blend*0.3
			frame.SetRGB(x, y, clamp8(nr), clamp8(ng), clamp8(nb))
		}
	}
}

func applyChromaShift(frame *video.Frame, intensity float64) {
	shift := int(intensity * 4)
	if shift == 0 {
		return
	}
	w, h := frame.Width(), frame.Height()
	src := frame.Clone()

	for y := range h {
		gy := y
		if intensity > 0.7 {
			gy = min(max(y+shift/2, 0), h-1)
		}
		for x := range w {
			rx := min(x+shift, w-1)
			bx := max(x-shift, 0)
			r, _, _ := src.RGB(rx, y)
			_, g, _ := src.RGB(x, gy)
			_, _, b := src.RGB(bx, y)
			frame.SetRGB(x, y, r, g, b)
		}
	}
}

func applyTrackingError(frame *video.Frame, intensity float64, rng *rand.Rand) {
	h := frame.Height()
	for y := range h {
		if rng.Float64() >= intensity*0.15 {
			continue
		}
		var shift int
		if rng.Float64() < 0.7 {
			shift = rng.IntN(5) - 2
		} else {
			shift = rng.IntN(17) - 8
		}
		displaceRow(frame, y, shift, rng)
		if rng.Float64() < 0.3 && y < h-1 {
			displaceRow(frame, y+1, shift/2, rng)
		}
	}

	if intensity > 0.5 && rng.Float64() < 0.1 {
		stretchRow(frame, rng.IntN(h), intensity)
	}
}

// displaceRow shifts a row horizontally, filling the gap with dark snow
func displaceRow(frame *video.Frame, y, shift int, rng *rand.Rand) {
	if shift == 0 {
		return
	}
	w := frame.Width()
	row := make([]uint8, w*3)
	for x := range w {
		row[x*3], row[x*3+1], row[x*3+2] = frame.RGB(x, y)
	}
	for x := range w {
		sx := x - shift
		if sx >= 0 && sx < w {
			frame.SetRGB(x, y, row[sx*3], row[sx*3+1], row[sx*3+2])
			continue
		}
		n := uint8(rng.IntN(65))
		frame.SetRGB(x, y, n, n, n)
	}
}

func stretchRow(frame *video.Frame, y int, intensity float64) {
	w := frame.Width()
	stretch := 1 + intensity*0.3
	row := make([]uint8, w*3)
	for x := range w {
		row[x*3], row[x*3+1], row[x*3+2] = frame.RGB(x, y)
	}
	for x := range w {
		sx := min(int(float64(x)/stretch), w-1)
		frame.SetRGB(x, y, row[sx*3], row[sx*3+1], row[sx*3+2])
	}
}

func applyNoise(frame *video.Frame, intensity float64, rng *rand.Rand) {
	w, h := frame.Width(), frame.Height()
	prob := intensity * 0.08

	for y := range h {
		for x := range w {
			if rng.Float64() >= prob {
				continue
			}
			kind := rng.Float64()
			switch {
			case kind < 0.6:
				n := float64(rng.IntN(61) - 30)
				r, g, b := frame.RGB(x, y)
				frame.SetRGB(x, y, clamp8(float64(r)+n), clamp8(float64(g)+n), clamp8(float64(b)+n))
			case kind < 0.8:
				s := uint8(200 + rng.IntN(56))
				frame.SetRGB(x, y, s, s, s)
			default:
				d := uint8(rng.IntN(41))
				frame.SetRGB(x, y, d, d, d)
			}
		}
	}

	if intensity > 0.6 && rng.Float64() < 0.2 {
		start := rng.IntN(h)
		end := min(start+2+rng.IntN(7), h-1)
		for y := start; y <= end; y++ {
			for x := range w {
				if rng.Float64() >= intensity*0.5 {
					continue
				}
				n := float64(rng.IntN(101) - 50)
				r, g, b := frame.RGB(x, y)
				frame.SetRGB(x, y, clamp8(float64(r)+n), clamp8(float64(g)+n), clamp8(float64(b)+n))
			}
		}
	}
}

func applySaturationBoost(frame *video.Frame, boost float64) {
	factor := 1 + boost*0.6
	for y := range frame.Height() {
		for x := range frame.Width() {
			r, g, b := frame.RGB(x, y)
			if r == g && g == b {
				continue
			}
			fr, fg, fb := float64(r)/255, float64(g)/255, float64(b)/255
			avg := (fr + fg + fb) / 3
			nr := avg + (fr-avg)*factor
			ng := avg + (fg-avg)*factor
			nb := avg + (fb-avg)*factor
			// magenta cast of worn tape
			if boost > 0.5 {
				nr *= 1.05
				ng *= 0.98
				nb *= 1.02
			}
			frame.SetRGB(x, y, clamp8(nr*255), clamp8(ng*255), clamp8(nb*255))
		}
	}
}

func applyColorTemperature(frame *video.Frame, intensity float64) {
	warmth := intensity * 0.3
	for y := range frame.Height() {
		for x := range frame.Width() {
			r, g, b := frame.RGB(x, y)
			frame.SetRGB(x, y,
				clamp8(float64(r)*(1+warmth*0.2)),
				clamp8(float64(g)*(1+warmth*0.1)),
				clamp8(float64(b)*(1-warmth*0.15)))
		}
	}
}
