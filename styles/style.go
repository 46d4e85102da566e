// Package styles implements the retro pixel effects applied to every rendered
// frame.
package styles

import (
	"maps"
	"math/rand/v2"

	"github.com/RyanBlaney/retro-compositor/algorithms/common"
	"github.com/RyanBlaney/retro-compositor/video"
)

// Style is an in-place frame effect. Implementations hold no per-frame state
// and may be applied to different frames concurrently.
type Style interface {
	Name() string
	Description() string
	Apply(frame *video.Frame, cfg *StyleConfig) error
	DefaultConfig() *StyleConfig
	Parameters() []Parameter
}

// Parameter documents one optional key of a style's StyleConfig
type Parameter struct {
	Key         string  `json:"key"`
	Default     float64 `json:"default"`
	Description string  `json:"description"`
}

// StyleConfig is the overall effect strength plus style-specific parameters
type StyleConfig struct {
	Intensity float64            `json:"intensity"`
	Params    map[string]float64 `json:"parameters,omitempty"`
	// Seed makes random artifacts reproducible; 0 draws a fresh seed per frame
	Seed uint64 `json:"seed,omitempty"`
}

// DefaultStyleConfig returns intensity 0.8 with no parameters
func DefaultStyleConfig() *StyleConfig {
	return &StyleConfig{Intensity: 0.8, Params: map[string]float64{}}
}

// WithIntensity returns a config with the intensity clamped to [0,1]
func WithIntensity(intensity float64) *StyleConfig {
	cfg := DefaultStyleConfig()
	cfg.Intensity = common.Clamp(intensity, 0, 1)
	return cfg
}

// Get returns a parameter and whether it was set
func (c *StyleConfig) Get(key string) (float64, bool) {
	v, ok := c.Params[key]
	return v, ok
}

// GetOr returns a parameter or def when it is unset
func (c *StyleConfig) GetOr(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// Set stores a parameter and returns the config for chaining
func (c *StyleConfig) Set(key string, value float64) *StyleConfig {
	if c.Params == nil {
		c.Params = map[string]float64{}
	}
	c.Params[key] = value
	return c
}

// Clone deep-copies the config
func (c *StyleConfig) Clone() *StyleConfig {
	out := *c
	out.Params = maps.Clone(c.Params)
	if out.Params == nil {
		out.Params = map[string]float64{}
	}
	return &out
}

// Merge overlays the parameters of other onto a copy of c
func (c *StyleConfig) Merge(other *StyleConfig) *StyleConfig {
	out := c.Clone()
	if other == nil {
		return out
	}
	out.Intensity = other.Intensity
	if other.Seed != 0 {
		out.Seed = other.Seed
	}
	maps.Copy(out.Params, other.Params)
	return out
}

// rngFor returns the random source of one frame
func rngFor(cfg *StyleConfig, frame *video.Frame) *rand.Rand {
	if cfg.Seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(cfg.Seed, uint64(frame.Timestamp*1000)))
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// vignette darkens pixels with the square of their normalized distance from the centre
func vignette(frame *video.Frame, strength float64) {
	if strength <= 0 {
		return
	}
	w, h := frame.Width(), frame.Height()
	cx, cy := float64(w-1)/2, float64(h-1)/2
	maxD := cx*cx + cy*cy
	if maxD == 0 {
		return
	}

	for y := range h {
		dy := float64(y) - cy
		for x := range w {
			dx := float64(x) - cx
			f := 1 - strength*(dx*dx+dy*dy)/maxD
			r, g, b := frame.RGB(x, y)
			frame.SetRGB(x, y, clamp8(float64(r)*f), clamp8(float64(g)*f), clamp8(float64(b)*f))
		}
	}
}

func luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
