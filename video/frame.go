// Package video holds frames, clip metadata and output parameters of the
// compositor.
package video

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Frame is one RGBA video frame. Effects mutate Image in place.
type Frame struct {
	Image     *image.RGBA
	Timestamp float64
}

// NewFrame allocates a black, opaque frame
func NewFrame(width, height int, timestamp float64) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return &Frame{Image: img, Timestamp: timestamp}
}

// NewFilledFrame allocates a frame of a single colour
func NewFilledFrame(width, height int, c color.RGBA, timestamp float64) *Frame {
	f := NewFrame(width, height, timestamp)
	pix := f.Image.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, 0xff
	}
	return f
}

// FromImage converts any decoded image into a Frame
func FromImage(src image.Image, timestamp float64) *Frame {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return &Frame{Image: rgba, Timestamp: timestamp}
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return &Frame{Image: dst, Timestamp: timestamp}
}

func (f *Frame) Width() int  { return f.Image.Rect.Dx() }
func (f *Frame) Height() int { return f.Image.Rect.Dy() }

// RGB returns the colour channels at (x, y)
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := f.Image.PixOffset(x, y)
	p := f.Image.Pix[i : i+3 : i+3]
	return p[0], p[1], p[2]
}

// SetRGB writes an opaque pixel at (x, y)
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := f.Image.PixOffset(x, y)
	p := f.Image.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = r, g, b, 0xff
}

// Clone deep-copies the frame
func (f *Frame) Clone() *Frame {
	img := image.NewRGBA(f.Image.Rect)
	copy(img.Pix, f.Image.Pix)
	return &Frame{Image: img, Timestamp: f.Timestamp}
}

// Resize scales the frame with nearest-neighbour sampling. A frame that already
// has the requested size is cloned.
func (f *Frame) Resize(width, height int) *Frame {
	if f.Width() == width && f.Height() == height {
		return f.Clone()
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), f.Image, f.Image.Bounds(), xdraw.Src, nil)
	return &Frame{Image: dst, Timestamp: f.Timestamp}
}
