package spectral

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform computes the one-sided spectrum (size/2+1 bins) of a real frame.
// Implementations hold their own planning state; nothing is shared globally.
type Transform interface {
	Size() int
	Coefficients(dst []complex128, frame []float64) ([]complex128, error)
}

// PlannedFFT is a per-size transform context backed by gonum's dsp/fourier.
// Twiddle factors are computed once in NewPlannedFFT and reused for every frame.
// A PlannedFFT is not safe for concurrent use.
type PlannedFFT struct {
	size int
	plan *fourier.FFT
}

// NewPlannedFFT creates a transform context for frames of exactly size samples
func NewPlannedFFT(size int) (*PlannedFFT, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fft size must be positive, got %d", size)
	}
	return &PlannedFFT{size: size, plan: fourier.NewFFT(size)}, nil
}

func (p *PlannedFFT) Size() int {
	return p.size
}

func (p *PlannedFFT) Coefficients(dst []complex128, frame []float64) ([]complex128, error) {
	if len(frame) != p.size {
		return nil, fmt.Errorf("frame length (%d) doesn't match fft size (%d)", len(frame), p.size)
	}
	if cap(dst) < p.size/2+1 {
		dst = make([]complex128, p.size/2+1)
	}
	return p.plan.Coefficients(dst[:p.size/2+1], frame), nil
}

// FFT is a stateless transform backed by mjibson/go-dsp.
// It handles any frame length and is safe for concurrent use.
type FFT struct {
	size int
}

// NewFFT creates a go-dsp backed transform for frames of size samples
func NewFFT(size int) *FFT {
	return &FFT{size: size}
}

func (f *FFT) Size() int {
	return f.size
}

func (f *FFT) Coefficients(dst []complex128, frame []float64) ([]complex128, error) {
	if len(frame) != f.size || f.size == 0 {
		return nil, fmt.Errorf("frame length (%d) doesn't match fft size (%d)", len(frame), f.size)
	}

	full := fft.FFTReal(frame)
	bins := f.size/2 + 1
	if cap(dst) < bins {
		dst = make([]complex128, bins)
	}
	dst = dst[:bins]
	copy(dst, full[:bins])
	return dst, nil
}
