package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/retro-compositor/algorithms/common"
	"github.com/RyanBlaney/retro-compositor/algorithms/windowing"
)

// FrameTransform turns mono samples into a sequence of Hann-windowed magnitude spectra.
// Frames start at 0, H, 2H, ... while the start lies inside the buffer; a tail shorter
// than the window is zero-padded. Each frame has windowSize/2+1 bins.
type FrameTransform struct {
	windowSize int
	hopSize    int
	window     *windowing.Hann
	transform  Transform

	frame  []float64
	coeffs []complex128
	mag    []float64
}

// FrameOption customizes a FrameTransform
type FrameOption func(*FrameTransform)

// WithTransform replaces the default gonum-planned transform
func WithTransform(t Transform) FrameOption {
	return func(ft *FrameTransform) {
		ft.transform = t
	}
}

// NewFrameTransform validates the frame geometry and plans the transform
func NewFrameTransform(windowSize, hopSize int, opts ...FrameOption) (*FrameTransform, error) {
	if !common.IsPowerOfTwo(windowSize) {
		return nil, fmt.Errorf("window size must be a power of two, got %d", windowSize)
	}
	if hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("hop size must be in (0, %d], got %d", windowSize, hopSize)
	}

	ft := &FrameTransform{
		windowSize: windowSize,
		hopSize:    hopSize,
		window:     windowing.NewHann(windowSize, true),
		frame:      make([]float64, windowSize),
		mag:        make([]float64, windowSize/2+1),
	}
	for _, opt := range opts {
		opt(ft)
	}

	if ft.transform == nil {
		planned, err := NewPlannedFFT(windowSize)
		if err != nil {
			return nil, err
		}
		ft.transform = planned
	}
	if ft.transform.Size() != windowSize {
		return nil, fmt.Errorf("transform size (%d) doesn't match window size (%d)", ft.transform.Size(), windowSize)
	}

	return ft, nil
}

// WindowSize returns the frame length in samples
func (ft *FrameTransform) WindowSize() int { return ft.windowSize }

// HopSize returns the distance between frame starts in samples
func (ft *FrameTransform) HopSize() int { return ft.hopSize }

// Bins returns the number of magnitude bins per frame
func (ft *FrameTransform) Bins() int { return ft.windowSize/2 + 1 }

// NumFrames returns how many frames ForEach produces for n samples
func (ft *FrameTransform) NumFrames(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + ft.hopSize - 1) / ft.hopSize
}

// ForEach computes the frames lazily, one at a time, and hands each magnitude
// vector to fn. The slice is reused between calls; fn must copy it to keep it.
// The first error from the transform or from fn stops the iteration.
func (ft *FrameTransform) ForEach(samples []float64, fn func(index int, magnitude []float64) error) error {
	for idx := 0; idx*ft.hopSize < len(samples); idx++ {
		mag, err := ft.computeFrame(samples, idx*ft.hopSize)
		if err != nil {
			return fmt.Errorf("frame %d: %w", idx, err)
		}
		if err := fn(idx, mag); err != nil {
			return err
		}
	}
	return nil
}

// computeFrame converts a panicking backend into an error
func (ft *FrameTransform) computeFrame(samples []float64, start int) (mag []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()

	n := copy(ft.frame, samples[start:])
	clear(ft.frame[n:])

	if err := ft.window.ApplyInPlace(ft.frame); err != nil {
		return nil, err
	}

	ft.coeffs, err = ft.transform.Coefficients(ft.coeffs, ft.frame)
	if err != nil {
		return nil, err
	}

	for i, c := range ft.coeffs {
		ft.mag[i] = cmplx.Abs(c)
	}
	return ft.mag, nil
}

// Spectrogram computes every frame with a pool of workers. Each worker owns a
// private FrameTransform, since planned transforms are not safe to share.
// The result is [frames][bins].
func (ft *FrameTransform) Spectrogram(samples []float64) ([][]float64, error) {
	numFrames := ft.NumFrames(len(samples))
	if numFrames == 0 {
		return [][]float64{}, nil
	}

	spectrogram := make([][]float64, numFrames)
	numWorkers := getOptimalWorkerCount(numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for range numWorkers {
		worker, err := NewFrameTransform(ft.windowSize, ft.hopSize)
		if err != nil {
			return nil, err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for frameIdx := range jobs {
				mag, err := worker.computeFrame(samples, frameIdx*ft.hopSize)
				if err != nil {
					errs <- fmt.Errorf("frame %d: %w", frameIdx, err)
					return
				}
				row := make([]float64, len(mag))
				copy(row, mag)
				spectrogram[frameIdx] = row
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	return spectrogram, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
