package spectral

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestBackendsAgree(t *testing.T) {
	const n = 256
	frame := sine(1000, 8000, n)
	for i := range frame {
		frame[i] += 0.25 * math.Cos(float64(i)*0.3)
	}

	planned, err := NewPlannedFFT(n)
	require.NoError(t, err)
	a, err := planned.Coefficients(nil, frame)
	require.NoError(t, err)

	b, err := NewFFT(n).Coefficients(nil, frame)
	require.NoError(t, err)

	require.Len(t, a, n/2+1)
	require.Len(t, b, n/2+1)
	for i := range a {
		assert.InDelta(t, cmplx.Abs(a[i]), cmplx.Abs(b[i]), 1e-9, "bin %d", i)
	}
}

func TestTransformRejectsWrongLength(t *testing.T) {
	planned, err := NewPlannedFFT(64)
	require.NoError(t, err)
	_, err = planned.Coefficients(nil, make([]float64, 32))
	assert.Error(t, err)

	_, err = NewFFT(64).Coefficients(nil, make([]float64, 32))
	assert.Error(t, err)

	_, err = NewPlannedFFT(0)
	assert.Error(t, err)
}

func TestNewFrameTransformValidation(t *testing.T) {
	_, err := NewFrameTransform(1000, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "power of two")

	_, err = NewFrameTransform(1024, 2048)
	assert.Error(t, err)

	_, err = NewFrameTransform(1024, 0)
	assert.Error(t, err)

	_, err = NewFrameTransform(1024, 512, WithTransform(NewFFT(512)))
	assert.Error(t, err)
}

func TestFrameTransformGeometry(t *testing.T) {
	ft, err := NewFrameTransform(1024, 512)
	require.NoError(t, err)

	samples := sine(440, 44100, 5000)
	var count int
	err = ft.ForEach(samples, func(index int, magnitude []float64) error {
		assert.Equal(t, count, index)
		assert.Len(t, magnitude, 513)
		count++
		return nil
	})
	require.NoError(t, err)

	// starts 0..4608 every 512 samples, the tail frames are zero-padded
	assert.Equal(t, 10, count)
	assert.Equal(t, 10, ft.NumFrames(len(samples)))
	assert.Equal(t, 0, ft.NumFrames(0))
	assert.Equal(t, 513, ft.Bins())
}

func TestFrameTransformPeakBin(t *testing.T) {
	const sampleRate = 8192
	ft, err := NewFrameTransform(1024, 1024)
	require.NoError(t, err)

	// 1000 Hz lands exactly on bin 125 at 8 Hz resolution
	samples := sine(1000, sampleRate, 1024)
	err = ft.ForEach(samples, func(_ int, magnitude []float64) error {
		best := 0
		for i, m := range magnitude {
			if m > magnitude[best] {
				best = i
			}
		}
		assert.Equal(t, 125, best)
		return nil
	})
	require.NoError(t, err)
}

func TestFrameTransformCallbackError(t *testing.T) {
	ft, err := NewFrameTransform(256, 128)
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = ft.ForEach(make([]float64, 2048), func(int, []float64) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

type panickyTransform struct{}

func (panickyTransform) Size() int { return 256 }
func (panickyTransform) Coefficients([]complex128, []float64) ([]complex128, error) {
	panic("planner exploded")
}

func TestFrameTransformRecoversFromPanic(t *testing.T) {
	ft, err := NewFrameTransform(256, 128, WithTransform(panickyTransform{}))
	require.NoError(t, err)

	err = ft.ForEach(make([]float64, 512), func(int, []float64) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planner exploded")
}

func TestSpectrogramMatchesForEach(t *testing.T) {
	ft, err := NewFrameTransform(512, 256)
	require.NoError(t, err)

	samples := sine(300, 22050, 22050)
	for i := range samples {
		samples[i] *= float64(i%700) / 700
	}

	parallel, err := ft.Spectrogram(samples)
	require.NoError(t, err)
	require.Len(t, parallel, ft.NumFrames(len(samples)))

	err = ft.ForEach(samples, func(index int, magnitude []float64) error {
		assert.InDeltaSlice(t, magnitude, parallel[index], 1e-9)
		return nil
	})
	require.NoError(t, err)

	empty, err := ft.Spectrogram(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSpectralFlux(t *testing.T) {
	sf := NewSpectralFlux(3)

	assert.InDelta(t, 6.0, sf.Next([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 0.0, sf.Next([]float64{1, 2, 3}), 1e-12, "identical frames have no flux")
	assert.InDelta(t, 0.0, sf.Next([]float64{0, 0, 0}), 1e-12, "decreases are rectified away")
	assert.InDelta(t, 2.0, sf.Next([]float64{0, 2, 0}), 1e-12)

	sf.Reset()
	assert.InDelta(t, 2.0, sf.Next([]float64{0, 2, 0}), 1e-12)

	curve := NewSpectralFlux(0).Compute([][]float64{{1, 1}, {2, 0}, {2, 3}})
	assert.InDeltaSlice(t, []float64{2, 1, 3}, curve, 1e-12)
	for _, v := range curve {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestCentroidAndRolloff(t *testing.T) {
	sc := NewSpectralCentroid(8000)
	sr := NewSpectralRolloff(8000)

	// all magnitude in bin 2 of 4 bins: 2/4 * 4000
	spectrum := []float64{0, 0, 1, 0}
	assert.InDelta(t, 2000.0, sc.Compute(spectrum), 1e-9)
	assert.InDelta(t, 2000.0, sr.Compute(spectrum, DefaultRolloffThreshold), 1e-9)

	flat := []float64{1, 1, 1, 1}
	assert.InDelta(t, 1.5/4*4000, sc.Compute(flat), 1e-9)
	// 85% of 4 is 3.4, reached at bin 3
	assert.InDelta(t, 3000.0, sr.Compute(flat, DefaultRolloffThreshold), 1e-9)

	assert.Zero(t, sc.Compute([]float64{0, 0}))
	assert.Zero(t, sr.Compute(nil, 0.85))
	assert.Len(t, sc.ComputeFrames([][]float64{flat, spectrum}), 2)
	assert.Len(t, sr.ComputeFrames([][]float64{flat}, 0.85), 1)
}
