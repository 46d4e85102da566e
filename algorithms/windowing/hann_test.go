package windowing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannSymmetricMatchesFormula(t *testing.T) {
	const n = 1024
	h := NewHann(n, true)
	coeffs := h.GetCoefficients()
	require.Len(t, coeffs, n)

	for i, c := range coeffs {
		want := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		assert.InDelta(t, want, c, 1e-12, "coefficient %d", i)
	}

	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 0.0, coeffs[n-1], 1e-12)
	assert.Equal(t, "hann", h.GetType())
	assert.Equal(t, n, h.GetSize())
}

func TestHannPeriodic(t *testing.T) {
	h := NewHann(8, false)
	coeffs := h.GetCoefficients()

	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 1.0, coeffs[4], 1e-12)
	assert.Greater(t, coeffs[7], 0.0)
}

func TestHannApply(t *testing.T) {
	h := NewHann(4, true)

	signal := []float64{1, 1, 1, 1}
	windowed := h.Apply(signal)
	require.NotNil(t, windowed)
	assert.Equal(t, []float64{1, 1, 1, 1}, signal, "Apply must not modify its input")
	assert.InDeltaSlice(t, h.GetCoefficients(), windowed, 1e-12)

	assert.Nil(t, h.Apply([]float64{1, 2}))
	assert.Error(t, h.ApplyInPlace([]float64{1, 2}))

	require.NoError(t, h.ApplyInPlace(signal))
	assert.InDeltaSlice(t, windowed, signal, 1e-12)
}
