package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the analysis stages, backed by gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Max returns the largest value, or 0 for an empty slice
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Max(data)
}

// Sum returns the sum of all values
func Sum(data []float64) float64 {
	return floats.Sum(data)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Peak returns the largest absolute sample value
func Peak(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose signs differ.
// Zero counts as positive.
func ZeroCrossingRate(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}

	crossings := 0
	for i := 1; i < len(data); i++ {
		if (data[i-1] >= 0) != (data[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(data)-1)
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NearestIndex returns the index of the value in ascending `sorted` closest to x.
// Ties resolve to the earlier index. Returns -1 for an empty slice.
func NearestIndex(sorted []float64, x float64) int {
	if len(sorted) == 0 {
		return -1
	}

	i := sort.SearchFloat64s(sorted, x)
	switch {
	case i == 0:
		return 0
	case i == len(sorted):
		return len(sorted) - 1
	}

	if math.Abs(sorted[i-1]-x) <= math.Abs(sorted[i]-x) {
		return i - 1
	}
	return i
}
