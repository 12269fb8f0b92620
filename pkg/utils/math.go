package utils

import (
	"math"
)

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampVector clamps every coordinate of v into [min, max] in place and returns v
func ClampVector(v []float64, min, max float64) []float64 {
	for i := range v {
		v[i] = ClampFloat64(v[i], min, max)
	}
	return v
}

// Mean calculates the mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Sum calculates the sum of a slice of float64 values
func Sum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// Round rounds a float64 to the specified number of decimal places
func Round(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}

// RoundPartial rounds value to the nearest multiple of resolution.
// A non-positive resolution leaves the value untouched.
func RoundPartial(value, resolution float64) float64 {
	if resolution <= 0 {
		return value
	}
	return Round(math.Round(value/resolution)*resolution, 10)
}

// EuclideanDistance returns the L2 distance between two equal-length vectors.
// It returns NaN when the lengths differ.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// AlmostEqual reports whether a and b differ by at most eps
func AlmostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
