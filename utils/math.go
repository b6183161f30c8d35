// Package utils contains small helpers shared across the engine.
package utils

import "math"

// Float64AlmostEqual compares two float64s and returns whether their
// difference is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Clamp returns min if value is lesser than min, max if value is greater
// than max, and value otherwise.
func Clamp(value, min, max float64) float64 {
	switch {
	case value < min:
		return min
	case value > max:
		return max
	}
	return value
}

// MaxInt returns the larger of two ints.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MinInt returns the smaller of two ints.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
