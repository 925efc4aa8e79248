// Package sanitize is the single numeric-validation gate for sensor-derived
// values. Every distance, speed or coordinate written by the location,
// trip and diag packages passes through here rather than re-checking inline.
package sanitize

import "math"

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ValidDistance reports whether x is a legal distance value: finite and
// non-negative.
func ValidDistance(x float64) bool {
	return Finite(x) && x >= 0
}

// Distance returns x unchanged when it is a valid distance, 0 otherwise.
// Idempotent: Distance(Distance(x)) == Distance(x).
func Distance(x float64) float64 {
	if !ValidDistance(x) {
		return 0
	}

	return x
}

// Value returns x unchanged when finite, 0 otherwise. Used for values that
// may legitimately be negative (course deltas, altitude).
func Value(x float64) float64 {
	if !Finite(x) {
		return 0
	}

	return x
}
