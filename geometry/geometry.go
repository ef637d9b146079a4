// Package geometry implements the 2D primitives and clipping algorithms used
// to test tool paths against exclusion areas: line segments, circular arcs,
// circles and axis-aligned rectangles, plus exact intersection splitting of
// segments and arcs against rectangles and circles.
package geometry

import "math"

// Epsilon is the tolerance applied to all floating point comparisons, chosen
// to suppress spurious splits caused by rounding noise.
const Epsilon = 5e-8

// RoundPlaces is the default number of decimal places used by RoundValues.
const RoundPlaces = 7

const (
	twoPi = 2 * math.Pi
	piQ1  = math.Pi / 2
	piQ2  = math.Pi
	piQ3  = math.Pi * 1.5
)

// FloatCmp performs a three-way comparison of two floats, treating values
// closer than Epsilon as equal.  Returns -1, 0 or 1.
func FloatCmp(a, b float64) int {
	d := a - b
	switch {
	case math.Abs(d) < Epsilon:
		return 0
	case d < 0:
		return -1
	default:
		return 1
	}
}

// NormalizeRadians normalizes an angle in radians to the range [0, 2pi).
func NormalizeRadians(angle float64) float64 {
	r := math.Mod(angle, twoPi)
	if r < 0 {
		r += twoPi
	}
	return r
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
