package geometry

import (
	"fmt"
	"math"
)

// Segment is a 2D line segment.  Length and Bounds are derived at
// construction.  Intersects is only meaningful on pieces returned by the
// difference operations, where it marks pieces inside the splitting shape.
type Segment struct {
	X1, Y1, X2, Y2 float64
	Length         float64
	Bounds         Rectangle
	Intersects     bool
}

// NewSegment builds a Segment from its two end points.
func NewSegment(x1, y1, x2, y2 float64) Segment {
	return Segment{
		X1: x1, Y1: y1, X2: x2, Y2: y2,
		Length: math.Hypot(x1-x2, y1-y2),
		Bounds: NewRectangle(x1, y1, x2, y2),
	}
}

func (s Segment) String() string {
	return fmt.Sprintf("Segment[(%v, %v)->(%v, %v)]", s.X1, s.Y1, s.X2, s.Y2)
}

// Equal compares the end points of two segments within Epsilon.
func (s Segment) Equal(o Segment) bool {
	return FloatCmp(s.X1, o.X1) == 0 && FloatCmp(s.Y1, o.Y1) == 0 &&
		FloatCmp(s.X2, o.X2) == 0 && FloatCmp(s.Y2, o.Y2) == 0
}

// RoundValues returns a copy with the end points rounded to the given number
// of decimal places and the derived values recomputed.
func (s Segment) RoundValues(places int) Segment {
	r := NewSegment(
		round(s.X1, places),
		round(s.Y1, places),
		round(s.X2, places),
		round(s.Y2, places),
	)
	r.Intersects = s.Intersects
	return r
}

// compactSegments drops zero-length pieces and joins adjacent pieces with the
// same Intersects flag, preserving the strict flag alternation of a
// difference result.
func compactSegments(pieces []Segment) []Segment {
	result := pieces[:0]
	for _, p := range pieces {
		if p.Length < Epsilon {
			continue
		}
		if n := len(result); n > 0 && result[n-1].Intersects == p.Intersects {
			joined := NewSegment(result[n-1].X1, result[n-1].Y1, p.X2, p.Y2)
			joined.Intersects = p.Intersects
			result[n-1] = joined
			continue
		}
		result = append(result, p)
	}
	return result
}
