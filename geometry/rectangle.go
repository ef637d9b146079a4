package geometry

import (
	"fmt"
	"math"
)

// Outcode bits for Cohen-Sutherland segment clipping.
const (
	outInside = 0
	outLeft   = 1
	outRight  = 2
	outBottom = 4
	outTop    = 8
)

// Rectangle is an axis-aligned rectangle.  Corners are normalized at
// construction so that X1 <= X2 and Y1 <= Y2.
type Rectangle struct {
	X1, Y1, X2, Y2 float64
}

// NewRectangle builds a Rectangle from two opposite corners, given in any
// order.
func NewRectangle(x1, y1, x2, y2 float64) Rectangle {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Rectangle{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("Rectangle[(%v, %v)->(%v, %v)]", r.X1, r.Y1, r.X2, r.Y2)
}

// Equal compares two rectangles within Epsilon.
func (r Rectangle) Equal(o Rectangle) bool {
	return FloatCmp(r.X1, o.X1) == 0 && FloatCmp(r.Y1, o.Y1) == 0 &&
		FloatCmp(r.X2, o.X2) == 0 && FloatCmp(r.Y2, o.Y2) == 0
}

// RoundValues returns a copy with all coordinates rounded to the given number
// of decimal places.
func (r Rectangle) RoundValues(places int) Rectangle {
	return Rectangle{
		X1: round(r.X1, places),
		Y1: round(r.Y1, places),
		X2: round(r.X2, places),
		Y2: round(r.Y2, places),
	}
}

// ContainsPoint reports whether the point (x, y) falls inside the rectangle.
func (r Rectangle) ContainsPoint(x, y float64) bool {
	return r.X1 <= x && x <= r.X2 && r.Y1 <= y && y <= r.Y2
}

// ContainsRect reports whether another rectangle is fully contained in this
// one.
func (r Rectangle) ContainsRect(o Rectangle) bool {
	return o.X1 >= r.X1 && o.X2 <= r.X2 && o.Y1 >= r.Y1 && o.Y2 <= r.Y2
}

// IntersectsRect reports whether another rectangle overlaps this one.
func (r Rectangle) IntersectsRect(o Rectangle) bool {
	return o.X2 > r.X1 && o.X1 < r.X2 && o.Y2 > r.Y1 && o.Y1 < r.Y2
}

// outCode computes the Cohen-Sutherland outcode for the point (x, y) relative
// to this rectangle.
func (r Rectangle) outCode(x, y float64) int {
	code := outInside
	if x < r.X1 {
		code = outLeft
	} else if x > r.X2 {
		code = outRight
	}
	if y < r.Y1 {
		code |= outBottom
	} else if y > r.Y2 {
		code |= outTop
	}
	return code
}

// SegmentDifference splits a segment at the rectangle boundary using
// Cohen-Sutherland clipping.  The result is an ordered partition of the
// original segment into 1 to 3 non-degenerate pieces whose Intersects flags
// strictly alternate.
func (r Rectangle) SegmentDifference(seg Segment) []Segment {
	x0, y0, x1, y1 := seg.X1, seg.Y1, seg.X2, seg.Y2

	outcode0 := r.outCode(x0, y0)
	outcode1 := r.outCode(x1, y1)

	var result []Segment
	for {
		if outcode0|outcode1 == 0 {
			// Both points inside the window.
			piece := NewSegment(x0, y0, x1, y1)
			piece.Intersects = true

			switch len(result) {
			case 0: // Entirely contained
				result = append(result, piece)
			case 2: // Middle portion contained
				result = append(result[:1], append([]Segment{piece}, result[1:]...)...)
			default:
				if x1 == result[0].X1 && y1 == result[0].Y1 {
					// Starting portion contained
					result = append([]Segment{piece}, result...)
				} else {
					// Ending portion contained
					result = append(result, piece)
				}
			}
			break
		}

		if outcode0&outcode1 != 0 {
			// Both points share an outside zone; no intersection.
			piece := NewSegment(x0, y0, x1, y1)
			result = append(result, piece)
			break
		}

		// Clip the segment from an outside point to the violated edge.
		outcodeOut := outcode0
		if outcode1 > outcode0 {
			outcodeOut = outcode1
		}

		var x, y float64
		switch {
		case outcodeOut&outTop != 0:
			x = x0 + (x1-x0)*(r.Y2-y0)/(y1-y0)
			y = r.Y2
		case outcodeOut&outBottom != 0:
			x = x0 + (x1-x0)*(r.Y1-y0)/(y1-y0)
			y = r.Y1
		case outcodeOut&outRight != 0:
			y = y0 + (y1-y0)*(r.X2-x0)/(x1-x0)
			x = r.X2
		default: // outLeft
			y = y0 + (y1-y0)*(r.X1-x0)/(x1-x0)
			x = r.X1
		}

		if outcodeOut == outcode0 {
			piece := NewSegment(x0, y0, x, y)
			result = append([]Segment{piece}, result...)
			x0, y0 = x, y
			outcode0 = r.outCode(x0, y0)
		} else {
			piece := NewSegment(x, y, x1, y1)
			result = append(result, piece)
			x1, y1 = x, y
			outcode1 = r.outCode(x1, y1)
		}
	}

	result = compactSegments(result)
	if len(result) == 0 {
		// Degenerate input segment
		piece := seg
		piece.Intersects = r.ContainsPoint(seg.X1, seg.Y1)
		result = []Segment{piece}
	}
	return result
}

// arcVertIntSweeps computes the sweep offsets at which the arc crosses the
// vertical rectangle edge at the given x, limited to the rectangle's vertical
// extent and the arc's angular span.
func (r Rectangle) arcVertIntSweeps(x float64, arc Arc) []float64 {
	// (x - cx)^2 + (y - cy)^2 = radius^2, solved for y
	dx := x - arc.Cx
	if math.Abs(dx) > arc.Radius {
		return nil
	}

	sr := math.Sqrt(arc.Radius*arc.Radius - dx*dx)

	var result []float64
	if y := arc.Cy + sr; r.Y1 <= y && y <= r.Y2 {
		if angle := math.Atan2(sr, dx); arc.ContainsAngle(angle) {
			result = append(result, arc.AngleToSweep(angle))
		}
	}
	if y := arc.Cy - sr; sr != 0 && r.Y1 <= y && y <= r.Y2 {
		if angle := math.Atan2(-sr, dx); arc.ContainsAngle(angle) {
			result = append(result, arc.AngleToSweep(angle))
		}
	}
	return result
}

// arcHorizIntSweeps computes the sweep offsets at which the arc crosses the
// horizontal rectangle edge at the given y.
func (r Rectangle) arcHorizIntSweeps(y float64, arc Arc) []float64 {
	dy := y - arc.Cy
	if math.Abs(dy) > arc.Radius {
		return nil
	}

	sr := math.Sqrt(arc.Radius*arc.Radius - dy*dy)

	var result []float64
	if x := arc.Cx + sr; r.X1 <= x && x <= r.X2 {
		if angle := math.Atan2(dy, sr); arc.ContainsAngle(angle) {
			result = append(result, arc.AngleToSweep(angle))
		}
	}
	if x := arc.Cx - sr; sr != 0 && r.X1 <= x && x <= r.X2 {
		if angle := math.Atan2(dy, -sr); arc.ContainsAngle(angle) {
			result = append(result, arc.AngleToSweep(angle))
		}
	}
	return result
}

// ArcDifference splits an arc at the rectangle boundary.  For each rectangle
// edge the arc's bounding box crosses, the vertical/horizontal line-circle
// intersection is solved in closed form; crossing angles inside the arc's
// span become sweep offsets which are walked in traversal order, producing
// contiguous sub-arcs with alternating Intersects flags.
func (r Rectangle) ArcDifference(arc Arc) []Arc {
	if !r.IntersectsRect(arc.Bounds) {
		a := arc
		a.Intersects = false
		return []Arc{a}
	}

	if r.ContainsRect(arc.Bounds) {
		a := arc
		a.Intersects = true
		return []Arc{a}
	}

	var sweeps []float64
	if arc.Bounds.X1 < r.X1 {
		sweeps = append(sweeps, r.arcVertIntSweeps(r.X1, arc)...)
	}
	if arc.Bounds.X2 > r.X2 {
		sweeps = append(sweeps, r.arcVertIntSweeps(r.X2, arc)...)
	}
	if arc.Bounds.Y1 < r.Y1 {
		sweeps = append(sweeps, r.arcHorizIntSweeps(r.Y1, arc)...)
	}
	if arc.Bounds.Y2 > r.Y2 {
		sweeps = append(sweeps, r.arcHorizIntSweeps(r.Y2, arc)...)
	}

	return walkArcSweeps(arc, sweeps, r.ContainsPoint(arc.X1, arc.Y1))
}
