package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Circle is a circle given by its center point and radius.
type Circle struct {
	Cx, Cy float64
	Radius float64
}

// NewCircle builds a Circle, rejecting non-positive radii.
func NewCircle(cx, cy, radius float64) (Circle, error) {
	if radius <= 0 {
		return Circle{}, errors.New("geometry: circle radius must be greater than 0")
	}
	return Circle{Cx: cx, Cy: cy, Radius: radius}, nil
}

func (c Circle) String() string {
	return fmt.Sprintf("Circle[(%v, %v) radius=%v]", c.Cx, c.Cy, c.Radius)
}

// Equal compares two circles within Epsilon.
func (c Circle) Equal(o Circle) bool {
	return FloatCmp(c.Cx, o.Cx) == 0 && FloatCmp(c.Cy, o.Cy) == 0 &&
		FloatCmp(c.Radius, o.Radius) == 0
}

// RoundValues returns a copy with all values rounded to the given number of
// decimal places.
func (c Circle) RoundValues(places int) Circle {
	return Circle{
		Cx:     round(c.Cx, places),
		Cy:     round(c.Cy, places),
		Radius: round(c.Radius, places),
	}
}

// ContainsPoint reports whether the point (x, y) falls inside the circle.
func (c Circle) ContainsPoint(x, y float64) bool {
	return c.Radius >= math.Hypot(x-c.Cx, y-c.Cy)
}

// ContainsRect reports whether a rectangle is fully contained in the circle.
func (c Circle) ContainsRect(r Rectangle) bool {
	return c.ContainsPoint(r.X1, r.Y1) &&
		c.ContainsPoint(r.X2, r.Y1) &&
		c.ContainsPoint(r.X2, r.Y2) &&
		c.ContainsPoint(r.X1, r.Y2)
}

// normalizedDotProd projects the point (x, y) onto the segment, yielding 0 at
// the segment start and 1 at the segment end.
func normalizedDotProd(seg Segment, x, y float64) float64 {
	dx := seg.X2 - seg.X1
	dy := seg.Y2 - seg.Y1
	return ((x-seg.X1)*dx + (y-seg.Y1)*dy) / (dx*dx + dy*dy)
}

// SegmentDifference splits a segment at the circle boundary using the closed
// form circle-line intersection.  The result is an ordered partition of the
// original segment into 1 to 3 non-degenerate pieces whose Intersects flags
// strictly alternate.  A non-positive discriminant (no crossing, or single
// point tangency) produces no split.
func (c Circle) SegmentDifference(seg Segment) []Segment {
	// https://mathworld.wolfram.com/Circle-LineIntersection.html
	// Work in coordinates relative to the circle center.
	x1 := seg.X1 - c.Cx
	y1 := seg.Y1 - c.Cy
	x2 := seg.X2 - c.Cx
	y2 := seg.Y2 - c.Cy

	dx := x2 - x1
	dy := y2 - y1
	dr2 := dx*dx + dy*dy
	d := x1*y2 - x2*y1

	whole := func() []Segment {
		piece := seg
		piece.Intersects = c.ContainsPoint(seg.X1, seg.Y1) && c.ContainsPoint(seg.X2, seg.Y2)
		return []Segment{piece}
	}

	discriminant := c.Radius*c.Radius*dr2 - d*d
	if discriminant <= 0 || dr2 == 0 {
		return whole()
	}

	srDisc := math.Sqrt(discriminant)
	sdydxDisc := dx * srDisc
	if dy < 0 {
		sdydxDisc = -sdydxDisc
	}
	adyDisc := math.Abs(dy) * srDisc

	ix1 := (d*dy+sdydxDisc)/dr2 + c.Cx
	iy1 := (-d*dx+adyDisc)/dr2 + c.Cy
	ix2 := (d*dy-sdydxDisc)/dr2 + c.Cx
	iy2 := (-d*dx-adyDisc)/dr2 + c.Cy

	dp1 := normalizedDotProd(seg, ix1, iy1)
	dp2 := normalizedDotProd(seg, ix2, iy2)
	if dp2 < dp1 {
		dp1, dp2 = dp2, dp1
		ix1, iy1, ix2, iy2 = ix2, iy2, ix1, iy1
	}

	if FloatCmp(dp1, dp2) == 0 {
		// Degenerate tangency; treated as no intersection.
		return whole()
	}

	var pieces []Segment
	lastX, lastY := seg.X1, seg.Y1

	// The region between the two crossings is the inside one, so the segment
	// start is inside exactly when it falls between them.
	inside := dp1 <= 0 && dp2 > 0

	appendPiece := func(x, y float64) {
		piece := NewSegment(lastX, lastY, x, y)
		piece.Intersects = inside
		pieces = append(pieces, piece)
		lastX, lastY = x, y
		inside = !inside
	}

	if 0 < dp1 && dp1 < 1 {
		appendPiece(ix1, iy1)
	}
	if 0 < dp2 && dp2 < 1 {
		appendPiece(ix2, iy2)
	}
	appendPiece(seg.X2, seg.Y2)

	return compactSegments(pieces)
}

// computeArcIntSweeps computes the sweep offsets at which this circle's
// boundary crosses the given arc, using the radical line construction for
// the circle-circle intersection.
func (c Circle) computeArcIntSweeps(arc Arc) []float64 {
	// http://math.stackexchange.com/a/1367732
	centerDx := c.Cx - arc.Cx
	centerDy := c.Cy - arc.Cy

	dist := math.Hypot(centerDx, centerDy)
	if dist == 0 || math.Abs(c.Radius-arc.Radius) > dist || dist > c.Radius+arc.Radius {
		return nil
	}

	dist2 := dist * dist
	dist4 := dist2 * dist2

	r2r2 := c.Radius*c.Radius - arc.Radius*arc.Radius
	a := r2r2 / (2 * dist2)
	cc := math.Sqrt(2*(c.Radius*c.Radius+arc.Radius*arc.Radius)/dist2 - (r2r2*r2r2)/dist4 - 1)

	fx := (c.Cx+arc.Cx)/2 + a*(arc.Cx-c.Cx)
	gx := cc * (arc.Cy - c.Cy) / 2
	fy := (c.Cy+arc.Cy)/2 + a*(arc.Cy-c.Cy)
	gy := cc * (c.Cx - arc.Cx) / 2

	if gx == 0 && gy == 0 {
		// Circles are tangent; single point tangency is ignored.
		return nil
	}

	var result []float64
	if angle := math.Atan2(fy+gy-arc.Cy, fx+gx-arc.Cx); arc.ContainsAngle(angle) {
		result = append(result, arc.AngleToSweep(angle))
	}
	if angle := math.Atan2(fy-gy-arc.Cy, fx-gx-arc.Cx); arc.ContainsAngle(angle) {
		result = append(result, arc.AngleToSweep(angle))
	}
	return result
}

// ArcDifference splits an arc at the circle boundary.  Crossing angles are
// found via the circle-circle intersection, converted to sweep offsets and
// walked in traversal order, producing contiguous sub-arcs with alternating
// Intersects flags.
func (c Circle) ArcDifference(arc Arc) []Arc {
	sweeps := c.computeArcIntSweeps(arc)
	return walkArcSweeps(arc, sweeps, c.ContainsPoint(arc.X1, arc.Y1))
}
