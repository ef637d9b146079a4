package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Arc is a circular arc defined by a center point, radius, start angle and
// signed sweep.  StartAngle is normalized to [0, 2pi); the sweep sign encodes
// direction (negative = clockwise) and a magnitude of 2pi denotes a full
// circle.  The remaining fields are derived.
type Arc struct {
	Cx, Cy     float64
	Radius     float64
	StartAngle float64
	Sweep      float64

	EndAngle   float64
	X1, Y1     float64
	X2, Y2     float64
	Clockwise  bool
	Major      bool
	Length     float64
	Bounds     Rectangle
	Intersects bool
}

// NewArc builds an arc from a center point, radius, start angle and sweep.
// A sweep of 0 denotes a full circle in the counterclockwise direction.
func NewArc(cx, cy, radius, startAngle, sweep float64) (Arc, error) {
	if radius <= 0 {
		return Arc{}, errors.New("geometry: arc radius must be greater than 0")
	}

	a := Arc{
		Cx:         cx,
		Cy:         cy,
		Radius:     radius,
		StartAngle: NormalizeRadians(startAngle),
		Sweep:      sweep,
	}

	if a.Sweep < 0 {
		a.Sweep = -NormalizeRadians(-a.Sweep)
		if a.Sweep == 0 {
			a.Sweep = -twoPi
		}
	} else {
		a.Sweep = NormalizeRadians(a.Sweep)
		if a.Sweep == 0 {
			a.Sweep = twoPi
		}
	}

	a.compute()
	return a, nil
}

// ArcFromRadius builds an arc from a radius, start point, end point and
// direction.  A positive radius yields the shorter of the two candidate arcs
// in the given direction; a negative radius mirrors the center across the
// chord to produce the longer one.
func ArcFromRadius(radius, x1, y1, x2, y2 float64, clockwise bool) (Arc, error) {
	if radius == 0 {
		return Arc{}, errors.New("geometry: arc radius cannot be 0")
	}
	if x1 == x2 && y1 == y2 {
		return Arc{}, errors.New("geometry: arc end points cannot be identical")
	}

	// clockwise -1/1, counterclockwise 1/-1
	e := 1.0
	if clockwise != (radius < 0) {
		e = -1
	}

	deltaX := x2 - x1
	deltaY := y2 - y1
	dist := math.Hypot(deltaX, deltaY)
	halfDist := dist / 2

	if halfDist > math.Abs(radius) {
		return Arc{}, errors.New(
			"geometry: arc radius cannot be less than half the distance between the end points")
	}

	// Midpoint of the chord between the two end points
	midX := (x1 + x2) / 2
	midY := (y1 + y2) / 2

	// Distance from the chord midpoint to the arc pivot point
	h2 := (radius - halfDist) * (radius + halfDist)
	h := 0.0
	if h2 > 0 {
		h = math.Sqrt(h2)
	}

	// Slope of the perpendicular bisector
	sx := -deltaY / dist
	sy := deltaX / dist

	return ArcFromCenter(midX+e*h*sx, midY+e*h*sy, x1, y1, x2, y2, clockwise)
}

// ArcFromCenter builds an arc from a center point, the two end points of the
// arc and a direction.  The radius is taken as the distance from the center
// to the start point; the end point only contributes its angle.
func ArcFromCenter(cx, cy, x1, y1, x2, y2 float64, clockwise bool) (Arc, error) {
	radius := math.Hypot(x1-cx, y1-cy)
	startAngle := math.Atan2(y1-cy, x1-cx)
	endAngle := math.Atan2(y2-cy, x2-cx)
	return ArcFromAngles(cx, cy, radius, startAngle, endAngle, clockwise)
}

// ArcFromAngles builds an arc from a center point, radius, start and end
// angles and a direction.
func ArcFromAngles(cx, cy, radius, startAngle, endAngle float64, clockwise bool) (Arc, error) {
	sweep := NormalizeRadians(endAngle - startAngle)
	if clockwise {
		sweep -= twoPi
	}
	return NewArc(cx, cy, radius, startAngle, sweep)
}

// compute fills in the fields derived from center, radius, start angle and
// sweep.
func (a *Arc) compute() {
	a.X1 = math.Cos(a.StartAngle)*a.Radius + a.Cx
	a.Y1 = math.Sin(a.StartAngle)*a.Radius + a.Cy

	a.EndAngle = a.StartAngle + a.Sweep
	a.X2 = math.Cos(a.EndAngle)*a.Radius + a.Cx
	a.Y2 = math.Sin(a.EndAngle)*a.Radius + a.Cy

	a.Clockwise = a.Sweep < 0

	absSweep := math.Abs(a.Sweep)
	a.Major = absSweep > math.Pi
	a.Length = absSweep * a.Radius

	a.Bounds = a.computeBounds()
}

// computeBounds computes the minimum axis-aligned bounding rectangle for the
// arc via quadrant-crossing tests, rather than the naive circle bound.
func (a *Arc) computeBounds() Rectangle {
	// Normalize to counterclockwise
	sweep := a.Sweep
	var x1, y1, x2, y2, startAngle float64
	if sweep < 0 {
		sweep = -sweep
		x1, y1, x2, y2 = a.X2, a.Y2, a.X1, a.Y1
		startAngle = NormalizeRadians(a.EndAngle)
	} else {
		x1, y1, x2, y2 = a.X1, a.Y1, a.X2, a.Y2
		startAngle = a.StartAngle
	}

	endAngle := startAngle + sweep

	// Top (+y)
	maxY := math.Max(y1, y2)
	if startAngle < piQ1 && piQ1 < endAngle {
		maxY = a.Cy + a.Radius
	}

	// Left (-x)
	minX := math.Min(x1, x2)
	if startAngle < piQ2 && piQ2 < endAngle {
		minX = a.Cx - a.Radius
	}

	// Bottom (-y)
	minY := math.Min(y1, y2)
	if startAngle < piQ3 && piQ3 < endAngle {
		minY = a.Cy - a.Radius
	}

	// Right (+x)
	maxX := math.Max(x1, x2)
	if endAngle > twoPi {
		maxX = a.Cx + a.Radius
	}

	return NewRectangle(minX, minY, maxX, maxY)
}

func (a Arc) String() string {
	return fmt.Sprintf("Arc[(%v, %v) radius=%v startAngle=%v sweep=%v]",
		a.Cx, a.Cy, a.Radius, a.StartAngle, a.Sweep)
}

// Equal compares the defining fields of two arcs within Epsilon.
func (a Arc) Equal(o Arc) bool {
	return FloatCmp(a.Cx, o.Cx) == 0 && FloatCmp(a.Cy, o.Cy) == 0 &&
		FloatCmp(a.Radius, o.Radius) == 0 &&
		FloatCmp(a.StartAngle, o.StartAngle) == 0 &&
		FloatCmp(a.Sweep, o.Sweep) == 0
}

// RoundValues returns a copy with the defining fields rounded to the given
// number of decimal places and the derived fields recomputed.
func (a Arc) RoundValues(places int) Arc {
	r := Arc{
		Cx:         round(a.Cx, places),
		Cy:         round(a.Cy, places),
		Radius:     round(a.Radius, places),
		StartAngle: round(a.StartAngle, places),
		Sweep:      round(a.Sweep, places),
		Intersects: a.Intersects,
	}
	r.compute()
	return r
}

// AngleToSweep converts an absolute angle to a sweep offset relative to the
// arc's start angle, signed to match the arc's direction.
func (a Arc) AngleToSweep(angle float64) float64 {
	angle = NormalizeRadians(angle) - a.StartAngle
	if a.Clockwise {
		if angle > 0 {
			angle -= twoPi
		}
	} else if angle < 0 {
		angle += twoPi
	}
	return angle
}

// ContainsAngle reports whether the given angle falls within the angular span
// of the arc.
func (a Arc) ContainsAngle(angle float64) bool {
	sweep := a.AngleToSweep(angle)
	if a.Clockwise {
		return sweep >= a.Sweep
	}
	return sweep <= a.Sweep
}

// subArc carves out the portion of the arc between two sweep offsets relative
// to the arc's start angle.
func subArc(a Arc, fromSweep, toSweep float64, intersects bool) Arc {
	piece := Arc{
		Cx:         a.Cx,
		Cy:         a.Cy,
		Radius:     a.Radius,
		StartAngle: NormalizeRadians(a.StartAngle + fromSweep),
		Sweep:      toSweep - fromSweep,
		Intersects: intersects,
	}
	piece.compute()
	return piece
}

// walkArcSweeps builds the ordered partition of an arc from a set of boundary
// crossing sweep offsets.  Offsets are sorted in traversal order (descending
// when clockwise) and walked, emitting contiguous sub-arcs with alternating
// Intersects flags, seeded by whether the arc's start point lies inside the
// splitting shape.
func walkArcSweeps(arc Arc, sweeps []float64, startInside bool) []Arc {
	sortSweeps(sweeps, arc.Clockwise)

	intersects := startInside
	lastSweep := 0.0

	var result []Arc
	for _, sweep := range sweeps {
		if FloatCmp(lastSweep, sweep) != 0 {
			result = append(result, subArc(arc, lastSweep, sweep, intersects))
		}
		intersects = !intersects
		lastSweep = sweep
	}
	if FloatCmp(lastSweep, arc.Sweep) != 0 {
		result = append(result, subArc(arc, lastSweep, arc.Sweep, intersects))
	}

	if len(result) == 0 {
		a := arc
		a.Intersects = startInside
		result = []Arc{a}
	}
	return result
}

func sortSweeps(sweeps []float64, descending bool) {
	// Insertion sort; crossing counts are tiny (at most 8).
	for i := 1; i < len(sweeps); i++ {
		for j := i; j > 0; j-- {
			if descending == (sweeps[j] > sweeps[j-1]) {
				sweeps[j], sweeps[j-1] = sweeps[j-1], sweeps[j]
			} else {
				break
			}
		}
	}
}
