// Package exclude implements the exclusion engine: a sequential state machine
// that tracks tool position and retraction state, tests move waypoints
// against user-defined exclusion regions and decides, command by command,
// what to emit to the printer.
package exclude

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"gcodefilter/geometry"
)

// Layer marks a print layer by height and ordinal number.
type Layer struct {
	Height float64 `json:"height" yaml:"height"`
	Number float64 `json:"number" yaml:"number"`
}

// Region is a 2D exclusion area, optionally bounded to a layer height range.
type Region interface {
	ID() string
	ContainsPoint(x, y, z float64) bool
	ContainsRegion(other Region) bool
	InHeightRange(z float64) bool
	Record() Record
	Clone() Region
}

// Record is the plain tagged representation of a region, used for
// persistence and transport.
type Record struct {
	Type     string  `json:"type" yaml:"type"`
	ID       string  `json:"id,omitempty" yaml:"id,omitempty"`
	MinLayer *Layer  `json:"minLayer,omitempty" yaml:"minLayer,omitempty"`
	MaxLayer *Layer  `json:"maxLayer,omitempty" yaml:"maxLayer,omitempty"`
	X1       float64 `json:"x1,omitempty" yaml:"x1,omitempty"`
	Y1       float64 `json:"y1,omitempty" yaml:"y1,omitempty"`
	X2       float64 `json:"x2,omitempty" yaml:"x2,omitempty"`
	Y2       float64 `json:"y2,omitempty" yaml:"y2,omitempty"`
	CX       float64 `json:"cx,omitempty" yaml:"cx,omitempty"`
	CY       float64 `json:"cy,omitempty" yaml:"cy,omitempty"`
	R        float64 `json:"r,omitempty" yaml:"r,omitempty"`
}

const (
	recordRectangular = "rectangular"
	recordCircular    = "circular"
)

// regionBounds is the layer-height bound and identity shared by all region
// shapes.
type regionBounds struct {
	id       string
	minLayer Layer
	maxLayer *Layer
}

func newRegionBounds(id string, minLayer *Layer, maxLayer *Layer) regionBounds {
	b := regionBounds{id: id}
	if b.id == "" {
		b.id = uuid.NewString()
	}
	if minLayer != nil {
		b.minLayer = *minLayer
	}
	if maxLayer != nil {
		ml := *maxLayer
		b.maxLayer = &ml
	}
	return b
}

func (b *regionBounds) ID() string { return b.id }

// InHeightRange reports whether the given Z height falls within the region's
// layer bounds.  The region is unbounded above when no max layer is set.
func (b *regionBounds) InHeightRange(z float64) bool {
	if z < b.minLayer.Height {
		return false
	}
	return b.maxLayer == nil || z <= b.maxLayer.Height
}

func (b *regionBounds) fillRecord(r *Record) {
	r.ID = b.id
	if b.minLayer != (Layer{}) {
		ml := b.minLayer
		r.MinLayer = &ml
	}
	if b.maxLayer != nil {
		ml := *b.maxLayer
		r.MaxLayer = &ml
	}
}

// RectangularRegion is an axis-aligned rectangular exclusion area.
type RectangularRegion struct {
	regionBounds
	geometry.Rectangle
}

// NewRectangularRegion builds a rectangular region from two opposite corners.
// An empty id is replaced with a fresh unique one.
func NewRectangularRegion(id string, x1, y1, x2, y2 float64) *RectangularRegion {
	return &RectangularRegion{
		regionBounds: newRegionBounds(id, nil, nil),
		Rectangle:    geometry.NewRectangle(x1, y1, x2, y2),
	}
}

func (r *RectangularRegion) String() string {
	return fmt.Sprintf("RectangularRegion[id=%s %v]", r.id, r.Rectangle)
}

// ContainsPoint reports whether the given point falls inside the region.
func (r *RectangularRegion) ContainsPoint(x, y, z float64) bool {
	return r.InHeightRange(z) && r.Rectangle.ContainsPoint(x, y)
}

// ContainsRegion reports whether another region's area is fully contained in
// this one.
func (r *RectangularRegion) ContainsRegion(other Region) bool {
	switch o := other.(type) {
	case *RectangularRegion:
		return r.Rectangle.ContainsRect(o.Rectangle)
	case *CircularRegion:
		return r.Rectangle.ContainsRect(circleBounds(o.Circle))
	}
	return false
}

// Record returns the plain tagged representation of the region.
func (r *RectangularRegion) Record() Record {
	rec := Record{
		Type: recordRectangular,
		X1:   r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2,
	}
	r.fillRecord(&rec)
	return rec
}

// Clone returns a copy of the region.
func (r *RectangularRegion) Clone() Region {
	c := *r
	return &c
}

// CircularRegion is a circular exclusion area.
type CircularRegion struct {
	regionBounds
	geometry.Circle
}

// NewCircularRegion builds a circular region from a center point and radius.
// An empty id is replaced with a fresh unique one.
func NewCircularRegion(id string, cx, cy, radius float64) (*CircularRegion, error) {
	circle, err := geometry.NewCircle(cx, cy, radius)
	if err != nil {
		return nil, err
	}
	return &CircularRegion{
		regionBounds: newRegionBounds(id, nil, nil),
		Circle:       circle,
	}, nil
}

func (c *CircularRegion) String() string {
	return fmt.Sprintf("CircularRegion[id=%s %v]", c.id, c.Circle)
}

// ContainsPoint reports whether the given point falls inside the region.
func (c *CircularRegion) ContainsPoint(x, y, z float64) bool {
	return c.InHeightRange(z) && c.Circle.ContainsPoint(x, y)
}

// ContainsRegion reports whether another region's area is fully contained in
// this one.
func (c *CircularRegion) ContainsRegion(other Region) bool {
	switch o := other.(type) {
	case *RectangularRegion:
		return c.Circle.ContainsRect(o.Rectangle)
	case *CircularRegion:
		return math.Hypot(c.Cx-o.Cx, c.Cy-o.Cy)+o.Radius <= c.Radius
	}
	return false
}

// Record returns the plain tagged representation of the region.
func (c *CircularRegion) Record() Record {
	rec := Record{
		Type: recordCircular,
		CX:   c.Cx, CY: c.Cy, R: c.Radius,
	}
	c.fillRecord(&rec)
	return rec
}

// Clone returns a copy of the region.
func (c *CircularRegion) Clone() Region {
	clone := *c
	return &clone
}

// RegionFromRecord reconstructs a region from its tagged record form.
func RegionFromRecord(rec Record) (Region, error) {
	bounds := newRegionBounds(rec.ID, rec.MinLayer, rec.MaxLayer)

	switch rec.Type {
	case recordRectangular:
		return &RectangularRegion{
			regionBounds: bounds,
			Rectangle:    geometry.NewRectangle(rec.X1, rec.Y1, rec.X2, rec.Y2),
		}, nil
	case recordCircular:
		circle, err := geometry.NewCircle(rec.CX, rec.CY, rec.R)
		if err != nil {
			return nil, err
		}
		return &CircularRegion{regionBounds: bounds, Circle: circle}, nil
	}
	return nil, fmt.Errorf("exclude: unknown region type %q", rec.Type)
}

func circleBounds(c geometry.Circle) geometry.Rectangle {
	return geometry.NewRectangle(c.Cx-c.Radius, c.Cy-c.Radius, c.Cx+c.Radius, c.Cy+c.Radius)
}
