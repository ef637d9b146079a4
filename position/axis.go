// Package position tracks printer axis positions across coordinate systems:
// logical positions as commanded in the G-code stream (possibly in inches,
// possibly relative) versus native machine positions in millimeters relative
// to the home and workspace offsets.
package position

import "fmt"

// Axis holds the position state of a single axis (X, Y, Z or E).  Current,
// HomeOffset and Offset are stored in native units (mm); Known is false until
// the axis position has been established by a homing or set-position command.
type Axis struct {
	Current    float64
	Known      bool
	HomeOffset float64
	Offset     float64

	// AbsoluteMode reports whether commanded positions are absolute (G90)
	// or relative (G91).
	AbsoluteMode bool

	// UnitMultiplier converts logical units to mm (25.4 when G20 is active).
	UnitMultiplier float64
}

// NewAxis builds an Axis with an unknown position in absolute millimeter
// mode.
func NewAxis() *Axis {
	return &Axis{AbsoluteMode: true, UnitMultiplier: 1}
}

// NewAxisAt builds an Axis with a known native position.
func NewAxisAt(current float64) *Axis {
	return &Axis{Current: current, Known: true, AbsoluteMode: true, UnitMultiplier: 1}
}

// Clone returns a copy of the axis state.
func (a *Axis) Clone() *Axis {
	c := *a
	return &c
}

func (a *Axis) String() string {
	if !a.Known {
		return fmt.Sprintf("Axis[unknown homeOffset=%v offset=%v]", a.HomeOffset, a.Offset)
	}
	return fmt.Sprintf("Axis[current=%v homeOffset=%v offset=%v]", a.Current, a.HomeOffset, a.Offset)
}

// SetAbsoluteMode switches between absolute and relative positioning.
func (a *Axis) SetAbsoluteMode(absolute bool) {
	a.AbsoluteMode = absolute
}

// SetUnitMultiplier assigns the conversion factor from logical units to mm.
func (a *Axis) SetUnitMultiplier(unitMultiplier float64) {
	a.UnitMultiplier = unitMultiplier
}

// SetHome resets the axis to the home position (G28).
func (a *Axis) SetHome() {
	a.Current = 0
	a.Offset = 0
	a.Known = true
}

// SetHomeOffset assigns a new home offset in logical units (M206), keeping
// the physical position fixed.
func (a *Axis) SetHomeOffset(homeOffset float64) {
	a.Current += a.HomeOffset
	a.HomeOffset = homeOffset * a.UnitMultiplier
	a.Current -= a.HomeOffset
}

// SetLogicalOffsetPosition adjusts the workspace offset so the current
// physical position reads as the given logical position (G92).  No physical
// motion occurs.
func (a *Axis) SetLogicalOffsetPosition(pos float64) {
	a.Offset += a.Current - a.LogicalToNative(pos)
}

// SetLogicalPosition moves the axis to the given logical position and
// returns the new native position.
func (a *Axis) SetLogicalPosition(pos float64) float64 {
	a.Current = a.LogicalToNative(pos)
	a.Known = true
	return a.Current
}

// LogicalToNative converts a logical position to native units, applying the
// unit multiplier, the offsets in effect and the positioning mode.
func (a *Axis) LogicalToNative(value float64) float64 {
	value *= a.UnitMultiplier
	if a.AbsoluteMode {
		return value + a.Offset + a.HomeOffset
	}
	return value + a.Current
}

// NativeToLogical converts a native position back to logical units.
func (a *Axis) NativeToLogical(value float64) float64 {
	if a.AbsoluteMode {
		value -= a.Offset + a.HomeOffset
	} else {
		value -= a.Current
	}
	return value / a.UnitMultiplier
}

// CurrentLogical returns the current position expressed in logical units.
func (a *Axis) CurrentLogical() float64 {
	return a.NativeToLogical(a.Current)
}
