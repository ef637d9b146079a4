package position

// Position bundles the axis state of the X, Y, Z and E axes.  The extruder
// axis starts at a known zero; the movement axes are unknown until homed.
type Position struct {
	X, Y, Z, E *Axis
}

// New builds a Position with unknown movement axes and the extruder at zero.
func New() *Position {
	return &Position{
		X: NewAxis(),
		Y: NewAxis(),
		Z: NewAxis(),
		E: NewAxisAt(0),
	}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	return &Position{
		X: p.X.Clone(),
		Y: p.Y.Clone(),
		Z: p.Z.Clone(),
		E: p.E.Clone(),
	}
}

// SetUnitMultiplier assigns the logical unit conversion factor on all axes
// (G20/G21).
func (p *Position) SetUnitMultiplier(unitMultiplier float64) {
	p.X.SetUnitMultiplier(unitMultiplier)
	p.Y.SetUnitMultiplier(unitMultiplier)
	p.Z.SetUnitMultiplier(unitMultiplier)
	p.E.SetUnitMultiplier(unitMultiplier)
}

// SetPositionAbsoluteMode switches the movement axes between absolute and
// relative positioning (G90/G91).
func (p *Position) SetPositionAbsoluteMode(absolute bool) {
	p.X.SetAbsoluteMode(absolute)
	p.Y.SetAbsoluteMode(absolute)
	p.Z.SetAbsoluteMode(absolute)
}

// SetExtruderAbsoluteMode switches the extruder axis between absolute and
// relative positioning (M82/M83).
func (p *Position) SetExtruderAbsoluteMode(absolute bool) {
	p.E.SetAbsoluteMode(absolute)
}
