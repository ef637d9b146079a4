package exclude

import (
	"log/slog"
	"math"

	"gcodefilter/gcode"
	"gcodefilter/geometry"
)

// DefaultMinArcSegmentLength is the default chord length, in native units,
// used when subdividing G2/G3 arcs into linear segments for exclusion tests.
const DefaultMinArcSegmentLength = 1.0

const maxArcSegments = 512

// Handlers interprets parsed commands, updates the engine state and decides
// what to forward.  Only the commands that affect position, units, retraction
// or exclusion are intercepted; everything else passes through untouched.
type Handlers struct {
	log   *slog.Logger
	state *State

	minArcSegmentLength float64

	dispatch map[string]func(*gcode.Line) ([]string, bool)
}

// NewHandlers builds the command dispatch table around the given engine
// state.
func NewHandlers(state *State, log *slog.Logger, minArcSegmentLength float64) *Handlers {
	if minArcSegmentLength <= 0 {
		minArcSegmentLength = DefaultMinArcSegmentLength
	}

	h := &Handlers{
		log:                 log,
		state:               state,
		minArcSegmentLength: minArcSegmentLength,
	}
	h.dispatch = map[string]func(*gcode.Line) ([]string, bool){
		"G0":   h.handleLinearMove,
		"G1":   h.handleLinearMove,
		"G2":   h.handleArcMove,
		"G3":   h.handleArcMove,
		"G10":  h.handleFirmwareRetract,
		"G11":  h.handleFirmwareRecover,
		"G20":  h.handleInches,
		"G21":  h.handleMillimeters,
		"G28":  h.handleHome,
		"G90":  h.handleAbsoluteMode,
		"G91":  h.handleRelativeMode,
		"G92":  h.handleSetPosition,
		"M206": h.handleSetHomeOffsets,
	}
	return h
}

// State returns the engine state driven by these handlers.
func (h *Handlers) State() *State {
	return h.state
}

// HandleGcode processes one parsed command line.  When handled is true the
// returned commands replace the original line, an empty result meaning the
// line is suppressed; when handled is false the original line passes through
// unchanged.
func (h *Handlers) HandleGcode(line *gcode.Line) (result []string, handled bool) {
	word := line.Gcode()
	if word == "" {
		return nil, false
	}
	h.state.CountCommand()

	if handler, ok := h.dispatch[word]; ok {
		return handler(line)
	}

	if h.state.ProcessExtendedGcode(line.CommandString(), word) {
		return nil, true
	}
	return nil, false
}

// HandleAtCommand processes an at-command ("@ExcludeRegion disable") against
// the configured actions, returning any commands the triggered actions
// produced and whether any action matched.
func (h *Handlers) HandleAtCommand(command, parameters string) ([]string, bool) {
	var result []string
	matched := false

	for _, action := range h.state.AtCommandActions[command] {
		if !action.Matches(command, parameters) {
			continue
		}
		matched = true
		h.log.Debug("at-command action triggered",
			"command", command, "parameters", parameters, "action", action.Action)

		context := "@" + command
		if parameters != "" {
			context += " " + parameters
		}
		switch action.Action {
		case EnableExclusion:
			h.state.EnableExclusion(context)
		case DisableExclusion:
			result = append(result, h.state.DisableExclusion(context)...)
		}
	}
	return result, matched
}

// moveArgs collects the axis arguments of a move command.
type moveArgs struct {
	x, y, z, e, f *float64
	i, j, r       *float64
}

func parseMoveArgs(line *gcode.Line) moveArgs {
	var args moveArgs
	for param := range line.ParameterItems() {
		if !param.HasValue {
			continue
		}
		v := param.Value
		switch param.Letter {
		case 'X':
			args.x = &v
		case 'Y':
			args.y = &v
		case 'Z':
			args.z = &v
		case 'E':
			args.e = &v
		case 'F':
			args.f = &v
		case 'I':
			args.i = &v
		case 'J':
			args.j = &v
		case 'R':
			args.r = &v
		}
	}
	return args
}

// handleLinearMove covers G0 and G1.
func (h *Handlers) handleLinearMove(line *gcode.Line) ([]string, bool) {
	args := parseMoveArgs(line)
	return h.state.ProcessLinearMoves(
		line.CommandString(), args.e, args.f, args.z, args.x, args.y), true
}

// handleArcMove covers G2 (clockwise) and G3 (counterclockwise).  The arc is
// subdivided into linear waypoints so exclusion testing and region
// entry/exit detection reuse the linear move path.
func (h *Handlers) handleArcMove(line *gcode.Line) ([]string, bool) {
	clockwise := line.Code == 2
	args := parseMoveArgs(line)

	curX := h.state.position.X.CurrentLogical()
	curY := h.state.position.Y.CurrentLogical()
	endX, endY := curX, curY
	if args.x != nil {
		endX = *args.x
	}
	if args.y != nil {
		endY = *args.y
	}

	var (
		arc geometry.Arc
		err error
	)
	switch {
	case args.r != nil:
		arc, err = geometry.ArcFromRadius(*args.r, curX, curY, endX, endY, clockwise)
	case args.i != nil || args.j != nil:
		cx, cy := curX, curY
		if args.i != nil {
			cx += *args.i
		}
		if args.j != nil {
			cy += *args.j
		}
		arc, err = geometry.ArcFromCenter(cx, cy, curX, curY, endX, endY, clockwise)
	default:
		h.log.Warn("arc move without R or I/J arguments, passing through",
			"cmd", line.CommandString())
		return nil, false
	}
	if err != nil {
		h.log.Warn("unable to interpret arc move, passing through",
			"cmd", line.CommandString(), "error", err)
		return nil, false
	}

	xyPairs := h.planArc(arc, endX, endY)
	return h.state.ProcessLinearMoves(
		line.CommandString(), args.e, args.f, args.z, xyPairs...), true
}

// planArc subdivides an arc into logical x,y waypoint pairs, ending exactly
// on the commanded end point.
func (h *Handlers) planArc(arc geometry.Arc, endX, endY float64) []*float64 {
	segments := int(math.Ceil(arc.Length / h.minArcSegmentLength))
	if segments < 1 {
		segments = 1
	}
	if segments > maxArcSegments {
		segments = maxArcSegments
	}

	pairs := make([]*float64, 0, 2*segments)
	for i := 1; i < segments; i++ {
		angle := arc.StartAngle + arc.Sweep*float64(i)/float64(segments)
		x := arc.Cx + arc.Radius*math.Cos(angle)
		y := arc.Cy + arc.Radius*math.Sin(angle)
		pairs = append(pairs, &x, &y)
	}
	return append(pairs, &endX, &endY)
}

// handleFirmwareRetract covers G10.  The P and L forms configure tool or
// workspace offsets rather than retracting, and pass through untouched.
func (h *Handlers) handleFirmwareRetract(line *gcode.Line) ([]string, bool) {
	for param := range line.ParameterItems() {
		if param.Letter == 'P' || param.Letter == 'L' {
			return nil, false
		}
	}
	return h.state.RecordRetraction(NewFirmwareRetraction(line.CommandString())), true
}

// handleFirmwareRecover covers G11.
func (h *Handlers) handleFirmwareRecover(line *gcode.Line) ([]string, bool) {
	return h.state.RecoverRetractionIfNeeded(line.CommandString(), true), true
}

// handleInches covers G20.
func (h *Handlers) handleInches(line *gcode.Line) ([]string, bool) {
	h.state.SetUnitMultiplier(25.4)
	return nil, false
}

// handleMillimeters covers G21.
func (h *Handlers) handleMillimeters(line *gcode.Line) ([]string, bool) {
	h.state.SetUnitMultiplier(1)
	return nil, false
}

// handleHome covers G28.  Axes named as flags are homed; with no axis
// arguments all three movement axes home.
func (h *Handlers) handleHome(line *gcode.Line) ([]string, bool) {
	pos := h.state.position
	homeX, homeY, homeZ := false, false, false
	for param := range line.ParameterItems() {
		switch param.Letter {
		case 'X':
			homeX = true
		case 'Y':
			homeY = true
		case 'Z':
			homeZ = true
		}
	}
	if !homeX && !homeY && !homeZ {
		homeX, homeY, homeZ = true, true, true
	}

	if homeX {
		pos.X.SetHome()
	}
	if homeY {
		pos.Y.SetHome()
	}
	if homeZ {
		pos.Z.SetHome()
	}
	return nil, false
}

// handleAbsoluteMode covers G90.
func (h *Handlers) handleAbsoluteMode(line *gcode.Line) ([]string, bool) {
	h.state.SetAbsoluteMode(true)
	return nil, false
}

// handleRelativeMode covers G91.
func (h *Handlers) handleRelativeMode(line *gcode.Line) ([]string, bool) {
	h.state.SetAbsoluteMode(false)
	return nil, false
}

// handleSetPosition covers G92.  The extruder axis tracks the new logical
// value directly; the movement axes absorb the difference into their
// coordinate system offset, since no physical motion occurs.
func (h *Handlers) handleSetPosition(line *gcode.Line) ([]string, bool) {
	pos := h.state.position
	for param := range line.ParameterItems() {
		if !param.HasValue {
			continue
		}
		switch param.Letter {
		case 'E':
			pos.E.SetLogicalPosition(param.Value)
		case 'X':
			pos.X.SetLogicalOffsetPosition(param.Value)
		case 'Y':
			pos.Y.SetLogicalOffsetPosition(param.Value)
		case 'Z':
			pos.Z.SetLogicalOffsetPosition(param.Value)
		}
	}
	return nil, false
}

// handleSetHomeOffsets covers M206.
func (h *Handlers) handleSetHomeOffsets(line *gcode.Line) ([]string, bool) {
	pos := h.state.position
	for param := range line.ParameterItems() {
		if !param.HasValue {
			continue
		}
		switch param.Letter {
		case 'X':
			pos.X.SetHomeOffset(param.Value)
		case 'Y':
			pos.Y.SetHomeOffset(param.Value)
		case 'Z':
			pos.Z.SetHomeOffset(param.Value)
		}
	}
	return nil, false
}
