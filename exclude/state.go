package exclude

import (
	"log/slog"
	"time"

	"gcodefilter/gcode"
	"gcodefilter/position"
)

// pendingCommand is a queued replay entry for a command suppressed while
// excluding under the first/last/merge policies.  For merge entries, args
// accumulates the last value seen per parameter; otherwise command holds the
// original command string verbatim.
type pendingCommand struct {
	gcode   string
	command string
	args    []gcode.Parameter
	merged  bool
}

// State is the exclusion engine state machine.  It is strictly sequential:
// one command is fully processed before the next is accepted, and it performs
// no internal locking.
type State struct {
	log *slog.Logger

	// Configuration, owned by the host and consumed read-only.
	G90InfluencesExtruder       bool
	EnteringExcludedRegionGcode []string
	ExitingExcludedRegionGcode  []string
	ExtendedExcludeGcodes       map[string]ExcludedGcode
	AtCommandActions            map[string][]*AtCommandAction

	Regions *Repository

	position               *position.Position
	feedRate               float64
	feedRateUnitMultiplier float64
	exclusionEnabled       bool
	excluding              bool
	excludeStartTime       time.Time
	numCommands            int
	numExcludedCommands    int
	lastRetraction         *RetractionState
	lastPosition           *position.Position
	pendingCommands        []pendingCommand
}

// NewState builds an exclusion engine with no regions defined and exclusion
// enabled.
func NewState(log *slog.Logger) *State {
	s := &State{
		log:                   log,
		ExtendedExcludeGcodes: map[string]ExcludedGcode{},
		AtCommandActions:      map[string][]*AtCommandAction{},
		Regions:               NewRepository(),
	}
	s.ResetState(true)
	return s
}

// ResetState resets the print state to defaults, typically before a new print
// starts.  The defined regions are cleared only when requested.
func (s *State) ResetState(clearRegions bool) {
	if clearRegions {
		s.Regions.Clear()
	}
	s.position = position.New()
	s.feedRate = 0
	s.feedRateUnitMultiplier = 1
	s.exclusionEnabled = true
	s.excluding = false
	s.excludeStartTime = time.Time{}
	s.numCommands = 0
	s.numExcludedCommands = 0
	s.lastRetraction = nil
	s.lastPosition = nil
	s.pendingCommands = nil
}

// Position returns the tracked tool position.
func (s *State) Position() *position.Position {
	return s.position
}

// Excluding reports whether the tool is currently inside an excluded region.
func (s *State) Excluding() bool {
	return s.excluding
}

// ExclusionEnabled reports whether exclusion processing is enabled.
func (s *State) ExclusionEnabled() bool {
	return s.exclusionEnabled
}

// CommandCount returns the number of commands inspected and the number
// suppressed for the current exclusion region.
func (s *State) CommandCount() (total, excluded int) {
	return s.numCommands, s.numExcludedCommands
}

// CountCommand adds one to the inspected command counter.
func (s *State) CountCommand() {
	s.numCommands++
}

// EnableExclusion enables exclusion processing.  Enabling is idempotent.
func (s *State) EnableExclusion(context string) {
	if s.exclusionEnabled {
		s.log.Debug("exclusion already enabled", "context", context)
		return
	}
	s.log.Info("exclusion enabled", "context", context)
	s.exclusionEnabled = true
}

// DisableExclusion disables exclusion processing.  If the tool is currently
// inside an excluded region the exit synthesis runs immediately; the
// returned commands must be sent to the printer.
func (s *State) DisableExclusion(context string) []string {
	if !s.exclusionEnabled {
		s.log.Debug("exclusion already disabled", "context", context)
		return nil
	}
	s.log.Info("exclusion disabled", "context", context)
	s.exclusionEnabled = false

	if s.excluding {
		return s.ExitExcludedRegion(context)
	}
	return nil
}

// SetUnitMultiplier sets the conversion factor from logical units to native
// units (G20/G21) for all axes and the feed rate.
func (s *State) SetUnitMultiplier(unitMultiplier float64) {
	s.feedRateUnitMultiplier = unitMultiplier
	s.position.SetUnitMultiplier(unitMultiplier)
}

// SetAbsoluteMode sets absolute mode for the movement axes, and for the
// extruder too when configured to follow (G90/G91).
func (s *State) SetAbsoluteMode(absolute bool) {
	s.position.SetPositionAbsoluteMode(absolute)
	if s.G90InfluencesExtruder {
		s.position.SetExtruderAbsoluteMode(absolute)
	}
}

// isPointExcluded tests a point in native units against the enabled regions.
func (s *State) isPointExcluded(x, y float64) bool {
	if !s.exclusionEnabled {
		return false
	}
	return s.Regions.AnyContains(x, y, s.position.Z.Current)
}

// isAnyPointExcluded walks a sequence of logical x,y waypoint pairs, moving
// the tracked position through each, and reports whether any falls inside an
// enabled region.  Values may be nil to keep an axis unchanged.
func (s *State) isAnyPointExcluded(xyPairs ...*float64) bool {
	if !s.exclusionEnabled {
		return false
	}

	excluded := false
	for i := 0; i+1 < len(xyPairs); i += 2 {
		x := s.position.X.Current
		y := s.position.Y.Current
		if xyPairs[i] != nil {
			x = s.position.X.SetLogicalPosition(*xyPairs[i])
		}
		if xyPairs[i+1] != nil {
			y = s.position.Y.SetLogicalPosition(*xyPairs[i+1])
		}
		if !excluded && s.isPointExcluded(x, y) {
			excluded = true
		}
	}
	return excluded
}

// ignore counts one suppressed command and returns the no-output decision.
func (s *State) ignore() []string {
	s.numExcludedCommands++
	return nil
}

// RecordRetraction processes a detected retraction, deciding whether it is
// passed through, executed explicitly, combined into the previous retraction
// or suppressed.
func (s *State) RecordRetraction(retract *RetractionState) []string {
	switch {
	case s.lastRetraction == nil:
		s.lastRetraction = retract
		if s.excluding {
			// First retraction while excluding still executes, so the
			// filament state matches what recovery will later assume.
			s.log.Info("initial retraction while excluding, executing", "retract", retract)
			return retract.GenerateRetractCommands(s.position)
		}
		return []string{retract.OriginalCommand}

	case s.lastRetraction.RecoverExcluded:
		// The prior recovery was suppressed, so the filament is already
		// retracted; swallow this retraction and clear the pending flag.
		s.lastRetraction.RecoverExcluded = false
		if !s.lastRetraction.FirmwareRetract {
			s.lastRetraction.FeedRate = s.feedRate
		}
		return nil

	case s.lastRetraction.AllowCombine:
		// Repeated retraction without an intervening recovery, as slicers
		// generate around wipe and layer-change moves.
		s.lastRetraction.Combine(retract)
		if s.excluding {
			return retract.GenerateRetractCommands(s.position)
		}
		return []string{retract.OriginalCommand}

	case s.excluding:
		s.log.Debug("suppressing retraction following excluded recovery")
		return nil
	}

	return []string{retract.OriginalCommand}
}

// RecoverRetractionIfNeeded handles a recovery command or an extruding move.
// While excluding, a recovery is deferred for replay on exit and nothing is
// emitted.  Otherwise any pending deferred recovery is prepended to cmd.
func (s *State) RecoverRetractionIfNeeded(cmd string, isRecoveryCommand bool) []string {
	if s.lastRetraction != nil {
		s.lastRetraction.AllowCombine = false

		if s.excluding {
			if isRecoveryCommand {
				s.lastRetraction.RecoverExcluded = true
			}
			return nil
		}
		return s.recoverRetraction(cmd, isRecoveryCommand)
	}

	if s.excluding {
		return nil
	}
	if isRecoveryCommand {
		// A recovery with no matching retraction; slicers emit one at the
		// start of a file to prime the nozzle.
		s.log.Debug("recovery without a corresponding retraction", "cmd", cmd)
	}
	return []string{cmd}
}

func (s *State) recoverRetraction(cmd string, isRecoveryCommand bool) []string {
	lastRetraction := s.lastRetraction
	s.lastRetraction = nil

	var result []string
	if lastRetraction.RecoverExcluded {
		s.log.Info("executing pending recovery for prior retraction", "retract", lastRetraction)
		result = lastRetraction.GenerateRecoverCommands(s.position)

		if isRecoveryCommand {
			s.log.Info("recovery immediately following a pending recovery",
				"cmd", cmd, "retract", lastRetraction)
		}
	}
	return append(result, cmd)
}

// processNonMove handles a command with no X/Y/Z motion: a retraction, a
// recovery, or a bare feed rate change.
func (s *State) processNonMove(cmd string, deltaE float64) []string {
	switch {
	case deltaE < 0:
		retract, err := NewRetraction(cmd, -deltaE, s.feedRate)
		if err != nil {
			s.log.Warn("untrackable retraction", "cmd", cmd, "error", err)
			if s.excluding {
				return nil
			}
			return []string{cmd}
		}
		return s.RecordRetraction(retract)
	case deltaE > 0:
		return s.RecoverRetractionIfNeeded(cmd, true)
	case !s.excluding:
		return []string{cmd}
	}
	return nil
}

// processExcludedMove handles a move with at least one waypoint inside an
// excluded region.
func (s *State) processExcludedMove(cmd string, deltaE float64) []string {
	var result []string
	if !s.excluding {
		result = s.EnterExcludedRegion(cmd)
	}

	if deltaE < 0 {
		// Slic3r can fold retraction into a wipe move; track it even though
		// the move itself is suppressed.
		result = append(result, s.processNonMove(cmd, deltaE)...)
	}
	return result
}

// ProcessLinearMoves updates the position state through a sequence of
// waypoints and decides what to emit.  extruderPosition, feedRate and finalZ
// are logical values, nil when the incoming command omitted them; xyPairs
// holds the logical x,y waypoints in order.  An empty result means the
// command is suppressed.
func (s *State) ProcessLinearMoves(cmd string, extruderPosition, feedRate, finalZ *float64, xyPairs ...*float64) []string {
	eAxis := s.position.E
	priorE := eAxis.Current
	deltaE := 0.0
	if extruderPosition != nil {
		deltaE = eAxis.SetLogicalPosition(*extruderPosition) - priorE
	}

	isMove := finalZ != nil
	if finalZ != nil {
		s.position.Z.SetLogicalPosition(*finalZ)
	}
	if !isMove {
		for _, val := range xyPairs {
			if val != nil {
				isMove = true
				break
			}
		}
	}

	if feedRate != nil {
		s.feedRate = *feedRate * s.feedRateUnitMultiplier
	}

	s.log.Debug("linear moves",
		"cmd", cmd, "isMove", isMove, "deltaE", deltaE,
		"feedRate", s.feedRate, "excluding", s.excluding)

	var result []string
	switch {
	case !isMove:
		// No axis argument at all.  Mirrors the Marlin auto-retract
		// detection, which also ignores moves that name an axis with its
		// current value.
		result = s.processNonMove(cmd, deltaE)
	case s.isAnyPointExcluded(xyPairs...):
		result = s.processExcludedMove(cmd, deltaE)
	case s.excluding:
		result = s.ExitExcludedRegion(cmd)
	case deltaE != 0:
		result = s.RecoverRetractionIfNeeded(cmd, false)
	default:
		result = []string{cmd}
	}

	if len(result) == 0 {
		return s.ignore()
	}
	return result
}

// EnterExcludedRegion transitions to the Excluding state, snapshotting the
// position and resetting the per-region counters.
func (s *State) EnterExcludedRegion(cmd string) []string {
	if s.excluding {
		return nil
	}

	s.excluding = true
	s.excludeStartTime = time.Now()
	s.numCommands = 0
	s.numExcludedCommands = 0
	s.lastPosition = s.position.Clone()
	s.log.Info("start excluding", "cmd", cmd)

	return append([]string(nil), s.EnteringExcludedRegionGcode...)
}

// flushPendingCommands emits the queued replay commands followed by any
// configured exiting script.
func (s *State) flushPendingCommands() []string {
	var result []string
	for _, pending := range s.pendingCommands {
		if pending.merged {
			result = append(result, gcode.Build(pending.gcode, pending.args...))
		} else {
			result = append(result, pending.command)
		}
	}
	s.pendingCommands = nil

	return append(result, s.ExitingExcludedRegionGcode...)
}

// ExitExcludedRegion transitions out of the Excluding state, emitting the
// queued replay commands, any deferred retraction recovery, an extruder
// position resync and the travel moves to the real destination.  The Z axis
// is raised before the XY travel and lowered after it, reducing the chance
// of dragging through printed material.
func (s *State) ExitExcludedRegion(cmd string) []string {
	if !s.excluding {
		return nil
	}
	s.excluding = false

	result := s.flushPendingCommands()

	if s.lastRetraction != nil && s.lastRetraction.RecoverExcluded {
		result = append(result, s.lastRetraction.GenerateRecoverCommands(s.position)...)
		s.lastRetraction = nil
	}

	// Resync the firmware's logical extruder position with everything that
	// was skipped.
	result = append(result,
		gcode.Build("G92", gcode.Param('E', s.position.E.CurrentLogical())))

	feedRate := s.feedRate / s.feedRateUnitMultiplier
	newZ := s.position.Z.CurrentLogical()
	oldZ := s.lastPosition.Z.CurrentLogical()
	moveZ := gcode.Build("G0", gcode.Param('F', feedRate), gcode.Param('Z', newZ))

	if newZ > oldZ {
		result = append(result, moveZ)
	}

	result = append(result, gcode.Build("G0",
		gcode.Param('F', feedRate),
		gcode.Param('X', s.position.X.CurrentLogical()),
		gcode.Param('Y', s.position.Y.CurrentLogical())))

	if newZ < oldZ {
		result = append(result, moveZ)
	}

	s.log.Info("stop excluding",
		"cmd", cmd,
		"commands", s.numCommands,
		"excludedCommands", s.numExcludedCommands,
		"elapsed", time.Since(s.excludeStartTime))

	return result
}

// queuePending inserts or refreshes a replay queue entry, moving a touched
// key to the end so the exit replay reflects most recently touched last.
func (s *State) queuePending(mode, cmd, gcodeWord string) {
	index := -1
	for i := range s.pendingCommands {
		if s.pendingCommands[i].gcode == gcodeWord {
			index = i
			break
		}
	}

	switch mode {
	case ExcludeExceptFirst:
		if index < 0 {
			s.pendingCommands = append(s.pendingCommands, pendingCommand{gcode: gcodeWord, command: cmd})
		}

	case ExcludeExceptLast:
		if index >= 0 {
			s.pendingCommands = append(s.pendingCommands[:index], s.pendingCommands[index+1:]...)
		}
		s.pendingCommands = append(s.pendingCommands, pendingCommand{gcode: gcodeWord, command: cmd})

	case ExcludeMerge:
		entry := pendingCommand{gcode: gcodeWord, merged: true}
		if index >= 0 {
			entry = s.pendingCommands[index]
			s.pendingCommands = append(s.pendingCommands[:index], s.pendingCommands[index+1:]...)
		}

		if line, err := gcode.Parse(cmd); err == nil {
			for param := range line.ParameterItems() {
				entry.args = mergeParam(entry.args, param)
			}
		}
		s.pendingCommands = append(s.pendingCommands, entry)
	}
}

// mergeParam replaces the last value for a parameter letter, appending new
// letters in first-seen order.
func mergeParam(args []gcode.Parameter, param gcode.Parameter) []gcode.Parameter {
	for i := range args {
		if args[i].Letter == param.Letter {
			args[i] = param
			return args
		}
	}
	return append(args, param)
}

// ProcessExtendedGcode applies the configured suppression policy to a
// command while excluding.  It reports whether the command was consumed.
func (s *State) ProcessExtendedGcode(cmd, gcodeWord string) bool {
	if gcodeWord == "" || !s.excluding {
		return false
	}

	entry, ok := s.ExtendedExcludeGcodes[gcodeWord]
	if !ok {
		return false
	}

	s.log.Debug("command suppressed by policy", "mode", entry.Mode, "cmd", cmd)
	if entry.Mode != ExcludeAll {
		s.queuePending(entry.Mode, cmd, gcodeWord)
	}
	s.ignore()
	return true
}
