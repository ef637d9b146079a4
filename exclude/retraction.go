package exclude

import (
	"errors"
	"fmt"
	"strings"

	"gcodefilter/gcode"
	"gcodefilter/position"
)

// RetractionState records a filament retraction that may need to be restored
// later.  Either the retraction is firmware-managed (G10/G11) or it carries
// the explicit extrusion amount and feed rate to reproduce it.
type RetractionState struct {
	OriginalCommand string
	FirmwareRetract bool
	ExtrusionAmount float64
	FeedRate        float64

	// RecoverExcluded is set when the matching recovery arrived while
	// excluding; the recovery must then be replayed when leaving the region.
	RecoverExcluded bool

	// AllowCombine permits a following retraction to accumulate into this
	// one, as slicers produce during wipe or layer-change moves.  Cleared by
	// any intervening recovery or extrusion.
	AllowCombine bool
}

// NewFirmwareRetraction records a G10 firmware retraction.
func NewFirmwareRetraction(originalCommand string) *RetractionState {
	return &RetractionState{
		OriginalCommand: originalCommand,
		FirmwareRetract: true,
		AllowCombine:    true,
	}
}

// NewRetraction records an explicit retraction of the given filament amount
// at the given feed rate (native units/minute).
func NewRetraction(originalCommand string, extrusionAmount, feedRate float64) (*RetractionState, error) {
	if extrusionAmount == 0 || feedRate == 0 {
		return nil, errors.New("exclude: a retraction requires both an extrusion amount and a feed rate")
	}
	return &RetractionState{
		OriginalCommand: originalCommand,
		ExtrusionAmount: extrusionAmount,
		FeedRate:        feedRate,
		AllowCombine:    true,
	}, nil
}

func (r *RetractionState) String() string {
	if r.FirmwareRetract {
		return fmt.Sprintf("RetractionState[firmware cmd=%q recoverExcluded=%v]",
			r.OriginalCommand, r.RecoverExcluded)
	}
	return fmt.Sprintf("RetractionState[e=%v feedRate=%v cmd=%q recoverExcluded=%v]",
		r.ExtrusionAmount, r.FeedRate, r.OriginalCommand, r.RecoverExcluded)
}

// Combine accumulates a following retraction into this one.
func (r *RetractionState) Combine(other *RetractionState) {
	if r.FirmwareRetract || other.FirmwareRetract {
		return
	}
	r.ExtrusionAmount += other.ExtrusionAmount
	r.FeedRate = other.FeedRate
}

// GenerateRetractCommands produces the commands to physically perform this
// retraction at the current extruder position: reset the logical position to
// the pre-retract value, then execute the retracting move.  The position
// state is left unmodified.
func (r *RetractionState) GenerateRetractCommands(pos *position.Position) []string {
	return r.generateCommands(pos, r.ExtrusionAmount, "G10")
}

// GenerateRecoverCommands produces the commands to recover this retraction:
// reset the logical position to the retracted value, then execute the
// recovering move.  The position state is left unmodified.
func (r *RetractionState) GenerateRecoverCommands(pos *position.Position) []string {
	return r.generateCommands(pos, -r.ExtrusionAmount, "G11")
}

func (r *RetractionState) generateCommands(pos *position.Position, amount float64, firmwareWord string) []string {
	if r.FirmwareRetract {
		return []string{rewriteCommandWord(r.OriginalCommand, firmwareWord)}
	}

	eAxis := pos.E
	return []string{
		gcode.Build("G92", gcode.Param('E', eAxis.NativeToLogical(eAxis.Current+amount))),
		gcode.Build("G1",
			gcode.Param('F', r.FeedRate/eAxis.UnitMultiplier),
			gcode.Param('E', eAxis.CurrentLogical())),
	}
}

// rewriteCommandWord swaps the command word of a G10/G11 command while
// keeping its parameters ("G11 S1" becomes "G10 S1").
func rewriteCommandWord(command, word string) string {
	l, err := gcode.Parse(command)
	if err != nil || l.Type == 0 {
		return word
	}
	if !l.HasParameters || strings.TrimSpace(l.Parameters) == "" {
		return word
	}
	return word + " " + l.Parameters
}
