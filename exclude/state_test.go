package exclude

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestState(t *testing.T) *State {
	t.Helper()
	s := NewState(discardLogger())
	require.NoError(t, s.Regions.Add(NewRectangularRegion("r1", 0, 0, 10, 10)))
	return s
}

func ptr(v float64) *float64 {
	return &v
}

func TestIsAnyPointExcludedMovesPosition(t *testing.T) {
	s := newTestState(t)

	assert.False(t, s.isAnyPointExcluded(ptr(20), ptr(20)))
	assert.Equal(t, 20.0, s.position.X.Current)
	assert.Equal(t, 20.0, s.position.Y.Current)

	// All waypoints are consumed even after the first excluded one.
	assert.True(t, s.isAnyPointExcluded(ptr(5), ptr(5), ptr(30), ptr(30)))
	assert.Equal(t, 30.0, s.position.X.Current)
	assert.Equal(t, 30.0, s.position.Y.Current)

	// A nil value keeps the axis where it is.
	assert.False(t, s.isAnyPointExcluded(ptr(15), nil))
	assert.Equal(t, 15.0, s.position.X.Current)
	assert.Equal(t, 30.0, s.position.Y.Current)
}

func TestProcessLinearMovesPassThrough(t *testing.T) {
	s := newTestState(t)

	result := s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))
	assert.Equal(t, []string{"G1 F1200 X20 Y20"}, result)
	assert.False(t, s.Excluding())
	assert.Equal(t, 1200.0, s.feedRate)
}

func TestEnterAndExitExcludedRegion(t *testing.T) {
	s := newTestState(t)

	s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))

	result := s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))
	assert.Empty(t, result)
	assert.True(t, s.Excluding())

	result = s.ProcessLinearMoves("G1 X6 Y6", nil, nil, nil, ptr(6), ptr(6))
	assert.Empty(t, result)

	result = s.ProcessLinearMoves("G1 X20 Y20", nil, nil, nil, ptr(20), ptr(20))
	assert.Equal(t, []string{"G92 E0", "G0 F1200 X20 Y20"}, result)
	assert.False(t, s.Excluding())
}

func TestExitRaisesZBeforeTravel(t *testing.T) {
	s := newTestState(t)
	s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))

	s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))
	result := s.ProcessLinearMoves("G1 Z2 X20 Y20", nil, nil, ptr(2), ptr(20), ptr(20))
	assert.Equal(t, []string{
		"G92 E0",
		"G0 F1200 Z2",
		"G0 F1200 X20 Y20",
	}, result)
}

func TestExitLowersZAfterTravel(t *testing.T) {
	s := newTestState(t)
	s.ProcessLinearMoves("G1 F1200 Z2 X20 Y20", nil, ptr(1200), ptr(2), ptr(20), ptr(20))

	s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))
	result := s.ProcessLinearMoves("G1 Z1 X20 Y20", nil, nil, ptr(1), ptr(20), ptr(20))
	assert.Equal(t, []string{
		"G92 E0",
		"G0 F1200 X20 Y20",
		"G0 F1200 Z1",
	}, result)
}

func TestEnteringAndExitingScripts(t *testing.T) {
	s := newTestState(t)
	s.EnteringExcludedRegionGcode = []string{"M117 skipping"}
	s.ExitingExcludedRegionGcode = []string{"M117 resuming"}

	s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))

	result := s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))
	assert.Equal(t, []string{"M117 skipping"}, result)

	result = s.ProcessLinearMoves("G1 X20 Y20", nil, nil, nil, ptr(20), ptr(20))
	assert.Equal(t, []string{
		"M117 resuming",
		"G92 E0",
		"G0 F1200 X20 Y20",
	}, result)
}

func TestRetractionWhileExcluding(t *testing.T) {
	s := newTestState(t)
	s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))
	s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))

	// The first retraction executes so the filament matches the tracked state.
	result := s.ProcessLinearMoves("G1 F1800 E-1", ptr(-1), ptr(1800), nil)
	assert.Equal(t, []string{"G92 E0", "G1 F1800 E-1"}, result)

	// Its recovery is deferred.
	result = s.ProcessLinearMoves("G1 F1800 E0", ptr(0), ptr(1800), nil)
	assert.Empty(t, result)
	require.NotNil(t, s.lastRetraction)
	assert.True(t, s.lastRetraction.RecoverExcluded)

	// The deferred recovery replays on exit, before the position resync.
	result = s.ProcessLinearMoves("G1 X20 Y20", nil, nil, nil, ptr(20), ptr(20))
	assert.Equal(t, []string{
		"G92 E-1",
		"G1 F1800 E0",
		"G92 E0",
		"G0 F1800 X20 Y20",
	}, result)
	assert.Nil(t, s.lastRetraction)
}

func TestRecordRetractionCombines(t *testing.T) {
	s := newTestState(t)

	r1, err := NewRetraction("G1 F1800 E-1", 1, 1800)
	require.NoError(t, err)
	assert.Equal(t, []string{"G1 F1800 E-1"}, s.RecordRetraction(r1))

	r2, err := NewRetraction("G1 F1200 E-2", 2, 1200)
	require.NoError(t, err)
	assert.Equal(t, []string{"G1 F1200 E-2"}, s.RecordRetraction(r2))

	assert.Equal(t, 3.0, s.lastRetraction.ExtrusionAmount)
	assert.Equal(t, 1200.0, s.lastRetraction.FeedRate)
}

func TestRecordRetractionAfterExcludedRecovery(t *testing.T) {
	s := newTestState(t)
	s.feedRate = 900

	r1, err := NewRetraction("G1 F1800 E-1", 1, 1800)
	require.NoError(t, err)
	r1.RecoverExcluded = true
	s.lastRetraction = r1

	// The filament is already retracted; this retraction is swallowed.
	r2, err := NewRetraction("G1 F1200 E-1", 1, 1200)
	require.NoError(t, err)
	assert.Empty(t, s.RecordRetraction(r2))
	assert.False(t, s.lastRetraction.RecoverExcluded)
	assert.Equal(t, 900.0, s.lastRetraction.FeedRate)
}

func TestRecoverWithoutRetraction(t *testing.T) {
	s := newTestState(t)

	result := s.RecoverRetractionIfNeeded("G1 F300 E5", true)
	assert.Equal(t, []string{"G1 F300 E5"}, result)
}

func TestDisableExclusionExitsRegion(t *testing.T) {
	s := newTestState(t)
	s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))
	s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))
	require.True(t, s.Excluding())

	result := s.DisableExclusion("test")
	assert.Equal(t, []string{"G92 E0", "G0 F1200 X5 Y5"}, result)
	assert.False(t, s.Excluding())
	assert.False(t, s.ExclusionEnabled())

	// With exclusion disabled, moves into the region pass through.
	result = s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))
	assert.Equal(t, []string{"G1 X5 Y5"}, result)

	assert.Nil(t, s.DisableExclusion("again"))

	s.EnableExclusion("test")
	assert.True(t, s.ExclusionEnabled())
	result = s.ProcessLinearMoves("G1 X6 Y6", nil, nil, nil, ptr(6), ptr(6))
	assert.Empty(t, result)
}

func TestProcessExtendedGcodeModes(t *testing.T) {
	s := newTestState(t)
	s.ExtendedExcludeGcodes = map[string]ExcludedGcode{
		"G4":   {Gcode: "G4", Mode: ExcludeAll},
		"M117": {Gcode: "M117", Mode: ExcludeExceptLast},
		"M204": {Gcode: "M204", Mode: ExcludeMerge},
		"M73":  {Gcode: "M73", Mode: ExcludeExceptFirst},
	}

	// Not excluding, nothing is consumed.
	assert.False(t, s.ProcessExtendedGcode("G4 P100", "G4"))

	s.ProcessLinearMoves("G1 F1200 X20 Y20", nil, ptr(1200), nil, ptr(20), ptr(20))
	s.ProcessLinearMoves("G1 X5 Y5", nil, nil, nil, ptr(5), ptr(5))

	assert.True(t, s.ProcessExtendedGcode("G4 P100", "G4"))
	assert.True(t, s.ProcessExtendedGcode("M117 first", "M117"))
	assert.True(t, s.ProcessExtendedGcode("M117 second", "M117"))
	assert.True(t, s.ProcessExtendedGcode("M73 P10", "M73"))
	assert.True(t, s.ProcessExtendedGcode("M73 P20", "M73"))
	assert.True(t, s.ProcessExtendedGcode("M204 S500", "M204"))
	assert.True(t, s.ProcessExtendedGcode("M204 P1000", "M204"))
	assert.False(t, s.ProcessExtendedGcode("M400", "M400"))

	result := s.ProcessLinearMoves("G1 X20 Y20", nil, nil, nil, ptr(20), ptr(20))
	assert.Equal(t, []string{
		"M117 second",
		"M73 P10",
		"M204 S500 P1000",
		"G92 E0",
		"G0 F1200 X20 Y20",
	}, result)
	assert.Empty(t, s.pendingCommands)
}

func TestResetState(t *testing.T) {
	s := newTestState(t)
	s.ProcessLinearMoves("G1 F1200 X5 Y5", nil, ptr(1200), nil, ptr(5), ptr(5))
	require.True(t, s.Excluding())

	s.ResetState(false)
	assert.False(t, s.Excluding())
	assert.Equal(t, 1, s.Regions.Len())

	s.ResetState(true)
	assert.Equal(t, 0, s.Regions.Len())
}
