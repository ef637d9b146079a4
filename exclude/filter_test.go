package exclude

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	return NewFilter(newTestState(t), discardLogger(), 1)
}

func feed(t *testing.T, f *Filter, lines ...string) []string {
	t.Helper()
	var result []string
	for _, line := range lines {
		out, err := f.ProcessLine(line)
		require.NoError(t, err)
		result = append(result, out...)
	}
	return result
}

func TestFilterPassThrough(t *testing.T) {
	f := newTestFilter(t)

	assert.Equal(t,
		[]string{"M104 S200", "M105 ; temp", "; a comment", ""},
		feed(t, f, "M104 S200", "M105 ; temp", "; a comment", ""))
}

func TestFilterExcludesMoves(t *testing.T) {
	f := newTestFilter(t)

	out := feed(t, f,
		"G1 F1200 X20 Y20 E1",
		"G1 X5 Y5 E2",
		"G1 X6 Y6 E3",
		"M105",
		"G1 X20 Y20 E4")

	assert.Equal(t, []string{
		"G1 F1200 X20 Y20 E1",
		"M105",
		"G92 E4",
		"G0 F1200 X20 Y20",
	}, out)
	assert.False(t, f.State().Excluding())
}

func TestFilterAtCommands(t *testing.T) {
	f := newTestFilter(t)
	s := f.State()

	enable, err := NewAtCommandAction("ExcludeRegion", "enable|on", EnableExclusion, "")
	require.NoError(t, err)
	disable, err := NewAtCommandAction("ExcludeRegion", "disable|off", DisableExclusion, "")
	require.NoError(t, err)
	s.AtCommandActions = map[string][]*AtCommandAction{
		"ExcludeRegion": {enable, disable},
	}

	feed(t, f, "G1 F1200 X20 Y20")

	assert.Empty(t, feed(t, f, "@ExcludeRegion disable"))
	assert.False(t, s.ExclusionEnabled())

	// With exclusion off, moves into the region pass through.
	assert.Equal(t,
		[]string{"G1 X5 Y5"},
		feed(t, f, "G1 X5 Y5"))

	assert.Empty(t, feed(t, f, "@ExcludeRegion enable"))
	assert.True(t, s.ExclusionEnabled())
	assert.Empty(t, feed(t, f, "G1 X6 Y6"))
	assert.True(t, s.Excluding())

	// Disabling mid-region exits immediately.
	out := feed(t, f, "@ExcludeRegion off")
	assert.Equal(t, []string{"G92 E0", "G0 F1200 X6 Y6"}, out)
	assert.False(t, s.Excluding())

	// Unrecognized at-commands are consumed silently.
	assert.Empty(t, feed(t, f, "@pause"))
}

func TestFilterFirmwareRetraction(t *testing.T) {
	f := newTestFilter(t)

	// The tool and workspace offset forms of G10 are not retractions.
	assert.Equal(t, []string{"G10 P1"}, feed(t, f, "G10 P1"))

	out := feed(t, f,
		"G1 F1200 X20 Y20",
		"G1 X5 Y5",
		"G10",
		"G11",
		"G1 X20 Y20")

	assert.Equal(t, []string{
		"G1 F1200 X20 Y20",
		"G10",
		"G11",
		"G92 E0",
		"G0 F1200 X20 Y20",
	}, out)
}

func TestFilterInchUnits(t *testing.T) {
	f := newTestFilter(t)

	out := feed(t, f,
		"G20",
		"G1 F1200 X1 Y1",
		"G1 X0.3 Y0.3",
		"G1 X1 Y1")

	// 0.3in is 7.62mm, inside the region; 1in is 25.4mm, outside.
	assert.Equal(t, []string{
		"G20",
		"G1 F1200 X1 Y1",
		"G92 E0",
		"G0 F1200 X1 Y1",
	}, out)
}

func TestFilterHome(t *testing.T) {
	f := newTestFilter(t)

	feed(t, f, "G1 F1200 X20 Y20", "G28 X")
	assert.Equal(t, 0.0, f.State().Position().X.Current)
	assert.Equal(t, 20.0, f.State().Position().Y.Current)

	// After homing X, a move to Y5 lands at (0, 5) inside the region.
	assert.Empty(t, feed(t, f, "G1 Y5"))
	assert.True(t, f.State().Excluding())

	f = newTestFilter(t)
	feed(t, f, "G1 F1200 X20 Y20", "G28")
	pos := f.State().Position()
	assert.Equal(t, 0.0, pos.X.Current)
	assert.Equal(t, 0.0, pos.Y.Current)
	assert.Equal(t, 0.0, pos.Z.Current)
}

func TestFilterRelativeMode(t *testing.T) {
	f := newTestFilter(t)

	out := feed(t, f,
		"G1 F1200 X20 Y20",
		"G91",
		"G1 X-15 Y-15")

	assert.Equal(t, []string{"G1 F1200 X20 Y20", "G91"}, out)
	assert.True(t, f.State().Excluding())
	assert.Equal(t, 5.0, f.State().Position().X.Current)
}

func TestFilterSetPosition(t *testing.T) {
	f := newTestFilter(t)

	// G92 redefines the logical coordinate system without moving the tool.
	feed(t, f, "G1 F1200 X20 Y20", "G92 X0 Y0")
	assert.Equal(t, 20.0, f.State().Position().X.Current)

	assert.Empty(t, feed(t, f, "G1 X-15 Y-15"))
	assert.True(t, f.State().Excluding())
	assert.Equal(t, 5.0, f.State().Position().X.Current)
}

func TestFilterHomeOffsets(t *testing.T) {
	f := newTestFilter(t)

	feed(t, f, "G1 F1200 X20 Y20", "M206 X-10 Y-10")

	// Logical 15 now maps to native 5, inside the region.
	assert.Empty(t, feed(t, f, "G1 X15 Y15"))
	assert.True(t, f.State().Excluding())
}

func TestFilterArcMoves(t *testing.T) {
	t.Run("outside region", func(t *testing.T) {
		f := newTestFilter(t)
		out := feed(t, f,
			"G1 F1200 X22 Y20",
			"G2 X24 Y20 I1")
		assert.Equal(t, []string{"G1 F1200 X22 Y20", "G2 X24 Y20 I1"}, out)
		assert.Equal(t, 24.0, f.State().Position().X.Current)
	})

	t.Run("crossing region", func(t *testing.T) {
		f := newTestFilter(t)
		// Counterclockwise around (5, 15) radius 10; the low point (5, 5)
		// falls inside the region.
		out := feed(t, f,
			"G1 F1200 X-5 Y15",
			"G3 X15 Y15 I10")
		assert.Equal(t, []string{"G1 F1200 X-5 Y15"}, out)
		assert.True(t, f.State().Excluding())
		assert.Equal(t, 15.0, f.State().Position().X.Current)
		assert.Equal(t, 15.0, f.State().Position().Y.Current)

		out = feed(t, f, "G1 X15 Y20")
		assert.Equal(t, []string{"G92 E0", "G0 F1200 X15 Y20"}, out)
	})

	t.Run("radius form", func(t *testing.T) {
		f := newTestFilter(t)
		assert.Empty(t, feed(t, f, "G2 X2 Y0 R1"))
		assert.True(t, f.State().Excluding())
	})

	t.Run("missing center", func(t *testing.T) {
		f := newTestFilter(t)
		assert.Equal(t, []string{"G2 X1"}, feed(t, f, "G2 X1"))
	})
}

func TestProcessStream(t *testing.T) {
	f := newTestFilter(t)

	in := strings.Join([]string{
		"M104 S200",
		"G1 F1200 X20 Y20",
		"G1 X5 Y5 E1",
		"G1 X6 Y6 E2",
	}, "\n") + "\n"

	var out strings.Builder
	require.NoError(t, f.ProcessStream(strings.NewReader(in), &out))

	// The stream ends mid-region; the deferred exit is flushed.
	assert.Equal(t, strings.Join([]string{
		"M104 S200",
		"G1 F1200 X20 Y20",
		"G92 E2",
		"G0 F1200 X6 Y6",
	}, "\n")+"\n", out.String())
	assert.False(t, f.State().Excluding())
}
