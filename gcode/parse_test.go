package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleCommand(t *testing.T) {
	l, err := Parse("G0 X1 Y2\n")
	require.NoError(t, err)

	assert.Equal(t, byte('G'), l.Type)
	assert.Equal(t, 0, l.Code)
	assert.False(t, l.HasSub)
	assert.Equal(t, "G0", l.Gcode())
	assert.Equal(t, "X1 Y2", l.Parameters)
	assert.True(t, l.HasParameters)
	assert.Equal(t, "G0 X1 Y2", l.Text)
	assert.Equal(t, "\n", l.EOL)
	assert.False(t, l.HasLineNumber)
	assert.Empty(t, l.RawChecksum)
	assert.Equal(t, len("G0 X1 Y2\n"), l.Length)
}

func TestParseFieldBreakdown(t *testing.T) {
	l, err := Parse("  N5 G28 X Y  ; home\r\n")
	require.NoError(t, err)

	assert.Equal(t, "  ", l.LeadingWhitespace)
	assert.True(t, l.HasLineNumber)
	assert.Equal(t, 5, l.LineNumber)
	assert.Equal(t, "G28", l.Gcode())
	assert.Equal(t, "X Y", l.Parameters)
	// The whitespace before the comment is absorbed into the command text
	// when no checksum follows it.
	assert.Equal(t, "G28 X Y  ", l.Text[len("N5 "):])
	assert.Empty(t, l.TrailingWhitespace)
	assert.Equal(t, "; home", l.Comment)
	assert.Equal(t, "\r\n", l.EOL)
	assert.Equal(t, "  N5 G28 X Y  ; home\r\n", l.FullText())
}

func TestParseSubcode(t *testing.T) {
	l, err := Parse("G38.2 Z-10")
	require.NoError(t, err)
	assert.Equal(t, "G38", l.Gcode())
	assert.True(t, l.HasSub)
	assert.Equal(t, 2, l.SubCode)
	assert.Equal(t, "G38.2 Z-10", l.CommandString())
}

func TestParseToolChange(t *testing.T) {
	l, err := Parse("T1\n")
	require.NoError(t, err)
	assert.Equal(t, byte('T'), l.Type)
	assert.Equal(t, 1, l.Code)
	assert.Equal(t, "T1", l.Gcode())
	assert.False(t, l.HasParameters)
}

func TestParseLowerCaseNormalized(t *testing.T) {
	l, err := Parse("g1 x10 e0.5")
	require.NoError(t, err)
	assert.Equal(t, "G1", l.Gcode())
	assert.Equal(t, "x10 e0.5", l.Parameters)
	assert.Equal(t, "G1 x10 e0.5", l.CommandString())
}

func TestParseChecksumStrippedFromText(t *testing.T) {
	l, err := Parse("N3 G1 X1.5*115\n")
	require.NoError(t, err)
	assert.Equal(t, "*115", l.RawChecksum)
	assert.Equal(t, 115, l.Checksum)
	assert.Equal(t, "N3 G1 X1.5", l.Text)
	assert.Equal(t, "N3 G1 X1.5*115\n", l.FullText())
}

func TestParseCommentOnly(t *testing.T) {
	l, err := Parse("; just a comment\n")
	require.NoError(t, err)
	assert.Equal(t, byte(0), l.Type)
	assert.Empty(t, l.Gcode())
	assert.Empty(t, l.Text)
	assert.Equal(t, "; just a comment", l.Comment)
}

func TestParseBlankAndNonCommandLines(t *testing.T) {
	l, err := Parse("\n")
	require.NoError(t, err)
	assert.Empty(t, l.Text)
	assert.Equal(t, "\n", l.EOL)

	l, err = Parse("start print phase 2\n")
	require.NoError(t, err)
	assert.Equal(t, byte(0), l.Type)
	assert.Equal(t, "start print phase 2", l.Text)
	assert.Equal(t, "start print phase 2", l.CommandString())
}

func TestParseNoEOL(t *testing.T) {
	l, err := Parse("M117 hello")
	require.NoError(t, err)
	assert.Equal(t, "M117", l.Gcode())
	assert.Empty(t, l.EOL)
	assert.Equal(t, "M117 hello", l.FullText())
}

func TestLines(t *testing.T) {
	source := "G28\nG1 X1\n; done\n"

	var gcodes []string
	for l, err := range Lines(source) {
		require.NoError(t, err)
		gcodes = append(gcodes, l.Gcode())
	}
	assert.Equal(t, []string{"G28", "G1", ""}, gcodes)
}

func TestLinesMixedTerminators(t *testing.T) {
	var texts []string
	for l, err := range Lines("G1 X1\rG1 X2\r\nG1 X3") {
		require.NoError(t, err)
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"G1 X1", "G1 X2", "G1 X3"}, texts)
}

func TestComputeChecksum(t *testing.T) {
	assert.Equal(t, 0, ComputeChecksum(""))
	// XOR of the bytes of "N4 M114"
	expected := 0
	for _, b := range []byte("N4 M114") {
		expected ^= int(b)
	}
	assert.Equal(t, expected, ComputeChecksum("N4 M114"))
}

func TestValidate(t *testing.T) {
	t.Run("no line number or checksum", func(t *testing.T) {
		l, err := Parse("G1 X1\n")
		require.NoError(t, err)
		assert.NoError(t, l.Validate())
	})

	t.Run("line number without checksum", func(t *testing.T) {
		l, err := Parse("N1 G1 X1\n")
		require.NoError(t, err)
		assert.Error(t, l.Validate())
	})

	t.Run("checksum without line number", func(t *testing.T) {
		l, err := Parse("G1 X1*35\n")
		require.NoError(t, err)
		assert.Error(t, l.Validate())
	})

	t.Run("matching checksum", func(t *testing.T) {
		text := "N1 G1 X1"
		l, err := Parse(text + "*" + itoa(ComputeChecksum(text)) + "\n")
		require.NoError(t, err)
		assert.NoError(t, l.Validate())
	})

	t.Run("mismatched checksum", func(t *testing.T) {
		l, err := Parse("N1 G1 X1*0\n")
		require.NoError(t, err)
		assert.Error(t, l.Validate())
	})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestParameterItems(t *testing.T) {
	collect := func(source string) []Parameter {
		var out []Parameter
		for p := range ParameterItems(source) {
			out = append(out, p)
		}
		return out
	}

	t.Run("numeric parameters", func(t *testing.T) {
		params := collect("X10 Y-2.5 E.5")
		require.Len(t, params, 3)
		assert.Equal(t, Param('X', 10), params[0])
		assert.Equal(t, Param('Y', -2.5), params[1])
		assert.Equal(t, Param('E', 0.5), params[2])
	})

	t.Run("lower case letters normalized", func(t *testing.T) {
		params := collect("x10")
		require.Len(t, params, 1)
		assert.Equal(t, byte('X'), params[0].Letter)
	})

	t.Run("bare letters become a string argument", func(t *testing.T) {
		// G28 style: letters with no value, plus the trailing string form.
		params := collect("X Y")
		require.Len(t, params, 3)
		assert.Equal(t, Flag('X'), params[0])
		assert.Equal(t, Flag('Y'), params[1])
		assert.Equal(t, Parameter{Text: "X Y"}, params[2])
	})

	t.Run("string argument from non-letter", func(t *testing.T) {
		params := collect("2 + 2 = 4")
		var texts []string
		for _, p := range params {
			if p.Letter == 0 {
				texts = append(texts, p.Text)
			}
		}
		require.Len(t, texts, 1)
		assert.Equal(t, "2 + 2 = 4", texts[0])
	})

	t.Run("empty source", func(t *testing.T) {
		assert.Empty(t, collect(""))
	})
}

func TestSetGcode(t *testing.T) {
	var l Line
	require.NoError(t, l.SetGcode("g10"))
	assert.Equal(t, "G10", l.Gcode())

	require.NoError(t, l.SetGcode("G38.2"))
	assert.Equal(t, "G38", l.Gcode())
	assert.Equal(t, 2, l.SubCode)

	assert.Error(t, l.SetGcode("hello"))
}

func TestSetParameters(t *testing.T) {
	l, err := Parse("M204 S100\n")
	require.NoError(t, err)

	require.NoError(t, l.SetParameters("S500 P1000"))
	assert.Equal(t, "M204 S500 P1000", l.CommandString())

	assert.Error(t, l.SetParameters("S500 ; sneaky"), "comments rejected")
	assert.Error(t, l.SetParameters("S500*33"), "checksums rejected")
}

func TestCommandStringKeepsLineNumber(t *testing.T) {
	l, err := Parse("N7  G1   X1  Y2\n")
	require.NoError(t, err)
	assert.Equal(t, "N7 G1 X1  Y2", l.CommandString())
}

func TestStringRecomputesChecksum(t *testing.T) {
	text := "N1 G1 X1"
	sum := ComputeChecksum(text)
	l, err := Parse(text + "*" + itoa(sum) + "\n")
	require.NoError(t, err)

	// "N1 G1 X1 " with the trailing separator is what gets checksummed.
	expected := "N1 G1 X1 *" + itoa(ComputeChecksum("N1 G1 X1 ")) + "\n"
	assert.Equal(t, expected, l.String())
}

func TestBuild(t *testing.T) {
	assert.Equal(t, "G92 E0", Build("G92", Param('E', 0)))
	assert.Equal(t, "G1 F1200 E-3", Build("G1", Param('F', 1200), Param('E', -3)))
	assert.Equal(t, "G11", Build("G11"))
	assert.Equal(t, "G28 X Y", Build("G28", Flag('X'), Flag('Y')))
	assert.Equal(t, "M204 S500", Build("m204", Param('S', 500)))
}
