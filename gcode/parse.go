// Package gcode parses and reconstructs single lines of G-code, following the
// Marlin serial grammar: optional line number, command word with optional
// subcode, free-form parameter text, checksum, comment and line terminator.
package gcode

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
)

const (
	patWhitespace = `[ ]*`
	patLineNumber = `(?:[Nn](\d+))?`

	patCode = `(?:` +
		`([GgMm])` + patWhitespace + `(\d+)(?:\.(\d+))?` +
		`|` +
		`([Tt])` + patWhitespace + `(\d+)` +
		`)`

	// '\\', '\;' or anything but a ';' or '*'.  Escapes only matter for
	// comments; Marlin drops them before interpreting the command itself.
	patParamChar = `(?:\\\\|\\;|[^;*])`

	patChecksum = `(?:\*(\d+))?`
	patComment  = `(;[^\r\n]*)?`
	patEOL      = `(\r\n|\r|\n|\z)`

	patSignedFloat = `[-+]?[0-9]*\.?[0-9]+`

	patParameter = patWhitespace +
		`(?:([A-Za-z])` + patWhitespace + `(` + patSignedFloat + `)?)`
)

// Capture groups of lineRegexp:
//
//	 1 - leading whitespace (may be empty)
//	 2 - all text before trailing whitespace, comment or eol (may be empty)
//	 3 - line number, if present; requires a G, M or T code
//	 4 - G or M command type
//	 5 - G or M command code
//	 6 - G or M command subcode
//	 7 - T command type
//	 8 - T command code
//	 9 - parameters; requires a G, M or T code
//	10 - checksum; requires a G, M or T code
//	11 - trailing whitespace before comment or eol (may be empty)
//	12 - comment, including the ';' prefix
//	13 - eol (may be empty)
var lineRegexp = regexp.MustCompile(
	`\A(` + patWhitespace + `)` +
		`(` +
		`(?:` +
		patLineNumber +
		patWhitespace + patCode +
		patWhitespace + `(` + patParamChar + `+?)?` +
		patWhitespace +
		patChecksum +
		`)?` +
		`|` +
		`[^;\r\n]*?` +
		`)(` + patWhitespace + `)` +
		patComment +
		patEOL)

var codeRegexp = regexp.MustCompile(
	`\A` + patWhitespace + patCode + patWhitespace + `\z`)

var parametersRegexp = regexp.MustCompile(
	`\A` + patWhitespace + `(` + patParamChar + `*?)` + patWhitespace + `\z`)

var parameterRegexp = regexp.MustCompile(`\A` + patParameter)

var parameterOrStrRegexp = regexp.MustCompile(
	`\A` + patWhitespace + `(?:` + patParameter + `|([^A-Za-z]))`)

// ParseError reports a source string that could not be parsed as a G-code
// line.
type ParseError struct {
	Source string
	Offset int
}

func (e *ParseError) Error() string {
	excerpt := e.Source[e.Offset:]
	if len(excerpt) > 100 {
		excerpt = excerpt[:100]
	}
	return fmt.Sprintf("gcode: unable to parse line: %q", excerpt)
}

// Parameter is a single command argument: a letter with an optional numeric
// value, or a trailing free-form string argument when Letter is 0.
type Parameter struct {
	Letter   byte
	Value    float64
	HasValue bool
	Text     string
}

// Param builds a letter parameter carrying a numeric value.
func Param(letter byte, value float64) Parameter {
	return Parameter{Letter: letter, Value: value, HasValue: true}
}

// Flag builds a letter parameter with no value.
func Flag(letter byte) Parameter {
	return Parameter{Letter: letter}
}

func (p Parameter) String() string {
	if p.Letter == 0 {
		return p.Text
	}
	if !p.HasValue {
		return string(p.Letter)
	}
	return string(p.Letter) + strconv.FormatFloat(p.Value, 'f', -1, 64)
}

// Line is a single parsed G-code line.  Text holds the command text with any
// checksum stripped; FullText reassembles the original input exactly.
type Line struct {
	Source string
	Offset int
	Length int

	LeadingWhitespace  string
	Text               string
	TrailingWhitespace string
	Comment            string
	EOL                string

	LineNumber    int
	HasLineNumber bool

	Type    byte
	Code    int
	SubCode int
	HasSub  bool

	Parameters    string
	HasParameters bool

	Checksum    int
	RawChecksum string
}

// Parse parses the first G-code line of source.
func Parse(source string) (*Line, error) {
	return ParseAt(source, 0)
}

// ParseAt parses the G-code line starting at the given offset of source.  The
// returned Line records the matched length so a caller can advance through a
// multi-line string.
func ParseAt(source string, offset int) (*Line, error) {
	m := lineRegexp.FindStringSubmatchIndex(source[offset:])
	if m == nil {
		return nil, &ParseError{Source: source, Offset: offset}
	}

	group := func(n int) (string, bool) {
		if m[2*n] < 0 {
			return "", false
		}
		return source[offset+m[2*n] : offset+m[2*n+1]], true
	}

	l := &Line{
		Source: source,
		Offset: offset,
		Length: m[1],
	}

	l.LeadingWhitespace, _ = group(1)
	l.Text, _ = group(2)

	if s, ok := group(3); ok {
		l.LineNumber, _ = strconv.Atoi(s)
		l.HasLineNumber = true
	}

	if err := l.applyCode(group, 4); err != nil {
		return nil, err
	}

	l.Parameters, l.HasParameters = group(9)

	if s, ok := group(10); ok {
		l.Checksum, _ = strconv.Atoi(s)
		l.RawChecksum = "*" + s
		l.Text = l.Text[:len(l.Text)-len(l.RawChecksum)]
	}

	l.TrailingWhitespace, _ = group(11)
	l.Comment, _ = group(12)
	l.EOL, _ = group(13)

	return l, nil
}

// Lines iterates over all G-code lines of source in order, stopping early on
// the first parse failure.
func Lines(source string) iter.Seq2[*Line, error] {
	return func(yield func(*Line, error) bool) {
		offset := 0
		for offset < len(source) {
			l, err := ParseAt(source, offset)
			if !yield(l, err) || err != nil {
				return
			}
			offset += l.Length
		}
	}
}

// applyCode fills in the command word fields from the capture groups starting
// at index.  The G/M alternative occupies index..index+2 and the T alternative
// index+3..index+4.
func (l *Line) applyCode(group func(int) (string, bool), index int) error {
	typ, ok := group(index)
	if !ok {
		typ, ok = group(index + 3)
	}
	if !ok {
		l.Type = 0
		l.Code = 0
		l.SubCode = 0
		l.HasSub = false
		return nil
	}

	l.Type = typ[0] &^ 0x20 // upper case

	code, ok := group(index + 1)
	if !ok {
		code, _ = group(index + 4)
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return fmt.Errorf("gcode: invalid command code %q: %w", code, err)
	}
	l.Code = n

	if s, ok := group(index + 2); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("gcode: invalid subcode %q: %w", s, err)
		}
		l.SubCode = n
		l.HasSub = true
	} else {
		l.SubCode = 0
		l.HasSub = false
	}
	return nil
}

// Gcode returns the normalized command word without subcode ("G1", "M117"),
// or the empty string for lines with no command.
func (l *Line) Gcode() string {
	if l.Type == 0 {
		return ""
	}
	return string(l.Type) + strconv.Itoa(l.Code)
}

// SetGcode replaces the command word, accepting an optional subcode
// ("G38.2").
func (l *Line) SetGcode(value string) error {
	m := codeRegexp.FindStringSubmatchIndex(value)
	if m == nil {
		return fmt.Errorf("gcode: unable to parse command word %q", value)
	}
	group := func(n int) (string, bool) {
		if m[2*n] < 0 {
			return "", false
		}
		return value[m[2*n]:m[2*n+1]], true
	}
	return l.applyCode(group, 1)
}

// SetParameters replaces the parameter string, rejecting content that would
// parse as a checksum or comment.
func (l *Line) SetParameters(value string) error {
	m := parametersRegexp.FindStringSubmatch(value)
	if m == nil {
		return fmt.Errorf("gcode: unable to validate parameters %q", value)
	}
	l.Parameters = m[1]
	l.HasParameters = true
	return nil
}

// ParameterItems iterates over the parsed parameters in order.  Letter
// parameters yield their numeric value when present; once a letter with no
// value or a non-letter character is seen, the remainder of the string is
// additionally yielded as a single trailing string argument (Letter 0).
func (l *Line) ParameterItems() iter.Seq[Parameter] {
	return ParameterItems(l.Parameters)
}

// ParameterItems iterates over the parameters of the given argument string.
func ParameterItems(source string) iter.Seq[Parameter] {
	return func(yield func(Parameter) bool) {
		offset := 0
		stringArgOffset := -1

		re := parameterOrStrRegexp
		for {
			m := re.FindStringSubmatchIndex(source[offset:])
			if m == nil {
				break
			}

			if m[2] >= 0 {
				p := Parameter{Letter: source[offset+m[2]] &^ 0x20}
				if m[4] >= 0 {
					p.Value, _ = strconv.ParseFloat(source[offset+m[4]:offset+m[5]], 64)
					p.HasValue = true
				} else if stringArgOffset < 0 {
					stringArgOffset = offset + m[2]
					re = parameterRegexp
				}
				if !yield(p) {
					return
				}
			} else if stringArgOffset < 0 {
				stringArgOffset = offset + m[6]
				re = parameterRegexp
			}

			offset += m[1]
		}

		if stringArgOffset >= 0 {
			yield(Parameter{Text: source[stringArgOffset:]})
		}
	}
}

// ComputeChecksum XORs the bytes of value together, as Marlin does for
// N-line checksums.
func ComputeChecksum(value string) int {
	checksum := 0
	for i := 0; i < len(value); i++ {
		checksum ^= int(value[i])
	}
	return checksum
}

// Validate checks that a line number and checksum are either both present or
// both absent, and that a present checksum matches the computed value.
func (l *Line) Validate() error {
	hasChecksum := l.RawChecksum != ""
	if hasChecksum != l.HasLineNumber {
		if l.HasLineNumber {
			return fmt.Errorf("gcode: line number provided, but no checksum found")
		}
		return fmt.Errorf("gcode: checksum provided, but no line number found")
	}

	if hasChecksum {
		command := l.LeadingWhitespace + l.Text
		computed := ComputeChecksum(command)
		if l.Checksum != computed {
			return fmt.Errorf("gcode: checksum mismatch (%d != %d computed): %q",
				l.Checksum, computed, command)
		}
	}
	return nil
}

// stringify builds a normalized command string from the line fields.  Lines
// with no command word reproduce their raw text.
func (l *Line) stringify(includeLineNumber, includeChecksum, includeComment, includeEOL bool) string {
	var result string
	checksum := ""

	if l.Type == 0 {
		result = l.Text
	} else {
		var pieces []string
		withChecksum := false

		if includeLineNumber && l.HasLineNumber {
			withChecksum = includeChecksum
			pieces = append(pieces, "N"+strconv.Itoa(l.LineNumber))
		}

		word := l.Gcode()
		if l.HasSub {
			word += "." + strconv.Itoa(l.SubCode)
		}
		pieces = append(pieces, word)

		if l.HasParameters {
			pieces = append(pieces, l.Parameters)
		}

		result = strings.Join(pieces, " ")
		if withChecksum {
			result += " "
			checksum = "*" + strconv.Itoa(ComputeChecksum(result))
		}
	}

	var b strings.Builder
	b.WriteString(result)
	b.WriteString(checksum)
	if includeComment && l.Comment != "" {
		b.WriteString(" ")
		b.WriteString(l.Comment)
	}
	if includeEOL {
		b.WriteString(l.EOL)
	}
	return b.String()
}

// CommandString returns the normalized command, excluding any checksum,
// comment or eol.
func (l *Line) CommandString() string {
	return l.stringify(true, false, false, false)
}

// String returns the full normalized line, with a recomputed checksum when a
// line number is present.
func (l *Line) String() string {
	return l.stringify(true, true, true, true)
}

// FullText reassembles the exact text of the line as parsed.
func (l *Line) FullText() string {
	var b strings.Builder
	b.WriteString(l.LeadingWhitespace)
	b.WriteString(l.Text)
	b.WriteString(l.RawChecksum)
	b.WriteString(l.TrailingWhitespace)
	b.WriteString(l.Comment)
	b.WriteString(l.EOL)
	return b.String()
}

// Build constructs a normalized command string from a command word and
// parameter list ("G1 F1200 E-3").  The word is normalized when parseable and
// used verbatim otherwise.
func Build(word string, params ...Parameter) string {
	l := &Line{Text: word}
	if err := l.SetGcode(word); err == nil {
		var vals []string
		for _, p := range params {
			vals = append(vals, p.String())
		}
		if len(vals) > 0 {
			l.Parameters = strings.Join(vals, " ")
			l.HasParameters = true
		}
	}
	return l.stringify(false, false, false, false)
}
