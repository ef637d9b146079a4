package exclude

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gcodefilter/gcode"
)

// Filter is the line-oriented front end of the exclusion engine.  It parses
// raw stream lines, routes commands through the handlers and intercepts
// at-commands embedded in the stream.
type Filter struct {
	log      *slog.Logger
	handlers *Handlers
}

// NewFilter builds a filter around the given engine state.
func NewFilter(state *State, log *slog.Logger, minArcSegmentLength float64) *Filter {
	return &Filter{
		log:      log,
		handlers: NewHandlers(state, log, minArcSegmentLength),
	}
}

// State returns the engine state behind the filter.
func (f *Filter) State() *State {
	return f.handlers.State()
}

// Handlers returns the command handlers behind the filter.
func (f *Filter) Handlers() *Handlers {
	return f.handlers
}

// ProcessLine filters one line of the stream, returning the lines to send in
// its place.  An empty result means the line is suppressed.  Lines the
// filter has no interest in are passed through verbatim.
func (f *Filter) ProcessLine(raw string) ([]string, error) {
	line, err := gcode.Parse(raw)
	if err != nil {
		return nil, err
	}

	if line.Type == 0 {
		if command, parameters, ok := atCommand(line); ok {
			result, matched := f.handlers.HandleAtCommand(command, parameters)
			if !matched {
				f.log.Debug("unrecognized at-command", "command", command)
			}
			return result, nil
		}
		return []string{trimEOL(line.FullText())}, nil
	}

	if result, handled := f.handlers.HandleGcode(line); handled {
		return result, nil
	}
	return []string{trimEOL(line.FullText())}, nil
}

// ProcessStream filters a whole stream line by line, writing each emitted
// line to w with a newline terminator.  When the stream ends inside an
// excluded region the deferred commands are flushed as if the region had
// been exited.
func (f *Filter) ProcessStream(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		result, err := f.ProcessLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := writeLines(w, result); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return writeLines(w, f.Finish())
}

// Finish flushes any state held back for an excluded region, returning the
// lines to append to the stream.  Called when the stream ends.
func (f *Filter) Finish() []string {
	state := f.State()
	if !state.Excluding() {
		return nil
	}
	f.log.Warn("stream ended inside an excluded region, flushing deferred commands")
	return state.ExitExcludedRegion("end of stream")
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// atCommand recognizes an OctoPrint-style at-command line ("@ExcludeRegion
// disable"), splitting it into the command name and its parameter text.
func atCommand(line *gcode.Line) (command, parameters string, ok bool) {
	text := strings.TrimSpace(line.Text)
	if !strings.HasPrefix(text, "@") {
		return "", "", false
	}
	command, parameters, _ = strings.Cut(text[1:], " ")
	if command == "" {
		return "", "", false
	}
	return command, strings.TrimSpace(parameters), true
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}
