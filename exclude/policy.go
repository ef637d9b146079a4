package exclude

import (
	"fmt"
	"regexp"
)

// Suppression modes applied to configured commands while excluding.
const (
	// ExcludeAll drops every occurrence of the command.
	ExcludeAll = "exclude"

	// ExcludeExceptFirst queues the first occurrence and replays it
	// unmodified when exiting the region.
	ExcludeExceptFirst = "first"

	// ExcludeExceptLast queues only the most recent occurrence.
	ExcludeExceptLast = "last"

	// ExcludeMerge accumulates the last value of each parameter across all
	// occurrences into one synthesized command replayed on exit.
	ExcludeMerge = "merge"
)

// ExcludedGcode configures the suppression policy for one command code.
type ExcludedGcode struct {
	Gcode       string `json:"gcode" yaml:"gcode"`
	Mode        string `json:"mode" yaml:"mode"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// NewExcludedGcode builds a validated suppression policy entry.
func NewExcludedGcode(gcodeWord, mode, description string) (ExcludedGcode, error) {
	switch mode {
	case ExcludeAll, ExcludeExceptFirst, ExcludeExceptLast, ExcludeMerge:
	default:
		return ExcludedGcode{}, fmt.Errorf("exclude: invalid suppression mode %q", mode)
	}
	if gcodeWord == "" {
		return ExcludedGcode{}, fmt.Errorf("exclude: a gcode value is required")
	}
	return ExcludedGcode{Gcode: gcodeWord, Mode: mode, Description: description}, nil
}

// At-command actions.
const (
	EnableExclusion  = "enable_exclusion"
	DisableExclusion = "disable_exclusion"
)

// AtCommandAction configures an exclusion toggle triggered by an at-command
// embedded in the stream ("@ExcludeRegion disable").
type AtCommandAction struct {
	Command          string `json:"command" yaml:"command"`
	ParameterPattern string `json:"parameterPattern,omitempty" yaml:"parameterPattern,omitempty"`
	Action           string `json:"action" yaml:"action"`
	Description      string `json:"description,omitempty" yaml:"description,omitempty"`

	pattern *regexp.Regexp
}

// NewAtCommandAction builds a validated at-command action, compiling the
// optional parameter pattern.
func NewAtCommandAction(command, parameterPattern, action, description string) (*AtCommandAction, error) {
	if command == "" {
		return nil, fmt.Errorf("exclude: a command value is required")
	}
	switch action {
	case EnableExclusion, DisableExclusion:
	default:
		return nil, fmt.Errorf("exclude: invalid at-command action %q", action)
	}

	a := &AtCommandAction{
		Command:          command,
		ParameterPattern: parameterPattern,
		Action:           action,
		Description:      description,
	}
	if parameterPattern != "" {
		// Anchored at the start of the parameter text, like a prefix match.
		pattern, err := regexp.Compile(`\A(?:` + parameterPattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("exclude: invalid parameter pattern %q: %w", parameterPattern, err)
		}
		a.pattern = pattern
	}
	return a, nil
}

// Matches reports whether the given at-command invocation triggers this
// action.
func (a *AtCommandAction) Matches(command, parameters string) bool {
	if a.Command != command {
		return false
	}
	return a.pattern == nil || a.pattern.MatchString(parameters)
}
