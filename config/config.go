// Package config loads the YAML configuration for the exclusion filter and
// builds the engine from it.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"gcodefilter/exclude"
)

// AtCommandAction is the configuration form of an at-command trigger.
type AtCommandAction struct {
	Command          string `yaml:"command" json:"command"`
	ParameterPattern string `yaml:"parameterPattern,omitempty" json:"parameterPattern,omitempty"`
	Action           string `yaml:"action" json:"action"`
	Description      string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Config is the filter configuration.
type Config struct {
	Regions []exclude.Record `yaml:"regions,omitempty" json:"regions,omitempty"`

	EnteringExcludedRegionGcode []string `yaml:"enteringExcludedRegionGcode,omitempty" json:"enteringExcludedRegionGcode,omitempty"`
	ExitingExcludedRegionGcode  []string `yaml:"exitingExcludedRegionGcode,omitempty" json:"exitingExcludedRegionGcode,omitempty"`

	ExtendedExcludeGcodes []exclude.ExcludedGcode `yaml:"extendedExcludeGcodes,omitempty" json:"extendedExcludeGcodes,omitempty"`
	AtCommandActions      []AtCommandAction       `yaml:"atCommandActions,omitempty" json:"atCommandActions,omitempty"`

	G90InfluencesExtruder         bool    `yaml:"g90InfluencesExtruder" json:"g90InfluencesExtruder"`
	MinArcSegmentLength           float64 `yaml:"minArcSegmentLength" json:"minArcSegmentLength"`
	MayShrinkRegionsWhilePrinting bool    `yaml:"mayShrinkRegionsWhilePrinting" json:"mayShrinkRegionsWhilePrinting"`
}

// Default returns the stock configuration: dwells are dropped inside excluded
// regions, acceleration and jerk settings are merged and replayed on exit,
// and "@ExcludeRegion enable|disable" toggles the filter.
func Default() *Config {
	return &Config{
		ExtendedExcludeGcodes: []exclude.ExcludedGcode{
			{Gcode: "G4", Mode: exclude.ExcludeAll, Description: "Ignore dwell commands"},
			{Gcode: "M204", Mode: exclude.ExcludeMerge, Description: "Record accelerations to apply on exit"},
			{Gcode: "M205", Mode: exclude.ExcludeMerge, Description: "Record jerk limits to apply on exit"},
		},
		AtCommandActions: []AtCommandAction{
			{
				Command:          "ExcludeRegion",
				ParameterPattern: `(?i)^\s*(enable|on)(\s|$)`,
				Action:           exclude.EnableExclusion,
				Description:      "Enable exclusion processing",
			},
			{
				Command:          "ExcludeRegion",
				ParameterPattern: `(?i)^\s*(disable|off)(\s|$)`,
				Action:           exclude.DisableExclusion,
				Description:      "Disable exclusion processing",
			},
		},
		MinArcSegmentLength: exclude.DefaultMinArcSegmentLength,
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// BuildState constructs and populates the exclusion engine state.
func (c *Config) BuildState(log *slog.Logger) (*exclude.State, error) {
	state := exclude.NewState(log)
	state.G90InfluencesExtruder = c.G90InfluencesExtruder
	state.EnteringExcludedRegionGcode = c.EnteringExcludedRegionGcode
	state.ExitingExcludedRegionGcode = c.ExitingExcludedRegionGcode

	for _, entry := range c.ExtendedExcludeGcodes {
		eg, err := exclude.NewExcludedGcode(entry.Gcode, entry.Mode, entry.Description)
		if err != nil {
			return nil, fmt.Errorf("config: extendedExcludeGcodes: %w", err)
		}
		state.ExtendedExcludeGcodes[eg.Gcode] = eg
	}

	for _, entry := range c.AtCommandActions {
		action, err := exclude.NewAtCommandAction(
			entry.Command, entry.ParameterPattern, entry.Action, entry.Description)
		if err != nil {
			return nil, fmt.Errorf("config: atCommandActions: %w", err)
		}
		state.AtCommandActions[action.Command] = append(
			state.AtCommandActions[action.Command], action)
	}

	for _, rec := range c.Regions {
		region, err := exclude.RegionFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("config: regions: %w", err)
		}
		if err := state.Regions.Add(region); err != nil {
			return nil, fmt.Errorf("config: regions: %w", err)
		}
	}

	return state, nil
}

// BuildFilter constructs the full line filter from this configuration.
func (c *Config) BuildFilter(log *slog.Logger) (*exclude.Filter, error) {
	state, err := c.BuildState(log)
	if err != nil {
		return nil, err
	}
	return exclude.NewFilter(state, log, c.MinArcSegmentLength), nil
}
