// Package cli implements the arbor command line: loading frame scenarios
// from YAML, running them as sessions, and rendering the outcome.
package cli

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Scenario is a declarative description of one session: the shared
// channel seed plus the frames to run.
type Scenario struct {
	Commons map[string]any `mapstructure:"commons"`
	Frames  []FrameSpec    `mapstructure:"frames"`
}

// FrameSpec describes one frame built from the routine library.
type FrameSpec struct {
	Name         string         `mapstructure:"name"`
	Routine      string         `mapstructure:"routine"`
	Realm        string         `mapstructure:"realm"`
	Redo         int            `mapstructure:"redo"`
	Environments map[string]any `mapstructure:"environments"`
	Requests     map[string]any `mapstructure:"requests"`
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	var sc Scenario
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &sc,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	if len(sc.Frames) == 0 {
		return nil, fmt.Errorf("scenario %q has no frames", path)
	}
	for i, f := range sc.Frames {
		if f.Routine == "" {
			return nil, fmt.Errorf("frame %d (%q): missing routine", i, f.Name)
		}
		switch f.Realm {
		case "", "concurrent", "parallel":
		default:
			return nil, fmt.Errorf("frame %q: unknown realm %q", f.Name, f.Realm)
		}
	}
	return &sc, nil
}
