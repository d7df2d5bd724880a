// Package session reads the viewer's session file: which library is loaded,
// which study area to show with what initial conditions, and the run whose
// spatial outputs to play back.
package session

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrNoLibrary    = errors.New("session: library name is required")
	ErrNoVegTypes   = errors.New("session: library defines no vegetation types")
	ErrNoAssetName  = errors.New("session: vegetation type has no asset name")
	ErrNoStudyArea  = errors.New("session: study area id is required")
	ErrBadRunRange  = errors.New("session: run control range is empty")
	ErrNoScenarioID = errors.New("session: run control needs a scenario id")
)

// Session is the top-level document.
type Session struct {
	Library    LibraryDefinitions `yaml:"library"`
	StudyArea  StudyArea          `yaml:"study_area"`
	RunControl *RunControl        `yaml:"run_control,omitempty"`
}

// LibraryDefinitions names a library and the vegetation types it knows.
type LibraryDefinitions struct {
	Name     string             `yaml:"name"`
	VegTypes map[string]VegType `yaml:"veg_types"`
}

// VegType maps a vegetation type to its class id in the vegetation raster
// and the asset group used to draw it.
type VegType struct {
	ID        uint32 `yaml:"id"`
	AssetName string `yaml:"asset_name"`
}

// AssetGroups returns the distinct asset names, sorted.
func (d LibraryDefinitions) AssetGroups() []string {
	seen := make(map[string]bool, len(d.VegTypes))
	for _, v := range d.VegTypes {
		seen[v.AssetName] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// Equal reports whether d and o describe the same library.
func (d LibraryDefinitions) Equal(o LibraryDefinitions) bool {
	return d.Name == o.Name && maps.Equal(d.VegTypes, o.VegTypes)
}

// Validate checks the definitions.
func (d LibraryDefinitions) Validate() error {
	if d.Name == "" {
		return ErrNoLibrary
	}
	if len(d.VegTypes) == 0 {
		return ErrNoVegTypes
	}
	for name, v := range d.VegTypes {
		if v.AssetName == "" {
			return fmt.Errorf("%w: %s", ErrNoAssetName, name)
		}
	}
	return nil
}

// StudyArea selects a region and its starting vegetation state.
type StudyArea struct {
	ID         string     `yaml:"id"`
	Conditions Conditions `yaml:"initial_conditions"`
}

// Conditions holds the initial state-class share per vegetation type.
type Conditions struct {
	VegSCPct map[string]map[string]float64 `yaml:"veg_sc_pct"`
}

// VegTypes returns the vegetation types present, sorted.
func (c Conditions) VegTypes() []string {
	return slices.Sorted(maps.Keys(c.VegSCPct))
}

// Equal reports whether both hold the same shares.
func (c Conditions) Equal(o Conditions) bool {
	if len(c.VegSCPct) != len(o.VegSCPct) {
		return false
	}
	for name, pct := range c.VegSCPct {
		other, ok := o.VegSCPct[name]
		if !ok || !maps.Equal(pct, other) {
			return false
		}
	}
	return true
}

// RunControl describes which iterations and timesteps a finished run produced.
// Both ranges are inclusive.
type RunControl struct {
	ScenarioID   string `yaml:"scenario_id"`
	MinIteration int    `yaml:"min_iteration"`
	MaxIteration int    `yaml:"max_iteration"`
	MinTimestep  int    `yaml:"min_timestep"`
	MaxTimestep  int    `yaml:"max_timestep"`
}

// Validate checks the ranges.
func (r RunControl) Validate() error {
	if r.ScenarioID == "" {
		return ErrNoScenarioID
	}
	if r.MaxIteration < r.MinIteration || r.MaxTimestep < r.MinTimestep {
		return ErrBadRunRange
	}
	return nil
}

// Steps returns every (iteration, timestep) pair, iteration-major.
func (r RunControl) Steps() [][2]int {
	var out [][2]int
	for it := r.MinIteration; it <= r.MaxIteration; it++ {
		for ts := r.MinTimestep; ts <= r.MaxTimestep; ts++ {
			out = append(out, [2]int{it, ts})
		}
	}
	return out
}

// Key names the output texture of one step.
func Key(iteration, timestep int) string {
	return fmt.Sprintf("%d_%d", iteration, timestep)
}

// Parse decodes and validates a session document.
func Parse(data []byte) (*Session, error) {
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate checks every section.
func (s *Session) Validate() error {
	if err := s.Library.Validate(); err != nil {
		return err
	}
	if s.StudyArea.ID == "" {
		return ErrNoStudyArea
	}
	if s.RunControl != nil {
		return s.RunControl.Validate()
	}
	return nil
}
