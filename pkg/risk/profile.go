// Package risk evaluates collision and guard alarms for targets and ranks
// them by a composite priority order.
package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Unit conversions
const (
	MetersPerNM = 1852.0
	KnotsPerMPS = 1.943844
)

// Threshold is a CPA/TCPA alarm threshold with a minimum speed gate.
// A zero Speed means the gate always passes.
type Threshold struct {
	CPA   float64 `json:"cpa"`   // nautical miles
	TCPA  float64 `json:"tcpa"`  // seconds
	Speed float64 `json:"speed"` // knots
}

// GuardThreshold is a proximity-only alarm threshold
type GuardThreshold struct {
	Range float64 `json:"range"` // nautical miles
	Speed float64 `json:"speed"` // knots
}

// Profile is one named set of alarm thresholds
type Profile struct {
	Warning Threshold      `json:"warning"`
	Danger  Threshold      `json:"danger"`
	Guard   GuardThreshold `json:"guard"`
}

// Profile names
const (
	ProfileAnchor   = "anchor"
	ProfileHarbor   = "harbor"
	ProfileCoastal  = "coastal"
	ProfileOffshore = "offshore"
)

// ProfileSet holds the named profiles and the selector of the active one
type ProfileSet struct {
	Current  string             `json:"current"`
	Profiles map[string]Profile `json:"profiles"`
}

// DefaultProfileSet returns the built-in profiles with coastal selected
func DefaultProfileSet() ProfileSet {
	return ProfileSet{
		Current: ProfileCoastal,
		Profiles: map[string]Profile{
			ProfileAnchor: {
				Warning: Threshold{CPA: 0, TCPA: 3600, Speed: 0},
				Danger:  Threshold{CPA: 0, TCPA: 3600, Speed: 0},
				Guard:   GuardThreshold{Range: 0.25, Speed: 0},
			},
			ProfileHarbor: {
				Warning: Threshold{CPA: 0.2, TCPA: 600, Speed: 0.5},
				Danger:  Threshold{CPA: 0.1, TCPA: 300, Speed: 3},
				Guard:   GuardThreshold{Range: 0, Speed: 0},
			},
			ProfileCoastal: {
				Warning: Threshold{CPA: 1, TCPA: 1800, Speed: 0.5},
				Danger:  Threshold{CPA: 0.5, TCPA: 900, Speed: 3},
				Guard:   GuardThreshold{Range: 0, Speed: 0},
			},
			ProfileOffshore: {
				Warning: Threshold{CPA: 2, TCPA: 3600, Speed: 0.5},
				Danger:  Threshold{CPA: 1, TCPA: 1800, Speed: 0.5},
				Guard:   GuardThreshold{Range: 0, Speed: 0},
			},
		},
	}
}

// Active returns a copy of the currently selected profile
func (s ProfileSet) Active() (Profile, error) {
	p, ok := s.Profiles[s.Current]
	if !ok {
		return Profile{}, fmt.Errorf("unknown collision profile %q", s.Current)
	}
	return p, nil
}

// Names returns the profile names in sorted order
func (s ProfileSet) Names() []string {
	names := make([]string, 0, len(s.Profiles))
	for n := range s.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the set
func (s ProfileSet) Clone() ProfileSet {
	c := ProfileSet{Current: s.Current, Profiles: make(map[string]Profile, len(s.Profiles))}
	for k, v := range s.Profiles {
		c.Profiles[k] = v
	}
	return c
}

// WithCurrent returns a copy of the set with a different active profile
func (s ProfileSet) WithCurrent(name string) (ProfileSet, error) {
	if _, ok := s.Profiles[name]; !ok {
		return ProfileSet{}, fmt.Errorf("unknown collision profile %q", name)
	}
	c := s.Clone()
	c.Current = name
	return c, nil
}

// Validate checks that the set is usable
func (s ProfileSet) Validate() error {
	if len(s.Profiles) == 0 {
		return fmt.Errorf("no collision profiles defined")
	}
	if _, err := s.Active(); err != nil {
		return err
	}
	for name, p := range s.Profiles {
		for _, v := range []float64{p.Warning.CPA, p.Warning.TCPA, p.Warning.Speed,
			p.Danger.CPA, p.Danger.TCPA, p.Danger.Speed, p.Guard.Range, p.Guard.Speed} {
			if v < 0 {
				return fmt.Errorf("profile %q has a negative threshold", name)
			}
		}
	}
	return nil
}

// LoadProfileSet reads a profile set from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadProfileSet(path string) (ProfileSet, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return ProfileSet{}, fmt.Errorf("profile file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return ProfileSet{}, fmt.Errorf("failed to stat profile file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return ProfileSet{}, fmt.Errorf("profile file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return ProfileSet{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	var set ProfileSet
	if err := json.Unmarshal(data, &set); err != nil {
		return ProfileSet{}, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if err := set.Validate(); err != nil {
		return ProfileSet{}, fmt.Errorf("invalid profile file: %w", err)
	}
	return set, nil
}
