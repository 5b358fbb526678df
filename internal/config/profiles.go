package config

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
)

//go:embed profiles.yaml
var profilesYAML []byte

type profileFile struct {
	Profiles map[string]profileEntry `yaml:"profiles"`
}

type profileEntry struct {
	Method     string  `yaml:"method"`
	Dimension  int     `yaml:"dimension"`
	Normalized bool    `yaml:"normalized"`
	Threshold  float64 `yaml:"threshold"`
}

// Profiles parses the embedded profile table and validates every entry.
func Profiles() (map[string]biometric.Profile, error) {
	return parseProfiles(profilesYAML)
}

func parseProfiles(data []byte) (map[string]biometric.Profile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	profiles := make(map[string]biometric.Profile, len(file.Profiles))
	for name, e := range file.Profiles {
		p := biometric.Profile{
			Name:       name,
			Method:     biometric.Method(e.Method),
			Dimension:  e.Dimension,
			Normalized: e.Normalized,
			Threshold:  e.Threshold,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[name] = p
	}
	return profiles, nil
}

// LoadProfile returns the named profile from the embedded table.
func LoadProfile(name string) (biometric.Profile, error) {
	profiles, err := Profiles()
	if err != nil {
		return biometric.Profile{}, err
	}

	p, ok := profiles[name]
	if !ok {
		return biometric.Profile{}, fmt.Errorf("unknown matching profile %q (available: %v)", name, ProfileNames(profiles))
	}
	return p, nil
}

// ProfileNames lists profile names in sorted order.
func ProfileNames(profiles map[string]biometric.Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
