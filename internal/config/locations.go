package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GridCell is a named KMA forecast grid coordinate.
type GridCell struct {
	Name string `yaml:"name"`
	NX   int    `yaml:"nx"`
	NY   int    `yaml:"ny"`
}

type locationsFile struct {
	Locations []GridCell `yaml:"locations"`
}

// LoadLocations reads a YAML list of grid cells:
//
//	locations:
//	  - name: 종로구
//	    nx: 60
//	    ny: 127
func LoadLocations(path string) (map[string]GridCell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read WEATHER_LOCATIONS_FILE: %w", err)
	}
	return parseLocations(data)
}

func parseLocations(data []byte) (map[string]GridCell, error) {
	var f locationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse WEATHER_LOCATIONS_FILE: %w", err)
	}

	cells := make(map[string]GridCell, len(f.Locations))
	for i, c := range f.Locations {
		if c.Name == "" {
			return nil, fmt.Errorf("WEATHER_LOCATIONS_FILE: location %d has no name", i)
		}
		if c.NX <= 0 || c.NY <= 0 {
			return nil, fmt.Errorf("WEATHER_LOCATIONS_FILE: location %q needs positive nx and ny", c.Name)
		}
		if _, dup := cells[c.Name]; dup {
			return nil, fmt.Errorf("WEATHER_LOCATIONS_FILE: duplicate location %q", c.Name)
		}
		cells[c.Name] = c
	}
	return cells, nil
}
