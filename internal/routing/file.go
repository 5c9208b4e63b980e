package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"frameworks/almanac/internal/intent"
)

// File is the on-disk routing override. Profiles replace built-ins with the
// same key and add new ones; routes replace whole entries per category.
type File struct {
	Profiles []ModelProfile                       `yaml:"profiles"`
	Routes   map[intent.TaskCategory]RoutingEntry `yaml:"routes"`
}

// LoadTable builds a table from the defaults merged with the YAML file at
// path. An empty path returns the defaults.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return NewTable(DefaultProfiles(), DefaultRoutes())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable merges a YAML document over the defaults.
func ParseTable(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Field: "file", Reason: err.Error()}
	}

	profiles := DefaultProfiles()
	index := make(map[string]int, len(profiles))
	for i, p := range profiles {
		index[p.Key] = i
	}
	for _, p := range f.Profiles {
		if i, ok := index[p.Key]; ok {
			profiles[i] = p
			continue
		}
		index[p.Key] = len(profiles)
		profiles = append(profiles, p)
	}

	routes := DefaultRoutes()
	for category, entry := range f.Routes {
		routes[category] = entry
	}
	return NewTable(profiles, routes)
}
