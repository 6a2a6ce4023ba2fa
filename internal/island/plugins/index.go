// Package plugins reads the agent plugin repository index.
package plugins

import (
	"cmp"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PluginMetadata describes one released version of an agent plugin.
type PluginMetadata struct {
	Name         string `yaml:"name" json:"name"`
	PluginType   string `yaml:"plugin_type" json:"plugin_type"`
	ResourcePath string `yaml:"resource_path" json:"resource_path"`
	SHA256       string `yaml:"sha256" json:"sha256"`
	Description  string `yaml:"description" json:"description"`
	Version      string `yaml:"version" json:"version"`
	Safe         bool   `yaml:"safe" json:"safe"`
}

// RepositoryIndex is the parsed index.yml of a plugin repository.
type RepositoryIndex struct {
	Timestamp                        float64                                `yaml:"timestamp" json:"timestamp"`
	CompatibleInfectionMonkeyVersion string                                 `yaml:"compatible_infection_monkey_version" json:"compatible_infection_monkey_version"`
	Plugins                          map[string]map[string][]PluginMetadata `yaml:"plugins" json:"plugins"`
}

// ParseIndex decodes an index.yml document. Each plugin's versions are sorted
// oldest first.
func ParseIndex(data []byte) (*RepositoryIndex, error) {
	var index RepositoryIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse plugin repository index: %w", err)
	}
	if index.Plugins == nil {
		index.Plugins = make(map[string]map[string][]PluginMetadata)
	}
	for pluginType, byName := range index.Plugins {
		for name, versions := range byName {
			for i := range versions {
				if versions[i].PluginType == "" {
					versions[i].PluginType = pluginType
				}
				if versions[i].Name == "" {
					versions[i].Name = name
				}
			}
			sort.SliceStable(versions, func(i, j int) bool {
				return compareVersions(versions[i].Version, versions[j].Version) < 0
			})
		}
	}
	return &index, nil
}

// Generated returns the index timestamp as a UTC time.
func (i *RepositoryIndex) Generated() time.Time {
	sec := int64(i.Timestamp)
	nsec := int64((i.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// Lookup returns the metadata of a plugin version. An empty version selects the newest.
func (i *RepositoryIndex) Lookup(pluginType, name, version string) (PluginMetadata, bool) {
	versions := i.Plugins[pluginType][name]
	if len(versions) == 0 {
		return PluginMetadata{}, false
	}
	if version == "" {
		return versions[len(versions)-1], true
	}
	for _, m := range versions {
		if m.Version == version {
			return m, true
		}
	}
	return PluginMetadata{}, false
}

// compareVersions orders dotted numeric versions. Non-numeric parts compare as strings.
func compareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for k := 0; k < len(pa) || k < len(pb); k++ {
		var x, y string
		if k < len(pa) {
			x = pa[k]
		}
		if k < len(pb) {
			y = pb[k]
		}
		nx, errX := strconv.Atoi(x)
		ny, errY := strconv.Atoi(y)
		if errX == nil && errY == nil {
			if c := cmp.Compare(nx, ny); c != 0 {
				return c
			}
			continue
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}
