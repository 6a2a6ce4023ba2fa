package models

import (
	"fmt"
	"slices"
)

// OperatingSystem is an agent host platform.
type OperatingSystem string

const (
	OSLinux   OperatingSystem = "linux"
	OSWindows OperatingSystem = "windows"
)

// OperatingSystems lists every supported host platform.
var OperatingSystems = []OperatingSystem{OSLinux, OSWindows}

// ParseOperatingSystem returns the platform named s.
func ParseOperatingSystem(s string) (OperatingSystem, error) {
	os := OperatingSystem(s)
	if !slices.Contains(OperatingSystems, os) {
		return "", fmt.Errorf("unknown operating system %q", s)
	}
	return os, nil
}

// AgentPluginType is the role a plugin plays inside an agent.
type AgentPluginType string

const (
	PluginCredentialsCollector AgentPluginType = "CredentialsCollector"
	PluginExploiter            AgentPluginType = "Exploiter"
	PluginFingerprinter        AgentPluginType = "Fingerprinter"
	PluginPayload              AgentPluginType = "Payload"
)

// AgentPluginTypes lists every plugin type.
var AgentPluginTypes = []AgentPluginType{PluginCredentialsCollector, PluginExploiter, PluginFingerprinter, PluginPayload}

// ParseAgentPluginType returns the plugin type named s.
func ParseAgentPluginType(s string) (AgentPluginType, error) {
	t := AgentPluginType(s)
	if !slices.Contains(AgentPluginTypes, t) {
		return "", fmt.Errorf("unknown agent plugin type %q", s)
	}
	return t, nil
}

// AgentPluginManifest is the manifest.yaml shipped in a plugin archive.
type AgentPluginManifest struct {
	Name                      string            `yaml:"name" json:"name"`
	PluginType                AgentPluginType   `yaml:"plugin_type" json:"plugin_type"`
	Version                   string            `yaml:"version" json:"version"`
	Title                     string            `yaml:"title,omitempty" json:"title,omitempty"`
	Description               string            `yaml:"description,omitempty" json:"description,omitempty"`
	SupportedOperatingSystems []OperatingSystem `yaml:"supported_operating_systems" json:"supported_operating_systems"`
	Safe                      bool              `yaml:"safe" json:"safe"`
	LinkToDocumentation       string            `yaml:"link_to_documentation,omitempty" json:"link_to_documentation,omitempty"`
}

// Supports reports whether the plugin runs on os.
func (m AgentPluginManifest) Supports(os OperatingSystem) bool {
	return slices.Contains(m.SupportedOperatingSystems, os)
}

// AgentPlugin is an installed plugin built for one host platform.
type AgentPlugin struct {
	Manifest            AgentPluginManifest `json:"plugin_manifest"`
	ConfigSchema        map[string]any      `json:"config_schema"`
	SourceArchive       []byte              `json:"source_archive"`
	HostOperatingSystem OperatingSystem     `json:"host_operating_system"`
}

// Clone returns a deep copy of the plugin's slices. The config schema is
// shared; it is never mutated after parsing.
func (p AgentPlugin) Clone() AgentPlugin {
	p.Manifest.SupportedOperatingSystems = slices.Clone(p.Manifest.SupportedOperatingSystems)
	p.SourceArchive = slices.Clone(p.SourceArchive)
	return p
}
