package models

import "fmt"

// IslandMode is the island's operating mode.
type IslandMode string

const (
	ModeUnset      IslandMode = "unset"
	ModeRansomware IslandMode = "ransomware"
	ModeAdvanced   IslandMode = "advanced"
)

// IslandModes lists every recognized mode.
var IslandModes = []IslandMode{ModeUnset, ModeRansomware, ModeAdvanced}

// Valid reports whether m is a recognized mode.
func (m IslandMode) Valid() bool {
	switch m {
	case ModeUnset, ModeRansomware, ModeAdvanced:
		return true
	}
	return false
}

// ParseIslandMode returns the mode with the exact canonical value s.
func ParseIslandMode(s string) (IslandMode, error) {
	m := IslandMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown island mode %q", s)
	}
	return m, nil
}
