package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// CommunicationType labels an edge between two machines.
type CommunicationType string

const (
	CommunicationScanned   CommunicationType = "scanned"
	CommunicationExploited CommunicationType = "exploited"
	CommunicationCC        CommunicationType = "cc"
	CommunicationCCTunnel  CommunicationType = "cc_tunnel"
	CommunicationRelay     CommunicationType = "relay"
)

// AllCommunicationTypes lists the closed set in canonical order.
var AllCommunicationTypes = []CommunicationType{
	CommunicationScanned,
	CommunicationExploited,
	CommunicationCC,
	CommunicationCCTunnel,
	CommunicationRelay,
}

// ParseCommunicationType accepts the canonical value case-insensitively.
func ParseCommunicationType(s string) (CommunicationType, error) {
	ct := CommunicationType(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(AllCommunicationTypes, ct) {
		return "", fmt.Errorf("unknown communication type %q", s)
	}
	return ct, nil
}

// CommunicationTypes is the set of types observed on one edge.
type CommunicationTypes map[CommunicationType]struct{}

// NewCommunicationTypes builds a set from the given types.
func NewCommunicationTypes(types ...CommunicationType) CommunicationTypes {
	set := make(CommunicationTypes, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// Has reports whether t is in the set.
func (c CommunicationTypes) Has(t CommunicationType) bool {
	_, ok := c[t]
	return ok
}

// Add inserts t into the set.
func (c CommunicationTypes) Add(t CommunicationType) {
	c[t] = struct{}{}
}

// Slice returns the members sorted by value.
func (c CommunicationTypes) Slice() []CommunicationType {
	out := make([]CommunicationType, 0, len(c))
	for t := range c {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (c CommunicationTypes) Clone() CommunicationTypes {
	out := make(CommunicationTypes, len(c))
	for t := range c {
		out[t] = struct{}{}
	}
	return out
}

func (c CommunicationTypes) String() string {
	parts := make([]string, 0, len(c))
	for _, t := range c.Slice() {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as a sorted array.
func (c CommunicationTypes) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Slice())
}

// UnmarshalJSON decodes an array, rejecting unknown types.
func (c *CommunicationTypes) UnmarshalJSON(b []byte) error {
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	set := make(CommunicationTypes, len(raw))
	for _, s := range raw {
		t, err := ParseCommunicationType(s)
		if err != nil {
			return err
		}
		set[t] = struct{}{}
	}
	*c = set
	return nil
}
