// Package topology answers reachability questions over agent-reported
// connections: for a target machine, which machines hold an edge to it and
// with which communication types.
package topology

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

// Edge is one incoming connection of a target machine.
type Edge struct {
	SourceMachineID int
	Types           models.CommunicationTypes
}

// Resolver is a reverse adjacency index built once per reporting cycle.
// It is read-only after construction and safe for concurrent use.
type Resolver struct {
	incoming map[int][]Edge
}

// NewResolver indexes nodes in one pass. Edges for a target keep the order in
// which their source nodes appear in nodes.
//
// Every connection key must be a decimal machine id; otherwise the whole
// index is refused with a MalformedInput error.
func NewResolver(nodes []models.Node) (*Resolver, error) {
	r := &Resolver{incoming: make(map[int][]Edge)}

	for _, node := range nodes {
		// Sorted so that one node indexes its targets deterministically.
		keys := make([]string, 0, len(node.Connections))
		for k := range node.Connections {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			target, err := strconv.Atoi(key)
			if err != nil {
				return nil, errors.MalformedInput("topology.NewResolver",
					fmt.Errorf("node %d: connection key %q is not a machine id: %w", node.MachineID, key, err))
			}
			r.incoming[target] = append(r.incoming[target], Edge{
				SourceMachineID: node.MachineID,
				Types:           node.Connections[key].Clone(),
			})
		}
	}

	return r, nil
}

// Sources returns the incoming edges of target. A target nobody connects to
// yields an empty, non-nil slice.
func (r *Resolver) Sources(target int) []Edge {
	edges := r.incoming[target]
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = Edge{SourceMachineID: e.SourceMachineID, Types: e.Types.Clone()}
	}
	return out
}

// HasIncoming reports whether any node connects to target.
func (r *Resolver) HasIncoming(target int) bool {
	return len(r.incoming[target]) > 0
}

// HasIncomingOfType reports whether any node connects to target with an edge carrying t.
func (r *Resolver) HasIncomingOfType(target int, t models.CommunicationType) bool {
	return slices.ContainsFunc(r.incoming[target], func(e Edge) bool {
		return e.Types.Has(t)
	})
}

// Targets lists every machine with at least one incoming edge, ascending.
func (r *Resolver) Targets() []int {
	out := make([]int, 0, len(r.incoming))
	for target := range r.incoming {
		out = append(out, target)
	}
	slices.Sort(out)
	return out
}
