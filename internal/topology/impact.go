// ABOUTME: Blast-radius simulation for taking a single asset offline.
// ABOUTME: Reports lost inter-zone reachability, isolated assets, cut links, and the SPOF flag.

package topology

import (
	"slices"
	"sort"

	"github.com/jfeddern/PatchRelay/internal/types"
)

type zonePair struct {
	a, b types.Zone
}

func newZonePair(x, y types.Zone) zonePair {
	if y < x {
		x, y = y, x
	}
	return zonePair{a: x, b: y}
}

// OfflineImpact simulates removing id from the graph. An empty or unknown id yields a
// zero impact rather than an error.
func OfflineImpact(g *Graph, id string) types.Impact {
	if _, ok := g.Asset(id); id == "" || !ok {
		return types.Impact{Disconnected: []string{}}
	}

	full := Analyze(g, "")
	removed := Analyze(g, id)

	before := reachableZonePairs(g, full.Components)
	after := reachableZonePairs(g, removed.Components)
	lost := 0
	for p := range before {
		if !after[p] {
			lost++
		}
	}

	// Only members of the candidate's own component can be cut off
	members := make(map[string]bool)
	for _, c := range full.Components {
		if !slices.Contains(c, id) {
			continue
		}
		for _, member := range c {
			if member != id {
				members[member] = true
			}
		}
		break
	}

	var largest []string
	for _, c := range removed.Components {
		if len(c) > 0 && members[c[0]] && len(c) > len(largest) {
			largest = c
		}
	}
	served := make(map[string]bool, len(largest))
	for _, member := range largest {
		served[member] = true
	}

	disconnected := []string{}
	for member := range members {
		if !served[member] {
			disconnected = append(disconnected, member)
		}
	}
	sort.Strings(disconnected)

	return types.Impact{
		IsSPOF:          full.ArticulationPoints[id],
		Disconnected:    disconnected,
		LostZoneBridges: lost,
		CutEdges:        g.Degree(id),
	}
}

// reachableZonePairs collects every pair of distinct zones that share a component
func reachableZonePairs(g *Graph, comps [][]string) map[zonePair]bool {
	pairs := make(map[zonePair]bool)
	for _, comp := range comps {
		var zones []types.Zone
		seen := make(map[types.Zone]bool)
		for _, id := range comp {
			a, _ := g.Asset(id)
			if a.Zone == "" || seen[a.Zone] {
				continue
			}
			seen[a.Zone] = true
			zones = append(zones, a.Zone)
		}
		for i := 0; i < len(zones); i++ {
			for j := i + 1; j < len(zones); j++ {
				pairs[newZonePair(zones[i], zones[j])] = true
			}
		}
	}
	return pairs
}
