// ABOUTME: Immutable topology graph built from an inventory snapshot.
// ABOUTME: Indexes assets by id and builds the undirected adjacency used by every analysis stage.

package topology

import "github.com/jfeddern/PatchRelay/internal/types"

// Neighbor is one adjacent asset together with the link that reaches it
type Neighbor struct {
	ID   string
	Link types.Link
}

// Graph is a read-only view over a snapshot. Nothing in this package mutates it
// after NewGraph returns, so a Graph may be shared between concurrent evaluations.
type Graph struct {
	assets    []types.Asset
	index     map[string]int
	links     []types.Link
	adjacency map[string][]Neighbor
	degree    map[string]int
	maxDegree int
	skipped   int
}

// NewGraph builds a graph from a snapshot. Links whose endpoints are not both known
// assets, and self-loops, are kept out of the adjacency but still count toward the
// degree of a known endpoint.
func NewGraph(snap types.Snapshot) *Graph {
	g := &Graph{
		assets:    make([]types.Asset, 0, len(snap.Assets)),
		index:     make(map[string]int, len(snap.Assets)),
		adjacency: make(map[string][]Neighbor, len(snap.Assets)),
		degree:    make(map[string]int, len(snap.Assets)),
	}

	for _, a := range snap.Assets {
		if _, dup := g.index[a.ID]; dup {
			continue
		}
		g.index[a.ID] = len(g.assets)
		g.assets = append(g.assets, a)
		g.adjacency[a.ID] = nil
	}

	for _, l := range snap.Links {
		_, srcOK := g.index[l.Source]
		_, dstOK := g.index[l.Target]
		if srcOK {
			g.degree[l.Source]++
		}
		if dstOK && l.Target != l.Source {
			g.degree[l.Target]++
		}
		if !srcOK || !dstOK || l.Source == l.Target {
			g.skipped++
			continue
		}
		g.links = append(g.links, l)
		g.adjacency[l.Source] = append(g.adjacency[l.Source], Neighbor{ID: l.Target, Link: l})
		g.adjacency[l.Target] = append(g.adjacency[l.Target], Neighbor{ID: l.Source, Link: l})
	}

	for _, a := range g.assets {
		if d := g.degree[a.ID]; d > g.maxDegree {
			g.maxDegree = d
		}
	}

	return g
}

// Asset looks up an asset by id
func (g *Graph) Asset(id string) (types.Asset, bool) {
	i, ok := g.index[id]
	if !ok {
		return types.Asset{}, false
	}
	return g.assets[i], true
}

// Assets returns the assets in snapshot order. Callers must not modify the slice.
func (g *Graph) Assets() []types.Asset {
	return g.assets
}

// Links returns the links that made it into the adjacency
func (g *Graph) Links() []types.Link {
	return g.links
}

// Neighbors returns adjacent assets in link order
func (g *Graph) Neighbors(id string) []Neighbor {
	return g.adjacency[id]
}

// Degree counts every link record touching id, including links to unknown endpoints
func (g *Graph) Degree(id string) int {
	return g.degree[id]
}

// MaxDegree is the largest degree of any asset, floored at 1
func (g *Graph) MaxDegree() int {
	if g.maxDegree < 1 {
		return 1
	}
	return g.maxDegree
}

// SkippedLinks is the number of dangling or self-referencing links left out of the adjacency
func (g *Graph) SkippedLinks() int {
	return g.skipped
}

func (g *Graph) Len() int {
	return len(g.assets)
}

// HAPeerAvailable reports whether the asset names an HA peer that exists in the
// snapshot and is not itself in outage
func (g *Graph) HAPeerAvailable(id string) bool {
	a, ok := g.Asset(id)
	if !ok || a.HAPeer == "" || a.HAPeer == id {
		return false
	}
	peer, ok := g.Asset(a.HAPeer)
	if !ok {
		return false
	}
	return peer.Status != types.StatusOutage
}
