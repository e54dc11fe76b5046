// ABOUTME: Connectivity analysis over the undirected skeleton of the topology graph.
// ABOUTME: Finds articulation points with Tarjan's low-link DFS and connected components with BFS.

package topology

// Connectivity is the result of one connectivity analysis
type Connectivity struct {
	ArticulationPoints map[string]bool
	Components         [][]string
}

// lowLinkState holds per-node state during the articulation point DFS
type lowLinkState struct {
	disc   int
	low    int
	parent string
	root   bool
}

// Analyze computes articulation points and connected components, optionally with one
// asset removed along with its incident links. All traversal state is local to the call.
func Analyze(g *Graph, exclude string) Connectivity {
	adj := undirectedAdjacency(g, exclude)
	order := make([]string, 0, len(adj))
	for _, a := range g.Assets() {
		if a.ID != exclude {
			order = append(order, a.ID)
		}
	}

	return Connectivity{
		ArticulationPoints: articulationPoints(adj, order),
		Components:         components(adj, order),
	}
}

// undirectedAdjacency collapses parallel links so every neighbor appears once
func undirectedAdjacency(g *Graph, exclude string) map[string][]string {
	adj := make(map[string][]string, g.Len())
	for _, a := range g.Assets() {
		if a.ID == exclude {
			continue
		}
		seen := make(map[string]bool)
		var ns []string
		for _, n := range g.Neighbors(a.ID) {
			if n.ID == exclude || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			ns = append(ns, n.ID)
		}
		adj[a.ID] = ns
	}
	return adj
}

func articulationPoints(adj map[string][]string, order []string) map[string]bool {
	state := make(map[string]*lowLinkState, len(order))
	cut := make(map[string]bool)
	counter := 0

	var visit func(u string)
	visit = func(u string) {
		counter++
		su := state[u]
		su.disc = counter
		su.low = counter
		children := 0

		for _, v := range adj[u] {
			sv, seen := state[v]
			if !seen {
				state[v] = &lowLinkState{parent: u}
				children++
				visit(v)
				sv = state[v]
				if sv.low < su.low {
					su.low = sv.low
				}
				if !su.root && sv.low >= su.disc {
					cut[u] = true
				}
			} else if v != su.parent {
				if sv.disc < su.low {
					su.low = sv.disc
				}
			}
		}

		if su.root && children > 1 {
			cut[u] = true
		}
	}

	for _, id := range order {
		if _, seen := state[id]; seen {
			continue
		}
		state[id] = &lowLinkState{root: true}
		visit(id)
	}

	return cut
}

func components(adj map[string][]string, order []string) [][]string {
	visited := make(map[string]bool, len(order))
	var comps [][]string

	for _, start := range order {
		if visited[start] {
			continue
		}

		queue := []string{start}
		visited[start] = true
		var comp []string

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			comp = append(comp, u)

			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}

		comps = append(comps, comp)
	}

	return comps
}
