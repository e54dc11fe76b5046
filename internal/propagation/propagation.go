// ABOUTME: Risk propagation across the topology graph from one or more seed assets.
// ABOUTME: Bounded breadth-first relaxation with per-hop decay, zone-crossing penalties, and a cutoff.

package propagation

import (
	"strings"

	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"
)

// Cutoff is the propagated risk at or below which a path stops spreading
const Cutoff = 0.01

// Options configures a propagation run
type Options struct {
	Steps            int     `yaml:"steps"`
	BaseEdgeProb     float64 `yaml:"base_edge_prob"`
	DecayPerHop      float64 `yaml:"decay_per_hop"`
	CrossZonePenalty float64 `yaml:"cross_zone_penalty"`
}

// DefaultOptions returns the standard propagation parameters
func DefaultOptions() Options {
	return Options{
		Steps:            3,
		BaseEdgeProb:     0.45,
		DecayPerHop:      0.8,
		CrossZonePenalty: 0.7,
	}
}

// withDefaults fills zero-valued fields so a partially specified Options still works
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Steps <= 0 {
		o.Steps = d.Steps
	}
	if o.BaseEdgeProb <= 0 {
		o.BaseEdgeProb = d.BaseEdgeProb
	}
	if o.DecayPerHop <= 0 {
		o.DecayPerHop = d.DecayPerHop
	}
	if o.CrossZonePenalty <= 0 {
		o.CrossZonePenalty = d.CrossZonePenalty
	}
	return o
}

// IntrinsicRisk is the risk an asset contributes on its own, in [0,1]
func IntrinsicRisk(a types.Asset) float64 {
	exposure := 0.55*(a.Vulnerability/10) + 0.45*(1-a.PatchLevel)
	return types.Clamp01(types.Clamp01(exposure) * statusMultiplier(a.Status))
}

func statusMultiplier(s types.Status) float64 {
	switch s {
	case types.StatusOutage:
		return 1.25
	case types.StatusDegraded:
		return 1.1
	default:
		return 1.0
	}
}

// EdgeProbability is the chance risk crosses link l from one asset to the next
func EdgeProbability(l types.Link, from, to types.Asset, opts Options) float64 {
	opts = opts.withDefaults()

	lossMul := 1.0
	if l.Loss > 0.5 {
		lossMul = 0.9
	}

	zoneMul := 1.0
	if crossesInward(from.Zone, to.Zone) {
		zoneMul = opts.CrossZonePenalty
	}

	hardening := 0.75 + 0.25*(1-to.PatchLevel)

	return types.Clamp01(opts.BaseEdgeProb * lossMul * zoneMul * hardening)
}

// crossesInward reports traversal from the perimeter toward protected zones
func crossesInward(from, to types.Zone) bool {
	f, t := string(from), string(to)
	if strings.Contains(f, "DMZ") && (strings.Contains(t, "Clinical") || strings.Contains(t, "Admin")) {
		return true
	}
	return strings.Contains(f, "External") && strings.Contains(t, "DMZ")
}

type frontierEntry struct {
	id    string
	risk  float64
	depth int
}

// Compute spreads risk outward from seeds and returns the peak risk reached by every
// touched asset. Unknown seeds are ignored. A node is re-expanded only when its recorded
// risk strictly increases, and every path stops at the step bound or the cutoff, so the
// run terminates on cyclic graphs. The returned map is freshly allocated.
func Compute(g *topology.Graph, seeds []string, opts Options) map[string]float64 {
	opts = opts.withDefaults()
	risk := make(map[string]float64)
	var queue []frontierEntry

	for _, id := range seeds {
		a, ok := g.Asset(id)
		if !ok {
			continue
		}
		r0 := IntrinsicRisk(a)
		if prev, seen := risk[id]; !seen || r0 > prev {
			risk[id] = r0
		}
		queue = append(queue, frontierEntry{id: id, risk: r0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= opts.Steps {
			continue
		}

		from, _ := g.Asset(cur.id)
		for _, n := range g.Neighbors(cur.id) {
			to, _ := g.Asset(n.ID)
			next := cur.risk * EdgeProbability(n.Link, from, to, opts) * opts.DecayPerHop
			if next <= Cutoff {
				continue
			}
			if next > risk[n.ID] {
				risk[n.ID] = next
				queue = append(queue, frontierEntry{id: n.ID, risk: next, depth: cur.depth + 1})
			}
		}
	}

	return risk
}

// HotLinks returns the ids of links whose endpoints both carry at least threshold risk
func HotLinks(risk map[string]float64, links []types.Link, threshold float64) []string {
	hot := []string{}
	for _, l := range links {
		rs, okS := risk[l.Source]
		rt, okT := risk[l.Target]
		if okS && okT && rs >= threshold && rt >= threshold {
			hot = append(hot, l.ID)
		}
	}
	return hot
}
