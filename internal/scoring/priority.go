// ABOUTME: Multi-factor patch priority scoring for a single asset.
// ABOUTME: Blends severity, exploit likelihood, business impact, and topology into a bucketed priority.

package scoring

import (
	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"
)

const (
	weightSeverity = 0.38
	weightExploit  = 0.27
	weightBusiness = 0.25
	weightTopology = 0.10
	kevBonus       = 0.08
	spofBonus      = 0.3
)

// defaultBusinessImpact covers every declared device type
var defaultBusinessImpact = map[types.DeviceType]float64{
	types.DeviceFirewall:    0.9,
	types.DeviceEHR:         0.9,
	types.DeviceDatabase:    0.9,
	types.DeviceRouter:      0.8,
	types.DeviceHL7:         0.8,
	types.DeviceServer:      0.7,
	types.DevicePACS:        0.7,
	types.DeviceSwitch:      0.6,
	types.DeviceWiFiAP:      0.6,
	types.DeviceMedicalIoT:  0.5,
	types.DeviceWorkstation: 0.3,
	types.DeviceOther:       0.5,
}

// DefaultBusinessImpact returns the device-class business impact, 0.5 for anything unlisted
func DefaultBusinessImpact(t types.DeviceType) float64 {
	if v, ok := defaultBusinessImpact[t]; ok {
		return v
	}
	return 0.5
}

// SeverityExploitFallback estimates exploit probability from the raw severity score
func SeverityExploitFallback(vuln float64) float64 {
	switch {
	case vuln >= 9:
		return 0.6
	case vuln >= 7:
		return 0.35
	case vuln >= 4:
		return 0.12
	default:
		return 0.05
	}
}

// ExploitProbability is the highest intel probability over the asset's CVEs, or the
// severity fallback when intel is absent or knows none of them
func ExploitProbability(a types.Asset, intel types.Intel) float64 {
	if data, ok := intel.Data(); ok && data.ExploitProbability != nil {
		best, found := 0.0, false
		for _, cve := range a.CVEs {
			if p, ok := data.ExploitProbability[cve]; ok {
				if !found || p > best {
					best = p
				}
				found = true
			}
		}
		if found {
			return types.Clamp01(best)
		}
	}
	return SeverityExploitFallback(a.Vulnerability)
}

// BusinessImpact prefers the asset override, then intel, then the device default
func BusinessImpact(a types.Asset, intel types.Intel) float64 {
	if a.BusinessImpact != nil {
		return types.Clamp01(*a.BusinessImpact)
	}
	if data, ok := intel.Data(); ok {
		if v, ok := data.BusinessImpact[a.ID]; ok {
			return types.Clamp01(v)
		}
	}
	return DefaultBusinessImpact(a.Type)
}

// IsKEV reports whether any of the asset's CVEs is on the known-exploited list
func IsKEV(a types.Asset, intel types.Intel) bool {
	data, ok := intel.Data()
	if !ok {
		return false
	}
	for _, cve := range a.CVEs {
		if _, ok := data.KnownExploited[cve]; ok {
			return true
		}
	}
	return false
}

// DegreeCentrality is the asset's degree relative to the busiest asset
func DegreeCentrality(g *topology.Graph, id string) float64 {
	return types.Clamp01(float64(g.Degree(id)) / float64(g.MaxDegree()))
}

// ZoneBridgeBonus grows with the number of distinct zones among the asset's neighbors
func ZoneBridgeBonus(g *topology.Graph, id string) float64 {
	zones := make(map[types.Zone]bool)
	for _, n := range g.Neighbors(id) {
		if a, ok := g.Asset(n.ID); ok {
			zones[a.Zone] = true
		}
	}
	return types.Clamp01(float64(len(zones)-1) / 2)
}

// TopologyFactor combines centrality, zone bridging, and the SPOF flag
func TopologyFactor(g *topology.Graph, id string, spof bool) float64 {
	t := 0.6*DegreeCentrality(g, id) + 0.4*ZoneBridgeBonus(g, id)
	if spof {
		t += spofBonus
	}
	return types.Clamp01(t)
}

// Bucket maps a score to a priority; a KEV flag always means Emergency
func Bucket(score float64, kev bool) types.Priority {
	switch {
	case kev || score >= 0.8:
		return types.PriorityEmergency
	case score >= 0.6:
		return types.PriorityHigh
	case score >= 0.4:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// Score computes the patch priority of one asset. The SPOF signal comes from the
// impact simulator run against the same graph.
func Score(a types.Asset, g *topology.Graph, intel types.Intel) types.PriorityResult {
	severity := types.Clamp01(a.Vulnerability / 10)
	exploit := ExploitProbability(a, intel)
	business := BusinessImpact(a, intel)
	spof := topology.OfflineImpact(g, a.ID).IsSPOF
	topo := TopologyFactor(g, a.ID, spof)
	kev := IsKEV(a, intel)

	score := weightSeverity*severity + weightExploit*exploit + weightBusiness*business + weightTopology*topo
	if kev {
		score += kevBonus
	}
	score = types.Clamp01(score)

	return types.PriorityResult{
		Priority: Bucket(score, kev),
		Score:    score,
		Factors: types.PriorityFactors{
			Severity:           a.Vulnerability,
			ExploitProbability: exploit,
			BusinessImpact:     business,
			Topology:           topo,
			KEV:                kev,
			SPOF:               spof,
		},
	}
}
