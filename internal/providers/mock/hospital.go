// ABOUTME: Mock inventory provider generating a demo hospital network for development and demos.
// ABOUTME: Output is seeded and stable so repeated loads yield the same snapshot.

package mock

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/jfeddern/PatchRelay/internal/validation"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAssetCount = 42
	DefaultSeed       = 2025
	linkSeedOffset    = 1
	haPairs           = 2
)

// generated device classes; Other is never produced
var hospitalTypes = []types.DeviceType{
	types.DeviceFirewall, types.DeviceRouter, types.DeviceSwitch, types.DeviceServer,
	types.DeviceDatabase, types.DeviceWorkstation, types.DeviceEHR, types.DevicePACS,
	types.DeviceHL7, types.DeviceMedicalIoT, types.DeviceWiFiAP,
}

// MockHospitalProvider implements InventorySource with a generated hospital topology
type MockHospitalProvider struct {
	assets int
	seed   uint64
	logger *logrus.Logger
}

// NewMockHospitalProvider creates a provider with the default size and seed
func NewMockHospitalProvider(logger *logrus.Logger) *MockHospitalProvider {
	return &MockHospitalProvider{
		assets: DefaultAssetCount,
		seed:   DefaultSeed,
		logger: logger,
	}
}

// WithSize overrides the number of generated assets and the seed
func (m *MockHospitalProvider) WithSize(assets int, seed uint64) *MockHospitalProvider {
	m.assets = assets
	m.seed = seed
	return m
}

// Name returns the provider name
func (m *MockHospitalProvider) Name() string {
	return "mock-hospital"
}

// LoadSnapshot returns the generated hospital network
func (m *MockHospitalProvider) LoadSnapshot(ctx context.Context) (types.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.Snapshot{}, err
	}

	assets := generateAssets(m.assets, m.seed)
	snap := types.Snapshot{
		Assets:  assets,
		Links:   generateLinks(assets, m.seed+linkSeedOffset),
		History: generateHistory(assets),
	}
	assignHAPeers(&snap, haPairs)

	out, err := validation.Normalize(snap)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("generated inventory is invalid: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"operation": "load_snapshot_mock",
		"assets":    len(out.Assets),
		"links":     len(out.Links),
	}).Debug("Generated mock hospital inventory")

	return out, nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func isNetworkGear(t types.DeviceType) bool {
	switch t {
	case types.DeviceFirewall, types.DeviceRouter, types.DeviceSwitch, types.DeviceWiFiAP:
		return true
	}
	return false
}

func basePatchLevel(t types.DeviceType) float64 {
	switch t {
	case types.DeviceMedicalIoT:
		return 0.75
	case types.DeviceDatabase, types.DeviceServer, types.DeviceEHR:
		return 0.82
	case types.DeviceWorkstation:
		return 0.78
	}
	return 0.86
}

func generateAssets(n int, seed uint64) []types.Asset {
	r := newRand(seed)
	assets := make([]types.Asset, 0, n)

	for i := 0; i < n; i++ {
		t := hospitalTypes[r.IntN(len(hospitalTypes))]

		var zone types.Zone
		switch {
		case isNetworkGear(t):
			zone = types.ZoneDMZ
		case t == types.DeviceWorkstation:
			zone = types.ZoneAdmin
		case r.Float64() < 0.65:
			zone = types.ZoneClinical
		default:
			zone = types.ZoneAdmin
		}

		status := types.StatusHealthy
		if x := r.Float64(); x < 0.05 {
			status = types.StatusOutage
		} else if x < 0.22 {
			status = types.StatusDegraded
		}

		vuln := round(r.Float64()*10, 1)
		patch := round(types.Clamp01(basePatchLevel(t)+(r.Float64()-0.5)*0.3), 2)

		a := types.Asset{
			ID:            fmt.Sprintf("%s%02d", strings.ToLower(string(t)[:2]), i),
			Name:          fmt.Sprintf("%s %d", t, i),
			Type:          t,
			Zone:          zone,
			Status:        status,
			Vulnerability: vuln,
			PatchLevel:    patch,
		}
		if vuln >= 7 {
			a.CVEs = []string{fmt.Sprintf("CVE-2025-%04d", 1000+i)}
		}
		assets = append(assets, a)
	}

	return assets
}

type linkBuilder struct {
	r     *rand.Rand
	seen  map[string]bool
	links []types.Link
}

func (b *linkBuilder) add(src, dst string) {
	if src == "" || dst == "" || src == dst {
		return
	}
	key := src + "|" + dst
	if dst < src {
		key = dst + "|" + src
	}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.links = append(b.links, types.Link{
		ID:        "L_" + key,
		Source:    src,
		Target:    dst,
		LatencyMS: math.Round(4 + b.r.Float64()*16),
		Loss:      round(0.1+b.r.Float64()*0.6, 2),
	})
}

// connectWithin links every id to a random earlier one, forming a tree
func (b *linkBuilder) connectWithin(ids []string) {
	for i := 1; i < len(ids); i++ {
		b.add(ids[i], ids[b.r.IntN(i)])
	}
}

func (b *linkBuilder) pick(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[b.r.IntN(len(ids))]
}

func generateLinks(assets []types.Asset, seed uint64) []types.Link {
	b := &linkBuilder{r: newRand(seed), seen: make(map[string]bool)}

	byZone := make(map[types.Zone][]string)
	var firewalls []string
	for _, a := range assets {
		byZone[a.Zone] = append(byZone[a.Zone], a.ID)
		if a.Type == types.DeviceFirewall {
			firewalls = append(firewalls, a.ID)
		}
	}

	clinical, admin, dmz := byZone[types.ZoneClinical], byZone[types.ZoneAdmin], byZone[types.ZoneDMZ]
	b.connectWithin(clinical)
	b.connectWithin(admin)
	b.connectWithin(dmz)

	uplink := ""
	switch {
	case len(firewalls) > 0:
		uplink = firewalls[0]
	case len(dmz) > 0:
		uplink = b.pick(dmz)
	case len(clinical) > 0:
		uplink = b.pick(clinical)
	default:
		uplink = b.pick(admin)
	}

	// internet endpoints are not assets; the graph skips them
	externals := max(4, int(math.Round(float64(len(assets))*0.15)))
	for i := 0; i < externals; i++ {
		b.add(fmt.Sprintf("ext%d", i), uplink)
	}

	for _, ids := range [][]string{clinical, admin} {
		if len(ids) == 0 {
			continue
		}
		bridges := max(1, int(math.Round(float64(len(ids))*0.2)))
		for k := 0; k < bridges; k++ {
			fw := b.pick(firewalls)
			if fw == "" {
				fw = uplink
			}
			b.add(b.pick(ids), fw)
		}
	}

	return b.links
}

// generateHistory gives server-class assets a few past patch durations
func generateHistory(assets []types.Asset) map[string][]float64 {
	history := make(map[string][]float64)
	for i, a := range assets {
		switch a.Type {
		case types.DeviceDatabase, types.DeviceEHR, types.DeviceServer:
			base := float64(30 + (i%5)*15)
			history[a.ID] = []float64{base, base + 10, base - 5, base + 25, base + 5}
		}
	}
	return history
}

// assignHAPeers pairs up to n single-point-of-failure routers, firewalls or switches
// with a healthy unpaired device of the same type, so the demo shows HA failover
// next to blocked SPOFs
func assignHAPeers(snap *types.Snapshot, n int) {
	spof := topology.Analyze(topology.NewGraph(*snap), "").ArticulationPoints

	paired := make(map[string]bool)
	index := make(map[string]int, len(snap.Assets))
	for i, a := range snap.Assets {
		index[a.ID] = i
	}

	for _, a := range snap.Assets {
		if n == 0 {
			return
		}
		switch a.Type {
		case types.DeviceFirewall, types.DeviceRouter, types.DeviceSwitch:
		default:
			continue
		}
		if !spof[a.ID] || paired[a.ID] || a.Status == types.StatusOutage {
			continue
		}
		for _, peer := range snap.Assets {
			if peer.ID == a.ID || peer.Type != a.Type || paired[peer.ID] || peer.Status != types.StatusHealthy {
				continue
			}
			snap.Assets[index[a.ID]].HAPeer = peer.ID
			snap.Assets[index[peer.ID]].HAPeer = a.ID
			paired[a.ID], paired[peer.ID] = true, true
			n--
			break
		}
	}
}
