// ABOUTME: Unit tests for the mock hospital inventory and intel sources.
// ABOUTME: Validates determinism, zone rules, and that generated data passes validation.

package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockHospitalProvider_Name(t *testing.T) {
	provider := NewMockHospitalProvider(testutil.NewTestLogger())
	assert.Equal(t, "mock-hospital", provider.Name())
}

func TestMockHospitalProvider_LoadSnapshot(t *testing.T) {
	provider := NewMockHospitalProvider(testutil.NewTestLogger())

	snap, err := provider.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Assets, DefaultAssetCount)
	assert.NotEmpty(t, snap.Links)

	ids := make(map[string]bool)
	for _, a := range snap.Assets {
		ids[a.ID] = true
		assert.NotEqual(t, types.DeviceOther, a.Type)

		switch a.Type {
		case types.DeviceFirewall, types.DeviceRouter, types.DeviceSwitch, types.DeviceWiFiAP:
			assert.Equal(t, types.ZoneDMZ, a.Zone, a.ID)
		case types.DeviceWorkstation:
			assert.Equal(t, types.ZoneAdmin, a.Zone, a.ID)
		default:
			assert.Contains(t, []types.Zone{types.ZoneClinical, types.ZoneAdmin}, a.Zone, a.ID)
		}

		if a.Vulnerability >= 7 {
			assert.Len(t, a.CVEs, 1, a.ID)
		}
	}

	externals := 0
	for _, l := range snap.Links {
		if strings.HasPrefix(l.Source, "ext") {
			externals++
			continue
		}
		assert.True(t, ids[l.Source], "unknown source %s", l.Source)
		assert.True(t, ids[l.Target], "unknown target %s", l.Target)
		assert.True(t, strings.HasPrefix(l.ID, "L_"))
	}
	assert.GreaterOrEqual(t, externals, 4)

	g := topology.NewGraph(snap)
	assert.Equal(t, externals, g.SkippedLinks())
}

func TestMockHospitalProvider_HAPeers(t *testing.T) {
	snap, err := NewMockHospitalProvider(testutil.NewTestLogger()).LoadSnapshot(context.Background())
	require.NoError(t, err)
	g := topology.NewGraph(snap)

	var peered []types.Asset
	for _, a := range snap.Assets {
		if a.HAPeer == "" {
			continue
		}
		peer, ok := g.Asset(a.HAPeer)
		require.True(t, ok, "peer of %s must exist", a.ID)
		assert.Equal(t, a.ID, peer.HAPeer, "peering must be mutual")
		assert.Equal(t, a.Type, peer.Type)
		peered = append(peered, a)
	}
	require.NotEmpty(t, peered)
	assert.LessOrEqual(t, len(peered), 2*haPairs)

	failovers := 0
	for _, a := range peered {
		if !g.HAPeerAvailable(a.ID) || !topology.OfflineImpact(g, a.ID).IsSPOF {
			continue
		}
		b, err := engine.EvaluateGraph(g, a.ID, types.NoIntel(), nil, testutil.FixedNow, engine.DefaultEvalOptions())
		require.NoError(t, err)
		assert.Equal(t, types.MethodHAFailover, b.Plan.Method, a.ID)
		assert.NotEqual(t, types.ActionBlock, b.Decision.Action, a.ID)
		failovers++
	}
	assert.Positive(t, failovers, "demo network should include an HA-protected SPOF")
}

func TestAssignHAPeers(t *testing.T) {
	router := func(id string, status types.Status) types.Asset {
		return testutil.FixtureAsset(id, func(a *types.Asset) {
			a.Type = types.DeviceRouter
			a.Status = status
		})
	}
	snap := types.Snapshot{
		Assets: []types.Asset{
			testutil.FixtureAsset("ws1"),
			router("r1", types.StatusHealthy),
			testutil.FixtureAsset("ws2"),
			router("r-down", types.StatusOutage),
			router("r-spare", types.StatusHealthy),
		},
		Links: []types.Link{testutil.FixtureLink("ws1", "r1"), testutil.FixtureLink("r1", "ws2")},
	}

	assignHAPeers(&snap, 1)

	peers := make(map[string]string)
	for _, a := range snap.Assets {
		peers[a.ID] = a.HAPeer
	}
	assert.Equal(t, "r-spare", peers["r1"])
	assert.Equal(t, "r1", peers["r-spare"])
	assert.Empty(t, peers["r-down"], "an outaged router is never a peer")
	assert.True(t, topology.NewGraph(snap).HAPeerAvailable("r1"))

	// budget of zero leaves the snapshot alone
	snap.Assets[1].HAPeer, snap.Assets[4].HAPeer = "", ""
	assignHAPeers(&snap, 0)
	for _, a := range snap.Assets {
		assert.Empty(t, a.HAPeer, a.ID)
	}
}

func TestMockHospitalProvider_Deterministic(t *testing.T) {
	a, err := NewMockHospitalProvider(testutil.NewTestLogger()).LoadSnapshot(context.Background())
	require.NoError(t, err)
	b, err := NewMockHospitalProvider(testutil.NewTestLogger()).LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewMockHospitalProvider(testutil.NewTestLogger()).WithSize(10, 7).LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Assets, 10)
	assert.NotEqual(t, a.Assets[:10], c.Assets)
}

func TestMockHospitalProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockHospitalProvider(testutil.NewTestLogger()).LoadSnapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockIntelSource_LoadIntel(t *testing.T) {
	logger := testutil.NewTestLogger()
	inventory := NewMockHospitalProvider(logger)
	source := NewMockIntelSource(inventory, logger)
	source.clock = func() time.Time { return testutil.FixedNow }

	assert.Equal(t, "mock-intel", source.Name())

	intel, err := source.LoadIntel(context.Background())
	require.NoError(t, err)
	require.True(t, intel.Provided())

	data, _ := intel.Data()
	snap, err := inventory.LoadSnapshot(context.Background())
	require.NoError(t, err)

	cves := 0
	for _, a := range snap.Assets {
		cves += len(a.CVEs)
	}
	require.Greater(t, cves, 0)
	assert.Len(t, data.ExploitProbability, cves)
	assert.NotEmpty(t, data.KnownExploited)

	for cve := range data.KnownExploited {
		due, ok := data.KEVDueDates[cve]
		require.True(t, ok)
		assert.True(t, due.After(testutil.FixedNow))
	}
	for _, p := range data.ExploitProbability {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}
