// ABOUTME: Tests for patch duration estimation.
// ABOUTME: Covers device baselines, percentile math, and degenerate history.

package duration

import (
	"math"
	"testing"

	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestEstimateFromHistory(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		p50     int
		p90     int
	}{
		{"five samples", []float64{10, 20, 30, 40, 50}, 30, 50},
		{"unsorted", []float64{50, 10, 40, 30, 20}, 30, 50},
		{"even count averages the midpoint", []float64{10, 20, 30, 41}, 25, 41},
		{"single sample", []float64{17}, 17, 17},
		{"ten samples", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 6, 9},
		{"invalid samples dropped", []float64{-5, 0, math.NaN(), math.Inf(1), 12, 18}, 15, 18},
	}

	asset := testutil.FixtureAsset("srv")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := Estimate(asset, tt.history)
			assert.Equal(t, tt.p50, est.P50)
			assert.Equal(t, tt.p90, est.P90)
			assert.True(t, est.FromHistory)
			assert.Equal(t, []string{"Derived from historical patches"}, est.Breakdown)
		})
	}
}

func TestEstimateFallsBackToBaseline(t *testing.T) {
	tests := []struct {
		name    string
		typ     types.DeviceType
		history []float64
		p50     int
		p90     int
	}{
		{"no history", types.DeviceEHR, nil, 40, 65},
		{"only invalid samples", types.DeviceWorkstation, []float64{0, -1, math.NaN()}, 15, 25},
		{"class without baseline", types.DeviceOther, nil, 30, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := testutil.FixtureAsset("x", func(a *types.Asset) { a.Type = tt.typ })
			est := Estimate(asset, tt.history)
			assert.Equal(t, tt.p50, est.P50)
			assert.Equal(t, tt.p90, est.P90)
			assert.False(t, est.FromHistory)
			assert.Len(t, est.Breakdown, 3)
		})
	}
}

func TestBaselineBreakdownIsNotShared(t *testing.T) {
	a := Baseline(types.DeviceRouter)
	a.Breakdown[0] = "changed"
	assert.Equal(t, "Prep 5m", Baseline(types.DeviceRouter).Breakdown[0])
}
