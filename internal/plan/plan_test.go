// ABOUTME: Tests for remediation plan selection.
// ABOUTME: Covers every device category, HA peer handling, urgency, and risk escalation.

package plan

import (
	"errors"
	"testing"

	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCoversEveryDeviceType(t *testing.T) {
	for _, dt := range types.DeviceTypes {
		c, err := Classify(dt)
		require.NoError(t, err, "device type %s", dt)
		assert.NotEmpty(t, c)
	}
}

func TestClassifyUnknownType(t *testing.T) {
	_, err := Classify(types.DeviceType("Toaster"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnknownDeviceType))

	_, err = Suggest(testutil.FixtureAsset("x", func(a *types.Asset) { a.Type = "Toaster" }), Context{DaysRemaining: 30}, types.Impact{})
	assert.ErrorIs(t, err, types.ErrUnknownDeviceType)
}

func TestSuggestMethods(t *testing.T) {
	relaxed := Context{DaysRemaining: 30}
	spof := types.Impact{IsSPOF: true}

	tests := []struct {
		name      string
		typ       types.DeviceType
		ctx       Context
		impact    types.Impact
		method    types.PatchMethod
		risk      types.PlanRisk
		firstStep string
	}{
		{"network spof with peer", types.DeviceRouter, Context{DaysRemaining: 30, HAPeerAvailable: true}, spof, types.MethodHAFailover, types.RiskHigh, stepHAPeerHealthy},
		{"network spof without peer", types.DeviceFirewall, relaxed, spof, types.MethodStandard, types.RiskHigh, stepNoHAPeer},
		{"network not spof", types.DeviceSwitch, relaxed, types.Impact{}, types.MethodRolling, types.RiskNormal, stepRerouteLinks},
		{"database", types.DeviceDatabase, relaxed, types.Impact{}, types.MethodReplicaSwitchover, types.RiskNormal, stepConfirmBackup},
		{"clinical application", types.DeviceHL7, relaxed, types.Impact{}, types.MethodDrainAndPatch, types.RiskNormal, stepDrainLB},
		{"edge", types.DeviceMedicalIoT, relaxed, types.Impact{}, types.MethodRolling, types.RiskNormal, stepSmallBatches},
		{"other", types.DeviceOther, relaxed, types.Impact{}, types.MethodStandard, types.RiskNormal, stepStandardSOP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := testutil.FixtureAsset("x", func(a *types.Asset) { a.Type = tt.typ })
			p, err := Suggest(asset, tt.ctx, tt.impact)
			require.NoError(t, err)
			assert.Equal(t, tt.method, p.Method)
			assert.Equal(t, tt.risk, p.Risk)
			require.NotEmpty(t, p.Steps)
			assert.Equal(t, tt.firstStep, p.Steps[0])
			assert.NotContains(t, p.Steps, stepEmergency)
		})
	}
}

func TestSuggestUrgentAddsEmergencyStep(t *testing.T) {
	asset := testutil.FixtureAsset("srv")

	for _, ctx := range []Context{{KEV: true, DaysRemaining: 20}, {DaysRemaining: 0}, {DaysRemaining: -3}} {
		p, err := Suggest(asset, ctx, types.Impact{})
		require.NoError(t, err)
		assert.Equal(t, stepEmergency, p.Steps[len(p.Steps)-1])
	}
}

func TestSuggestEscalatesOnBlastRadius(t *testing.T) {
	asset := testutil.FixtureAsset("srv")
	impact := types.Impact{Disconnected: []string{"a", "b"}, LostZoneBridges: 1}

	p, err := Suggest(asset, Context{DaysRemaining: 10}, impact)
	require.NoError(t, err)
	assert.Equal(t, types.RiskElevated, p.Risk)
	assert.Equal(t, "Taking offline could isolate 2 device(s) and break 1 zone bridge(s).", p.Steps[len(p.Steps)-1])
}

func TestSuggestDoesNotLowerHighRisk(t *testing.T) {
	router := testutil.FixtureAsset("r", func(a *types.Asset) { a.Type = types.DeviceRouter })
	impact := types.Impact{IsSPOF: true, Disconnected: []string{"c1"}, LostZoneBridges: 1}

	p, err := Suggest(router, Context{DaysRemaining: 10, HAPeerAvailable: true}, impact)
	require.NoError(t, err)
	assert.Equal(t, types.MethodHAFailover, p.Method)
	assert.Equal(t, types.RiskHigh, p.Risk)
}
