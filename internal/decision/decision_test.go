// ABOUTME: Tests for the decision state machine.
// ABOUTME: Covers rule order, emergency triggers, window capacity, and missing windows.

package decision

import (
	"testing"
	"time"

	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eveningWindow() *types.Window {
	start := time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC)
	return &types.Window{Start: start, End: start.Add(4 * time.Hour), Label: "tonight"}
}

func baseSignals() Signals {
	return Signals{
		Priority:      types.PriorityMedium,
		DueAt:         testutil.FixedNow.AddDate(0, 0, 30),
		DaysRemaining: 30,
		Window:        eveningWindow(),
		Duration:      types.DurationEstimate{P50: 25, P90: 40},
		Impact:        types.Impact{Disconnected: []string{}},
		Plan:          types.Plan{Method: types.MethodDrainAndPatch, Risk: types.RiskNormal, Steps: []string{"drain"}},
	}
}

func TestDecideBlocksSPOFWithoutHAFailover(t *testing.T) {
	for _, p := range []types.Priority{types.PriorityLow, types.PriorityMedium, types.PriorityHigh, types.PriorityEmergency} {
		t.Run(string(p), func(t *testing.T) {
			s := baseSignals()
			s.Priority = p
			s.Impact.IsSPOF = true
			s.Plan.Method = types.MethodStandard
			s.DaysRemaining = -1

			d := Decide(testutil.FixedNow, s)
			assert.Equal(t, types.ActionBlock, d.Action)
			assert.Equal(t, "SPOF without HA path", d.Reason)
			assert.Equal(t, []string{"Provision/validate HA peer", "Document rollback"}, d.Required)
			assert.Nil(t, d.StartAt)
		})
	}
}

func TestDecideSPOFWithHAFailoverIsNotBlocked(t *testing.T) {
	s := baseSignals()
	s.Impact.IsSPOF = true
	s.Plan.Method = types.MethodHAFailover

	d := Decide(testutil.FixedNow, s)
	assert.Equal(t, types.ActionSchedule, d.Action)
}

func TestDecidePatchNow(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Signals)
		trigger string
	}{
		{"overdue without a window", func(s *Signals) { s.DaysRemaining = 0; s.Window = nil }, "SLA overdue"},
		{"overdue with a window", func(s *Signals) { s.DaysRemaining = -4 }, "SLA overdue"},
		{"kev due soon", func(s *Signals) { s.KEV = true; s.DaysRemaining = 3 }, "KEV item"},
		{"emergency priority", func(s *Signals) { s.Priority = types.PriorityEmergency }, "Emergency priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			tt.mutate(&s)

			d := Decide(testutil.FixedNow, s)
			assert.Equal(t, types.ActionPatchNow, d.Action)
			require.NotNil(t, d.StartAt)
			assert.Equal(t, testutil.FixedNow, *d.StartAt)
			assert.Equal(t, 25, d.EstMinutes)
			assert.Equal(t, tt.trigger, d.Notes[1])
			assert.Equal(t, []string{"Backup/Snapshot", "Peer/LB drain ready", "Change comms sent"}, d.Prechecks)
			assert.Equal(t, []string{"drain"}, d.Steps)
		})
	}
}

func TestDecideKEVWithTimeLeftSchedules(t *testing.T) {
	s := baseSignals()
	s.KEV = true
	s.DaysRemaining = 4

	assert.Equal(t, types.ActionSchedule, Decide(testutil.FixedNow, s).Action)
}

func TestDecideNoWindow(t *testing.T) {
	s := baseSignals()
	s.Window = nil

	d := Decide(testutil.FixedNow, s)
	assert.Equal(t, types.ActionSchedule, d.Action)
	assert.Equal(t, "No active maintenance window", d.Reason)
	assert.Equal(t, []string{"Pick next window", "Line up approvals"}, d.Todo)
	assert.Nil(t, d.Capacity)
}

func TestDecideWindowCapacity(t *testing.T) {
	tests := []struct {
		name   string
		p90    int
		action types.Action
	}{
		{"fits", 40, types.ActionSchedule},
		{"exactly fills", 240, types.ActionSchedule},
		{"too long", 241, types.ActionScheduleAnother},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSignals()
			s.Duration.P90 = tt.p90

			d := Decide(testutil.FixedNow, s)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, "tonight", d.When)
			require.NotNil(t, d.Capacity)
			assert.Equal(t, types.Capacity{Required: tt.p90, Window: 240}, *d.Capacity)
			assert.Equal(t, []string{"Priority=Medium", "Days left=30"}, d.Notes)
			assert.Equal(t, []string{"Backup/Snapshot", "Rollback defined", "Stakeholders notified"}, d.Prechecks)
		})
	}
}
