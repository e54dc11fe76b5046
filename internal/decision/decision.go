// ABOUTME: Ordered rule chain turning priority, timing, impact, and plan signals into one action.
// ABOUTME: Block, Patch Now (Emergency), Schedule, or Schedule (Different Window); first match wins.

package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"
)

// KEVUrgentDays is how close a known-exploited due date must be to force an emergency patch
const KEVUrgentDays = 3

// Signals is everything the rule chain looks at. Window is nil when no maintenance
// window is available.
type Signals struct {
	Priority      types.Priority
	KEV           bool
	DueAt         time.Time
	DaysRemaining int
	Window        *types.Window
	Duration      types.DurationEstimate
	Impact        types.Impact
	Plan          types.Plan
}

// Decide applies the rules in order and always returns exactly one terminal action
func Decide(now time.Time, s Signals) types.Decision {
	if s.Impact.IsSPOF && s.Plan.Method != types.MethodHAFailover {
		return types.Decision{
			Action:   types.ActionBlock,
			Reason:   "SPOF without HA path",
			Required: []string{"Provision/validate HA peer", "Document rollback"},
		}
	}

	kevUrgent := s.KEV && s.DaysRemaining <= KEVUrgentDays
	overdue := s.DaysRemaining <= 0
	if kevUrgent || overdue || s.Priority == types.PriorityEmergency {
		start := now
		return types.Decision{
			Action:     types.ActionPatchNow,
			StartAt:    &start,
			Method:     s.Plan.Method,
			EstMinutes: s.Duration.P50,
			Notes:      []string{"Due " + s.DueAt.Format(time.RFC3339), trigger(kevUrgent, overdue)},
			Prechecks:  []string{"Backup/Snapshot", "Peer/LB drain ready", "Change comms sent"},
			Steps:      append([]string(nil), s.Plan.Steps...),
		}
	}

	if s.Window == nil {
		return types.Decision{
			Action: types.ActionSchedule,
			Reason: "No active maintenance window",
			Todo:   []string{"Pick next window", "Line up approvals"},
		}
	}

	minutes := s.Window.Minutes()
	action := types.ActionSchedule
	if float64(s.Duration.P90) > minutes {
		action = types.ActionScheduleAnother
	}

	return types.Decision{
		Action:     action,
		When:       s.Window.Label,
		Method:     s.Plan.Method,
		EstMinutes: s.Duration.P50,
		Capacity:   &types.Capacity{Required: s.Duration.P90, Window: int(math.Round(minutes))},
		Notes:      []string{fmt.Sprintf("Priority=%s", s.Priority), fmt.Sprintf("Days left=%d", s.DaysRemaining)},
		Prechecks:  []string{"Backup/Snapshot", "Rollback defined", "Stakeholders notified"},
		Steps:      append([]string(nil), s.Plan.Steps...),
	}
}

func trigger(kevUrgent, overdue bool) string {
	switch {
	case kevUrgent:
		return "KEV item"
	case overdue:
		return "SLA overdue"
	default:
		return "Emergency priority"
	}
}
