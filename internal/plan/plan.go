// ABOUTME: Remediation planner choosing a patch method, risk level, and steps per device category.
// ABOUTME: Device types map through a closed table; unmapped types fail instead of defaulting.

package plan

import (
	"fmt"

	"github.com/jfeddern/PatchRelay/internal/types"
)

// Category groups device types that share a remediation approach
type Category string

const (
	CategoryNetwork  Category = "network"
	CategoryDatabase Category = "database"
	CategoryServer   Category = "server"
	CategoryEdge     Category = "edge"
	CategoryOther    Category = "other"
)

var categories = map[types.DeviceType]Category{
	types.DeviceFirewall:    CategoryNetwork,
	types.DeviceRouter:      CategoryNetwork,
	types.DeviceSwitch:      CategoryNetwork,
	types.DeviceDatabase:    CategoryDatabase,
	types.DeviceServer:      CategoryServer,
	types.DeviceEHR:         CategoryServer,
	types.DeviceHL7:         CategoryServer,
	types.DevicePACS:        CategoryServer,
	types.DeviceWiFiAP:      CategoryEdge,
	types.DeviceWorkstation: CategoryEdge,
	types.DeviceMedicalIoT:  CategoryEdge,
	types.DeviceOther:       CategoryOther,
}

const (
	stepHAPeerHealthy  = "Ensure an HA peer is healthy and in-sync."
	stepHAFailover     = "Fail traffic to peer; patch passive; verify; reverse roles; patch second."
	stepNoHAPeer       = "No healthy HA peer is available; provision and validate one before patching."
	stepRerouteLinks   = "Drain/reroute adjacent links; patch; restore."
	stepConfirmBackup  = "Confirm recent backup/snapshot."
	stepPromoteReplica = "Promote replica / switch primary; patch old primary; rejoin."
	stepDrainLB        = "Remove from LB / drain sessions; patch; health-check; re-add."
	stepSmallBatches   = "Patch in small batches to limit client impact."
	stepStandardSOP    = "Follow standard maintenance SOP for this class."
	stepEmergency      = "Treat as emergency change if no near-term window exists (document variance)."
)

// Classify resolves a device type to its category
func Classify(t types.DeviceType) (Category, error) {
	c, ok := categories[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", types.ErrUnknownDeviceType, t)
	}
	return c, nil
}

// Context carries the urgency and redundancy signals the planner needs
type Context struct {
	KEV             bool
	DaysRemaining   int
	HAPeerAvailable bool
}

// Urgent reports whether the plan must be documented as an emergency change
func (c Context) Urgent() bool {
	return c.KEV || c.DaysRemaining <= 0
}

// Suggest builds the remediation plan for an asset. A network SPOF only gets the
// HA-failover method when a healthy HA peer exists.
func Suggest(a types.Asset, ctx Context, impact types.Impact) (types.Plan, error) {
	category, err := Classify(a.Type)
	if err != nil {
		return types.Plan{}, err
	}

	p := types.Plan{Method: types.MethodStandard, Risk: types.RiskNormal}

	switch category {
	case CategoryNetwork:
		switch {
		case impact.IsSPOF && ctx.HAPeerAvailable:
			p.Method = types.MethodHAFailover
			p.Risk = types.RiskHigh
			p.Steps = append(p.Steps, stepHAPeerHealthy, stepHAFailover)
		case impact.IsSPOF:
			p.Risk = types.RiskHigh
			p.Steps = append(p.Steps, stepNoHAPeer, stepStandardSOP)
		default:
			p.Method = types.MethodRolling
			p.Steps = append(p.Steps, stepRerouteLinks)
		}
	case CategoryDatabase:
		p.Method = types.MethodReplicaSwitchover
		p.Steps = append(p.Steps, stepConfirmBackup, stepPromoteReplica)
	case CategoryServer:
		p.Method = types.MethodDrainAndPatch
		p.Steps = append(p.Steps, stepDrainLB)
	case CategoryEdge:
		p.Method = types.MethodRolling
		p.Steps = append(p.Steps, stepSmallBatches)
	default:
		p.Steps = append(p.Steps, stepStandardSOP)
	}

	if ctx.Urgent() {
		p.Steps = append(p.Steps, stepEmergency)
	}

	if len(impact.Disconnected) > 0 || impact.LostZoneBridges > 0 {
		if p.Risk == types.RiskNormal {
			p.Risk = types.RiskElevated
		}
		p.Steps = append(p.Steps, fmt.Sprintf("Taking offline could isolate %d device(s) and break %d zone bridge(s).",
			len(impact.Disconnected), impact.LostZoneBridges))
	}

	return p, nil
}
