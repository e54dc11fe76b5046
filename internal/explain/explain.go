// ABOUTME: Plain-language narrative for a decision bundle.
// ABOUTME: Maps scores into qualitative bands and renders headline, timing, why, how, and risk lines.

package explain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jfeddern/PatchRelay/internal/types"
)

var methodInstructions = map[types.PatchMethod]string{
	types.MethodHAFailover:        "Switch traffic to the standby/peer, patch, then switch back.",
	types.MethodDrainAndPatch:     "Drain it from the load balancer, patch, verify, then return to service.",
	types.MethodReplicaSwitchover: "Promote a replica, patch the primary, then rejoin.",
	types.MethodRolling:           "Patch a small batch at a time to limit impact.",
	types.MethodStandard:          "Follow the standard maintenance steps.",
}

// SeverityBand describes a raw 0..10 severity score
func SeverityBand(v float64) string {
	switch {
	case v >= 9:
		return "very serious"
	case v >= 7:
		return "serious"
	case v >= 4:
		return "moderate"
	default:
		return "low"
	}
}

// LikelihoodBand describes an exploit probability
func LikelihoodBand(p float64) string {
	switch {
	case p >= 0.75:
		return "very likely to be exploited soon"
	case p >= 0.4:
		return "likely to be exploited"
	case p >= 0.1:
		return "could be exploited"
	default:
		return "unlikely to be exploited"
	}
}

// ImpactBand describes a business impact value
func ImpactBand(b float64) string {
	switch {
	case b >= 0.8:
		return "critical to operations"
	case b >= 0.5:
		return "important to operations"
	case b >= 0.2:
		return "helpful but not critical"
	default:
		return "low impact"
	}
}

// TopologyBand describes where the asset sits; SPOF and lost bridges outrank centrality
func TopologyBand(topo float64, spof bool, lostBridges int) string {
	switch {
	case spof:
		return "removing it would break part of the network"
	case lostBridges > 0:
		return "it connects important parts of the network"
	case topo >= 0.66:
		return "it sits in a busy part of the network"
	case topo >= 0.33:
		return "it's somewhat connected"
	default:
		return "it's on the edge of the network"
	}
}

// ActionLabel is the short verb phrase for an action
func ActionLabel(a types.Action) string {
	switch a {
	case types.ActionPatchNow:
		return "Patch now"
	case types.ActionBlock:
		return "Do not patch yet"
	default:
		return "Schedule patch"
	}
}

// Minutes formats a duration, e.g. "45m" or "1h 5m"
func Minutes(m int) string {
	if m >= 60 {
		return fmt.Sprintf("%dh %dm", m/60, m%60)
	}
	return fmt.Sprintf("%dm", m)
}

// Percent formats a probability as a whole percentage in [0,100]
func Percent(p float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(types.Clamp01(p)*100)))
}

// ForHumans renders the story for an evaluated asset
func ForHumans(a types.Asset, b types.Bundle) types.Story {
	f := b.Priority.Factors
	d := b.Decision

	return types.Story{
		Headline: headline(a, d.Action),
		Action:   ActionLabel(d.Action),
		When:     whenLine(b),
		Why:      whyLines(f, b.Impact),
		How:      howLines(b.Plan),
		Risk:     riskLine(d.Action, b.Plan.Risk, b.Impact.IsSPOF),
	}
}

func headline(a types.Asset, action types.Action) string {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	switch action {
	case types.ActionBlock:
		return "Do not patch " + name + " yet"
	case types.ActionPatchNow:
		return "Patch " + name + " now"
	default:
		return "Schedule patch for " + name
	}
}

func whenLine(b types.Bundle) string {
	d := b.Decision
	switch {
	case d.StartAt != nil:
		return fmt.Sprintf("Start now and expect about %s.", Minutes(b.Duration.P50))
	case d.When != "":
		return fmt.Sprintf("Target window: %s. Estimated %s (up to %s).", d.When, Minutes(b.Duration.P50), Minutes(b.Duration.P90))
	case !b.CostOfDelay.DueAt.IsZero():
		days := b.CostOfDelay.DaysRemaining
		if days < 0 {
			days = 0
		}
		return fmt.Sprintf("Due by %s (%d days left).", b.CostOfDelay.DueAt.Format("Mon 02 Jan 2006 15:04 MST"), days)
	default:
		return ""
	}
}

func whyLines(f types.PriorityFactors, impact types.Impact) []string {
	why := []string{
		fmt.Sprintf("The issue is %s (technical score %s/10).", SeverityBand(f.Severity), strconv.FormatFloat(f.Severity, 'f', -1, 64)),
	}
	if f.KEV {
		why = append(why, "It's on the government's known-exploited list.")
	}
	why = append(why,
		fmt.Sprintf("It is %s (%s chance).", LikelihoodBand(f.ExploitProbability), Percent(f.ExploitProbability)),
		fmt.Sprintf("This device is %s.", ImpactBand(f.BusinessImpact)),
		fmt.Sprintf("In the network, %s.", TopologyBand(f.Topology, impact.IsSPOF, impact.LostZoneBridges)),
	)

	if impact.IsSPOF {
		why = append(why, "Taking it offline could split the network; use a failover plan.")
	} else if n := len(impact.Disconnected); n > 0 {
		why = append(why, fmt.Sprintf("If offline, about %d other device(s) could be isolated.", n))
	}
	return why
}

func howLines(p types.Plan) []string {
	how := make([]string, 0, len(p.Steps)+1)
	if p.Method != "" {
		instruction, ok := methodInstructions[p.Method]
		if !ok {
			instruction = methodInstructions[types.MethodStandard]
		}
		how = append(how, instruction)
	}
	return append(how, p.Steps...)
}

func riskLine(action types.Action, risk types.PlanRisk, spof bool) string {
	switch {
	case action == types.ActionBlock:
		return "Risk of outage is too high right now. Prepare a safer plan first."
	case risk == types.RiskHigh || spof:
		return "Risk is high; ensure backups, failover and a tested rollback."
	case risk == types.RiskElevated:
		return "Risk is elevated; notify stakeholders and ensure backups."
	default:
		return "Risk is manageable with the plan shown."
	}
}
