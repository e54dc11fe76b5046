// ABOUTME: Cost-of-delay and SLA due-date computation for a scored asset.
// ABOUTME: Uses KEV-mandated due dates when intel supplies them, otherwise severity-based SLAs.

package scoring

import (
	"math"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"
)

// DefaultDelayDays is the delay window the cost of delay is priced over
const DefaultDelayDays = 7

const day = 24 * time.Hour

// SLADays is the remediation deadline for a raw severity score
func SLADays(vuln float64) int {
	switch {
	case vuln >= 9:
		return 7
	case vuln >= 7:
		return 15
	case vuln >= 4:
		return 30
	default:
		return 60
	}
}

// KEVDueDate returns the earliest known-exploited due date among the asset's CVEs
func KEVDueDate(a types.Asset, intel types.Intel) (time.Time, bool) {
	data, ok := intel.Data()
	if !ok {
		return time.Time{}, false
	}
	var earliest time.Time
	found := false
	for _, cve := range a.CVEs {
		due, ok := data.KEVDueDates[cve]
		if !ok || due.IsZero() {
			continue
		}
		if !found || due.Before(earliest) {
			earliest = due
			found = true
		}
	}
	return earliest, found
}

// CostOfDelay prices waiting delayDays to patch, from already computed priority factors.
// A non-positive delayDays uses DefaultDelayDays.
func CostOfDelay(a types.Asset, factors types.PriorityFactors, intel types.Intel, now time.Time, delayDays int) types.CostOfDelay {
	if delayDays <= 0 {
		delayDays = DefaultDelayDays
	}

	perDay := factors.ExploitProbability * types.Clamp01(factors.Severity/10) * factors.BusinessImpact
	cost := math.Round(perDay*float64(delayDays)*100) / 100

	due, ok := KEVDueDate(a, intel)
	if !ok {
		due = now.Add(time.Duration(SLADays(factors.Severity)) * day)
	}

	return types.CostOfDelay{
		Cost:          cost,
		Severity:      factors.Severity,
		DueAt:         due,
		DaysRemaining: DaysUntil(now, due),
	}
}

// DaysUntil is the whole number of days left before due, rounded up; zero or negative when overdue
func DaysUntil(now, due time.Time) int {
	return int(math.Ceil(float64(due.Sub(now)) / float64(day)))
}
