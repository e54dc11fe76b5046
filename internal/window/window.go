// ABOUTME: Weekly maintenance window planner over a finite lookahead horizon.
// ABOUTME: Weekday evenings 18:00-22:00 and weekend mornings 09:00-13:00 in the caller's location.

package window

import (
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"
)

// DefaultHorizonDays is how far ahead the planner looks when callers have no preference
const DefaultHorizonDays = 28

const labelLayout = "Mon 02 Jan 2006 15:04"

type slot struct {
	startHour, endHour int
}

var (
	weekdaySlot = slot{18, 22}
	weekendSlot = slot{9, 13}
)

func slotFor(d time.Weekday) slot {
	if d == time.Saturday || d == time.Sunday {
		return weekendSlot
	}
	return weekdaySlot
}

// Upcoming lists one window per calendar day for horizonDays days starting at the day
// containing now, in now's location. A non-positive horizon yields no windows.
func Upcoming(now time.Time, horizonDays int) []types.Window {
	if horizonDays <= 0 {
		return nil
	}
	loc := now.Location()
	y, m, d := now.Date()

	windows := make([]types.Window, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		s := slotFor(day.Weekday())
		start := time.Date(day.Year(), day.Month(), day.Day(), s.startHour, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), s.endHour, 0, 0, 0, loc)
		windows = append(windows, types.Window{
			Start: start,
			End:   end,
			Label: Label(start, end),
		})
	}
	return windows
}

// Next returns the first window within the horizon that has not ended yet. A window
// already in progress counts.
func Next(now time.Time, horizonDays int) (types.Window, bool) {
	for _, w := range Upcoming(now, horizonDays) {
		if w.End.After(now) {
			return w, true
		}
	}
	return types.Window{}, false
}

// Label renders a window for display, e.g. "Wed 12 Mar 2025 18:00 → 22:00 UTC"
func Label(start, end time.Time) string {
	return start.Format(labelLayout) + " → " + end.Format("15:04 MST")
}
