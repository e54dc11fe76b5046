// ABOUTME: Tests for maintenance window planning.
// ABOUTME: Covers weekday and weekend slots, horizons, time zones, and the next-window lookup.

package window

import (
	"testing"
	"time"

	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"weekday afternoon gets tonight", at(12, 14, 0), at(12, 18, 0), at(12, 22, 0)},
		{"weekday 23:00 skips to tomorrow", at(12, 23, 0), at(13, 18, 0), at(13, 22, 0)},
		{"inside a window returns it", at(12, 19, 30), at(12, 18, 0), at(12, 22, 0)},
		{"window end is exclusive", at(12, 22, 0), at(13, 18, 0), at(13, 22, 0)},
		{"friday night rolls to saturday morning", at(14, 23, 0), at(15, 9, 0), at(15, 13, 0)},
		{"sunday afternoon rolls to monday evening", at(16, 13, 30), at(17, 18, 0), at(17, 22, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ok := Next(tt.now, DefaultHorizonDays)
			require.True(t, ok)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.wantEnd, w.End)
			assert.True(t, w.End.After(tt.now))
		})
	}
}

func TestNextHorizonExhausted(t *testing.T) {
	_, ok := Next(at(12, 23, 0), 1)
	assert.False(t, ok)

	_, ok = Next(at(12, 10, 0), 0)
	assert.False(t, ok)
}

func TestUpcomingIsFiniteAndOrdered(t *testing.T) {
	windows := Upcoming(testutil.FixedNow, 21)
	require.Len(t, windows, 21)

	for i, w := range windows {
		assert.True(t, w.End.After(w.Start))
		assert.Equal(t, 240.0, w.Minutes())
		if i > 0 {
			assert.True(t, w.Start.After(windows[i-1].Start))
		}
	}
	assert.Equal(t, "Wed 12 Mar 2025 18:00 → 22:00 UTC", windows[0].Label)
}

func TestUpcomingFollowsLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, time.March, 12, 20, 0, 0, 0, loc)

	w, ok := Next(now, DefaultHorizonDays)
	require.True(t, ok)
	assert.Equal(t, 18, w.Start.Hour())
	assert.Equal(t, loc, w.Start.Location())
	assert.Equal(t, 12, w.Start.Day())
}
