// ABOUTME: Patch duration estimation from per-asset history or device-class baselines.
// ABOUTME: Reports p50 via sorted midpoint and p90 via nearest-rank over positive samples.

package duration

import (
	"math"
	"sort"

	"github.com/jfeddern/PatchRelay/internal/types"
)

type baseline struct {
	p50, p90 int
}

var baselines = map[types.DeviceType]baseline{
	types.DeviceFirewall:    {35, 50},
	types.DeviceRouter:      {30, 45},
	types.DeviceSwitch:      {25, 40},
	types.DeviceServer:      {25, 40},
	types.DeviceDatabase:    {40, 60},
	types.DeviceHL7:         {35, 55},
	types.DevicePACS:        {35, 55},
	types.DeviceEHR:         {40, 65},
	types.DeviceMedicalIoT:  {20, 35},
	types.DeviceWiFiAP:      {20, 35},
	types.DeviceWorkstation: {15, 25},
}

var defaultBaseline = baseline{30, 45}

var baselineBreakdown = []string{"Prep 5m", "Apply 10-20m", "Reboot/Verify 5-15m"}

const historyBreakdown = "Derived from historical patches"

// Baseline returns the class estimate used when no usable history exists
func Baseline(t types.DeviceType) types.DurationEstimate {
	b, ok := baselines[t]
	if !ok {
		b = defaultBaseline
	}
	return types.DurationEstimate{
		P50:       b.p50,
		P90:       b.p90,
		Breakdown: append([]string(nil), baselineBreakdown...),
	}
}

// Estimate derives p50/p90 minutes from history, ignoring non-finite and non-positive
// samples. With nothing usable it falls back to the device-class baseline.
func Estimate(a types.Asset, history []float64) types.DurationEstimate {
	samples := make([]float64, 0, len(history))
	for _, m := range history {
		if !math.IsNaN(m) && !math.IsInf(m, 0) && m > 0 {
			samples = append(samples, m)
		}
	}
	if len(samples) == 0 {
		return Baseline(a.Type)
	}
	sort.Float64s(samples)

	return types.DurationEstimate{
		P50:         int(math.Round(median(samples))),
		P90:         int(math.Round(nearestRank(samples, 0.9))),
		Breakdown:   []string{historyBreakdown},
		FromHistory: true,
	}
}

// median expects sorted, non-empty input
func median(s []float64) float64 {
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}

// nearestRank expects sorted, non-empty input
func nearestRank(s []float64, p float64) float64 {
	idx := int(math.Ceil(p*float64(len(s)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s) {
		idx = len(s) - 1
	}
	return s[idx]
}
