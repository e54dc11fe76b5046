// ABOUTME: Mock threat intel source matching the generated hospital inventory.
// ABOUTME: Flags a few generated CVEs as known exploited and assigns exploit probabilities.

package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
)

// MockIntelSource implements IntelSource with data keyed to MockHospitalProvider CVEs
type MockIntelSource struct {
	inventory *MockHospitalProvider
	clock     func() time.Time
	logger    *logrus.Logger
}

// NewMockIntelSource creates an intel source for the given mock inventory
func NewMockIntelSource(inventory *MockHospitalProvider, logger *logrus.Logger) *MockIntelSource {
	return &MockIntelSource{
		inventory: inventory,
		clock:     time.Now,
		logger:    logger,
	}
}

// Name returns the source name
func (m *MockIntelSource) Name() string {
	return "mock-intel"
}

// LoadIntel marks every third CVE as KEV with a due date a few days out; the rest get
// an exploit probability derived from their position
func (m *MockIntelSource) LoadIntel(ctx context.Context) (types.Intel, error) {
	snap, err := m.inventory.LoadSnapshot(ctx)
	if err != nil {
		return types.NoIntel(), fmt.Errorf("failed to load mock inventory for intel: %w", err)
	}

	now := m.clock()
	data := types.IntelData{
		KnownExploited:     make(map[string]struct{}),
		KEVDueDates:        make(map[string]time.Time),
		ExploitProbability: make(map[string]float64),
		BusinessImpact:     make(map[string]float64),
	}

	n := 0
	for _, a := range snap.Assets {
		for _, cve := range a.CVEs {
			if n%3 == 0 {
				data.KnownExploited[cve] = struct{}{}
				data.KEVDueDates[cve] = now.AddDate(0, 0, 2+n%7)
			}
			data.ExploitProbability[cve] = round(0.05+float64(n%10)*0.09, 2)
			n++
		}
		if a.Type == types.DevicePACS {
			data.BusinessImpact[a.ID] = 0.85
		}
	}

	m.logger.WithFields(logrus.Fields{
		"operation": "load_intel_mock",
		"kev":       len(data.KnownExploited),
		"epss":      len(data.ExploitProbability),
	}).Debug("Generated mock threat intel")

	return types.ProvidedIntel(data), nil
}
