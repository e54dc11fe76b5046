// ABOUTME: Inventory provider modes and interface conformance for every source implementation.
// ABOUTME: Lets the factory and the CLI agree on the set of supported inventory backends.

package providers

import (
	"fmt"
	"strings"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/intel"
	"github.com/jfeddern/PatchRelay/internal/providers/aws"
	"github.com/jfeddern/PatchRelay/internal/providers/kube"
	"github.com/jfeddern/PatchRelay/internal/providers/local"
	"github.com/jfeddern/PatchRelay/internal/providers/mock"
	"github.com/jfeddern/PatchRelay/internal/providers/postgres"
)

// Mode selects the inventory backend
type Mode string

const (
	ModeLocal    Mode = "local"
	ModeS3       Mode = "s3"
	ModeKube     Mode = "kube"
	ModePostgres Mode = "postgres"
	ModeMock     Mode = "mock"
)

// Modes lists the supported modes in display order
var Modes = []Mode{ModeLocal, ModeS3, ModeKube, ModePostgres, ModeMock}

// ParseMode accepts a mode name case-insensitively
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported mode: %s", s)
}

var (
	_ engine.InventorySource = (*local.LocalProvider)(nil)
	_ engine.InventorySource = (*aws.S3Source)(nil)
	_ engine.InventorySource = (*kube.ConfigMapSource)(nil)
	_ engine.InventorySource = (*postgres.CMDBSource)(nil)
	_ engine.InventorySource = (*mock.MockHospitalProvider)(nil)

	_ engine.IntelSource = (*intel.DirSource)(nil)
	_ engine.IntelSource = (*mock.MockIntelSource)(nil)
)
