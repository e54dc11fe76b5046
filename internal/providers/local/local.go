// ABOUTME: Local file-based inventory provider for development and on-prem deployments.
// ABOUTME: Reads a JSON or YAML topology snapshot from disk without any cloud API dependencies.

package local

import (
	"context"
	"fmt"
	"os"

	"github.com/jfeddern/PatchRelay/internal/providers/codec"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
)

// LocalProvider implements InventorySource for a snapshot file on disk
type LocalProvider struct {
	inventoryFile string
	logger        *logrus.Logger
}

// NewLocalProvider creates a new local file-based provider
func NewLocalProvider(inventoryFile string, logger *logrus.Logger) *LocalProvider {
	return &LocalProvider{
		inventoryFile: inventoryFile,
		logger:        logger,
	}
}

// Name returns the provider name
func (l *LocalProvider) Name() string {
	return "local"
}

// LoadSnapshot reads the inventory file; it is re-read on every call so edits are picked up
func (l *LocalProvider) LoadSnapshot(ctx context.Context) (types.Snapshot, error) {
	logger := l.logger.WithField("operation", "load_snapshot_local")

	if err := ctx.Err(); err != nil {
		return types.Snapshot{}, err
	}

	data, err := os.ReadFile(l.inventoryFile)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to read inventory file '%s': %w", l.inventoryFile, err)
	}

	snap, err := codec.Decode(l.inventoryFile, data)
	if err != nil {
		return types.Snapshot{}, err
	}

	logger.WithFields(logrus.Fields{
		"assets": len(snap.Assets),
		"links":  len(snap.Links),
	}).Info("Read inventory from file")

	return snap, nil
}
