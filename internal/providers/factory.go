// ABOUTME: Factory for creating inventory and threat intel sources.
// ABOUTME: Centralizes provider instantiation and configuration logic.

package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/intel"
	"github.com/jfeddern/PatchRelay/internal/providers/aws"
	"github.com/jfeddern/PatchRelay/internal/providers/kube"
	"github.com/jfeddern/PatchRelay/internal/providers/local"
	"github.com/jfeddern/PatchRelay/internal/providers/mock"
	"github.com/jfeddern/PatchRelay/internal/providers/postgres"
	"github.com/sirupsen/logrus"
)

// ProviderConfig holds configuration for creating providers
type ProviderConfig struct {
	Mode          string
	InventoryFile string
	IntelDir      string
	MockMode      bool // Enable mock providers for local testing

	S3Bucket      string
	S3Key         string
	AWSRegion     string
	DatabaseURL   string
	KubeNamespace string
	KubeConfigMap string
	KubeKey       string

	Location *time.Location
}

// ProviderConfigFrom copies the provider settings out of an engine config
func ProviderConfigFrom(c *engine.Config) *ProviderConfig {
	return &ProviderConfig{
		Mode:          c.Mode,
		InventoryFile: c.InventoryFile,
		IntelDir:      c.IntelDir,
		MockMode:      c.MockMode,
		S3Bucket:      c.S3Bucket,
		S3Key:         c.S3Key,
		AWSRegion:     c.AWSRegion,
		DatabaseURL:   c.DatabaseURL,
		KubeNamespace: c.KubeNamespace,
		KubeConfigMap: c.KubeConfigMap,
		KubeKey:       c.KubeKey,
		Location:      c.Location,
	}
}

// CreateInventorySource creates an inventory source based on configuration
func CreateInventorySource(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (engine.InventorySource, error) {
	// Check for mock mode first
	if config.MockMode {
		logger.Info("Using mock hospital inventory for testing")
		return mock.NewMockHospitalProvider(logger), nil
	}

	mode, err := ParseMode(config.Mode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeLocal:
		if config.InventoryFile == "" {
			return nil, fmt.Errorf("inventory file is required in local mode")
		}
		return local.NewLocalProvider(config.InventoryFile, logger), nil
	case ModeS3:
		return aws.NewS3Source(ctx, config.S3Bucket, config.S3Key, config.AWSRegion, logger)
	case ModeKube:
		if config.KubeConfigMap == "" {
			return nil, fmt.Errorf("configmap name is required in kube mode")
		}
		return kube.NewConfigMapSource(config.KubeNamespace, config.KubeConfigMap, config.KubeKey, logger)
	case ModePostgres:
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL is required in postgres mode")
		}
		return postgres.NewCMDBSource(ctx, config.DatabaseURL, logger)
	default:
		return mock.NewMockHospitalProvider(logger), nil
	}
}

// CreateIntelSource creates a threat intel source. It returns a nil source when no
// intel is configured, which makes every evaluation run on heuristics.
func CreateIntelSource(config *ProviderConfig, inventory engine.InventorySource, logger *logrus.Logger) engine.IntelSource {
	if hospital, ok := inventory.(*mock.MockHospitalProvider); ok && config.IntelDir == "" {
		logger.Info("Using mock threat intel for testing")
		return mock.NewMockIntelSource(hospital, logger)
	}

	if config.IntelDir == "" {
		logger.Info("No intel directory configured, running without threat intel")
		return nil
	}

	location := config.Location
	if location == nil {
		location = time.UTC
	}
	return intel.NewDirSource(config.IntelDir, location, logger)
}
