// ABOUTME: Directory-backed threat intel source combining whichever feed files are present.
// ABOUTME: Reports "no intel" when the directory holds none of the known feeds.

package intel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	KEVFilename            = "known_exploited_vulnerabilities.json"
	EPSSFilename           = "epss_scores-current.csv"
	BusinessImpactFilename = "business_impact.yaml"
)

// DirSource loads intel snapshots from a local directory
type DirSource struct {
	dir      string
	location *time.Location
	logger   *logrus.Logger
}

func NewDirSource(dir string, location *time.Location, logger *logrus.Logger) *DirSource {
	return &DirSource{dir: dir, location: location, logger: logger}
}

func (s *DirSource) Name() string {
	return "intel-dir:" + s.dir
}

// LoadIntel parses every feed file found in the directory. Missing files are skipped;
// parse failures are collected and returned together.
func (s *DirSource) LoadIntel(ctx context.Context) (types.Intel, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"operation": "load_intel",
		"dir":       s.dir,
	})

	var (
		data    types.IntelData
		found   int
		loadErr error
	)

	load := func(name string, parse func(*os.File) error) {
		if err := ctx.Err(); err != nil {
			loadErr = multierr.Append(loadErr, err)
			return
		}
		f, err := os.Open(filepath.Join(s.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			logger.WithField("file", name).Debug("Intel feed not present")
			return
		}
		if err != nil {
			loadErr = multierr.Append(loadErr, fmt.Errorf("open %s: %w", name, err))
			return
		}
		defer f.Close()

		if err := parse(f); err != nil {
			loadErr = multierr.Append(loadErr, fmt.Errorf("parse %s: %w", name, err))
			return
		}
		found++
	}

	load(KEVFilename, func(f *os.File) error {
		kev, err := ParseKEV(f, s.location)
		if err != nil {
			return err
		}
		data.KnownExploited = kev.Known
		data.KEVDueDates = kev.DueDates
		return nil
	})
	load(EPSSFilename, func(f *os.File) error {
		scores, err := ParseEPSS(f)
		data.ExploitProbability = scores
		return err
	})
	load(BusinessImpactFilename, func(f *os.File) error {
		impacts, err := ParseBusinessImpact(f)
		data.BusinessImpact = impacts
		return err
	})

	if loadErr != nil {
		return types.NoIntel(), loadErr
	}
	if found == 0 {
		logger.Info("No intel feeds found, evaluating without threat intel")
		return types.NoIntel(), nil
	}

	logger.WithFields(logrus.Fields{
		"feeds":          found,
		"known_exploits": len(data.KnownExploited),
		"epss_scores":    len(data.ExploitProbability),
		"impact_entries": len(data.BusinessImpact),
	}).Info("Loaded threat intel")

	return types.ProvidedIntel(data), nil
}
