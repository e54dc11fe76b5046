// ABOUTME: Host engine that periodically loads inventory and intel and re-evaluates every asset.
// ABOUTME: Keeps the latest decision set in memory for the HTTP API and metrics.

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfeddern/PatchRelay/internal/cache"
	"github.com/jfeddern/PatchRelay/internal/propagation"
	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoSnapshot is returned by queries made before the first successful collection
var ErrNoSnapshot = errors.New("no inventory snapshot loaded yet")

// InventorySource abstracts where the topology snapshot comes from (file, S3, ConfigMap, CMDB)
type InventorySource interface {
	Name() string
	LoadSnapshot(ctx context.Context) (types.Snapshot, error)
}

// IntelSource abstracts threat intel loading
type IntelSource interface {
	Name() string
	LoadIntel(ctx context.Context) (types.Intel, error)
}

// Config holds configuration for the decision engine and its providers
type Config struct {
	Mode            string
	Port            int
	InventoryFile   string
	IntelDir        string
	RefreshInterval time.Duration
	MockMode        bool // Serve the built-in demo hospital network

	S3Bucket      string
	S3Key         string
	AWSRegion     string
	DatabaseURL   string
	KubeNamespace string
	KubeConfigMap string
	KubeKey       string

	Location    *time.Location
	IntelTTL    time.Duration
	Concurrency int
	Eval        EvalOptions
	Propagation propagation.Options
}

// Engine evaluates the whole inventory on a schedule using pluggable sources
type Engine struct {
	inventory  InventorySource
	intel      IntelSource
	intelCache *cache.IntelCache
	config     *Config
	logger     *logrus.Logger
	clock      func() time.Time

	// Latest evaluation results with metadata
	mutex              sync.RWMutex
	graph              *topology.Graph
	decisions          map[string]*types.Bundle
	order              []string
	runID              string
	lastCollectionTime time.Time
}

// NewEngine creates a decision engine. intel may be nil, in which case every evaluation
// runs without threat intel.
func NewEngine(inventory InventorySource, intel IntelSource, config *Config, logger *logrus.Logger) *Engine {
	return &Engine{
		inventory:  inventory,
		intel:      intel,
		intelCache: cache.NewIntelCache(config.IntelTTL, logger),
		config:     config,
		logger:     logger,
		clock:      time.Now,
		decisions:  make(map[string]*types.Bundle),
	}
}

// Start performs an initial collection and then refreshes on every interval until ctx is done
func (e *Engine) Start(ctx context.Context) {
	logger := e.logger.WithField("component", "decision_engine")
	defer e.intelCache.Close()

	if err := e.collectDecisions(ctx); err != nil {
		logger.WithError(err).Error("Initial decision collection failed")
	}

	ticker := time.NewTicker(e.config.RefreshInterval)
	defer ticker.Stop()

	logger.WithField("interval", e.config.RefreshInterval).Info("Starting periodic decision collection")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Decision engine stopping")
			return
		case <-ticker.C:
			if err := e.collectDecisions(ctx); err != nil {
				logger.WithError(err).Error("Decision collection failed")
			}
		}
	}
}

func (e *Engine) now() time.Time {
	loc := e.config.Location
	if loc == nil {
		loc = time.Local
	}
	return e.clock().In(loc)
}

func (e *Engine) collectDecisions(ctx context.Context) error {
	runID := uuid.NewString()
	logger := e.logger.WithFields(logrus.Fields{
		"operation": "collect_decisions",
		"run_id":    runID,
	})
	startTime := time.Now()

	logger.Info("Starting decision collection")

	snap, err := e.inventory.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load inventory from %s: %w", e.inventory.Name(), err)
	}

	intel := e.loadIntel(ctx, logger)
	g := topology.NewGraph(snap)
	if skipped := g.SkippedLinks(); skipped > 0 {
		logger.WithField("skipped_links", skipped).Warn("Ignoring links with unknown or identical endpoints")
	}

	logger.WithFields(logrus.Fields{
		"asset_count":    g.Len(),
		"intel_provided": intel.Provided(),
	}).Info("Loaded inventory")

	now := e.now()
	assets := g.Assets()
	results := make([]*types.Bundle, len(assets))

	concurrency := e.config.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, asset := range assets {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bundle, err := EvaluateGraph(g, asset.ID, intel, snap.History[asset.ID], now, e.config.Eval)
			if err != nil {
				logger.WithError(err).WithField("asset", asset.ID).Error("Failed to evaluate asset")
				return nil
			}
			results[i] = bundle
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("evaluate inventory: %w", err)
	}

	decisions := make(map[string]*types.Bundle, len(results))
	order := make([]string, 0, len(results))
	for _, b := range results {
		if b == nil {
			continue
		}
		decisions[b.AssetID] = b
		order = append(order, b.AssetID)
	}

	e.mutex.Lock()
	e.graph = g
	e.decisions = decisions
	e.order = order
	e.runID = runID
	e.lastCollectionTime = time.Now()
	e.mutex.Unlock()

	logger.WithFields(logrus.Fields{
		"duration":        time.Since(startTime),
		"assets_decided":  len(order),
		"assets_in_graph": len(assets),
	}).Info("Decision collection completed")

	return nil
}

// loadIntel returns cached intel when fresh; a failing source degrades to no intel
func (e *Engine) loadIntel(ctx context.Context, logger *logrus.Entry) types.Intel {
	if e.intel == nil {
		return types.NoIntel()
	}
	key := e.intel.Name()
	if cached, ok := e.intelCache.Get(key); ok {
		return cached
	}

	intel, err := e.intel.LoadIntel(ctx)
	if err != nil {
		logger.WithError(err).WithField("source", key).Warn("Threat intel unavailable, using heuristics")
		return types.NoIntel()
	}
	e.intelCache.Set(key, intel)
	return intel
}

// GetDecisions returns the latest bundles in inventory order with the time they were computed
func (e *Engine) GetDecisions() ([]*types.Bundle, time.Time) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	out := make([]*types.Bundle, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.decisions[id])
	}
	return out, e.lastCollectionTime
}

// GetDecision returns the latest bundle for one asset
func (e *Engine) GetDecision(assetID string) (*types.Bundle, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	b, ok := e.decisions[assetID]
	return b, ok
}

// RunID identifies the collection that produced the current decisions
func (e *Engine) RunID() string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.runID
}

// PropagationResult is the risk spread from a set of seeds over the current inventory
type PropagationResult struct {
	Seeds        []string           `json:"seeds"`
	UnknownSeeds []string           `json:"unknown_seeds,omitempty"`
	Risk         map[string]float64 `json:"risk"`
	HotLinks     []string           `json:"hot_links"`
}

// HotLinkThreshold is the endpoint risk both sides of a link need to be reported as hot
const HotLinkThreshold = 0.2

// Propagate spreads risk from seeds across the latest snapshot
func (e *Engine) Propagate(seeds []string) (*PropagationResult, error) {
	e.mutex.RLock()
	g := e.graph
	e.mutex.RUnlock()

	if g == nil {
		return nil, ErrNoSnapshot
	}

	result := &PropagationResult{Seeds: []string{}}
	for _, id := range seeds {
		if _, ok := g.Asset(id); ok {
			result.Seeds = append(result.Seeds, id)
		} else {
			result.UnknownSeeds = append(result.UnknownSeeds, id)
		}
	}

	result.Risk = propagation.Compute(g, result.Seeds, e.config.Propagation)
	result.HotLinks = propagation.HotLinks(result.Risk, g.Links(), HotLinkThreshold)
	return result, nil
}
