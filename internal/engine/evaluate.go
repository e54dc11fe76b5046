// ABOUTME: Single-asset evaluation pipeline producing a full decision bundle.
// ABOUTME: Runs impact, scoring, delay, duration, window, plan, decision, and story stages in order.

package engine

import (
	"fmt"
	"time"

	"github.com/jfeddern/PatchRelay/internal/decision"
	"github.com/jfeddern/PatchRelay/internal/duration"
	"github.com/jfeddern/PatchRelay/internal/explain"
	"github.com/jfeddern/PatchRelay/internal/plan"
	"github.com/jfeddern/PatchRelay/internal/scoring"
	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/jfeddern/PatchRelay/internal/window"
)

// EvalOptions tunes the evaluation stages that have adjustable horizons
type EvalOptions struct {
	DelayDays   int `yaml:"delay_days"`
	HorizonDays int `yaml:"horizon_days"`
}

// DefaultEvalOptions returns the standard delay window and window horizon
func DefaultEvalOptions() EvalOptions {
	return EvalOptions{
		DelayDays:   scoring.DefaultDelayDays,
		HorizonDays: window.DefaultHorizonDays,
	}
}

// Evaluate runs the full decision pipeline for one asset of the snapshot. It is pure:
// the same inputs always give the same bundle. An asset id missing from the snapshot
// returns an error wrapping types.ErrAssetNotFound.
func Evaluate(assetID string, snap types.Snapshot, intel types.Intel, history []float64, now time.Time) (*types.Bundle, error) {
	return EvaluateGraph(topology.NewGraph(snap), assetID, intel, history, now, DefaultEvalOptions())
}

// EvaluateGraph is Evaluate over a prebuilt graph, so batch runs share one read-only graph
func EvaluateGraph(g *topology.Graph, assetID string, intel types.Intel, history []float64, now time.Time, opts EvalOptions) (*types.Bundle, error) {
	asset, ok := g.Asset(assetID)
	if !ok {
		return nil, fmt.Errorf("evaluate %q: %w", assetID, types.ErrAssetNotFound)
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = window.DefaultHorizonDays
	}

	impact := topology.OfflineImpact(g, asset.ID)
	priority := scoring.Score(asset, g, intel)
	delay := scoring.CostOfDelay(asset, priority.Factors, intel, now, opts.DelayDays)
	est := duration.Estimate(asset, history)

	var win *types.Window
	if w, ok := window.Next(now, opts.HorizonDays); ok {
		win = &w
	}

	p, err := plan.Suggest(asset, plan.Context{
		KEV:             priority.Factors.KEV,
		DaysRemaining:   delay.DaysRemaining,
		HAPeerAvailable: g.HAPeerAvailable(asset.ID),
	}, impact)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", asset.ID, err)
	}

	d := decision.Decide(now, decision.Signals{
		Priority:      priority.Priority,
		KEV:           priority.Factors.KEV,
		DueAt:         delay.DueAt,
		DaysRemaining: delay.DaysRemaining,
		Window:        win,
		Duration:      est,
		Impact:        impact,
		Plan:          p,
	})

	bundle := &types.Bundle{
		AssetID:     asset.ID,
		AssetName:   asset.Name,
		Zone:        asset.Zone,
		EvaluatedAt: now,
		Priority:    priority,
		CostOfDelay: delay,
		Window:      win,
		Duration:    est,
		Impact:      impact,
		Plan:        p,
		Decision:    d,
	}
	bundle.Story = explain.ForHumans(asset, *bundle)
	return bundle, nil
}
