// ABOUTME: HTTP handlers for patch decision endpoints.
// ABOUTME: Serves the filtered decision list, per-asset bundles with stories, and risk propagation.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/explain"
	"github.com/jfeddern/PatchRelay/internal/types"

	"github.com/sirupsen/logrus"
)

const (
	maxLimit    = 10000
	maxSeeds    = 100
	maxIDLength = 128
)

type DecisionDataProvider interface {
	GetDecisions() ([]*types.Bundle, time.Time)
	GetDecision(assetID string) (*types.Bundle, bool)
	Propagate(seeds []string) (*engine.PropagationResult, error)
}

type DecisionsHandler struct {
	collector DecisionDataProvider
	logger    *logrus.Logger
}

// DecisionSummary is the list view of one asset's decision
type DecisionSummary struct {
	AssetID       string         `json:"asset_id"`
	AssetName     string         `json:"asset_name"`
	Zone          types.Zone     `json:"zone"`
	Priority      types.Priority `json:"priority"`
	Score         float64        `json:"score"`
	KEV           bool           `json:"kev"`
	SPOF          bool           `json:"spof"`
	Action        types.Action   `json:"action"`
	DueAt         time.Time      `json:"due_at"`
	DaysRemaining int            `json:"days_remaining"`
	Window        string         `json:"window,omitempty"`
	Method        string         `json:"method"`
	Headline      string         `json:"headline"`
}

type DecisionsResponse struct {
	Decisions   []DecisionSummary `json:"decisions"`
	Summary     DecisionStats     `json:"summary"`
	LastUpdated string            `json:"last_updated"`
}

type DecisionStats struct {
	TotalAssets int            `json:"total_assets"`
	ByAction    map[string]int `json:"by_action"`
	ByPriority  map[string]int `json:"by_priority"`
	Overdue     int            `json:"overdue"`
}

// actionAliases maps URL-friendly names to actions
var actionAliases = map[string]types.Action{
	"block":            types.ActionBlock,
	"patch-now":        types.ActionPatchNow,
	"schedule":         types.ActionSchedule,
	"schedule-another": types.ActionScheduleAnother,
}

func parseAction(s string) (types.Action, bool) {
	if a, ok := actionAliases[strings.ToLower(s)]; ok {
		return a, true
	}
	for _, a := range actionAliases {
		if strings.EqualFold(string(a), s) {
			return a, true
		}
	}
	return "", false
}

func parsePriority(s string) (types.Priority, bool) {
	for _, p := range []types.Priority{types.PriorityLow, types.PriorityMedium, types.PriorityHigh, types.PriorityEmergency} {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

func parseZone(s string) (types.Zone, bool) {
	for _, z := range []types.Zone{types.ZoneExternal, types.ZoneDMZ, types.ZoneClinical, types.ZoneAdmin} {
		if strings.EqualFold(string(z), s) {
			return z, true
		}
	}
	z, err := types.ParseZone(s)
	return z, err == nil
}

func NewDecisionsHandler(collector DecisionDataProvider, logger *logrus.Logger) *DecisionsHandler {
	return &DecisionsHandler{
		collector: collector,
		logger:    logger,
	}
}

func summarize(b *types.Bundle) DecisionSummary {
	s := DecisionSummary{
		AssetID:       b.AssetID,
		AssetName:     b.AssetName,
		Zone:          b.Zone,
		Priority:      b.Priority.Priority,
		Score:         b.Priority.Score,
		KEV:           b.Priority.Factors.KEV,
		SPOF:          b.Impact.IsSPOF,
		Action:        b.Decision.Action,
		DueAt:         b.CostOfDelay.DueAt,
		DaysRemaining: b.CostOfDelay.DaysRemaining,
		Method:        string(b.Plan.Method),
		Headline:      b.Story.Headline,
	}
	if b.Window != nil {
		s.Window = b.Window.Label
	}
	return s
}

// ServeHTTP lists decisions sorted by priority score, highest first
func (d *DecisionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := d.logger.WithField("endpoint", "/decisions")

	query := r.URL.Query()
	priorityParam := strings.TrimSpace(query.Get("priority"))
	actionParam := strings.TrimSpace(query.Get("action"))
	zoneParam := strings.TrimSpace(query.Get("zone"))
	limitParam := strings.TrimSpace(query.Get("limit"))

	var priorityFilter types.Priority
	if priorityParam != "" {
		p, ok := parsePriority(priorityParam)
		if !ok {
			http.Error(w, "Invalid priority filter. Must be one of: Low, Medium, High, Emergency", http.StatusBadRequest)
			return
		}
		priorityFilter = p
	}

	var actionFilter types.Action
	if actionParam != "" {
		a, ok := parseAction(actionParam)
		if !ok {
			http.Error(w, "Invalid action filter. Must be one of: block, patch-now, schedule, schedule-another", http.StatusBadRequest)
			return
		}
		actionFilter = a
	}

	var zoneFilter types.Zone
	if zoneParam != "" {
		z, ok := parseZone(zoneParam)
		if !ok {
			http.Error(w, "Invalid zone filter. Must be one of: External, DMZ, Clinical, Admin", http.StatusBadRequest)
			return
		}
		zoneFilter = z
	}

	// Validate and parse limit parameter
	var limit int = 0 // No limit by default
	if limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit parameter. Must be a positive integer", http.StatusBadRequest)
			return
		}
		if parsed > maxLimit {
			http.Error(w, "Limit parameter too large. Maximum allowed is 10000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	bundles, lastCollectionTime := d.collector.GetDecisions()

	stats := DecisionStats{
		TotalAssets: len(bundles),
		ByAction:    make(map[string]int),
		ByPriority:  make(map[string]int),
	}
	decisions := []DecisionSummary{}

	for _, b := range bundles {
		if b == nil {
			continue
		}

		// Statistics cover the whole inventory, not just the filtered view
		stats.ByAction[string(b.Decision.Action)]++
		stats.ByPriority[string(b.Priority.Priority)]++
		if b.CostOfDelay.DaysRemaining <= 0 {
			stats.Overdue++
		}

		if priorityFilter != "" && b.Priority.Priority != priorityFilter {
			continue
		}
		if actionFilter != "" && b.Decision.Action != actionFilter {
			continue
		}
		if zoneFilter != "" && b.Zone != zoneFilter {
			continue
		}
		decisions = append(decisions, summarize(b))
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Score > decisions[j].Score
	})

	if limit > 0 && len(decisions) > limit {
		decisions = decisions[:limit]
	}

	logger.WithFields(logrus.Fields{
		"priority_filter": priorityFilter,
		"action_filter":   actionFilter,
		"zone_filter":     zoneFilter,
		"limit":           limit,
		"returned":        len(decisions),
	}).Debug("Processing decisions request")

	writeJSON(w, r, logger, http.StatusOK, DecisionsResponse{
		Decisions:   decisions,
		Summary:     stats,
		LastUpdated: lastCollectionTime.UTC().Format(time.RFC3339),
	})
}

// DecisionResponse is one asset's full evaluation
type DecisionResponse struct {
	*types.Bundle
	Labels DecisionLabels `json:"labels"`
}

// DecisionLabels are the plain-language bands behind the story
type DecisionLabels struct {
	Severity   string `json:"severity"`
	Likelihood string `json:"likelihood"`
	Impact     string `json:"impact"`
	Topology   string `json:"topology"`
	Action     string `json:"action"`
	P50        string `json:"p50"`
	P90        string `json:"p90"`
}

// DecisionHandler serves /decisions/{id}
func DecisionHandler(collector DecisionDataProvider, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithField("endpoint", "/decisions/{id}")

		id := r.PathValue("id")
		if id == "" {
			id = strings.TrimPrefix(r.URL.Path, "/decisions/")
		}
		if id == "" || len(id) > maxIDLength || strings.Contains(id, "/") {
			http.Error(w, "Invalid asset id", http.StatusBadRequest)
			return
		}

		b, ok := collector.GetDecision(id)
		if !ok {
			http.Error(w, "Asset not found", http.StatusNotFound)
			return
		}

		f := b.Priority.Factors
		writeJSON(w, r, log, http.StatusOK, DecisionResponse{
			Bundle: b,
			Labels: DecisionLabels{
				Severity:   explain.SeverityBand(f.Severity),
				Likelihood: explain.LikelihoodBand(f.ExploitProbability),
				Impact:     explain.ImpactBand(f.BusinessImpact),
				Topology:   explain.TopologyBand(f.Topology, b.Impact.IsSPOF, b.Impact.LostZoneBridges),
				Action:     explain.ActionLabel(b.Decision.Action),
				P50:        explain.Minutes(b.Duration.P50),
				P90:        explain.Minutes(b.Duration.P90),
			},
		})
	}
}

// PropagationHandler serves /propagation?seed=a&seed=b (or seed=a,b)
func PropagationHandler(collector DecisionDataProvider, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithField("endpoint", "/propagation")

		var seeds []string
		for _, v := range r.URL.Query()["seed"] {
			for _, id := range strings.Split(v, ",") {
				if id = strings.TrimSpace(id); id != "" {
					seeds = append(seeds, id)
				}
			}
		}
		if len(seeds) == 0 {
			http.Error(w, "At least one seed parameter is required", http.StatusBadRequest)
			return
		}
		if len(seeds) > maxSeeds {
			http.Error(w, "Too many seeds. Maximum allowed is 100", http.StatusBadRequest)
			return
		}

		result, err := collector.Propagate(seeds)
		if errors.Is(err, engine.ErrNoSnapshot) {
			http.Error(w, "Inventory not loaded yet", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			log.WithError(err).Error("Propagation failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		log.WithFields(logrus.Fields{
			"seeds":     len(result.Seeds),
			"touched":   len(result.Risk),
			"hot_links": len(result.HotLinks),
		}).Debug("Served propagation response")

		writeJSON(w, r, log, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	// Pretty print if requested
	if r.URL.Query().Get("pretty") != "" {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// CreateDecisionsHandler creates a standard HTTP handler
func CreateDecisionsHandler(dataProvider DecisionDataProvider, logger *logrus.Logger) http.HandlerFunc {
	handler := NewDecisionsHandler(dataProvider, logger)
	return handler.ServeHTTP
}
