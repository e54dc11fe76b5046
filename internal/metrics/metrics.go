// ABOUTME: Prometheus metrics exposition for patch decisions.
// ABOUTME: Defines per-asset gauges and provides the HTTP handler for the /metrics endpoint.

package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type DecisionDataProvider interface {
	GetDecisions() ([]*types.Bundle, time.Time)
}

type MetricsHandler struct {
	collector DecisionDataProvider
	logger    *logrus.Logger
	mutex     sync.Mutex

	// Prometheus metrics
	priorityScore   *prometheus.GaugeVec
	daysRemaining   *prometheus.GaugeVec
	costOfDelay     *prometheus.GaugeVec
	spof            *prometheus.GaugeVec
	patchDuration   *prometheus.GaugeVec
	decisionInfo    *prometheus.GaugeVec
	actionCount     *prometheus.GaugeVec
	collectionInfo  *prometheus.GaugeVec
	disconnectCount *prometheus.GaugeVec
}

func NewMetricsHandler(collector DecisionDataProvider, logger *logrus.Logger) *MetricsHandler {
	assetLabels := []string{"asset_id", "asset_name", "zone"}

	return &MetricsHandler{
		collector: collector,
		logger:    logger,

		priorityScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_priority_score",
				Help: "Composite patch priority score (0..1) by asset and priority bucket",
			},
			append(assetLabels, "priority"),
		),

		daysRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_days_remaining",
				Help: "Days until the patch due date; negative when overdue",
			},
			assetLabels,
		),

		costOfDelay: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_cost_of_delay",
				Help: "Estimated cost of deferring the patch by the configured delay",
			},
			assetLabels,
		),

		spof: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_spof",
				Help: "Whether taking the asset offline disconnects the network (1=YES, 0=NO)",
			},
			assetLabels,
		),

		disconnectCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_offline_disconnected_assets",
				Help: "Number of assets cut off while the asset is offline",
			},
			assetLabels,
		),

		patchDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_patch_duration_minutes",
				Help: "Estimated patch duration in minutes by quantile",
			},
			append(assetLabels, "quantile", "source"),
		),

		decisionInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_asset_decision_info",
				Help: "Chosen action and remediation method per asset (always 1)",
			},
			append(assetLabels, "action", "method", "risk"),
		),

		actionCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_decisions",
				Help: "Number of assets per decision action",
			},
			[]string{"action"},
		),

		collectionInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patchrelay_collection_info",
				Help: "Information about decision collection",
			},
			[]string{"info_type"},
		),
	}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Create a new registry for this request to avoid conflicts
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		m.priorityScore,
		m.daysRemaining,
		m.costOfDelay,
		m.spof,
		m.disconnectCount,
		m.patchDuration,
		m.decisionInfo,
		m.actionCount,
		m.collectionInfo,
	)

	// Reset all metrics to avoid stale data
	m.priorityScore.Reset()
	m.daysRemaining.Reset()
	m.costOfDelay.Reset()
	m.spof.Reset()
	m.disconnectCount.Reset()
	m.patchDuration.Reset()
	m.decisionInfo.Reset()
	m.actionCount.Reset()
	m.collectionInfo.Reset()

	bundles, lastCollectionTime := m.collector.GetDecisions()

	actions := make(map[types.Action]int)
	for _, b := range bundles {
		if b == nil {
			continue
		}
		id := sanitizeLabelValue(b.AssetID)
		name := sanitizeLabelValue(b.AssetName)
		zone := sanitizeLabelValue(string(b.Zone))

		m.priorityScore.WithLabelValues(id, name, zone, string(b.Priority.Priority)).Set(b.Priority.Score)
		m.daysRemaining.WithLabelValues(id, name, zone).Set(float64(b.CostOfDelay.DaysRemaining))
		m.costOfDelay.WithLabelValues(id, name, zone).Set(b.CostOfDelay.Cost)

		spofValue := float64(0)
		if b.Impact.IsSPOF {
			spofValue = 1
		}
		m.spof.WithLabelValues(id, name, zone).Set(spofValue)
		m.disconnectCount.WithLabelValues(id, name, zone).Set(float64(len(b.Impact.Disconnected)))

		source := "baseline"
		if b.Duration.FromHistory {
			source = "history"
		}
		m.patchDuration.WithLabelValues(id, name, zone, "p50", source).Set(float64(b.Duration.P50))
		m.patchDuration.WithLabelValues(id, name, zone, "p90", source).Set(float64(b.Duration.P90))

		m.decisionInfo.WithLabelValues(
			id, name, zone, string(b.Decision.Action), sanitizeLabelValue(string(b.Plan.Method)), sanitizeLabelValue(string(b.Plan.Risk)),
		).Set(1)

		actions[b.Decision.Action]++
	}

	for action, count := range actions {
		m.actionCount.WithLabelValues(string(action)).Set(float64(count))
	}

	// Collection info
	m.collectionInfo.WithLabelValues("last_collection_timestamp").Set(float64(lastCollectionTime.Unix()))
	m.collectionInfo.WithLabelValues("assets_evaluated").Set(float64(len(bundles)))

	// Serve metrics
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	handler.ServeHTTP(w, r)
}

// sanitizeLabelValue cleans strings for use as Prometheus labels
func sanitizeLabelValue(value string) string {
	if value == "" {
		return "unknown"
	}

	// Remove newlines and carriage returns
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")

	// Limit length to prevent excessive label sizes
	if len(value) > 200 {
		value = value[:200] + "..."
	}

	// Remove any leading/trailing whitespace
	return strings.TrimSpace(value)
}

// CreateMetricsHandler creates a standard HTTP handler that can be used with http.ServeMux
func CreateMetricsHandler(dataProvider DecisionDataProvider, logger *logrus.Logger) http.HandlerFunc {
	metricsHandler := NewMetricsHandler(dataProvider, logger)
	return metricsHandler.ServeHTTP
}
