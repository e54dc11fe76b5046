// ABOUTME: Common types shared across the PatchRelay system.
// ABOUTME: Defines assets, links, snapshots, threat intel, and every decision pipeline result.

package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrAssetNotFound is returned when an evaluation names an asset that is not in the snapshot
	ErrAssetNotFound = errors.New("asset not found in snapshot")
	// ErrUnknownDeviceType is returned for device type strings outside the declared set
	ErrUnknownDeviceType = errors.New("unknown device type")
	// ErrUnknownZone is returned for zone strings outside the declared set
	ErrUnknownZone = errors.New("unknown zone")
	// ErrUnknownStatus is returned for status strings outside the declared set
	ErrUnknownStatus = errors.New("unknown status")
)

// Zone is the network segment an asset lives in
type Zone string

const (
	ZoneExternal Zone = "External"
	ZoneDMZ      Zone = "DMZ / Perimeter"
	ZoneClinical Zone = "Clinical"
	ZoneAdmin    Zone = "Admin"
)

// ParseZone accepts the canonical zone names plus the short "DMZ" alias
func ParseZone(s string) (Zone, error) {
	switch s {
	case string(ZoneExternal):
		return ZoneExternal, nil
	case string(ZoneDMZ), "DMZ", "Perimeter":
		return ZoneDMZ, nil
	case string(ZoneClinical):
		return ZoneClinical, nil
	case string(ZoneAdmin):
		return ZoneAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownZone, s)
}

// Status is the operational health of an asset
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusOutage   Status = "outage"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusHealthy, StatusDegraded, StatusOutage:
		return Status(s), nil
	case "":
		return StatusHealthy, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// DeviceType is the closed set of device classes the planner knows how to remediate
type DeviceType string

const (
	DeviceFirewall    DeviceType = "Firewall"
	DeviceRouter      DeviceType = "Router"
	DeviceSwitch      DeviceType = "Switch"
	DeviceServer      DeviceType = "Server"
	DeviceDatabase    DeviceType = "Database"
	DeviceWorkstation DeviceType = "Workstation"
	DeviceEHR         DeviceType = "EHR"
	DevicePACS        DeviceType = "PACS"
	DeviceHL7         DeviceType = "HL7 Engine"
	DeviceMedicalIoT  DeviceType = "Medical IoT"
	DeviceWiFiAP      DeviceType = "WiFi AP"
	// DeviceOther opts an asset into the generic maintenance SOP explicitly
	DeviceOther DeviceType = "Other"
)

// DeviceTypes lists every declared device type in a stable order
var DeviceTypes = []DeviceType{
	DeviceFirewall, DeviceRouter, DeviceSwitch, DeviceServer, DeviceDatabase, DeviceWorkstation,
	DeviceEHR, DevicePACS, DeviceHL7, DeviceMedicalIoT, DeviceWiFiAP, DeviceOther,
}

// ParseDeviceType fails for anything outside DeviceTypes so new classes cannot slip into a generic plan
func ParseDeviceType(s string) (DeviceType, error) {
	for _, t := range DeviceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceType, s)
}

// Asset is a node of the topology graph
type Asset struct {
	ID             string     `json:"id" yaml:"id" validate:"required,max=128"`
	Name           string     `json:"name" yaml:"name" validate:"max=256"`
	Type           DeviceType `json:"type" yaml:"type" validate:"required"`
	Zone           Zone       `json:"zone" yaml:"zone" validate:"required"`
	Status         Status     `json:"status" yaml:"status"`
	Vulnerability  float64    `json:"vuln" yaml:"vuln" validate:"gte=0,lte=10"`
	PatchLevel     float64    `json:"patch" yaml:"patch" validate:"gte=0,lte=1"`
	BusinessImpact *float64   `json:"business_impact,omitempty" yaml:"business_impact,omitempty" validate:"omitempty,gte=0,lte=1"`
	CVEs           []string   `json:"cves,omitempty" yaml:"cves,omitempty" validate:"omitempty,dive,required"`
	HAPeer         string     `json:"ha_peer,omitempty" yaml:"ha_peer,omitempty"`
}

// Link is an edge of the topology graph; orientation is ignored for connectivity
type Link struct {
	ID        string  `json:"id" yaml:"id"`
	Source    string  `json:"source" yaml:"source" validate:"required"`
	Target    string  `json:"target" yaml:"target" validate:"required"`
	LatencyMS float64 `json:"lat" yaml:"lat" validate:"gte=0"`
	Loss      float64 `json:"loss" yaml:"loss" validate:"gte=0,lte=1"`
}

// Snapshot is the immutable (assets, links) pair consumed by one evaluation. History
// optionally carries past patch durations in minutes, keyed by asset id.
type Snapshot struct {
	Assets  []Asset              `json:"assets" yaml:"assets"`
	Links   []Link               `json:"links" yaml:"links"`
	History map[string][]float64 `json:"history,omitempty" yaml:"history,omitempty"`
}

// IntelData is the content of a provided threat intel snapshot
type IntelData struct {
	KnownExploited     map[string]struct{}
	KEVDueDates        map[string]time.Time
	ExploitProbability map[string]float64
	BusinessImpact     map[string]float64
}

// Intel distinguishes "no intel was provided" from "intel was provided and found nothing".
// The zero value is NoIntel.
type Intel struct {
	provided bool
	data     IntelData
}

func NoIntel() Intel {
	return Intel{}
}

func ProvidedIntel(data IntelData) Intel {
	return Intel{provided: true, data: data}
}

// Data returns the intel content and whether any was provided
func (i Intel) Data() (IntelData, bool) {
	return i.data, i.provided
}

func (i Intel) Provided() bool {
	return i.provided
}

// Impact is the blast radius of taking one asset offline
type Impact struct {
	IsSPOF          bool     `json:"is_spof"`
	Disconnected    []string `json:"disconnected"`
	LostZoneBridges int      `json:"lost_zone_bridges"`
	CutEdges        int      `json:"cut_edges"`
}

type Priority string

const (
	PriorityLow       Priority = "Low"
	PriorityMedium    Priority = "Medium"
	PriorityHigh      Priority = "High"
	PriorityEmergency Priority = "Emergency"
)

// PriorityFactors are the inputs behind a priority score, kept for explanation
type PriorityFactors struct {
	Severity           float64 `json:"severity"` // raw 0..10 score
	ExploitProbability float64 `json:"exploit_probability"`
	BusinessImpact     float64 `json:"business_impact"`
	Topology           float64 `json:"topology"`
	KEV                bool    `json:"kev"`
	SPOF               bool    `json:"spof"`
}

type PriorityResult struct {
	Priority Priority        `json:"priority"`
	Score    float64         `json:"score"`
	Factors  PriorityFactors `json:"factors"`
}

type CostOfDelay struct {
	Cost          float64   `json:"cost"`
	Severity      float64   `json:"severity"`
	DueAt         time.Time `json:"due_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// Window is a maintenance window during which disruptive changes are allowed
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Minutes is the window length
func (w Window) Minutes() float64 {
	return w.End.Sub(w.Start).Minutes()
}

type DurationEstimate struct {
	P50         int      `json:"p50"`
	P90         int      `json:"p90"`
	Breakdown   []string `json:"breakdown"`
	FromHistory bool     `json:"from_history"`
}

type PatchMethod string

const (
	MethodHAFailover        PatchMethod = "HA-failover"
	MethodRolling           PatchMethod = "rolling"
	MethodReplicaSwitchover PatchMethod = "replica-switchover"
	MethodDrainAndPatch     PatchMethod = "drain-and-patch"
	MethodStandard          PatchMethod = "standard"
)

type PlanRisk string

const (
	RiskNormal   PlanRisk = "normal"
	RiskElevated PlanRisk = "elevated"
	RiskHigh     PlanRisk = "high"
)

type Plan struct {
	Method PatchMethod `json:"method"`
	Risk   PlanRisk    `json:"risk"`
	Steps  []string    `json:"steps"`
}

type Action string

const (
	ActionBlock           Action = "Block"
	ActionPatchNow        Action = "Patch Now (Emergency)"
	ActionSchedule        Action = "Schedule"
	ActionScheduleAnother Action = "Schedule (Different Window)"
)

// Capacity compares the p90 patch duration with the window length, in minutes
type Capacity struct {
	Required int `json:"required"`
	Window   int `json:"window"`
}

// Decision is the terminal action of the decision state machine. Fields that do not
// apply to the chosen action are left empty.
type Decision struct {
	Action     Action      `json:"action"`
	Reason     string      `json:"reason,omitempty"`
	Required   []string    `json:"required,omitempty"`
	StartAt    *time.Time  `json:"start_at,omitempty"`
	When       string      `json:"when,omitempty"`
	Method     PatchMethod `json:"method,omitempty"`
	EstMinutes int         `json:"est_minutes,omitempty"`
	Capacity   *Capacity   `json:"capacity,omitempty"`
	Notes      []string    `json:"notes,omitempty"`
	Prechecks  []string    `json:"prechecks,omitempty"`
	Steps      []string    `json:"steps,omitempty"`
	Todo       []string    `json:"todo,omitempty"`
}

// Story is the plain-language rendering of a decision
type Story struct {
	Headline string   `json:"headline"`
	Action   string   `json:"action"`
	When     string   `json:"when,omitempty"`
	Why      []string `json:"why"`
	How      []string `json:"how"`
	Risk     string   `json:"risk"`
}

// Bundle aggregates every stage output for one asset evaluation
type Bundle struct {
	AssetID     string           `json:"asset_id"`
	AssetName   string           `json:"asset_name"`
	Zone        Zone             `json:"zone"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	Priority    PriorityResult   `json:"priority"`
	CostOfDelay CostOfDelay      `json:"cost_of_delay"`
	Window      *Window          `json:"window"`
	Duration    DurationEstimate `json:"duration"`
	Impact      Impact           `json:"impact"`
	Plan        Plan             `json:"plan"`
	Decision    Decision         `json:"decision"`
	Story       Story            `json:"story"`
}

// Clamp01 bounds x to [0,1]; NaN maps to 0
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
