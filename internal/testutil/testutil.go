// ABOUTME: Shared test fixtures and helpers for PatchRelay packages.
// ABOUTME: Provides silent loggers, asset/link factories, and reference topologies used across tests.

// Package testutil provides fixtures for the decision pipeline tests.
//
// Fixtures use functional options for customization:
//
//	a := testutil.FixtureAsset("r1")
//	a := testutil.FixtureAsset("r1", func(a *types.Asset) {
//		a.Type = types.DeviceRouter
//		a.Vulnerability = 9.5
//	})
package testutil

import (
	"io"
	"time"

	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
)

// NewTestLogger returns a logger that discards all output
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// FixedNow is a Wednesday afternoon used wherever a test needs a stable clock
var FixedNow = time.Date(2025, time.March, 12, 14, 0, 0, 0, time.UTC)

// FixtureAsset creates a healthy clinical server with moderate exposure
func FixtureAsset(id string, overrides ...func(*types.Asset)) types.Asset {
	a := types.Asset{
		ID:            id,
		Name:          id,
		Type:          types.DeviceServer,
		Zone:          types.ZoneClinical,
		Status:        types.StatusHealthy,
		Vulnerability: 5.0,
		PatchLevel:    0.8,
	}
	for _, o := range overrides {
		o(&a)
	}
	return a
}

// FixtureLink creates a low-loss link between two assets
func FixtureLink(source, target string, overrides ...func(*types.Link)) types.Link {
	l := types.Link{
		ID:        "L_" + source + "|" + target,
		Source:    source,
		Target:    target,
		LatencyMS: 5,
		Loss:      0.1,
	}
	for _, o := range overrides {
		o(&l)
	}
	return l
}

func inZone(z types.Zone) func(*types.Asset) {
	return func(a *types.Asset) { a.Zone = z }
}

func ofType(t types.DeviceType) func(*types.Asset) {
	return func(a *types.Asset) { a.Type = t }
}

// TwoClusters is two triangles, one in the DMZ and one in the Clinical zone, joined only
// through the router "br". "leaf" hangs off d2.
//
//	d2 - leaf
//	|  \
//	d3 - d1 - br - c1 - c3
//	               |  /
//	               c2
func TwoClusters() types.Snapshot {
	return types.Snapshot{
		Assets: []types.Asset{
			FixtureAsset("d1", inZone(types.ZoneDMZ), ofType(types.DeviceFirewall)),
			FixtureAsset("d2", inZone(types.ZoneDMZ), ofType(types.DeviceSwitch)),
			FixtureAsset("d3", inZone(types.ZoneDMZ), ofType(types.DeviceSwitch)),
			FixtureAsset("br", inZone(types.ZoneDMZ), ofType(types.DeviceRouter)),
			FixtureAsset("c1", inZone(types.ZoneClinical), ofType(types.DeviceServer)),
			FixtureAsset("c2", inZone(types.ZoneClinical), ofType(types.DeviceDatabase)),
			FixtureAsset("c3", inZone(types.ZoneClinical), ofType(types.DeviceEHR)),
			FixtureAsset("leaf", inZone(types.ZoneDMZ), ofType(types.DeviceWorkstation)),
		},
		Links: []types.Link{
			FixtureLink("d1", "d2"),
			FixtureLink("d2", "d3"),
			FixtureLink("d3", "d1"),
			FixtureLink("d1", "br"),
			FixtureLink("br", "c1"),
			FixtureLink("c1", "c2"),
			FixtureLink("c2", "c3"),
			FixtureLink("c3", "c1"),
			FixtureLink("d2", "leaf"),
		},
	}
}

// Line is the three-node path A - B - C, all in the Clinical zone
func Line() types.Snapshot {
	return types.Snapshot{
		Assets: []types.Asset{
			FixtureAsset("A", func(a *types.Asset) { a.Vulnerability = 9.0; a.PatchLevel = 0.2 }),
			FixtureAsset("B"),
			FixtureAsset("C"),
		},
		Links: []types.Link{
			FixtureLink("A", "B"),
			FixtureLink("B", "C"),
		},
	}
}

// HospitalRouter is a small hospital network where router "r1" is the only path between
// the DMZ and the Clinical zone. r1 carries vulnerability 9.5 at patch level 0.4 and has
// no HA peer.
func HospitalRouter() types.Snapshot {
	return types.Snapshot{
		Assets: []types.Asset{
			FixtureAsset("fw1", inZone(types.ZoneDMZ), ofType(types.DeviceFirewall)),
			FixtureAsset("sw1", inZone(types.ZoneDMZ), ofType(types.DeviceSwitch)),
			FixtureAsset("r1", inZone(types.ZoneDMZ), ofType(types.DeviceRouter), func(a *types.Asset) {
				a.Name = "Core Router"
				a.Vulnerability = 9.5
				a.PatchLevel = 0.4
			}),
			FixtureAsset("ehr1", ofType(types.DeviceEHR)),
			FixtureAsset("db1", ofType(types.DeviceDatabase)),
			FixtureAsset("srv1", ofType(types.DeviceServer)),
			FixtureAsset("ws1", inZone(types.ZoneAdmin), ofType(types.DeviceWorkstation)),
		},
		Links: []types.Link{
			FixtureLink("fw1", "sw1"),
			FixtureLink("sw1", "r1"),
			FixtureLink("fw1", "r1"),
			FixtureLink("r1", "ehr1"),
			FixtureLink("ehr1", "db1"),
			FixtureLink("db1", "srv1"),
			FixtureLink("srv1", "ehr1"),
			FixtureLink("sw1", "ws1"),
		},
	}
}

// WithHAPeer adds a healthy standby router "r2" paired with r1 in the HospitalRouter snapshot
func WithHAPeer(snap types.Snapshot) types.Snapshot {
	out := types.Snapshot{
		Assets: make([]types.Asset, 0, len(snap.Assets)+1),
		Links:  append([]types.Link(nil), snap.Links...),
	}
	for _, a := range snap.Assets {
		if a.ID == "r1" {
			a.HAPeer = "r2"
		}
		out.Assets = append(out.Assets, a)
	}
	out.Assets = append(out.Assets, FixtureAsset("r2", inZone(types.ZoneDMZ), ofType(types.DeviceRouter), func(a *types.Asset) {
		a.HAPeer = "r1"
		a.Vulnerability = 2.0
		a.PatchLevel = 1.0
	}))
	return out
}

// Float returns a pointer to f for optional fields
func Float(f float64) *float64 {
	return &f
}
