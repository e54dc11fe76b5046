// ABOUTME: PostgreSQL CMDB inventory source reading assets, links, and patch history tables.
// ABOUTME: Read-only; rows are assembled into a snapshot and validated like file inventories.

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/jfeddern/PatchRelay/internal/validation"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryWindow bounds how far back patch durations are read
const DefaultHistoryWindow = 365 * 24 * time.Hour

// Schema documents the tables the CMDB source expects. It is not applied automatically.
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL,
	zone            TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'healthy',
	vuln            DOUBLE PRECISION NOT NULL,
	patch           DOUBLE PRECISION NOT NULL,
	business_impact DOUBLE PRECISION,
	cves            TEXT[] NOT NULL DEFAULT '{}',
	ha_peer         TEXT
);

CREATE TABLE IF NOT EXISTS links (
	id      TEXT PRIMARY KEY,
	source  TEXT NOT NULL,
	target  TEXT NOT NULL,
	lat     DOUBLE PRECISION NOT NULL DEFAULT 0,
	loss    DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS patch_history (
	asset_id     TEXT NOT NULL REFERENCES assets(id),
	minutes      DOUBLE PRECISION NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);
`

// querier is the subset of pgxpool.Pool used here
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CMDBSource implements InventorySource for a PostgreSQL CMDB
type CMDBSource struct {
	db            querier
	pool          *pgxpool.Pool
	historyWindow time.Duration
	clock         func() time.Time
	logger        *logrus.Logger
}

// NewCMDBSource connects to the database at url
func NewCMDBSource(ctx context.Context, url string, logger *logrus.Logger) (*CMDBSource, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := newCMDBSource(pool, logger)
	s.pool = pool
	return s, nil
}

func newCMDBSource(db querier, logger *logrus.Logger) *CMDBSource {
	return &CMDBSource{
		db:            db,
		historyWindow: DefaultHistoryWindow,
		clock:         time.Now,
		logger:        logger,
	}
}

// Name returns the inventory source name
func (s *CMDBSource) Name() string {
	return "postgres-cmdb"
}

// Close closes the connection pool, if any.
func (s *CMDBSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadSnapshot reads the three tables and validates the assembled snapshot
func (s *CMDBSource) LoadSnapshot(ctx context.Context) (types.Snapshot, error) {
	assets, err := s.listAssets(ctx)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("listing assets: %w", err)
	}
	links, err := s.listLinks(ctx)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("listing links: %w", err)
	}
	history, err := s.listHistory(ctx)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("listing patch history: %w", err)
	}

	snap, err := validation.Normalize(types.Snapshot{Assets: assets, Links: links, History: history})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("invalid CMDB inventory: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"operation": "load_snapshot_postgres",
		"assets":    len(snap.Assets),
		"links":     len(snap.Links),
		"history":   len(snap.History),
	}).Info("Read inventory from CMDB")

	return snap, nil
}

func (s *CMDBSource) listAssets(ctx context.Context) ([]types.Asset, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, zone, status, vuln, patch, business_impact, cves, COALESCE(ha_peer, '')
		FROM assets
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		var a types.Asset
		var deviceType, zone, status string
		if err := rows.Scan(
			&a.ID,
			&a.Name,
			&deviceType,
			&zone,
			&status,
			&a.Vulnerability,
			&a.PatchLevel,
			&a.BusinessImpact,
			&a.CVEs,
			&a.HAPeer,
		); err != nil {
			return nil, err
		}
		a.Type = types.DeviceType(deviceType)
		a.Zone = types.Zone(zone)
		a.Status = types.Status(status)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *CMDBSource) listLinks(ctx context.Context) ([]types.Link, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, source, target, lat, loss
		FROM links
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []types.Link
	for rows.Next() {
		var l types.Link
		if err := rows.Scan(&l.ID, &l.Source, &l.Target, &l.LatencyMS, &l.Loss); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *CMDBSource) listHistory(ctx context.Context) (map[string][]float64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT asset_id, minutes
		FROM patch_history
		WHERE completed_at >= $1
		ORDER BY asset_id, completed_at
	`, s.clock().Add(-s.historyWindow))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make(map[string][]float64)
	for rows.Next() {
		var id string
		var minutes float64
		if err := rows.Scan(&id, &minutes); err != nil {
			return nil, err
		}
		history[id] = append(history[id], minutes)
	}
	return history, rows.Err()
}
