// ABOUTME: Tests for the PostgreSQL CMDB inventory source.
// ABOUTME: Uses in-memory rows to cover scanning, query failures, and invalid records.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows serves canned rows through the pgx.Rows interface
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(row[i]))
	}
	return nil
}

type fakeDB struct {
	assets  [][]any
	links   [][]any
	history [][]any
	failOn  string
	since   time.Time
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var table string
	switch {
	case strings.Contains(sql, "FROM assets"):
		table = "assets"
	case strings.Contains(sql, "FROM links"):
		table = "links"
	case strings.Contains(sql, "FROM patch_history"):
		table = "patch_history"
		f.since = args[0].(time.Time)
	}
	if table == f.failOn {
		return nil, errors.New("relation does not exist")
	}

	switch table {
	case "assets":
		return &fakeRows{rows: f.assets}, nil
	case "links":
		return &fakeRows{rows: f.links}, nil
	default:
		return &fakeRows{rows: f.history}, nil
	}
}

func hospitalDB() *fakeDB {
	return &fakeDB{
		assets: [][]any{
			{"db1", "Patient DB", "Database", "Clinical", "healthy", 8.2, 0.8, testutil.Float(0.95), []string{"CVE-2025-1"}, "db2"},
			{"db2", "Patient DB replica", "Database", "Clinical", "", 8.2, 0.8, nil, []string{}, ""},
			{"fw1", "Edge", "Firewall", "DMZ", "degraded", 6.0, 0.9, nil, []string{}, ""},
		},
		links: [][]any{
			{"L1", "fw1", "db1", 3.0, 0.1},
			{"", "db1", "db2", 1.0, 0.0},
		},
		history: [][]any{
			{"db1", 40.0},
			{"db1", 55.0},
			{"db2", 35.0},
		},
	}
}

func TestCMDBSourceName(t *testing.T) {
	assert.Equal(t, "postgres-cmdb", newCMDBSource(&fakeDB{}, testutil.NewTestLogger()).Name())
}

func TestCMDBSourceLoadSnapshot(t *testing.T) {
	db := hospitalDB()
	source := newCMDBSource(db, testutil.NewTestLogger())
	source.clock = func() time.Time { return testutil.FixedNow }

	snap, err := source.LoadSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Assets, 3)
	assert.Equal(t, types.DeviceDatabase, snap.Assets[0].Type)
	assert.Equal(t, 0.95, *snap.Assets[0].BusinessImpact)
	assert.Nil(t, snap.Assets[1].BusinessImpact)
	assert.Equal(t, types.StatusHealthy, snap.Assets[1].Status)
	assert.Equal(t, types.ZoneDMZ, snap.Assets[2].Zone)
	assert.Equal(t, "db2", snap.Assets[0].HAPeer)

	require.Len(t, snap.Links, 2)
	assert.Equal(t, "L_db1|db2", snap.Links[1].ID)

	assert.Equal(t, []float64{40, 55}, snap.History["db1"])
	assert.Equal(t, testutil.FixedNow.Add(-DefaultHistoryWindow), db.since)
}

func TestCMDBSourceErrors(t *testing.T) {
	for _, table := range []string{"assets", "links", "patch_history"} {
		t.Run(table, func(t *testing.T) {
			db := hospitalDB()
			db.failOn = table

			_, err := newCMDBSource(db, testutil.NewTestLogger()).LoadSnapshot(context.Background())
			assert.ErrorContains(t, err, "relation does not exist")
		})
	}
}

func TestCMDBSourceRejectsInvalidRows(t *testing.T) {
	db := hospitalDB()
	db.assets[2][2] = "Toaster"

	_, err := newCMDBSource(db, testutil.NewTestLogger()).LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, types.ErrUnknownDeviceType)
}
