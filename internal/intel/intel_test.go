// ABOUTME: Tests for threat intel feed parsing and the directory source.
// ABOUTME: Covers KEV, EPSS, and business impact files plus partial and broken directories.

package intel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jfeddern/PatchRelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kevFixture = `{
  "title": "CISA Catalog of Known Exploited Vulnerabilities",
  "catalogVersion": "2025.03.11",
  "count": 3,
  "vulnerabilities": [
    {"cveID": "CVE-2024-3400", "vendorProject": "Palo Alto Networks", "dueDate": "2024-04-19"},
    {"cveID": "CVE-2023-4966", "dueDate": "2023-11-08"},
    {"cveID": "CVE-2021-44228"}
  ]
}`

const epssFixture = `#model_version:v2023.03.01,score_date:2025-03-11T00:00:00+0000
cve,epss,percentile
CVE-2024-3400,0.94353,0.99930
CVE-2023-4966,0.97003,0.99988
CVE-2019-0001,0.00244,0.63120
`

const impactFixture = `ehr1: 0.95
ws1: 0.2
`

func TestParseKEV(t *testing.T) {
	kev, err := ParseKEV(strings.NewReader(kevFixture), nil)
	require.NoError(t, err)

	assert.Len(t, kev.Known, 3)
	assert.Contains(t, kev.Known, "CVE-2021-44228")
	assert.Len(t, kev.DueDates, 2)
	assert.Equal(t, time.Date(2024, time.April, 19, 0, 0, 0, 0, time.UTC), kev.DueDates["CVE-2024-3400"])
}

func TestParseKEVErrors(t *testing.T) {
	_, err := ParseKEV(strings.NewReader("{not json"), nil)
	assert.Error(t, err)

	_, err = ParseKEV(strings.NewReader(`{"vulnerabilities":[{"cveID":"CVE-1","dueDate":"19/04/2024"}]}`), nil)
	assert.ErrorContains(t, err, "CVE-1")
}

func TestParseEPSS(t *testing.T) {
	scores, err := ParseEPSS(strings.NewReader(epssFixture))
	require.NoError(t, err)

	assert.Len(t, scores, 3)
	assert.InDelta(t, 0.94353, scores["CVE-2024-3400"], 1e-9)

	empty, err := ParseEPSS(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseEPSS(strings.NewReader("cve,epss,percentile\nCVE-1,high,0.5\n"))
	assert.ErrorContains(t, err, "CVE-1")

	_, err = ParseEPSS(strings.NewReader("cve,epss,percentile\nCVE-1,0.5\n"))
	assert.Error(t, err)
}

func TestParseBusinessImpact(t *testing.T) {
	impacts, err := ParseBusinessImpact(strings.NewReader(impactFixture))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ehr1": 0.95, "ws1": 0.2}, impacts)

	_, err = ParseBusinessImpact(strings.NewReader("ehr1: 1.5\n"))
	assert.ErrorContains(t, err, "out of range")

	empty, err := ParseBusinessImpact(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestDirSourceLoadsPresentFeeds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, KEVFilename, kevFixture)
	writeFile(t, dir, EPSSFilename, epssFixture)

	src := NewDirSource(dir, time.UTC, testutil.NewTestLogger())
	assert.Equal(t, "intel-dir:"+dir, src.Name())

	intel, err := src.LoadIntel(context.Background())
	require.NoError(t, err)

	data, ok := intel.Data()
	require.True(t, ok)
	assert.Len(t, data.KnownExploited, 3)
	assert.Len(t, data.ExploitProbability, 3)
	assert.Nil(t, data.BusinessImpact)
}

func TestDirSourceEmptyDirectoryIsNoIntel(t *testing.T) {
	intel, err := NewDirSource(t.TempDir(), nil, testutil.NewTestLogger()).LoadIntel(context.Background())
	require.NoError(t, err)
	assert.False(t, intel.Provided())
}

func TestDirSourceCollectsEveryParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, KEVFilename, "{broken")
	writeFile(t, dir, BusinessImpactFilename, "ehr1: 7\n")

	intel, err := NewDirSource(dir, nil, testutil.NewTestLogger()).LoadIntel(context.Background())
	require.Error(t, err)
	assert.False(t, intel.Provided())
	assert.Contains(t, err.Error(), KEVFilename)
	assert.Contains(t, err.Error(), BusinessImpactFilename)
}

func TestDirSourceHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, EPSSFilename, epssFixture)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirSource(dir, nil, testutil.NewTestLogger()).LoadIntel(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
