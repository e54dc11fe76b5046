// ABOUTME: Parsers for threat intel snapshot files: CISA KEV catalog, EPSS scores, business impact.
// ABOUTME: Each parser reads one feed format into the maps consumed by scoring.

package intel

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const kevDateLayout = "2006-01-02"

// KnownExploitedVulnerabilitiesCatalog is the CISA Catalog of Known Exploited Vulnerabilities
type KnownExploitedVulnerabilitiesCatalog struct {
	Title           string                        `json:"title"`
	CatalogVersion  string                        `json:"catalogVersion"`
	Count           int                           `json:"count"`
	Vulnerabilities []KnownExploitedVulnerability `json:"vulnerabilities"`
}

type KnownExploitedVulnerability struct {
	CVEID   string `json:"cveID"`
	DueDate string `json:"dueDate"`
	// remaining catalog fields are not used for prioritisation
}

// KEV is the parsed known-exploited set with remediation due dates where the catalog has them
type KEV struct {
	Known    map[string]struct{}
	DueDates map[string]time.Time
}

// ParseKEV reads a CISA KEV catalog. Due dates are midnight in loc; nil means UTC.
func ParseKEV(r io.Reader, loc *time.Location) (KEV, error) {
	if loc == nil {
		loc = time.UTC
	}

	var catalog KnownExploitedVulnerabilitiesCatalog
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return KEV{}, fmt.Errorf("unmarshal cisa known exploited vulnerabilities catalog: %w", err)
	}

	kev := KEV{
		Known:    make(map[string]struct{}, len(catalog.Vulnerabilities)),
		DueDates: make(map[string]time.Time),
	}
	for _, v := range catalog.Vulnerabilities {
		cve := strings.TrimSpace(v.CVEID)
		if cve == "" {
			continue
		}
		kev.Known[cve] = struct{}{}
		if v.DueDate == "" {
			continue
		}
		due, err := time.ParseInLocation(kevDateLayout, v.DueDate, loc)
		if err != nil {
			return KEV{}, fmt.Errorf("parse due date for %s: %w", cve, err)
		}
		kev.DueDates[cve] = due
	}
	return kev, nil
}

// ParseEPSS reads an EPSS scores CSV (cve,epss,percentile) with '#' comment lines and a header
func ParseEPSS(r io.Reader) (map[string]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 3

	// skip the header
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]float64{}, nil
		}
		return nil, fmt.Errorf("read epss header: %w", err)
	}

	scores := make(map[string]float64)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		score, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse epss score for %s: %w", rec[0], err)
		}

		// ignore percentile
		scores[rec[0]] = score
	}
	return scores, nil
}

// ParseBusinessImpact reads a YAML map of asset id to business impact in [0,1]
func ParseBusinessImpact(r io.Reader) (map[string]float64, error) {
	impacts := make(map[string]float64)
	if err := yaml.NewDecoder(r).Decode(&impacts); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode business impact: %w", err)
	}
	for id, v := range impacts {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("business impact for %s out of range: %v", id, v)
		}
	}
	return impacts, nil
}
