// ABOUTME: Tests for table and JSON rendering.
// ABOUTME: Covers bundle stories, propagation ordering, and format parsing.

package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/types"
)

func testBundles() []*types.Bundle {
	due := time.Date(2025, 3, 19, 14, 0, 0, 0, time.UTC)
	return []*types.Bundle{
		{
			AssetID:     "r1",
			AssetName:   "Core Router",
			Zone:        types.ZoneDMZ,
			Priority:    types.PriorityResult{Priority: types.PriorityEmergency, Score: 0.8655},
			CostOfDelay: types.CostOfDelay{DueAt: due, DaysRemaining: 7},
			Decision: types.Decision{
				Action:   types.ActionBlock,
				Reason:   "SPOF without HA path",
				Required: []string{"Provision/validate HA peer", "Document rollback"},
			},
			Story: types.Story{
				Headline: "Do not patch Core Router yet",
				Action:   "Hold",
				When:     "Due by Wed 19 Mar 2025 14:00 UTC (7 days left).",
				Why:      []string{"The issue is serious (technical score 8/10)."},
				How:      []string{"Follow the standard maintenance steps.", "Validate config backup"},
				Risk:     "Risk of outage is too high right now. Prepare a safer plan first.",
			},
		},
		{
			AssetID:     "ws1",
			Zone:        types.ZoneAdmin,
			Priority:    types.PriorityResult{Priority: types.PriorityLow, Score: 0.3},
			CostOfDelay: types.CostOfDelay{DueAt: due.AddDate(0, 0, 53)},
			Window:      &types.Window{Label: "Wed 12 Mar 2025 18:00 → 22:00 UTC"},
			Decision:    types.Decision{Action: types.ActionSchedule},
			Story:       types.Story{Headline: "Schedule patch for ws1", Action: "Schedule", Risk: "Risk is manageable with the plan shown."},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"table": FormatTable, "JSON": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestTableRendererBundles(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatTable).RenderBundles(&buf, testBundles()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()

	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "PRIORITY") || !strings.Contains(lines[0], "WINDOW") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	// tabwriter aligns the ASSET column
	if strings.Index(lines[0], "ASSET") != strings.Index(lines[1], "r1") {
		t.Errorf("columns not aligned:\n%s\n%s", lines[0], lines[1])
	}

	for _, want := range []string{
		"EMERGENCY",
		"0.87",
		"2025-03-19",
		"Wed 12 Mar 2025 18:00 → 22:00 UTC",
		"--- r1 ---",
		"Do not patch Core Router yet: Hold",
		"  2. Validate config backup",
		"Required first:\n  - Provision/validate HA peer",
		"--- ws1 ---",
		"Risk: Risk is manageable with the plan shown.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out[strings.Index(out, "--- ws1 ---"):], "When:") {
		t.Error("empty when line should be omitted")
	}
}

func TestJSONRendererBundles(t *testing.T) {
	var buf bytes.Buffer
	if err := New(FormatJSON).RenderBundles(&buf, testBundles()[:1]); err != nil {
		t.Fatalf("render: %v", err)
	}

	var got types.Bundle
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("single bundle should be a JSON object: %v", err)
	}
	if got.AssetID != "r1" || got.Decision.Action != types.ActionBlock {
		t.Errorf("unexpected bundle: %+v", got)
	}

	buf.Reset()
	if err := New(FormatJSON).RenderBundles(&buf, testBundles()); err != nil {
		t.Fatalf("render: %v", err)
	}
	var list []types.Bundle
	if err := json.Unmarshal(buf.Bytes(), &list); err != nil || len(list) != 2 {
		t.Fatalf("expected a list of 2 bundles: %v", err)
	}
}

func TestRenderPropagation(t *testing.T) {
	result := &engine.PropagationResult{
		Seeds:        []string{"r1"},
		UnknownSeeds: []string{"ghost"},
		Risk:         map[string]float64{"r1": 0.62, "sw1": 0.31, "db1": 0.31, "ws1": 0.05},
		HotLinks:     []string{"L_r1|sw1"},
	}

	var buf bytes.Buffer
	if err := New(FormatTable).RenderPropagation(&buf, result); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()

	order := []string{"r1", "db1", "sw1", "ws1"}
	last := -1
	for _, id := range order {
		i := strings.Index(out, "\n"+id+" ")
		if i <= last {
			t.Errorf("%s out of order in:\n%s", id, out)
		}
		last = i
	}
	for _, want := range []string{"62%", "Unknown seeds: ghost", "Hot links:\n  L_r1|sw1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := New(FormatJSON).RenderPropagation(&buf, result); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), `"hot_links": [`) {
		t.Errorf("unexpected json: %s", buf.String())
	}
}
