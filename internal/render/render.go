// ABOUTME: Human and machine output for the patchctl commands.
// ABOUTME: Renders decision bundles and propagation results as aligned tables or JSON.

package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/types"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" or "json"
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table or json)", s)
}

type Renderer interface {
	RenderBundles(w io.Writer, bundles []*types.Bundle) error
	RenderPropagation(w io.Writer, result *engine.PropagationResult) error
}

func New(f Format) Renderer {
	switch f {
	case FormatJSON:
		return &jsonRenderer{}
	default:
		return &tableRenderer{}
	}
}

type jsonRenderer struct{}

func (r *jsonRenderer) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *jsonRenderer) RenderBundles(w io.Writer, bundles []*types.Bundle) error {
	if len(bundles) == 1 {
		return r.encode(w, bundles[0])
	}
	return r.encode(w, bundles)
}

func (r *jsonRenderer) RenderPropagation(w io.Writer, result *engine.PropagationResult) error {
	return r.encode(w, result)
}

type tableRenderer struct{}

func (r *tableRenderer) RenderBundles(w io.Writer, bundles []*types.Bundle) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "PRIORITY\tASSET\tZONE\tSCORE\tACTION\tDUE\tWINDOW\n")
	for _, b := range bundles {
		window := "-"
		if b.Window != nil {
			window = b.Window.Label
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			strings.ToUpper(string(b.Priority.Priority)),
			b.AssetID,
			b.Zone,
			b.Priority.Score,
			b.Decision.Action,
			b.CostOfDelay.DueAt.Format("2006-01-02"),
			window,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, b := range bundles {
		s := b.Story
		fmt.Fprintf(w, "\n--- %s ---\n", b.AssetID)
		fmt.Fprintf(w, "%s: %s\n", s.Headline, s.Action)
		if s.When != "" {
			fmt.Fprintf(w, "When: %s\n", s.When)
		}
		if len(s.Why) > 0 {
			fmt.Fprintf(w, "Why:\n")
			for _, line := range s.Why {
				fmt.Fprintf(w, "  - %s\n", line)
			}
		}
		if len(s.How) > 0 {
			fmt.Fprintf(w, "How:\n")
			for i, step := range s.How {
				fmt.Fprintf(w, "  %d. %s\n", i+1, step)
			}
		}
		if len(b.Decision.Required) > 0 {
			fmt.Fprintf(w, "Required first:\n")
			for _, req := range b.Decision.Required {
				fmt.Fprintf(w, "  - %s\n", req)
			}
		}
		fmt.Fprintf(w, "Risk: %s\n", s.Risk)
	}
	return nil
}

func (r *tableRenderer) RenderPropagation(w io.Writer, result *engine.PropagationResult) error {
	ids := make([]string, 0, len(result.Risk))
	for id := range result.Risk {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if result.Risk[ids[i]] != result.Risk[ids[j]] {
			return result.Risk[ids[i]] > result.Risk[ids[j]]
		}
		return ids[i] < ids[j]
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ASSET\tRISK\n")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%.0f%%\n", id, result.Risk[id]*100)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.UnknownSeeds) > 0 {
		fmt.Fprintf(w, "\nUnknown seeds: %s\n", strings.Join(result.UnknownSeeds, ", "))
	}
	if len(result.HotLinks) > 0 {
		fmt.Fprintf(w, "\nHot links:\n")
		for _, id := range result.HotLinks {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return nil
}
