// ABOUTME: Command line client for one-off patch decisions against an inventory file.
// ABOUTME: Provides evaluate, propagate, and demo subcommands with table or JSON output.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/jfeddern/PatchRelay/internal/engine"
	"github.com/jfeddern/PatchRelay/internal/intel"
	"github.com/jfeddern/PatchRelay/internal/propagation"
	"github.com/jfeddern/PatchRelay/internal/providers/local"
	"github.com/jfeddern/PatchRelay/internal/providers/mock"
	"github.com/jfeddern/PatchRelay/internal/render"
	"github.com/jfeddern/PatchRelay/internal/topology"
	"github.com/jfeddern/PatchRelay/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	inventory string
	intelDir  string
	output    string
	timezone  string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "patchctl",
		Short:         "Explainable patch decisions for hospital networks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&g.inventory, "inventory", "i", "", "inventory snapshot (JSON or YAML)")
	root.PersistentFlags().StringVar(&g.intelDir, "intel-dir", "", "directory with KEV, EPSS and business impact feeds")
	root.PersistentFlags().StringVarP(&g.output, "output", "o", string(render.FormatTable), "output format: table or json")
	root.PersistentFlags().StringVar(&g.timezone, "timezone", "", "IANA time zone for maintenance windows (default local)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log loading details to stderr")

	root.AddCommand(newEvaluateCmd(g))
	root.AddCommand(newPropagateCmd(g))
	root.AddCommand(newDemoCmd(g))

	return root
}

func (g *globalOptions) logger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.WarnLevel)
	if g.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func (g *globalOptions) location() (*time.Location, error) {
	if g.timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(g.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --timezone value: %w", err)
	}
	return loc, nil
}

func (g *globalOptions) renderer() (render.Renderer, error) {
	f, err := render.ParseFormat(g.output)
	if err != nil {
		return nil, err
	}
	return render.New(f), nil
}

func (g *globalOptions) loadSnapshot(ctx context.Context, logger *logrus.Logger) (types.Snapshot, error) {
	if g.inventory == "" {
		return types.Snapshot{}, fmt.Errorf("--inventory is required")
	}
	return local.NewLocalProvider(g.inventory, logger).LoadSnapshot(ctx)
}

func (g *globalOptions) loadIntel(ctx context.Context, loc *time.Location, logger *logrus.Logger) (types.Intel, error) {
	if g.intelDir == "" {
		return types.NoIntel(), nil
	}
	return intel.NewDirSource(g.intelDir, loc, logger).LoadIntel(ctx)
}

// parseHistory reads a comma separated list of past patch durations in minutes
func parseHistory(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --history entry %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func newEvaluateCmd(g *globalOptions) *cobra.Command {
	opts := engine.DefaultEvalOptions()
	var (
		assets  []string
		history string
		at      string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Decide what to do about one or more assets",
		Long: "Evaluate runs the full decision pipeline (offline impact, priority, cost of delay,\n" +
			"duration estimate, maintenance window, plan and action) and prints the story.\n" +
			"Without --asset every asset of the inventory is evaluated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			logger := g.logger(cmd)
			loc, err := g.location()
			if err != nil {
				return err
			}
			r, err := g.renderer()
			if err != nil {
				return err
			}
			override, err := parseHistory(history)
			if err != nil {
				return err
			}
			if override != nil && len(assets) != 1 {
				return fmt.Errorf("--history needs exactly one --asset")
			}

			now := time.Now().In(loc)
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value: %w", err)
				}
				now = t.In(loc)
			}

			snap, err := g.loadSnapshot(ctx, logger)
			if err != nil {
				return err
			}
			ti, err := g.loadIntel(ctx, loc, logger)
			if err != nil {
				return err
			}

			graph := topology.NewGraph(snap)
			ids := assets
			if len(ids) == 0 {
				for _, a := range graph.Assets() {
					ids = append(ids, a.ID)
				}
			}

			bundles := make([]*types.Bundle, 0, len(ids))
			for _, id := range ids {
				h := snap.History[id]
				if override != nil {
					h = override
				}
				b, err := engine.EvaluateGraph(graph, id, ti, h, now, opts)
				if err != nil {
					return err
				}
				bundles = append(bundles, b)
			}

			return r.RenderBundles(cmd.OutOrStdout(), bundles)
		},
	}

	cmd.Flags().StringSliceVarP(&assets, "asset", "a", nil, "asset id to evaluate (repeatable)")
	cmd.Flags().StringVar(&history, "history", "", "past patch durations in minutes, e.g. 20,25,40")
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 time instead of now")
	cmd.Flags().IntVar(&opts.DelayDays, "delay-days", opts.DelayDays, "deferral used for cost of delay")
	cmd.Flags().IntVar(&opts.HorizonDays, "horizon-days", opts.HorizonDays, "how far ahead to search for a window")

	return cmd
}

func newPropagateCmd(g *globalOptions) *cobra.Command {
	opts := propagation.DefaultOptions()
	var seeds []string

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Show how compromise risk spreads from seed assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			seeds = append(seeds, args...)
			if len(seeds) == 0 {
				return fmt.Errorf("at least one --seed is required")
			}

			logger := g.logger(cmd)
			r, err := g.renderer()
			if err != nil {
				return err
			}
			snap, err := g.loadSnapshot(ctx, logger)
			if err != nil {
				return err
			}

			graph := topology.NewGraph(snap)
			result := &engine.PropagationResult{Seeds: []string{}}
			for _, id := range seeds {
				if _, ok := graph.Asset(id); ok {
					result.Seeds = append(result.Seeds, id)
				} else {
					result.UnknownSeeds = append(result.UnknownSeeds, id)
				}
			}
			result.Risk = propagation.Compute(graph, result.Seeds, opts)
			result.HotLinks = propagation.HotLinks(result.Risk, graph.Links(), engine.HotLinkThreshold)

			return r.RenderPropagation(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringSliceVarP(&seeds, "seed", "s", nil, "compromised asset id (repeatable)")
	cmd.Flags().IntVar(&opts.Steps, "steps", opts.Steps, "propagation rounds")
	cmd.Flags().Float64Var(&opts.BaseEdgeProb, "base-edge-prob", opts.BaseEdgeProb, "base per-link transmission probability")

	return cmd
}

func newDemoCmd(g *globalOptions) *cobra.Command {
	var (
		size int
		seed uint64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write the generated demo hospital network as an inventory file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger(cmd)
			snap, err := mock.NewMockHospitalProvider(logger).WithSize(size, seed).LoadSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if g.output == string(render.FormatJSON) {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("encode inventory: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().IntVar(&size, "size", mock.DefaultAssetCount, "number of assets")
	cmd.Flags().Uint64Var(&seed, "seed", mock.DefaultSeed, "generator seed")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")

	return cmd
}
