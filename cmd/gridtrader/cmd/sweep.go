package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/market"
)

func newSweepCmd(g *globals) *cobra.Command {
	o := &overrides{}
	var (
		axes    []string
		workers int
		rank    string
		top     int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a parameter sweep",
		Long: `Sweep runs the cartesian product of the configured axes over one bar
series, in parallel, and ranks the variants by a report metric.

Axes come from the sweep section of --config or from repeated --axis flags.

Example:
  gridtrader sweep -s GC=F -d data/GC=F.csv \
    --axis grid_distance=25,50,100 --axis max_trades=3,5 --rank return_pct`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, cmd, o)
			if err != nil {
				return err
			}
			if len(axes) > 0 {
				parsed, err := parseAxes(axes)
				if err != nil {
					return err
				}
				cfg.Sweep.Axes = parsed
			}
			if cmd.Flags().Changed("workers") {
				cfg.Sweep.Workers = workers
			}
			if cmd.Flags().Changed("rank") {
				cfg.Sweep.Rank = rank
			}

			variants, err := backtest.Expand(cfg.Backtest, cfg.Axes())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			bars, err := loadBars(ctx, cfg, g.log)
			if err != nil {
				return fmt.Errorf("load bars: %w", err)
			}

			g.log.Info().
				Int("variants", len(variants)).
				Int("workers", cfg.Sweep.Workers).
				Msg("sweep started")
			results, err := backtest.Sweep(ctx, bars, variants, cfg.Sweep.Workers, backtest.WithLogger(g.log))
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			ranked, err := backtest.Best(results, cfg.Sweep.Rank)
			if err != nil {
				return market.Configf("sweep.rank: %v", err)
			}
			failed := make([]backtest.SweepResult, 0)
			for _, r := range results {
				if r.Err != nil {
					failed = append(failed, r)
				}
			}
			if top > 0 && len(ranked) > top {
				ranked = ranked[:top]
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Sweep: %d variants, %d failed, ranked by %s\n\n", len(results), len(failed), cfg.Sweep.Rank)
			backtest.PrintSweep(w, append(ranked, failed...))

			j, err := openJournal(cfg)
			if err != nil {
				return err
			}
			if j == nil {
				return nil
			}
			defer j.Close()

			sub := *cfg
			sub.Journal.MetricsJSON, sub.Journal.OrgPath = "", ""
			for _, r := range results {
				if r.Err != nil {
					continue
				}
				if err := record(j, &sub, r.Outcome, g.log); err != nil {
					return err
				}
			}
			return nil
		},
	}
	o.addData(cmd.Flags())
	o.addGrid(cmd.Flags())
	o.addJournal(cmd.Flags())
	cmd.Flags().StringArrayVar(&axes, "axis", nil, "swept parameter as name=v1,v2,... (repeatable)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel runs (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&rank, "rank", "", "report metric to rank by, e.g. sharpe_ratio")
	cmd.Flags().IntVar(&top, "top", 0, "show only the best N variants")
	return cmd
}

// parseAxes reads name=v1,v2 pairs.
func parseAxes(specs []string) ([]config.AxisConfig, error) {
	out := make([]config.AxisConfig, 0, len(specs))
	for _, arg := range specs {
		name, list, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.TrimSpace(list) == "" {
			return nil, market.Configf("bad --axis %q (want name=v1,v2)", arg)
		}
		ax := config.AxisConfig{Name: name}
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, market.Configf("bad --axis %q value %q", arg, s)
			}
			ax.Values = append(ax.Values, v)
		}
		out = append(out, ax)
	}
	return out, nil
}
