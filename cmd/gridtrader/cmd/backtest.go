package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/backtest"
)

func newBacktestCmd(g *globals) *cobra.Command {
	o := &overrides{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one grid backtest",
		Long: `Backtest builds a grid around the reference price, flags every bar that
touches a level, and opens a hedged short/long pair at each flagged close.

Settings come from --config, with flags taking precedence. Grid fields left
at zero are filled from the built-in asset table.

Examples:
  gridtrader backtest -s GC=F -d data/GC=F.csv
  gridtrader backtest -c gold.yaml --grid-distance 25 --journal sqlite --db runs.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, cmd, o)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			bars, err := loadBars(ctx, cfg, g.log)
			if err != nil {
				return fmt.Errorf("load bars: %w", err)
			}

			out, err := backtest.Run(ctx, bars, cfg.Backtest, backtest.WithLogger(g.log))
			if err != nil {
				return fmt.Errorf("backtest: %w", err)
			}
			backtest.PrintSummary(cmd.OutOrStdout(), cfg.Symbol, out)

			j, err := openJournal(cfg)
			if err != nil {
				return err
			}
			if j != nil {
				defer j.Close()
			}
			return record(j, cfg, out, g.log)
		},
	}
	o.addData(cmd.Flags())
	o.addGrid(cmd.Flags())
	o.addJournal(cmd.Flags())
	return cmd
}
