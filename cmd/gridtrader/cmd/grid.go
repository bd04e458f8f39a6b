package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market"
)

func newGridCmd(g *globals) *cobra.Command {
	var (
		symbol       string
		reference    float64
		distance     float64
		halfRange    float64
		maxLevels    int
		targetLevels int
		dataPath     string
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the grid levels for a reference price",
		Long: `Grid prints the levels a backtest would use. With --data it also counts
the bars whose range touches a level.

Examples:
  gridtrader grid --reference 100 --grid-distance 2 --grid-range 20
  gridtrader grid -s EURUSD=X -d data/EURUSD=X.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a, ok := market.LookupAsset(symbol); ok {
				if reference == 0 {
					reference = a.Reference
				}
				if distance == 0 {
					distance = a.GridDistance
				}
				if halfRange == 0 {
					halfRange = a.GridRange
				}
			}

			levels, err := grid.Build(reference, distance, halfRange,
				grid.WithMaxLevels(maxLevels),
				grid.WithTargetLevels(targetLevels),
				grid.WithLogger(g.log),
			)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Grid: %d levels around %g (spacing %g, range ±%g)\n", len(levels), reference, distance, halfRange)
			for _, l := range levels {
				fmt.Fprintf(w, "  %g\n", l)
			}

			if dataPath == "" {
				return nil
			}
			bars, err := market.CSVSource{Path: dataPath}.Fetch(cmd.Context(), symbol, time.Time{}, time.Time{}, "")
			if err != nil {
				return err
			}
			if err := market.Validate(bars); err != nil {
				return err
			}
			n := grid.Count(grid.Detect(bars, levels))
			fmt.Fprintf(w, "Signals: %d of %d bars\n", n, len(bars))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&symbol, "symbol", "s", "", "fill unset grid values from this asset")
	f.Float64Var(&reference, "reference", 0, "grid reference price")
	f.Float64Var(&distance, "grid-distance", 0, "spacing between levels")
	f.Float64Var(&halfRange, "grid-range", 0, "half-width of the grid")
	f.IntVar(&maxLevels, "max-levels", grid.DefaultMaxLevels, "down-sample above this many levels")
	f.IntVar(&targetLevels, "target-levels", grid.DefaultTargetLevels, "approximate level count after down-sampling")
	f.StringVarP(&dataPath, "data", "d", "", "bar CSV to count signals against")
	return cmd
}
