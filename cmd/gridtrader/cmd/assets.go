package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/market"
)

func newAssetsCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List the built-in asset grid defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := market.Assets()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tCLASS\tNAME\tREFERENCE\tDISTANCE\tRANGE")
			for _, a := range assets {
				if class != "" && a.Class != class {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%g\n",
					a.Symbol, a.Class, a.Name, a.Reference, a.GridDistance, a.GridRange)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "only list this class (stock, etf, crypto, forex, commodity)")
	return cmd
}
