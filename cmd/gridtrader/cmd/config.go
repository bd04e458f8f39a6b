package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage backtest configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  gridtrader config init -o gold.yaml
  gridtrader config validate -f gold.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(w, "\nEdit the file and run with:")
			fmt.Fprintf(w, "  gridtrader backtest -c %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "gridtrader.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = g.cfgFile
			}
			if path == "" {
				return fmt.Errorf("no config file: pass -f or --config")
			}
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			p := cfg.Backtest
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(w, "  Symbol: %s (%s, %s)\n", cfg.Symbol, cfg.Data.Source, cfg.Data.Interval)
			fmt.Fprintf(w, "  Grid: reference %g, distance %g, range %g (%s)\n",
				p.ReferencePrice, p.GridDistance, p.GridRange, p.ReferenceMode)
			fmt.Fprintf(w, "  Account: $%.2f, %d max entries, margin %.2f%%\n",
				p.InitialCash, p.MaxTrades, p.MarginRate*100)
			fmt.Fprintf(w, "  Sweep: %d axes, ranked by %s\n", len(cfg.Sweep.Axes), cfg.Sweep.Rank)
			fmt.Fprintf(w, "  Journal: %s\n", cfg.Journal.Type)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file")

	configCmd.AddCommand(initCmd, validateCmd)
	return configCmd
}
