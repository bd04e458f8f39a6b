package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/internal/logging"
)

// globals carries the persistent flags and the logger built from them.
type globals struct {
	cfgFile   string
	logLevel  string
	logFormat string

	log zerolog.Logger
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "gridtrader",
		Short: "Grid trading backtester",
		Long: `Gridtrader backtests a hedged grid strategy over OHLC bars.

It provides tools for:
  - Building price grids and detecting level crossings
  - Backtesting and sweeping grid parameters
  - Downloading candles from OANDA
  - Journaling runs to CSV or SQLite
  - Serving backtests over HTTP`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logging.Config{
				Level:  g.logLevel,
				Format: g.logFormat,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			g.log = l
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.cfgFile, "config", "c", "", "config file (YAML or JSON)")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "console", "log format (console or json)")

	root.AddCommand(
		newBacktestCmd(g),
		newSweepCmd(g),
		newGridCmd(g),
		newFetchCmd(g),
		newConfigCmd(g),
		newJournalCmd(g),
		newAssetsCmd(),
		newServeCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
