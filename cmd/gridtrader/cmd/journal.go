package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/journal"
)

func newJournalCmd(g *globals) *cobra.Command {
	var dbPath string
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the SQLite run journal",
		Long: `Query and display backtest runs and trades from the SQLite journal.

Subcommands:
  runs   - List recent runs
  run    - Print one run as an org-mode summary
  trades - List the trades of a run
  trade  - Print one trade
  today  - List trades closed today
  day    - List trades closed on a specific day

Examples:
  gridtrader journal runs --limit 10
  gridtrader journal run 01HV...
  gridtrader journal day 2024-01-15`,
	}
	journalCmd.PersistentFlags().StringVar(&dbPath, "db", "./gridtrader.db", "path to SQLite journal DB")

	open := func() (*journal.SQLite, error) {
		j, err := journal.NewSQLite(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSYMBOL\tDISTANCE\tTRADES\tRETURN%\tMAXDD%\tSHARPE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%d\t%.2f\t%.2f\t%.2f\n",
					r.RunID, r.Created.Format(time.DateTime), r.Instrument, r.GridDistance,
					r.Trades, r.ReturnPct, r.MaxDDPct, r.Sharpe)
			}
			return tw.Flush()
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")

	runCmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Print a run as an org-mode summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			org, err := j.ExportRunOrg(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), org)
			return nil
		},
	}

	tradesCmd := &cobra.Command{
		Use:   "trades <run-id>",
		Short: "List the trades of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListTradesByRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
			return nil
		},
	}

	tradeCmd := &cobra.Command{
		Use:   "trade <run-id> <trade-id>",
		Short: "Get details of a specific trade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			rec, err := j.GetTrade(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("get trade: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
			return nil
		},
	}

	closedOn := func(cmd *cobra.Command, day string) error {
		start, end, err := dayBounds(time.Local, day)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		j, err := open()
		if err != nil {
			return err
		}
		defer j.Close()

		recs, err := j.ListTradesClosedBetween(cmd.Context(), start, end)
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
		return nil
	}

	todayCmd := &cobra.Command{
		Use:   "today",
		Short: "List trades closed today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return closedOn(cmd, time.Now().Format(time.DateOnly))
		},
	}

	dayCmd := &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List trades closed on a specific day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return closedOn(cmd, args[0])
		},
	}

	journalCmd.AddCommand(runsCmd, runCmd, tradesCmd, tradeCmd, todayCmd, dayCmd)
	return journalCmd
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
