package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/internal/dukascopy"
	"github.com/rustyeddy/gridtrader/internal/oanda"
	"github.com/rustyeddy/gridtrader/market"
)

func newFetchCmd(g *globals) *cobra.Command {
	var (
		provider string
		symbol   string
		interval string
		from     string
		to       string
		count    int
		out      string
		env      string
		tokenEnv string
		cacheDir string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download bars to CSV",
		Long: `Fetch downloads bars and writes them as a CSV suitable for backtest and
sweep.

Providers:
  oanda     - complete mid-price candles; needs a token in the variable
              named by --token-env. With --count it writes a single page
              in OANDA's candle layout instead.
  dukascopy - hourly tick files aggregated to mid-price bars

Examples:
  gridtrader fetch -s EURUSD=X -i 1h --from 2024-01-01 --to 2025-01-01 -o data/EURUSD=X.csv
  gridtrader fetch --provider dukascopy -s EURUSD --from 2024-01-01 --to 2024-02-01 --cache-dir ./dukas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				start, end time.Time
				err        error
			)
			if from != "" {
				if start, err = market.ParseTime(from); err != nil {
					return fmt.Errorf("bad --from: %w", err)
				}
			}
			if to != "" {
				if end, err = market.ParseTime(to); err != nil {
					return fmt.Errorf("bad --to: %w", err)
				}
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			var src market.Source
			switch provider {
			case "oanda":
				token := os.Getenv(tokenEnv)
				if token == "" {
					return fmt.Errorf("missing token: set %s", tokenEnv)
				}
				client, err := oanda.NewClient(env, token)
				if err != nil {
					return err
				}
				client.Log = &g.log
				if count > 0 {
					return fetchPage(ctx, client, symbol, interval, start, count, out, w)
				}
				src = client
			case "dukascopy":
				d := dukascopy.New(cacheDir)
				d.Log = g.log
				src = d
			default:
				return fmt.Errorf("unknown --provider %q (use oanda or dukascopy)", provider)
			}

			if start.IsZero() {
				return fmt.Errorf("--from is required")
			}
			bars, err := src.Fetch(ctx, symbol, start, end, interval)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			if err := market.WriteCSV(f, bars); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			fmt.Fprintf(w, "Downloaded %d bars of %s to %s\n", len(bars), symbol, out)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&provider, "provider", "p", "oanda", "data provider: oanda or dukascopy")
	fl.StringVarP(&symbol, "symbol", "s", "EURUSD=X", "symbol, e.g. EURUSD=X, EUR_USD or EURUSD")
	fl.StringVarP(&interval, "interval", "i", "1h", "bar interval, e.g. 15m, 1h, 1d")
	fl.StringVar(&from, "from", "", "start time (RFC3339 or YYYY-MM-DD)")
	fl.StringVar(&to, "to", "", "end time, exclusive (default now)")
	fl.IntVar(&count, "count", 0, "oanda: download a single page of this many candles")
	fl.StringVarP(&out, "out", "o", "bars.csv", "output CSV path")
	fl.StringVar(&env, "env", "practice", "oanda: environment, practice or live")
	fl.StringVar(&tokenEnv, "token-env", "OANDA_TOKEN", "oanda: environment variable holding the API token")
	fl.StringVar(&cacheDir, "cache-dir", "", "dukascopy: keep downloaded hour files here")
	return cmd
}

// fetchPage writes one page of raw OANDA candles.
func fetchPage(ctx context.Context, client *oanda.Client, symbol, interval string, start time.Time, count int, out string, w io.Writer) error {
	gran, err := market.Granularity(interval)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	n, err := client.DownloadCandlesToCSV(ctx, oanda.CandlesOptions{
		Instrument:  oanda.Instrument(symbol),
		Granularity: gran,
		Price:       "M",
		From:        start,
		Count:       count,
	}, f)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	fmt.Fprintf(w, "Downloaded %d candles to %s\n", n, out)
	return nil
}
