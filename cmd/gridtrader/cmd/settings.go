package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/internal/dukascopy"
	"github.com/rustyeddy/gridtrader/internal/oanda"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market"
)

// overrides are command line values that replace config file settings when
// the flag is given.
type overrides struct {
	symbol   string
	source   string
	path     string
	interval string
	start    string
	end      string

	reference     float64
	distance      float64
	gridRange     float64
	referenceMode string
	maxTrades     int
	stopBasis     string
	initialCash   float64
	positionSize  float64

	journalType string
	journalDir  string
	dbPath      string
	metricsJSON string
	orgPath     string
}

func (o *overrides) addData(fs *pflag.FlagSet) {
	fs.StringVarP(&o.symbol, "symbol", "s", "", "symbol, e.g. GC=F or EURUSD=X")
	fs.StringVar(&o.source, "source", "", "bar source: csv, oanda or dukascopy")
	fs.StringVarP(&o.path, "data", "d", "", "path to the bar CSV")
	fs.StringVarP(&o.interval, "interval", "i", "", "bar interval, e.g. 1h, 4h, 1d")
	fs.StringVar(&o.start, "start", "", "first bar time (RFC3339 or YYYY-MM-DD)")
	fs.StringVar(&o.end, "end", "", "end of the window, exclusive")
}

func (o *overrides) addGrid(fs *pflag.FlagSet) {
	fs.Float64Var(&o.reference, "reference", 0, "grid reference price")
	fs.Float64Var(&o.distance, "grid-distance", 0, "spacing between grid levels")
	fs.Float64Var(&o.gridRange, "grid-range", 0, "half-width of the grid")
	fs.StringVar(&o.referenceMode, "reference-mode", "", "static, ma_20, ma_50, bb_middle, hlc3 or close")
	fs.IntVar(&o.maxTrades, "max-trades", 0, "maximum concurrent hedge entries")
	fs.StringVar(&o.stopBasis, "stop-basis", "", "stop distance basis: grid or atr")
	fs.Float64Var(&o.initialCash, "cash", 0, "starting cash")
	fs.Float64Var(&o.positionSize, "size", 0, "units per leg")
}

func (o *overrides) addJournal(fs *pflag.FlagSet) {
	fs.StringVar(&o.journalType, "journal", "", "journal type: none, csv or sqlite")
	fs.StringVar(&o.journalDir, "journal-dir", "", "directory for the CSV journal")
	fs.StringVar(&o.dbPath, "db", "", "path to the SQLite journal")
	fs.StringVar(&o.metricsJSON, "metrics-json", "", "write the metrics map to this JSON file")
	fs.StringVar(&o.orgPath, "org", "", "write an org-mode run summary to this file")
}

// apply copies every flag the user set into cfg.
func (o *overrides) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			fn()
		}
	}
	set("symbol", func() { cfg.Symbol = o.symbol })
	set("source", func() { cfg.Data.Source = o.source })
	set("data", func() { cfg.Data.Path = o.path })
	set("interval", func() { cfg.Data.Interval = o.interval })
	set("start", func() { cfg.Data.Start = o.start })
	set("end", func() { cfg.Data.End = o.end })

	p := &cfg.Backtest
	set("reference", func() { p.ReferencePrice = o.reference })
	set("grid-distance", func() { p.GridDistance = o.distance })
	set("grid-range", func() { p.GridRange = o.gridRange })
	set("reference-mode", func() { p.ReferenceMode = o.referenceMode })
	set("max-trades", func() { p.MaxTrades = o.maxTrades })
	set("stop-basis", func() { p.StopBasis = o.stopBasis })
	set("cash", func() { p.InitialCash = o.initialCash })
	set("size", func() { p.PositionSize = o.positionSize })

	set("journal", func() { cfg.Journal.Type = o.journalType })
	set("journal-dir", func() { cfg.Journal.Dir = o.journalDir })
	set("db", func() { cfg.Journal.DBPath = o.dbPath })
	set("metrics-json", func() { cfg.Journal.MetricsJSON = o.metricsJSON })
	set("org", func() { cfg.Journal.OrgPath = o.orgPath })
}

// loadConfig reads the --config file, if any, layers the flags on top and
// validates the result.
func loadConfig(g *globals, cmd *cobra.Command, o *overrides) (*config.Config, error) {
	cfg := &config.Config{}
	if g.cfgFile != "" {
		loaded, err := config.LoadFromFile(g.cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	o.apply(cmd.Flags(), cfg)

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// source picks the bar source named by the config.
func source(cfg *config.Config, log zerolog.Logger) (market.Source, error) {
	switch cfg.Data.Source {
	case config.SourceOANDA:
		token := os.Getenv(cfg.Data.OANDA.TokenEnv)
		if token == "" {
			return nil, market.Configf("missing OANDA token: set %s", cfg.Data.OANDA.TokenEnv)
		}
		c, err := oanda.NewClient(cfg.Data.OANDA.Env, token)
		if err != nil {
			return nil, market.Configf("%v", err)
		}
		c.Log = &log
		return c, nil
	case config.SourceDukascopy:
		d := dukascopy.New(cfg.Data.Dukascopy.CacheDir)
		d.Workers = cfg.Data.Dukascopy.Workers
		d.Log = log
		return d, nil
	default:
		return market.CSVSource{Path: cfg.Data.Path}, nil
	}
}

func loadBars(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]market.Bar, error) {
	src, err := source(cfg, log)
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	bars, err := src.Fetch(ctx, cfg.Symbol, start, end, cfg.Data.Interval)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("symbol", cfg.Symbol).
		Str("source", cfg.Data.Source).
		Int("bars", len(bars)).
		Time("first", bars[0].Time).
		Time("last", bars[len(bars)-1].Time).
		Msg("bars loaded")
	return bars, nil
}

// openJournal returns nil when journaling is off.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case config.JournalCSV:
		j, err := journal.NewCSV(cfg.Journal.Dir)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case config.JournalSQLite:
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	default:
		return nil, nil
	}
}

func meta(cfg *config.Config) journal.Meta {
	dataset := cfg.Data.Path
	switch cfg.Data.Source {
	case config.SourceOANDA:
		dataset = "oanda:" + cfg.Data.OANDA.Env
	case config.SourceDukascopy:
		dataset = "dukascopy"
	}
	return journal.Meta{
		Instrument: cfg.Symbol,
		Interval:   cfg.Data.Interval,
		Dataset:    dataset,
	}
}

// record writes one outcome to the journal and the optional metrics and org
// files.
func record(j journal.Journal, cfg *config.Config, out *backtest.Outcome, log zerolog.Logger) error {
	rec, trades, equity, err := journal.FromOutcome(out, meta(cfg))
	if err != nil {
		return err
	}
	if j != nil {
		if err := journal.WriteOutcome(j, rec, trades, equity); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		log.Info().
			Str("run_id", rec.RunID).
			Str("journal", cfg.Journal.Type).
			Int("trades", len(trades)).
			Msg("run journaled")
	}
	if path := cfg.Journal.MetricsJSON; path != "" {
		if err := journal.WriteMetricsJSON(path, out.Report.Map()); err != nil {
			return fmt.Errorf("metrics json: %w", err)
		}
	}
	if path := cfg.Journal.OrgPath; path != "" {
		if err := rec.WriteOrg(path); err != nil {
			return fmt.Errorf("org summary: %w", err)
		}
	}
	return nil
}
