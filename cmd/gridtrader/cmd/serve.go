package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/gridtrader/config"
	"github.com/rustyeddy/gridtrader/internal/api"
	"github.com/rustyeddy/gridtrader/internal/telemetry"
	"github.com/rustyeddy/gridtrader/journal"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr    string
		dbPath  string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve grid previews and backtests over HTTP",
		Long: `Serve starts the HTTP API:

  GET  /health
  GET  /metrics
  GET  /v1/assets
  POST /v1/grid
  POST /v1/backtests
  GET  /v1/runs, /v1/runs/:id   (with --db)

Example:
  gridtrader serve --addr :8080 --db gridtrader.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := config.ServerConfig{}
			if g.cfgFile != "" {
				cfg, err := config.LoadFromFile(g.cfgFile)
				if err != nil {
					return err
				}
				srv = cfg.Server
				if dbPath == "" && cfg.Journal.Type == config.JournalSQLite {
					dbPath = cfg.Journal.DBPath
				}
			}
			if cmd.Flags().Changed("addr") || srv.Addr == "" {
				srv.Addr = addr
			}
			if len(origins) > 0 {
				srv.AllowedOrigins = origins
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			opts := []api.Option{
				api.WithLogger(g.log),
				api.WithObserver(telemetry.New(reg)),
				api.WithGatherer(reg),
				api.WithAllowedOrigins(srv.AllowedOrigins...),
			}
			if dbPath != "" {
				j, err := journal.NewSQLite(dbPath)
				if err != nil {
					return err
				}
				defer j.Close()
				opts = append(opts, api.WithJournal(j), api.WithRunStore(j))
			}

			return api.New(opts...).ListenAndServe(cmd.Context(), srv.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "journal every run to this SQLite DB and serve /v1/runs")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins (default any)")
	return cmd
}
