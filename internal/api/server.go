// Package api serves grid previews and backtests over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/journal"
)

// RunStore lists persisted runs.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]journal.RunRecord, error)
	GetRun(ctx context.Context, runID string) (journal.RunRecord, error)
}

type Server struct {
	log      zerolog.Logger
	observer backtest.Observer
	gatherer prometheus.Gatherer
	journal  journal.Journal
	runs     RunStore
	origins  []string
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.log = l } }

// WithObserver reports every run, typically to a telemetry.Recorder.
func WithObserver(o backtest.Observer) Option { return func(s *Server) { s.observer = o } }

// WithGatherer exposes g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

// WithJournal persists every successful backtest.
func WithJournal(j journal.Journal) Option { return func(s *Server) { s.journal = j } }

// WithRunStore enables GET /v1/runs.
func WithRunStore(r RunStore) Option { return func(s *Server) { s.runs = r } }

// WithAllowedOrigins sets the CORS origins. Empty allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func New(opts ...Option) *Server {
	s := &Server{
		log:      zerolog.Nop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.log), requestLogger(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.GET("/assets", s.listAssets)
		v1.POST("/grid", s.previewGrid)
		v1.POST("/backtests", s.runBacktest)
		if s.runs != nil {
			v1.GET("/runs", s.listRuns)
			v1.GET("/runs/:id", s.getRun)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "NOT_FOUND", Message: "Not found"}})
	})
	return r
}

// Handler wraps the router with CORS.
func (s *Server) Handler() http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}
	if len(s.origins) > 0 {
		opts.AllowedOrigins = s.origins
	} else {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.New(opts).Handler(s.Router())
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("api shutting down")
	return srv.Shutdown(shutdownCtx)
}
