package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market"
)

func (s *Server) listAssets(c *gin.Context) {
	assets, err := market.Assets()
	if err != nil {
		s.fail(c, err)
		return
	}
	if class := c.Query("class"); class != "" {
		filtered := assets[:0:0]
		for _, a := range assets {
			if a.Class == class {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// previewGrid handles POST /v1/grid
func (s *Server) previewGrid(c *gin.Context) {
	var req GridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	opts := []grid.Option{grid.WithLogger(s.log)}
	if req.MaxLevels > 0 {
		opts = append(opts, grid.WithMaxLevels(req.MaxLevels))
	}
	if req.TargetLevels > 0 {
		opts = append(opts, grid.WithTargetLevels(req.TargetLevels))
	}
	levels, err := grid.Build(req.Reference, req.Spacing, req.Range, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := GridResponse{Levels: levels, Count: len(levels)}
	if len(req.Bars) > 0 {
		if err := market.Validate(req.Bars); err != nil {
			s.fail(c, err)
			return
		}
		for i, hit := range grid.Detect(req.Bars, levels) {
			if hit {
				resp.Signals = append(resp.Signals, i)
			}
		}
		resp.SignalCount = len(resp.Signals)
	}
	c.JSON(http.StatusOK, resp)
}

// runBacktest handles POST /v1/backtests
func (s *Server) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p := req.Params
	if a, ok := market.LookupAsset(req.Symbol); ok {
		if p.ReferencePrice == 0 {
			p.ReferencePrice = a.Reference
		}
		if p.GridDistance == 0 {
			p.GridDistance = a.GridDistance
		}
		if p.GridRange == 0 {
			p.GridRange = a.GridRange
		}
	}
	if err := p.SetDefaults(); err != nil {
		s.fail(c, err)
		return
	}

	opts := []backtest.RunOption{backtest.WithLogger(s.log)}
	if s.observer != nil {
		opts = append(opts, backtest.WithObserver(s.observer))
	}
	out, err := backtest.Run(c.Request.Context(), req.Bars, p, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}

	if s.journal != nil {
		rec, trades, equity, err := journal.FromOutcome(out, journal.Meta{Instrument: req.Symbol, Dataset: "api"})
		if err == nil {
			err = journal.WriteOutcome(s.journal, rec, trades, equity)
		}
		if err != nil {
			s.log.Error().Err(err).Str("run_id", out.RunID).Msg("journal write failed")
		}
	}

	resp := BacktestResponse{
		RunID:      out.RunID,
		Symbol:     req.Symbol,
		Params:     out.Params,
		Reference:  out.Reference,
		Levels:     len(out.Levels),
		Signals:    out.SignalCount,
		Entries:    out.Result.Entries,
		Rejections: out.Result.Rejections,
		Report:     out.Report,
		Metrics:    out.Report.Map(),
	}
	if req.IncludeTrades {
		resp.Trades = out.Result.Ledger
	}
	if req.IncludeEquity {
		resp.Equity = out.Result.Equity
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
	})
}

// fail maps error kinds to status codes.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, market.ErrConfiguration):
		status, code = http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, market.ErrDataIntegrity):
		status, code = http.StatusUnprocessableEntity, "DATA_INTEGRITY"
	case errors.Is(err, market.ErrInsufficientData), errors.Is(err, market.ErrNoData):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_DATA"
	case errors.Is(err, journal.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: err.Error()}})
}
