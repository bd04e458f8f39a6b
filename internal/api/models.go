package api

import (
	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/sim"
)

// GridRequest previews a ladder and, when bars are given, the bars that
// touch it.
type GridRequest struct {
	Reference    float64      `json:"reference"`
	Spacing      float64      `json:"spacing" binding:"required,gt=0"`
	Range        float64      `json:"range" binding:"required,gt=0"`
	MaxLevels    int          `json:"max_levels,omitempty" binding:"omitempty,gt=0"`
	TargetLevels int          `json:"target_levels,omitempty" binding:"omitempty,gt=0"`
	Bars         []market.Bar `json:"bars,omitempty"`
}

type GridResponse struct {
	Levels      []float64 `json:"levels"`
	Count       int       `json:"count"`
	Signals     []int     `json:"signals,omitempty"` // bar indices
	SignalCount int       `json:"signal_count"`
}

// BacktestRequest runs one backtest over the supplied bars. Zero grid fields
// are filled from the symbol's asset defaults, the rest from Params defaults.
type BacktestRequest struct {
	Symbol        string          `json:"symbol,omitempty"`
	Params        backtest.Params `json:"params"`
	Bars          []market.Bar    `json:"bars" binding:"required,min=1"`
	IncludeTrades bool            `json:"include_trades,omitempty"`
	IncludeEquity bool            `json:"include_equity,omitempty"`
}

type BacktestResponse struct {
	RunID      string             `json:"run_id"`
	Symbol     string             `json:"symbol,omitempty"`
	Params     backtest.Params    `json:"params"`
	Reference  float64            `json:"reference"`
	Levels     int                `json:"levels"`
	Signals    int                `json:"signals"`
	Entries    int                `json:"entries"`
	Rejections sim.Rejections     `json:"rejections"`
	Report     backtest.Report    `json:"report"`
	Metrics    map[string]float64 `json:"metrics"`
	Trades     []sim.Position     `json:"trades,omitempty"`
	Equity     []sim.EquityPoint  `json:"equity,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
