// Package backtest wires grid construction, signal detection, simulation
// and metrics into a single run, and fans runs out for parameter sweeps.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/indicators"
	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/pkg/id"
	"github.com/rustyeddy/gridtrader/sim"
)

// Outcome is everything a completed run produced.
type Outcome struct {
	RunID       string      `json:"run_id"`
	Params      Params      `json:"params"`
	Reference   float64     `json:"reference"`
	Levels      []float64   `json:"levels"`
	Signals     []bool      `json:"-"`
	SignalCount int         `json:"signal_count"`
	Result      *sim.Result `json:"result"`
	Report      Report      `json:"report"`

	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
}

// Observer is told about every finished run, successful or not.
type Observer interface {
	ObserveRun(o *Outcome, err error)
}

type runOptions struct {
	log      zerolog.Logger
	observer Observer
	now      func() time.Time
	newID    func() string
}

// RunOption tunes Run.
type RunOption func(*runOptions)

// WithLogger sets the run logger.
func WithLogger(l zerolog.Logger) RunOption {
	return func(o *runOptions) { o.log = l }
}

// WithObserver registers an Observer, for example a metrics recorder.
func WithObserver(obs Observer) RunOption {
	return func(o *runOptions) { o.observer = obs }
}

// WithRunID fixes the run identifier instead of minting one.
func WithRunID(runID string) RunOption {
	return func(o *runOptions) { o.newID = func() string { return runID } }
}

// Run executes one backtest over bars. The bars are not modified.
func Run(ctx context.Context, bars []market.Bar, p Params, opts ...RunOption) (*Outcome, error) {
	o := runOptions{
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: id.New,
	}
	for _, opt := range opts {
		opt(&o)
	}

	out, err := run(ctx, bars, p, o)
	if o.observer != nil {
		o.observer.ObserveRun(out, err)
	}
	return out, err
}

func run(ctx context.Context, bars []market.Bar, p Params, o runOptions) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: %w: no bars", market.ErrInsufficientData)
	}

	out := &Outcome{
		RunID:   o.newID(),
		Params:  p,
		Started: o.now(),
	}
	log := o.log.With().Str("run_id", out.RunID).Logger()

	var frame *indicators.Frame
	if p.ReferenceMode != ReferenceStatic || p.StopBasis == sim.StopBasisATR {
		f, err := indicators.Augment(bars, p.ATRPeriod)
		if err != nil {
			return nil, err
		}
		frame = f
	}

	out.Reference = p.ReferencePrice
	if p.ReferenceMode != ReferenceStatic {
		ref, err := indicators.ReferencePrice(bars, frame, p.ReferenceMode)
		if err != nil {
			return nil, err
		}
		out.Reference = ref
		log.Info().
			Str("method", p.ReferenceMode).
			Float64("reference", ref).
			Msg("dynamic reference price")
	}

	levels, err := grid.Build(out.Reference, p.GridDistance, p.GridRange,
		grid.WithMaxLevels(p.MaxGridLevels),
		grid.WithTargetLevels(p.TargetGridLevels),
		grid.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("backtest: %w: grid has no levels", market.ErrInsufficientData)
	}
	out.Levels = levels

	out.Signals = grid.Detect(bars, levels)
	out.SignalCount = grid.Count(out.Signals)

	simOpts := []sim.Option{sim.WithLogger(log)}
	if frame != nil {
		simOpts = append(simOpts, sim.WithATR(frame.ATR))
	}
	engine, err := sim.NewEngine(p.SimConfig(), simOpts...)
	if err != nil {
		return nil, err
	}
	res, err := engine.Run(ctx, bars, out.Signals)
	if err != nil {
		return nil, err
	}
	out.Result = res
	out.Report = ComputeMetricsWithBars(res.Ledger, res.Equity, p.InitialCash, bars)
	out.Elapsed = o.now().Sub(out.Started)

	log.Info().
		Int("bars", len(bars)).
		Int("levels", len(levels)).
		Int("signals", out.SignalCount).
		Int("trades", out.Report.Trades).
		Float64("return_pct", out.Report.ReturnPct).
		Float64("max_drawdown_pct", out.Report.MaxDrawdownPct).
		Dur("elapsed", out.Elapsed).
		Msg("backtest complete")

	return out, nil
}
