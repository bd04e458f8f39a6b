package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/gridtrader/market"
)

// SweepResult pairs a parameter variant with its outcome.
type SweepResult struct {
	Index   int
	Params  Params
	Outcome *Outcome
	Err     error
}

// Sweep runs every variant over its own copy of bars, at most workers at a
// time. Results come back in variant order. A failing variant is recorded in
// its SweepResult; only context cancellation stops the sweep.
func Sweep(ctx context.Context, bars []market.Bar, variants []Params, workers int, opts ...RunOption) ([]SweepResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]SweepResult, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range variants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := Run(gctx, market.Clone(bars), p, opts...)
			results[i] = SweepResult{Index: i, Params: p, Outcome: out, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Axis is one swept parameter and the values it takes.
type Axis struct {
	Name   string
	Values []float64
}

// Expand returns the cartesian product of axes applied to base. Axis names
// are the yaml parameter names.
func Expand(base Params, axes []Axis) ([]Params, error) {
	out := []Params{base}
	for _, ax := range axes {
		if len(ax.Values) == 0 {
			continue
		}
		next := make([]Params, 0, len(out)*len(ax.Values))
		for _, p := range out {
			for _, v := range ax.Values {
				q := p
				if err := q.Set(ax.Name, v); err != nil {
					return nil, err
				}
				next = append(next, q)
			}
		}
		out = next
	}
	return out, nil
}

// Set assigns a numeric parameter by its yaml name.
func (p *Params) Set(name string, v float64) error {
	switch name {
	case "grid_distance":
		p.GridDistance = v
	case "grid_range":
		p.GridRange = v
	case "reference_price":
		p.ReferencePrice = v
	case "initial_cash":
		p.InitialCash = v
	case "margin_rate":
		p.MarginRate = v
	case "max_trades":
		p.MaxTrades = int(v)
	case "atr_multiplier":
		p.ATRMultiplier = v
	case "tp_sl_ratio":
		p.TPSLRatio = v
	case "position_size":
		p.PositionSize = v
	case "max_grid_levels":
		p.MaxGridLevels = int(v)
	case "target_grid_levels":
		p.TargetGridLevels = int(v)
	case "commission_rate":
		p.CommissionRate = v
	case "atr_period":
		p.ATRPeriod = int(v)
	case "min_rr":
		p.MinRR = v
	case "max_risk_pct":
		p.MaxRiskPct = v
	default:
		return market.Configf("unknown sweep parameter %q", name)
	}
	return nil
}

// Best returns the successful results ordered by descending key.
func Best(results []SweepResult, key string) ([]SweepResult, error) {
	var ok []SweepResult
	for _, r := range results {
		if r.Err == nil && r.Outcome != nil {
			if _, found := r.Outcome.Report.Map()[key]; !found {
				return nil, fmt.Errorf("unknown metric %q", key)
			}
			ok = append(ok, r)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Outcome.Report.Map()[key] > ok[j].Outcome.Report.Map()[key]
	})
	return ok, nil
}
