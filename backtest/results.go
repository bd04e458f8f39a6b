package backtest

import (
	"fmt"
	"io"
	"time"
)

const rule = "--------------------------------------------------"

// PrintSummary writes a human-readable report of a run.
func PrintSummary(w io.Writer, symbol string, o *Outcome) {
	r := o.Report
	p := o.Params

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Grid Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", o.RunID)
	if symbol != "" {
		fmt.Fprintf(w, "Symbol:        %s\n", symbol)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Grid")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Reference:     %g (%s)\n", o.Reference, p.ReferenceMode)
	fmt.Fprintf(w, "Distance:      %g\n", p.GridDistance)
	fmt.Fprintf(w, "Range:         ±%g\n", p.GridRange)
	fmt.Fprintf(w, "Levels:        %d\n", len(o.Levels))
	fmt.Fprintf(w, "Signals:       %d\n", o.SignalCount)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRatePct)
	fmt.Fprintf(w, "Best Trade:    %.2f%%\n", r.BestTradePct)
	fmt.Fprintf(w, "Worst Trade:   %.2f%%\n", r.WorstTradePct)
	fmt.Fprintf(w, "Avg Trade:     %.2f%%\n", r.AvgTradePct)
	fmt.Fprintf(w, "Avg Holding:   %s\n", r.AvgHolding)
	fmt.Fprintf(w, "Exits:         %d stop / %d target / %d end\n", r.StopExits, r.TargetExits, r.EndOfDataExits)
	if res := o.Result; res != nil && res.Rejections.Total() > 0 {
		fmt.Fprintf(w, "Rejected:      %d capacity / %d margin / %d policy\n",
			res.Rejections.Capacity, res.Rejections.Margin, res.Rejections.Policy)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Start Balance: %.2f\n", r.InitialCash)
	fmt.Fprintf(w, "End Equity:    %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.FinalEquity-r.InitialCash)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	fmt.Fprintf(w, "Buy & Hold:    %.2f%%\n", r.BuyHoldReturnPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Volatility:    %.2f%%\n", r.VolatilityAnnPct)

	if r.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.ProfitFactor)
	}
	if r.CalmarRatio != 0 {
		fmt.Fprintf(w, "Calmar:        %.2f\n", r.CalmarRatio)
	}

	fmt.Fprintln(w)
}

// PrintSweep writes one line per sweep result.
func PrintSweep(w io.Writer, results []SweepResult) {
	fmt.Fprintf(w, "%-4s %10s %10s %8s %10s %10s %8s\n",
		"#", "distance", "range", "trades", "return%", "maxdd%", "sharpe")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-4d %10g %10g error: %v\n", r.Index, r.Params.GridDistance, r.Params.GridRange, r.Err)
			continue
		}
		rep := r.Outcome.Report
		fmt.Fprintf(w, "%-4d %10g %10g %8d %10.2f %10.2f %8.2f\n",
			r.Index, r.Params.GridDistance, r.Params.GridRange,
			rep.Trades, rep.ReturnPct, rep.MaxDrawdownPct, rep.SharpeRatio)
	}
}
