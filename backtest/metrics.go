package backtest

import (
	"math"
	"slices"
	"time"

	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/sim"
)

// Report is the performance summary of one run. Ratios with a zero
// denominator are reported as 0.
type Report struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Bars     int           `json:"bars"`

	InitialCash      float64 `json:"initial_cash"`
	FinalEquity      float64 `json:"final_equity"`
	EquityPeak       float64 `json:"equity_peak"`
	ReturnPct        float64 `json:"return_pct"`
	ReturnAnnPct     float64 `json:"return_ann_pct"`
	BuyHoldReturnPct float64 `json:"buy_hold_return_pct"`
	ExposurePct      float64 `json:"exposure_pct"`

	VolatilityAnnPct float64 `json:"volatility_ann_pct"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	PeriodsPerYear   float64 `json:"periods_per_year"`

	MaxDrawdownPct      float64       `json:"max_drawdown_pct"`
	AvgDrawdownPct      float64       `json:"avg_drawdown_pct"`
	MaxDrawdownDuration time.Duration `json:"max_drawdown_duration"`

	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRatePct    float64 `json:"win_rate_pct"`
	BestTradePct  float64 `json:"best_trade_pct"`
	WorstTradePct float64 `json:"worst_trade_pct"`
	AvgTradePct   float64 `json:"avg_trade_pct"`
	ProfitFactor  float64 `json:"profit_factor"`
	Expectancy    float64 `json:"expectancy"`

	AvgHolding time.Duration `json:"avg_holding"`
	MaxHolding time.Duration `json:"max_holding"`

	StopExits      int `json:"stop_exits"`
	TargetExits    int `json:"target_exits"`
	EndOfDataExits int `json:"end_of_data_exits"`
}

// ComputeMetrics derives a Report from the closed-trade ledger and the
// per-bar equity series. It never fails; empty inputs yield zero metrics.
func ComputeMetrics(ledger []sim.Position, equity []sim.EquityPoint, initialCash float64) Report {
	r := Report{
		InitialCash: initialCash,
		FinalEquity: initialCash,
		EquityPeak:  initialCash,
		Bars:        len(equity),
	}

	tradeStats(&r, ledger)
	for _, p := range ledger {
		r.FinalEquity += p.RealizedPL
	}
	r.ReturnPct = pct(r.FinalEquity-initialCash, initialCash)

	if len(equity) > 0 {
		r.Start = equity[0].Time
		r.End = equity[len(equity)-1].Time
		r.Duration = r.End.Sub(r.Start)
		equityStats(&r, equity, initialCash)
	}
	return r.sanitized()
}

// ComputeMetricsWithBars is ComputeMetrics plus the buy-and-hold benchmark
// over the same bars.
func ComputeMetricsWithBars(ledger []sim.Position, equity []sim.EquityPoint, initialCash float64, bars []market.Bar) Report {
	r := ComputeMetrics(ledger, equity, initialCash)
	if len(bars) > 0 {
		r.BuyHoldReturnPct = pct(bars[len(bars)-1].Close-bars[0].Close, bars[0].Close)
	}
	return r.sanitized()
}

func tradeStats(r *Report, ledger []sim.Position) {
	r.Trades = len(ledger)
	if r.Trades == 0 {
		return
	}

	var grossProfit, grossLoss, sumPL, sumRet float64
	var sumHold time.Duration
	r.BestTradePct = math.Inf(-1)
	r.WorstTradePct = math.Inf(1)

	for _, p := range ledger {
		ret := p.ReturnPct()
		sumRet += ret
		sumPL += p.RealizedPL
		r.BestTradePct = math.Max(r.BestTradePct, ret)
		r.WorstTradePct = math.Min(r.WorstTradePct, ret)

		switch {
		case p.RealizedPL > 0:
			r.Wins++
			grossProfit += p.RealizedPL
		case p.RealizedPL < 0:
			r.Losses++
			grossLoss -= p.RealizedPL
		}

		h := p.Holding()
		sumHold += h
		if h > r.MaxHolding {
			r.MaxHolding = h
		}

		switch p.Reason {
		case sim.ReasonStop:
			r.StopExits++
		case sim.ReasonTarget:
			r.TargetExits++
		case sim.ReasonEndOfData:
			r.EndOfDataExits++
		}
	}

	n := float64(r.Trades)
	r.WinRatePct = float64(r.Wins) / n * 100
	r.AvgTradePct = sumRet / n
	r.Expectancy = sumPL / n
	r.AvgHolding = sumHold / time.Duration(r.Trades)
	r.ProfitFactor = ratio(grossProfit, grossLoss)
}

func equityStats(r *Report, equity []sim.EquityPoint, initialCash float64) {
	exposed := 0
	for _, pt := range equity {
		if pt.OpenPositions > 0 {
			exposed++
		}
		r.EquityPeak = math.Max(r.EquityPeak, pt.Peak)
	}
	r.ExposurePct = float64(exposed) / float64(len(equity)) * 100

	drawdowns(r, equity)

	rets := returns(equity, initialCash)
	r.PeriodsPerYear = periodsPerYear(equity)
	ann := math.Sqrt(r.PeriodsPerYear)

	mean, sd := meanStd(rets)
	r.VolatilityAnnPct = sd * ann * 100
	r.SharpeRatio = ratio(mean, sd) * ann
	r.SortinoRatio = ratio(mean, downsideDev(rets)) * ann

	if growth := r.FinalEquity / initialCash; initialCash > 0 && growth > 0 && len(equity) > 0 {
		r.ReturnAnnPct = (math.Pow(growth, r.PeriodsPerYear/float64(len(equity))) - 1) * 100
	} else if initialCash > 0 {
		r.ReturnAnnPct = -100
	}
	r.CalmarRatio = ratio(r.ReturnAnnPct, r.MaxDrawdownPct)
}

// drawdowns fills the max, average-episode and longest drawdown figures. An
// episode runs from the last peak until equity regains it or the data ends.
func drawdowns(r *Report, equity []sim.EquityPoint) {
	var episodes []float64
	peakAt := equity[0].Time
	inDD := false
	worst := 0.0

	closeEpisode := func(end time.Time) {
		episodes = append(episodes, worst)
		if d := end.Sub(peakAt); d > r.MaxDrawdownDuration {
			r.MaxDrawdownDuration = d
		}
		inDD = false
		worst = 0
	}

	for _, pt := range equity {
		r.MaxDrawdownPct = math.Max(r.MaxDrawdownPct, pt.Drawdown*100)
		if pt.Drawdown > 0 {
			inDD = true
			worst = math.Max(worst, pt.Drawdown*100)
			continue
		}
		if inDD {
			closeEpisode(pt.Time)
		}
		peakAt = pt.Time
	}
	if inDD {
		closeEpisode(equity[len(equity)-1].Time)
	}

	if len(episodes) > 0 {
		sum := 0.0
		for _, e := range episodes {
			sum += e
		}
		r.AvgDrawdownPct = sum / float64(len(episodes))
	}
}

// returns is the per-bar simple return series. The first bar is measured
// against initial cash.
func returns(equity []sim.EquityPoint, initialCash float64) []float64 {
	out := make([]float64, len(equity))
	prev := initialCash
	for i, pt := range equity {
		if prev > 0 {
			out[i] = pt.Equity/prev - 1
		}
		prev = pt.Equity
	}
	return out
}

// periodsPerYear scales per-bar statistics to a year. Series with weekend
// bars trade every day of the year, others 252 days.
func periodsPerYear(equity []sim.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(equity)-1)
	weekend := false
	for i, pt := range equity {
		switch pt.Time.UTC().Weekday() {
		case time.Saturday, time.Sunday:
			weekend = true
		}
		if i > 0 {
			gaps = append(gaps, pt.Time.Sub(equity[i-1].Time))
		}
	}
	slices.Sort(gaps)
	med := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		med = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}
	if med <= 0 {
		return 0
	}

	days := 252.0
	if weekend {
		days = 365
	}
	// Intraday bars assume round-the-clock sessions on trading days.
	return days * float64(24*time.Hour) / float64(med)
}

func meanStd(xs []float64) (mean, sd float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

func downsideDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		if x < 0 {
			ss += x * x
		}
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func pct(num, den float64) float64 {
	return ratio(num, den) * 100
}

func clean(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func (r Report) sanitized() Report {
	for _, f := range []*float64{
		&r.FinalEquity, &r.EquityPeak, &r.ReturnPct, &r.ReturnAnnPct,
		&r.BuyHoldReturnPct, &r.ExposurePct, &r.VolatilityAnnPct,
		&r.SharpeRatio, &r.SortinoRatio, &r.CalmarRatio, &r.PeriodsPerYear,
		&r.MaxDrawdownPct, &r.AvgDrawdownPct, &r.WinRatePct, &r.BestTradePct,
		&r.WorstTradePct, &r.AvgTradePct, &r.ProfitFactor, &r.Expectancy,
	} {
		*f = clean(*f)
	}
	return r
}

// Map flattens the report to named numbers. Durations are in hours.
func (r Report) Map() map[string]float64 {
	hours := func(d time.Duration) float64 { return d.Hours() }
	return map[string]float64{
		"bars":                        float64(r.Bars),
		"duration_hours":              hours(r.Duration),
		"initial_cash":                r.InitialCash,
		"final_equity":                r.FinalEquity,
		"equity_peak":                 r.EquityPeak,
		"return_pct":                  r.ReturnPct,
		"return_ann_pct":              r.ReturnAnnPct,
		"buy_hold_return_pct":         r.BuyHoldReturnPct,
		"exposure_pct":                r.ExposurePct,
		"volatility_ann_pct":          r.VolatilityAnnPct,
		"sharpe_ratio":                r.SharpeRatio,
		"sortino_ratio":               r.SortinoRatio,
		"calmar_ratio":                r.CalmarRatio,
		"max_drawdown_pct":            r.MaxDrawdownPct,
		"avg_drawdown_pct":            r.AvgDrawdownPct,
		"max_drawdown_duration_hours": hours(r.MaxDrawdownDuration),
		"trades":                      float64(r.Trades),
		"wins":                        float64(r.Wins),
		"losses":                      float64(r.Losses),
		"win_rate_pct":                r.WinRatePct,
		"best_trade_pct":              r.BestTradePct,
		"worst_trade_pct":             r.WorstTradePct,
		"avg_trade_pct":               r.AvgTradePct,
		"profit_factor":               r.ProfitFactor,
		"expectancy":                  r.Expectancy,
		"avg_holding_hours":           hours(r.AvgHolding),
		"max_holding_hours":           hours(r.MaxHolding),
		"stop_exits":                  float64(r.StopExits),
		"target_exits":                float64(r.TargetExits),
		"end_of_data_exits":           float64(r.EndOfDataExits),
	}
}
