// Package telemetry exports backtest run metrics to Prometheus.
package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/market"
)

// Recorder implements backtest.Observer using Prometheus.
type Recorder struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	bars       prometheus.Counter
	trades     *prometheus.CounterVec
	rejections *prometheus.CounterVec
	lastReturn prometheus.Gauge
	lastDD     prometheus.Gauge
}

var _ backtest.Observer = (*Recorder)(nil)

// New registers the recorder's collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridtrader_backtest_runs_total",
				Help: "Backtest runs by outcome",
			},
			[]string{"status"},
		),
		duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gridtrader_backtest_duration_seconds",
				Help:    "Wall time of successful backtest runs",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		bars: f.NewCounter(
			prometheus.CounterOpts{
				Name: "gridtrader_backtest_bars_total",
				Help: "Bars processed by successful runs",
			},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridtrader_backtest_trades_total",
				Help: "Closed position legs by exit reason",
			},
			[]string{"reason"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridtrader_backtest_rejected_entries_total",
				Help: "Entries skipped by the risk gate, by cause",
			},
			[]string{"cause"},
		),
		lastReturn: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridtrader_backtest_last_return_pct",
				Help: "Total return of the most recent successful run",
			},
		),
		lastDD: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridtrader_backtest_last_max_drawdown_pct",
				Help: "Maximum drawdown of the most recent successful run",
			},
		),
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(o *backtest.Outcome, err error) {
	if err != nil {
		r.runs.WithLabelValues(Status(err)).Inc()
		return
	}
	r.runs.WithLabelValues("ok").Inc()
	if o == nil || o.Result == nil {
		return
	}

	r.duration.Observe(o.Elapsed.Seconds())
	r.bars.Add(float64(o.Report.Bars))
	for _, p := range o.Result.Ledger {
		r.trades.WithLabelValues(string(p.Reason)).Inc()
	}
	rej := o.Result.Rejections
	r.rejections.WithLabelValues("capacity").Add(float64(rej.Capacity))
	r.rejections.WithLabelValues("margin").Add(float64(rej.Margin))
	r.rejections.WithLabelValues("policy").Add(float64(rej.Policy))
	r.lastReturn.Set(o.Report.ReturnPct)
	r.lastDD.Set(o.Report.MaxDrawdownPct)
}

// Status names the error kind of a failed run.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, market.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, market.ErrDataIntegrity):
		return "data_integrity_error"
	case errors.Is(err, market.ErrInsufficientData), errors.Is(err, market.ErrNoData):
		return "insufficient_data"
	default:
		return "error"
	}
}
