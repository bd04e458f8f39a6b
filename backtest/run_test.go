package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/sim"
)

// wave returns hourly bars oscillating around 100.
func wave(n int) []market.Bar {
	bars := make([]market.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/8)
		bars[i] = market.Bar{
			Time:   monday.Add(time.Duration(i) * time.Hour),
			Open:   prev,
			High:   math.Max(prev, c) + 0.5,
			Low:    math.Min(prev, c) - 0.5,
			Close:  c,
			Volume: 1000,
		}
		prev = c
	}
	return bars
}

func waveParams() Params {
	p := DefaultParams()
	p.ReferencePrice = 100
	p.GridDistance = 2
	p.GridRange = 20
	p.ATRMultiplier = 1
	p.PositionSize = 10
	return p
}

type recorder struct {
	mu   sync.Mutex
	runs []*Outcome
	errs []error
}

func (r *recorder) ObserveRun(o *Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, o)
	r.errs = append(r.errs, err)
}

func TestRun(t *testing.T) {
	t.Parallel()

	bars := wave(200)
	snapshot := market.Clone(bars)

	out, err := Run(context.Background(), bars, waveParams(), WithRunID("run-1"))
	require.NoError(t, err)

	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 100.0, out.Reference)
	assert.Len(t, out.Levels, 21)
	assert.Len(t, out.Signals, len(bars))
	assert.Positive(t, out.SignalCount)
	require.NotNil(t, out.Result)
	assert.Len(t, out.Result.Equity, len(bars))
	assert.Equal(t, len(out.Result.Ledger), out.Report.Trades)
	assert.Equal(t, 2*out.Result.Entries, out.Report.Trades)
	assert.LessOrEqual(t, out.Result.MaxOpenEntries, 5)
	assert.Equal(t, bars[0].Time, out.Report.Start)
	assert.Equal(t, bars[len(bars)-1].Time, out.Report.End)

	sum := 0.0
	for _, p := range out.Result.Ledger {
		sum += p.RealizedPL
	}
	assert.InDelta(t, out.Result.FinalCash, 10000+sum, 1e-6)
	assert.InDelta(t, out.Report.FinalEquity, 10000+sum, 1e-6)

	assert.Equal(t, snapshot, bars, "bars must not be modified")
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()

	bars := wave(150)
	a, err := Run(context.Background(), bars, waveParams(), WithRunID("x"))
	require.NoError(t, err)
	b, err := Run(context.Background(), bars, waveParams(), WithRunID("x"))
	require.NoError(t, err)

	ja, err := json.Marshal(a.Result)
	require.NoError(t, err)
	jb, err := json.Marshal(b.Result)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
	assert.Equal(t, a.Report, b.Report)
}

func TestRunDynamicReference(t *testing.T) {
	t.Parallel()

	bars := wave(60)
	tests := []struct {
		mode string
		want float64
	}{
		{"close", bars[59].Close},
		{"hlc3", bars[59].HLC3()},
		{"ma_20", meanClose(bars[40:])},
		{"ma_50", meanClose(bars[10:])},
		{"bb_middle", meanClose(bars[40:])},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			p := waveParams()
			p.ReferencePrice = 0
			p.ReferenceMode = tt.mode

			out, err := Run(context.Background(), bars, p)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out.Reference, 1e-9)
			assert.Contains(t, out.Levels, out.Reference)
		})
	}
}

func TestRunDynamicReferenceWarmup(t *testing.T) {
	t.Parallel()

	// Fewer bars than the 50-bar window falls back to the last close.
	bars := wave(30)
	p := waveParams()
	p.ReferenceMode = "ma_50"

	out, err := Run(context.Background(), bars, p)
	require.NoError(t, err)
	assert.Equal(t, bars[29].Close, out.Reference)
}

func meanClose(bars []market.Bar) float64 {
	s := 0.0
	for _, b := range bars {
		s += b.Close
	}
	return s / float64(len(bars))
}

func TestRunATRStopBasis(t *testing.T) {
	t.Parallel()

	p := waveParams()
	p.StopBasis = sim.StopBasisATR
	p.ATRPeriod = 5

	out, err := Run(context.Background(), wave(120), p)
	require.NoError(t, err)
	require.NotEmpty(t, out.Result.Ledger)

	// Before the ATR warms up the grid distance is used.
	gridDist := p.ATRMultiplier * p.GridDistance
	atrSized := 0
	for _, pos := range out.Result.Ledger {
		dist := math.Abs(pos.StopLoss - pos.EntryPrice)
		if pos.OpenIndex < p.ATRPeriod-1 {
			assert.InDelta(t, gridDist, dist, 1e-9)
			continue
		}
		if math.Abs(dist-gridDist) > 1e-9 {
			atrSized++
		}
	}
	assert.Positive(t, atrSized)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	bad := waveParams()
	bad.GridDistance = 0
	_, err := Run(context.Background(), wave(10), bad)
	assert.True(t, errors.Is(err, market.ErrConfiguration))

	_, err = Run(context.Background(), nil, waveParams())
	assert.True(t, errors.Is(err, market.ErrInsufficientData))

	bars := wave(10)
	bars[4].High = bars[4].Low - 1
	_, err = Run(context.Background(), bars, waveParams())
	var die *market.DataIntegrityError
	require.True(t, errors.As(err, &die))
	assert.Equal(t, 4, die.Index)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, wave(10), waveParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunObserver(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	_, err := Run(context.Background(), wave(50), waveParams(), WithObserver(rec))
	require.NoError(t, err)
	_, err = Run(context.Background(), nil, waveParams(), WithObserver(rec))
	require.Error(t, err)

	require.Len(t, rec.runs, 2)
	assert.NotNil(t, rec.runs[0])
	assert.NoError(t, rec.errs[0])
	assert.Nil(t, rec.runs[1])
	assert.Error(t, rec.errs[1])
}

func TestRunWithoutCrossings(t *testing.T) {
	t.Parallel()

	// Price stays strictly between two levels.
	bars := make([]market.Bar, 24)
	for i := range bars {
		bars[i] = market.Bar{
			Time:  monday.Add(time.Duration(i) * time.Hour),
			Open:  100.5,
			High:  100.8,
			Low:   100.2,
			Close: 100.5,
		}
	}
	p := waveParams()

	out, err := Run(context.Background(), bars, p)
	require.NoError(t, err)
	assert.Equal(t, 0, out.SignalCount)
	assert.Empty(t, out.Result.Ledger)
	assert.Equal(t, 0.0, out.Report.WinRatePct)
	assert.Equal(t, 0.0, out.Report.MaxDrawdownPct)
	assert.Equal(t, p.InitialCash, out.Report.FinalEquity)
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	out, err := Run(context.Background(), wave(100), waveParams(), WithRunID("summary"))
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintSummary(&buf, "XAUUSD", out)
	s := buf.String()

	assert.Contains(t, s, "Grid Backtest Result")
	assert.Contains(t, s, "Run ID:        summary")
	assert.Contains(t, s, "Symbol:        XAUUSD")
	assert.Contains(t, s, "Levels:        21")
	assert.True(t, strings.Contains(s, "Win Rate:"))
}
