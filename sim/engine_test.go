package sim

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gridtrader/grid"
	"github.com/rustyeddy/gridtrader/market"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

// ohlc builds hourly bars from {open, high, low, close} rows.
func ohlc(rows ...[4]float64) []market.Bar {
	bars := make([]market.Bar, len(rows))
	for i, r := range rows {
		bars[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  r[0],
			High:  r[1],
			Low:   r[2],
			Close: r[3],
		}
	}
	return bars
}

func testConfig() Config {
	return Config{
		InitialCash:   10000,
		MarginRate:    0.01,
		MaxTrades:     5,
		ATRMultiplier: 1.5,
		TPSLRatio:     0.6,
		PositionSize:  10,
		GridDistance:  2,
	}
}

func newEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func runSim(t *testing.T, e *Engine, bars []market.Bar, signals []bool) *Result {
	t.Helper()
	res, err := e.Run(context.Background(), bars, signals)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func sumPL(ledger []Position) float64 {
	s := 0.0
	for _, p := range ledger {
		s += p.RealizedPL
	}
	return s
}

func TestHedgeEntryLevels(t *testing.T) {
	e := newEngine(t, testConfig())
	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 100.5, 99.5, 100},
	)
	res := runSim(t, e, bars, []bool{true, false})

	require.Len(t, res.Ledger, 2)
	short, long := res.Ledger[0], res.Ledger[1]

	assert.Equal(t, Short, short.Side)
	assert.InDelta(t, 103.0, short.StopLoss, 1e-9)
	assert.InDelta(t, 98.2, short.TakeProfit, 1e-9)

	assert.Equal(t, Long, long.Side)
	assert.InDelta(t, 97.0, long.StopLoss, 1e-9)
	assert.InDelta(t, 101.8, long.TakeProfit, 1e-9)

	assert.Equal(t, short.EntryID, long.EntryID)
	assert.NotEqual(t, short.ID, long.ID)
	for _, p := range res.Ledger {
		assert.Equal(t, ReasonEndOfData, p.Reason)
		assert.Equal(t, 100.0, p.ClosePrice)
		assert.Equal(t, bars[1].Time, p.CloseTime)
		assert.Equal(t, 0, p.OpenIndex)
		assert.Equal(t, 1, p.CloseIndex)
		assert.Equal(t, StatusClosed, p.Status)
	}
	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, 10000.0, res.FinalCash)
}

func TestCapacityRejection(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTrades = 1
	e := newEngine(t, cfg)

	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 100.6, 99.4, 100.1},
		[4]float64{100.1, 100.4, 99.8, 100},
	)
	res := runSim(t, e, bars, []bool{true, true, false})

	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, 1, res.Rejections.Capacity)
	assert.Equal(t, 0, res.Rejections.Margin)
	assert.Equal(t, 1, res.MaxOpenEntries)

	// Only the first pair exists and it stays open until the data ends.
	require.Len(t, res.Ledger, 2)
	for _, p := range res.Ledger {
		assert.Equal(t, 0, p.OpenIndex)
		assert.Equal(t, ReasonEndOfData, p.Reason)
	}
	for _, pt := range res.Equity {
		assert.Equal(t, 2, pt.OpenPositions)
	}
}

func TestStopTakesPrecedence(t *testing.T) {
	p := &Position{
		Side:       Short,
		Status:     StatusOpen,
		EntryPrice: 100,
		StopLoss:   103,
		TakeProfit: 98.2,
		Size:       1,
	}
	price, reason, hit := p.CheckExit(market.Bar{Low: 97, High: 104})
	require.True(t, hit)
	assert.Equal(t, ReasonStop, reason)
	assert.Equal(t, 103.0, price)

	long := &Position{Side: Long, Status: StatusOpen, EntryPrice: 100, StopLoss: 97, TakeProfit: 101.8}
	price, reason, hit = long.CheckExit(market.Bar{Low: 96, High: 102})
	require.True(t, hit)
	assert.Equal(t, ReasonStop, reason)
	assert.Equal(t, 97.0, price)

	price, reason, hit = long.CheckExit(market.Bar{Low: 99, High: 102})
	require.True(t, hit)
	assert.Equal(t, ReasonTarget, reason)
	assert.Equal(t, 101.8, price)

	_, _, hit = long.CheckExit(market.Bar{Low: 98, High: 101})
	assert.False(t, hit)

	long.Status = StatusClosed
	_, _, hit = long.CheckExit(market.Bar{Low: 0, High: 1000})
	assert.False(t, hit)
}

func TestWideBarStopsBothLegs(t *testing.T) {
	e := newEngine(t, testConfig())
	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 104, 97, 100},
	)
	res := runSim(t, e, bars, []bool{true, false})

	require.Len(t, res.Ledger, 2)
	short, long := res.Ledger[0], res.Ledger[1]
	assert.Equal(t, ReasonStop, short.Reason)
	assert.Equal(t, 103.0, short.ClosePrice)
	assert.InDelta(t, -30.0, short.RealizedPL, 1e-9)

	assert.Equal(t, ReasonStop, long.Reason)
	assert.Equal(t, 97.0, long.ClosePrice)
	assert.InDelta(t, -30.0, long.RealizedPL, 1e-9)

	assert.InDelta(t, 9940.0, res.FinalCash, 1e-9)
	last := res.Equity[len(res.Equity)-1]
	assert.InDelta(t, 9940.0, last.Equity, 1e-9)
	assert.InDelta(t, 0.006, last.Drawdown, 1e-12)
	assert.Equal(t, 0.0, last.MarginUsed)
}

func TestTargetAndStopSplit(t *testing.T) {
	e := newEngine(t, testConfig())
	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 102, 99.5, 101.5},  // long target 101.8 hit
		[4]float64{101.5, 103.5, 101, 103}, // short stop 103 hit
	)
	res := runSim(t, e, bars, []bool{true, false, false})

	require.Len(t, res.Ledger, 2)
	long, short := res.Ledger[0], res.Ledger[1]
	assert.Equal(t, Long, long.Side)
	assert.Equal(t, ReasonTarget, long.Reason)
	assert.InDelta(t, 18.0, long.RealizedPL, 1e-9)
	assert.Equal(t, 1, long.CloseIndex)

	assert.Equal(t, Short, short.Side)
	assert.Equal(t, ReasonStop, short.Reason)
	assert.InDelta(t, -30.0, short.RealizedPL, 1e-9)
	assert.Equal(t, 2, short.CloseIndex)

	// After the long closes the short is marked at 101.5.
	assert.InDelta(t, 10018.0-15.0, res.Equity[1].Equity, 1e-9)
	assert.InDelta(t, 9988.0, res.FinalCash, 1e-9)
	assert.Equal(t, 1, res.Equity[1].OpenPositions)
	assert.InDelta(t, 10.0, res.Equity[1].MarginUsed, 1e-9, "margin held while a leg is open")
}

func TestMarginRejection(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCash = 100
	cfg.PositionSize = 100
	cfg.MarginRate = 0.02
	e := newEngine(t, cfg)

	bars := ohlc([4]float64{100, 100.5, 99.5, 100}, [4]float64{100, 100.5, 99.5, 100})
	res := runSim(t, e, bars, []bool{true, true})

	assert.Equal(t, 0, res.Entries)
	assert.Equal(t, 2, res.Rejections.Margin)
	assert.Empty(t, res.Ledger)
	for _, pt := range res.Equity {
		assert.Equal(t, 100.0, pt.Equity)
		assert.Equal(t, 0.0, pt.Drawdown)
	}
}

func TestMarginReservedAcrossEntries(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCash = 25
	cfg.PositionSize = 10
	cfg.MarginRate = 0.01 // 10 per entry at 100
	e := newEngine(t, cfg)

	flat := [4]float64{100, 100.5, 99.5, 100}
	bars := ohlc(flat, flat, flat)
	res := runSim(t, e, bars, []bool{true, true, true})

	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, 1, res.Rejections.Margin)
	assert.InDelta(t, 20.0, res.Equity[2].MarginUsed, 1e-9)
}

func TestCommission(t *testing.T) {
	cfg := testConfig()
	cfg.CommissionRate = 0.001
	e := newEngine(t, cfg)

	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 104, 97, 100},
	)
	res := runSim(t, e, bars, []bool{true, false})

	require.Len(t, res.Ledger, 2)
	short := res.Ledger[0]
	assert.InDelta(t, 0.001*10*(100+103), short.Commission, 1e-12)
	assert.InDelta(t, -30.0-short.Commission, short.RealizedPL, 1e-12)
	assert.InDelta(t, cfg.InitialCash+sumPL(res.Ledger), res.FinalCash, 1e-9)
}

func TestATRStopBasis(t *testing.T) {
	cfg := testConfig()
	cfg.StopBasis = StopBasisATR
	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 100.5, 99.5, 100},
	)
	atr := []float64{math.NaN(), 4, 4}
	e := newEngine(t, cfg, WithATR(atr))

	res := runSim(t, e, bars, []bool{true, true, false})
	require.Len(t, res.Ledger, 4)

	// First entry falls back to grid distance while ATR warms up.
	assert.InDelta(t, 103.0, res.Ledger[0].StopLoss, 1e-9)
	// Second uses 1.5 * ATR = 6.
	assert.InDelta(t, 106.0, res.Ledger[2].StopLoss, 1e-9)
	assert.InDelta(t, 96.4, res.Ledger[2].TakeProfit, 1e-9)

	_, err := newEngine(t, cfg).Run(context.Background(), bars, []bool{true, false, false})
	assert.True(t, errors.Is(err, market.ErrConfiguration), "atr basis without a series")
}

func TestDataIntegrityAbortsRun(t *testing.T) {
	e := newEngine(t, testConfig())

	bars := ohlc(
		[4]float64{100, 100.5, 99.5, 100},
		[4]float64{100, 99, 101, 100}, // high < low
		[4]float64{100, 100.5, 99.5, 100},
	)
	res, err := e.Run(context.Background(), bars, []bool{true, false, false})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, market.ErrDataIntegrity))

	var die *market.DataIntegrityError
	require.True(t, errors.As(err, &die))
	assert.Equal(t, 1, die.Index)

	bars = ohlc([4]float64{100, 100.5, 99.5, 100}, [4]float64{100, 100.5, 99.5, 100})
	bars[1].Time = bars[0].Time
	_, err = e.Run(context.Background(), bars, []bool{false, false})
	assert.True(t, errors.Is(err, market.ErrDataIntegrity))
}

func TestRunInputErrors(t *testing.T) {
	e := newEngine(t, testConfig())

	_, err := e.Run(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, market.ErrInsufficientData))

	bars := ohlc([4]float64{100, 100.5, 99.5, 100})
	_, err = e.Run(context.Background(), bars, nil)
	assert.True(t, errors.Is(err, market.ErrConfiguration))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, bars, []bool{false})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidation(t *testing.T) {
	mutate := []struct {
		name string
		fn   func(*Config)
	}{
		{"zero cash", func(c *Config) { c.InitialCash = 0 }},
		{"negative margin", func(c *Config) { c.MarginRate = -0.01 }},
		{"zero max trades", func(c *Config) { c.MaxTrades = 0 }},
		{"zero atr multiplier", func(c *Config) { c.ATRMultiplier = 0 }},
		{"zero ratio", func(c *Config) { c.TPSLRatio = 0 }},
		{"zero size", func(c *Config) { c.PositionSize = 0 }},
		{"nan distance", func(c *Config) { c.GridDistance = math.NaN() }},
		{"negative commission", func(c *Config) { c.CommissionRate = -1 }},
		{"bad stop basis", func(c *Config) { c.StopBasis = "pips" }},
	}
	for _, m := range mutate {
		t.Run(m.name, func(t *testing.T) {
			cfg := testConfig()
			m.fn(&cfg)
			_, err := NewEngine(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, market.ErrConfiguration))
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

// randomWalk returns n valid bars around start.
func randomWalk(seed int64, n int, start float64) []market.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]market.Bar, n)
	price := start
	for i := range bars {
		open := price
		price += rng.NormFloat64() * 1.5
		if price < 1 {
			price = 1
		}
		high := math.Max(open, price) + rng.Float64()
		low := math.Max(0.5, math.Min(open, price)-rng.Float64())
		bars[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  open,
			High:  high,
			Low:   low,
			Close: price,
		}
	}
	return bars
}

func TestRunInvariants(t *testing.T) {
	bars := randomWalk(3, 2000, 100)
	levels, err := grid.Build(100, 2, 30)
	require.NoError(t, err)
	signals := grid.Detect(bars, levels)

	cfg := testConfig()
	cfg.MaxTrades = 3
	e := newEngine(t, cfg)
	res := runSim(t, e, bars, signals)

	require.Len(t, res.Equity, len(bars))
	assert.LessOrEqual(t, res.MaxOpenEntries, cfg.MaxTrades)
	assert.Equal(t, 2*res.Entries, len(res.Ledger))

	for i, pt := range res.Equity {
		assert.LessOrEqual(t, pt.OpenPositions, 2*cfg.MaxTrades)
		assert.Equal(t, bars[i].Time, pt.Time)
		assert.GreaterOrEqual(t, pt.Drawdown, 0.0)
		assert.GreaterOrEqual(t, pt.Peak, pt.Equity)
	}

	valid := map[Reason]bool{ReasonStop: true, ReasonTarget: true, ReasonEndOfData: true}
	for _, p := range res.Ledger {
		assert.True(t, valid[p.Reason], p.Reason)
		move := float64(p.Side) * (p.ClosePrice - p.EntryPrice)
		switch {
		case move > 0:
			assert.Greater(t, p.RealizedPL, 0.0)
		case move < 0:
			assert.Less(t, p.RealizedPL, 0.0)
		default:
			assert.Equal(t, 0.0, p.RealizedPL)
		}
		assert.True(t, !p.CloseTime.Before(p.OpenTime))
	}

	assert.InDelta(t, cfg.InitialCash+sumPL(res.Ledger), res.FinalCash, 1e-6)
}

func TestRunIsDeterministic(t *testing.T) {
	bars := randomWalk(11, 500, 50)
	levels, err := grid.Build(50, 1, 20)
	require.NoError(t, err)
	signals := grid.Detect(bars, levels)

	e := newEngine(t, testConfig())
	a := runSim(t, e, bars, signals)
	b := runSim(t, e, bars, signals)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)

	// A separate engine with the same config agrees too.
	c := runSim(t, newEngine(t, testConfig()), bars, signals)
	assert.Equal(t, a, c)
}

func TestPL(t *testing.T) {
	p := &Position{Side: Short, Size: 2, EntryPrice: 10}
	assert.InDelta(t, 4.0, UnrealizedPL(p, 8), 1e-12)
	assert.InDelta(t, -2.0, UnrealizedPL(p, 11), 1e-12)

	assert.InDelta(t, 0.21, Commission(0.01, 1, 10, 11), 1e-12)
	assert.InDelta(t, 1.79, RealizedPL(Long, 1, 10, 12, 0.21), 1e-12)

	closed := Position{EntryPrice: 50, Size: 2, RealizedPL: 5, OpenTime: t0, CloseTime: t0.Add(3 * time.Hour)}
	assert.InDelta(t, 5.0, closed.ReturnPct(), 1e-12)
	assert.Equal(t, 3*time.Hour, closed.Holding())
	assert.Equal(t, "short", Short.String())
}
