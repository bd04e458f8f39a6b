package journal

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/market"
)

var t0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

// sampleOutcome runs a small backtest over a sine wave.
func sampleOutcome(t *testing.T, runID string) *backtest.Outcome {
	t.Helper()

	bars := make([]market.Bar, 120)
	prev := 100.0
	for i := range bars {
		c := 100 + 8*math.Sin(float64(i)/6)
		bars[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  prev,
			High:  math.Max(prev, c) + 0.25,
			Low:   math.Min(prev, c) - 0.25,
			Close: c,
		}
		prev = c
	}

	p := backtest.DefaultParams()
	p.ReferencePrice = 100
	p.GridDistance = 2
	p.GridRange = 16
	p.ATRMultiplier = 1
	p.PositionSize = 10

	out, err := backtest.Run(context.Background(), bars, p, backtest.WithRunID(runID))
	require.NoError(t, err)
	require.NotEmpty(t, out.Result.Ledger)
	return out
}

func sampleTrade(runID, tradeID string, closeAt time.Time, pl float64) TradeRecord {
	return TradeRecord{
		RunID:      runID,
		TradeID:    tradeID,
		EntryID:    "E-" + tradeID,
		Instrument: "XAU_USD",
		Side:       "long",
		Units:      100,
		EntryPrice: 2300.5,
		ExitPrice:  2303.5,
		StopLoss:   2295.5,
		TakeProfit: 2303.5,
		OpenTime:   closeAt.Add(-2 * time.Hour),
		CloseTime:  closeAt,
		Commission: 0.5,
		RealizedPL: pl,
		Reason:     "target",
	}
}
