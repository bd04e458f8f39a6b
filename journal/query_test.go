package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOutcomeRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()
	ctx := context.Background()

	out := sampleOutcome(t, "run-a")
	rec, trades, equity, err := FromOutcome(out, Meta{Instrument: "XAU_USD", Interval: "1h", Dataset: "wave"})
	require.NoError(t, err)
	require.NoError(t, WriteOutcome(j, rec, trades, equity))

	got, err := j.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "XAU_USD", got.Instrument)
	assert.Equal(t, "1h", got.Interval)
	assert.Equal(t, "wave", got.Dataset)
	assert.Equal(t, out.Report.Trades, got.Trades)
	assert.Equal(t, len(out.Levels), got.Levels)
	assert.InDelta(t, out.Report.FinalEquity, got.EndBalance, 1e-9)
	assert.InDelta(t, out.Report.ReturnPct, got.ReturnPct, 1e-9)
	assert.True(t, got.Start.Equal(out.Report.Start))
	assert.JSONEq(t, string(rec.Params), string(got.Params))

	gotTrades, err := j.ListTradesByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, gotTrades, len(out.Result.Ledger))
	sum := 0.0
	for _, tr := range gotTrades {
		sum += tr.RealizedPL
	}
	assert.InDelta(t, got.NetPL, sum, 1e-6)

	gotEquity, err := j.ListEquityByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, gotEquity, len(out.Result.Equity))
	for i := 1; i < len(gotEquity); i++ {
		assert.True(t, gotEquity[i-1].Time.Before(gotEquity[i].Time))
	}
}

func TestWriteOutcomeDuplicateRunRollsBack(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()
	ctx := context.Background()

	out := sampleOutcome(t, "dup")
	rec, trades, equity, err := FromOutcome(out, Meta{Instrument: "X"})
	require.NoError(t, err)
	require.NoError(t, WriteOutcome(j, rec, trades, equity))
	require.Error(t, WriteOutcome(j, rec, trades, equity))

	gotEquity, err := j.ListEquityByRun(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, gotEquity, len(equity))
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()
	ctx := context.Background()

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, j.RecordRun(RunRecord{
			RunID:      id,
			Created:    t0.Add(time.Duration(i) * time.Minute),
			Instrument: "EUR_USD",
		}))
	}

	all, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].RunID)
	assert.Equal(t, "r1", all[2].RunID)
	assert.Equal(t, "{}", string(all[0].Params))

	two, err := j.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()
	ctx := context.Background()

	_, err := j.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "missing")

	_, err = j.GetTrade(ctx, "R", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	trades, err := j.ListTradesByRun(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	for i, id := range []string{"T1", "T2", "T3", "T4"} {
		require.NoError(t, j.RecordTrade(sampleTrade("R", id, t0.Add(time.Duration(i)*time.Hour), float64(i))))
	}

	got, err := j.ListTradesClosedBetween(context.Background(), t0.Add(time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "T2", got[0].TradeID)
	assert.Equal(t, "T3", got[1].TradeID)
}

func TestExportRunOrg(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	out := sampleOutcome(t, "org-run")
	rec, trades, equity, err := FromOutcome(out, Meta{Instrument: "XAU_USD", Interval: "1h"})
	require.NoError(t, err)
	require.NoError(t, WriteOutcome(j, rec, trades, equity))

	s, err := j.ExportRunOrg(context.Background(), "org-run")
	require.NoError(t, err)
	assert.Contains(t, s, "* BACKTEST: Grid XAU_USD 1h")
	assert.Contains(t, s, ":RUN_ID:      org-run")
	assert.Contains(t, s, "** Trade: XAU_USD")

	_, err = j.ExportRunOrg(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
