package journal

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["backtest_runs"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteReopen(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.RecordTrade(sampleTrade("R1", "T1", t0, 1)))
	require.NoError(t, j.Close())

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.ListTradesByRun(context.Background(), "R1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	closeAt := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
	rec := sampleTrade("R1", "T1", closeAt, -12.5)
	require.NoError(t, j.RecordTrade(rec))

	// Same trade ID under another run is a different row.
	require.NoError(t, j.RecordTrade(sampleTrade("R2", "T1", closeAt, 3)))
	// The same pair twice is rejected.
	assert.Error(t, j.RecordTrade(rec))

	got, err := j.GetTrade(context.Background(), "R1", "T1")
	require.NoError(t, err)

	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.EntryID, got.EntryID)
	assert.Equal(t, rec.Side, got.Side)
	assert.InDelta(t, rec.EntryPrice, got.EntryPrice, 1e-9)
	assert.InDelta(t, rec.ExitPrice, got.ExitPrice, 1e-9)
	assert.InDelta(t, rec.StopLoss, got.StopLoss, 1e-9)
	assert.InDelta(t, rec.TakeProfit, got.TakeProfit, 1e-9)
	assert.True(t, got.OpenTime.Equal(rec.OpenTime))
	assert.True(t, got.CloseTime.Equal(rec.CloseTime))
	assert.InDelta(t, rec.Commission, got.Commission, 1e-9)
	assert.InDelta(t, rec.RealizedPL, got.RealizedPL, 1e-9)
	assert.Equal(t, rec.Reason, got.Reason)
}

func TestSQLiteRecordEquity(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := EquitySnapshot{
		RunID:         "R1",
		Time:          time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		Balance:       1000.1,
		Equity:        999.9,
		Unrealized:    -0.2,
		MarginUsed:    10.5,
		FreeMargin:    989.4,
		Drawdown:      0.0002,
		OpenPositions: 2,
	}
	require.NoError(t, j.RecordEquity(rec))

	got, err := j.ListEquityByRun(context.Background(), "R1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(rec.Time))
	assert.InDelta(t, rec.Balance, got[0].Balance, 1e-9)
	assert.InDelta(t, rec.Equity, got[0].Equity, 1e-9)
	assert.InDelta(t, rec.MarginUsed, got[0].MarginUsed, 1e-9)
	assert.InDelta(t, rec.FreeMargin, got[0].FreeMargin, 1e-9)
	assert.InDelta(t, rec.Drawdown, got[0].Drawdown, 1e-12)
	assert.Equal(t, 2, got[0].OpenPositions)
}
