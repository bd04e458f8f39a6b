package journal

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertRun = `
	INSERT INTO backtest_runs
	(run_id, created, interval, dataset, instrument, params, reference, grid_distance, grid_range,
	 levels, signals, start_time, end_time, bars, trades, wins, losses, entries, rejected,
	 start_balance, end_balance, net_pl, return_pct, win_rate, profit_factor, max_dd_pct, sharpe)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertTrade = `
	INSERT INTO trades
	(run_id, trade_id, entry_id, instrument, side, units, entry_price, exit_price, stop_loss,
	 take_profit, open_time, close_time, commission, realized_pl, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertEquity = `
	INSERT INTO equity
	(run_id, time, balance, equity, unrealized, margin_used, free_margin, drawdown, open_positions)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func recordRun(ctx context.Context, x execer, r RunRecord) error {
	params := r.Params
	if len(params) == 0 {
		params = []byte("{}")
	}
	_, err := x.ExecContext(ctx, insertRun,
		r.RunID, r.Created, r.Interval, r.Dataset, r.Instrument, string(params),
		r.Reference, r.GridDistance, r.GridRange, r.Levels, r.Signals,
		r.Start, r.End, r.Bars, r.Trades, r.Wins, r.Losses, r.Entries, r.Rejected,
		r.StartBalance, r.EndBalance, r.NetPL, r.ReturnPct, r.WinRate,
		r.ProfitFactor, r.MaxDDPct, r.Sharpe,
	)
	return err
}

func recordTrade(ctx context.Context, x execer, t TradeRecord) error {
	_, err := x.ExecContext(ctx, insertTrade,
		t.RunID, t.TradeID, t.EntryID, t.Instrument, t.Side, t.Units,
		t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit,
		t.OpenTime, t.CloseTime, t.Commission, t.RealizedPL, t.Reason,
	)
	return err
}

func recordEquity(ctx context.Context, x execer, e EquitySnapshot) error {
	_, err := x.ExecContext(ctx, insertEquity,
		e.RunID, e.Time, e.Balance, e.Equity, e.Unrealized,
		e.MarginUsed, e.FreeMargin, e.Drawdown, e.OpenPositions,
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	return recordRun(context.Background(), j.db, r)
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	return recordTrade(context.Background(), j.db, t)
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	return recordEquity(context.Background(), j.db, e)
}

// WriteBatch stores a run with its trades and equity in one transaction.
func (j *SQLite) WriteBatch(rec RunRecord, trades []TradeRecord, equity []EquitySnapshot) error {
	ctx := context.Background()
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := recordRun(ctx, tx, rec); err != nil {
		return err
	}
	for _, t := range trades {
		if err := recordTrade(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, e := range equity {
		if err := recordEquity(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ExportRunOrg loads a run and its trades and returns the org report.
func (j *SQLite) ExportRunOrg(ctx context.Context, runID string) (string, error) {
	rec, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRun(ctx, runID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	s, err := rec.Org()
	if err != nil {
		return "", err
	}
	b.WriteString(s)
	if len(trades) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatTradesOrg(trades))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
