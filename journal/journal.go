// Package journal persists completed backtest runs: CSV files, a SQLite
// database, a metrics JSON file and org-mode reports.
package journal

import (
	"time"
)

// TradeRecord is one closed position leg.
type TradeRecord struct {
	RunID      string
	TradeID    string
	EntryID    string
	Instrument string
	Side       string
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	CloseTime  time.Time
	Commission float64
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is the account state after one bar.
type EquitySnapshot struct {
	RunID         string
	Time          time.Time
	Balance       float64
	Equity        float64
	Unrealized    float64
	MarginUsed    float64
	FreeMargin    float64
	Drawdown      float64
	OpenPositions int
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// batchWriter is implemented by journals that can store a whole run at once.
type batchWriter interface {
	WriteBatch(rec RunRecord, trades []TradeRecord, equity []EquitySnapshot) error
}

// WriteOutcome stores one completed run: the run row first, then its trades
// and equity series.
func WriteOutcome(j Journal, rec RunRecord, trades []TradeRecord, equity []EquitySnapshot) error {
	if bw, ok := j.(batchWriter); ok {
		return bw.WriteBatch(rec, trades, equity)
	}
	if err := j.RecordRun(rec); err != nil {
		return err
	}
	for _, t := range trades {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	for _, e := range equity {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}
