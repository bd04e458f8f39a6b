package sim

import (
	"time"

	"github.com/rustyeddy/gridtrader/market"
)

// Side is +1 for long and -1 for short.
type Side int

const (
	Long  Side = 1
	Short Side = -1
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Reason is why a position closed.
type Reason string

const (
	ReasonStop      Reason = "stop"
	ReasonTarget    Reason = "target"
	ReasonEndOfData Reason = "end-of-data"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Position is one leg of a hedge entry.
type Position struct {
	ID      string `json:"id"`
	EntryID string `json:"entry_id"`
	Side    Side   `json:"side"`
	Status  Status `json:"status"`

	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Margin     float64 `json:"margin"`

	OpenTime  time.Time `json:"open_time"`
	OpenIndex int       `json:"open_index"`

	ClosePrice float64   `json:"close_price"`
	CloseTime  time.Time `json:"close_time"`
	CloseIndex int       `json:"close_index"`
	Reason     Reason    `json:"reason,omitempty"`

	Commission float64 `json:"commission"`
	RealizedPL float64 `json:"realized_pl"`
}

// CheckExit reports whether bar b reaches the position's stop or target and
// at which price. The stop wins when the bar reaches both.
func (p *Position) CheckExit(b market.Bar) (price float64, reason Reason, hit bool) {
	if p.Status != StatusOpen {
		return 0, "", false
	}
	if hitStopLoss(p, b) {
		return p.StopLoss, ReasonStop, true
	}
	if hitTakeProfit(p, b) {
		return p.TakeProfit, ReasonTarget, true
	}
	return 0, "", false
}

func hitStopLoss(p *Position, b market.Bar) bool {
	if p.Side == Long {
		return b.Low <= p.StopLoss
	}
	return b.High >= p.StopLoss
}

func hitTakeProfit(p *Position, b market.Bar) bool {
	if p.Side == Long {
		return b.High >= p.TakeProfit
	}
	return b.Low <= p.TakeProfit
}

// Holding is the time between open and close.
func (p Position) Holding() time.Duration {
	if p.CloseTime.IsZero() {
		return 0
	}
	return p.CloseTime.Sub(p.OpenTime)
}

// ReturnPct is realized P&L over entry notional, in percent.
func (p Position) ReturnPct() float64 {
	notional := p.EntryPrice * p.Size
	if notional == 0 {
		return 0
	}
	return p.RealizedPL / notional * 100
}
