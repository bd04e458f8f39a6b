package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/gridtrader/market"
)

// trueRange is the largest of high-low, |high-prevClose| and |low-prevClose|.
// The first bar of a series has no previous close and uses high-low.
func trueRange(cur market.Bar, prev *market.Bar) float64 {
	tr := cur.High - cur.Low
	if prev == nil {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// ATR is a streaming Average True Range with Wilder smoothing. The first
// value is the mean of the first period true ranges.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Bar
	hasPrev   bool
}

// NewATR creates an Average True Range with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }
func (a *ATR) Warmup() int { return a.period }

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrev = false
}

func (a *ATR) Update(b market.Bar) {
	var prev *market.Bar
	if a.hasPrev {
		prev = &a.prev
	}
	tr := trueRange(b, prev)
	a.prev = b
	a.hasPrev = true

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool { return a.period > 0 && a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}
