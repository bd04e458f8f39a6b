package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/gridtrader/market"
)

var nan = math.NaN()

// SimpleMA is a streaming simple moving average of closes.
type SimpleMA struct {
	period int
	window []float64
	sum    float64
}

// NewMA creates a simple moving average with the given period.
func NewMA(period int) *SimpleMA {
	return &SimpleMA{period: period, window: make([]float64, 0, period)}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("MA(%d)", m.period) }
func (m *SimpleMA) Warmup() int { return m.period }

func (m *SimpleMA) Reset() {
	m.window = m.window[:0]
	m.sum = 0
}

func (m *SimpleMA) Update(b market.Bar) {
	m.window = append(m.window, b.Close)
	m.sum += b.Close
	if len(m.window) > m.period {
		m.sum -= m.window[0]
		m.window = m.window[1:]
	}
}

func (m *SimpleMA) Ready() bool { return m.period > 0 && len(m.window) >= m.period }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	// Re-summing keeps long runs free of accumulated rounding.
	sum := 0.0
	for _, v := range m.window {
		sum += v
	}
	return sum / float64(len(m.window))
}

// ExponentialMA is a streaming exponential moving average seeded with the
// simple average of its first period closes.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates an exponential moving average with the given period.
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{period: period, multiplier: 2.0 / float64(period+1)}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *ExponentialMA) Warmup() int { return e.period }

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(b market.Bar) {
	if e.count < e.period {
		e.warmupSum += b.Close
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (b.Close-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool { return e.period > 0 && e.count >= e.period }

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// Bollinger tracks bands at k population standard deviations around a simple
// moving average. Value returns the middle band.
type Bollinger struct {
	ma *SimpleMA
	k  float64
}

// NewBollinger creates Bollinger bands over period closes at k deviations.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{ma: NewMA(period), k: k}
}

func (b *Bollinger) Name() string { return fmt.Sprintf("BB(%d,%g)", b.ma.period, b.k) }
func (b *Bollinger) Warmup() int { return b.ma.Warmup() }
func (b *Bollinger) Reset() { b.ma.Reset() }
func (b *Bollinger) Update(bar market.Bar) { b.ma.Update(bar) }
func (b *Bollinger) Ready() bool { return b.ma.Ready() }
func (b *Bollinger) Value() float64 { return b.ma.Value() }

// Bands returns lower, middle and upper bands.
func (b *Bollinger) Bands() (lower, middle, upper float64) {
	if !b.Ready() {
		return 0, 0, 0
	}
	mid := b.ma.Value()
	var ss float64
	for _, v := range b.ma.window {
		d := v - mid
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(b.ma.window)))
	return mid - b.k*sd, mid, mid + b.k*sd
}
