package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/gridtrader/market"
)

const (
	DefaultATRPeriod = 14
	bollingerPeriod  = 20
	bollingerK       = 2.0
)

// Frame holds indicator columns aligned with the bars they were computed
// from. Warmup entries are NaN.
type Frame struct {
	MA20     []float64
	MA50     []float64
	ATR      []float64
	BBLower  []float64
	BBMiddle []float64
	BBUpper  []float64
}

// Augment computes the moving averages, ATR and Bollinger bands for bars.
func Augment(bars []market.Bar, atrPeriod int) (*Frame, error) {
	if atrPeriod <= 0 {
		return nil, market.Configf("atr period must be positive, got %d", atrPeriod)
	}
	f := &Frame{
		MA20: Series(NewMA(20), bars),
		MA50: Series(NewMA(50), bars),
		ATR:  Series(NewATR(atrPeriod), bars),
	}

	bb := NewBollinger(bollingerPeriod, bollingerK)
	f.BBLower = make([]float64, len(bars))
	f.BBMiddle = make([]float64, len(bars))
	f.BBUpper = make([]float64, len(bars))
	for i, b := range bars {
		bb.Update(b)
		if !bb.Ready() {
			f.BBLower[i], f.BBMiddle[i], f.BBUpper[i] = nan, nan, nan
			continue
		}
		f.BBLower[i], f.BBMiddle[i], f.BBUpper[i] = bb.Bands()
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.MA20) }

// FirstReady returns the index of the first row where every column has a
// value, or -1 if there is none.
func (f *Frame) FirstReady() int {
	for i := 0; i < f.Len(); i++ {
		if !math.IsNaN(f.MA20[i]) && !math.IsNaN(f.MA50[i]) && !math.IsNaN(f.ATR[i]) && !math.IsNaN(f.BBMiddle[i]) {
			return i
		}
	}
	return -1
}

// Slice returns the rows [from, len).
func (f *Frame) Slice(from int) *Frame {
	return &Frame{
		MA20:     f.MA20[from:],
		MA50:     f.MA50[from:],
		ATR:      f.ATR[from:],
		BBLower:  f.BBLower[from:],
		BBMiddle: f.BBMiddle[from:],
		BBUpper:  f.BBUpper[from:],
	}
}

// Reference methods for a dynamic grid centre.
const (
	RefMA20     = "ma_20"
	RefMA50     = "ma_50"
	RefBBMiddle = "bb_middle"
	RefHLC3     = "hlc3"
	RefClose    = "close"
)

// ReferenceMethods lists the accepted reference methods.
var ReferenceMethods = []string{RefMA20, RefMA50, RefBBMiddle, RefHLC3, RefClose}

// ReferencePrice returns the grid centre from the last bar of the series.
// Methods that need an indicator fall back to the last close while the
// indicator is still warming up.
func ReferencePrice(bars []market.Bar, f *Frame, method string) (float64, error) {
	if len(bars) == 0 {
		return 0, fmt.Errorf("reference price: %w", market.ErrInsufficientData)
	}
	last := len(bars) - 1
	pick := func(col []float64) float64 {
		if f == nil || len(col) != len(bars) || math.IsNaN(col[last]) {
			return bars[last].Close
		}
		return col[last]
	}

	switch method {
	case RefMA20:
		return pick(frameCol(f, func(f *Frame) []float64 { return f.MA20 })), nil
	case RefMA50:
		return pick(frameCol(f, func(f *Frame) []float64 { return f.MA50 })), nil
	case RefBBMiddle:
		return pick(frameCol(f, func(f *Frame) []float64 { return f.BBMiddle })), nil
	case RefHLC3:
		return bars[last].HLC3(), nil
	case RefClose:
		return bars[last].Close, nil
	default:
		return 0, market.Configf("unknown reference method %q", method)
	}
}

func frameCol(f *Frame, get func(*Frame) []float64) []float64 {
	if f == nil {
		return nil
	}
	return get(f)
}
