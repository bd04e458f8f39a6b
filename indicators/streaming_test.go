package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gridtrader/market"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mkBars(closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Time:  baseTime.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return bars
}

func TestSimpleMAStreaming(t *testing.T) {
	bars := mkBars(102, 105, 106, 108, 110)

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.False(t, ma.Ready())

		ma.Update(bars[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 1e-9)

		ma.Update(bars[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 1e-9)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	bars := mkBars(10, 11, 12, 13)
	ema := NewEMA(3)
	assert.Equal(t, "EMA(3)", ema.Name())

	for _, b := range bars[:3] {
		ema.Update(b)
	}
	require.True(t, ema.Ready())
	assert.InDelta(t, 11.0, ema.Value(), 1e-9)

	ema.Update(bars[3])
	assert.InDelta(t, (13.0-11.0)*0.5+11.0, ema.Value(), 1e-9)
}

func TestATRWilder(t *testing.T) {
	bars := []market.Bar{
		{Time: baseTime, Open: 10, High: 11, Low: 9, Close: 10},
		{Time: baseTime.Add(time.Hour), Open: 10, High: 12, Low: 10, Close: 11},
		{Time: baseTime.Add(2 * time.Hour), Open: 11, High: 11, Low: 8, Close: 9},
		{Time: baseTime.Add(3 * time.Hour), Open: 9, High: 10, Low: 9, Close: 10},
	}
	// True ranges: 2, 2, 3, 1.
	atr := NewATR(2)
	got := Series(atr, bars)

	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 2.0, got[1], 1e-9)
	assert.InDelta(t, (2.0*1+3)/2, got[2], 1e-9)
	assert.InDelta(t, (2.5*1+1)/2, got[3], 1e-9)
	assert.Equal(t, "ATR(2)", atr.Name())
}

func TestBollingerBands(t *testing.T) {
	bb := NewBollinger(4, 2)
	for _, b := range mkBars(2, 4, 4, 6) {
		bb.Update(b)
	}
	require.True(t, bb.Ready())

	lo, mid, hi := bb.Bands()
	sd := math.Sqrt((4.0 + 0 + 0 + 4) / 4)
	assert.InDelta(t, 4.0, mid, 1e-9)
	assert.InDelta(t, 4-2*sd, lo, 1e-9)
	assert.InDelta(t, 4+2*sd, hi, 1e-9)
}

func TestAugmentAndReference(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := mkBars(closes...)

	f, err := Augment(bars, 14)
	require.NoError(t, err)
	require.Equal(t, len(bars), f.Len())

	assert.True(t, math.IsNaN(f.MA20[18]))
	assert.InDelta(t, 109.5, f.MA20[19], 1e-9)
	assert.Equal(t, 49, f.FirstReady())
	assert.Equal(t, 11, f.Slice(49).Len())

	ref, err := ReferencePrice(bars, f, RefMA20)
	require.NoError(t, err)
	assert.InDelta(t, 149.5, ref, 1e-9)

	ref, err = ReferencePrice(bars, f, RefMA50)
	require.NoError(t, err)
	assert.InDelta(t, 134.5, ref, 1e-9)

	ref, err = ReferencePrice(bars, f, RefBBMiddle)
	require.NoError(t, err)
	assert.InDelta(t, 149.5, ref, 1e-9)

	ref, err = ReferencePrice(bars, f, RefHLC3)
	require.NoError(t, err)
	assert.InDelta(t, 159.0, ref, 1e-9)

	ref, err = ReferencePrice(bars[:5], nil, RefMA20)
	require.NoError(t, err)
	assert.Equal(t, 104.0, ref, "falls back to last close")

	_, err = ReferencePrice(bars, f, "vwap")
	assert.True(t, errors.Is(err, market.ErrConfiguration))

	_, err = ReferencePrice(nil, nil, RefClose)
	assert.True(t, errors.Is(err, market.ErrInsufficientData))

	_, err = Augment(bars, 0)
	assert.True(t, errors.Is(err, market.ErrConfiguration))
}
