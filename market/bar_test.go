package market

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) Bar {
	return Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: o, High: h, Low: l, Close: c}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := []Bar{bar(0, 1, 2, 0.5, 1.5), bar(1, 1.5, 1.8, 1.2, 1.3)}
	require.NoError(t, Validate(good))
	require.NoError(t, Validate(nil))

	tests := []struct {
		name   string
		bars   []Bar
		index  int
		reason string
	}{
		{"high below low", []Bar{bar(0, 1, 0.9, 1.1, 1)}, 0, "high below low"},
		{"open outside", []Bar{bar(0, 3, 2, 1, 1.5)}, 0, "open outside"},
		{"close outside", []Bar{bar(0, 1.5, 2, 1, 0.5)}, 0, "close outside"},
		{"nan", []Bar{bar(0, 1, math.NaN(), 1, 1)}, 0, "non-finite"},
		{"zero time", []Bar{{Open: 1, High: 1, Low: 1, Close: 1}}, 0, "missing timestamp"},
		{"duplicate time", []Bar{bar(0, 1, 1, 1, 1), bar(0, 1, 1, 1, 1)}, 1, "not after"},
		{"backwards", []Bar{bar(2, 1, 1, 1, 1), bar(1, 1, 1, 1, 1)}, 1, "not after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.bars)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDataIntegrity))

			var die *DataIntegrityError
			require.True(t, errors.As(err, &die))
			assert.Equal(t, tt.index, die.Index)
			assert.Contains(t, die.Reason, tt.reason)
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	in := []Bar{bar(0, 1, 2, 0.5, 1.5)}
	out := Clone(in)
	out[0].Close = 99
	assert.Equal(t, 1.5, in[0].Close)
	assert.Nil(t, Clone(nil))
}

func TestBetween(t *testing.T) {
	t.Parallel()

	bars := []Bar{bar(0, 1, 1, 1, 1), bar(1, 1, 1, 1, 1), bar(2, 1, 1, 1, 1)}
	assert.Len(t, Between(bars, time.Time{}, time.Time{}), 3)
	got := Between(bars, bars[1].Time, bars[2].Time)
	require.Len(t, got, 1)
	assert.Equal(t, bars[1].Time, got[0].Time)
}

func TestMedianSpacingAndWeekend(t *testing.T) {
	t.Parallel()

	bars := []Bar{bar(0, 1, 1, 1, 1), bar(1, 1, 1, 1, 1), bar(3, 1, 1, 1, 1)}
	assert.Equal(t, time.Hour+30*time.Minute, MedianSpacing(bars))
	assert.Equal(t, time.Duration(0), MedianSpacing(bars[:1]))

	// 2024-01-02 is a Tuesday.
	assert.False(t, HasWeekendBars(bars))
	sat := Bar{Time: time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)}
	assert.True(t, HasWeekendBars(append(bars, sat)))
}

func TestIntervals(t *testing.T) {
	t.Parallel()

	d, err := ParseInterval("1h")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	g, err := Granularity("1D")
	require.NoError(t, err)
	assert.Equal(t, "D", g)

	iv, err := IntervalFromGranularity("M15")
	require.NoError(t, err)
	assert.Equal(t, "15m", iv)

	_, err = ParseInterval("7s")
	assert.Error(t, err)
}

func TestAssets(t *testing.T) {
	t.Parallel()

	all, err := Assets()
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	a, ok := LookupAsset("EURUSD=X")
	require.True(t, ok)
	assert.Equal(t, 1.174, a.Reference)
	assert.Equal(t, 0.005, a.GridDistance)
	assert.Equal(t, "EUR_USD", a.Instrument)

	b, ok := LookupAsset("eur_usd")
	require.True(t, ok)
	assert.Equal(t, a.Symbol, b.Symbol)

	_, ok = LookupAsset("NOPE")
	assert.False(t, ok)
}
