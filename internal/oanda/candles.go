package oanda

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/gridtrader/market"
)

var _ market.Source = (*Client)(nil)

func (c *Client) DownloadCandlesToCSV(ctx context.Context, opts CandlesOptions, w io.Writer) (int, error) {
	cr, price, err := c.candles(ctx, opts)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	// Canonical candle CSV (single OHLC set):
	// time,instrument,granularity,complete,volume,o,h,l,c
	if err := cw.Write([]string{"time", "instrument", "granularity", "complete", "volume", "o", "h", "l", "c"}); err != nil {
		return 0, err
	}

	written := 0
	for _, cd := range cr.Candles {
		px, err := cd.pick(price)
		if err != nil {
			return written, err
		}
		if px == nil {
			continue
		}

		row := []string{
			cd.Time,
			cr.Instrument,
			cr.Granularity,
			strconv.FormatBool(cd.Complete),
			strconv.Itoa(cd.Volume),
			px.O, px.H, px.L, px.C,
		}
		if err := cw.Write(row); err != nil {
			return written, err
		}
		written++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, err
	}

	return written, nil
}

// Instrument maps a symbol to an OANDA instrument name: the asset table's
// instrument if it has one, otherwise EURUSD and EUR/USD become EUR_USD.
func Instrument(symbol string) string {
	if a, ok := market.LookupAsset(symbol); ok && a.Instrument != "" {
		return a.Instrument
	}
	s := strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(symbol), "=X"))
	s = strings.NewReplacer("/", "_", "-", "_").Replace(s)
	if len(s) == 6 && !strings.Contains(s, "_") {
		s = s[:3] + "_" + s[3:]
	}
	return s
}

// Fetch returns complete mid-price candles for symbol in [start, end),
// paging through the API MaxCandles at a time. A zero end means now.
func (c *Client) Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) ([]market.Bar, error) {
	gran, err := market.Granularity(interval)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, market.Configf("oanda: start time is required")
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	instrument := Instrument(symbol)

	var bars []market.Bar
	opts := CandlesOptions{
		Instrument:  instrument,
		Granularity: gran,
		Price:       "M",
		From:        start,
		Count:       MaxCandles,
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cr, _, err := c.candles(ctx, opts)
		if err != nil {
			return nil, err
		}

		last := time.Time{}
		done := len(cr.Candles) < opts.Count
		for _, cd := range cr.Candles {
			ts, err := market.ParseTime(cd.Time)
			if err != nil {
				return nil, fmt.Errorf("oanda: candle time: %w", err)
			}
			last = ts
			if !ts.Before(end) {
				done = true
				break
			}
			if !cd.Complete || cd.Mid == nil {
				continue
			}
			b, err := toBar(ts, cd)
			if err != nil {
				return nil, err
			}
			bars = append(bars, b)
		}
		if done || last.IsZero() || !last.After(opts.From) {
			break
		}
		opts.From = last
		opts.ExcludeFirst = true
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("oanda %s %s: %w", instrument, gran, market.ErrNoData)
	}
	if err := market.Validate(bars); err != nil {
		return nil, err
	}
	c.log().Info().
		Str("instrument", instrument).
		Str("granularity", gran).
		Int("bars", len(bars)).
		Msg("oanda candles fetched")
	return bars, nil
}

func toBar(ts time.Time, cd candle) (market.Bar, error) {
	b := market.Bar{Time: ts, Volume: float64(cd.Volume)}
	for _, p := range []struct {
		s   string
		dst *float64
	}{
		{cd.Mid.O, &b.Open},
		{cd.Mid.H, &b.High},
		{cd.Mid.L, &b.Low},
		{cd.Mid.C, &b.Close},
	} {
		v, err := strconv.ParseFloat(p.s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("oanda: bad price %q at %s", p.s, cd.Time)
		}
		*p.dst = v
	}
	return b, nil
}
