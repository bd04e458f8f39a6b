package market

import (
	"slices"
	"strings"
	"time"
)

type interval struct {
	d    time.Duration
	gran string
}

// Supported interval strings and their OANDA granularity.
var intervals = map[string]interval{
	"1m":  {time.Minute, "M1"},
	"5m":  {5 * time.Minute, "M5"},
	"15m": {15 * time.Minute, "M15"},
	"30m": {30 * time.Minute, "M30"},
	"1h":  {time.Hour, "H1"},
	"4h":  {4 * time.Hour, "H4"},
	"1d":  {24 * time.Hour, "D"},
	"1wk": {7 * 24 * time.Hour, "W"},
	"1mo": {30 * 24 * time.Hour, "M"},
}

// ParseInterval converts an interval string such as "1h" or "1d" to its
// nominal duration.
func ParseInterval(s string) (time.Duration, error) {
	iv, ok := intervals[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, Configf("unsupported interval %q", s)
	}
	return iv.d, nil
}

// Granularity maps an interval string to the OANDA candle granularity.
func Granularity(s string) (string, error) {
	iv, ok := intervals[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", Configf("unsupported interval %q", s)
	}
	return iv.gran, nil
}

// IntervalFromGranularity is the inverse of Granularity.
func IntervalFromGranularity(gran string) (string, error) {
	for k, iv := range intervals {
		if iv.gran == gran {
			return k, nil
		}
	}
	return "", Configf("unsupported granularity %q", gran)
}

// MedianSpacing returns the median gap between consecutive bars, or zero for
// fewer than two bars.
func MedianSpacing(bars []Bar) time.Duration {
	if len(bars) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		gaps = append(gaps, bars[i].Time.Sub(bars[i-1].Time))
	}
	slices.Sort(gaps)
	n := len(gaps)
	if n%2 == 1 {
		return gaps[n/2]
	}
	return (gaps[n/2-1] + gaps[n/2]) / 2
}

// HasWeekendBars reports whether any bar falls on a Saturday or Sunday (UTC).
func HasWeekendBars(bars []Bar) bool {
	for _, b := range bars {
		switch b.Time.UTC().Weekday() {
		case time.Saturday, time.Sunday:
			return true
		}
	}
	return false
}
