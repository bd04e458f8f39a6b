package market

import (
	"math"
	"time"
)

// Bar is one OHLCV sample of a price series.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// HLC3 is the typical price (high+low+close)/3.
func (b Bar) HLC3() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Check validates a single bar against its predecessor. prev may be nil for
// the first bar.
func (b Bar) Check(i int, prev *Bar) error {
	bad := func(reason string) error {
		return &DataIntegrityError{Index: i, Time: b.Time, Reason: reason}
	}

	if b.Time.IsZero() {
		return bad("missing timestamp")
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return bad("non-finite price")
		}
	}
	if b.High < b.Low {
		return bad("high below low")
	}
	if b.Open < b.Low || b.Open > b.High {
		return bad("open outside [low, high]")
	}
	if b.Close < b.Low || b.Close > b.High {
		return bad("close outside [low, high]")
	}
	if prev != nil && !b.Time.After(prev.Time) {
		return bad("timestamp not after previous bar")
	}
	return nil
}

// Validate checks a whole sequence and returns the first violation as a
// *DataIntegrityError.
func Validate(bars []Bar) error {
	for i := range bars {
		var prev *Bar
		if i > 0 {
			prev = &bars[i-1]
		}
		if err := bars[i].Check(i, prev); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy of bars that shares no memory with the input.
func Clone(bars []Bar) []Bar {
	if bars == nil {
		return nil
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out
}

// Closes extracts the close price series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Between returns the bars with start <= Time < end. A zero bound is open.
func Between(bars []Bar, start, end time.Time) []Bar {
	var out []Bar
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
