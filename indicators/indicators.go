// Package indicators provides streaming technical indicators over bars and
// the batch augmentation used to pick a dynamic grid reference.
package indicators

import "github.com/rustyeddy/gridtrader/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to reuse across runs after Reset.
type Indicator interface {
	// Name returns a stable identifier like "MA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 before warmup completes.
	Value() float64
}

// Series runs ind over bars and returns one value per bar, NaN while the
// indicator is warming up.
func Series(ind Indicator, bars []market.Bar) []float64 {
	ind.Reset()
	out := make([]float64, len(bars))
	for i, b := range bars {
		ind.Update(b)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = nan
		}
	}
	return out
}
