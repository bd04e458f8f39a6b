// Package grid builds symmetric price ladders and detects the bars whose
// range touches one of their levels.
package grid

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/gridtrader/market"
)

const (
	DefaultMaxLevels    = 1000
	DefaultTargetLevels = 500
)

type options struct {
	maxLevels    int
	targetLevels int
	log          zerolog.Logger
}

// Option tunes Build.
type Option func(*options)

// WithMaxLevels sets the level count above which the ladder is down-sampled.
func WithMaxLevels(n int) Option { return func(o *options) { o.maxLevels = n } }

// WithTargetLevels sets the approximate level count after down-sampling.
func WithTargetLevels(n int) Option { return func(o *options) { o.targetLevels = n } }

// WithLogger reports down-sampling at warn level.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// Build returns the ascending levels reference-halfRange, +spacing, ... up to
// and including reference+halfRange. One spacing of overshoot is allowed so
// the top boundary is always covered.
//
// Level arithmetic is decimal, so 1.0±0.5 in steps of 0.1 yields exactly
// 0.5, 0.6, ..., 1.5.
func Build(reference, spacing, halfRange float64, opts ...Option) ([]float64, error) {
	o := options{
		maxLevels:    DefaultMaxLevels,
		targetLevels: DefaultTargetLevels,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case !finite(reference):
		return nil, market.Configf("reference price must be finite, got %v", reference)
	case !finite(spacing) || spacing <= 0:
		return nil, market.Configf("grid spacing must be positive, got %v", spacing)
	case !finite(halfRange) || halfRange <= 0:
		return nil, market.Configf("grid range must be positive, got %v", halfRange)
	case o.maxLevels <= 0 || o.targetLevels <= 0:
		return nil, market.Configf("grid level limits must be positive (max %d, target %d)", o.maxLevels, o.targetLevels)
	}

	ref := decimal.NewFromFloat(reference)
	step := decimal.NewFromFloat(spacing)
	span := decimal.NewFromFloat(halfRange)

	start := ref.Sub(span)
	stop := ref.Add(span).Add(step)

	// The full ladder has ceil((stop-start)/step) levels. When that exceeds
	// the limit only every k-th index is generated, so the cost depends on
	// the kept levels and never on the spacing.
	n := stop.Sub(start).Div(step).Ceil()
	stride := decimal.NewFromInt(1)
	if n.GreaterThan(decimal.NewFromInt(int64(o.maxLevels))) {
		stride = n.Div(decimal.NewFromInt(int64(o.targetLevels))).Ceil()
	}

	levels := make([]float64, 0, min(o.maxLevels, o.targetLevels)+1)
	for i := decimal.Zero; i.LessThan(n); i = i.Add(stride) {
		v := start.Add(step.Mul(i))
		if v.GreaterThanOrEqual(stop) {
			break
		}
		f, _ := v.Float64()
		// Adjacent levels can round to the same float64 when the reference
		// dwarfs the spacing.
		if k := len(levels); k > 0 && f <= levels[k-1] {
			continue
		}
		levels = append(levels, f)
	}

	if !stride.Equal(decimal.NewFromInt(1)) {
		o.log.Warn().
			Str("levels", n.String()).
			Int("max", o.maxLevels).
			Int("kept", len(levels)).
			Str("stride", stride.String()).
			Msg("grid down-sampled")
	}
	return levels, nil
}

// Detect flags each bar whose [low, high] range contains at least one level.
// levels must be ascending. An empty grid flags nothing.
func Detect(bars []market.Bar, levels []float64) []bool {
	out := make([]bool, len(bars))
	if len(levels) == 0 {
		return out
	}
	for i, b := range bars {
		out[i] = Crosses(b.Low, b.High, levels)
	}
	return out
}

// Crosses reports whether any level lies in [min(a,b), max(a,b)].
func Crosses(a, b float64, levels []float64) bool {
	lo, hi := math.Min(a, b), math.Max(a, b)
	j := sort.SearchFloat64s(levels, lo)
	return j < len(levels) && levels[j] <= hi
}

// Count returns the number of true signals.
func Count(signals []bool) int {
	n := 0
	for _, s := range signals {
		if s {
			n++
		}
	}
	return n
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
