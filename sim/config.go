package sim

import (
	"math"

	"github.com/rustyeddy/gridtrader/market"
)

// Stop distance bases.
const (
	StopBasisGrid = "grid"
	StopBasisATR  = "atr"
)

// Config is the immutable parameter set of one simulation run.
type Config struct {
	InitialCash    float64
	MarginRate     float64
	MaxTrades      int
	ATRMultiplier  float64
	TPSLRatio      float64
	PositionSize   float64
	GridDistance   float64
	CommissionRate float64

	// StopBasis selects the unit the stop distance is measured in: grid
	// distance (default) or the ATR of the entry bar.
	StopBasis string

	// Optional entry filters, disabled at zero.
	MinRR      float64
	MaxRiskPct float64
}

// DefaultConfig mirrors the stock grid settings.
func DefaultConfig() Config {
	return Config{
		InitialCash:   10000,
		MarginRate:    0.01,
		MaxTrades:     5,
		ATRMultiplier: 1.5,
		TPSLRatio:     0.6,
		PositionSize:  100,
		GridDistance:  5,
		StopBasis:     StopBasisGrid,
	}
}

// Validate reports the first invalid field as a configuration error.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"initial cash", c.InitialCash},
		{"margin rate", c.MarginRate},
		{"atr multiplier", c.ATRMultiplier},
		{"tp/sl ratio", c.TPSLRatio},
		{"position size", c.PositionSize},
		{"grid distance", c.GridDistance},
	}
	for _, p := range positive {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return market.Configf("%s must be positive, got %v", p.name, p.v)
		}
	}
	if c.MaxTrades <= 0 {
		return market.Configf("max trades must be positive, got %d", c.MaxTrades)
	}
	if c.CommissionRate < 0 || math.IsNaN(c.CommissionRate) {
		return market.Configf("commission rate must not be negative, got %v", c.CommissionRate)
	}
	if c.MinRR < 0 || c.MaxRiskPct < 0 {
		return market.Configf("entry filters must not be negative")
	}
	switch c.StopBasis {
	case "", StopBasisGrid, StopBasisATR:
	default:
		return market.Configf("unknown stop basis %q", c.StopBasis)
	}
	return nil
}

// StopDistance is the stop-loss offset from entry. atr is the entry bar's ATR
// and is only consulted for the ATR basis; a missing or non-positive value
// falls back to grid distance.
func (c Config) StopDistance(atr float64) float64 {
	if c.StopBasis == StopBasisATR && atr > 0 && !math.IsNaN(atr) && !math.IsInf(atr, 0) {
		return c.ATRMultiplier * atr
	}
	return c.ATRMultiplier * c.GridDistance
}
