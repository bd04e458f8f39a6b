package sim

// UnrealizedPL is the mark-to-market P&L of an open leg at price.
func UnrealizedPL(p *Position, price float64) float64 {
	return float64(p.Side) * p.Size * (price - p.EntryPrice)
}

// Commission is rate times the entry and exit notional.
func Commission(rate, size, entry, exit float64) float64 {
	return rate * size * (entry + exit)
}

// RealizedPL is the gross move of a closed leg less commission.
func RealizedPL(side Side, size, entry, exit, commission float64) float64 {
	return float64(side)*size*(exit-entry) - commission
}
