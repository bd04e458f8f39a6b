package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk is the loss of one leg of the given size if its stop is hit.
func PlannedRisk(size, entry, stop float64) float64 {
	return size * abs(entry-stop)
}

// RR is reward over risk for a single leg.
func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RiskPct expresses a planned loss as a fraction of equity.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

// RequiredMargin is the margin reserved for one hedge entry.
func RequiredMargin(size, price, marginRate float64) float64 {
	return size * price * marginRate
}
