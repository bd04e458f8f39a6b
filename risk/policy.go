package risk

import "time"

// Policy bounds new hedge entries. Zero values disable the optional limits.
type Policy struct {
	// Exposure limits
	MaxOpenEntries int     // hedge entries with at least one open leg
	MarginRate     float64 // fraction of notional reserved per entry

	// Optional trade constraints
	MinRR      float64 // minimum reward:risk per leg
	MaxRiskPct float64 // max loss of one leg at its stop, as a fraction of equity
}

// EntryIntent describes a hedge entry about to be opened at Entry. Both legs
// share the same size and distances.
type EntryIntent struct {
	Now   time.Time
	Size  float64
	Entry float64

	StopDistance   float64
	TargetDistance float64
}

// AccountSnapshot is the simulator state the gate decides on.
type AccountSnapshot struct {
	Cash     float64
	Equity   float64
	Reserved float64 // margin held by open entries

	OpenEntries int
}

// Available is the cash not reserved as margin.
func (a AccountSnapshot) Available() float64 {
	return a.Cash - a.Reserved
}
