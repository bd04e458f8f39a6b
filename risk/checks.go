package risk

import "fmt"

// Violation codes.
const (
	CodeNoSize      = "NO_SIZE"
	CodeTooManyOpen = "TOO_MANY_OPEN_TRADES"
	CodeNoMargin    = "INSUFFICIENT_MARGIN"
	CodeRRTooLow    = "RR_TOO_LOW"
	CodeRiskTooHigh = "RISK_TOO_HIGH"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	RequiredMargin float64
	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Has reports whether the decision carries a violation with code.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Evaluate decides whether a hedge entry may open. A rejection is a normal
// outcome and is reported through the returned Decision only.
func Evaluate(p Policy, intent EntryIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if intent.Size <= 0 || intent.Entry <= 0 {
		d.add(CodeNoSize, "size and entry price must be positive")
		return d
	}

	stop := intent.Entry - intent.StopDistance
	target := intent.Entry + intent.TargetDistance
	d.RequiredMargin = RequiredMargin(intent.Size, intent.Entry, p.MarginRate)
	d.PlannedRisk = PlannedRisk(intent.Size, intent.Entry, stop)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Equity)
	d.PlannedRR = RR(intent.Entry, stop, target)

	if acct.OpenEntries >= p.MaxOpenEntries {
		d.add(CodeTooManyOpen,
			fmt.Sprintf("open entries %d >= max %d", acct.OpenEntries, p.MaxOpenEntries))
	}
	if avail := acct.Available(); d.RequiredMargin > avail {
		d.add(CodeNoMargin,
			fmt.Sprintf("margin %.2f exceeds available %.2f", d.RequiredMargin, avail))
	}
	if p.MinRR > 0 && d.PlannedRR < p.MinRR {
		d.add(CodeRRTooLow,
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add(CodeRiskTooHigh,
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
				100*d.PlannedRiskPct, 100*p.MaxRiskPct))
	}
	return d
}
