package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/gridtrader/backtest"
)

// RunRecord mirrors the backtest_runs table.
type RunRecord struct {
	RunID    string
	Created  time.Time
	Interval string
	Dataset  string

	Instrument string
	Params     []byte // backtest.Params as JSON

	// Grid
	Reference    float64
	GridDistance float64
	GridRange    float64
	Levels       int
	Signals      int

	Start time.Time
	End   time.Time
	Bars  int

	// Results
	Trades   int
	Wins     int
	Losses   int
	Entries  int
	Rejected int

	StartBalance float64
	EndBalance   float64

	NetPL        float64
	ReturnPct    float64
	WinRate      float64
	ProfitFactor float64
	MaxDDPct     float64
	Sharpe       float64

	Notes       []string
	NextActions []string
}

// Meta describes where a run's bars came from.
type Meta struct {
	Instrument string
	Interval   string
	Dataset    string
}

// FromOutcome flattens a completed run into journal rows.
func FromOutcome(o *backtest.Outcome, meta Meta) (RunRecord, []TradeRecord, []EquitySnapshot, error) {
	if o == nil || o.Result == nil {
		return RunRecord{}, nil, nil, fmt.Errorf("journal: run has no result")
	}
	params, err := json.Marshal(o.Params)
	if err != nil {
		return RunRecord{}, nil, nil, err
	}

	r := o.Report
	rec := RunRecord{
		RunID:        o.RunID,
		Created:      o.Started,
		Interval:     meta.Interval,
		Dataset:      meta.Dataset,
		Instrument:   meta.Instrument,
		Params:       params,
		Reference:    o.Reference,
		GridDistance: o.Params.GridDistance,
		GridRange:    o.Params.GridRange,
		Levels:       len(o.Levels),
		Signals:      o.SignalCount,
		Start:        r.Start,
		End:          r.End,
		Bars:         r.Bars,
		Trades:       r.Trades,
		Wins:         r.Wins,
		Losses:       r.Losses,
		Entries:      o.Result.Entries,
		Rejected:     o.Result.Rejections.Total(),
		StartBalance: r.InitialCash,
		EndBalance:   r.FinalEquity,
		NetPL:        r.FinalEquity - r.InitialCash,
		ReturnPct:    r.ReturnPct,
		WinRate:      r.WinRatePct,
		ProfitFactor: r.ProfitFactor,
		MaxDDPct:     r.MaxDrawdownPct,
		Sharpe:       r.SharpeRatio,
	}

	trades := make([]TradeRecord, 0, len(o.Result.Ledger))
	for _, p := range o.Result.Ledger {
		trades = append(trades, TradeRecord{
			RunID:      o.RunID,
			TradeID:    p.ID,
			EntryID:    p.EntryID,
			Instrument: meta.Instrument,
			Side:       p.Side.String(),
			Units:      p.Size,
			EntryPrice: p.EntryPrice,
			ExitPrice:  p.ClosePrice,
			StopLoss:   p.StopLoss,
			TakeProfit: p.TakeProfit,
			OpenTime:   p.OpenTime,
			CloseTime:  p.CloseTime,
			Commission: p.Commission,
			RealizedPL: p.RealizedPL,
			Reason:     string(p.Reason),
		})
	}

	equity := make([]EquitySnapshot, 0, len(o.Result.Equity))
	for _, e := range o.Result.Equity {
		equity = append(equity, EquitySnapshot{
			RunID:         o.RunID,
			Time:          e.Time,
			Balance:       e.Cash,
			Equity:        e.Equity,
			Unrealized:    e.Unrealized,
			MarginUsed:    e.MarginUsed,
			FreeMargin:    e.Equity - e.MarginUsed,
			Drawdown:      e.Drawdown,
			OpenPositions: e.OpenPositions,
		})
	}
	return rec, trades, equity, nil
}

var runOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrgTemplate = template.Must(template.New("backtest").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// Org renders the run as an org-mode entry.
func (v *RunRecord) Org() (string, error) {
	buf := new(bytes.Buffer)
	if err := runOrgTemplate.Execute(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteOrg writes the org-mode entry to path.
func (v *RunRecord) WriteOrg(path string) error {
	s, err := v.Org()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const RunOrgTemplate = `
* BACKTEST: Grid {{.Instrument}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    hedged_grid
:INTERVAL:    {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:INSTRUMENT:  {{.Instrument}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(no-losses){{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Grid Parameters
| Parameter | Value |
|-----------+-------|
| Reference | {{printf "%g" .Reference}} |
| Distance  | {{printf "%g" .GridDistance}} |
| Range     | {{printf "%g" .GridRange}} |
| Levels    | {{.Levels}} |
| Params    | {{printf "%s" .Params}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Sharpe:           *{{printf "%.2f" .Sharpe}}*

** Trade Distribution
| Outcome  | Count |
|----------+-------|
| Wins     | {{.Wins}} |
| Losses   | {{.Losses}} |
| Total    | {{.Trades}} |
| Entries  | {{.Entries}} |
| Rejected | {{.Rejected}} |

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}
** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
