// Package sim replays bars through the hedged grid position state machine.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/pkg/id"
	"github.com/rustyeddy/gridtrader/risk"
)

// DefaultSeed seeds position IDs when no generator is supplied.
const DefaultSeed int64 = 1

// EquityPoint is the account state after one bar.
type EquityPoint struct {
	Time          time.Time `json:"time"`
	Cash          float64   `json:"cash"`
	Unrealized    float64   `json:"unrealized"`
	Equity        float64   `json:"equity"`
	MarginUsed    float64   `json:"margin_used"`
	Peak          float64   `json:"peak"`
	Drawdown      float64   `json:"drawdown"`
	OpenPositions int       `json:"open_positions"`
}

// Rejections counts skipped entries by cause. An entry rejected for more
// than one reason is counted under each.
type Rejections struct {
	Capacity int `json:"capacity"`
	Margin   int `json:"margin"`
	Policy   int `json:"policy"`
}

// Total sums the rejection counts.
func (r Rejections) Total() int { return r.Capacity + r.Margin + r.Policy }

// Result is the output of a completed run.
type Result struct {
	Ledger         []Position    `json:"ledger"`
	Equity         []EquityPoint `json:"equity"`
	FinalCash      float64       `json:"final_cash"`
	Entries        int           `json:"entries"`
	Rejections     Rejections    `json:"rejections"`
	MaxOpenEntries int           `json:"max_open_entries"`
}

// Engine runs simulations for one configuration. It holds no per-run state,
// so one Engine may serve concurrent runs.
type Engine struct {
	cfg    Config
	log    zerolog.Logger
	atr    []float64
	newIDs func() id.Generator
}

type Option func(*Engine)

// WithLogger sets the logger for per-bar diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithATR supplies the ATR series, aligned with the bars, used by the ATR
// stop basis.
func WithATR(atr []float64) Option {
	return func(e *Engine) { e.atr = atr }
}

// WithIDs replaces the position ID generator factory. It is called once per
// run.
func WithIDs(f func() id.Generator) Option {
	return func(e *Engine) { e.newIDs = f }
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StopBasis == "" {
		cfg.StopBasis = StopBasisGrid
	}
	e := &Engine{
		cfg:    cfg,
		log:    zerolog.Nop(),
		newIDs: defaultIDs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func defaultIDs() id.Generator { return id.NewSequence(DefaultSeed) }

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// entry is a hedge pair. It holds its margin until both legs close.
type entry struct {
	id     string
	margin float64
	open   int
}

// run is the mutable state of a single simulation.
type run struct {
	cfg    Config
	policy risk.Policy
	log    zerolog.Logger
	ids    id.Generator

	cash     float64
	reserved float64
	peak     float64
	open     []*Position
	entries  map[string]*entry

	res Result
}

// Run processes bars in order and returns the closed-trade ledger and the
// per-bar equity series. signals must be aligned with bars.
//
// A malformed bar aborts the run with a *market.DataIntegrityError and no
// partial result. Cancelling ctx abandons the run between bars.
func (e *Engine) Run(ctx context.Context, bars []market.Bar, signals []bool) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("simulate: %w: no bars", market.ErrInsufficientData)
	}
	if len(signals) != len(bars) {
		return nil, market.Configf("signals length %d does not match bars %d", len(signals), len(bars))
	}
	if e.cfg.StopBasis == StopBasisATR && len(e.atr) != len(bars) {
		return nil, market.Configf("atr stop basis needs %d atr values, got %d", len(bars), len(e.atr))
	}

	policy := risk.Policy{
		MaxOpenEntries: e.cfg.MaxTrades,
		MarginRate:     e.cfg.MarginRate,
		MinRR:          e.cfg.MinRR,
		MaxRiskPct:     e.cfg.MaxRiskPct,
	}
	r := &run{
		cfg:     e.cfg,
		policy:  policy,
		log:     e.log,
		ids:     e.newIDs(),
		cash:    e.cfg.InitialCash,
		peak:    e.cfg.InitialCash,
		entries: make(map[string]*entry),
	}
	r.res.Equity = make([]EquityPoint, 0, len(bars))

	for i := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var prev *market.Bar
		if i > 0 {
			prev = &bars[i-1]
		}
		b := bars[i]
		if err := b.Check(i, prev); err != nil {
			return nil, err
		}

		r.exits(i, b)
		if signals[i] {
			atr := 0.0
			if e.atr != nil {
				atr = e.atr[i]
			}
			r.enter(i, b, atr)
		}
		r.mark(b)
	}

	last := len(bars) - 1
	r.closeAll(last, bars[last])

	r.res.FinalCash = r.cash
	e.log.Debug().
		Int("bars", len(bars)).
		Int("entries", r.res.Entries).
		Int("trades", len(r.res.Ledger)).
		Int("rejected", r.res.Rejections.Total()).
		Float64("final_cash", r.cash).
		Msg("simulation complete")

	return &r.res, nil
}

// exits closes every open leg whose stop or target the bar reaches, in the
// order the legs were opened.
func (r *run) exits(i int, b market.Bar) {
	kept := r.open[:0]
	for _, p := range r.open {
		price, reason, hit := p.CheckExit(b)
		if !hit {
			kept = append(kept, p)
			continue
		}
		r.close(p, i, b, price, reason)
	}
	clear(r.open[len(kept):])
	r.open = kept
}

func (r *run) openEntries() int { return len(r.entries) }

// enter opens a short and a long leg at the bar's close when the risk gate
// allows it.
func (r *run) enter(i int, b market.Bar, atr float64) {
	stopDist := r.cfg.StopDistance(atr)
	targetDist := stopDist * r.cfg.TPSLRatio

	d := risk.Evaluate(r.policy, risk.EntryIntent{
		Now:            b.Time,
		Size:           r.cfg.PositionSize,
		Entry:          b.Close,
		StopDistance:   stopDist,
		TargetDistance: targetDist,
	}, risk.AccountSnapshot{
		Cash:        r.cash,
		Equity:      r.equity(b.Close),
		Reserved:    r.reserved,
		OpenEntries: r.openEntries(),
	})
	if !d.Allowed {
		r.reject(i, b, d)
		return
	}

	ent := &entry{id: r.ids.At(b.Time), margin: d.RequiredMargin, open: 2}
	r.entries[ent.id] = ent
	r.reserved += ent.margin
	r.res.Entries++

	for _, side := range []Side{Short, Long} {
		p := &Position{
			ID:         r.ids.At(b.Time),
			EntryID:    ent.id,
			Side:       side,
			Status:     StatusOpen,
			Size:       r.cfg.PositionSize,
			EntryPrice: b.Close,
			StopLoss:   b.Close - float64(side)*stopDist,
			TakeProfit: b.Close + float64(side)*targetDist,
			Margin:     ent.margin / 2,
			OpenTime:   b.Time,
			OpenIndex:  i,
		}
		r.open = append(r.open, p)
	}

	if n := r.openEntries(); n > r.res.MaxOpenEntries {
		r.res.MaxOpenEntries = n
	}
	r.log.Debug().
		Int("bar", i).
		Str("entry", ent.id).
		Float64("price", b.Close).
		Float64("stop_distance", stopDist).
		Float64("margin", ent.margin).
		Msg("hedge opened")
}

func (r *run) reject(i int, b market.Bar, d risk.Decision) {
	for _, v := range d.Violations {
		switch v.Code {
		case risk.CodeTooManyOpen:
			r.res.Rejections.Capacity++
		case risk.CodeNoMargin:
			r.res.Rejections.Margin++
		default:
			r.res.Rejections.Policy++
		}
		r.log.Debug().
			Int("bar", i).
			Time("time", b.Time).
			Str("code", v.Code).
			Msg(v.Msg)
	}
}

func (r *run) close(p *Position, i int, b market.Bar, price float64, reason Reason) {
	p.Status = StatusClosed
	p.ClosePrice = price
	p.CloseTime = b.Time
	p.CloseIndex = i
	p.Reason = reason
	p.Commission = Commission(r.cfg.CommissionRate, p.Size, p.EntryPrice, price)
	p.RealizedPL = RealizedPL(p.Side, p.Size, p.EntryPrice, price, p.Commission)

	r.cash += p.RealizedPL
	if ent, ok := r.entries[p.EntryID]; ok {
		ent.open--
		if ent.open <= 0 {
			r.reserved -= ent.margin
			delete(r.entries, p.EntryID)
		}
	}
	if len(r.entries) == 0 {
		r.reserved = 0
	}

	r.res.Ledger = append(r.res.Ledger, *p)
}

func (r *run) unrealized(price float64) float64 {
	u := 0.0
	for _, p := range r.open {
		u += UnrealizedPL(p, price)
	}
	return u
}

func (r *run) equity(price float64) float64 {
	return r.cash + r.unrealized(price)
}

// mark values open legs at the bar's close and appends an equity point.
func (r *run) mark(b market.Bar) {
	u := r.unrealized(b.Close)
	eq := r.cash + u
	if eq > r.peak {
		r.peak = eq
	}
	dd := 0.0
	if r.peak > 0 {
		dd = (r.peak - eq) / r.peak
	}
	r.res.Equity = append(r.res.Equity, EquityPoint{
		Time:          b.Time,
		Cash:          r.cash,
		Unrealized:    u,
		Equity:        eq,
		MarginUsed:    r.reserved,
		Peak:          r.peak,
		Drawdown:      dd,
		OpenPositions: len(r.open),
	})
}

// closeAll force-closes the remaining legs at the final close.
func (r *run) closeAll(i int, b market.Bar) {
	for _, p := range r.open {
		r.close(p, i, b, b.Close, ReasonEndOfData)
	}
	r.open = nil
}
