package backtest

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/rustyeddy/gridtrader/market"
	"github.com/rustyeddy/gridtrader/sim"
)

// ReferenceStatic centres the grid on Params.ReferencePrice.
const ReferenceStatic = "static"

// Params is the flat parameter set of one backtest.
type Params struct {
	GridDistance   float64 `yaml:"grid_distance" json:"grid_distance" default:"5" validate:"gt=0"`
	GridRange      float64 `yaml:"grid_range" json:"grid_range" default:"50" validate:"gt=0"`
	ReferencePrice float64 `yaml:"reference_price" json:"reference_price"`
	ReferenceMode  string  `yaml:"reference_mode" json:"reference_mode" default:"static" validate:"oneof=static ma_20 ma_50 bb_middle hlc3 close"`

	InitialCash   float64 `yaml:"initial_cash" json:"initial_cash" default:"10000" validate:"gt=0"`
	MarginRate    float64 `yaml:"margin_rate" json:"margin_rate" default:"0.01" validate:"gt=0,lte=1"`
	MaxTrades     int     `yaml:"max_trades" json:"max_trades" default:"5" validate:"gt=0"`
	ATRMultiplier float64 `yaml:"atr_multiplier" json:"atr_multiplier" default:"1.5" validate:"gt=0"`
	TPSLRatio     float64 `yaml:"tp_sl_ratio" json:"tp_sl_ratio" default:"0.6" validate:"gt=0"`
	PositionSize  float64 `yaml:"position_size" json:"position_size" default:"100" validate:"gt=0"`

	MaxGridLevels    int `yaml:"max_grid_levels" json:"max_grid_levels" default:"1000" validate:"gt=0"`
	TargetGridLevels int `yaml:"target_grid_levels" json:"target_grid_levels" default:"500" validate:"gt=0,ltefield=MaxGridLevels"`

	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0"`
	StopBasis      string  `yaml:"stop_basis" json:"stop_basis" default:"grid" validate:"oneof=grid atr"`
	ATRPeriod      int     `yaml:"atr_period" json:"atr_period" default:"14" validate:"gt=0"`

	MinRR      float64 `yaml:"min_rr" json:"min_rr" validate:"gte=0"`
	MaxRiskPct float64 `yaml:"max_risk_pct" json:"max_risk_pct" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// DefaultParams returns Params with every default applied.
func DefaultParams() Params {
	var p Params
	_ = p.SetDefaults()
	return p
}

// SetDefaults fills zero-valued fields from their default tags.
func (p *Params) SetDefaults() error {
	return defaults.Set(p)
}

// Validate reports invalid fields as a configuration error.
func (p Params) Validate() error {
	if math.IsNaN(p.ReferencePrice) || math.IsInf(p.ReferencePrice, 0) {
		return market.Configf("reference_price must be finite")
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return market.Configf("%s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", market.ErrConfiguration, err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed max_grid_levels", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// SimConfig projects the simulator's share of the parameters.
func (p Params) SimConfig() sim.Config {
	return sim.Config{
		InitialCash:    p.InitialCash,
		MarginRate:     p.MarginRate,
		MaxTrades:      p.MaxTrades,
		ATRMultiplier:  p.ATRMultiplier,
		TPSLRatio:      p.TPSLRatio,
		PositionSize:   p.PositionSize,
		GridDistance:   p.GridDistance,
		CommissionRate: p.CommissionRate,
		StopBasis:      p.StopBasis,
		MinRR:          p.MinRR,
		MaxRiskPct:     p.MaxRiskPct,
	}
}
