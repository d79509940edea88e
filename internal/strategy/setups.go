package strategy

import (
	"fmt"
	"math"

	"nobitex-trader/internal/series"
)

// Indicator column naming convention, shared with the indicator package:
// atr_<period>, supertrend_<period>_<multiplier> and
// supertrend_dir_<period>_<multiplier>. Setup properties carry the same
// numbers the nested indicator declaration does, so handlers rebuild the
// column names from their own props.

func atrCol(p Props) string {
	return fmt.Sprintf("atr_%d", p.Int("atr_period", 14))
}

func supertrendCol(p Props) string {
	return fmt.Sprintf("supertrend_%d_%g", p.Int("period", 10), p.Float("multiplier", 3))
}

func supertrendDirCol(p Props) string {
	return fmt.Sprintf("supertrend_dir_%d_%g", p.Int("period", 10), p.Float("multiplier", 3))
}

func emaCol(period int) string { return fmt.Sprintf("ema_%d", period) }

// SupertrendEntry signals +1 when the supertrend direction flips up and -1
// when it flips down.
func SupertrendEntry(klines, indicators *series.Frame, props Props) (*series.Frame, error) {
	dirCol := supertrendDirCol(props)
	dir, ok := indicators.Col(dirCol)
	if !ok {
		return nil, fmt.Errorf("indicators table has no column %s", dirCol)
	}
	out := series.New(klines.Index())
	sig := make([]float64, klines.Len())
	for i := 1; i < len(dir); i++ {
		if math.IsNaN(dir[i]) || math.IsNaN(dir[i-1]) {
			continue
		}
		if dir[i-1] < 0 && dir[i] > 0 {
			sig[i] = 1
		} else if dir[i-1] > 0 && dir[i] < 0 {
			sig[i] = -1
		}
	}
	if err := out.SetCol("signal", sig); err != nil {
		return nil, err
	}
	return out, nil
}

// EMACrossEntry signals on fast/slow EMA crossovers.
func EMACrossEntry(klines, indicators *series.Frame, props Props) (*series.Frame, error) {
	fastCol := emaCol(props.Int("fast", 9))
	slowCol := emaCol(props.Int("slow", 21))
	fast, ok := indicators.Col(fastCol)
	if !ok {
		return nil, fmt.Errorf("indicators table has no column %s", fastCol)
	}
	slow, ok := indicators.Col(slowCol)
	if !ok {
		return nil, fmt.Errorf("indicators table has no column %s", slowCol)
	}
	out := series.New(klines.Index())
	sig := make([]float64, klines.Len())
	for i := 1; i < klines.Len(); i++ {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) || math.IsNaN(fast[i-1]) || math.IsNaN(slow[i-1]) {
			continue
		}
		if fast[i-1] <= slow[i-1] && fast[i] > slow[i] {
			sig[i] = 1
		} else if fast[i-1] >= slow[i-1] && fast[i] < slow[i] {
			sig[i] = -1
		}
	}
	if err := out.SetCol("signal", sig); err != nil {
		return nil, err
	}
	return out, nil
}

// SupertrendFlipExit mirrors SupertrendEntry with inverted sign: an up-flip
// closes shorts, a down-flip closes longs.
func SupertrendFlipExit(klines, indicators *series.Frame, props Props) (*series.Frame, error) {
	f, err := SupertrendEntry(klines, indicators, props)
	if err != nil {
		return nil, err
	}
	sig, _ := f.Col("signal")
	for i := range sig {
		sig[i] = -sig[i]
	}
	return f, nil
}

// FixedFraction sizes an order as a fixed fraction of the balance,
// converted to source currency at the signal price.
func FixedFraction(balance float64, ctx SignalContext, props Props) (float64, error) {
	fraction := props.Float("fraction", 0.01)
	if fraction <= 0 || fraction > 1 {
		return 0, fmt.Errorf("fixed_fraction: fraction %v out of (0, 1]", fraction)
	}
	if ctx.Price <= 0 {
		return 0, fmt.Errorf("fixed_fraction: no price on signal context")
	}
	return balance * fraction / ctx.Price, nil
}

// RiskPerTrade sizes so that hitting the stop loses at most risk_per_trade
// of the balance, assuming the declared stop distance.
func RiskPerTrade(balance float64, ctx SignalContext, props Props) (float64, error) {
	risk := props.Float("risk_per_trade", 0.01)
	slDistancePct := props.Float("sl_distance_pct", 0.02)
	if risk <= 0 || slDistancePct <= 0 {
		return 0, fmt.Errorf("risk_per_trade: risk %v / sl distance %v must be positive", risk, slDistancePct)
	}
	if ctx.Price <= 0 {
		return 0, fmt.Errorf("risk_per_trade: no price on signal context")
	}
	riskAmount := balance * risk
	perUnitRisk := ctx.Price * slDistancePct
	return riskAmount / perUnitRisk, nil
}

// SupertrendATRSL places the stop at supertrend -/+ atr_multiplier * ATR
// (minus for buys, plus for sells).
func SupertrendATRSL(side string, indicators *series.Frame, props Props) (float64, error) {
	st := indicators.Last(supertrendCol(props))
	atr := indicators.Last(atrCol(props))
	if math.IsNaN(st) || math.IsNaN(atr) {
		return 0, fmt.Errorf("supertrend_atr_sl: indicator values not ready")
	}
	mult := props.Float("atr_multiplier", 1)
	switch side {
	case "buy":
		return st - mult*atr, nil
	case "sell":
		return st + mult*atr, nil
	default:
		return 0, fmt.Errorf("supertrend_atr_sl: unknown trade side %q", side)
	}
}

// LiveTradingFlow and BackTestingFlow name the two supported flows.
func LiveTradingFlow(props Props) string { return "live" }

func BackTestingFlow(props Props) string { return "backtest" }

// CandleFreshness validates that the newest candle is recent: the gap
// between the last two bars must not exceed max_age_bars bar widths.
func CandleFreshness(klines, indicators *series.Frame, props Props) (string, error) {
	if klines.Len() < 2 {
		return "stale", nil
	}
	idx := klines.Index()
	barSecs := idx[1] - idx[0]
	maxAge := int64(props.Int("max_age_bars", 2)) * barSecs
	if idx[len(idx)-1]-idx[len(idx)-2] > maxAge {
		return "stale", nil
	}
	return ValidVerdict, nil
}

// PositiveVolume validates that the latest bar traded at all.
func PositiveVolume(klines, indicators *series.Frame, props Props) (string, error) {
	if v := klines.Last("volume"); math.IsNaN(v) || v <= 0 {
		return "no_volume", nil
	}
	return ValidVerdict, nil
}

// DefaultRegistries returns the built-in setup, sizing, SL, flow and
// validator handlers. Indicator handlers are contributed by the indicator
// package and passed in by the caller.
func DefaultRegistries(indicators map[string]IndicatorFunc) Registries {
	return Registries{
		Signals: map[string]SignalFunc{
			"supertrend_entry":     SupertrendEntry,
			"ema_cross_entry":      EMACrossEntry,
			"supertrend_flip_exit": SupertrendFlipExit,
		},
		Sizers: map[string]SizingFunc{
			"fixed_fraction": FixedFraction,
			"risk_per_trade": RiskPerTrade,
		},
		StaticSL: map[string]StaticSLFunc{
			"supertrend_atr_sl": SupertrendATRSL,
		},
		Flows: map[string]FlowFunc{
			"live_trading_flow": LiveTradingFlow,
			"back_testing_flow": BackTestingFlow,
		},
		Validators: map[string]ValidatorFunc{
			"candle_freshness": CandleFreshness,
			"positive_volume":  PositiveVolume,
		},
		Indicators: indicators,
	}
}
