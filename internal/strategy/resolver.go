package strategy

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrActiveTimesNotImplemented is returned for any active_times other than
// 24/7 live trading.
var ErrActiveTimesNotImplemented = errors.New(`active_times other than "247" is not implemented`)

// Resolver binds a strategy document to executable handlers through the
// given registries. Missing symbols are reported with module and symbol
// name and resolve to an empty record so the rest of the system can proceed
// degraded.
type Resolver struct {
	reg Registries
	log *logrus.Entry
}

// NewResolver creates a resolver over the handler registries.
func NewResolver(reg Registries, log *logrus.Entry) *Resolver {
	return &Resolver{reg: reg, log: log}
}

// Resolve turns a document into a TradingSystem.
func (r *Resolver) Resolve(doc *Document) (*TradingSystem, error) {
	if doc.ActiveTimes != "247" {
		return nil, fmt.Errorf("active_times %q: %w", doc.ActiveTimes, ErrActiveTimesNotImplemented)
	}
	ts := &TradingSystem{
		ActiveTimes:  doc.ActiveTimes,
		RiskPerTrade: doc.RiskPerTrade,

		EntrySetups:      r.resolveSetups("entry_signal_setups", doc.EntrySignalSetups),
		TPSetups:         r.resolveSetups("take_profit_order_placement_setup", doc.TakeProfitSetups),
		SLSetups:         r.resolveSetups("stop_loss_order_placement_setup", doc.StopLossSetups),
		TPSLSetups:       r.resolveSetups("combo_of_tp_sl_order_placement_setup", doc.ComboTPSLSetups),
		MarketValidation: r.resolveValidationSetups("market_validation_system", doc.MarketValidationSystem),
	}
	ts.Sizing = r.resolveSizing(doc.PositionSizing)
	ts.StaticSL = r.resolveStaticSL(doc.StaticSL)
	ts.Flow = r.resolveFlow(doc.TradingFlow)
	return ts, nil
}

func (r *Resolver) resolveSetups(field string, docs []SetupDoc) []Setup {
	out := make([]Setup, 0, len(docs))
	for _, d := range docs {
		s := Setup{Name: d.Name, Props: Props(d.Properties)}
		if fn, ok := r.reg.Signals[d.Name]; ok {
			s.Func = fn
		} else {
			r.missing("setups", field, d.Name)
		}
		for _, ind := range d.Indicators {
			ref := IndicatorRef{Name: ind.Name, Props: Props(ind.Properties)}
			if fn, ok := r.reg.Indicators[ind.Name]; ok {
				ref.Func = fn
			} else {
				r.missing("indicators", field, ind.Name)
			}
			s.Indicators = append(s.Indicators, ref)
		}
		for _, val := range d.Validators {
			ref := ValidatorRef{Name: val.Name, Props: Props(val.Properties)}
			if fn, ok := r.reg.Validators[val.Name]; ok {
				ref.Func = fn
			} else {
				r.missing("validators", field, val.Name)
			}
			s.Validators = append(s.Validators, ref)
		}
		out = append(out, s)
	}
	return out
}

// resolveValidationSetups binds market validation entries. Their top-level
// name is a validator symbol, not a signal symbol; it is stored as the
// first ValidatorRef of the setup and Func stays nil.
func (r *Resolver) resolveValidationSetups(field string, docs []SetupDoc) []Setup {
	out := make([]Setup, 0, len(docs))
	for _, d := range docs {
		s := Setup{Name: d.Name, Props: Props(d.Properties)}
		ref := ValidatorRef{Name: d.Name, Props: Props(d.Properties)}
		if fn, ok := r.reg.Validators[d.Name]; ok {
			ref.Func = fn
		} else {
			r.missing("validators", field, d.Name)
		}
		s.Validators = append(s.Validators, ref)
		for _, ind := range d.Indicators {
			iref := IndicatorRef{Name: ind.Name, Props: Props(ind.Properties)}
			if fn, ok := r.reg.Indicators[ind.Name]; ok {
				iref.Func = fn
			} else {
				r.missing("indicators", field, ind.Name)
			}
			s.Indicators = append(s.Indicators, iref)
		}
		out = append(out, s)
	}
	return out
}

func (r *Resolver) resolveSizing(d SetupDoc) SizingSetup {
	s := SizingSetup{Name: d.Name, Props: Props(d.Properties)}
	if d.Name == "" {
		return s
	}
	if fn, ok := r.reg.Sizers[d.Name]; ok {
		s.Func = fn
	} else {
		r.missing("setups", "position_sizing_approach", d.Name)
	}
	return s
}

func (r *Resolver) resolveStaticSL(d SetupDoc) SLSetup {
	s := SLSetup{Name: d.Name, Props: Props(d.Properties)}
	if d.Name == "" {
		return s
	}
	if fn, ok := r.reg.StaticSL[d.Name]; ok {
		s.Func = fn
	} else {
		r.missing("setups", "static_sl_approach", d.Name)
	}
	return s
}

func (r *Resolver) resolveFlow(d SetupDoc) FlowSetup {
	s := FlowSetup{Name: d.Name, Props: Props(d.Properties)}
	if d.Name == "" {
		return s
	}
	if fn, ok := r.reg.Flows[d.Name]; ok {
		s.Func = fn
	} else {
		r.missing("setups", "trading_flow_approach", d.Name)
	}
	return s
}

func (r *Resolver) missing(module, field, symbol string) {
	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"module": module,
			"field":  field,
			"symbol": symbol,
		}).Error("strategy document names an unknown symbol, setup runs degraded")
	}
}
