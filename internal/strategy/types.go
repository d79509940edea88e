// Package strategy loads the declarative strategy document and binds its
// named setups to executable handlers. Handler registries are populated at
// init time so configuration errors surface at startup, not on first
// invocation.
package strategy

import (
	"fmt"
	"sort"

	"nobitex-trader/internal/series"
)

// Props is a setup's declared property map, carried verbatim from the
// strategy document.
type Props map[string]any

// Float reads a numeric property, def when absent.
func (p Props) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Int reads an integer property, def when absent.
func (p Props) Int(key string, def int) int {
	return int(p.Float(key, float64(def)))
}

// Str reads a string property, def when absent.
func (p Props) Str(key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// CanonicalKey renders props deterministically for dedup of indicator
// invocations by (function, properties).
func (p Props) CanonicalKey() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("%s=%v;", k, p[k])
	}
	return out
}

// ValidVerdict is what validators return on pass.
const ValidVerdict = "valid"

// SignalContext describes one detected signal for sizing and validation.
type SignalContext struct {
	Symbol string
	Setup  string
	Side   string // buy / sell
	Kind   string // new_signal / late_signal
	Price  float64
}

// IndicatorFunc computes one indicator over the kline table, returning a
// frame of new columns on the same index.
type IndicatorFunc func(klines *series.Frame, props Props) (*series.Frame, error)

// SignalFunc evaluates one setup over (klines, indicators), returning a
// frame with one signal column of {-1, 0, +1} on the kline index.
type SignalFunc func(klines, indicators *series.Frame, props Props) (*series.Frame, error)

// ValidatorFunc inspects (klines, indicators) and returns ValidVerdict to
// approve. Any other verdict suppresses the downstream event; it is not an
// error.
type ValidatorFunc func(klines, indicators *series.Frame, props Props) (string, error)

// SizingFunc turns the available balance and signal context into an order
// amount in source currency.
type SizingFunc func(balance float64, ctx SignalContext, props Props) (float64, error)

// StaticSLFunc resolves the stop-loss price for a trade side from the
// indicators table.
type StaticSLFunc func(side string, indicators *series.Frame, props Props) (float64, error)

// FlowFunc names the trading flow the bot should run.
type FlowFunc func(props Props) string

// Registries are the "module references" handed to the resolver: name →
// handler per module.
type Registries struct {
	Signals    map[string]SignalFunc
	Sizers     map[string]SizingFunc
	StaticSL   map[string]StaticSLFunc
	Flows      map[string]FlowFunc
	Indicators map[string]IndicatorFunc
	Validators map[string]ValidatorFunc
}

// IndicatorRef is a resolved nested indicator declaration.
type IndicatorRef struct {
	Name  string
	Props Props
	Func  IndicatorFunc
}

// ValidatorRef is a resolved nested validator declaration.
type ValidatorRef struct {
	Name  string
	Props Props
	Func  ValidatorFunc
}

// Setup is a resolved non-singular setup: the executable handler plus its
// declared properties and nested indicators/validators. A nil Func means
// the symbol was missing and the setup runs degraded (skipped).
type Setup struct {
	Name       string
	Props      Props
	Func       SignalFunc
	Indicators []IndicatorRef
	Validators []ValidatorRef
}

// SizingSetup, SLSetup and FlowSetup are resolved singular setups.
type SizingSetup struct {
	Name  string
	Props Props
	Func  SizingFunc
}

type SLSetup struct {
	Name  string
	Props Props
	Func  StaticSLFunc
}

type FlowSetup struct {
	Name  string
	Props Props
	Func  FlowFunc
}

// TradingSystem is the fully resolved strategy document.
type TradingSystem struct {
	ActiveTimes  string
	RiskPerTrade float64

	EntrySetups []Setup
	TPSetups    []Setup
	SLSetups    []Setup
	TPSLSetups  []Setup

	MarketValidation []Setup

	Sizing   SizingSetup
	StaticSL SLSetup
	Flow     FlowSetup
}

// AllSignalSetups returns every setup that produces signal columns, in
// document order.
func (ts *TradingSystem) AllSignalSetups() []Setup {
	out := make([]Setup, 0, len(ts.EntrySetups)+len(ts.TPSetups)+len(ts.SLSetups)+len(ts.TPSLSetups))
	out = append(out, ts.EntrySetups...)
	out = append(out, ts.TPSetups...)
	out = append(out, ts.SLSetups...)
	out = append(out, ts.TPSLSetups...)
	return out
}
