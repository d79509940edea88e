package strategy

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"nobitex-trader/internal/series"
)

func testDoc() *Document {
	return &Document{
		ActiveTimes: "247",
		EntrySignalSetups: []SetupDoc{
			{
				Name:       "supertrend_entry",
				Properties: map[string]any{"period": 10, "multiplier": 3.0},
				Indicators: []SetupDoc{
					{Name: "supertrend", Properties: map[string]any{"period": 10, "multiplier": 3.0}},
				},
				Validators: []SetupDoc{
					{Name: "positive_volume", Properties: map[string]any{}},
				},
			},
		},
		MarketValidationSystem: []SetupDoc{
			{Name: "candle_freshness", Properties: map[string]any{"max_age_bars": 2}},
		},
		PositionSizing: SetupDoc{Name: "fixed_fraction", Properties: map[string]any{"fraction": 0.01}},
		StaticSL:       SetupDoc{Name: "supertrend_atr_sl", Properties: map[string]any{"atr_multiplier": 1.5}},
		TradingFlow:    SetupDoc{Name: "live_trading_flow"},
		RiskPerTrade:   0.02,
	}
}

func testRegistries() Registries {
	return DefaultRegistries(map[string]IndicatorFunc{
		"supertrend": func(klines *series.Frame, props Props) (*series.Frame, error) {
			return series.New(klines.Index()), nil
		},
	})
}

func TestResolveBindsHandlersAndProps(t *testing.T) {
	r := NewResolver(testRegistries(), nil)
	ts, err := r.Resolve(testDoc())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ts.EntrySetups) != 1 {
		t.Fatalf("got %d entry setups, want 1", len(ts.EntrySetups))
	}
	entry := ts.EntrySetups[0]
	if entry.Func == nil {
		t.Fatal("entry setup did not bind a handler")
	}
	if got := entry.Props.Int("period", 0); got != 10 {
		t.Fatalf("entry props period = %d, want 10", got)
	}
	if len(entry.Indicators) != 1 || entry.Indicators[0].Func == nil {
		t.Fatalf("nested indicator not bound: %+v", entry.Indicators)
	}
	if got := entry.Indicators[0].Props.Float("multiplier", 0); got != 3 {
		t.Fatalf("indicator multiplier = %v, want 3", got)
	}
	if len(entry.Validators) != 1 || entry.Validators[0].Func == nil {
		t.Fatalf("nested validator not bound: %+v", entry.Validators)
	}
	if ts.Sizing.Func == nil || ts.Sizing.Name != "fixed_fraction" {
		t.Fatalf("sizing not bound: %+v", ts.Sizing)
	}
	if got := ts.Sizing.Props.Float("fraction", 0); got != 0.01 {
		t.Fatalf("sizing fraction = %v, want 0.01", got)
	}
	if ts.StaticSL.Func == nil {
		t.Fatal("static SL not bound")
	}
	if ts.Flow.Func == nil || ts.Flow.Func(ts.Flow.Props) != "live" {
		t.Fatal("flow not bound to live_trading_flow")
	}
	if ts.RiskPerTrade != 0.02 {
		t.Fatalf("risk per trade = %v, want 0.02", ts.RiskPerTrade)
	}
	if len(ts.MarketValidation) != 1 {
		t.Fatalf("got %d market validation setups, want 1", len(ts.MarketValidation))
	}
	mv := ts.MarketValidation[0]
	if len(mv.Validators) != 1 || mv.Validators[0].Func == nil {
		t.Fatalf("market validator not bound: %+v", mv)
	}
	if got := mv.Validators[0].Props.Int("max_age_bars", 0); got != 2 {
		t.Fatalf("market validator max_age_bars = %d, want 2", got)
	}
}

func TestResolveUnknownSymbolDegrades(t *testing.T) {
	doc := testDoc()
	doc.PositionSizing = SetupDoc{Name: "martingale", Properties: map[string]any{"step": 2}}
	doc.EntrySignalSetups[0].Indicators = append(doc.EntrySignalSetups[0].Indicators,
		SetupDoc{Name: "vortex", Properties: map[string]any{"period": 14}})

	r := NewResolver(testRegistries(), nil)
	ts, err := r.Resolve(doc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ts.Sizing.Func != nil {
		t.Fatal("unknown sizing symbol must resolve to an empty record")
	}
	if ts.Sizing.Name != "martingale" {
		t.Fatalf("degraded sizing keeps the document name, got %q", ts.Sizing.Name)
	}
	inds := ts.EntrySetups[0].Indicators
	if len(inds) != 2 {
		t.Fatalf("got %d indicator refs, want 2", len(inds))
	}
	if inds[1].Func != nil {
		t.Fatal("unknown indicator symbol must resolve with a nil handler")
	}
	if inds[0].Func == nil {
		t.Fatal("known indicator must still bind when a sibling is unknown")
	}
}

func TestResolveRefusesNonContinuousActiveTimes(t *testing.T) {
	doc := testDoc()
	doc.ActiveTimes = "business_hours"
	r := NewResolver(testRegistries(), nil)
	if _, err := r.Resolve(doc); !errors.Is(err, ErrActiveTimesNotImplemented) {
		t.Fatalf("got %v, want ErrActiveTimesNotImplemented", err)
	}
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	raw := `{
  "active_times": "247",
  "entry_signal_setups": [
    {
      "name": "supertrend_entry",
      "properties": {"period": 10, "multiplier": 3},
      "indicators": [{"name": "supertrend", "properties": {"period": 10, "multiplier": 3}}]
    }
  ],
  "position_sizing_approach": {"name": "fixed_fraction", "properties": {"fraction": 0.01}},
  "trading_flow_approach": {"name": "live_trading_flow"},
  "risk_per_trade": 0.01
}`
	if err := os.WriteFile(filepath.Join(dir, "strategy.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadDocument(dir)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.ActiveTimes != "247" {
		t.Fatalf("active_times = %q", doc.ActiveTimes)
	}
	if len(doc.EntrySignalSetups) != 1 || doc.EntrySignalSetups[0].Name != "supertrend_entry" {
		t.Fatalf("entry setups = %+v", doc.EntrySignalSetups)
	}
	if doc.PositionSizing.Name != "fixed_fraction" {
		t.Fatalf("sizing = %+v", doc.PositionSizing)
	}
}

func TestSupertrendEntrySignals(t *testing.T) {
	idx := []int64{60, 120, 180, 240, 300}
	klines := series.New(idx)
	inds := series.New(idx)
	if err := inds.SetCol("supertrend_dir_10_3", []float64{-1, -1, 1, 1, -1}); err != nil {
		t.Fatal(err)
	}
	f, err := SupertrendEntry(klines, inds, Props{"period": 10, "multiplier": 3.0})
	if err != nil {
		t.Fatalf("SupertrendEntry: %v", err)
	}
	sig, ok := f.Col("signal")
	if !ok {
		t.Fatal("no signal column")
	}
	want := []float64{0, 0, 1, 0, -1}
	for i := range want {
		if sig[i] != want[i] {
			t.Fatalf("signal[%d] = %v, want %v", i, sig[i], want[i])
		}
	}
}

func TestSupertrendATRSL(t *testing.T) {
	idx := []int64{60, 120}
	inds := series.New(idx)
	if err := inds.SetCol("supertrend_10_3", []float64{math.NaN(), 100}); err != nil {
		t.Fatal(err)
	}
	if err := inds.SetCol("atr_14", []float64{math.NaN(), 4}); err != nil {
		t.Fatal(err)
	}
	props := Props{"period": 10, "multiplier": 3.0, "atr_period": 14, "atr_multiplier": 1.5}
	sl, err := SupertrendATRSL("buy", inds, props)
	if err != nil {
		t.Fatalf("buy SL: %v", err)
	}
	if sl != 94 {
		t.Fatalf("buy SL = %v, want 94", sl)
	}
	sl, err = SupertrendATRSL("sell", inds, props)
	if err != nil {
		t.Fatalf("sell SL: %v", err)
	}
	if sl != 106 {
		t.Fatalf("sell SL = %v, want 106", sl)
	}
	if _, err := SupertrendATRSL("hold", inds, props); err == nil {
		t.Fatal("unknown side must error")
	}
}

func TestSizingFuncs(t *testing.T) {
	ctx := SignalContext{Symbol: "BTCIRT", Side: "buy", Price: 50000}
	amt, err := FixedFraction(1_000_000, ctx, Props{"fraction": 0.01})
	if err != nil {
		t.Fatalf("FixedFraction: %v", err)
	}
	if amt != 0.2 {
		t.Fatalf("fixed fraction amount = %v, want 0.2", amt)
	}
	amt, err = RiskPerTrade(1_000_000, ctx, Props{"risk_per_trade": 0.01, "sl_distance_pct": 0.02})
	if err != nil {
		t.Fatalf("RiskPerTrade: %v", err)
	}
	if amt != 10 {
		t.Fatalf("risk per trade amount = %v, want 10", amt)
	}
	if _, err := FixedFraction(1000, SignalContext{}, Props{"fraction": 0.01}); err == nil {
		t.Fatal("zero price must error")
	}
	if _, err := FixedFraction(1000, ctx, Props{"fraction": 2.0}); err == nil {
		t.Fatal("fraction above 1 must error")
	}
}
