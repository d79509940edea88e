package trader

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/candlestore"
	"nobitex-trader/internal/indicator"
	"nobitex-trader/internal/metrics"
	"nobitex-trader/internal/model"
	"nobitex-trader/internal/series"
	"nobitex-trader/internal/signal"
	"nobitex-trader/internal/strategy"
)

// Engine runs the candle-to-order pipeline: each NEW_CANDLES emission
// recomputes indicators, validates the market, evaluates signal setups and
// forwards validated signals to the executioner.
type Engine struct {
	symbol     string
	resolution string

	store  *candlestore.Store
	system *strategy.TradingSystem
	ind    *indicator.Supervisor
	sig    *signal.Supervisor
	exec   *Executioner
	bus    *bus.Bus
	log    *logrus.Entry
	met    *metrics.Metrics

	mu         sync.RWMutex
	indicators *series.Frame
	price      float64
	book       *model.OrderBookSnapshot
}

// NewEngine wires the pipeline. exec may be nil for signal-only runs.
func NewEngine(symbol, resolution string, store *candlestore.Store, system *strategy.TradingSystem,
	ind *indicator.Supervisor, sig *signal.Supervisor, exec *Executioner,
	b *bus.Bus, log *logrus.Entry, met *metrics.Metrics) *Engine {
	return &Engine{
		symbol: symbol, resolution: resolution,
		store: store, system: system, ind: ind, sig: sig, exec: exec,
		bus: b, log: log, met: met,
	}
}

// Start attaches the engine's bus listeners.
func (e *Engine) Start() error {
	if err := e.bus.Attach(bus.NewCandles, e.onNewCandles); err != nil {
		return err
	}
	if e.exec != nil {
		if err := e.bus.Attach(bus.ValidEntrySignal, e.onValidEntry); err != nil {
			return err
		}
	}
	return nil
}

// SetPrice records the latest observed market price.
func (e *Engine) SetPrice(p float64) {
	e.mu.Lock()
	e.price = p
	e.mu.Unlock()
}

// Price returns the latest observed market price. Before the first trade
// tick it falls back to the order book midprice, then 0.
func (e *Engine) Price() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.price > 0 {
		return e.price
	}
	if e.book != nil {
		return e.book.Midprice
	}
	return 0
}

// SetOrderBook records the latest depth snapshot.
func (e *Engine) SetOrderBook(b *model.OrderBookSnapshot) {
	e.mu.Lock()
	e.book = b
	e.mu.Unlock()
}

// OrderBook returns the latest depth snapshot, nil before the first poll.
func (e *Engine) OrderBook() *model.OrderBookSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book
}

// ConsumePrices drains a price stream into the engine until ctx ends.
func (e *Engine) ConsumePrices(ctx context.Context, in <-chan float64) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-in:
			e.SetPrice(p)
		}
	}
}

// ConsumeOrderBooks drains a depth stream into the engine until ctx ends.
func (e *Engine) ConsumeOrderBooks(ctx context.Context, in <-chan *model.OrderBookSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-in:
			e.SetOrderBook(b)
		}
	}
}

// Indicators returns the most recent indicators table, nil before the
// first batch.
func (e *Engine) Indicators() *series.Frame {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.indicators
}

func (e *Engine) setIndicators(f *series.Frame) {
	e.mu.Lock()
	e.indicators = f
	e.mu.Unlock()
}

func (e *Engine) onNewCandles(ctx context.Context, _ bus.Payload) {
	klines := e.store.Frame()

	inds := e.ind.Compute(ctx, klines, e.system.AllSignalSetups())
	inds.LeftJoin(e.ind.ComputeValidation(ctx, klines, e.system.MarketValidation), math.NaN())
	e.setIndicators(inds)
	e.emit(ctx, bus.IndicatorsReady, bus.Payload{
		"symbol": e.symbol, "resolution": e.resolution,
	})

	if ok, verdict := e.ind.Validate(klines, inds, e.system.MarketValidation); !ok {
		e.log.WithField("verdict", verdict).Debug("market validation vetoed this batch")
		return
	}
	e.emit(ctx, bus.MarketIsValid, bus.Payload{"symbol": e.symbol})

	signals := e.sig.Generate(ctx, klines, inds, e.system.AllSignalSetups())
	for _, det := range signal.DetectAll(signals, e.system.AllSignalSetups()) {
		e.handleDetection(ctx, klines, inds, det)
	}
}

func (e *Engine) handleDetection(ctx context.Context, klines, inds *series.Frame, det signal.Detection) {
	if e.met != nil {
		e.met.SignalsTotal.WithLabelValues(det.Setup, det.Kind).Inc()
	}
	payload := bus.Payload{
		"symbol": e.symbol, "setup": det.Setup, "side": det.Side, "kind": det.Kind,
	}
	raw := bus.NewSignal
	if det.Kind == signal.KindLate {
		raw = bus.LateSignal
	}
	e.emit(ctx, raw, payload)

	setup, valid, ok := e.findSetup(det.Setup)
	if !ok {
		return
	}
	if passed, verdict := e.sig.ValidateSignal(klines, inds, setup); !passed {
		e.log.WithFields(logrus.Fields{
			"setup": det.Setup, "verdict": verdict,
		}).Debug("signal vetoed by its validators")
		return
	}
	e.emit(ctx, valid, payload)
}

// findSetup locates a setup by name and the VALID_* event for its group.
func (e *Engine) findSetup(name string) (strategy.Setup, string, bool) {
	groups := []struct {
		setups []strategy.Setup
		event  string
	}{
		{e.system.EntrySetups, bus.ValidEntrySignal},
		{e.system.TPSetups, bus.ValidTPSignal},
		{e.system.SLSetups, bus.ValidSLSignal},
		{e.system.TPSLSetups, bus.ValidTPSLSignal},
	}
	for _, g := range groups {
		for _, s := range g.setups {
			if s.Name == name {
				return s, g.event, true
			}
		}
	}
	return strategy.Setup{}, "", false
}

func (e *Engine) onValidEntry(ctx context.Context, p bus.Payload) {
	det := signal.Detection{
		Setup: p.Str("setup"),
		Side:  p.Str("side"),
		Kind:  p.Str("kind"),
	}
	if err := e.exec.Execute(ctx, det, e.Indicators()); err != nil {
		e.log.WithError(err).WithField("setup", det.Setup).Error("execution failed")
	}
}

func (e *Engine) emit(ctx context.Context, name string, p bus.Payload) {
	if e.met != nil {
		e.met.EventsEmitted.WithLabelValues(name).Inc()
	}
	if err := e.bus.Emit(ctx, name, p); err != nil {
		e.log.WithError(err).Error(fmt.Sprintf("emit %s failed", name))
	}
}
