package trader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/metrics"
	"nobitex-trader/internal/series"
	"nobitex-trader/internal/signal"
	"nobitex-trader/internal/strategy"
)

// ExecConfig names the traded pair and order defaults.
type ExecConfig struct {
	Symbol      string
	SrcCurrency string
	DstCurrency string
	Category    string // FUTURES / SPOT
	Leverage    float64
	CancelOld   bool // cancel resting orders before each entry
}

// OldCanceller is the optional broker capability behind CancelOld.
type OldCanceller interface {
	CancelOld(ctx context.Context, srcCurrency, dstCurrency string) error
}

// BalanceFunc reports the spendable destination-currency balance.
type BalanceFunc func(ctx context.Context) (float64, error)

// PriceFunc reports the latest observed market price, 0 when none yet.
type PriceFunc func() float64

// Executioner sizes and places one order per validated entry signal.
// Rejected orders are journaled and reported; there is no automatic retry.
type Executioner struct {
	cfg     ExecConfig
	system  *strategy.TradingSystem
	broker  Broker
	journal *Journal
	bus     *bus.Bus
	log     *logrus.Entry
	met     *metrics.Metrics

	balance BalanceFunc
	price   PriceFunc
}

// NewExecutioner wires the order path. journal and met may be nil.
func NewExecutioner(cfg ExecConfig, system *strategy.TradingSystem, broker Broker,
	journal *Journal, b *bus.Bus, log *logrus.Entry, met *metrics.Metrics,
	balance BalanceFunc, price PriceFunc) *Executioner {
	return &Executioner{
		cfg: cfg, system: system, broker: broker, journal: journal,
		bus: b, log: log, met: met, balance: balance, price: price,
	}
}

// SetPriceFunc installs the price source after construction. The engine
// owns the latest price but is built after the executioner.
func (e *Executioner) SetPriceFunc(f PriceFunc) { e.price = f }

// Execute handles one validated entry signal end to end: position sizing,
// optional static stop from the indicators table, then placement. The order
// of steps is fixed; sizing never sees the stop price.
func (e *Executioner) Execute(ctx context.Context, det signal.Detection, indicators *series.Frame) error {
	var price float64
	if e.price != nil {
		price = e.price()
	}
	if price <= 0 {
		return e.reject(ctx, det, "no market price observed yet")
	}
	sctx := strategy.SignalContext{
		Symbol: e.cfg.Symbol,
		Setup:  det.Setup,
		Side:   det.Side,
		Kind:   det.Kind,
		Price:  price,
	}

	if e.system.Sizing.Func == nil {
		return e.reject(ctx, det, "no position sizing bound")
	}
	balance, err := e.balance(ctx)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	amount, err := e.system.Sizing.Func(balance, sctx, e.system.Sizing.Props)
	if err != nil {
		return e.reject(ctx, det, "sizing: "+err.Error())
	}

	var stop float64
	if e.system.StaticSL.Func != nil {
		stop, err = e.system.StaticSL.Func(det.Side, indicators, e.system.StaticSL.Props)
		if err != nil {
			return e.reject(ctx, det, "static stop: "+err.Error())
		}
	}

	if e.cfg.CancelOld {
		if oc, ok := e.broker.(OldCanceller); ok {
			if err := oc.CancelOld(ctx, e.cfg.SrcCurrency, e.cfg.DstCurrency); err != nil {
				e.log.WithError(err).Warn("cancel-old failed, placing anyway")
			}
		}
	}

	req := OrderRequest{
		Symbol:      e.cfg.Symbol,
		SrcCurrency: e.cfg.SrcCurrency,
		DstCurrency: e.cfg.DstCurrency,
		Side:        det.Side,
		Category:    e.cfg.Category,
		Amount:      amount,
		Price:       price,
		StopPrice:   stop,
		Leverage:    e.cfg.Leverage,
	}
	res, err := e.broker.Place(ctx, req)
	if err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	if !res.OK {
		return e.reject(ctx, det, res.Reason)
	}

	e.log.WithFields(logrus.Fields{
		"order_id": res.OrderID, "side": det.Side, "amount": amount,
		"price": price, "stop": stop, "setup": det.Setup,
	}).Info("order placed")
	if e.met != nil {
		e.met.OrdersPlaced.Inc()
	}
	e.record(det, req, "placed", "")
	return e.emit(ctx, bus.OrderPlaced, bus.Payload{
		"symbol": e.cfg.Symbol, "side": det.Side, "amount": amount, "price": price,
	})
}

// reject journals and reports a rejection. Not an error path: the decision
// not to retry is deliberate, the next signal gets a fresh attempt.
func (e *Executioner) reject(ctx context.Context, det signal.Detection, reason string) error {
	e.log.WithFields(logrus.Fields{
		"setup": det.Setup, "side": det.Side, "reason": reason,
	}).Warn("order rejected")
	if e.met != nil {
		e.met.OrdersRejected.Inc()
	}
	e.record(det, OrderRequest{Symbol: e.cfg.Symbol, Side: det.Side, Category: e.cfg.Category}, "rejected", reason)
	return e.emit(ctx, bus.OrderRejected, bus.Payload{
		"symbol": e.cfg.Symbol, "side": det.Side, "reason": reason,
	})
}

func (e *Executioner) record(det signal.Detection, req OrderRequest, status, reason string) {
	if e.journal == nil {
		return
	}
	err := e.journal.Record(OrderRecord{
		Symbol:    e.cfg.Symbol,
		Setup:     det.Setup,
		Kind:      det.Kind,
		Side:      det.Side,
		Category:  req.Category,
		Amount:    req.Amount,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    status,
		Reason:    reason,
	})
	if err != nil {
		e.log.WithError(err).Error("journal write failed")
	}
}

func (e *Executioner) emit(ctx context.Context, name string, p bus.Payload) error {
	if e.met != nil {
		e.met.EventsEmitted.WithLabelValues(name).Inc()
	}
	return e.bus.Emit(ctx, name, p)
}
