package trader

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/model"
	"nobitex-trader/internal/series"
	"nobitex-trader/internal/signal"
	"nobitex-trader/internal/strategy"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func testBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New(testLog())
	bus.RegisterAll(b)
	return b
}

func fixedBalance(v float64) BalanceFunc {
	return func(ctx context.Context) (float64, error) { return v, nil }
}

func fixedPrice(v float64) PriceFunc {
	return func() float64 { return v }
}

func entrySystem() *strategy.TradingSystem {
	return &strategy.TradingSystem{
		Sizing: strategy.SizingSetup{
			Name:  "fixed_fraction",
			Props: strategy.Props{"fraction": 0.1},
			Func:  strategy.FixedFraction,
		},
	}
}

func execCfg() ExecConfig {
	return ExecConfig{
		Symbol: "BTCIRT", SrcCurrency: "btc", DstCurrency: "rls",
		Category: model.CategorySpot,
	}
}

func TestExecutePlacesSizedOrder(t *testing.T) {
	b := testBus(t)
	broker := NewPaperBroker(0)
	placed := make(chan bus.Payload, 1)
	if err := b.Attach(bus.OrderPlaced, func(ctx context.Context, p bus.Payload) {
		placed <- p
	}); err != nil {
		t.Fatal(err)
	}

	ex := NewExecutioner(execCfg(), entrySystem(), broker, nil, b, testLog(), nil,
		fixedBalance(1_000_000), fixedPrice(50_000))
	det := signal.Detection{Setup: "entry", Side: signal.SideBuy, Kind: signal.KindNew}
	if err := ex.Execute(context.Background(), det, series.New(nil)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	fills := broker.Fills()
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	// 10% of 1,000,000 at price 50,000 is 2 units.
	if got := fills[0].Request.Amount; got != 2 {
		t.Fatalf("amount = %v, want 2", got)
	}
	if fills[0].Request.Side != "buy" || fills[0].Request.Category != model.CategorySpot {
		t.Fatalf("request = %+v", fills[0].Request)
	}
	select {
	case p := <-placed:
		if p.Str("symbol") != "BTCIRT" || p.Str("side") != "buy" {
			t.Fatalf("payload = %v", p)
		}
	default:
		t.Fatal("expected ORDER_PLACED emission")
	}
}

func TestExecuteStaticStopGoesOnTheOrder(t *testing.T) {
	sys := entrySystem()
	sys.StaticSL = strategy.SLSetup{
		Name:  "supertrend_atr_sl",
		Props: strategy.Props{"period": 3, "multiplier": 1.0, "atr_period": 3, "atr_multiplier": 2.0},
		Func:  strategy.SupertrendATRSL,
	}
	inds := series.New([]int64{60})
	_ = inds.SetCol("supertrend_3_1", []float64{48_000})
	_ = inds.SetCol("atr_3", []float64{500})

	broker := NewPaperBroker(0)
	ex := NewExecutioner(execCfg(), sys, broker, nil, testBus(t), testLog(), nil,
		fixedBalance(1_000_000), fixedPrice(50_000))
	det := signal.Detection{Setup: "entry", Side: signal.SideBuy, Kind: signal.KindNew}
	if err := ex.Execute(context.Background(), det, inds); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	fills := broker.Fills()
	if len(fills) != 1 {
		t.Fatalf("got %d fills", len(fills))
	}
	// 48,000 - 2*500 for a buy.
	if got := fills[0].Request.StopPrice; got != 47_000 {
		t.Fatalf("stop = %v, want 47000", got)
	}
}

func TestExecuteRejectionIsReportedNotRetried(t *testing.T) {
	b := testBus(t)
	rejected := make(chan bus.Payload, 1)
	if err := b.Attach(bus.OrderRejected, func(ctx context.Context, p bus.Payload) {
		rejected <- p
	}); err != nil {
		t.Fatal(err)
	}

	var attempts int
	broker := brokerFunc(func(ctx context.Context, req OrderRequest) (PlaceResult, error) {
		attempts++
		return PlaceResult{OK: false, Reason: "insufficient balance"}, nil
	})
	ex := NewExecutioner(execCfg(), entrySystem(), broker, nil, b, testLog(), nil,
		fixedBalance(1_000_000), fixedPrice(50_000))
	det := signal.Detection{Setup: "entry", Side: signal.SideSell, Kind: signal.KindNew}
	if err := ex.Execute(context.Background(), det, series.New(nil)); err != nil {
		t.Fatalf("a rejection is not an execution error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("broker called %d times, want exactly 1", attempts)
	}
	select {
	case p := <-rejected:
		if p.Str("reason") != "insufficient balance" {
			t.Fatalf("payload = %v", p)
		}
	default:
		t.Fatal("expected ORDER_REJECTED emission")
	}
}

func TestExecuteNoPriceRejects(t *testing.T) {
	broker := NewPaperBroker(0)
	ex := NewExecutioner(execCfg(), entrySystem(), broker, nil, testBus(t), testLog(), nil,
		fixedBalance(1_000_000), fixedPrice(0))
	det := signal.Detection{Setup: "entry", Side: signal.SideBuy, Kind: signal.KindNew}
	if err := ex.Execute(context.Background(), det, series.New(nil)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(broker.Fills()) != 0 {
		t.Fatal("no order may reach the broker without a price")
	}
}

func TestExecuteBrokerErrorPropagates(t *testing.T) {
	broker := brokerFunc(func(ctx context.Context, req OrderRequest) (PlaceResult, error) {
		return PlaceResult{}, errors.New("connection reset")
	})
	ex := NewExecutioner(execCfg(), entrySystem(), broker, nil, testBus(t), testLog(), nil,
		fixedBalance(1_000_000), fixedPrice(50_000))
	det := signal.Detection{Setup: "entry", Side: signal.SideBuy, Kind: signal.KindNew}
	if err := ex.Execute(context.Background(), det, series.New(nil)); err == nil {
		t.Fatal("transport failure must surface as an error")
	}
}

func TestJournalRecordsAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	j, err := NewJournal(path)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	defer j.Close()

	b := testBus(t)
	broker := NewPaperBroker(5)
	ex := NewExecutioner(execCfg(), entrySystem(), broker, j, b, testLog(), nil,
		fixedBalance(1_000_000), fixedPrice(50_000))
	det := signal.Detection{Setup: "entry", Side: signal.SideBuy, Kind: signal.KindNew}
	if err := ex.Execute(context.Background(), det, series.New(nil)); err != nil {
		t.Fatal(err)
	}

	recs, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.Symbol != "BTCIRT" || r.Setup != "entry" || r.Side != "buy" || r.Status != "placed" {
		t.Fatalf("record = %+v", r)
	}
	if r.Amount != 2 || r.Price != 50_000 {
		t.Fatalf("record amounts = %+v", r)
	}
}

// brokerFunc adapts a function to the Broker interface.
type brokerFunc func(ctx context.Context, req OrderRequest) (PlaceResult, error)

func (f brokerFunc) Place(ctx context.Context, req OrderRequest) (PlaceResult, error) {
	return f(ctx, req)
}
