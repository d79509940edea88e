// Package trader turns validated signals into exchange orders and runs the
// candle-to-order pipeline over the event bus.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"nobitex-trader/internal/model"
	"nobitex-trader/internal/nobitex"
)

// OrderRequest is one order to place, category-agnostic.
type OrderRequest struct {
	Symbol      string
	SrcCurrency string
	DstCurrency string
	Side        string // buy / sell
	Category    string // FUTURES / SPOT
	Amount      float64
	Price       float64 // 0 means market execution
	StopPrice   float64 // 0 means no stop leg
	Leverage    float64 // futures only, 0 means default
}

// PlaceResult is the broker's answer.
type PlaceResult struct {
	OK      bool
	OrderID string
	Reason  string
}

// Broker places orders. The live implementation talks to the exchange;
// the paper one fills locally for backtesting.
type Broker interface {
	Place(ctx context.Context, req OrderRequest) (PlaceResult, error)
}

// LiveBroker places real orders. The category selects the endpoint.
type LiveBroker struct {
	client *nobitex.Client
}

// NewLiveBroker wraps the HTTP client for order placement.
func NewLiveBroker(client *nobitex.Client) *LiveBroker {
	return &LiveBroker{client: client}
}

// Place posts the order. A non-ok exchange status is a rejection, not an
// error; errors mean the request itself failed.
func (b *LiveBroker) Place(ctx context.Context, req OrderRequest) (PlaceResult, error) {
	ep := nobitex.Endpoints[nobitex.EPSpotAdd]
	if req.Category == model.CategoryFutures {
		ep = nobitex.Endpoints[nobitex.EPFuturesAdd]
	}

	execution := "limit"
	if req.Price == 0 {
		execution = "market"
	}
	params := map[string]any{
		"type":        req.Side,
		"execution":   execution,
		"srcCurrency": req.SrcCurrency,
		"dstCurrency": req.DstCurrency,
		"amount":      strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}
	if req.Price > 0 {
		params["price"] = req.Price
	}
	if req.StopPrice > 0 {
		params["stopPrice"] = req.StopPrice
	}
	if req.Category == model.CategoryFutures && req.Leverage > 0 {
		params["leverage"] = strconv.FormatFloat(req.Leverage, 'f', -1, 64)
	}

	raw, err := b.client.Post(ctx, ep, nobitex.CleanParams(params), nil)
	if err != nil {
		return PlaceResult{}, err
	}
	res, err := nobitex.ParseOrderResult(raw)
	if err != nil {
		return PlaceResult{}, err
	}
	if res.Status != "ok" {
		reason := res.Message
		if reason == "" {
			reason = res.Code
		}
		return PlaceResult{OK: false, Reason: reason}, nil
	}
	return PlaceResult{OK: true, OrderID: orderIDOf(res)}, nil
}

// CancelOld cancels the pair's resting orders. Used before a fresh entry
// so stale limit orders never stack up.
func (b *LiveBroker) CancelOld(ctx context.Context, srcCurrency, dstCurrency string) error {
	ep := nobitex.Endpoints[nobitex.EPOrdersCancel]
	params := map[string]any{
		"srcCurrency": srcCurrency,
		"dstCurrency": dstCurrency,
	}
	raw, err := b.client.Post(ctx, ep, nobitex.CleanParams(params), nil)
	if err != nil {
		return err
	}
	res, err := nobitex.ParseOrderResult(raw)
	if err != nil {
		return err
	}
	if res.Status != "ok" {
		return fmt.Errorf("cancel-old: exchange status %q (%s)", res.Status, res.Message)
	}
	return nil
}

func orderIDOf(res *nobitex.OrderResult) string {
	var order struct {
		ID int64 `json:"id"`
	}
	if len(res.Order) > 0 && json.Unmarshal(res.Order, &order) == nil && order.ID != 0 {
		return strconv.FormatInt(order.ID, 10)
	}
	return ""
}

// PaperFill is one simulated execution.
type PaperFill struct {
	OrderID  string
	Request  OrderRequest
	Price    float64
	FilledAt time.Time
}

// PaperBroker fills every order locally at the requested price plus
// slippage. Buys fill higher, sells lower.
type PaperBroker struct {
	mu          sync.Mutex
	fills       []PaperFill
	seq         int64
	slippageBps float64
}

// NewPaperBroker creates a paper broker with slippage in basis points.
func NewPaperBroker(slippageBps float64) *PaperBroker {
	return &PaperBroker{slippageBps: slippageBps}
}

func (b *PaperBroker) Place(ctx context.Context, req OrderRequest) (PlaceResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Amount <= 0 {
		return PlaceResult{OK: false, Reason: "non-positive amount"}, nil
	}
	b.seq++
	price := req.Price
	slip := price * b.slippageBps / 10000
	if req.Side == model.SideBuy {
		price += slip
	} else {
		price -= slip
	}
	fill := PaperFill{
		OrderID:  fmt.Sprintf("PAPER-%d", b.seq),
		Request:  req,
		Price:    price,
		FilledAt: time.Now().UTC(),
	}
	b.fills = append(b.fills, fill)
	return PlaceResult{OK: true, OrderID: fill.OrderID}, nil
}

// Fills returns a snapshot of every simulated fill.
func (b *PaperBroker) Fills() []PaperFill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PaperFill, len(b.fills))
	copy(out, b.fills)
	return out
}
