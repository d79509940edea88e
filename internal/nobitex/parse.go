package nobitex

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"nobitex-trader/internal/model"
)

// The exchange serializes most numbers as strings; every parser goes
// through asFloat so both forms are accepted.
func asFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	return f, nil
}

// ParseKline decodes a UDF history payload into a columnar batch.
// Column order t,o,h,l,c,v is fixed; lengths must agree.
func ParseKline(raw []byte) (*model.KlineBatch, error) {
	var resp struct {
		S string            `json:"s"`
		T []int64           `json:"t"`
		O []json.RawMessage `json:"o"`
		H []json.RawMessage `json:"h"`
		L []json.RawMessage `json:"l"`
		C []json.RawMessage `json:"c"`
		V []json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode kline response: %w", err)
	}
	if resp.S != "" && resp.S != "ok" && resp.S != "no_data" {
		return nil, fmt.Errorf("kline response status %q", resp.S)
	}
	batch := &model.KlineBatch{T: resp.T}
	var err error
	if batch.O, err = floatColumn(resp.O); err != nil {
		return nil, fmt.Errorf("kline column o: %w", err)
	}
	if batch.H, err = floatColumn(resp.H); err != nil {
		return nil, fmt.Errorf("kline column h: %w", err)
	}
	if batch.L, err = floatColumn(resp.L); err != nil {
		return nil, fmt.Errorf("kline column l: %w", err)
	}
	if batch.C, err = floatColumn(resp.C); err != nil {
		return nil, fmt.Errorf("kline column c: %w", err)
	}
	if batch.V, err = floatColumn(resp.V); err != nil {
		return nil, fmt.Errorf("kline column v: %w", err)
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}

func floatColumn(raw []json.RawMessage) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, r := range raw {
		f, err := asFloat(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// ParseMarketPrice extracts the latest trade price for one pair from the
// market stats payload. The pair key is "src-dst" lowercased.
func ParseMarketPrice(raw []byte, src, dst string) (float64, error) {
	var resp struct {
		Status string                                `json:"status"`
		Stats  map[string]map[string]json.RawMessage `json:"stats"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("decode market stats: %w", err)
	}
	key := src + "-" + dst
	pair, ok := resp.Stats[key]
	if !ok {
		return 0, fmt.Errorf("market stats: pair %s missing", key)
	}
	latest, ok := pair["latest"]
	if !ok {
		return 0, fmt.Errorf("market stats: pair %s has no latest price", key)
	}
	return asFloat(latest)
}

// ParseOrders flattens raw["orders"] into Order rows.
func ParseOrders(raw []byte) ([]model.Order, error) {
	var resp struct {
		Status string        `json:"status"`
		Orders []model.Order `json:"orders"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return resp.Orders, nil
}

// ParsePositions accepts either a "positions" or an "orders" key; the wire
// key created_at is renamed to createdAt before decoding.
func ParsePositions(raw []byte) ([]model.Position, error) {
	var resp struct {
		Positions []json.RawMessage `json:"positions"`
		Orders    []json.RawMessage `json:"orders"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	rows := resp.Positions
	if rows == nil {
		rows = resp.Orders
	}
	out := make([]model.Position, 0, len(rows))
	for i, r := range rows {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, fmt.Errorf("decode position %d: %w", i, err)
		}
		if v, ok := m["created_at"]; ok {
			m["createdAt"] = v
			delete(m, "created_at")
		}
		normalized, _ := json.Marshal(m)
		var p model.Position
		if err := json.Unmarshal(normalized, &p); err != nil {
			return nil, fmt.Errorf("decode position %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseWallets projects the wallet list onto the Wallet schema, keyed by
// currency. With dropVoid, zero-balance rows are omitted.
func ParseWallets(raw []byte, dropVoid bool) (model.Wallets, error) {
	var resp struct {
		Status  string         `json:"status"`
		Wallets []model.Wallet `json:"wallets"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode wallets: %w", err)
	}
	out := make(model.Wallets, len(resp.Wallets))
	for _, w := range resp.Wallets {
		if dropVoid && w.Balance == 0 {
			continue
		}
		out[w.Currency] = w
	}
	return out, nil
}

// ParseOrderBook decodes one pair's book: asks ascending by price, bids
// descending, midprice between the best of each.
func ParseOrderBook(raw []byte, symbol string) (*model.OrderBookSnapshot, error) {
	var resp struct {
		Status string              `json:"status"`
		Asks   [][]json.RawMessage `json:"asks"`
		Bids   [][]json.RawMessage `json:"bids"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode order book: %w", err)
	}
	asks, err := bookLevels(resp.Asks)
	if err != nil {
		return nil, fmt.Errorf("order book asks: %w", err)
	}
	bids, err := bookLevels(resp.Bids)
	if err != nil {
		return nil, fmt.Errorf("order book bids: %w", err)
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	snap := &model.OrderBookSnapshot{Symbol: symbol, Asks: asks, Bids: bids}
	if len(asks) > 0 && len(bids) > 0 {
		snap.Midprice = (snap.BestAsk() + snap.BestBid()) / 2
	}
	return snap, nil
}

func bookLevels(rows [][]json.RawMessage) ([]model.BookLevel, error) {
	out := make([]model.BookLevel, 0, len(rows))
	for i, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("level %d has %d fields", i, len(r))
		}
		price, err := asFloat(r[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		vol, err := asFloat(r[1])
		if err != nil {
			return nil, fmt.Errorf("level %d volume: %w", i, err)
		}
		out = append(out, model.BookLevel{Price: price, Volume: vol})
	}
	return out, nil
}

// ParseProfile extracts the numeric user id from the profile payload.
func ParseProfile(raw []byte) (int64, error) {
	var resp struct {
		Status  string `json:"status"`
		Profile struct {
			ID int64 `json:"id"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("decode profile: %w", err)
	}
	if resp.Status != "ok" {
		return 0, fmt.Errorf("profile response status %q", resp.Status)
	}
	return resp.Profile.ID, nil
}

// OrderResult is the exchange's answer to an order placement.
type OrderResult struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Order   json.RawMessage `json:"order"`
}

// ParseOrderResult decodes the place-order response. A non-"ok" status is
// not an error here; the executioner decides what to do with rejections.
func ParseOrderResult(raw []byte) (*OrderResult, error) {
	var r OrderResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode order result: %w", err)
	}
	return &r, nil
}
