// Package nobitex talks to the Nobitex REST API: the retrying HTTP client,
// the per-endpoint rate limiter, the endpoint table, and the payload
// parsers. Nothing above this package touches the wire.
package nobitex

import "time"

// Base URLs, selected by the `setting` config key.
const (
	BaseURLMain = "https://api.nobitex.ir"
	BaseURLTest = "https://testnetapi.nobitex.ir"
)

// Endpoint ids.
const (
	EPMarketStats  = "market_stats"
	EPTrades       = "trades"
	EPKline        = "kline"
	EPPositions    = "positions"
	EPOrdersList   = "orders_list"
	EPWalletsList  = "wallets_list"
	EPWalletsBal   = "wallets_balance"
	EPOrdersCancel = "orders_cancel_old"
	EPFuturesAdd   = "futures_order_add"
	EPSpotAdd      = "spot_order_add"
	EPUserProfile  = "user_profile"
)

// Endpoint is one immutable row of the endpoint table: path plus its rate
// limit tuple (MI, RL, RP) and retry budget.
type Endpoint struct {
	ID          string
	Path        string
	MinInterval time.Duration // MI: minimum gap between calls
	RateLimit   int           // RL: max acquisitions per RatePeriod
	RatePeriod  time.Duration // RP
	Timeout     time.Duration // per-attempt socket timeout
	Tries       int
	TriesGap    time.Duration // sleep between attempts
}

// Endpoints is the full table, keyed by endpoint id. Per-endpoint (MI, RL,
// RP) values mirror the exchange's published limits.
var Endpoints = map[string]Endpoint{
	EPMarketStats: {
		ID: EPMarketStats, Path: "/market/stats",
		MinInterval: 4 * time.Second, RateLimit: 15, RatePeriod: 60 * time.Second,
		Timeout: 3500 * time.Millisecond, Tries: 3, TriesGap: time.Second,
	},
	EPTrades: {
		ID: EPTrades, Path: "/v2/trades/",
		MinInterval: 4 * time.Second, RateLimit: 15, RatePeriod: 60 * time.Second,
		Timeout: 3500 * time.Millisecond, Tries: 3, TriesGap: time.Second,
	},
	EPKline: {
		ID: EPKline, Path: "/market/udf/history",
		MinInterval: 1 * time.Second, RateLimit: 60, RatePeriod: 60 * time.Second,
		Timeout: 6 * time.Second, Tries: 4, TriesGap: time.Second,
	},
	EPPositions: {
		ID: EPPositions, Path: "/positions/list",
		MinInterval: 2 * time.Second, RateLimit: 30, RatePeriod: 60 * time.Second,
		Timeout: 4 * time.Second, Tries: 3, TriesGap: time.Second,
	},
	EPOrdersList: {
		ID: EPOrdersList, Path: "/market/orders/list",
		MinInterval: 2 * time.Second, RateLimit: 30, RatePeriod: 60 * time.Second,
		Timeout: 4 * time.Second, Tries: 3, TriesGap: time.Second,
	},
	EPWalletsList: {
		ID: EPWalletsList, Path: "/users/wallets/list",
		MinInterval: 6 * time.Second, RateLimit: 20, RatePeriod: 120 * time.Second,
		Timeout: 5 * time.Second, Tries: 3, TriesGap: time.Second,
	},
	EPWalletsBal: {
		ID: EPWalletsBal, Path: "/users/wallets/balance",
		MinInterval: 2 * time.Second, RateLimit: 60, RatePeriod: 120 * time.Second,
		Timeout: 4 * time.Second, Tries: 3, TriesGap: time.Second,
	},
	EPOrdersCancel: {
		ID: EPOrdersCancel, Path: "/market/orders/cancel-old",
		MinInterval: 6 * time.Second, RateLimit: 10, RatePeriod: 60 * time.Second,
		Timeout: 5 * time.Second, Tries: 3, TriesGap: time.Second,
	},
	EPFuturesAdd: {
		ID: EPFuturesAdd, Path: "/margin/orders/add",
		MinInterval: 6 * time.Second, RateLimit: 100, RatePeriod: 600 * time.Second,
		Timeout: 6 * time.Second, Tries: 2, TriesGap: time.Second,
	},
	EPSpotAdd: {
		ID: EPSpotAdd, Path: "/market/orders/add",
		MinInterval: 3 * time.Second, RateLimit: 200, RatePeriod: 600 * time.Second,
		Timeout: 6 * time.Second, Tries: 2, TriesGap: time.Second,
	},
	EPUserProfile: {
		ID: EPUserProfile, Path: "/users/profile",
		MinInterval: 6 * time.Second, RateLimit: 20, RatePeriod: 120 * time.Second,
		Timeout: 5 * time.Second, Tries: 3, TriesGap: time.Second,
	},
}

// OrderBookPath builds the order book endpoint path for a pair. The symbol
// segment is SRC+DST uppercased by the caller.
func OrderBookPath(symbol string) string {
	return "/v3/orderbook/" + symbol
}

// OrderBookEndpoint returns an endpoint row for one pair's order book.
func OrderBookEndpoint(symbol string) Endpoint {
	return Endpoint{
		ID: "order_book_" + symbol, Path: OrderBookPath(symbol),
		MinInterval: 4 * time.Second, RateLimit: 15, RatePeriod: 60 * time.Second,
		Timeout: 3500 * time.Millisecond, Tries: 3, TriesGap: time.Second,
	}
}
