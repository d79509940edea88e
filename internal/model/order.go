package model

// Order is one row of the exchange's order list.
type Order struct {
	ClientID        string  `json:"clientOrderId"`
	TradeType       string  `json:"tradeType"` // Spot, Margin
	Type            string  `json:"type"`      // buy, sell
	SrcCurrency     string  `json:"srcCurrency"`
	DstCurrency     string  `json:"dstCurrency"`
	Price           float64 `json:"price,string"`
	Amount          float64 `json:"amount,string"`
	TotalPrice      float64 `json:"totalPrice,string"`
	Leverage        float64 `json:"leverage,string"`
	TotalOrderPrice float64 `json:"totalOrderPrice,string"`
	MatchedAmount   float64 `json:"matchedAmount,string"`
	UnmatchedAmount float64 `json:"unmatchedAmount,string"`
	Execution       string  `json:"execution"` // Limit, Market
	Side            string  `json:"side"`
	IsMyOrder       bool    `json:"isMyOrder"`
}

// OrderSide for order placement.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order categories select the placement endpoint.
const (
	CategoryFutures = "FUTURES"
	CategorySpot    = "SPOT"
)
