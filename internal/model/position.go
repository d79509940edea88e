package model

// Position is an open margin position as the exchange reports it.
// The wire key "created_at" is normalized to createdAt during parsing.
type Position struct {
	ID               int64   `json:"id"`
	CreatedAt        string  `json:"createdAt"`
	Side             string  `json:"side"`
	SrcCurrency      string  `json:"srcCurrency"`
	DstCurrency      string  `json:"dstCurrency"`
	Status           string  `json:"status"`
	MarginType       string  `json:"marginType"`
	Collateral       float64 `json:"collateral,string"`
	Leverage         float64 `json:"leverage,string"`
	OpenedAmount     float64 `json:"openedAmount,string"`
	LiquidationPrice float64 `json:"liquidationPrice,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	MarkPrice        float64 `json:"markPrice,string"`
	UnrealizedPNL    float64 `json:"unrealizedPNL,string"`
}
