package model

// BookLevel is one price level of the order book.
type BookLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// OrderBookSnapshot holds one parsed order book: asks ascending by price,
// bids descending by price, and the midprice between the best of each.
type OrderBookSnapshot struct {
	Symbol   string      `json:"symbol"`
	Asks     []BookLevel `json:"asks"`
	Bids     []BookLevel `json:"bids"`
	Midprice float64     `json:"midprice"`
}

// BestAsk returns the lowest ask, 0 when the book side is empty.
func (s *OrderBookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// BestBid returns the highest bid, 0 when the book side is empty.
func (s *OrderBookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}
