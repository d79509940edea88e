package model

import (
	"fmt"
	"time"
)

// KlineBatch is the columnar kline payload as it comes off the wire:
// parallel arrays t/o/h/l/c/v of equal length. The exchange promises
// non-decreasing t but the batch is treated as unordered downstream.
type KlineBatch struct {
	T []int64   `json:"t"`
	O []float64 `json:"o"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	C []float64 `json:"c"`
	V []float64 `json:"v"`
}

// Len returns the number of rows in the batch.
func (b *KlineBatch) Len() int { return len(b.T) }

// Validate checks that all six arrays have equal length.
func (b *KlineBatch) Validate() error {
	n := len(b.T)
	if len(b.O) != n || len(b.H) != n || len(b.L) != n || len(b.C) != n || len(b.V) != n {
		return fmt.Errorf("kline batch column lengths differ: t=%d o=%d h=%d l=%d c=%d v=%d",
			len(b.T), len(b.O), len(b.H), len(b.L), len(b.C), len(b.V))
	}
	return nil
}

// Candles converts the batch to row form. Column order t,o,h,l,c,v is fixed.
func (b *KlineBatch) Candles() []Candle {
	out := make([]Candle, b.Len())
	for i := range b.T {
		out[i] = Candle{
			TS:     time.Unix(b.T[i], 0).UTC(),
			Open:   b.O[i],
			High:   b.H[i],
			Low:    b.L[i],
			Close:  b.C[i],
			Volume: b.V[i],
		}
	}
	return out
}

// FirstTS returns the smallest timestamp in the batch, 0 when empty.
// The wire order is not trusted.
func (b *KlineBatch) FirstTS() int64 {
	if b.Len() == 0 {
		return 0
	}
	min := b.T[0]
	for _, t := range b.T[1:] {
		if t < min {
			min = t
		}
	}
	return min
}

// LastTS returns the largest timestamp in the batch, 0 when empty.
func (b *KlineBatch) LastTS() int64 {
	if b.Len() == 0 {
		return 0
	}
	max := b.T[0]
	for _, t := range b.T[1:] {
		if t > max {
			max = t
		}
	}
	return max
}
