package model

import (
	"encoding/json"
	"math"
	"time"
)

// Candle is one OHLCV bar. TS is the bucket start as a UTC instant; the
// Tehran calendar is applied only when formatting for display.
// A NaN cell means "no value" and never overwrites a real cell on merge.
type Candle struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Unix returns the candle key: bucket start in epoch seconds.
func (c *Candle) Unix() int64 { return c.TS.Unix() }

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// MergeFrom overwrites every non-NaN cell of c with the matching cell of
// late. Used by the rolling store's cell-wise update.
func (c *Candle) MergeFrom(late Candle) {
	if !math.IsNaN(late.Open) {
		c.Open = late.Open
	}
	if !math.IsNaN(late.High) {
		c.High = late.High
	}
	if !math.IsNaN(late.Low) {
		c.Low = late.Low
	}
	if !math.IsNaN(late.Close) {
		c.Close = late.Close
	}
	if !math.IsNaN(late.Volume) {
		c.Volume = late.Volume
	}
}

// EqualCells reports whether every non-NaN cell of late equals the matching
// cell of c. NaN cells in late are ignored (no news).
func (c *Candle) EqualCells(late Candle) bool {
	eq := func(cur, l float64) bool { return math.IsNaN(l) || cur == l }
	return eq(c.Open, late.Open) &&
		eq(c.High, late.High) &&
		eq(c.Low, late.Low) &&
		eq(c.Close, late.Close) &&
		eq(c.Volume, late.Volume)
}
