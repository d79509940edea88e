// Package candlestore holds the rolling candle table for one
// symbol/resolution pair: bounded, sorted ascending by bucket time, unique
// keys. One writer (the kline update loop), many readers.
//
// Merges always re-sort and dedupe: batches straight off the wire have been
// observed out of order, so wire order is never trusted.
package candlestore

import (
	"sync"

	"nobitex-trader/internal/model"
	"nobitex-trader/internal/series"
)

// DefaultSize bounds the table when config gives none.
const DefaultSize = 1000

// Store is the rolling table. Resolution is fixed per instance.
type Store struct {
	mu         sync.RWMutex
	resolution string
	barSecs    int64
	size       int
	candles    []model.Candle // sorted ascending, unique keys
}

// New creates a store for one resolution. An unknown resolution is a
// configuration error and refuses to construct.
func New(resolution string, size int) (*Store, error) {
	secs, err := model.ResolutionSeconds(resolution)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Store{
		resolution: resolution,
		barSecs:    secs,
		size:       size,
	}, nil
}

// Resolution returns the table's resolution code.
func (s *Store) Resolution() string { return s.resolution }

// BarSeconds returns seconds per bar.
func (s *Store) BarSeconds() int64 { return s.barSecs }

// Len returns the current row count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}

// LastTS returns the largest key, 0 when empty.
func (s *Store) LastTS() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return 0
	}
	return s.candles[len(s.candles)-1].Unix()
}

// FirstTS returns the smallest key, 0 when empty.
func (s *Store) FirstTS() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return 0
	}
	return s.candles[0].Unix()
}

// HasNews reports whether late carries anything the table does not already
// have: a new key, or an overlapping key whose non-NaN cells differ.
func (s *Store) HasNews(late []model.Candle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasNews(s.candles, late)
}

// Update merges late into the table: cell-wise overwrite on overlapping
// keys, append of new keys, sort, dedupe, trim oldest rows to size.
func (s *Store) Update(late []model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = merge(s.candles, late, s.size)
}

// Snapshot returns a copy of the current rows for readers.
func (s *Store) Snapshot() []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Frame materializes the table as a series.Frame with columns
// open/high/low/close/volume for the indicator and signal supervisors.
func (s *Store) Frame() *series.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.candles)
	idx := make([]int64, n)
	o := make([]float64, n)
	h := make([]float64, n)
	l := make([]float64, n)
	c := make([]float64, n)
	v := make([]float64, n)
	for i, cd := range s.candles {
		idx[i] = cd.Unix()
		o[i], h[i], l[i], c[i], v[i] = cd.Open, cd.High, cd.Low, cd.Close, cd.Volume
	}
	f := series.New(idx)
	_ = f.SetCol("open", o)
	_ = f.SetCol("high", h)
	_ = f.SetCol("low", l)
	_ = f.SetCol("close", c)
	_ = f.SetCol("volume", v)
	return f
}

// merge implements the update contract over plain slices so it can be
// property-tested. origin is assumed sorted unique; late is not trusted.
func merge(origin, late []model.Candle, size int) []model.Candle {
	byKey := make(map[int64]model.Candle, len(origin)+len(late))
	keys := make([]int64, 0, len(origin)+len(late))
	for _, c := range origin {
		if _, seen := byKey[c.Unix()]; !seen {
			keys = append(keys, c.Unix())
		}
		byKey[c.Unix()] = c
	}
	for _, l := range late {
		k := l.Unix()
		if cur, ok := byKey[k]; ok {
			cur.MergeFrom(l)
			byKey[k] = cur
		} else {
			keys = append(keys, k)
			byKey[k] = l
		}
	}
	sortKeys(keys)
	if size > 0 && len(keys) > size {
		keys = keys[len(keys)-size:] // drop oldest
	}
	out := make([]model.Candle, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

func hasNews(origin, late []model.Candle) bool {
	byKey := make(map[int64]model.Candle, len(origin))
	for _, c := range origin {
		byKey[c.Unix()] = c
	}
	for _, l := range late {
		cur, ok := byKey[l.Unix()]
		if !ok {
			return true
		}
		if !cur.EqualCells(l) {
			return true
		}
	}
	return false
}

func sortKeys(keys []int64) {
	// insertion sort: merges are nearly sorted already
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}
