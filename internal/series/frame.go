// Package series provides a minimal column table keyed by a sorted int64
// time index. Indicator and signal setups each produce a Frame; the
// supervisors merge them by left-join on the kline index.
package series

import (
	"fmt"
	"math"
	"sort"
)

// Frame holds float64 columns over a shared, ascending, unique time index.
// A NaN cell means "no value".
type Frame struct {
	index []int64
	cols  map[string][]float64
	order []string // column insertion order, kept stable for iteration
}

// New creates a Frame over the given index. The index is copied, sorted and
// deduplicated; wire order is never trusted.
func New(index []int64) *Frame {
	idx := make([]int64, len(index))
	copy(idx, index)
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	uniq := idx[:0]
	for i, ts := range idx {
		if i == 0 || ts != idx[i-1] {
			uniq = append(uniq, ts)
		}
	}
	return &Frame{
		index: uniq,
		cols:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns the underlying index. Callers must not mutate it.
func (f *Frame) Index() []int64 { return f.index }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string { return f.order }

// Col returns a column by name. Callers must not mutate it.
func (f *Frame) Col(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// SetCol adds or replaces a column. The slice length must match the index.
func (f *Frame) SetCol(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("column %s has %d values for %d index rows", name, len(values), len(f.index))
	}
	if _, exists := f.cols[name]; !exists {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
	return nil
}

// At returns the cell (name, row i). NaN when the column is missing.
func (f *Frame) At(name string, i int) float64 {
	c, ok := f.cols[name]
	if !ok || i < 0 || i >= len(c) {
		return math.NaN()
	}
	return c[i]
}

// Last returns the final cell of a column, NaN when empty or missing.
func (f *Frame) Last(name string) float64 { return f.At(name, f.Len()-1) }

// SecondLast returns the next-to-final cell of a column.
func (f *Frame) SecondLast(name string) float64 { return f.At(name, f.Len()-2) }

// LeftJoin merges every column of other onto f's index by timestamp.
// Rows of f absent from other get fill (NaN for indicators, 0 for signals).
// Rows of other outside f's index are dropped. Column name collisions
// overwrite, matching update semantics.
func (f *Frame) LeftJoin(other *Frame, fill float64) {
	if other == nil {
		return
	}
	// Position of each other-row on f's index; both indexes are sorted.
	pos := make([]int, len(other.index))
	j := 0
	for i, ts := range other.index {
		for j < len(f.index) && f.index[j] < ts {
			j++
		}
		if j < len(f.index) && f.index[j] == ts {
			pos[i] = j
		} else {
			pos[i] = -1
		}
	}
	for _, name := range other.order {
		src := other.cols[name]
		dst := make([]float64, len(f.index))
		for i := range dst {
			dst[i] = fill
		}
		for i, p := range pos {
			if p >= 0 {
				dst[p] = src[i]
			}
		}
		_ = f.SetCol(name, dst)
	}
}

// Slice returns a new Frame restricted to index rows in [from, to] inclusive.
func (f *Frame) Slice(from, to int64) *Frame {
	lo := sort.Search(len(f.index), func(i int) bool { return f.index[i] >= from })
	hi := sort.Search(len(f.index), func(i int) bool { return f.index[i] > to })
	out := New(f.index[lo:hi])
	for _, name := range f.order {
		col := make([]float64, hi-lo)
		copy(col, f.cols[name][lo:hi])
		_ = out.SetCol(name, col)
	}
	return out
}
