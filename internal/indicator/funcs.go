// Package indicator computes technical indicators over the kline table.
// Each function returns a Frame of new columns on the kline index; rows
// before the warm-up period hold NaN. The supervisor deduplicates and runs
// the declared indicator invocations concurrently.
package indicator

import (
	"fmt"
	"math"

	"nobitex-trader/internal/series"
	"nobitex-trader/internal/strategy"
)

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func closeCol(klines *series.Frame) ([]float64, error) {
	c, ok := klines.Col("close")
	if !ok {
		return nil, fmt.Errorf("kline table has no close column")
	}
	return c, nil
}

// SMA computes a simple moving average of the close, column sma_<period>.
func SMA(klines *series.Frame, props strategy.Props) (*series.Frame, error) {
	period := props.Int("period", 20)
	if period < 1 {
		return nil, fmt.Errorf("sma: period %d < 1", period)
	}
	closes, err := closeCol(klines)
	if err != nil {
		return nil, err
	}
	out := series.New(klines.Index())
	vals := nanSlice(len(closes))
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			vals[i] = sum / float64(period)
		}
	}
	if err := out.SetCol(fmt.Sprintf("sma_%d", period), vals); err != nil {
		return nil, err
	}
	return out, nil
}

// EMA computes an exponential moving average of the close, SMA-seeded,
// column ema_<period>.
func EMA(klines *series.Frame, props strategy.Props) (*series.Frame, error) {
	period := props.Int("period", 20)
	if period < 1 {
		return nil, fmt.Errorf("ema: period %d < 1", period)
	}
	closes, err := closeCol(klines)
	if err != nil {
		return nil, err
	}
	out := series.New(klines.Index())
	vals := emaOf(closes, period)
	if err := out.SetCol(fmt.Sprintf("ema_%d", period), vals); err != nil {
		return nil, err
	}
	return out, nil
}

func emaOf(values []float64, period int) []float64 {
	vals := nanSlice(len(values))
	mult := 2.0 / float64(period+1)
	sum := 0.0
	for i, v := range values {
		if i < period {
			sum += v
			if i == period-1 {
				vals[i] = sum / float64(period)
			}
			continue
		}
		vals[i] = v*mult + vals[i-1]*(1-mult)
	}
	return vals
}

// RSI computes the relative strength index with Wilder smoothing, column
// rsi_<period>.
func RSI(klines *series.Frame, props strategy.Props) (*series.Frame, error) {
	period := props.Int("period", 14)
	if period < 1 {
		return nil, fmt.Errorf("rsi: period %d < 1", period)
	}
	closes, err := closeCol(klines)
	if err != nil {
		return nil, err
	}
	out := series.New(klines.Index())
	vals := nanSlice(len(closes))
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if i <= period {
			avgGain += gain
			avgLoss += loss
			if i == period {
				avgGain /= float64(period)
				avgLoss /= float64(period)
				vals[i] = rsiFrom(avgGain, avgLoss)
			}
			continue
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		vals[i] = rsiFrom(avgGain, avgLoss)
	}
	if err := out.SetCol(fmt.Sprintf("rsi_%d", period), vals); err != nil {
		return nil, err
	}
	return out, nil
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the average true range with Wilder smoothing, column
// atr_<period>.
func ATR(klines *series.Frame, props strategy.Props) (*series.Frame, error) {
	period := props.Int("period", 14)
	if period < 1 {
		return nil, fmt.Errorf("atr: period %d < 1", period)
	}
	out := series.New(klines.Index())
	atr, err := atrOf(klines, period)
	if err != nil {
		return nil, err
	}
	if err := out.SetCol(fmt.Sprintf("atr_%d", period), atr); err != nil {
		return nil, err
	}
	return out, nil
}

func atrOf(klines *series.Frame, period int) ([]float64, error) {
	highs, okH := klines.Col("high")
	lows, okL := klines.Col("low")
	closes, okC := klines.Col("close")
	if !okH || !okL || !okC {
		return nil, fmt.Errorf("kline table is missing high/low/close columns")
	}
	n := len(closes)
	atr := nanSlice(n)
	var sum float64
	for i := 0; i < n; i++ {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Max(
				math.Abs(highs[i]-closes[i-1]),
				math.Abs(lows[i]-closes[i-1]),
			))
		}
		if i < period {
			sum += tr
			if i == period-1 {
				atr[i] = sum / float64(period)
			}
			continue
		}
		atr[i] = (atr[i-1]*float64(period-1) + tr) / float64(period)
	}
	return atr, nil
}

// Supertrend computes the supertrend line and its direction, columns
// supertrend_<period>_<multiplier> and supertrend_dir_<period>_<multiplier>
// with direction +1 above price support, -1 below.
func Supertrend(klines *series.Frame, props strategy.Props) (*series.Frame, error) {
	period := props.Int("period", 10)
	mult := props.Float("multiplier", 3)
	if period < 1 || mult <= 0 {
		return nil, fmt.Errorf("supertrend: bad period %d / multiplier %v", period, mult)
	}
	highs, okH := klines.Col("high")
	lows, okL := klines.Col("low")
	closes, okC := klines.Col("close")
	if !okH || !okL || !okC {
		return nil, fmt.Errorf("kline table is missing high/low/close columns")
	}
	atr, err := atrOf(klines, period)
	if err != nil {
		return nil, err
	}
	n := len(closes)
	line := nanSlice(n)
	dir := nanSlice(n)
	upper := nanSlice(n)
	lower := nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) {
			continue
		}
		mid := (highs[i] + lows[i]) / 2
		bu := mid + mult*atr[i]
		bl := mid - mult*atr[i]
		// Band carryover: bands only tighten while price stays inside.
		if i > 0 && !math.IsNaN(upper[i-1]) && (bu > upper[i-1] && closes[i-1] <= upper[i-1]) {
			bu = upper[i-1]
		}
		if i > 0 && !math.IsNaN(lower[i-1]) && (bl < lower[i-1] && closes[i-1] >= lower[i-1]) {
			bl = lower[i-1]
		}
		upper[i] = bu
		lower[i] = bl

		prevDir := 1.0
		if i > 0 && !math.IsNaN(dir[i-1]) {
			prevDir = dir[i-1]
		}
		d := prevDir
		if prevDir > 0 && closes[i] < bl {
			d = -1
		} else if prevDir < 0 && closes[i] > bu {
			d = 1
		}
		dir[i] = d
		if d > 0 {
			line[i] = bl
		} else {
			line[i] = bu
		}
	}
	out := series.New(klines.Index())
	if err := out.SetCol(fmt.Sprintf("supertrend_%d_%g", period, mult), line); err != nil {
		return nil, err
	}
	if err := out.SetCol(fmt.Sprintf("supertrend_dir_%d_%g", period, mult), dir); err != nil {
		return nil, err
	}
	return out, nil
}

// Registry returns the built-in indicator handlers by document name.
func Registry() map[string]strategy.IndicatorFunc {
	return map[string]strategy.IndicatorFunc{
		"sma":        SMA,
		"ema":        EMA,
		"rsi":        RSI,
		"atr":        ATR,
		"supertrend": Supertrend,
	}
}
