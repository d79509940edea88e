// Package signal evaluates the resolved signal setups over the kline and
// indicator tables and classifies the outcome of each setup's latest bars.
package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/metrics"
	"nobitex-trader/internal/series"
	"nobitex-trader/internal/strategy"
)

// Signal kinds. A signal on the newest bar is new; one only on the bar
// before it is late and worth acting on at reduced confidence.
const (
	KindNew  = "new_signal"
	KindLate = "late_signal"
)

// Trade sides derived from the signal sign.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Detection is the outcome of inspecting one setup's signal column.
type Detection struct {
	Setup string
	Side  string
	Kind  string
}

// Supervisor evaluates setups concurrently and merges their signal columns.
type Supervisor struct {
	log *logrus.Entry
	met *metrics.Metrics
}

// NewSupervisor creates a signal supervisor. met may be nil.
func NewSupervisor(log *logrus.Entry, met *metrics.Metrics) *Supervisor {
	return &Supervisor{log: log, met: met}
}

// Generate runs every bound setup over (klines, indicators) concurrently
// and merges the results into one table on the kline index, one column per
// setup named after it. Missing rows fill with 0, not NaN; an absent
// signal is a zero signal. Failed setups are logged and skipped.
func (sv *Supervisor) Generate(ctx context.Context, klines, indicators *series.Frame, setups []strategy.Setup) *series.Frame {
	start := time.Now()
	frames := make([]*series.Frame, len(setups))

	var wg sync.WaitGroup
	for i, s := range setups {
		if s.Func == nil {
			continue
		}
		wg.Add(1)
		go func(i int, s strategy.Setup) {
			defer wg.Done()
			f, err := s.Func(klines, indicators, s.Props)
			if err != nil {
				sv.log.WithError(err).WithField("setup", s.Name).
					Error("signal setup failed")
				return
			}
			frames[i] = renameSingle(f, s.Name)
		}(i, s)
	}
	wg.Wait()

	merged := series.New(klines.Index())
	for _, f := range frames {
		if f != nil {
			merged.LeftJoin(f, 0)
		}
	}
	if sv.met != nil {
		sv.met.SignalComputeDur.Observe(time.Since(start).Seconds())
	}
	return merged
}

// renameSingle names a one-column setup result after the setup so the
// merged table is keyed by setup name. Multi-column results keep their own
// names prefixed with the setup name.
func renameSingle(f *series.Frame, setup string) *series.Frame {
	cols := f.Columns()
	out := series.New(f.Index())
	if len(cols) == 1 {
		src, _ := f.Col(cols[0])
		_ = out.SetCol(setup, src)
		return out
	}
	for _, name := range cols {
		src, _ := f.Col(name)
		_ = out.SetCol(fmt.Sprintf("%s_%s", setup, name), src)
	}
	return out
}

// Detect classifies the latest state of one setup's column. A non-zero
// value on the last bar is a new signal; a zero last bar with a non-zero
// bar before it is a late signal; anything else is no signal.
func Detect(signals *series.Frame, setup string) (Detection, bool) {
	last := signals.Last(setup)
	if last != 0 && !isNaN(last) {
		return Detection{Setup: setup, Side: sideOf(last), Kind: KindNew}, true
	}
	prev := signals.SecondLast(setup)
	if prev != 0 && !isNaN(prev) {
		return Detection{Setup: setup, Side: sideOf(prev), Kind: KindLate}, true
	}
	return Detection{}, false
}

// DetectAll returns the detections for every given setup, document order.
func DetectAll(signals *series.Frame, setups []strategy.Setup) []Detection {
	var out []Detection
	for _, s := range setups {
		if d, ok := Detect(signals, s.Name); ok {
			out = append(out, d)
		}
	}
	return out
}

func sideOf(v float64) string {
	if v > 0 {
		return SideBuy
	}
	return SideSell
}

func isNaN(v float64) bool { return v != v }

// ValidateSignal runs a setup's own validators against the current tables.
// Returns true when every bound validator passes.
func (sv *Supervisor) ValidateSignal(klines, indicators *series.Frame, s strategy.Setup) (bool, string) {
	for _, ref := range s.Validators {
		if ref.Func == nil {
			continue
		}
		verdict, err := ref.Func(klines, indicators, ref.Props)
		if err != nil {
			sv.log.WithError(err).WithFields(logrus.Fields{
				"setup": s.Name, "validator": ref.Name,
			}).Error("signal validator failed")
			return false, "error"
		}
		if verdict != strategy.ValidVerdict {
			return false, verdict
		}
	}
	return true, strategy.ValidVerdict
}
