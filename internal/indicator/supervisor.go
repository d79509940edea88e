package indicator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/metrics"
	"nobitex-trader/internal/series"
	"nobitex-trader/internal/strategy"
)

// Supervisor runs the indicator invocations declared across a trading
// system's setups. Invocations with the same function name and properties
// are computed once.
type Supervisor struct {
	log *logrus.Entry
	met *metrics.Metrics
}

// NewSupervisor creates an indicator supervisor. met may be nil.
func NewSupervisor(log *logrus.Entry, met *metrics.Metrics) *Supervisor {
	return &Supervisor{log: log, met: met}
}

type invocation struct {
	name  string
	props strategy.Props
	fn    strategy.IndicatorFunc
}

// collect gathers the unique indicator invocations of the given setups,
// keyed by (name, canonical properties). Unbound refs are skipped; the
// resolver already reported them.
func collect(setups []strategy.Setup) []invocation {
	seen := make(map[string]struct{})
	var out []invocation
	for _, s := range setups {
		for _, ref := range s.Indicators {
			if ref.Func == nil {
				continue
			}
			key := ref.Name + "|" + ref.Props.CanonicalKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, invocation{name: ref.Name, props: ref.Props, fn: ref.Func})
		}
	}
	return out
}

// Compute runs every unique indicator invocation of the setups concurrently
// and merges the results onto the kline index. Failed invocations are
// logged and their columns left out; the batch still completes.
func (sv *Supervisor) Compute(ctx context.Context, klines *series.Frame, setups []strategy.Setup) *series.Frame {
	start := time.Now()
	invs := collect(setups)
	frames := make([]*series.Frame, len(invs))

	var wg sync.WaitGroup
	for i, inv := range invs {
		wg.Add(1)
		go func(i int, inv invocation) {
			defer wg.Done()
			f, err := inv.fn(klines, inv.props)
			if err != nil {
				sv.log.WithError(err).WithField("indicator", inv.name).
					Error("indicator computation failed")
				return
			}
			frames[i] = f
		}(i, inv)
	}
	wg.Wait()

	merged := series.New(klines.Index())
	for _, f := range frames {
		if f != nil {
			merged.LeftJoin(f, math.NaN())
		}
	}
	if sv.met != nil {
		sv.met.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	}
	return merged
}

// ComputeValidation computes the indicators declared by the market
// validation setups onto the kline index. Same dedup and merge rules as
// Compute.
func (sv *Supervisor) ComputeValidation(ctx context.Context, klines *series.Frame, validation []strategy.Setup) *series.Frame {
	return sv.Compute(ctx, klines, validation)
}

// Validate runs the nested validators of the given setups in order against
// (klines, indicators). It returns true only when every bound validator
// answers the pass verdict; the first failing verdict is returned for
// logging. Validator errors fail the batch.
func (sv *Supervisor) Validate(klines, indicators *series.Frame, setups []strategy.Setup) (bool, string) {
	for _, s := range setups {
		for _, ref := range s.Validators {
			if ref.Func == nil {
				continue
			}
			verdict, err := ref.Func(klines, indicators, ref.Props)
			if err != nil {
				sv.log.WithError(err).WithField("validator", ref.Name).
					Error("validator failed")
				return false, "error"
			}
			if verdict != strategy.ValidVerdict {
				return false, verdict
			}
		}
	}
	return true, strategy.ValidVerdict
}
