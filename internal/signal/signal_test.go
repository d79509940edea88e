package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/series"
	"nobitex-trader/internal/strategy"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func signalFrame(t *testing.T, setup string, values []float64) *series.Frame {
	t.Helper()
	idx := make([]int64, len(values))
	for i := range idx {
		idx[i] = int64(60 * (i + 1))
	}
	f := series.New(idx)
	if err := f.SetCol(setup, values); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   Detection
		ok     bool
	}{
		{"new buy on last bar", []float64{0, 0, 1}, Detection{Setup: "s", Side: SideBuy, Kind: KindNew}, true},
		{"new sell on last bar", []float64{0, 1, -1}, Detection{Setup: "s", Side: SideSell, Kind: KindNew}, true},
		{"late buy on second-last", []float64{0, 1, 0}, Detection{Setup: "s", Side: SideBuy, Kind: KindLate}, true},
		{"late sell on second-last", []float64{0, -1, 0}, Detection{Setup: "s", Side: SideSell, Kind: KindLate}, true},
		{"no signal", []float64{1, 0, 0}, Detection{}, false},
		{"empty column", []float64{}, Detection{}, false},
	}
	for _, tc := range cases {
		f := signalFrame(t, "s", tc.values)
		got, ok := Detect(f, "s")
		if ok != tc.ok || got != tc.want {
			t.Errorf("%s: got %+v ok=%v, want %+v ok=%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDetectMissingColumn(t *testing.T) {
	f := series.New([]int64{60, 120})
	if _, ok := Detect(f, "ghost"); ok {
		t.Fatal("missing column must not detect a signal")
	}
}

func TestGenerateMergesBySetupName(t *testing.T) {
	idx := []int64{60, 120, 180}
	klines := series.New(idx)
	inds := series.New(idx)

	buyLast := func(k, i *series.Frame, p strategy.Props) (*series.Frame, error) {
		out := series.New(k.Index())
		_ = out.SetCol("signal", []float64{0, 0, 1})
		return out, nil
	}
	sellMid := func(k, i *series.Frame, p strategy.Props) (*series.Frame, error) {
		out := series.New(k.Index())
		_ = out.SetCol("signal", []float64{0, -1, 0})
		return out, nil
	}
	setups := []strategy.Setup{
		{Name: "alpha", Func: buyLast},
		{Name: "beta", Func: sellMid},
		{Name: "unbound"},
	}
	sv := NewSupervisor(testLog(), nil)
	out := sv.Generate(context.Background(), klines, inds, setups)

	if got := len(out.Columns()); got != 2 {
		t.Fatalf("got %d columns %v, want 2", got, out.Columns())
	}
	if out.Last("alpha") != 1 {
		t.Fatalf("alpha last = %v, want 1", out.Last("alpha"))
	}
	if out.SecondLast("beta") != -1 {
		t.Fatalf("beta second-last = %v, want -1", out.SecondLast("beta"))
	}

	dets := DetectAll(out, setups)
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if dets[0] != (Detection{Setup: "alpha", Side: SideBuy, Kind: KindNew}) {
		t.Fatalf("alpha detection = %+v", dets[0])
	}
	if dets[1] != (Detection{Setup: "beta", Side: SideSell, Kind: KindLate}) {
		t.Fatalf("beta detection = %+v", dets[1])
	}
}

func TestGenerateFillsMissingRowsWithZero(t *testing.T) {
	klines := series.New([]int64{60, 120, 180})
	partial := func(k, i *series.Frame, p strategy.Props) (*series.Frame, error) {
		out := series.New([]int64{120})
		_ = out.SetCol("signal", []float64{1})
		return out, nil
	}
	sv := NewSupervisor(testLog(), nil)
	out := sv.Generate(context.Background(), klines, series.New(klines.Index()),
		[]strategy.Setup{{Name: "sparse", Func: partial}})
	col, _ := out.Col("sparse")
	want := []float64{0, 1, 0}
	for i := range want {
		if col[i] != want[i] {
			t.Fatalf("sparse[%d] = %v, want %v", i, col[i], want[i])
		}
	}
}

func TestGenerateSkipsFailedSetup(t *testing.T) {
	klines := series.New([]int64{60})
	bad := func(k, i *series.Frame, p strategy.Props) (*series.Frame, error) {
		return nil, errors.New("boom")
	}
	good := func(k, i *series.Frame, p strategy.Props) (*series.Frame, error) {
		out := series.New(k.Index())
		_ = out.SetCol("signal", []float64{1})
		return out, nil
	}
	sv := NewSupervisor(testLog(), nil)
	out := sv.Generate(context.Background(), klines, series.New(klines.Index()), []strategy.Setup{
		{Name: "bad", Func: bad},
		{Name: "good", Func: good},
	})
	if _, ok := out.Col("bad"); ok {
		t.Fatal("failed setup must not contribute a column")
	}
	if out.Last("good") != 1 {
		t.Fatal("healthy sibling must still contribute")
	}
}

func TestValidateSignal(t *testing.T) {
	pass := func(k, i *series.Frame, p strategy.Props) (string, error) { return strategy.ValidVerdict, nil }
	veto := func(k, i *series.Frame, p strategy.Props) (string, error) { return "no_volume", nil }

	sv := NewSupervisor(testLog(), nil)
	klines := series.New([]int64{60})
	inds := series.New([]int64{60})

	s := strategy.Setup{Name: "entry", Validators: []strategy.ValidatorRef{
		{Name: "a", Func: pass},
		{Name: "b", Func: veto},
	}}
	if ok, verdict := sv.ValidateSignal(klines, inds, s); ok || verdict != "no_volume" {
		t.Fatalf("veto: ok=%v verdict=%q", ok, verdict)
	}
	s.Validators = s.Validators[:1]
	if ok, _ := sv.ValidateSignal(klines, inds, s); !ok {
		t.Fatal("all-pass must validate")
	}
	if ok, _ := sv.ValidateSignal(klines, inds, strategy.Setup{Name: "bare"}); !ok {
		t.Fatal("no validators means valid")
	}
}
