package indicator

import (
	"errors"
	"math"
	"testing"

	"PVResonance/internal/domain/models"
)

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestEfficiencyRatiosByHand(t *testing.T) {
	prices := []float64{100, 101, 99, 102, 98, 103}
	effs, undefined := EfficiencyRatios(prices, 2)
	if undefined != 0 {
		t.Fatalf("expected no undefined rows, got %d", undefined)
	}
	if len(effs) != 4 {
		t.Fatalf("expected 4 rows after warm-up, got %d", len(effs))
	}
	first := effs[0]
	if first.Index != 2 || first.Direction != -1 || first.Volatility != 3 {
		t.Fatalf("unexpected terms at t=2: %+v", first)
	}
	if !almostEqual(first.Ratio, -1.0/3.0, 1e-15) {
		t.Fatalf("er at t=2 got %v", first.Ratio)
	}
	want := []struct{ dir, vol float64 }{{1, 5}, {-1, 7}, {1, 9}}
	for i, w := range want {
		e := effs[i+1]
		if e.Direction != w.dir || e.Volatility != w.vol {
			t.Fatalf("row %d got dir=%v vol=%v want %v %v", e.Index, e.Direction, e.Volatility, w.dir, w.vol)
		}
	}
}

func TestAMAMatchesHandDerivedReference(t *testing.T) {
	prices := []float64{100, 101, 99, 102, 98, 103}
	s, err := AMA(prices, DefaultAMAConfig(2))
	if err != nil {
		t.Fatalf("ama: %v", err)
	}
	want := []Point{
		{Index: 2, Value: 99},
		{Index: 3, Value: 99.10261533125217},
		{Index: 4, Value: 99.10210539237772},
		{Index: 5, Value: 99.16942856076261},
	}
	if len(s.Points) != len(want) {
		t.Fatalf("expected %d points got %d", len(want), len(s.Points))
	}
	for i, w := range want {
		got := s.Points[i]
		if got.Index != w.Index || !almostEqual(got.Value, w.Value, 1e-9) {
			t.Fatalf("point %d got %+v want %+v", i, got, w)
		}
	}
}

func TestStepFixedPoint(t *testing.T) {
	for _, sc := range []float64{0, 0.004, 0.25, 1} {
		if got := Step(42.5, 42.5, sc); got != 42.5 {
			t.Fatalf("step at fixed point with sc=%v moved to %v", sc, got)
		}
	}
}

func TestAMAConstantSeriesHasNoDefinedRows(t *testing.T) {
	prices := []float64{7, 7, 7, 7, 7, 7}
	s, err := AMA(prices, DefaultAMAConfig(3))
	if err != nil {
		t.Fatalf("ama: %v", err)
	}
	if len(s.Points) != 0 {
		t.Fatalf("zero volatility must not produce values, got %v", s.Points)
	}
	if s.Undefined != 3 {
		t.Fatalf("expected 3 undefined rows, got %d", s.Undefined)
	}
}

func TestAMADropsZeroVolatilityRowsAndContinues(t *testing.T) {
	// volatility is zero at t=4 and t=5 for n=2, then the series moves again
	prices := []float64{10, 11, 12, 12, 12, 12, 13}
	s, err := AMA(prices, DefaultAMAConfig(2))
	if err != nil {
		t.Fatalf("ama: %v", err)
	}
	idx := make([]int, 0, len(s.Points))
	for _, p := range s.Points {
		idx = append(idx, p.Index)
	}
	wantIdx := []int{2, 3, 6}
	if len(idx) != len(wantIdx) {
		t.Fatalf("indices got %v want %v", idx, wantIdx)
	}
	for i := range wantIdx {
		if idx[i] != wantIdx[i] {
			t.Fatalf("indices got %v want %v", idx, wantIdx)
		}
	}
	if s.Undefined != 2 {
		t.Fatalf("expected 2 undefined rows got %d", s.Undefined)
	}
	if len(s.Points)+s.Undefined+2 != len(prices) {
		t.Fatalf("output length must equal input minus dropped rows")
	}
	// t=6 continues from the t=3 value
	fast, slow := 2.0/3.0, 2.0/31.0
	sc := SmoothingConstant(1.0/1.0, fast, slow)
	want := Step(s.Points[1].Value, 13, sc)
	if !almostEqual(s.Points[2].Value, want, 1e-12) {
		t.Fatalf("t=6 got %v want %v", s.Points[2].Value, want)
	}
}

func TestAMARejectsBadWindow(t *testing.T) {
	_, err := AMA([]float64{1, 2, 3}, AMAConfig{Window: 0, FastLen: 2, SlowLen: 30})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAMAShortInput(t *testing.T) {
	s, err := AMA([]float64{1, 2}, DefaultAMAConfig(5))
	if err != nil {
		t.Fatalf("ama: %v", err)
	}
	if len(s.Points) != 0 {
		t.Fatalf("expected no points for input shorter than window")
	}
}
