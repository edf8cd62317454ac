package indicator

import (
	"math"
	"strconv"

	"PVResonance/internal/domain/models"
)

// Point is an indicator value attached to the index of the bar it belongs to.
type Point struct {
	Index int
	Value float64
}

// Series is a sparse indicator column. Bars without a value are absent.
type Series struct {
	Points []Point
	// Undefined counts bars past the warm-up window dropped for zero volatility.
	Undefined int
}

// Aligned expands s to a dense column of length n.
func (s Series) Aligned(n int) ([]float64, []bool) {
	vals := make([]float64, n)
	ok := make([]bool, n)
	for _, p := range s.Points {
		if p.Index >= 0 && p.Index < n {
			vals[p.Index] = p.Value
			ok[p.Index] = true
		}
	}
	return vals, ok
}

// AMAConfig parameterizes the adaptive moving average.
type AMAConfig struct {
	Window  int
	FastLen int
	SlowLen int
}

// DefaultAMAConfig returns window n with the classic 2/30 smoothing bounds.
func DefaultAMAConfig(n int) AMAConfig {
	return AMAConfig{Window: n, FastLen: 2, SlowLen: 30}
}

func (c AMAConfig) validate() error {
	if c.Window < 1 {
		return models.NewConfigurationError("ama_window", strconv.Itoa(c.Window), "must be >= 1")
	}
	if c.FastLen < 1 {
		return models.NewConfigurationError("ama_fast_len", strconv.Itoa(c.FastLen), "must be >= 1")
	}
	if c.SlowLen < 1 {
		return models.NewConfigurationError("ama_slow_len", strconv.Itoa(c.SlowLen), "must be >= 1")
	}
	return nil
}

// Efficiency holds the terms of the efficiency ratio at one bar.
type Efficiency struct {
	Index      int
	Direction  float64
	Volatility float64
	Ratio      float64
}

// EfficiencyRatios returns the ratio terms for every bar with n bars of history.
// Bars whose volatility is zero have no ratio; they are skipped and counted.
func EfficiencyRatios(prices []float64, n int) ([]Efficiency, int) {
	if n < 1 || len(prices) <= n {
		return nil, 0
	}
	out := make([]Efficiency, 0, len(prices)-n)
	undefined := 0
	for t := n; t < len(prices); t++ {
		vol := 0.0
		for k := t - n + 1; k <= t; k++ {
			vol += math.Abs(prices[k] - prices[k-1])
		}
		if vol == 0 {
			undefined++
			continue
		}
		dir := prices[t] - prices[t-n]
		out = append(out, Efficiency{Index: t, Direction: dir, Volatility: vol, Ratio: dir / vol})
	}
	return out, undefined
}

// SmoothingConstant maps an efficiency ratio onto the squared blend of the
// fast and slow smoothing rates.
func SmoothingConstant(er, fast, slow float64) float64 {
	x := er*(fast-slow) + slow
	return x * x
}

// Step advances the filter by one bar.
func Step(prev, price, smoothing float64) float64 {
	return prev + smoothing*(price-prev)
}

// AMA computes the adaptive moving average of prices. The first bar with a
// defined efficiency ratio seeds the filter with its own price; each later
// defined bar applies Step in order.
func AMA(prices []float64, cfg AMAConfig) (Series, error) {
	if err := cfg.validate(); err != nil {
		return Series{}, err
	}
	fast := 2.0 / float64(cfg.FastLen+1)
	slow := 2.0 / float64(cfg.SlowLen+1)

	effs, undefined := EfficiencyRatios(prices, cfg.Window)
	s := Series{Points: make([]Point, 0, len(effs)), Undefined: undefined}
	for i, e := range effs {
		price := prices[e.Index]
		if i == 0 {
			s.Points = append(s.Points, Point{Index: e.Index, Value: price})
			continue
		}
		prev := s.Points[i-1].Value
		sc := SmoothingConstant(e.Ratio, fast, slow)
		s.Points = append(s.Points, Point{Index: e.Index, Value: Step(prev, price, sc)})
	}
	return s, nil
}
