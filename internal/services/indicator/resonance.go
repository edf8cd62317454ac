package indicator

import (
	"strconv"

	"PVResonance/internal/domain/models"
)

// ResonanceConfig parameterizes the price-volume resonance factor.
type ResonanceConfig struct {
	ShortWindow int
	LongWindow  int
	MAWindow    int
	FastLen     int
	SlowLen     int
}

// ResonancePoint is the factor and its two terms at one bar.
type ResonancePoint struct {
	Index  int
	Price  float64
	Volume float64
	Factor float64
}

// ResonanceResult holds the factor column and drop counts.
type ResonanceResult struct {
	Points []ResonancePoint
	// Undefined counts zero-volatility bars dropped by either volume AMA.
	Undefined int
}

// Aligned expands the factor to a dense column of length n.
func (r *ResonanceResult) Aligned(n int) ([]float64, []bool) {
	vals := make([]float64, n)
	ok := make([]bool, n)
	for _, p := range r.Points {
		if p.Index >= 0 && p.Index < n {
			vals[p.Index] = p.Factor
			ok[p.Index] = true
		}
	}
	return vals, ok
}

// Resonance computes factor_pv = p * v per bar, where v is the ratio of the
// short to the long volume AMA and p is SMA(price, L) / SMA(price, L).
// The price term is identically 1 and is kept that way on purpose.
func Resonance(prices, volumes []float64, cfg ResonanceConfig) (*ResonanceResult, error) {
	if len(prices) != len(volumes) {
		return nil, models.NewConfigurationError("volumes", strconv.Itoa(len(volumes)),
			"price and volume columns must have equal length")
	}
	if cfg.MAWindow < 1 {
		return nil, models.NewConfigurationError("ma_window", strconv.Itoa(cfg.MAWindow), "must be >= 1")
	}
	short, err := AMA(volumes, AMAConfig{Window: cfg.ShortWindow, FastLen: cfg.FastLen, SlowLen: cfg.SlowLen})
	if err != nil {
		return nil, err
	}
	long, err := AMA(volumes, AMAConfig{Window: cfg.LongWindow, FastLen: cfg.FastLen, SlowLen: cfg.SlowLen})
	if err != nil {
		return nil, err
	}

	n := len(prices)
	shortV, shortOK := short.Aligned(n)
	longV, longOK := long.Aligned(n)
	maNum, maOK := SMA(prices, cfg.MAWindow)
	maDen := maNum

	res := &ResonanceResult{Undefined: short.Undefined + long.Undefined}
	for i := 0; i < n; i++ {
		if !shortOK[i] || !longOK[i] || !maOK[i] || longV[i] == 0 || maDen[i] == 0 {
			continue
		}
		p := maNum[i] / maDen[i]
		v := shortV[i] / longV[i]
		res.Points = append(res.Points, ResonancePoint{Index: i, Price: p, Volume: v, Factor: p * v})
	}
	return res, nil
}
