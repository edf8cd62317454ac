package indicator

import (
	talib "github.com/markcheno/go-talib"
)

// SMA returns the simple moving average of values over window.
// ok[i] is false for the first window-1 entries.
func SMA(values []float64, window int) ([]float64, []bool) {
	out := make([]float64, len(values))
	ok := make([]bool, len(values))
	if window < 1 || len(values) < window {
		return out, ok
	}
	ma := talib.Sma(values, window)
	for i := window - 1; i < len(values); i++ {
		out[i] = ma[i]
		ok[i] = true
	}
	return out, ok
}
