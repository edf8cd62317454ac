package indicator

import (
	"fmt"

	"PVResonance/internal/domain/models"
)

// Regimes labels each bar BULL when the fast moving average of prices is above
// the slow one and BEAR otherwise. Bars before the slow average exists are UNKNOWN.
func Regimes(prices []float64, fast, slow int) ([]models.Regime, error) {
	if fast < 1 || slow < 1 || fast >= slow {
		return nil, models.NewConfigurationError("regime_ma", fmt.Sprintf("%d/%d", fast, slow),
			"fast and slow windows must be >= 1 with fast < slow")
	}
	maFast, okFast := SMA(prices, fast)
	maSlow, okSlow := SMA(prices, slow)
	out := make([]models.Regime, len(prices))
	for i := range prices {
		switch {
		case !okFast[i] || !okSlow[i]:
			out[i] = models.RegimeUnknown
		case maFast[i] > maSlow[i]:
			out[i] = models.RegimeBull
		default:
			out[i] = models.RegimeBear
		}
	}
	return out, nil
}
