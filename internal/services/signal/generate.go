package signal

import (
	"strconv"

	"PVResonance/internal/domain/models"
)

// Generate classifies every bar. regimes is only read by the v2 variant and
// must then have the same length as inputs. The series must contain at least
// one BUY and one SELL.
func Generate(v models.Variant, inputs []Inputs, regimes []models.Regime, th Thresholds) ([]models.Signal, error) {
	if !v.IsValid() {
		return nil, models.NewConfigurationError("variant", string(v), "unknown signal variant")
	}
	if v == models.VariantV2 && len(regimes) != len(inputs) {
		return nil, models.NewConfigurationError("regimes", strconv.Itoa(len(regimes)),
			"regime column must match the factor column")
	}
	out := make([]models.Signal, len(inputs))
	for i, in := range inputs {
		regime := models.RegimeUnknown
		if v == models.VariantV2 {
			regime = regimes[i]
		}
		out[i] = Classify(v, in, regime, th)
	}
	if err := RequireBothSides(out, th.Describe(v)); err != nil {
		return nil, err
	}
	return out, nil
}

// Indices returns the positions of BUY and SELL entries in ascending order.
func Indices(sig []models.Signal) (buys, sells []int) {
	for i, s := range sig {
		switch s {
		case models.SignalBuy:
			buys = append(buys, i)
		case models.SignalSell:
			sells = append(sells, i)
		}
	}
	return buys, sells
}

// RequireBothSides returns a NoSignalError when sig lacks BUY or SELL entries.
func RequireBothSides(sig []models.Signal, thresholds string) error {
	buys, sells := Indices(sig)
	if len(buys) == 0 {
		return &models.NoSignalError{Missing: models.SignalBuy, Thresholds: thresholds}
	}
	if len(sells) == 0 {
		return &models.NoSignalError{Missing: models.SignalSell, Thresholds: thresholds}
	}
	return nil
}
