package repository

import (
	"fmt"
	"strconv"

	"PVResonance/internal/domain/models"
)

// ValidateParams checks the cross-field rules of a run that struct tags
// cannot express.
func ValidateParams(p models.RunParams) error {
	if err := ValidateFrequency(Frequency(p.Frequency)); err != nil {
		return err
	}
	if _, ok := models.IndexCodes[p.Instrument]; !ok {
		return models.NewConfigurationError("instrument", p.Instrument, "no index mapping")
	}
	if !p.Variant.IsValid() {
		return models.NewConfigurationError("variant", string(p.Variant), "must be v1, v2 or north")
	}
	if !p.PriceField.IsValid() {
		return models.NewConfigurationError("price_field", string(p.PriceField), "unknown bar column")
	}
	if p.VolumeField != models.FieldVolume && p.VolumeField != models.FieldTurnover {
		return models.NewConfigurationError("volume_field", string(p.VolumeField), "must be volume or turnover")
	}
	windows := []struct {
		name string
		n    int
	}{
		{"ama_short_window", p.ShortWindow},
		{"ama_long_window", p.LongWindow},
		{"ma_window", p.MAWindow},
		{"ama_fast_len", p.FastLen},
		{"ama_slow_len", p.SlowLen},
	}
	for _, w := range windows {
		if w.n < 1 {
			return models.NewConfigurationError(w.name, strconv.Itoa(w.n), "must be >= 1")
		}
	}
	if p.Variant == models.VariantV2 && p.RegimeFastMA >= p.RegimeSlowMA {
		return models.NewConfigurationError("regime_fast_ma",
			fmt.Sprintf("%d/%d", p.RegimeFastMA, p.RegimeSlowMA), "fast window must be shorter than slow")
	}
	if p.Variant == models.VariantNorth && !Frequency(p.Frequency).IsDaily() {
		return models.NewConfigurationError("frequency", strconv.Itoa(p.Frequency), "north variant needs daily bars")
	}
	if p.MaxGapDays < 0 {
		return models.NewConfigurationError("max_gap_days", strconv.Itoa(p.MaxGapDays), "must be >= 0")
	}
	if p.End < p.Start {
		return models.NewConfigurationError("end", strconv.Itoa(p.End), "end date precedes start date")
	}
	return nil
}
