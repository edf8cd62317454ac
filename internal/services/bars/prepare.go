package bars

import (
	"PVResonance/internal/domain/models"
	"PVResonance/internal/domain/repository"
)

// Prepared is a bar series ready for the indicator stage.
type Prepared struct {
	Bars            []models.Bar
	GapDays         []int
	DroppedNoFactor int
}

// PrepareDaily scales daily bars by their own factor and stamps them at the
// session close.
func PrepareDaily(daily []models.Bar) (*Prepared, error) {
	stamped, err := Stamp(ScaleOwnFactor(daily), repository.FreqDaily)
	if err != nil {
		return nil, err
	}
	return &Prepared{Bars: stamped}, nil
}

// PrepareIntraday resamples minute bars to freq, merges the adjustment
// factors and stamps each bar with its own time.
func PrepareIntraday(minute []models.Bar, factors []models.AdjFactor, freq repository.Frequency, multiplier float64) (*Prepared, error) {
	rs, err := Resample(minute, freq, multiplier)
	if err != nil {
		return nil, err
	}
	adjusted, dropped := ApplyFactors(rs.Bars, factors)
	stamped, err := Stamp(adjusted, freq)
	if err != nil {
		return nil, err
	}
	return &Prepared{Bars: stamped, GapDays: rs.GapDays, DroppedNoFactor: dropped}, nil
}
